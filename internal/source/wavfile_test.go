package source

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"soundviz/internal/ring"
)

// writeTestWav encodes 16-bit mono PCM to a temp file and returns its path.
func writeTestWav(t *testing.T, sampleRate int, data []int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create temp WAV: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("failed to write WAV data: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to finalize WAV: %v", err)
	}
	return path
}

// waitForState polls until the adapter reaches at least the given state.
func waitForState(t *testing.T, src Source, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if src.State() >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s, still %s", want, src.State())
}

func TestWavFileDecodesAndDrains(t *testing.T) {
	data := []int{0, 8192, 16384, -16384, 32767, -32768}
	path := writeTestWav(t, 44100, data)

	play := ring.New(1024, ring.Reject)
	w := NewWavFile(path, false, play)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if w.SampleRate() != 44100 {
		t.Errorf("sample rate = %g, want 44100", w.SampleRate())
	}

	waitForState(t, w, StateDraining)

	got := make([]float32, len(data)+8)
	n := play.PopSlice(got)
	if n != len(data) {
		t.Fatalf("popped %d samples, want %d", n, len(data))
	}
	for i, v := range data {
		want := float32(v) / 32768
		if math.Abs(float64(got[i]-want)) > 1e-6 {
			t.Errorf("sample %d = %g, want %g", i, got[i], want)
		}
	}
}

func TestWavFileLoops(t *testing.T) {
	data := []int{1000, 2000, 3000}
	path := writeTestWav(t, 44100, data)

	play := ring.New(64, ring.Reject)
	w := NewWavFile(path, true, play)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	// The feeder should wrap around and keep producing well past one
	// pass over the file.
	want := len(data) * 4
	got := make([]float32, 0, want)
	buf := make([]float32, 8)
	deadline := time.Now().Add(2 * time.Second)
	for len(got) < want && time.Now().Before(deadline) {
		n := play.PopSlice(buf)
		got = append(got, buf[:n]...)
		if n == 0 {
			time.Sleep(time.Millisecond)
		}
	}
	if len(got) < want {
		t.Fatalf("only %d samples produced, want at least %d", len(got), want)
	}
	if w.State() != StateStreaming {
		t.Errorf("looping file should stay streaming, got %s", w.State())
	}
	for i, s := range got {
		want := float32(data[i%len(data)]) / 32768
		if math.Abs(float64(s-want)) > 1e-6 {
			t.Fatalf("sample %d = %g, want %g", i, s, want)
		}
	}
}

func TestWavFileStopIsTerminal(t *testing.T) {
	path := writeTestWav(t, 44100, make([]int, 4096))

	play := ring.New(64, ring.Reject) // small ring keeps the feeder busy
	w := NewWavFile(path, false, play)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	w.Stop()
	if w.State() != StateStopped {
		t.Errorf("state = %s after Stop, want stopped", w.State())
	}
	w.Stop() // idempotent

	if err := w.Start(); err == nil {
		t.Error("expected error restarting a stopped source")
	}
}

func TestWavFileRejectsMissingFile(t *testing.T) {
	play := ring.New(64, ring.Reject)
	w := NewWavFile(filepath.Join(t.TempDir(), "nope.wav"), false, play)
	if err := w.Start(); err == nil {
		t.Fatal("expected error for missing file")
	}
	if w.State() != StateStopped {
		t.Errorf("state = %s after failed start, want stopped", w.State())
	}
}

func TestWavFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.wav")
	if err := os.WriteFile(path, []byte("not a wav container"), 0o644); err != nil {
		t.Fatalf("failed to write garbage file: %v", err)
	}

	play := ring.New(64, ring.Reject)
	w := NewWavFile(path, false, play)
	if err := w.Start(); err == nil {
		t.Fatal("expected error for invalid WAV data")
	}
}

func TestWavFileDuration(t *testing.T) {
	path := writeTestWav(t, 44100, make([]int, 44100))

	play := ring.New(1<<16, ring.Reject)
	w := NewWavFile(path, false, play)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if d := w.Duration(); math.Abs(d-1.0) > 1e-9 {
		t.Errorf("duration = %g, want 1.0", d)
	}
}
