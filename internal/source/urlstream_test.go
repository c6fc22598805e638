package source

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"testing"
	"time"

	"soundviz/internal/ring"
)

// pcmBytes encodes samples as the raw little-endian f32 stream a decoder
// subprocess would emit.
func pcmBytes(samples []float32) []byte {
	buf := make([]byte, 0, len(samples)*4)
	for _, s := range samples {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(s))
	}
	return buf
}

func TestPCMStreamDeliversSamplesInOrder(t *testing.T) {
	samples := []float32{0, 0.5, -0.25, 1, -1, 0.125}
	rc := io.NopCloser(bytes.NewReader(pcmBytes(samples)))

	play := ring.New(64, ring.Reject)
	u := NewPCMStream(rc, 44100, play)
	if err := u.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer u.Stop()

	if u.SampleRate() != 44100 {
		t.Errorf("sample rate = %g, want 44100", u.SampleRate())
	}

	waitForState(t, u, StateDraining)

	got := make([]float32, len(samples)+8)
	n := play.PopSlice(got)
	if n != len(samples) {
		t.Fatalf("popped %d samples, want %d", n, len(samples))
	}
	for i, want := range samples {
		if got[i] != want {
			t.Errorf("sample %d = %g, want %g", i, got[i], want)
		}
	}
}

func TestPCMStreamIgnoresTruncatedTail(t *testing.T) {
	// One full sample plus two stray bytes, as when a decoder is killed
	// mid-write. The partial sample must not be delivered.
	data := append(pcmBytes([]float32{0.75}), 0xde, 0xad)
	rc := io.NopCloser(bytes.NewReader(data))

	play := ring.New(64, ring.Reject)
	u := NewPCMStream(rc, 44100, play)
	if err := u.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer u.Stop()

	waitForState(t, u, StateDraining)

	got := make([]float32, 8)
	if n := play.PopSlice(got); n != 1 {
		t.Fatalf("popped %d samples, want 1", n)
	}
	if got[0] != 0.75 {
		t.Errorf("sample = %g, want 0.75", got[0])
	}
}

func TestPCMStreamBackpressuresOnFullRing(t *testing.T) {
	samples := make([]float32, 256)
	for i := range samples {
		samples[i] = float32(i) / 256
	}
	rc := io.NopCloser(bytes.NewReader(pcmBytes(samples)))

	// Ring far smaller than the stream forces the pump into its retry
	// path; nothing may be dropped or reordered.
	play := ring.New(16, ring.Reject)
	u := NewPCMStream(rc, 44100, play)
	if err := u.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer u.Stop()

	got := make([]float32, 0, len(samples))
	buf := make([]float32, 8)
	deadline := time.Now().Add(2 * time.Second)
	for len(got) < len(samples) && time.Now().Before(deadline) {
		n := play.PopSlice(buf)
		got = append(got, buf[:n]...)
		if n == 0 {
			time.Sleep(time.Millisecond)
		}
	}
	if len(got) != len(samples) {
		t.Fatalf("received %d samples, want %d", len(got), len(samples))
	}
	for i, want := range samples {
		if got[i] != want {
			t.Fatalf("sample %d = %g, want %g", i, got[i], want)
		}
	}
}

func TestPCMStreamStopIsTerminal(t *testing.T) {
	samples := make([]float32, 1<<16)
	rc := io.NopCloser(bytes.NewReader(pcmBytes(samples)))

	play := ring.New(16, ring.Reject) // keeps the pump busy backpressuring
	u := NewPCMStream(rc, 44100, play)
	if err := u.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	u.Stop()
	if u.State() != StateStopped {
		t.Errorf("state = %s after Stop, want stopped", u.State())
	}
	u.Stop() // idempotent

	if err := u.Start(); err == nil {
		t.Error("expected error restarting a stopped source")
	}
}

func TestStateTransitionIsForwardOnly(t *testing.T) {
	var s stateVar
	if !s.transition(StateStreaming) {
		t.Fatal("forward transition should succeed")
	}
	if s.transition(StateStarting) {
		t.Error("backward transition should fail")
	}
	if s.get() != StateStreaming {
		t.Errorf("state = %s, want streaming", s.get())
	}
	if !s.transition(StateStopped) {
		t.Error("forward transition to stopped should succeed")
	}
	if s.transition(StateDraining) {
		t.Error("stopped is terminal")
	}
}
