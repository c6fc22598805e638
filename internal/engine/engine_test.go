package engine

import (
	"testing"

	"soundviz/internal/config"
	"soundviz/pkg/utils"
)

// newTestEngine builds a capture-mode engine with the analyzer wired up
// directly, bypassing Start so no audio hardware is touched.
func newTestEngine(t *testing.T) (*Engine, *config.Config) {
	t.Helper()

	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("failed to load default config: %v", err)
	}

	e, err := New(cfg, ModeMic, "")
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	if err := e.initAnalysis(cfg.Audio.SampleRate); err != nil {
		t.Fatalf("failed to init analysis: %v", err)
	}
	return e, cfg
}

// pushWindowed pushes samples into the viz buffer one analysis window
// at a time, pulling a frame after each window so smoothing warms up
// the way it does when audio and render interleave.
func pushWindowed(e *Engine, samples []float32) {
	size := e.analyzer.FFTSize()
	for off := 0; off < len(samples); off += size {
		end := off + size
		if end > len(samples) {
			end = len(samples)
		}
		for _, s := range samples[off:end] {
			e.viz.Push(s)
		}
		e.Frame()
	}
}

func peakBand(bands []float64) (int, float64) {
	idx, val := 0, bands[0]
	for i, b := range bands {
		if b > val {
			idx, val = i, b
		}
	}
	return idx, val
}

func TestFrameBeforeAnalysisIsZero(t *testing.T) {
	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("failed to load default config: %v", err)
	}
	e, err := New(cfg, ModeMic, "")
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}

	frame := e.Frame()
	if len(frame.Bands) != 0 || frame.BassFast != 0 || frame.BassSmooth != 0 {
		t.Errorf("expected zero frame before analysis is configured, got %+v", frame)
	}
}

func TestSinePeaksInMatchingBand(t *testing.T) {
	e, cfg := newTestEngine(t)

	const freq = 440.0
	samples := utils.GenerateSineWave(int(cfg.Audio.SampleRate), cfg.Audio.SampleRate, freq, 0.8)
	pushWindowed(e, samples)

	frame := e.Frame()
	if len(frame.Bands) != cfg.Analysis.Bands {
		t.Fatalf("frame has %d bands, want %d", len(frame.Bands), cfg.Analysis.Bands)
	}

	peak, peakVal := peakBand(frame.Bands)
	want := e.analyzer.BandForFrequency(freq)
	if peak < want-1 || peak > want+1 {
		t.Errorf("peak band = %d, want %d (±1)", peak, want)
	}
	if peakVal <= 0 {
		t.Errorf("peak band value = %g, want > 0", peakVal)
	}

	// 440Hz is well above the bass range, so the bass feature stays low.
	if frame.BassFast > 0.2*peakVal {
		t.Errorf("bass fast = %g should be small next to peak %g", frame.BassFast, peakVal)
	}
}

func TestFrameIdempotentWithoutNewAudio(t *testing.T) {
	e, cfg := newTestEngine(t)

	samples := utils.GenerateSineWave(cfg.Audio.FFTSize*4, cfg.Audio.SampleRate, 440, 0.8)
	pushWindowed(e, samples)

	f1 := e.Frame()
	f2 := e.Frame()

	if f1.BassFast != f2.BassFast || f1.BassSmooth != f2.BassSmooth {
		t.Errorf("bass features changed without new audio: %+v vs %+v", f1, f2)
	}
	for i := range f1.Bands {
		if f1.Bands[i] != f2.Bands[i] {
			t.Fatalf("band %d changed without new audio: %g vs %g", i, f1.Bands[i], f2.Bands[i])
		}
	}
}

func TestFrameAdvancesWhenAudioArrives(t *testing.T) {
	e, cfg := newTestEngine(t)

	samples := utils.GenerateSineWave(cfg.Audio.FFTSize*8, cfg.Audio.SampleRate, 440, 0.8)
	pushWindowed(e, samples)
	before := e.Frame()
	_, beforePeak := peakBand(before.Bands)

	// A window of silence should pull the smoothed peak back down.
	for range cfg.Audio.FFTSize {
		e.viz.Push(0)
	}
	after := e.Frame()
	_, afterPeak := peakBand(after.Bands)

	if afterPeak >= beforePeak {
		t.Errorf("peak should decay on silence: before %g, after %g", beforePeak, afterPeak)
	}
}

func TestMicModeNeverDrains(t *testing.T) {
	e, _ := newTestEngine(t)
	if e.Drained() {
		t.Error("capture mode should never report drained")
	}
	if e.Underruns() != 0 {
		t.Error("capture mode should report zero underruns")
	}
}

func TestNewRejectsUnknownMode(t *testing.T) {
	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("failed to load default config: %v", err)
	}
	if _, err := New(cfg, Mode(99), ""); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestModeString(t *testing.T) {
	cases := map[Mode]string{
		ModeMic:  "mic",
		ModeWav:  "wav",
		ModeURL:  "url",
		Mode(42): "unknown",
	}
	for mode, want := range cases {
		if got := mode.String(); got != want {
			t.Errorf("Mode(%d).String() = %q, want %q", mode, got, want)
		}
	}
}
