package source

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/go-audio/wav"

	applog "soundviz/internal/log"
	"soundviz/internal/ring"
)

// backpressureSleep is how long producers wait before retrying a push on
// a full play buffer. Short enough that the output callback never starves
// while it drains.
const backpressureSleep = 500 * time.Microsecond

// WavFile decodes a WAV container up front and feeds the play buffer at
// the rate the playback side consumes it. On EOF it either loops or
// enters Draining, per the orchestrator's policy (default stop).
type WavFile struct {
	path string
	loop bool
	play *ring.Buffer

	sampleRate float64
	samples    []float32 // decoded mono
	state      stateVar
	stop       atomic.Bool
	done       chan struct{}
}

var _ Source = (*WavFile)(nil)

// NewWavFile creates a file adapter for path writing into play.
func NewWavFile(path string, loop bool, play *ring.Buffer) *WavFile {
	return &WavFile{path: path, loop: loop, play: play}
}

// Start decodes the file and launches the feeder goroutine. A missing or
// unreadable file is fatal and reported here.
func (w *WavFile) Start() error {
	if !w.state.transition(StateStarting) {
		return fmt.Errorf("wav source is not restartable (state %s)", w.state.get())
	}

	f, err := os.Open(w.path)
	if err != nil {
		w.state.set(StateStopped)
		return fmt.Errorf("failed to open WAV file: %w", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		w.state.set(StateStopped)
		return fmt.Errorf("%s is not a valid WAV file", w.path)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		w.state.set(StateStopped)
		return fmt.Errorf("failed to decode WAV file: %w", err)
	}

	channels := buf.Format.NumChannels
	if channels < 1 || channels > 2 {
		w.state.set(StateStopped)
		return fmt.Errorf("only mono/stereo WAV supported, got %d channels", channels)
	}
	bitDepth := int(d.BitDepth)
	if buf.SourceBitDepth > 0 {
		bitDepth = buf.SourceBitDepth
	}
	scale := float32(int64(1) << (bitDepth - 1))

	w.sampleRate = float64(buf.Format.SampleRate)
	w.samples = make([]float32, 0, len(buf.Data)/channels)
	inv := 1.0 / float32(channels)
	for i := 0; i+channels <= len(buf.Data); i += channels {
		var sum float32
		for j := range channels {
			sum += float32(buf.Data[i+j]) / scale
		}
		w.samples = append(w.samples, sum*inv)
	}

	applog.Infof("WavFile: decoded %s (%d samples, %d ch, %.0f Hz, %d-bit)",
		w.path, len(w.samples), channels, w.sampleRate, bitDepth)

	w.done = make(chan struct{})
	w.state.set(StateStreaming)
	go w.feed()
	return nil
}

// feed pushes decoded samples into the play buffer, backpressuring on a
// full ring so decoded audio is never dropped.
func (w *WavFile) feed() {
	defer close(w.done)
	idx := 0
	for !w.stop.Load() {
		if idx >= len(w.samples) {
			if w.loop {
				idx = 0
				continue
			}
			w.state.transition(StateDraining)
			applog.Debugf("WavFile: end of file, draining")
			return
		}
		if w.play.Push(w.samples[idx]) {
			idx++
			continue
		}
		time.Sleep(backpressureSleep)
	}
}

// Stop halts the feeder. Terminal and idempotent.
func (w *WavFile) Stop() {
	w.stop.Store(true)
	if !w.state.transition(StateStopped) {
		return
	}
	if w.done != nil {
		<-w.done
	}
}

// State returns the adapter lifecycle state.
func (w *WavFile) State() State { return w.state.get() }

// SampleRate returns the decoded file's sample rate in Hz.
func (w *WavFile) SampleRate() float64 { return w.sampleRate }

// Duration returns the decoded length in seconds.
func (w *WavFile) Duration() float64 {
	if w.sampleRate == 0 {
		return 0
	}
	return float64(len(w.samples)) / w.sampleRate
}
