// SPDX-License-Identifier: MIT
/*
Package playback implements the pull-driven audio sink that keeps the
visualization sample-accurate with what is audible.

Every sample handed to the output device is popped from the play buffer
and, in the same pull, teed into the viz buffer before it is written out.
The analyzer therefore only ever sees samples that have already been (or
are at that instant being) played — the visualization can neither run
ahead of decode progress nor lag behind playback. On underrun the sink
emits silence and tees nothing, so the analyzer sees a gap rather than a
duplicated stale value.
*/
package playback

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"soundviz/internal/config"
	applog "soundviz/internal/log"
	"soundviz/internal/ring"
	"soundviz/internal/source"
)

// Synchronizer pulls samples from the play buffer for the output device
// and mirrors each played sample into the viz buffer.
type Synchronizer struct {
	play *ring.Buffer
	viz  *ring.Buffer
	src  source.Source

	stream    *portaudio.Stream
	underruns atomic.Uint64
}

// New creates a synchronizer between play and viz for the given source.
func New(play, viz *ring.Buffer, src source.Source) *Synchronizer {
	return &Synchronizer{play: play, viz: viz, src: src}
}

// Fill is the pull operation: it fills out with the next samples to be
// played, teeing each popped sample into the viz buffer first. Underrun
// slots are zeroed and not teed.
// Performance Critical (Hot Path): runs on the audio callback thread.
// No allocations, no locks, no I/O — only ring pops and pushes.
func (s *Synchronizer) Fill(out []float32) {
	for i := range out {
		sample, ok := s.play.Pop()
		if !ok {
			s.underruns.Add(1)
			out[i] = 0
			continue
		}
		s.viz.Push(sample)
		out[i] = sample
	}
}

// Start opens the output device and begins the callback stream. The
// stream runs at the source's declared rate, mono.
func (s *Synchronizer) Start(cfg *config.Config) error {
	device, err := source.OutputDevice(cfg.Audio.OutputDevice)
	if err != nil {
		return fmt.Errorf("failed to open output device: %w", err)
	}

	var latency time.Duration
	if cfg.Audio.LowLatency {
		latency = device.DefaultLowOutputLatency
	} else {
		latency = device.DefaultHighOutputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: 0,
			Device:   nil,
		},
		Output: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: 1,
			Latency:  latency,
		},
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
		SampleRate:      s.src.SampleRate(),
	}

	stream, err := portaudio.OpenStream(params, s.processOutput)
	if err != nil {
		return fmt.Errorf("failed to open playback stream: %w", err)
	}
	s.stream = stream

	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start playback stream: %w", err)
	}

	applog.Infof("Playback: streaming to %q (%.0f Hz mono)", device.Name, s.src.SampleRate())
	return nil
}

// processOutput is the output device callback.
func (s *Synchronizer) processOutput(out []float32) {
	s.Fill(out)
}

// Drained reports whether the producer has ended and every buffered
// sample has been played out.
func (s *Synchronizer) Drained() bool {
	st := s.src.State()
	return (st == source.StateDraining || st == source.StateStopped) && s.play.Len() == 0
}

// Underruns returns the number of pulls that found the play buffer empty.
func (s *Synchronizer) Underruns() uint64 {
	return s.underruns.Load()
}

// Stop halts playback immediately without draining. Idempotent.
func (s *Synchronizer) Stop() {
	if s.stream == nil {
		return
	}
	if err := s.stream.Stop(); err != nil {
		applog.Errorf("Playback: error stopping stream: %v", err)
	}
	if err := s.stream.Close(); err != nil {
		applog.Errorf("Playback: error closing stream: %v", err)
	}
	s.stream = nil
}
