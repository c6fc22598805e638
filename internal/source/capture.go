package source

import (
	"fmt"
	"time"

	"github.com/gordonklaus/portaudio"

	"soundviz/internal/config"
	applog "soundviz/internal/log"
	"soundviz/internal/ring"
)

// Capture streams the default (or configured) input device into the viz
// ring buffer. There is no playback step in capture mode: the viz buffer
// is the capture sink and the analyzer reads it directly.
type Capture struct {
	cfg *config.Config
	viz *ring.Buffer

	device   *portaudio.DeviceInfo
	latency  time.Duration
	stream   *portaudio.Stream
	channels int
	state    stateVar
}

var _ Source = (*Capture)(nil)

// NewCapture creates a capture adapter writing into viz.
func NewCapture(cfg *config.Config, viz *ring.Buffer) *Capture {
	return &Capture{cfg: cfg, viz: viz}
}

// Start opens the input device and begins the hardware callback stream.
// Device failures are fatal and reported here, before any window opens.
func (c *Capture) Start() error {
	if !c.state.transition(StateStarting) {
		return fmt.Errorf("capture source is not restartable (state %s)", c.state.get())
	}

	device, err := InputDevice(c.cfg.Audio.InputDevice)
	if err != nil {
		c.state.set(StateStopped)
		return fmt.Errorf("failed to open input device: %w", err)
	}
	c.device = device

	c.channels = device.MaxInputChannels
	if c.channels > 2 {
		c.channels = 2
	}
	if c.channels < 1 {
		c.state.set(StateStopped)
		return fmt.Errorf("device %q has no input channels", device.Name)
	}

	if c.cfg.Audio.LowLatency {
		c.latency = device.DefaultLowInputLatency
	} else {
		c.latency = device.DefaultHighInputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: c.channels,
			Latency:  c.latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0,
			Device:   nil,
		},
		FramesPerBuffer: c.cfg.Audio.FramesPerBuffer,
		SampleRate:      c.cfg.Audio.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, c.processInput)
	if err != nil {
		c.state.set(StateStopped)
		return fmt.Errorf("failed to open capture stream: %w", err)
	}
	c.stream = stream

	if err := stream.Start(); err != nil {
		stream.Close()
		c.state.set(StateStopped)
		return fmt.Errorf("failed to start capture stream: %w", err)
	}

	applog.Infof("Capture: streaming from %q (%d ch, %.0f Hz)",
		device.Name, c.channels, c.cfg.Audio.SampleRate)
	c.state.set(StateStreaming)
	return nil
}

// processInput is the hardware audio callback. It downmixes interleaved
// frames to mono and pushes them into the viz ring. The ring's Overwrite
// policy means this never blocks on a slow analyzer.
// Performance Critical (Hot Path): no allocations, no locks, no I/O.
func (c *Capture) processInput(in []float32) {
	if c.state.get() != StateStreaming {
		return
	}
	ch := c.channels
	inv := 1.0 / float32(ch)
	for i := 0; i+ch <= len(in); i += ch {
		var sum float32
		for j := range ch {
			sum += in[i+j]
		}
		c.viz.Push(sum * inv)
	}
}

// Stop stops and closes the input stream. Terminal and idempotent.
func (c *Capture) Stop() {
	if !c.state.transition(StateStopped) {
		return
	}
	if c.stream != nil {
		if err := c.stream.Stop(); err != nil {
			applog.Errorf("Capture: error stopping stream: %v", err)
		}
		if err := c.stream.Close(); err != nil {
			applog.Errorf("Capture: error closing stream: %v", err)
		}
		c.stream = nil
	}
}

// State returns the adapter lifecycle state.
func (c *Capture) State() State { return c.state.get() }

// SampleRate returns the capture rate in Hz.
func (c *Capture) SampleRate() float64 { return c.cfg.Audio.SampleRate }
