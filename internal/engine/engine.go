// SPDX-License-Identifier: MIT
/*
Package engine wires the sources, buffers, analyzer, playback and
transports together and exposes the per-frame pull API the render loop
(and any pull-style publisher) calls.

Frame() is cheap to call at display rate: when no new audio has arrived
since the previous call it returns the cached frame unchanged, so a
fast render loop does not advance the smoothing state faster than audio
flows.
*/
package engine

import (
	"fmt"
	"sync"

	"soundviz/internal/analysis"
	"soundviz/internal/config"
	applog "soundviz/internal/log"
	"soundviz/internal/playback"
	"soundviz/internal/ring"
	"soundviz/internal/source"
	"soundviz/internal/transport"
	"soundviz/internal/transport/udp"
)

// vizRingWindows is the viz buffer depth in analysis windows. Deep
// enough that a render stall does not immediately overwrite the window
// being analyzed.
const vizRingWindows = 8

// Mode selects which source adapter feeds the engine.
type Mode int

const (
	ModeMic Mode = iota
	ModeWav
	ModeURL
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeMic:
		return "mic"
	case ModeWav:
		return "wav"
	case ModeURL:
		return "url"
	default:
		return "unknown"
	}
}

// Engine owns the full audio path for one run: source, ring buffers,
// playback synchronizer, spectral analyzer, and outbound transports.
type Engine struct {
	cfg  *config.Config
	mode Mode

	viz  *ring.Buffer
	play *ring.Buffer
	src  source.Source
	sync *playback.Synchronizer

	analyzer *analysis.Analyzer
	window   []float32

	transports []transport.Transport
	udpSender  *udp.Sender
	udpPub     *udp.Publisher

	// mu serializes Frame callers against each other; the audio and
	// producer threads never take it.
	mu         sync.Mutex
	lastFrame  analysis.Frame
	lastCursor uint64
	haveFrame  bool

	closeOnce sync.Once
}

var _ transport.FrameProvider = (*Engine)(nil)

// New assembles an engine for the given mode. The param is the WAV path
// in ModeWav and the URL in ModeURL; it is ignored in ModeMic. Nothing
// touches the audio hardware until Start.
func New(cfg *config.Config, mode Mode, param string) (*Engine, error) {
	e := &Engine{
		cfg:  cfg,
		mode: mode,
		viz:  ring.New(vizRingWindows*cfg.Audio.FFTSize, ring.Overwrite),
	}

	switch mode {
	case ModeMic:
		e.src = source.NewCapture(cfg, e.viz)
	case ModeWav:
		e.play = ring.New(int(cfg.Audio.SampleRate*cfg.Playback.RingSeconds), ring.Reject)
		e.src = source.NewWavFile(param, cfg.Playback.Loop, e.play)
		e.sync = playback.New(e.play, e.viz, e.src)
	case ModeURL:
		e.play = ring.New(int(cfg.Stream.SampleRate*cfg.Playback.RingSeconds), ring.Reject)
		e.src = source.NewURLStream(param, cfg.Stream, e.play)
		e.sync = playback.New(e.play, e.viz, e.src)
	default:
		return nil, fmt.Errorf("unknown engine mode %d", mode)
	}

	return e, nil
}

// Start brings the whole path up: source first (it knows the true
// sample rate), then the analyzer, playback, and transports. Any
// failure here is fatal to the run.
func (e *Engine) Start() error {
	applog.Infof("Engine: starting in %s mode", e.mode)

	if err := e.src.Start(); err != nil {
		return err
	}

	if err := e.initAnalysis(e.src.SampleRate()); err != nil {
		e.src.Stop()
		return err
	}

	if e.sync != nil {
		if err := e.sync.Start(e.cfg); err != nil {
			e.src.Stop()
			return err
		}
	}

	return e.startTransports()
}

// initAnalysis builds the analyzer for the source's actual rate, which
// for file playback is only known after decode.
func (e *Engine) initAnalysis(sampleRate float64) error {
	windowFn, err := analysis.ParseWindowFunc(e.cfg.Audio.FFTWindow)
	if err != nil {
		applog.Warnf("Engine: %v, using Hann", err)
	}

	analyzer, err := analysis.New(analysis.Params{
		FFTSize:       e.cfg.Audio.FFTSize,
		SampleRate:    sampleRate,
		Bands:         e.cfg.Analysis.Bands,
		FMin:          e.cfg.Analysis.FMin,
		FMax:          e.cfg.Analysis.FMax,
		Window:        windowFn,
		BandAlpha:     e.cfg.Analysis.BandAlpha,
		BassAlphaFast: e.cfg.Analysis.BassAlphaFast,
		BassAlphaSlow: e.cfg.Analysis.BassAlphaSlow,
		BassLowHz:     e.cfg.Analysis.BassLowHz,
		BassHighHz:    e.cfg.Analysis.BassHighHz,
	})
	if err != nil {
		return fmt.Errorf("failed to configure analysis: %w", err)
	}

	e.analyzer = analyzer
	e.window = make([]float32, analyzer.FFTSize())
	return nil
}

// startTransports wires the configured outbound publishers. Push
// transports receive frames from Frame(); the UDP publisher pulls on
// its own ticker and is deliberately not in the push list.
func (e *Engine) startTransports() error {
	if e.cfg.Transport.WSEnabled {
		e.transports = append(e.transports, transport.NewWebSocketTransport(e.cfg.Transport.WSPort))
	}
	if e.cfg.Debug {
		e.transports = append(e.transports, transport.NewLoggingTransport())
	}

	if e.cfg.Transport.UDPEnabled {
		sender, err := udp.NewSender(e.cfg.Transport.UDPTargetAddress)
		if err != nil {
			return fmt.Errorf("failed to start UDP transport: %w", err)
		}
		pub, err := udp.NewPublisher(e.cfg.Transport.UDPSendInterval, sender, e)
		if err != nil {
			sender.Close()
			return err
		}
		e.udpSender = sender
		e.udpPub = pub
		pub.Start()
	}

	return nil
}

// Frame returns the spectral frame for the most recent audio. It never
// blocks on audio progress: if nothing new was played or captured since
// the last call, the previous frame is returned unchanged, keeping the
// smoothing state tied to audio time rather than render rate. Safe for
// concurrent callers.
func (e *Engine) Frame() analysis.Frame {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.analyzer == nil {
		return analysis.Frame{}
	}

	cursor := e.viz.Pushed()
	if e.haveFrame && cursor == e.lastCursor {
		return e.lastFrame
	}

	e.viz.CopyLatest(e.window)
	frame := e.analyzer.Analyze(e.window)

	e.lastFrame = frame
	e.lastCursor = cursor
	e.haveFrame = true

	for _, t := range e.transports {
		if err := t.Send(frame); err != nil {
			applog.Debugf("Engine: transport send failed: %v", err)
		}
	}

	return frame
}

// Drained reports whether playback has finished: the source ended and
// every buffered sample was played. Capture mode never drains.
func (e *Engine) Drained() bool {
	if e.sync == nil {
		return false
	}
	return e.sync.Drained()
}

// Underruns returns how often the output callback found the play buffer
// empty. Always zero in capture mode.
func (e *Engine) Underruns() uint64 {
	if e.sync == nil {
		return 0
	}
	return e.sync.Underruns()
}

// Source exposes the underlying adapter, mainly for state inspection.
func (e *Engine) Source() source.Source { return e.src }

// Close tears the path down in reverse order of Start. Idempotent.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		if e.udpPub != nil {
			e.udpPub.Stop()
		}
		if e.udpSender != nil {
			e.udpSender.Close()
		}
		for _, t := range e.transports {
			if err := t.Close(); err != nil {
				applog.Errorf("Engine: transport close failed: %v", err)
			}
		}
		if e.sync != nil {
			e.sync.Stop()
		}
		e.src.Stop()
		applog.Infof("Engine: stopped")
	})
}
