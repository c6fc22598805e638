package source

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync/atomic"
	"time"

	"soundviz/internal/config"
	applog "soundviz/internal/log"
	"soundviz/internal/ring"
)

// URLStream plays audio fetched by an external downloader and decoded by
// an external decoder subprocess. Raw f32le PCM bytes are read from the
// decoder's stdout incrementally and pushed into the play buffer with
// backpressure. A subprocess that exits mid-stream is end-of-stream, not
// an application failure: the adapter drains and playback finishes the
// buffered samples.
type URLStream struct {
	pipeline *pcmPipeline
	play     *ring.Buffer

	sampleRate float64
	rc         io.ReadCloser
	state      stateVar
	stop       atomic.Bool
	done       chan struct{}
}

var _ Source = (*URLStream)(nil)

// NewURLStream creates a streaming adapter for url writing into play.
func NewURLStream(url string, cfg config.StreamConfig, play *ring.Buffer) *URLStream {
	return &URLStream{
		pipeline: &pcmPipeline{
			downloaderBin: cfg.DownloaderBin,
			decoderBin:    cfg.DecoderBin,
			sampleRate:    cfg.SampleRate,
			url:           url,
		},
		play:       play,
		sampleRate: cfg.SampleRate,
	}
}

// NewPCMStream wires an adapter directly to an existing raw f32le PCM
// byte stream, bypassing the subprocess pipeline. Useful when the decode
// pipeline is managed elsewhere (or simulated, in tests).
func NewPCMStream(rc io.ReadCloser, sampleRate float64, play *ring.Buffer) *URLStream {
	return &URLStream{rc: rc, play: play, sampleRate: sampleRate}
}

// Start spawns the pipeline and begins pumping samples. Network or spawn
// failures are fatal and reported here, before any window opens.
func (u *URLStream) Start() error {
	if !u.state.transition(StateStarting) {
		return fmt.Errorf("url source is not restartable (state %s)", u.state.get())
	}

	if u.rc == nil {
		rc, err := u.pipeline.Open()
		if err != nil {
			u.state.set(StateStopped)
			return err
		}
		u.rc = rc
	}

	u.done = make(chan struct{})
	u.state.set(StateStreaming)
	go u.pump()
	return nil
}

// pump reads one f32le sample at a time and pushes it into the play
// buffer, sleeping briefly when the buffer is full. Any read error —
// EOF, broken pipe, unexpected decoder exit — ends the stream gracefully.
func (u *URLStream) pump() {
	defer close(u.done)

	reader := bufio.NewReaderSize(u.rc, 1<<15)
	var raw [4]byte
	for !u.stop.Load() {
		if _, err := io.ReadFull(reader, raw[:]); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				applog.Warnf("Stream: decoder pipe closed: %v", err)
			}
			break
		}
		s := math.Float32frombits(binary.LittleEndian.Uint32(raw[:]))
		for !u.play.Push(s) {
			if u.stop.Load() {
				return
			}
			time.Sleep(backpressureSleep)
		}
	}

	if u.state.transition(StateDraining) {
		applog.Infof("Stream: stream ended, draining buffered audio")
	}
}

// Stop terminates the pipeline and pump goroutine. Terminal, idempotent,
// and cuts the stream immediately rather than draining.
func (u *URLStream) Stop() {
	u.stop.Store(true)
	if u.rc != nil {
		u.rc.Close() // unblocks a pump stuck in ReadFull
	}
	if u.pipeline != nil {
		u.pipeline.Close()
	}
	if !u.state.transition(StateStopped) {
		return
	}
	if u.done != nil {
		<-u.done
	}
}

// State returns the adapter lifecycle state.
func (u *URLStream) State() State { return u.state.get() }

// SampleRate returns the rate the decoder was asked to emit, in Hz.
func (u *URLStream) SampleRate() float64 { return u.sampleRate }
