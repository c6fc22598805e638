// SPDX-License-Identifier: MIT
// Package udp publishes analysis frames as compact binary datagrams for
// renderers that prefer a push feed over the WebSocket JSON stream.
package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"soundviz/internal/analysis"
	applog "soundviz/internal/log"
	"soundviz/internal/transport"
)

// packetMagic identifies a band-frame datagram ("SVBF").
const packetMagic uint32 = 0x53564246

// Publisher periodically pulls the latest analysis frame, packs it into
// a binary datagram, and sends it via a Sender. It runs in its own
// goroutine between Start and Stop.
type Publisher struct {
	sender   *Sender
	frames   transport.FrameProvider
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // protects ticker and doneChan during Start/Stop

	sequenceNum uint32

	// Reused across sends to keep the tick path allocation-light.
	packetBuffer *bytes.Buffer
}

// NewPublisher creates a publisher pulling frames from the provider at
// the given interval. An interval <= 0 defaults to 16ms (~60Hz).
func NewPublisher(interval time.Duration, sender *Sender, frames transport.FrameProvider) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("udp publisher: sender cannot be nil")
	}
	if frames == nil {
		return nil, fmt.Errorf("udp publisher: frame provider cannot be nil")
	}
	if interval <= 0 {
		interval = 16 * time.Millisecond
		applog.Warnf("UDP: invalid publish interval, defaulting to %s", interval)
	}

	return &Publisher{
		sender:       sender,
		frames:       frames,
		interval:     interval,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Start launches the publishing goroutine. Safe to call once per
// publisher; subsequent calls are no-ops while running.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDP: publisher Start called but already running")
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}
	ticker := p.ticker
	done := p.doneChan
	p.mu.Unlock()

	applog.Infof("UDP: publishing band frames every %s", p.interval)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ticker.C:
				if err := p.publishFrame(); err != nil {
					applog.Debugf("UDP: publish failed: %v", err)
				}
			case <-done:
				return
			}
		}
	}()
}

// publishFrame pulls, packs, and sends one frame.
func (p *Publisher) publishFrame() error {
	frame := p.frames.Frame()
	p.sequenceNum++

	p.packetBuffer.Reset()
	if err := encodeFrame(p.packetBuffer, p.sequenceNum, frame); err != nil {
		return err
	}
	return p.sender.Send(p.packetBuffer.Bytes())
}

// encodeFrame packs one frame: magic, sequence, band count, bass fast,
// bass smooth, then the bands as little-endian float32.
func encodeFrame(buf *bytes.Buffer, seq uint32, frame analysis.Frame) error {
	if err := binary.Write(buf, binary.LittleEndian, packetMagic); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, seq); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint16(len(frame.Bands))); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, float32(frame.BassFast)); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, float32(frame.BassSmooth)); err != nil {
		return err
	}
	for _, b := range frame.Bands {
		if err := binary.Write(buf, binary.LittleEndian, float32(b)); err != nil {
			return err
		}
	}
	return nil
}

// Stop halts the goroutine and waits for it to finish. Idempotent.
func (p *Publisher) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		if p.ticker != nil {
			p.ticker.Stop()
			p.ticker = nil
		}
		if p.doneChan != nil {
			close(p.doneChan)
			p.doneChan = nil
		}
		p.mu.Unlock()
		p.wg.Wait()
	})
}
