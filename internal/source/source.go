// SPDX-License-Identifier: MIT
/*
Package source provides the audio source adapters. Each adapter produces
mono float32 samples at a declared rate into a ring buffer until stopped:

  - Capture: default input device via PortAudio, pushed straight into the
    viz buffer (capture audio is not re-played).
  - WavFile: decoded WAV container, fed into the play buffer.
  - URLStream: external download + decode subprocess pipeline emitting raw
    PCM, fed into the play buffer.

Adapters move through Idle → Starting → Streaming → (Draining) → Stopped.
Stopped is terminal; an adapter is not restartable.
*/
package source

import "sync/atomic"

// State is the lifecycle state of a source adapter.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateStreaming
	StateDraining // producer ended, buffered samples remain
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Source is the capability shared by all adapters. Start surfaces fatal
// startup failures synchronously, before any rendering begins. Stop is
// cooperative and idempotent.
type Source interface {
	Start() error
	Stop()
	State() State
	SampleRate() float64
}

// stateVar is an atomically updated State shared between the producer
// goroutine and the render/audio threads.
type stateVar struct {
	v atomic.Int32
}

func (s *stateVar) set(st State)  { s.v.Store(int32(st)) }
func (s *stateVar) get() State    { return State(s.v.Load()) }

// transition only moves forward through the lifecycle, so a late producer
// cannot drag a Stopped adapter back to Draining.
func (s *stateVar) transition(st State) bool {
	for {
		cur := s.v.Load()
		if cur >= int32(st) {
			return false
		}
		if s.v.CompareAndSwap(cur, int32(st)) {
			return true
		}
	}
}
