// SPDX-License-Identifier: MIT
/*
Package ring implements a lock-free single-producer/single-consumer ring
buffer for float32 audio samples.

The buffer is the only coordination point between the producer thread of a
source adapter, the audio output callback, and the render thread running
analysis. No operation locks, performs I/O, or allocates, so every method
is safe to call from the real-time audio callback.

Thread Safety:
- Exactly one goroutine may push and one may pop at any time
- Cursors are monotonically increasing atomics; index = cursor & mask
- Storage writes happen before the cursor store that publishes them
*/
package ring

import (
	"sync/atomic"

	"soundviz/pkg/bitint"
)

// Policy selects the behavior of Push on a full buffer.
type Policy int

const (
	// Reject makes Push return false when the buffer is full. Producers
	// are expected to backpressure. Used for the play buffer so decoded
	// audio is never silently lost.
	Reject Policy = iota

	// Overwrite makes Push always succeed, dropping the oldest unread
	// sample. Used for the viz buffer, whose consumer peeks the most
	// recent window via CopyLatest and must never stall the audio thread.
	// An Overwrite buffer must not be popped concurrently with pushes:
	// dropping advances the read cursor from the producer side.
	Overwrite
)

// Buffer is a fixed-capacity SPSC sample queue. Capacity is rounded up to
// a power of two so cursor arithmetic reduces to a mask.
type Buffer struct {
	buf    []float32
	mask   uint64
	policy Policy

	write atomic.Uint64 // owned by the producer
	read  atomic.Uint64 // owned by the consumer (and Push under Overwrite)
}

// New creates a buffer holding at least capacity samples.
func New(capacity int, policy Policy) *Buffer {
	capacity = bitint.NextPowerOfTwo(capacity)
	return &Buffer{
		buf:    make([]float32, capacity),
		mask:   uint64(capacity - 1),
		policy: policy,
	}
}

// Cap returns the buffer capacity in samples.
func (b *Buffer) Cap() int { return len(b.buf) }

// Len returns the number of unread samples.
func (b *Buffer) Len() int {
	return int(b.write.Load() - b.read.Load())
}

// Pushed returns the total number of samples ever pushed. The viz-side
// analyzer uses this to detect whether new audio arrived between frames.
func (b *Buffer) Pushed() uint64 { return b.write.Load() }

// Push appends one sample. Under Reject it returns false when full and the
// sample is discarded; under Overwrite it drops the oldest sample instead
// and always returns true.
func (b *Buffer) Push(s float32) bool {
	w := b.write.Load()
	if w-b.read.Load() >= uint64(len(b.buf)) {
		if b.policy == Reject {
			return false
		}
		b.read.Store(b.read.Load() + 1)
	}
	b.buf[w&b.mask] = s
	// The cursor store publishes the storage write above.
	b.write.Store(w + 1)
	return true
}

// Pop removes and returns the oldest sample. The second return value is
// false when the buffer is empty.
func (b *Buffer) Pop() (float32, bool) {
	r := b.read.Load()
	if r == b.write.Load() {
		return 0, false
	}
	s := b.buf[r&b.mask]
	b.read.Store(r + 1)
	return s, true
}

// PopSlice removes up to len(dst) samples in FIFO order and returns how
// many were written to dst.
func (b *Buffer) PopSlice(dst []float32) int {
	r := b.read.Load()
	avail := b.write.Load() - r
	n := uint64(len(dst))
	if avail < n {
		n = avail
	}
	for i := uint64(0); i < n; i++ {
		dst[i] = b.buf[(r+i)&b.mask]
	}
	b.read.Store(r + n)
	return int(n)
}

// CopyLatest fills dst with the most recent len(dst) pushed samples
// without disturbing the read cursor. If fewer samples have ever been
// pushed, the front of dst is zero-padded. When the producer laps the
// copied region mid-read the copy is retried, so the result is always a
// consistent snapshot. This is the peek used by the spectral analyzer.
func (b *Buffer) CopyLatest(dst []float32) {
	want := uint64(len(dst))
	if want == 0 {
		return
	}
	for {
		w := b.write.Load()
		n := want
		if w < n {
			n = w
		}
		start := w - n
		pad := want - n
		for i := uint64(0); i < pad; i++ {
			dst[i] = 0
		}
		for i := uint64(0); i < n; i++ {
			dst[pad+i] = b.buf[(start+i)&b.mask]
		}
		// The region [start, w) is intact iff the producer has not
		// written past start+capacity while we were copying.
		if b.write.Load()-start <= uint64(len(b.buf)) {
			return
		}
	}
}
