package transport

import "soundviz/internal/analysis"

// Transport publishes analysis frames to external renderers.
// Implementations must be thread-safe and must not block the render
// thread beyond a bounded send; drop frames rather than stall.
type Transport interface {
	Send(frame analysis.Frame) error
	Close() error
}

// FrameProvider yields the most recent analysis frame on demand. The
// engine implements this for pull-style publishers.
type FrameProvider interface {
	Frame() analysis.Frame
}
