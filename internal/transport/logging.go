package transport

import (
	"soundviz/internal/analysis"
	applog "soundviz/internal/log"
)

// LoggingTransport logs frame summaries instead of transmitting them.
// Useful when debugging analysis without a renderer attached.
type LoggingTransport struct{}

var _ Transport = (*LoggingTransport)(nil)

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the frame at debug level. It never fails.
func (lt *LoggingTransport) Send(frame analysis.Frame) error {
	applog.Debugf("Transport: frame bands=%d bass_fast=%.3f bass_smooth=%.3f",
		len(frame.Bands), frame.BassFast, frame.BassSmooth)
	return nil
}

// Close is a no-op.
func (lt *LoggingTransport) Close() error { return nil }
