package config

// Boundaries and defaults for the visualizer core.
const (
	DefaultSampleRate      = 44100 // CD-quality audio
	DefaultFramesPerBuffer = 512   // Balanced latency/performance
	DefaultFFTSize         = 2048  // Analysis window (power of 2)
	DefaultBands           = 120   // Log-spaced output bands
	DefaultWavFile         = "assets/song.wav"

	MinDeviceID   = -1     // -1 selects the system default device
	MinSampleRate = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate = 192000 // Maximum supported sample rate (Hz)
	MaxFFTSize    = 16384  // Largest analysis window (power of 2)
)
