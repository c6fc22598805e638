// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"soundviz/pkg/bitint"
)

// Config is the main application configuration, loaded from YAML with
// environment overrides. CLI flags are applied on top by the cmd package.
type Config struct {
	Debug    bool   `yaml:"debug"`     // Enable debug mode (verbose logging).
	LogLevel string `yaml:"log_level"` // Logging level ("debug", "info", "warn", "error").

	Audio     AudioConfig     `yaml:"audio"`     // Device and window settings.
	Analysis  AnalysisConfig  `yaml:"analysis"`  // Spectral analysis settings.
	Playback  PlaybackConfig  `yaml:"playback"`  // Playback buffer settings.
	Stream    StreamConfig    `yaml:"stream"`    // URL-streaming pipeline settings.
	Transport TransportConfig `yaml:"transport"` // Band-frame transport settings.
}

// AudioConfig holds device and analysis-window settings.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio input device index (-1 for default).
	OutputDevice    int     `yaml:"output_device"`     // PortAudio output device index (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz for capture and playback.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Audio frames per device callback.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency from PortAudio.
	FFTSize         int     `yaml:"fft_size"`          // Analysis window length in samples (power of 2).
	FFTWindow       string  `yaml:"fft_window"`        // Window function name (e.g. "Hann", "Hamming").
}

// AnalysisConfig holds band-mapping and smoothing settings.
type AnalysisConfig struct {
	Bands         int     `yaml:"bands"`           // Number of log-spaced output bands.
	FMin          float64 `yaml:"f_min"`           // Lowest band edge (Hz).
	FMax          float64 `yaml:"f_max"`           // Highest band edge (Hz); clamped to Nyquist.
	BandAlpha     float64 `yaml:"band_alpha"`      // EMA coefficient for band smoothing.
	BassAlphaFast float64 `yaml:"bass_alpha_fast"` // EMA coefficient for the fast bass feature.
	BassAlphaSlow float64 `yaml:"bass_alpha_slow"` // EMA coefficient for the slow bass feature.
	BassLowHz     float64 `yaml:"bass_low_hz"`     // Lower edge of the bass range.
	BassHighHz    float64 `yaml:"bass_high_hz"`    // Upper edge of the bass range.
}

// PlaybackConfig holds play-buffer and end-of-file settings.
type PlaybackConfig struct {
	Loop        bool    `yaml:"loop"`         // Restart file playback at EOF instead of stopping.
	RingSeconds float64 `yaml:"ring_seconds"` // Play buffer depth in seconds of audio.
}

// StreamConfig holds the external download/decode pipeline settings.
type StreamConfig struct {
	DownloaderBin string  `yaml:"downloader_bin"` // yt-dlp compatible downloader binary.
	DecoderBin    string  `yaml:"decoder_bin"`    // ffmpeg compatible decoder binary.
	SampleRate    float64 `yaml:"sample_rate"`    // Rate the decoder is asked to emit (Hz).
}

// TransportConfig holds settings for publishing band frames to external
// renderers. Both transports are disabled by default.
type TransportConfig struct {
	WSEnabled        bool          `yaml:"ws_enabled"`         // Serve band frames over WebSocket.
	WSPort           string        `yaml:"ws_port"`            // WebSocket listen port.
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Send band frames over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address for UDP packets.
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between UDP packets.
}

// LoadConfig loads configuration from a YAML file. If path is empty it
// searches default locations ("config.yaml") and falls back to built-in
// defaults when no file exists. Environment overrides are applied after
// loading, then the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Config{
		Debug:    false,
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     MinDeviceID,
			OutputDevice:    MinDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      false,
			FFTSize:         DefaultFFTSize,
			FFTWindow:       "Hann",
		},
		Analysis: AnalysisConfig{
			Bands:         DefaultBands,
			FMin:          20,
			FMax:          18000,
			BandAlpha:     0.12,
			BassAlphaFast: 0.30,
			BassAlphaSlow: 0.08,
			BassLowHz:     20,
			BassHighHz:    120,
		},
		Playback: PlaybackConfig{
			Loop:        false,
			RingSeconds: 2.0,
		},
		Stream: StreamConfig{
			DownloaderBin: "yt-dlp",
			DecoderBin:    "ffmpeg",
			SampleRate:    DefaultSampleRate,
		},
		Transport: TransportConfig{
			WSEnabled:        false,
			WSPort:           "8080",
			UDPEnabled:       false,
			UDPTargetAddress: "127.0.0.1:9090",
			UDPSendInterval:  16 * time.Millisecond, // ~60Hz
		},
	}

	if path == "" {
		candidates := []string{"config.yaml"}
		found := false
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				found = true
				break
			}
		}
		if !found {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return &cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks the invariants the rest of the system relies on.
func (c *Config) Validate() error {
	if !bitint.IsPowerOfTwo(c.Audio.FFTSize) || c.Audio.FFTSize > MaxFFTSize {
		return fmt.Errorf("audio.fft_size must be a power of 2 up to %d, got %d", MaxFFTSize, c.Audio.FFTSize)
	}
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate must be within [%d, %d], got %g", MinSampleRate, MaxSampleRate, c.Audio.SampleRate)
	}
	if c.Audio.FramesPerBuffer <= 0 {
		return fmt.Errorf("audio.frames_per_buffer must be positive, got %d", c.Audio.FramesPerBuffer)
	}
	if c.Analysis.Bands <= 0 {
		return fmt.Errorf("analysis.bands must be positive, got %d", c.Analysis.Bands)
	}
	if c.Analysis.FMin <= 0 || c.Analysis.FMax <= c.Analysis.FMin {
		return fmt.Errorf("analysis band range [%g, %g] is not ascending and positive", c.Analysis.FMin, c.Analysis.FMax)
	}
	for _, alpha := range []float64{c.Analysis.BandAlpha, c.Analysis.BassAlphaFast, c.Analysis.BassAlphaSlow} {
		if alpha <= 0 || alpha > 1 {
			return fmt.Errorf("analysis smoothing coefficients must be in (0, 1], got %g", alpha)
		}
	}
	if c.Playback.RingSeconds <= 0 {
		return fmt.Errorf("playback.ring_seconds must be positive, got %g", c.Playback.RingSeconds)
	}
	if c.Transport.UDPEnabled && c.Transport.UDPSendInterval <= 0 {
		return fmt.Errorf("transport.udp_send_interval must be positive when UDP is enabled")
	}
	return nil
}

// applyEnvOverrides applies ENV_* overrides on top of file values.
func (cfg *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
		}
	}
	if val, ok := os.LookupEnv("ENV_WS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.WSEnabled = bVal
		}
	}
	if val, ok := os.LookupEnv("ENV_WS_PORT"); ok {
		cfg.Transport.WSPort = val
	}
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
		}
	}
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
	}
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPSendInterval = dur
		}
	}
}
