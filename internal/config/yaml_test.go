// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config, got nil")
	}
	if cfg.Audio.FFTSize != DefaultFFTSize {
		t.Errorf("default fft_size = %d, want %d", cfg.Audio.FFTSize, DefaultFFTSize)
	}
	if cfg.Analysis.Bands != DefaultBands {
		t.Errorf("default bands = %d, want %d", cfg.Analysis.Bands, DefaultBands)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Error("expected unmarshal error, got nil or wrong error")
	}
}

func TestLoadConfig_FileValues(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
audio:
  fft_size: 4096
  sample_rate: 48000
analysis:
  bands: 64
playback:
  loop: true
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Audio.FFTSize != 4096 {
		t.Errorf("fft_size = %d, want 4096", cfg.Audio.FFTSize)
	}
	if cfg.Audio.SampleRate != 48000 {
		t.Errorf("sample_rate = %g, want 48000", cfg.Audio.SampleRate)
	}
	if cfg.Analysis.Bands != 64 {
		t.Errorf("bands = %d, want 64", cfg.Analysis.Bands)
	}
	if !cfg.Playback.Loop {
		t.Error("playback.loop = false, want true")
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"fft size not power of two", func(c *Config) { c.Audio.FFTSize = 1000 }},
		{"sample rate too low", func(c *Config) { c.Audio.SampleRate = 4000 }},
		{"zero bands", func(c *Config) { c.Analysis.Bands = 0 }},
		{"inverted band range", func(c *Config) { c.Analysis.FMin = 500; c.Analysis.FMax = 100 }},
		{"alpha out of range", func(c *Config) { c.Analysis.BandAlpha = 1.5 }},
		{"zero ring seconds", func(c *Config) { c.Playback.RingSeconds = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadConfig("")
			if err != nil {
				t.Fatalf("default config failed: %v", err)
			}
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted invalid config")
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ENV_DEBUG", "true")
	t.Setenv("ENV_UDP_TARGET_ADDRESS", "10.0.0.1:7000")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if !cfg.Debug {
		t.Error("ENV_DEBUG override not applied")
	}
	if cfg.Transport.UDPTargetAddress != "10.0.0.1:7000" {
		t.Errorf("udp_target_address = %q, want 10.0.0.1:7000", cfg.Transport.UDPTargetAddress)
	}
}
