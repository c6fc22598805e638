package utils

import (
	"math"
	"testing"
)

func TestGenerateSineWave(t *testing.T) {
	t.Parallel()
	buf := GenerateSineWave(4410, 44100, 100, 0.8)
	if len(buf) != 4410 {
		t.Fatalf("len = %d, want 4410", len(buf))
	}
	// 100Hz at 44.1kHz: one full period every 441 samples, starting at 0.
	if math.Abs(float64(buf[0])) > 1e-9 {
		t.Errorf("buf[0] = %v, want 0", buf[0])
	}
	// Peak amplitude must approach 0.8 somewhere in the first period.
	var max float32
	for _, s := range buf[:441] {
		if s > max {
			max = s
		}
	}
	if max < 0.79 || max > 0.81 {
		t.Errorf("peak = %v, want ~0.8", max)
	}
}

func TestFindPeak(t *testing.T) {
	t.Parallel()
	values := []float64{0.1, 0.5, 3.0, 0.2, 0.9}
	if got := FindPeak(values, 0, len(values)-1); got != 2 {
		t.Errorf("FindPeak = %d, want 2", got)
	}
	// Clamped bounds.
	if got := FindPeak(values, -10, 100); got != 2 {
		t.Errorf("FindPeak with wild bounds = %d, want 2", got)
	}
	if got := FindPeak(values, 3, 4); got != 4 {
		t.Errorf("FindPeak in subrange = %d, want 4", got)
	}
	if got := FindPeak(nil, 0, 0); got != 0 {
		t.Errorf("FindPeak on empty = %d, want 0", got)
	}
}
