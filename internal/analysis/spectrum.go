// SPDX-License-Identifier: MIT
/*
Package analysis extracts render-ready spectral features from audio
windows: a fixed count of logarithmically spaced frequency bands plus a
bass-energy scalar, both smoothed across frames.

The pipeline per window: window function (Hann by default), real-input
FFT, magnitudes of the first N/2 bins normalized to ~[0,1], log-band
aggregation, exponential smoothing. All buffers are pre-allocated; a
single Analyze pass does not allocate beyond the returned frame.
*/
package analysis

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"soundviz/pkg/bitint"
)

// WindowFunc selects the tapering function applied before the FFT.
type WindowFunc int

const (
	Hann WindowFunc = iota
	Hamming
	Blackman
	BlackmanNuttall
	BartlettHann
	Lanczos
	Nuttall
)

// Frame is the published result of one analysis pass. Bands holds one
// non-negative magnitude per log-spaced band; BassFast reacts quickly to
// low-frequency energy, BassSmooth lags behind it. A frame is never
// mutated after it is returned.
type Frame struct {
	Bands      []float64
	BassFast   float64
	BassSmooth float64
}

// Params configures an Analyzer.
type Params struct {
	FFTSize    int     // Window length in samples; must be a power of 2.
	SampleRate float64 // Input sample rate (Hz).
	Bands      int     // Number of log-spaced output bands.
	FMin       float64 // Lowest band edge (Hz).
	FMax       float64 // Highest band edge (Hz); clamped to Nyquist.
	Window     WindowFunc

	BandAlpha     float64 // EMA coefficient for band smoothing.
	BassAlphaFast float64 // EMA coefficient for the fast bass feature.
	BassAlphaSlow float64 // EMA coefficient for the slow bass feature.
	BassLowHz     float64 // Lower edge of the bass range.
	BassHighHz    float64 // Upper edge of the bass range.
}

// Analyzer computes band frames from sample windows. It is stateful
// (smoothing) and owned by a single caller; it is not safe for concurrent
// Analyze calls.
type Analyzer struct {
	fftSize    int
	sampleRate float64
	bands      int

	fft       *fourier.FFT
	windowFn  []float64    // pre-computed window coefficients
	input     []float64    // windowed real input
	coeffs    []complex128 // FFT output, N/2+1 bins
	magnitude []float64    // normalized magnitudes, first N/2 bins

	binLo, binHi     []int // per-band bin ranges, clamped non-empty
	bassLo, bassHi   int   // bass feature bin range
	smoothed         []float64
	bassFast         float64
	bassSmooth       float64
	bandAlpha        float64
	bassAF, bassAS   float64
}

// New creates an analyzer for the given parameters.
func New(p Params) (*Analyzer, error) {
	if !bitint.IsPowerOfTwo(p.FFTSize) {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d", p.FFTSize)
	}
	if p.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %g", p.SampleRate)
	}
	if p.Bands <= 0 {
		return nil, fmt.Errorf("band count must be positive, got %d", p.Bands)
	}

	nyquist := p.SampleRate / 2
	fMax := math.Min(p.FMax, nyquist)
	if p.FMin <= 0 || fMax <= p.FMin {
		return nil, fmt.Errorf("band range [%g, %g] is invalid for sample rate %g", p.FMin, fMax, p.SampleRate)
	}

	windowCoeffs := make([]float64, p.FFTSize)
	applyWindow(windowCoeffs, p.Window)

	a := &Analyzer{
		fftSize:    p.FFTSize,
		sampleRate: p.SampleRate,
		bands:      p.Bands,
		fft:        fourier.NewFFT(p.FFTSize),
		windowFn:   windowCoeffs,
		input:      make([]float64, p.FFTSize),
		coeffs:     make([]complex128, p.FFTSize/2+1),
		magnitude:  make([]float64, p.FFTSize/2),
		binLo:      make([]int, p.Bands),
		binHi:      make([]int, p.Bands),
		smoothed:   make([]float64, p.Bands),
		bandAlpha:  p.BandAlpha,
		bassAF:     p.BassAlphaFast,
		bassAS:     p.BassAlphaSlow,
	}

	// Band edges follow f_k = fMin * (fMax/fMin)^(k/bands). Low bands
	// often span less than one bin at this FFT resolution, so ranges are
	// clamped to at least one bin; a band with no bins of its own takes
	// the nearest populated bin.
	ratio := fMax / p.FMin
	for b := range p.Bands {
		f0 := p.FMin * math.Pow(ratio, float64(b)/float64(p.Bands))
		f1 := p.FMin * math.Pow(ratio, float64(b+1)/float64(p.Bands))
		a.binLo[b], a.binHi[b] = a.binRange(f0, f1)
	}
	a.bassLo, a.bassHi = a.binRange(p.BassLowHz, p.BassHighHz)

	return a, nil
}

// binRange converts a frequency range to a half-open bin range, clamped
// to [0, N/2) and guaranteed non-empty.
func (a *Analyzer) binRange(f0, f1 float64) (int, int) {
	n := float64(a.fftSize)
	half := a.fftSize / 2

	lo := int(math.Floor(f0 * n / a.sampleRate))
	hi := int(math.Ceil(f1 * n / a.sampleRate))
	if lo < 0 {
		lo = 0
	}
	if lo >= half {
		lo = half - 1
	}
	if hi > half {
		hi = half
	}
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi
}

// Analyze runs one pass over a sample window of exactly FFTSize samples
// and returns the resulting frame. A silent window yields all-zero band
// contributions, never NaN.
func (a *Analyzer) Analyze(win []float32) Frame {
	for i := range a.fftSize {
		if i < len(win) {
			a.input[i] = float64(win[i]) * a.windowFn[i]
		} else {
			a.input[i] = 0
		}
	}

	a.fft.Coefficients(a.coeffs, a.input)

	// Normalize by 2/N so full-scale sine magnitudes land near 1.
	norm := 2 / float64(a.fftSize)
	for i := range a.magnitude {
		a.magnitude[i] = cmplx.Abs(a.coeffs[i]) * norm
	}

	bassRaw := a.meanMagnitude(a.bassLo, a.bassHi)
	a.bassFast += a.bassAF * (bassRaw - a.bassFast)
	a.bassSmooth += a.bassAS * (bassRaw - a.bassSmooth)

	for b := range a.bands {
		raw := a.meanMagnitude(a.binLo[b], a.binHi[b])
		a.smoothed[b] += a.bandAlpha * (raw - a.smoothed[b])
	}

	bands := make([]float64, a.bands)
	copy(bands, a.smoothed)
	return Frame{
		Bands:      bands,
		BassFast:   a.bassFast,
		BassSmooth: a.bassSmooth,
	}
}

// meanMagnitude returns sqrt of the mean magnitude across [lo, hi). The
// sqrt compresses dynamic range for rendering, as does the band output.
func (a *Analyzer) meanMagnitude(lo, hi int) float64 {
	var sum float64
	for i := lo; i < hi; i++ {
		sum += a.magnitude[i]
	}
	return math.Sqrt(sum / float64(hi-lo))
}

// FFTSize returns the analysis window length in samples.
func (a *Analyzer) FFTSize() int { return a.fftSize }

// Bands returns the number of output bands.
func (a *Analyzer) Bands() int { return a.bands }

// FrequencyForBin returns the center frequency (Hz) of a linear FFT bin.
func (a *Analyzer) FrequencyForBin(bin int) float64 {
	if bin < 0 || bin >= len(a.magnitude) {
		return 0
	}
	return float64(bin) * a.sampleRate / float64(a.fftSize)
}

// BandForFrequency returns the index of the band whose bin range covers
// the given frequency, or -1 if it falls outside every band.
func (a *Analyzer) BandForFrequency(freq float64) int {
	bin := int(freq * float64(a.fftSize) / a.sampleRate)
	for b := range a.bands {
		if bin >= a.binLo[b] && bin < a.binHi[b] {
			return b
		}
	}
	return -1
}

// ParseWindowFunc converts a name (case-insensitive) to a WindowFunc.
// Unknown names return Hann and an error.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "bartletthann":
		return BartlettHann, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: %q", name)
	}
}

// applyWindow fills coeffs with the window function values. The slice is
// seeded with ones because the gonum window functions multiply in place.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case Hamming:
		window.Hamming(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		window.Hann(coeffs)
	}
}
