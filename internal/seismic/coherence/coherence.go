// Package coherence estimates the magnitude-squared coherence and phase
// difference between two aligned records with Welch's method of averaged,
// overlapped, windowed segments.
package coherence

import (
	"math"
	"math/cmplx"

	"github.com/joelefrain/gura-forge/internal/errors"
	"github.com/joelefrain/gura-forge/internal/seismic/spectral"
	"github.com/joelefrain/gura-forge/internal/seismic/window"
)

// Series is one component's samples with its placement in absolute time.
// Start is the offset in seconds of the first sample.
type Series struct {
	Start        float64
	SamplingFreq float64
	Data         []float64
}

// End returns the time of the last sample.
func (s *Series) End() float64 {
	if len(s.Data) == 0 {
		return s.Start
	}
	return s.Start + float64(len(s.Data)-1)/s.SamplingFreq
}

// Config controls the Welch estimate. A zero SegmentLength splits the
// overlapping span into DefaultSegments pieces; Overlap is the fraction of a
// segment shared with its neighbor and defaults to 0.5.
type Config struct {
	Window        window.Type
	SegmentLength int
	Overlap       float64
}

// DefaultSegments is the segment count used when none is configured.
const DefaultSegments = 8

// Result is the coherence estimate on the positive-frequency grid of one
// segment.
type Result struct {
	Frequencies []float64
	Coherence   []float64 // magnitude-squared, clamped to [0, 1]
	Phase       []float64 // cross-spectrum argument, radians
	Segments    int
}

// Compute estimates coherence between x and y over their overlapping span.
// Averaging needs at least two segments; a single segment would yield unit
// coherence at every frequency regardless of the inputs.
func Compute(x, y *Series, cfg Config) (*Result, error) {
	if x.SamplingFreq <= 0 || y.SamplingFreq <= 0 {
		return nil, errors.Newf("invalid sampling frequency: %g and %g Hz", x.SamplingFreq, y.SamplingFreq).
			Component("coherence").
			Category(errors.CategoryDataIntegrity).
			Build()
	}
	if x.SamplingFreq != y.SamplingFreq {
		return nil, errors.Newf("sampling rate mismatch: %g vs %g Hz", x.SamplingFreq, y.SamplingFreq).
			Component("coherence").
			Category(errors.CategoryDataIntegrity).
			Context("fs_x", x.SamplingFreq).
			Context("fs_y", y.SamplingFreq).
			Build()
	}

	fs := x.SamplingFreq
	xa, ya, err := alignOverlap(x, y)
	if err != nil {
		return nil, err
	}

	segLen, step, err := segmentation(len(xa), cfg)
	if err != nil {
		return nil, err
	}

	var (
		pxx, pyy []float64
		pxy      []complex128
		freqs    []float64
		segments int
	)
	for start := 0; start+segLen <= len(xa); start += step {
		bx, f, err := spectral.ComplexSpectrum(xa[start:start+segLen], fs, cfg.Window, segLen)
		if err != nil {
			return nil, err
		}
		by, _, err := spectral.ComplexSpectrum(ya[start:start+segLen], fs, cfg.Window, segLen)
		if err != nil {
			return nil, err
		}

		if pxx == nil {
			freqs = f
			pxx = make([]float64, len(bx))
			pyy = make([]float64, len(bx))
			pxy = make([]complex128, len(bx))
		}
		for k := range bx {
			pxx[k] += real(bx[k])*real(bx[k]) + imag(bx[k])*imag(bx[k])
			pyy[k] += real(by[k])*real(by[k]) + imag(by[k])*imag(by[k])
			pxy[k] += bx[k] * complex(real(by[k]), -imag(by[k]))
		}
		segments++
	}

	res := &Result{
		Frequencies: freqs,
		Coherence:   make([]float64, len(pxx)),
		Phase:       make([]float64, len(pxx)),
		Segments:    segments,
	}
	for k := range pxx {
		denom := pxx[k] * pyy[k]
		if denom > 0 {
			c := (real(pxy[k])*real(pxy[k]) + imag(pxy[k])*imag(pxy[k])) / denom
			res.Coherence[k] = math.Min(math.Max(c, 0), 1)
		}
		res.Phase[k] = cmplx.Phase(pxy[k])
	}
	return res, nil
}

// alignOverlap trims both series to their common time span.
func alignOverlap(x, y *Series) ([]float64, []float64, error) {
	fs := x.SamplingFreq
	start := math.Max(x.Start, y.Start)
	end := math.Min(x.End(), y.End())
	if end <= start {
		return nil, nil, errors.Newf("records do not overlap in time: [%g, %g] vs [%g, %g] s",
			x.Start, x.End(), y.Start, y.End()).
			Component("coherence").
			Category(errors.CategoryDataIntegrity).
			Build()
	}

	xi := int(math.Round((start - x.Start) * fs))
	yi := int(math.Round((start - y.Start) * fs))
	n := int(math.Round((end-start)*fs)) + 1

	// Rounding the two offsets independently can overshoot a slice end by one
	// sample; keep the shared span inside both.
	if xi+n > len(x.Data) {
		n = len(x.Data) - xi
	}
	if yi+n > len(y.Data) {
		n = len(y.Data) - yi
	}
	return x.Data[xi : xi+n], y.Data[yi : yi+n], nil
}

func segmentation(n int, cfg Config) (segLen, step int, err error) {
	overlap := cfg.Overlap
	if overlap == 0 {
		overlap = 0.5
	}
	if overlap < 0 || overlap >= 1 {
		return 0, 0, errors.Newf("segment overlap must be in [0, 1): %g", overlap).
			Component("coherence").
			Category(errors.CategoryConfiguration).
			Build()
	}

	segLen = cfg.SegmentLength
	if segLen == 0 {
		// Solve n = segLen + (DefaultSegments-1)·step for 50% overlap.
		segLen = 2 * n / (DefaultSegments + 1)
	}
	if segLen < 2 {
		return 0, 0, errors.Newf("segment length %d too short", segLen).
			Component("coherence").
			Category(errors.CategoryConfiguration).
			Build()
	}

	step = int(float64(segLen) * (1 - overlap))
	if step < 1 {
		step = 1
	}
	if segLen+step > n {
		return 0, 0, errors.Newf("overlapping span of %d samples fits fewer than two segments of %d", n, segLen).
			Component("coherence").
			Category(errors.CategoryDataIntegrity).
			Build()
	}
	return segLen, step, nil
}
