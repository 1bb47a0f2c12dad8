// Package stability measures how much a record's spectral content varies
// across sub-windows of its own duration. The series is split into equal
// segments, each segment gets its own amplitude/phase spectrum, and the
// per-bin spread across segments is reduced to a stability index.
package stability

import (
	"math"

	"github.com/joelefrain/gura-forge/internal/errors"
	"github.com/joelefrain/gura-forge/internal/seismic/spectral"
	"github.com/joelefrain/gura-forge/internal/seismic/window"
)

// Config controls the segmentation. Segments is the exact number of windows
// N; Overlap is the fraction of a segment shared with its neighbor, zero for
// back-to-back windows.
type Config struct {
	Window   window.Type
	Segments int
	Overlap  float64
}

// SegmentSpectrum is one segment's spectrum on the common frequency grid.
type SegmentSpectrum struct {
	Number    int // 1-based
	Amplitude []float64
	Phase     []float64
}

// Result is the across-segment statistic per frequency bin.
type Result struct {
	Frequencies []float64
	Segments    []SegmentSpectrum

	MeanAmplitude  []float64
	StdAmplitude   []float64
	CoV            []float64
	MeanPhase      []float64 // circular mean, radians in (−π, π]
	StdPhase       []float64 // angular deviation √(2(1−R)), radians
	StabilityIndex []float64 // 1 − CoV, clamped to [0, 1]
}

// Analyze splits x into cfg.Segments windows and reduces the per-bin spread.
func Analyze(x []float64, fs float64, cfg Config) (*Result, error) {
	if cfg.Segments < 2 {
		return nil, errors.Newf("need at least 2 segments, got %d", cfg.Segments).
			Component("stability").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.Overlap < 0 || cfg.Overlap >= 1 {
		return nil, errors.Newf("segment overlap must be in [0, 1): %g", cfg.Overlap).
			Component("stability").
			Category(errors.CategoryConfiguration).
			Build()
	}

	segLen, step := segmentLayout(len(x), cfg.Segments, cfg.Overlap)
	if segLen < 2 || step < 1 || (cfg.Segments-1)*step+segLen > len(x) {
		return nil, errors.Newf("series of %d samples too short for %d segments", len(x), cfg.Segments).
			Component("stability").
			Category(errors.CategoryDataIntegrity).
			Context("num_samples", len(x)).
			Context("segments", cfg.Segments).
			Build()
	}

	res := &Result{Segments: make([]SegmentSpectrum, 0, cfg.Segments)}
	for s := 0; s < cfg.Segments; s++ {
		start := s * step
		bins, freqs, err := spectral.ComplexSpectrum(x[start:start+segLen], fs, cfg.Window, segLen)
		if err != nil {
			return nil, err
		}
		if res.Frequencies == nil {
			res.Frequencies = freqs
		}

		seg := SegmentSpectrum{
			Number:    s + 1,
			Amplitude: make([]float64, len(bins)),
			Phase:     make([]float64, len(bins)),
		}
		for k, b := range bins {
			seg.Amplitude[k] = math.Hypot(real(b), imag(b))
			seg.Phase[k] = math.Atan2(imag(b), real(b))
		}
		res.Segments = append(res.Segments, seg)
	}

	nBins := len(res.Frequencies)
	res.MeanAmplitude = make([]float64, nBins)
	res.StdAmplitude = make([]float64, nBins)
	res.CoV = make([]float64, nBins)
	res.MeanPhase = make([]float64, nBins)
	res.StdPhase = make([]float64, nBins)
	res.StabilityIndex = make([]float64, nBins)

	n := float64(cfg.Segments)
	phases := make([]float64, cfg.Segments)
	for k := 0; k < nBins; k++ {
		var sumA float64
		for i, seg := range res.Segments {
			sumA += seg.Amplitude[k]
			phases[i] = seg.Phase[k]
		}
		meanA := sumA / n

		var varA float64
		for _, seg := range res.Segments {
			da := seg.Amplitude[k] - meanA
			varA += da * da
		}
		stdA := math.Sqrt(varA / n)
		res.MeanAmplitude[k] = meanA
		res.StdAmplitude[k] = stdA
		res.MeanPhase[k], res.StdPhase[k] = phaseStats(phases)

		if meanA > 0 {
			res.CoV[k] = stdA / meanA
		}
		res.StabilityIndex[k] = math.Min(math.Max(1-res.CoV[k], 0), 1)
	}
	return res, nil
}

// phaseStats reduces a set of phases with circular statistics: the mean is
// the argument of the averaged unit phasors and the spread is the angular
// deviation √(2(1−R)), with R the mean resultant length. Arithmetic moments
// would misreport bins whose phases straddle the ±π wrap.
func phaseStats(phases []float64) (mean, std float64) {
	var sumSin, sumCos float64
	for _, p := range phases {
		sumSin += math.Sin(p)
		sumCos += math.Cos(p)
	}
	n := float64(len(phases))
	r := math.Min(math.Hypot(sumSin/n, sumCos/n), 1)
	return math.Atan2(sumSin/n, sumCos/n), math.Sqrt(2 * (1 - r))
}

// segmentLayout sizes cfg.Segments windows so they tile n samples with the
// requested overlap: n = segLen + (segments−1)·step.
func segmentLayout(n, segments int, overlap float64) (segLen, step int) {
	denom := 1 + float64(segments-1)*(1-overlap)
	segLen = int(float64(n) / denom)
	step = int(float64(segLen) * (1 - overlap))
	for segLen+(segments-1)*step > n && segLen > 0 {
		segLen--
		step = int(float64(segLen) * (1 - overlap))
	}
	return segLen, step
}
