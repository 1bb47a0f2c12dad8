// Package spectral computes one-sided Fourier spectra of acceleration series:
// amplitude, phase, amplitude in dB, power spectral density and cumulative
// power, on the positive frequency bins up to Nyquist.
package spectral

import (
	"math"
	"math/cmplx"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"

	"github.com/joelefrain/gura-forge/internal/errors"
	"github.com/joelefrain/gura-forge/internal/seismic"
	"github.com/joelefrain/gura-forge/internal/seismic/window"
)

// dBFloor bounds the log scale for zero-amplitude bins.
const dBFloor = -240.0

// Config selects the taper and FFT length for one analysis.
type Config struct {
	Window window.Type
	// NFFT is the FFT length. Zero selects the next power of two at or above
	// the series length; an explicit value shorter than the series is
	// rejected, and one that is not a power of two is rounded up to the next
	// power of two (the transform runs on power-of-two plans), so the
	// frequency grid follows the rounded length.
	NFFT int
}

// Spectrum is the one-sided spectrum of a single component.
type Spectrum struct {
	SamplingFreq float64
	NFFT         int

	Frequencies        []float64 // Hz, bins 1..NFFT/2 (Nyquist included)
	Amplitude          []float64 // window-gain corrected one-sided amplitude
	Phase              []float64 // radians
	AmplitudeDB        []float64
	PSD                []float64 // |X|²/(fs·N), one-sided
	CumulativePower    []float64 // running ∫PSD df
	CumulativePowerPct []float64 // 0..100, monotone
}

// NumBins returns the number of frequency bins.
func (s *Spectrum) NumBins() int { return len(s.Frequencies) }

// PeakFrequency returns the frequency of the largest amplitude bin.
func (s *Spectrum) PeakFrequency() float64 {
	best := 0
	for i, a := range s.Amplitude {
		if a > s.Amplitude[best] {
			best = i
		}
	}
	if len(s.Frequencies) == 0 {
		return 0
	}
	return s.Frequencies[best]
}

// NextPowerOf2 returns the smallest power of two >= n.
func NextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func resolveNFFT(n, requested int) (int, error) {
	if requested == 0 {
		return NextPowerOf2(n), nil
	}
	if requested < n {
		return 0, errors.Newf("nfft %d shorter than series length %d", requested, n).
			Component("spectral").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return NextPowerOf2(requested), nil
}

// ComplexSpectrum applies the taper, zero-pads x to nfft and returns the
// positive-frequency DFT bins (1..nfft/2) with their frequencies in Hz. It is
// the shared core of this package, the coherence analyzer and the
// Fourier-route response spectrum.
func ComplexSpectrum(x []float64, fs float64, w window.Type, nfft int) ([]complex128, []float64, error) {
	if len(x) == 0 {
		return nil, nil, errors.Newf("empty series").
			Component("spectral").
			Category(errors.CategoryDataIntegrity).
			Build()
	}
	if fs <= 0 {
		return nil, nil, errors.Newf("invalid sampling frequency %g Hz", fs).
			Component("spectral").
			Category(errors.CategoryDataIntegrity).
			Build()
	}
	if !seismic.AllFinite(x) {
		return nil, nil, errors.Newf("non-finite sample in input series").
			Component("spectral").
			Category(errors.CategoryNumerical).
			Build()
	}

	size, err := resolveNFFT(len(x), nfft)
	if err != nil {
		return nil, nil, err
	}

	tapered := append([]float64(nil), x...)
	window.Apply(w, tapered)

	plan, err := algofft.NewPlan64(size)
	if err != nil {
		return nil, nil, errors.Newf("fft plan for size %d: %v", size, err).
			Component("spectral").
			Category(errors.CategoryConfiguration).
			Build()
	}

	padded := make([]complex128, size)
	for i, v := range tapered {
		padded[i] = complex(v, 0)
	}
	freqBins := make([]complex128, size)
	if err := plan.Forward(freqBins, padded); err != nil {
		return nil, nil, errors.Newf("forward fft: %v", err).
			Component("spectral").
			Category(errors.CategoryNumerical).
			Build()
	}

	half := size / 2
	bins := make([]complex128, half)
	freqs := make([]float64, half)
	df := fs / float64(size)
	for k := 1; k <= half; k++ {
		bins[k-1] = freqBins[k]
		freqs[k-1] = float64(k) * df
	}
	return bins, freqs, nil
}

// Compute runs the full spectral analysis of one component.
func Compute(x []float64, fs float64, cfg Config) (*Spectrum, error) {
	bins, freqs, err := ComplexSpectrum(x, fs, cfg.Window, cfg.NFFT)
	if err != nil {
		return nil, err
	}
	size := 2 * len(bins)

	coeffs := window.Generate(cfg.Window, len(x))
	gain := window.CoherentGain(coeffs)
	if gain == 0 {
		gain = 1
	}

	re := make([]float64, len(bins))
	im := make([]float64, len(bins))
	for i, c := range bins {
		re[i] = real(c)
		im[i] = imag(c)
	}

	mag := make([]float64, len(bins))
	power := make([]float64, len(bins))
	vecmath.Magnitude(mag, re, im)
	vecmath.Power(power, re, im)

	out := &Spectrum{
		SamplingFreq:       fs,
		NFFT:               size,
		Frequencies:        freqs,
		Amplitude:          make([]float64, len(bins)),
		Phase:              make([]float64, len(bins)),
		AmplitudeDB:        make([]float64, len(bins)),
		PSD:                make([]float64, len(bins)),
		CumulativePower:    make([]float64, len(bins)),
		CumulativePowerPct: make([]float64, len(bins)),
	}

	ampScale := 2 / (float64(len(x)) * gain)
	psdScale := 2 / (fs * float64(size))
	for i := range bins {
		oneSidedAmp := ampScale
		oneSidedPSD := psdScale
		if i == len(bins)-1 {
			// Nyquist bin has no mirror image.
			oneSidedAmp = ampScale / 2
			oneSidedPSD = psdScale / 2
		}
		out.Amplitude[i] = mag[i] * oneSidedAmp
		out.PSD[i] = power[i] * oneSidedPSD
		out.Phase[i] = cmplx.Phase(bins[i])
		out.AmplitudeDB[i] = amplitudeDB(out.Amplitude[i])
	}

	fillCumulativePower(out)

	if !seismic.AllFinite(out.Amplitude) || !seismic.AllFinite(out.PSD) {
		return nil, errors.Newf("non-finite spectrum bin").
			Component("spectral").
			Category(errors.CategoryNumerical).
			Build()
	}
	return out, nil
}

// ComputeTriaxial analyzes all three orthogonal components and, when
// withResultant is set, adds the resultant spectrum: the vector magnitude of
// the three per-component amplitude spectra per bin. The resultant has no
// defined phase; it is stored as zero.
func ComputeTriaxial(ts *seismic.TriaxialSeries, cfg Config, withResultant bool) (map[seismic.Component]*Spectrum, error) {
	out := make(map[seismic.Component]*Spectrum, 4)
	for _, c := range seismic.Orthogonal() {
		spec, err := Compute(ts.Component(c), ts.SamplingFreq, cfg)
		if err != nil {
			return nil, err
		}
		out[c] = spec
	}
	if withResultant {
		res, err := Resultant(out[seismic.ComponentVertical], out[seismic.ComponentNorth], out[seismic.ComponentEast])
		if err != nil {
			return nil, err
		}
		out[seismic.ComponentResultant] = res
	}
	return out, nil
}

// Resultant combines three per-component spectra on the same frequency grid.
func Resultant(v, n, e *Spectrum) (*Spectrum, error) {
	if v.NumBins() != n.NumBins() || v.NumBins() != e.NumBins() {
		return nil, errors.Newf("resultant requires equal grids: %d/%d/%d bins",
			v.NumBins(), n.NumBins(), e.NumBins()).
			Component("spectral").
			Category(errors.CategoryDataIntegrity).
			Build()
	}

	out := &Spectrum{
		SamplingFreq:       v.SamplingFreq,
		NFFT:               v.NFFT,
		Frequencies:        append([]float64(nil), v.Frequencies...),
		Amplitude:          make([]float64, v.NumBins()),
		Phase:              make([]float64, v.NumBins()),
		AmplitudeDB:        make([]float64, v.NumBins()),
		PSD:                make([]float64, v.NumBins()),
		CumulativePower:    make([]float64, v.NumBins()),
		CumulativePowerPct: make([]float64, v.NumBins()),
	}
	for i := range out.Amplitude {
		out.Amplitude[i] = math.Sqrt(v.Amplitude[i]*v.Amplitude[i] +
			n.Amplitude[i]*n.Amplitude[i] +
			e.Amplitude[i]*e.Amplitude[i])
		out.PSD[i] = v.PSD[i] + n.PSD[i] + e.PSD[i]
		out.AmplitudeDB[i] = amplitudeDB(out.Amplitude[i])
	}
	fillCumulativePower(out)
	return out, nil
}

func amplitudeDB(a float64) float64 {
	if a <= 0 {
		return dBFloor
	}
	db := 20 * math.Log10(a)
	if db < dBFloor {
		return dBFloor
	}
	return db
}

// fillCumulativePower integrates PSD over frequency with the trapezoidal rule
// and normalizes to a percentage that reaches 100 at Nyquist.
func fillCumulativePower(s *Spectrum) {
	if len(s.PSD) == 0 {
		return
	}
	acc := 0.0
	s.CumulativePower[0] = 0
	for i := 1; i < len(s.PSD); i++ {
		df := s.Frequencies[i] - s.Frequencies[i-1]
		acc += 0.5 * (s.PSD[i-1] + s.PSD[i]) * df
		s.CumulativePower[i] = acc
	}
	total := s.CumulativePower[len(s.CumulativePower)-1]
	if total <= 0 {
		return
	}
	for i := range s.CumulativePowerPct {
		s.CumulativePowerPct[i] = 100 * s.CumulativePower[i] / total
	}
}
