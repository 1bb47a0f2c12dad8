// Package timedomain derives peak, intensity and duration metrics from an
// acceleration series: PGA/PGV/PGD, Arias intensity, the Husid 5–95%
// significant duration, cumulative absolute velocity and the mean period.
package timedomain

import (
	"math"

	"github.com/joelefrain/gura-forge/internal/errors"
	"github.com/joelefrain/gura-forge/internal/seismic"
)

// Mean-period band limits per the Rathje et al. convention.
const (
	meanPeriodLowHz  = 0.25
	meanPeriodHighHz = 20.0
)

// Metrics holds the time-domain scalars of one component. PGV and PGD are
// zero when the series carries no velocity/displacement. MeanPeriod is filled
// by SetMeanPeriod once the Fourier spectrum of the component exists.
type Metrics struct {
	PGA float64 // cm/s²
	PGV float64 // cm/s
	PGD float64 // cm

	AriasIntensity float64 // cm/s
	Duration595    float64 // s
	CAV            float64 // cm/s
	MeanPeriod     float64 // s
}

// Analyze computes all metrics available from the time series alone. vel and
// disp may be nil.
func Analyze(accel, vel, disp []float64, fs float64) (*Metrics, error) {
	if len(accel) == 0 {
		return nil, errors.Newf("empty acceleration series").
			Component("timedomain").
			Category(errors.CategoryDataIntegrity).
			Build()
	}
	if fs <= 0 {
		return nil, errors.Newf("invalid sampling frequency %g Hz", fs).
			Component("timedomain").
			Category(errors.CategoryDataIntegrity).
			Build()
	}
	if !seismic.AllFinite(accel) {
		return nil, errors.Newf("non-finite acceleration sample").
			Component("timedomain").
			Category(errors.CategoryNumerical).
			Build()
	}

	dt := 1 / fs
	m := &Metrics{
		PGA:            seismic.PeakAbs(accel),
		PGV:            seismic.PeakAbs(vel),
		PGD:            seismic.PeakAbs(disp),
		AriasIntensity: AriasIntensity(accel, dt),
		CAV:            CumulativeAbsoluteVelocity(accel, dt),
	}
	m.Duration595, _, _ = HusidDuration(accel, dt)

	if math.IsNaN(m.AriasIntensity) || math.IsInf(m.AriasIntensity, 0) {
		return nil, errors.Newf("non-finite Arias intensity").
			Component("timedomain").
			Category(errors.CategoryNumerical).
			Build()
	}
	return m, nil
}

// SetMeanPeriod fills the spectrum-dependent metric from a one-sided
// amplitude spectrum.
func (m *Metrics) SetMeanPeriod(freqs, amplitudes []float64) {
	m.MeanPeriod = MeanPeriod(freqs, amplitudes)
}

// AriasIntensity accumulates Iₐ = π/(2g)·∫a² dt with the trapezoidal rule.
func AriasIntensity(a []float64, dt float64) float64 {
	if len(a) < 2 {
		return 0
	}
	acc := 0.0
	prev := a[0] * a[0]
	for i := 1; i < len(a); i++ {
		cur := a[i] * a[i]
		acc += 0.5 * (prev + cur) * dt
		prev = cur
	}
	return math.Pi / (2 * seismic.Gravity) * acc
}

// Husid returns the normalized cumulative Arias intensity H(t) in [0,1].
// A zero-energy series yields all zeros.
func Husid(a []float64, dt float64) []float64 {
	out := make([]float64, len(a))
	if len(a) < 2 {
		return out
	}
	acc := 0.0
	prev := a[0] * a[0]
	for i := 1; i < len(a); i++ {
		cur := a[i] * a[i]
		acc += 0.5 * (prev + cur) * dt
		out[i] = acc
		prev = cur
	}
	total := out[len(out)-1]
	if total <= 0 {
		for i := range out {
			out[i] = 0
		}
		return out
	}
	for i := range out {
		out[i] /= total
	}
	return out
}

// HusidDuration returns the 5–95% significant duration and the two crossing
// times, interpolating linearly between the bracketing samples.
func HusidDuration(a []float64, dt float64) (duration, t5, t95 float64) {
	h := Husid(a, dt)
	if len(h) == 0 || h[len(h)-1] <= 0 {
		return 0, 0, 0
	}
	t5 = crossingTime(h, dt, 0.05)
	t95 = crossingTime(h, dt, 0.95)
	if t95 < t5 {
		t95 = t5
	}
	return t95 - t5, t5, t95
}

// crossingTime finds the first time H(t) reaches level.
func crossingTime(h []float64, dt, level float64) float64 {
	for i, v := range h {
		if v >= level {
			if i == 0 || h[i] == h[i-1] {
				return float64(i) * dt
			}
			frac := (level - h[i-1]) / (h[i] - h[i-1])
			return (float64(i-1) + frac) * dt
		}
	}
	return float64(len(h)-1) * dt
}

// CumulativeAbsoluteVelocity sums ∫|a| dt over consecutive non-overlapping
// 1-second windows covering the record.
func CumulativeAbsoluteVelocity(a []float64, dt float64) float64 {
	if len(a) < 2 || dt <= 0 {
		return 0
	}
	perWindow := int(math.Round(1 / dt))
	if perWindow < 1 {
		perWindow = 1
	}

	total := 0.0
	for start := 0; start < len(a)-1; start += perWindow {
		end := start + perWindow
		if end >= len(a) {
			end = len(a) - 1
		}
		acc := 0.0
		for i := start + 1; i <= end; i++ {
			acc += 0.5 * (math.Abs(a[i-1]) + math.Abs(a[i])) * dt
		}
		total += acc
	}
	return total
}

// MeanPeriod is the energy-weighted mean of 1/f over the amplitude spectrum,
// restricted to the 0.25–20 Hz band. A band with no bins yields 0.
func MeanPeriod(freqs, amplitudes []float64) float64 {
	if len(freqs) != len(amplitudes) {
		return 0
	}
	var num, den float64
	for i, f := range freqs {
		if f < meanPeriodLowHz || f > meanPeriodHighHz {
			continue
		}
		c2 := amplitudes[i] * amplitudes[i]
		num += c2 / f
		den += c2
	}
	if den == 0 {
		return 0
	}
	return num / den
}
