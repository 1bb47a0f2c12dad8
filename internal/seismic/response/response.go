// Package response solves the single-degree-of-freedom oscillator response of
// an acceleration record over a period × damping grid. The time-domain route
// uses the piecewise-exact recurrence for linearly interpolated excitation
// (Nigam–Jennings); the frequency-domain route multiplies the record's
// spectrum by the oscillator transfer function and inverts the FFT.
package response

import (
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"

	"github.com/joelefrain/gura-forge/internal/errors"
	"github.com/joelefrain/gura-forge/internal/seismic"
	"github.com/joelefrain/gura-forge/internal/seismic/spectral"
)

// Config is the oscillator grid: natural periods in seconds and damping
// ratios as fractions of critical damping.
type Config struct {
	Periods  []float64
	Dampings []float64
}

// Validate rejects empty or non-physical grids.
func (c *Config) Validate() error {
	if len(c.Periods) == 0 || len(c.Dampings) == 0 {
		return errors.Newf("empty period or damping grid").
			Component("response").
			Category(errors.CategoryConfiguration).
			Build()
	}
	for _, p := range c.Periods {
		if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return errors.Newf("natural period must be positive: %g s", p).
				Component("response").
				Category(errors.CategoryConfiguration).
				Build()
		}
	}
	for _, d := range c.Dampings {
		if d <= 0 || d >= 1 || math.IsNaN(d) {
			return errors.Newf("damping ratio must be in (0, 1): %g", d).
				Component("response").
				Category(errors.CategoryConfiguration).
				Build()
		}
	}
	return nil
}

// Point is the oscillator response at one (period, damping) grid point.
type Point struct {
	Period  float64
	Damping float64

	Sd  float64 // peak relative displacement, cm
	Sv  float64 // peak relative velocity, cm/s
	Sa  float64 // peak absolute acceleration, cm/s²
	PSv float64 // pseudo-velocity ω·Sd
	PSa float64 // pseudo-acceleration ω²·Sd
}

// njCoeffs are the recurrence coefficients for one (ω, ξ, Δt).
type njCoeffs struct {
	a11, a12, a21, a22 float64
	b11, b12, b21, b22 float64
}

// newNJCoeffs computes the exact state-transition coefficients for linear
// excitation interpolation (unit mass, stiffness k = ω²).
func newNJCoeffs(omega, xi, dt float64) njCoeffs {
	wd := omega * math.Sqrt(1-xi*xi)
	k := omega * omega
	e := math.Exp(-xi * omega * dt)
	s := math.Sin(wd * dt)
	c := math.Cos(wd * dt)
	sq := math.Sqrt(1 - xi*xi)

	var nj njCoeffs
	nj.a11 = e * (xi/sq*s + c)
	nj.a12 = e / wd * s
	nj.a21 = -omega / sq * e * s
	nj.a22 = e * (c - xi/sq*s)

	twoXiOverWdt := 2 * xi / (omega * dt)
	nj.b11 = 1 / k * (twoXiOverWdt +
		e*(((1-2*xi*xi)/(wd*dt)-xi/sq)*s-(1+twoXiOverWdt)*c))
	nj.b12 = 1 / k * (1 - twoXiOverWdt +
		e*((2*xi*xi-1)/(wd*dt)*s+twoXiOverWdt*c))
	nj.b21 = 1 / k * (-1/dt +
		e*((omega/sq+xi/(dt*wd))*s+c/dt))
	nj.b22 = 1 / (k * dt) * (1 - e*(xi/sq*s+c))
	return nj
}

// oscillate runs the recurrence for one grid point and returns the peak
// responses. accel is the ground acceleration; the effective excitation per
// unit mass is p = −accel.
func oscillate(accel []float64, omega, xi, dt float64) (sd, sv, sa float64) {
	nj := newNJCoeffs(omega, xi, dt)

	var u, v float64
	for i := 0; i < len(accel)-1; i++ {
		p0 := -accel[i]
		p1 := -accel[i+1]

		uNext := nj.a11*u + nj.a12*v + nj.b11*p0 + nj.b12*p1
		vNext := nj.a21*u + nj.a22*v + nj.b21*p0 + nj.b22*p1
		u, v = uNext, vNext

		if a := math.Abs(u); a > sd {
			sd = a
		}
		if a := math.Abs(v); a > sv {
			sv = a
		}
		// Absolute acceleration from the equation of motion:
		// ü + a_g = −(2ξωv + ω²u).
		if a := math.Abs(2*xi*omega*v + omega*omega*u); a > sa {
			sa = a
		}
	}
	return sd, sv, sa
}

// Compute solves the grid with the time-domain recurrence.
func Compute(accel []float64, fs float64, cfg Config) ([]Point, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(accel) < 2 {
		return nil, errors.Newf("series too short for oscillator response: %d samples", len(accel)).
			Component("response").
			Category(errors.CategoryDataIntegrity).
			Build()
	}
	if fs <= 0 {
		return nil, errors.Newf("invalid sampling frequency %g Hz", fs).
			Component("response").
			Category(errors.CategoryDataIntegrity).
			Build()
	}
	if !seismic.AllFinite(accel) {
		return nil, errors.Newf("non-finite acceleration sample").
			Component("response").
			Category(errors.CategoryNumerical).
			Build()
	}

	dt := 1 / fs
	out := make([]Point, 0, len(cfg.Periods)*len(cfg.Dampings))
	for _, damping := range cfg.Dampings {
		for _, period := range cfg.Periods {
			omega := 2 * math.Pi / period
			sd, sv, sa := oscillate(accel, omega, damping, dt)

			pt := Point{
				Period:  period,
				Damping: damping,
				Sd:      sd,
				Sv:      sv,
				Sa:      sa,
				PSv:     omega * sd,
				PSa:     omega * omega * sd,
			}
			if !finitePoint(pt) {
				return nil, errors.Newf("non-finite oscillator response at T=%g s, damping %g", period, damping).
					Component("response").
					Category(errors.CategoryNumerical).
					Context("period_s", period).
					Context("damping", damping).
					Build()
			}
			out = append(out, pt)
		}
	}
	return out, nil
}

// ComputeFromFourier solves the same grid through the frequency domain:
// U(ω) = −A(ω)·H(ω) with H(ω) = 1/(ω₀²−ω²+2iξω₀ω), inverted back to the
// time domain per grid point.
func ComputeFromFourier(accel []float64, fs float64, cfg Config) ([]Point, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(accel) < 2 || fs <= 0 {
		return nil, errors.Newf("series too short or unsampled for Fourier-route response").
			Component("response").
			Category(errors.CategoryDataIntegrity).
			Build()
	}
	if !seismic.AllFinite(accel) {
		return nil, errors.Newf("non-finite acceleration sample").
			Component("response").
			Category(errors.CategoryNumerical).
			Build()
	}

	// Pad generously so the oscillator's free decay does not wrap around.
	size := spectral.NextPowerOf2(2 * len(accel))
	plan, err := algofft.NewPlan64(size)
	if err != nil {
		return nil, errors.Newf("fft plan for size %d: %v", size, err).
			Component("response").
			Category(errors.CategoryConfiguration).
			Build()
	}

	padded := make([]complex128, size)
	for i, v := range accel {
		padded[i] = complex(v, 0)
	}
	ag := make([]complex128, size)
	if err := plan.Forward(ag, padded); err != nil {
		return nil, errors.Newf("forward fft: %v", err).
			Component("response").
			Category(errors.CategoryNumerical).
			Build()
	}

	uFreq := make([]complex128, size)
	uTime := make([]complex128, size)
	vFreq := make([]complex128, size)
	vTime := make([]complex128, size)

	out := make([]Point, 0, len(cfg.Periods)*len(cfg.Dampings))
	for _, damping := range cfg.Dampings {
		for _, period := range cfg.Periods {
			w0 := 2 * math.Pi / period

			for k := range uFreq {
				// Signed angular frequency of bin k.
				kk := k
				if kk > size/2 {
					kk -= size
				}
				w := 2 * math.Pi * float64(kk) * fs / float64(size)

				h := complex(w0*w0-w*w, 2*damping*w0*w)
				u := -ag[k] / h
				uFreq[k] = u
				vFreq[k] = complex(0, w) * u
			}

			if err := plan.Inverse(uTime, uFreq); err != nil {
				return nil, errors.Newf("inverse fft: %v", err).
					Component("response").
					Category(errors.CategoryNumerical).
					Build()
			}
			if err := plan.Inverse(vTime, vFreq); err != nil {
				return nil, errors.Newf("inverse fft: %v", err).
					Component("response").
					Category(errors.CategoryNumerical).
					Build()
			}

			var sd, sv, sa float64
			for i := range accel {
				u := real(uTime[i])
				v := real(vTime[i])
				if a := math.Abs(u); a > sd {
					sd = a
				}
				if a := math.Abs(v); a > sv {
					sv = a
				}
				if a := math.Abs(2*damping*w0*v + w0*w0*u); a > sa {
					sa = a
				}
			}

			pt := Point{
				Period:  period,
				Damping: damping,
				Sd:      sd,
				Sv:      sv,
				Sa:      sa,
				PSv:     w0 * sd,
				PSa:     w0 * w0 * sd,
			}
			if !finitePoint(pt) {
				return nil, errors.Newf("non-finite Fourier-route response at T=%g s, damping %g", period, damping).
					Component("response").
					Category(errors.CategoryNumerical).
					Context("period_s", period).
					Context("damping", damping).
					Build()
			}
			out = append(out, pt)
		}
	}
	return out, nil
}

// VelDispFromFourier derives the Fourier velocity and displacement spectra
// |X|/ω and |X|/ω² from an amplitude spectrum.
func VelDispFromFourier(spec *spectral.Spectrum) (vel, disp []float64) {
	vel = make([]float64, spec.NumBins())
	disp = make([]float64, spec.NumBins())
	for i, f := range spec.Frequencies {
		w := 2 * math.Pi * f
		vel[i] = spec.Amplitude[i] / w
		disp[i] = spec.Amplitude[i] / (w * w)
	}
	return vel, disp
}

func finitePoint(p Point) bool {
	for _, v := range []float64{p.Sd, p.Sv, p.Sa, p.PSv, p.PSa} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
