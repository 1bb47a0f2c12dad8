// Package preprocess turns a raw triaxial acceleration record into a
// processed record: baseline correction, end tapering, digital filtering and
// numerical integration, each applied independently per component.
package preprocess

import (
	"log/slog"

	"github.com/joelefrain/gura-forge/internal/errors"
	"github.com/joelefrain/gura-forge/internal/logging"
	"github.com/joelefrain/gura-forge/internal/seismic"
	"github.com/joelefrain/gura-forge/internal/seismic/filter"
	"github.com/joelefrain/gura-forge/internal/seismic/window"
)

func getLogger() *slog.Logger {
	return logging.ForService("preprocess")
}

// Options tunes optional preprocessing behavior.
type Options struct {
	// DetrendLinear removes a least-squares linear trend in addition to the
	// mean during baseline correction.
	DetrendLinear bool
}

// Peaks holds the peak absolute value of a series per component.
type Peaks struct {
	Vertical float64
	North    float64
	East     float64
}

// Get returns the peak for one orthogonal component.
func (p Peaks) Get(c seismic.Component) float64 {
	switch c {
	case seismic.ComponentVertical:
		return p.Vertical
	case seismic.ComponentNorth:
		return p.North
	case seismic.ComponentEast:
		return p.East
	}
	return 0
}

// Result is the full preprocessor output for one (record, filter, process
// type) scope. Vel and Disp are nil unless the process type integrates.
type Result struct {
	ProcessType seismic.ProcessType

	Accel seismic.TriaxialSeries
	Vel   *seismic.TriaxialSeries
	Disp  *seismic.TriaxialSeries

	PGA Peaks
	PGV Peaks
	PGD Peaks
}

// Run executes the preprocessing chain. The input record is never modified.
func Run(rec *seismic.TriaxialSeries, spec *filter.Spec, pt seismic.ProcessType, opts Options) (*Result, error) {
	if !pt.Valid() {
		return nil, errors.Newf("unknown process type %q", pt).
			Component("preprocess").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := rec.Validate(-1); err != nil {
		return nil, err
	}
	if err := spec.Validate(rec.Nyquist()); err != nil {
		return nil, err
	}

	out := &Result{
		ProcessType: pt,
		Accel: seismic.TriaxialSeries{
			SamplingFreq: rec.SamplingFreq,
			Vertical:     append([]float64(nil), rec.Vertical...),
			North:        append([]float64(nil), rec.North...),
			East:         append([]float64(nil), rec.East...),
		},
	}

	for _, c := range seismic.Orthogonal() {
		buf := out.Accel.Component(c)

		if pt.CorrectsBaseline() {
			demean(buf)
			if opts.DetrendLinear {
				detrend(buf)
			}
		}

		if pt.Filters() && spec.Type != filter.TypeNone {
			if err := window.ApplyEndTaper(spec.TaperType, buf, spec.TaperPercent); err != nil {
				return nil, err
			}
			// Fresh cascade per component so no section state leaks across axes.
			cascade, err := filter.Design(spec, rec.SamplingFreq)
			if err != nil {
				return nil, err
			}
			cascade.Apply(buf)
		}

		if !seismic.AllFinite(buf) {
			return nil, errors.Newf("non-finite sample after filtering component %s", c).
				Component("preprocess").
				Category(errors.CategoryNumerical).
				Build()
		}
	}

	out.PGA = Peaks{
		Vertical: seismic.PeakAbs(out.Accel.Vertical),
		North:    seismic.PeakAbs(out.Accel.North),
		East:     seismic.PeakAbs(out.Accel.East),
	}

	if pt.Integrates() {
		dt := rec.Dt()
		vel := &seismic.TriaxialSeries{SamplingFreq: rec.SamplingFreq}
		disp := &seismic.TriaxialSeries{SamplingFreq: rec.SamplingFreq}

		vel.Vertical = Integrate(out.Accel.Vertical, dt)
		vel.North = Integrate(out.Accel.North, dt)
		vel.East = Integrate(out.Accel.East, dt)

		// The unknown initial condition shows up as a mean offset in the
		// integrated series. Remove it before the next integration so it
		// does not grow into a linear drift.
		demean(vel.Vertical)
		demean(vel.North)
		demean(vel.East)

		disp.Vertical = Integrate(vel.Vertical, dt)
		disp.North = Integrate(vel.North, dt)
		disp.East = Integrate(vel.East, dt)

		demean(disp.Vertical)
		demean(disp.North)
		demean(disp.East)

		for _, s := range [][]float64{
			vel.Vertical, vel.North, vel.East,
			disp.Vertical, disp.North, disp.East,
		} {
			if !seismic.AllFinite(s) {
				return nil, errors.Newf("non-finite sample after integration").
					Component("preprocess").
					Category(errors.CategoryNumerical).
					Build()
			}
		}

		out.Vel = vel
		out.Disp = disp
		out.PGV = Peaks{
			Vertical: seismic.PeakAbs(vel.Vertical),
			North:    seismic.PeakAbs(vel.North),
			East:     seismic.PeakAbs(vel.East),
		}
		out.PGD = Peaks{
			Vertical: seismic.PeakAbs(disp.Vertical),
			North:    seismic.PeakAbs(disp.North),
			East:     seismic.PeakAbs(disp.East),
		}
	}

	getLogger().Debug("preprocessing complete",
		"process_type", string(pt),
		"filter_type", string(spec.Type),
		"samples", out.Accel.NumSamples())

	return out, nil
}

// Integrate computes the cumulative trapezoidal integral of x with step dt.
// The output starts at zero, which re-zeroes the integration constant.
func Integrate(x []float64, dt float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	acc := 0.0
	for i := 1; i < len(x); i++ {
		acc += 0.5 * (x[i-1] + x[i]) * dt
		out[i] = acc
	}
	return out
}

// demean subtracts the series mean in place.
func demean(x []float64) {
	if len(x) == 0 {
		return
	}
	sum := 0.0
	for _, v := range x {
		sum += v
	}
	mean := sum / float64(len(x))
	for i := range x {
		x[i] -= mean
	}
}

// detrend removes a least-squares linear fit in place. Assumes the mean has
// already been removed.
func detrend(x []float64) {
	n := len(x)
	if n < 2 {
		return
	}

	// Slope of the least-squares line through (i, x[i]) with i centered.
	tMean := float64(n-1) / 2
	var num, den float64
	for i, v := range x {
		ti := float64(i) - tMean
		num += ti * v
		den += ti * ti
	}
	if den == 0 {
		return
	}
	slope := num / den

	var sum float64
	for _, v := range x {
		sum += v
	}
	intercept := sum/float64(n) - slope*tMean

	for i := range x {
		x[i] -= intercept + slope*float64(i)
	}
}
