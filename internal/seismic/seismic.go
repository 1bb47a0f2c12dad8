// Package seismic defines the shared domain types of the strong-motion
// processing core: typed component/record/process enumerations and the
// triaxial time-series value type every analyzer consumes.
package seismic

import (
	"math"

	"github.com/joelefrain/gura-forge/internal/errors"
)

// Gravity is the standard gravitational acceleration in cm/s². All raw and
// derived accelerations in this module are expressed in cm/s².
const Gravity = 980.665

// Component identifies one axis of a triaxial record, or the resultant
// combination of the three orthogonal axes.
type Component string

const (
	ComponentVertical  Component = "vertical"
	ComponentNorth     Component = "north"
	ComponentEast      Component = "east"
	ComponentResultant Component = "resultant"
)

// Orthogonal lists the three measured components in storage order.
func Orthogonal() []Component {
	return []Component{ComponentVertical, ComponentNorth, ComponentEast}
}

// Valid reports whether c is a known component.
func (c Component) Valid() bool {
	switch c {
	case ComponentVertical, ComponentNorth, ComponentEast, ComponentResultant:
		return true
	}
	return false
}

// RecordType distinguishes metrics derived from the raw record from metrics
// derived from a processed record.
type RecordType string

const (
	RecordTypeOriginal  RecordType = "original"
	RecordTypeProcessed RecordType = "processed"
)

// Valid reports whether rt is a known record type.
func (rt RecordType) Valid() bool {
	return rt == RecordTypeOriginal || rt == RecordTypeProcessed
}

// ProcessType selects which preprocessing steps are applied to a record.
type ProcessType string

const (
	// ProcessFiltered tapers and filters the record. A "none" filter makes
	// this an identity transform.
	ProcessFiltered ProcessType = "filtered"
	// ProcessBaseline removes the mean (and optionally a linear trend).
	ProcessBaseline ProcessType = "baseline_corrected"
	// ProcessIntegrated integrates acceleration to velocity and displacement.
	ProcessIntegrated ProcessType = "integrated"
	// ProcessBoth applies baseline correction, filtering and integration.
	ProcessBoth ProcessType = "both"
)

// Valid reports whether pt is a known process type.
func (pt ProcessType) Valid() bool {
	switch pt {
	case ProcessFiltered, ProcessBaseline, ProcessIntegrated, ProcessBoth:
		return true
	}
	return false
}

// Integrates reports whether pt produces velocity and displacement series.
func (pt ProcessType) Integrates() bool {
	return pt == ProcessIntegrated || pt == ProcessBoth
}

// Filters reports whether pt applies the taper/filter chain.
func (pt ProcessType) Filters() bool {
	return pt == ProcessFiltered || pt == ProcessBoth
}

// CorrectsBaseline reports whether pt removes the baseline.
func (pt ProcessType) CorrectsBaseline() bool {
	return pt == ProcessBaseline || pt == ProcessBoth
}

// TriaxialSeries is one triaxial acceleration time series sampled at a fixed
// rate. The three component slices always have equal length.
type TriaxialSeries struct {
	SamplingFreq float64 // Hz
	Vertical     []float64
	North        []float64
	East         []float64
}

// NumSamples returns the per-component sample count.
func (ts *TriaxialSeries) NumSamples() int {
	return len(ts.Vertical)
}

// Dt returns the sampling interval in seconds.
func (ts *TriaxialSeries) Dt() float64 {
	if ts.SamplingFreq <= 0 {
		return 0
	}
	return 1 / ts.SamplingFreq
}

// Nyquist returns the Nyquist frequency in Hz.
func (ts *TriaxialSeries) Nyquist() float64 {
	return ts.SamplingFreq / 2
}

// Component returns the samples of one orthogonal component.
func (ts *TriaxialSeries) Component(c Component) []float64 {
	switch c {
	case ComponentVertical:
		return ts.Vertical
	case ComponentNorth:
		return ts.North
	case ComponentEast:
		return ts.East
	}
	return nil
}

// Validate checks the series against a declared sample count. A zero-length
// series, a count mismatch or a ragged component is a data-integrity failure.
func (ts *TriaxialSeries) Validate(declaredSamples int) error {
	if ts.SamplingFreq <= 0 {
		return errors.Newf("invalid sampling frequency %g Hz", ts.SamplingFreq).
			Component("seismic").
			Category(errors.CategoryDataIntegrity).
			Build()
	}
	n := len(ts.Vertical)
	if n == 0 {
		return errors.Newf("record has no samples").
			Component("seismic").
			Category(errors.CategoryDataIntegrity).
			Build()
	}
	if len(ts.North) != n || len(ts.East) != n {
		return errors.Newf("ragged components: vertical=%d north=%d east=%d",
			n, len(ts.North), len(ts.East)).
			Component("seismic").
			Category(errors.CategoryDataIntegrity).
			Build()
	}
	if declaredSamples >= 0 && n != declaredSamples {
		return errors.Newf("sample count mismatch: declared %d, got %d", declaredSamples, n).
			Component("seismic").
			Category(errors.CategoryDataIntegrity).
			Context("declared_samples", declaredSamples).
			Context("actual_samples", n).
			Build()
	}
	return nil
}

// PeakAbs returns max(|x|) over the series, 0 for an empty slice.
func PeakAbs(x []float64) float64 {
	peak := 0.0
	for _, v := range x {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak
}

// AllFinite reports whether every value in x is finite.
func AllFinite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
