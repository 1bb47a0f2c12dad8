// Package filter designs and applies the digital filters used by the
// preprocessor. Filters are realised as cascades of biquad sections with
// Butterworth pole placement; coefficients follow the audio EQ cookbook
// bilinear-transform formulas.
package filter

import (
	"math"

	"github.com/joelefrain/gura-forge/internal/errors"
	"github.com/joelefrain/gura-forge/internal/seismic/window"
)

// Type identifies a filter family.
type Type string

const (
	TypeNone     Type = "none"
	TypeLowpass  Type = "lowpass"
	TypeHighpass Type = "highpass"
	TypeBandpass Type = "bandpass"
	TypeBandstop Type = "bandstop"
)

// Valid reports whether t is a known filter type.
func (t Type) Valid() bool {
	switch t {
	case TypeNone, TypeLowpass, TypeHighpass, TypeBandpass, TypeBandstop:
		return true
	}
	return false
}

// Spec is a named filter configuration. Lowpass filters set only HighCutoff
// (the upper bound of the passband), highpass filters set only LowCutoff;
// band filters set both with 0 < low < high < Nyquist.
type Spec struct {
	Name         string
	Type         Type
	LowCutoff    float64 // Hz
	HighCutoff   float64 // Hz
	Order        int
	TaperType    window.Type
	TaperPercent float64
}

func (s *Spec) configErr(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("filter").
		Category(errors.CategoryConfiguration).
		FilterContext(string(s.Type), s.LowCutoff, s.HighCutoff, s.Order).
		Build()
}

// Validate checks the spec against the record's Nyquist frequency. Invalid
// parameters fail outright; nothing is clamped.
func (s *Spec) Validate(nyquist float64) error {
	if !s.Type.Valid() {
		return s.configErr("unknown filter type %q", s.Type)
	}
	if s.Type == TypeNone {
		return nil
	}
	if s.Order <= 0 {
		return s.configErr("filter order must be positive: %d", s.Order)
	}
	if s.TaperPercent != 0 && !s.TaperType.Valid() {
		return s.configErr("unknown taper type %q", s.TaperType)
	}

	switch s.Type {
	case TypeLowpass:
		if s.LowCutoff != 0 {
			return s.configErr("lowpass takes exactly one cutoff (high), low cutoff %g Hz given", s.LowCutoff)
		}
		if s.HighCutoff <= 0 || s.HighCutoff >= nyquist {
			return s.configErr("lowpass cutoff %g Hz outside (0, %g) Hz", s.HighCutoff, nyquist)
		}
	case TypeHighpass:
		if s.HighCutoff != 0 {
			return s.configErr("highpass takes exactly one cutoff (low), high cutoff %g Hz given", s.HighCutoff)
		}
		if s.LowCutoff <= 0 || s.LowCutoff >= nyquist {
			return s.configErr("highpass cutoff %g Hz outside (0, %g) Hz", s.LowCutoff, nyquist)
		}
	case TypeBandpass, TypeBandstop:
		if s.LowCutoff <= 0 || s.HighCutoff <= s.LowCutoff || s.HighCutoff >= nyquist {
			return s.configErr("band cutoffs must satisfy 0 < %g < %g < %g Hz",
				s.LowCutoff, s.HighCutoff, nyquist)
		}
	}
	return nil
}

// section is one second-order filter stage in direct form I. Coefficients are
// stored pre-divided by a0.
type section struct {
	b0a0, b1a0, b2a0, a1a0, a2a0 float64

	in1, in2   float64
	out1, out2 float64
}

func newSection(a0, a1, a2, b0, b1, b2 float64) *section {
	return &section{
		b0a0: b0 / a0,
		b1a0: b1 / a0,
		b2a0: b2 / a0,
		a1a0: a1 / a0,
		a2a0: a2 / a0,
	}
}

// apply filters input in place.
func (s *section) apply(input []float64) {
	for i := range input {
		output := s.b0a0*input[i] + s.b1a0*s.in1 + s.b2a0*s.in2 -
			s.a1a0*s.out1 - s.a2a0*s.out2

		s.in2 = s.in1
		s.in1 = input[i]
		s.out2 = s.out1
		s.out1 = output

		input[i] = output
	}
}

func (s *section) reset() {
	s.in1, s.in2, s.out1, s.out2 = 0, 0, 0, 0
}

// Cascade is a chain of biquad sections applied in sequence. A nil or empty
// cascade is a pass-through.
type Cascade struct {
	sections []*section
}

// Apply filters buf in place through every section.
func (c *Cascade) Apply(buf []float64) {
	if c == nil {
		return
	}
	for _, s := range c.sections {
		s.apply(buf)
	}
}

// Reset clears all section state so the cascade can be reused on a new series.
func (c *Cascade) Reset() {
	if c == nil {
		return
	}
	for _, s := range c.sections {
		s.reset()
	}
}

// NumSections returns the number of biquad stages.
func (c *Cascade) NumSections() int {
	if c == nil {
		return 0
	}
	return len(c.sections)
}

// butterworthQ returns the quality factor for one Butterworth section.
// index ranges from 0 to (order/2 - 1).
func butterworthQ(order, index int) float64 {
	theta := math.Pi * float64(2*index+1) / (2 * float64(order))

	s := math.Sin(theta)
	if s == 0 {
		return 1 / math.Sqrt2
	}
	return 1 / (2 * s)
}

// rbjLowpass builds one cookbook lowpass section.
func rbjLowpass(freq, q, sampleRate float64) *section {
	w0 := 2 * math.Pi * freq / sampleRate
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)

	return newSection(
		1+alpha,
		-2*cosw0,
		1-alpha,
		(1-cosw0)/2,
		1-cosw0,
		(1-cosw0)/2,
	)
}

// rbjHighpass builds one cookbook highpass section.
func rbjHighpass(freq, q, sampleRate float64) *section {
	w0 := 2 * math.Pi * freq / sampleRate
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)

	return newSection(
		1+alpha,
		-2*cosw0,
		1-alpha,
		(1+cosw0)/2,
		-(1 + cosw0),
		(1+cosw0)/2,
	)
}

// rbjBandReject builds one cookbook notch section.
func rbjBandReject(freq, q, sampleRate float64) *section {
	w0 := 2 * math.Pi * freq / sampleRate
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)

	return newSection(
		1+alpha,
		-2*cosw0,
		1-alpha,
		1,
		-2*cosw0,
		1,
	)
}

// firstOrderLowpass builds the odd-order trailing section (B2=A2=0).
func firstOrderLowpass(freq, sampleRate float64) *section {
	k := math.Tan(math.Pi * freq / sampleRate)
	norm := 1 / (1 + k)

	return newSection(1, (k-1)*norm, 0, k*norm, k*norm, 0)
}

func firstOrderHighpass(freq, sampleRate float64) *section {
	k := math.Tan(math.Pi * freq / sampleRate)
	norm := 1 / (1 + k)

	return newSection(1, (k-1)*norm, 0, norm, -norm, 0)
}

func butterworthLowpass(freq float64, order int, sampleRate float64) []*section {
	sections := make([]*section, 0, (order+1)/2)
	for i := order/2 - 1; i >= 0; i-- {
		sections = append(sections, rbjLowpass(freq, butterworthQ(order, i), sampleRate))
	}
	if order%2 != 0 {
		sections = append(sections, firstOrderLowpass(freq, sampleRate))
	}
	return sections
}

func butterworthHighpass(freq float64, order int, sampleRate float64) []*section {
	sections := make([]*section, 0, (order+1)/2)
	for i := order/2 - 1; i >= 0; i-- {
		sections = append(sections, rbjHighpass(freq, butterworthQ(order, i), sampleRate))
	}
	if order%2 != 0 {
		sections = append(sections, firstOrderHighpass(freq, sampleRate))
	}
	return sections
}

// Design builds the filter cascade for a validated spec. A TypeNone spec
// yields a nil cascade (pass-through).
func Design(spec *Spec, sampleRate float64) (*Cascade, error) {
	if err := spec.Validate(sampleRate / 2); err != nil {
		return nil, err
	}
	if spec.Type == TypeNone {
		return nil, nil
	}

	var sections []*section
	switch spec.Type {
	case TypeLowpass:
		sections = butterworthLowpass(spec.HighCutoff, spec.Order, sampleRate)
	case TypeHighpass:
		sections = butterworthHighpass(spec.LowCutoff, spec.Order, sampleRate)
	case TypeBandpass:
		// Highpass at the low cutoff cascaded with lowpass at the high cutoff.
		sections = append(
			butterworthHighpass(spec.LowCutoff, spec.Order, sampleRate),
			butterworthLowpass(spec.HighCutoff, spec.Order, sampleRate)...,
		)
	case TypeBandstop:
		// Cascade of notch sections centered at the geometric mean of the band.
		f0 := math.Sqrt(spec.LowCutoff * spec.HighCutoff)
		q := f0 / (spec.HighCutoff - spec.LowCutoff)
		for range spec.Order {
			sections = append(sections, rbjBandReject(f0, q, sampleRate))
		}
	}
	return &Cascade{sections: sections}, nil
}
