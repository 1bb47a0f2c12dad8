// Package window generates taper windows for preprocessing and spectral
// analysis. Full-length windows are used before an FFT; end tapers suppress
// edge transients before filtering.
package window

import (
	"math"

	"github.com/cwbudde/algo-vecmath"

	"github.com/joelefrain/gura-forge/internal/errors"
)

// Type identifies a window function.
type Type string

const (
	TypeRectangular Type = "rectangular"
	TypeCosine      Type = "cosine"
	TypeHann        Type = "hann"
	TypeHamming     Type = "hamming"
)

// Valid reports whether t is a known window type.
func (t Type) Valid() bool {
	switch t {
	case TypeRectangular, TypeCosine, TypeHann, TypeHamming:
		return true
	}
	return false
}

// Cosine-sum coefficients, evaluated as w(x) = Σ c[k]·cos(k·2πx) with the
// sign convention folded into the coefficients.
var (
	hannCoeffs    = []float64{0.5, -0.5}
	hammingCoeffs = []float64{0.54, -0.46}
)

func cosineFromCoeffs(x float64, coeffs []float64) float64 {
	phase := 2 * math.Pi * x

	sum := 0.0
	for k, c := range coeffs {
		sum += c * math.Cos(float64(k)*phase)
	}
	return sum
}

func eval(t Type, x float64) float64 {
	switch t {
	case TypeHann:
		return cosineFromCoeffs(x, hannCoeffs)
	case TypeHamming:
		return cosineFromCoeffs(x, hammingCoeffs)
	case TypeCosine:
		return math.Sin(math.Pi * x)
	default:
		return 1
	}
}

// Generate returns symmetric window coefficients of the given length.
func Generate(t Type, length int) []float64 {
	if length <= 0 {
		return nil
	}
	out := make([]float64, length)
	if length == 1 {
		out[0] = 1
		return out
	}
	den := float64(length - 1)
	for i := range out {
		out[i] = eval(t, float64(i)/den)
	}
	return out
}

// Apply multiplies buf in-place by the selected full-length window.
func Apply(t Type, buf []float64) {
	if len(buf) == 0 || t == TypeRectangular {
		return
	}
	coeffs := Generate(t, len(buf))
	vecmath.MulBlockInPlace(buf, coeffs)
}

// EndTaper returns coefficients that taper `percent` percent of each end of a
// series with the rising/falling halves of the selected window, leaving the
// middle untouched (a Tukey-style taper for TypeCosine/TypeHann).
func EndTaper(t Type, length int, percent float64) ([]float64, error) {
	if length <= 0 {
		return nil, errors.Newf("taper length must be positive: %d", length).
			Component("window").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if percent < 0 || percent > 50 {
		return nil, errors.Newf("taper percentage must be in [0, 50]: %g", percent).
			Component("window").
			Category(errors.CategoryConfiguration).
			Build()
	}

	out := make([]float64, length)
	for i := range out {
		out[i] = 1
	}
	if t == TypeRectangular || percent == 0 {
		return out, nil
	}

	edge := int(math.Round(float64(length) * percent / 100))
	if edge < 1 {
		return out, nil
	}
	if 2*edge > length {
		edge = length / 2
	}

	// Rising half over [0, 0.5) of the window shape, mirrored on the far end.
	for i := 0; i < edge; i++ {
		x := 0.5 * float64(i) / float64(edge)
		w := eval(t, x)
		out[i] = w
		out[length-1-i] = w
	}
	return out, nil
}

// ApplyEndTaper tapers buf in place. A zero percentage is a no-op.
func ApplyEndTaper(t Type, buf []float64, percent float64) error {
	if len(buf) == 0 || percent == 0 || t == TypeRectangular {
		return nil
	}
	coeffs, err := EndTaper(t, len(buf), percent)
	if err != nil {
		return err
	}
	vecmath.MulBlockInPlace(buf, coeffs)
	return nil
}

// CoherentGain returns the mean of the window coefficients, used to undo the
// amplitude loss a window introduces in spectral estimates.
func CoherentGain(coeffs []float64) float64 {
	if len(coeffs) == 0 {
		return 1
	}
	sum := 0.0
	for _, c := range coeffs {
		sum += c
	}
	return sum / float64(len(coeffs))
}
