package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelefrain/gura-forge/internal/errors"
)

func TestGenerate_Hann(t *testing.T) {
	w := Generate(TypeHann, 5)
	require.Len(t, w, 5)

	// Symmetric Hann: zero at both ends, unity at center.
	assert.InDelta(t, 0.0, w[0], 1e-12)
	assert.InDelta(t, 1.0, w[2], 1e-12)
	assert.InDelta(t, 0.0, w[4], 1e-12)
	assert.InDelta(t, w[1], w[3], 1e-12)
}

func TestGenerate_Hamming_EndValue(t *testing.T) {
	w := Generate(TypeHamming, 11)
	assert.InDelta(t, 0.08, w[0], 1e-12)
	assert.InDelta(t, 1.0, w[5], 1e-12)
}

func TestGenerate_Degenerate(t *testing.T) {
	assert.Nil(t, Generate(TypeHann, 0))
	assert.Equal(t, []float64{1}, Generate(TypeHann, 1))
}

func TestApply_RectangularIsIdentity(t *testing.T) {
	buf := []float64{1, 2, 3, 4}
	Apply(TypeRectangular, buf)
	assert.Equal(t, []float64{1, 2, 3, 4}, buf)
}

func TestEndTaper_MiddleUntouched(t *testing.T) {
	coeffs, err := EndTaper(TypeCosine, 100, 5)
	require.NoError(t, err)
	require.Len(t, coeffs, 100)

	// 5% of each end tapered, interior at unity.
	for i := 5; i < 95; i++ {
		assert.InDelta(t, 1.0, coeffs[i], 1e-12, "index %d", i)
	}
	assert.Less(t, coeffs[0], 0.5)
	assert.InDelta(t, coeffs[1], coeffs[98], 1e-12)
}

func TestEndTaper_ZeroPercent(t *testing.T) {
	coeffs, err := EndTaper(TypeHann, 10, 0)
	require.NoError(t, err)
	for _, c := range coeffs {
		assert.Equal(t, 1.0, c)
	}
}

func TestEndTaper_InvalidPercent(t *testing.T) {
	_, err := EndTaper(TypeHann, 10, 60)
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))

	_, err = EndTaper(TypeHann, 0, 5)
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestCoherentGain(t *testing.T) {
	w := Generate(TypeHann, 1024)
	// Hann coherent gain approaches 0.5 for long windows.
	assert.InDelta(t, 0.5, CoherentGain(w), 1e-3)
}
