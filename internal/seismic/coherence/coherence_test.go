package coherence

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelefrain/gura-forge/internal/errors"
	"github.com/joelefrain/gura-forge/internal/seismic/window"
)

func noiseSeries(seed int64, n int, fs float64) *Series {
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, n)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return &Series{SamplingFreq: fs, Data: data}
}

func TestMismatchedRates(t *testing.T) {
	x := noiseSeries(1, 1000, 100)
	y := noiseSeries(2, 1000, 200)

	_, err := Compute(x, y, Config{Window: window.TypeHann})
	require.Error(t, err)
	assert.True(t, errors.IsDataIntegrity(err))
}

func TestNonOverlappingSpans(t *testing.T) {
	x := noiseSeries(1, 500, 100) // covers [0, 5) s
	y := noiseSeries(2, 500, 100)
	y.Start = 10

	_, err := Compute(x, y, Config{Window: window.TypeHann})
	require.Error(t, err)
	assert.True(t, errors.IsDataIntegrity(err))
}

func TestSpanTooShortForTwoSegments(t *testing.T) {
	x := noiseSeries(1, 100, 100)
	y := noiseSeries(2, 100, 100)

	_, err := Compute(x, y, Config{Window: window.TypeHann, SegmentLength: 100})
	require.Error(t, err)
	assert.True(t, errors.IsDataIntegrity(err))
}

func TestBadOverlap(t *testing.T) {
	x := noiseSeries(1, 1000, 100)
	y := noiseSeries(2, 1000, 100)

	_, err := Compute(x, y, Config{Window: window.TypeHann, Overlap: 1})
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

// A record is perfectly coherent with a scaled copy of itself: unit
// coherence and zero phase at every resolved frequency.
func TestSelfCoherenceIsUnity(t *testing.T) {
	x := noiseSeries(7, 4096, 100)
	y := &Series{SamplingFreq: 100, Data: make([]float64, len(x.Data))}
	for i, v := range x.Data {
		y.Data[i] = 2.5 * v
	}

	res, err := Compute(x, y, Config{Window: window.TypeHann, SegmentLength: 512})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Segments, 2)

	for k, c := range res.Coherence {
		assert.InDelta(t, 1, c, 1e-9, "bin %d", k)
		assert.InDelta(t, 0, res.Phase[k], 1e-9, "bin %d", k)
	}
}

// Independent noise realizations must decorrelate under segment averaging.
func TestIndependentNoiseDecorrelates(t *testing.T) {
	x := noiseSeries(11, 8192, 100)
	y := noiseSeries(13, 8192, 100)

	res, err := Compute(x, y, Config{Window: window.TypeHann, SegmentLength: 256})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Segments, 16)

	var mean float64
	for _, c := range res.Coherence {
		require.GreaterOrEqual(t, c, 0.0)
		require.LessOrEqual(t, c, 1.0)
		mean += c
	}
	mean /= float64(len(res.Coherence))
	assert.Less(t, mean, 0.5)
}

func TestOffsetRecordsAlignOnCommonSpan(t *testing.T) {
	full := noiseSeries(21, 3000, 100) // [0, 30) s
	late := &Series{
		Start:        5,
		SamplingFreq: 100,
		Data:         full.Data[500:2500],
	}

	res, err := Compute(full, late, Config{Window: window.TypeHann, SegmentLength: 256})
	require.NoError(t, err)

	// The shared samples are identical, so coherence stays at unity.
	for k, c := range res.Coherence {
		assert.InDelta(t, 1, c, 1e-9, "bin %d", k)
	}
}

func TestAlignOverlapClampsRoundedBounds(t *testing.T) {
	// A 0.05 s start offset at 10 Hz rounds both the start index and the
	// span length upward; the trimmed slices must stay inside both series.
	x := &Series{Start: 0, SamplingFreq: 10, Data: make([]float64, 100)}
	y := &Series{Start: 0.05, SamplingFreq: 10, Data: make([]float64, 100)}

	xs, ys, err := alignOverlap(x, y)
	require.NoError(t, err)
	assert.Equal(t, len(xs), len(ys))
	assert.NotEmpty(t, xs)
	assert.LessOrEqual(t, len(xs), len(x.Data))
}

func TestDefaultSegmentation(t *testing.T) {
	x := noiseSeries(31, 4500, 100)
	y := noiseSeries(32, 4500, 100)

	res, err := Compute(x, y, Config{Window: window.TypeHann})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Segments, DefaultSegments)
	require.NotEmpty(t, res.Frequencies)
	assert.Greater(t, res.Frequencies[0], 0.0)
}
