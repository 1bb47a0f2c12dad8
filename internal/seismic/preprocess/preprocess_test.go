package preprocess

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelefrain/gura-forge/internal/errors"
	"github.com/joelefrain/gura-forge/internal/seismic"
	"github.com/joelefrain/gura-forge/internal/seismic/filter"
	"github.com/joelefrain/gura-forge/internal/seismic/window"
)

const fs = 100.0

// sineRecord builds a(t) = A·sin(2πf₀t) on all three components.
func sineRecord(amplitude, freq, seconds float64) *seismic.TriaxialSeries {
	n := int(seconds * fs)
	s := make([]float64, n)
	for i := range s {
		s[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/fs)
	}
	return &seismic.TriaxialSeries{
		SamplingFreq: fs,
		Vertical:     append([]float64(nil), s...),
		North:        append([]float64(nil), s...),
		East:         append([]float64(nil), s...),
	}
}

func TestRun_NoneFilterIsIdentity(t *testing.T) {
	rec := sineRecord(100, 2, 10)
	orig := append([]float64(nil), rec.North...)

	res, err := Run(rec, &filter.Spec{Type: filter.TypeNone}, seismic.ProcessFiltered, Options{})
	require.NoError(t, err)

	assert.Equal(t, orig, res.Accel.North, "none filter must reproduce samples exactly")
	assert.Nil(t, res.Vel)
	assert.Nil(t, res.Disp)
	assert.InDelta(t, 100, res.PGA.North, 1e-9)
}

func TestRun_InputNotModified(t *testing.T) {
	rec := sineRecord(100, 2, 5)
	orig := append([]float64(nil), rec.East...)

	spec := &filter.Spec{Type: filter.TypeLowpass, HighCutoff: 10, Order: 4,
		TaperType: window.TypeCosine, TaperPercent: 5}
	_, err := Run(rec, spec, seismic.ProcessBoth, Options{})
	require.NoError(t, err)
	assert.Equal(t, orig, rec.East)
}

func TestRun_SinusoidIntegration(t *testing.T) {
	// A = 100 cm/s², f₀ = 2 Hz: PGV ≈ A/(2πf₀) ≈ 7.96 cm/s.
	rec := sineRecord(100, 2, 10)

	res, err := Run(rec, &filter.Spec{Type: filter.TypeNone}, seismic.ProcessIntegrated, Options{})
	require.NoError(t, err)
	require.NotNil(t, res.Vel)
	require.NotNil(t, res.Disp)

	wantPGV := 100 / (2 * math.Pi * 2)
	assert.InDelta(t, wantPGV, res.PGV.North, wantPGV*0.05)

	wantPGD := 100 / math.Pow(2*math.Pi*2, 2)
	assert.InDelta(t, wantPGD, res.PGD.North, wantPGD*0.05)

	// Integration constants come out as mean offsets and are removed.
	assert.InDelta(t, 0, mean(res.Vel.North), 1e-9)
	assert.InDelta(t, 0, mean(res.Disp.North), 1e-9)
}

func mean(x []float64) float64 {
	sum := 0.0
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

func TestRun_BaselineRemovesOffset(t *testing.T) {
	rec := sineRecord(10, 2, 5)
	for i := range rec.Vertical {
		rec.Vertical[i] += 25 // constant offset
	}

	res, err := Run(rec, &filter.Spec{Type: filter.TypeNone}, seismic.ProcessBaseline, Options{})
	require.NoError(t, err)

	sum := 0.0
	for _, v := range res.Accel.Vertical {
		sum += v
	}
	assert.InDelta(t, 0, sum/float64(len(res.Accel.Vertical)), 1e-9)
}

func TestRun_DetrendRemovesRamp(t *testing.T) {
	n := 500
	rec := &seismic.TriaxialSeries{
		SamplingFreq: fs,
		Vertical:     make([]float64, n),
		North:        make([]float64, n),
		East:         make([]float64, n),
	}
	for i := range rec.North {
		rec.North[i] = 0.02*float64(i) + 3
	}

	res, err := Run(rec, &filter.Spec{Type: filter.TypeNone}, seismic.ProcessBaseline,
		Options{DetrendLinear: true})
	require.NoError(t, err)

	for i, v := range res.Accel.North {
		assert.InDelta(t, 0, v, 1e-9, "index %d", i)
	}
}

func TestRun_FilterRemovesHighFrequency(t *testing.T) {
	rec := sineRecord(100, 2, 10)
	// Contaminate with a 30 Hz tone.
	for i := range rec.North {
		rec.North[i] += 50 * math.Sin(2*math.Pi*30*float64(i)/fs)
	}

	spec := &filter.Spec{Type: filter.TypeLowpass, HighCutoff: 10, Order: 4,
		TaperType: window.TypeCosine, TaperPercent: 2}
	res, err := Run(rec, spec, seismic.ProcessFiltered, Options{})
	require.NoError(t, err)

	// The 30 Hz component is gone; peak is close to the 2 Hz amplitude.
	assert.InDelta(t, 100, res.PGA.North, 8)
}

func TestRun_ConfigurationErrors(t *testing.T) {
	rec := sineRecord(10, 2, 2)

	tests := []struct {
		name string
		spec filter.Spec
		pt   seismic.ProcessType
	}{
		{"cutoff at nyquist", filter.Spec{Type: filter.TypeLowpass, HighCutoff: 50, Order: 4}, seismic.ProcessFiltered},
		{"zero order", filter.Spec{Type: filter.TypeHighpass, LowCutoff: 1, Order: 0}, seismic.ProcessFiltered},
		{"unknown process type", filter.Spec{Type: filter.TypeNone}, seismic.ProcessType("resampled")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(rec, &tt.spec, tt.pt, Options{})
			require.Error(t, err)
			assert.True(t, errors.IsConfiguration(err))
		})
	}
}

func TestRun_EmptyRecordFails(t *testing.T) {
	rec := &seismic.TriaxialSeries{SamplingFreq: fs}
	_, err := Run(rec, &filter.Spec{Type: filter.TypeNone}, seismic.ProcessFiltered, Options{})
	require.Error(t, err)
	assert.True(t, errors.IsDataIntegrity(err))
}

func TestRun_ConcurrentRecords(t *testing.T) {
	// Run executes in parallel across records; it must not share state.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := sineRecord(100, 2, 2)
			res, err := Run(rec, &filter.Spec{Type: filter.TypeNone}, seismic.ProcessFiltered, Options{})
			assert.NoError(t, err)
			if err == nil {
				assert.InDelta(t, 100, res.PGA.North, 1e-9)
			}
		}()
	}
	wg.Wait()
}

func TestIntegrate_Constant(t *testing.T) {
	// ∫c dt over a unit step grid is a ramp.
	x := []float64{2, 2, 2, 2, 2}
	v := Integrate(x, 0.5)
	assert.InDeltaSlice(t, []float64{0, 1, 2, 3, 4}, v, 1e-12)
}
