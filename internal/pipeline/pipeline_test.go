package pipeline

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelefrain/gura-forge/internal/conf"
	"github.com/joelefrain/gura-forge/internal/datastore"
	"github.com/joelefrain/gura-forge/internal/seismic"
)

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "pipeline.db")

	settings.Processing.MaxConcurrent = 2
	settings.Processing.ProcessTypes = []string{"both"}
	settings.Processing.Filters = []conf.FilterSettings{{
		Name: "identity", Type: "none",
	}}
	settings.Processing.Response = conf.ResponseSettings{
		PeriodMin: 0.02, PeriodMax: 5, PeriodCount: 8,
		Dampings: []float64{0.05},
	}
	settings.Processing.Spectral = conf.SpectralSettings{Window: "hann", WithResultant: true}
	settings.Processing.Coherence = conf.CoherenceSettings{Window: "hann", Overlap: 0.5}
	settings.Processing.Stability = conf.StabilitySettings{Window: "hann", Segments: 4}
	return settings
}

func openStore(t *testing.T, settings *conf.Settings) *datastore.SQLiteStore {
	t.Helper()
	store := &datastore.SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// seedSineRecord stores a 10-second triaxial record sampled at 100 Hz with a
// distinct tone per component; the vertical one is the 100 cm/s², 2 Hz case.
func seedSineRecord(t *testing.T, store *datastore.SQLiteStore) *datastore.AccelerationRecord {
	t.Helper()
	const fs = 100.0
	const n = 1000

	station := &datastore.SeismicStation{Code: "TEST01", Name: "Test Site"}
	require.NoError(t, store.SaveStation(station))
	event := &datastore.SeismicEvent{EventID: "test-event", Magnitude: 5.5, OriginTime: time.Now().UTC()}
	require.NoError(t, store.SaveEvent(event))

	record := &datastore.AccelerationRecord{
		EventID: event.ID, StationID: station.ID,
		SamplingFreq: fs, NumSamples: n, StartTime: time.Now().UTC(),
	}
	samples := make([]datastore.AccelerationSample, n)
	for i := range samples {
		ti := float64(i) / fs
		samples[i] = datastore.AccelerationSample{
			SampleIndex: i,
			TimeOffset:  ti,
			Vertical:    100 * math.Sin(2*math.Pi*2*ti),
			North:       80 * math.Sin(2*math.Pi*3*ti),
			East:        60 * math.Sin(2*math.Pi*5*ti),
		}
	}
	record.PGAVertical = 100
	record.PGANorth = 80
	record.PGAEast = 60
	require.NoError(t, store.SaveRecord(record, samples))
	return record
}

func TestProcessRecordEndToEnd(t *testing.T) {
	settings := testSettings(t)
	store := openStore(t, settings)
	record := seedSineRecord(t, store)

	p := New(store, settings, nil)
	res, err := p.ProcessRecord(context.Background(), record.ID)
	require.NoError(t, err)
	for _, fe := range res.FamilyErrors {
		t.Errorf("family %s failed: %v", fe.Family, fe.Err)
	}
	require.NotEmpty(t, res.RunID)

	// Identity filter with baseline correction keeps the sinusoid intact:
	// PGA ~ 100 cm/s² and integrated PGV ~ A/(2πf0) ~ 7.96 cm/s.
	var processed datastore.ProcessedAccelerationRecord
	require.NoError(t, store.DB.Where("record_id = ?", record.ID).First(&processed).Error)
	assert.InEpsilon(t, 100, processed.Vertical.PGA, 0.02)
	assert.InEpsilon(t, 100/(2*math.Pi*2), processed.Vertical.PGV, 0.05)
	assert.Greater(t, processed.Vertical.AriasIntensity, 0.0)
	assert.Greater(t, processed.Vertical.MeanPeriod, 0.0)

	var sampleCount int64
	require.NoError(t, store.DB.Model(&datastore.ProcessedAccelerationSample{}).
		Where("processed_record_id = ?", processed.ID).
		Count(&sampleCount).Error)
	assert.EqualValues(t, record.NumSamples, sampleCount)

	// Fourier spectrum of the processed vertical component peaks near 2 Hz.
	var peakRow datastore.FourierSpectrum
	require.NoError(t, store.DB.
		Where("record_id = ? AND record_type = ? AND component = ?",
			record.ID, seismic.RecordTypeProcessed, seismic.ComponentVertical).
		Order("amplitude desc").
		First(&peakRow).Error)
	assert.InDelta(t, 2, peakRow.Frequency, 0.15)

	// Zero-period limit: the shortest-period oscillator's Sa approximates
	// the PGA.
	var shortest datastore.ResponseSpectrum
	require.NoError(t, store.DB.
		Where("record_id = ? AND record_type = ? AND component = ?",
			record.ID, seismic.RecordTypeProcessed, seismic.ComponentVertical).
		Order("period asc").
		First(&shortest).Error)
	assert.InEpsilon(t, 100, shortest.Sa, 0.1)

	// Every coherence value within [0, 1].
	var coherences []datastore.CoherenceSpectrum
	require.NoError(t, store.DB.Find(&coherences).Error)
	require.NotEmpty(t, coherences)
	for _, c := range coherences {
		assert.GreaterOrEqual(t, c.Coherence, 0.0)
		assert.LessOrEqual(t, c.Coherence, 1.0)
	}

	// Stability rows cover every segment for each orthogonal component.
	var segTotal []int
	require.NoError(t, store.DB.Model(&datastore.SpectralStability{}).
		Where("record_id = ?", record.ID).
		Distinct("segment_number").
		Order("segment_number").
		Pluck("segment_number", &segTotal).Error)
	assert.Equal(t, []int{1, 2, 3, 4}, segTotal)

	// Resultant derived rows exist under both record types.
	for _, rt := range []seismic.RecordType{seismic.RecordTypeOriginal, seismic.RecordTypeProcessed} {
		var count int64
		require.NoError(t, store.DB.Model(&datastore.ResponseSpectrum{}).
			Where("record_id = ? AND record_type = ? AND component = ?",
				record.ID, rt, seismic.ComponentResultant).
			Count(&count).Error)
		assert.EqualValues(t, 8, count, "record type %s", rt)
	}

	// One spectral-parameter row per (component, damping) scope.
	var paramCount int64
	require.NoError(t, store.DB.Model(&datastore.SpectralParameters{}).
		Where("record_id = ? AND record_type = ?", record.ID, seismic.RecordTypeProcessed).
		Count(&paramCount).Error)
	assert.EqualValues(t, 4, paramCount) // three orthogonal + resultant
}

// Running the pipeline twice with identical parameters must not duplicate or
// drift any derived row set.
func TestProcessRecordIsIdempotent(t *testing.T) {
	settings := testSettings(t)
	store := openStore(t, settings)
	record := seedSineRecord(t, store)
	p := New(store, settings, nil)

	_, err := p.ProcessRecord(context.Background(), record.ID)
	require.NoError(t, err)

	counts := func() map[string]int64 {
		out := make(map[string]int64)
		for name, model := range map[string]any{
			"processed":        &datastore.ProcessedAccelerationRecord{},
			"processedSamples": &datastore.ProcessedAccelerationSample{},
			"fourier":          &datastore.FourierSpectrum{},
			"fourierResponse":  &datastore.FourierResponseSpectrum{},
			"response":         &datastore.ResponseSpectrum{},
			"veldisp":          &datastore.VelocityDisplacementSpectrum{},
			"ratio":            &datastore.SpectralRatio{},
			"params":           &datastore.SpectralParameters{},
			"coherence":        &datastore.CoherenceSpectrum{},
			"stability":        &datastore.SpectralStability{},
		} {
			var c int64
			require.NoError(t, store.DB.Model(model).Count(&c).Error)
			out[name] = c
		}
		return out
	}
	first := counts()

	_, err = p.ProcessRecord(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, first, counts())
}

func TestProcessBatchIsolatesFailures(t *testing.T) {
	settings := testSettings(t)
	store := openStore(t, settings)
	record := seedSineRecord(t, store)
	p := New(store, settings, nil)

	batch := p.ProcessBatch(context.Background(), []uint{record.ID, 99999})
	require.Len(t, batch.Results, 1)
	assert.Equal(t, record.ID, batch.Results[0].RecordID)
	assert.Contains(t, batch.Errors, uint(99999))
}

func TestProcessBatchRegistersFiltersOnce(t *testing.T) {
	settings := testSettings(t)
	store := openStore(t, settings)
	rec1 := seedSineRecord(t, store)

	// A second record at another station, processed concurrently with the
	// first; both runs must share one registered filter definition.
	station := &datastore.SeismicStation{Code: "TEST02", Name: "Second Site"}
	require.NoError(t, store.SaveStation(station))
	event, err := store.GetEventByEventID("test-event")
	require.NoError(t, err)

	rec2 := &datastore.AccelerationRecord{
		EventID: event.ID, StationID: station.ID,
		SamplingFreq: 100, NumSamples: 1000, StartTime: time.Now().UTC(),
	}
	samples := make([]datastore.AccelerationSample, 1000)
	for i := range samples {
		ti := float64(i) / 100
		samples[i] = datastore.AccelerationSample{
			SampleIndex: i,
			TimeOffset:  ti,
			Vertical:    50 * math.Sin(2*math.Pi*2*ti),
			North:       40 * math.Sin(2*math.Pi*3*ti),
			East:        30 * math.Sin(2*math.Pi*5*ti),
		}
	}
	require.NoError(t, store.SaveRecord(rec2, samples))

	p := New(store, settings, nil)
	batch := p.ProcessBatch(context.Background(), []uint{rec1.ID, rec2.ID})

	assert.Empty(t, batch.Errors)
	assert.Len(t, batch.Results, 2)

	defs, err := store.ListFilterDefinitions()
	require.NoError(t, err)
	assert.Len(t, defs, 1)
}

func TestProcessRecordUnknownRecord(t *testing.T) {
	settings := testSettings(t)
	store := openStore(t, settings)
	p := New(store, settings, nil)

	_, err := p.ProcessRecord(context.Background(), 42)
	assert.Error(t, err)
}
