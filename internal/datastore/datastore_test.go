package datastore

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelefrain/gura-forge/internal/conf"
	"github.com/joelefrain/gura-forge/internal/errors"
	"github.com/joelefrain/gura-forge/internal/seismic"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "test.db")

	store := &SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedRecord(t *testing.T, store *SQLiteStore, n int) *AccelerationRecord {
	t.Helper()

	station := &SeismicStation{Code: "LIM001", Name: "Lima Centro", Latitude: -12.05, Longitude: -77.04}
	require.NoError(t, store.SaveStation(station))
	event := &SeismicEvent{EventID: "ev-2024-001", Magnitude: 6.1, OriginTime: time.Now().UTC()}
	require.NoError(t, store.SaveEvent(event))

	record := &AccelerationRecord{
		EventID:      event.ID,
		StationID:    station.ID,
		SamplingFreq: 100,
		NumSamples:   n,
		StartTime:    time.Now().UTC(),
	}
	samples := make([]AccelerationSample, n)
	for i := range samples {
		samples[i] = AccelerationSample{
			SampleIndex: i,
			TimeOffset:  float64(i) / 100,
			Vertical:    math.Sin(2 * math.Pi * 2 * float64(i) / 100),
			North:       2 * math.Sin(2*math.Pi*3*float64(i)/100),
			East:        0.5 * math.Sin(2*math.Pi*5*float64(i)/100),
		}
	}
	record.PGAVertical = 1
	record.PGANorth = 2
	record.PGAEast = 0.5
	require.NoError(t, store.SaveRecord(record, samples))
	return record
}

func TestOpenMigratesSchema(t *testing.T) {
	store := openTestStore(t)
	for _, table := range []string{
		"seismic_stations", "seismic_events", "acceleration_records",
		"acceleration_samples", "filter_definitions",
		"processed_acceleration_records", "processed_acceleration_samples",
		"fourier_spectra", "fourier_response_spectra", "response_spectra",
		"velocity_displacement_spectra", "spectral_ratios",
		"spectral_parameters", "coherence_spectra", "spectral_stabilities",
	} {
		assert.True(t, store.DB.Migrator().HasTable(table), "missing table %s", table)
	}
}

func TestSaveStationUpsertsByCode(t *testing.T) {
	store := openTestStore(t)

	first := &SeismicStation{Code: "ARE001", Name: "Arequipa"}
	require.NoError(t, store.SaveStation(first))
	second := &SeismicStation{Code: "ARE001", Name: "Arequipa Cercado"}
	require.NoError(t, store.SaveStation(second))

	var count int64
	require.NoError(t, store.DB.Model(&SeismicStation{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	got, err := store.GetStationByCode("ARE001")
	require.NoError(t, err)
	assert.Equal(t, "Arequipa Cercado", got.Name)
}

func TestSaveRecordRejectsSampleGaps(t *testing.T) {
	store := openTestStore(t)
	station := &SeismicStation{Code: "S1"}
	require.NoError(t, store.SaveStation(station))
	event := &SeismicEvent{EventID: "e1"}
	require.NoError(t, store.SaveEvent(event))

	record := &AccelerationRecord{EventID: event.ID, StationID: station.ID, SamplingFreq: 100, NumSamples: 3}
	gapped := []AccelerationSample{
		{SampleIndex: 0}, {SampleIndex: 1}, {SampleIndex: 3},
	}
	err := store.SaveRecord(record, gapped)
	require.Error(t, err)
	assert.True(t, errors.IsDataIntegrity(err))

	short := []AccelerationSample{{SampleIndex: 0}}
	err = store.SaveRecord(record, short)
	require.Error(t, err)
	assert.True(t, errors.IsDataIntegrity(err))
}

func TestGetRecordSeriesRoundTrip(t *testing.T) {
	store := openTestStore(t)
	record := seedRecord(t, store, 200)

	ts, err := store.GetRecordSeries(record.ID)
	require.NoError(t, err)
	assert.Equal(t, 200, ts.NumSamples())
	assert.Equal(t, 100.0, ts.SamplingFreq)
	assert.InDelta(t, 2, seismic.PeakAbs(ts.North), 0.01)
}

func TestFilterDefinitionLifecycle(t *testing.T) {
	store := openTestStore(t)

	def := &FilterDefinition{
		Name: "bp-0.1-25", FilterType: "bandpass",
		LowCutoff: 0.1, HighCutoff: 25, Order: 4,
		TaperType: "hann", TaperPercent: 5,
	}
	require.NoError(t, store.SaveFilterDefinition(def))

	got, err := store.GetFilterDefinition("bp-0.1-25")
	require.NoError(t, err)
	assert.Equal(t, 4, got.Order)

	defs, err := store.ListFilterDefinitions()
	require.NoError(t, err)
	assert.Len(t, defs, 1)

	require.NoError(t, store.DeleteFilterDefinition("bp-0.1-25"))
	_, err = store.GetFilterDefinition("bp-0.1-25")
	assert.Error(t, err)
}

func TestDeleteFilterInUseIsRejected(t *testing.T) {
	store := openTestStore(t)
	record := seedRecord(t, store, 100)

	def := &FilterDefinition{Name: "in-use", FilterType: "lowpass", HighCutoff: 10, Order: 2}
	require.NoError(t, store.SaveFilterDefinition(def))

	processed := &ProcessedAccelerationRecord{
		RecordID: record.ID, FilterID: def.ID, ProcessType: seismic.ProcessBoth,
	}
	require.NoError(t, store.ReplaceProcessedRecord(processed, nil))

	err := store.DeleteFilterDefinition("in-use")
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))

	// Still present and usable.
	_, err = store.GetFilterDefinition("in-use")
	assert.NoError(t, err)
}

// Re-processing the same (record, filter, process type) scope must overwrite,
// never duplicate.
func TestReplaceProcessedRecordIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	record := seedRecord(t, store, 100)
	def := &FilterDefinition{Name: "f", FilterType: "highpass", LowCutoff: 0.1, Order: 2}
	require.NoError(t, store.SaveFilterDefinition(def))

	mkSamples := func(scale float64) []ProcessedAccelerationSample {
		out := make([]ProcessedAccelerationSample, 50)
		for i := range out {
			out[i] = ProcessedAccelerationSample{
				SampleIndex: i,
				TimeOffset:  float64(i) / 100,
				Vertical:    ComponentMotion{Acceleration: scale * float64(i)},
			}
		}
		return out
	}

	first := &ProcessedAccelerationRecord{
		RecordID: record.ID, FilterID: def.ID, ProcessType: seismic.ProcessBoth,
		Vertical: TimeDomainScalars{PGA: 10},
	}
	require.NoError(t, store.ReplaceProcessedRecord(first, mkSamples(1)))

	second := &ProcessedAccelerationRecord{
		RecordID: record.ID, FilterID: def.ID, ProcessType: seismic.ProcessBoth,
		Vertical: TimeDomainScalars{PGA: 20},
	}
	require.NoError(t, store.ReplaceProcessedRecord(second, mkSamples(2)))

	var recs []ProcessedAccelerationRecord
	require.NoError(t, store.DB.Where("record_id = ?", record.ID).Find(&recs).Error)
	require.Len(t, recs, 1)
	assert.Equal(t, 20.0, recs[0].Vertical.PGA)

	var sampleCount int64
	require.NoError(t, store.DB.Model(&ProcessedAccelerationSample{}).
		Where("processed_record_id = ?", recs[0].ID).
		Count(&sampleCount).Error)
	assert.EqualValues(t, 50, sampleCount)

	// A different process type is a distinct scope.
	third := &ProcessedAccelerationRecord{
		RecordID: record.ID, FilterID: def.ID, ProcessType: seismic.ProcessFiltered,
	}
	require.NoError(t, store.ReplaceProcessedRecord(third, nil))
	require.NoError(t, store.DB.Where("record_id = ?", record.ID).Find(&recs).Error)
	assert.Len(t, recs, 2)
}

func TestReplaceResponseSpectraIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	record := seedRecord(t, store, 100)

	scope := SpectrumScope{
		RecordID:   record.ID,
		RecordType: seismic.RecordTypeProcessed,
		Component:  seismic.ComponentNorth,
	}
	mkRows := func(sa float64) []ResponseSpectrum {
		rows := make([]ResponseSpectrum, 0, 6)
		for _, period := range []float64{0.1, 0.5, 1} {
			for _, damping := range []float64{0.02, 0.05} {
				rows = append(rows, ResponseSpectrum{
					RecordID: scope.RecordID, RecordType: scope.RecordType,
					Component: scope.Component,
					Damping:   damping, Period: period, Sa: sa,
				})
			}
		}
		return rows
	}

	require.NoError(t, store.ReplaceResponseSpectra(scope, mkRows(1)))
	require.NoError(t, store.ReplaceResponseSpectra(scope, mkRows(2)))

	var rows []ResponseSpectrum
	require.NoError(t, store.DB.Where("record_id = ?", record.ID).Find(&rows).Error)
	require.Len(t, rows, 6)
	for _, r := range rows {
		assert.Equal(t, 2.0, r.Sa)
	}
}

func TestCoherenceKeyCanonicalisation(t *testing.T) {
	key := CoherenceKey{
		Record1ID: 7, Record2ID: 3,
		Component1: seismic.ComponentNorth, Component2: seismic.ComponentEast,
	}
	canon := key.Canonical()
	assert.EqualValues(t, 3, canon.Record1ID)
	assert.EqualValues(t, 7, canon.Record2ID)
	assert.Equal(t, seismic.ComponentEast, canon.Component1)
	assert.Equal(t, seismic.ComponentNorth, canon.Component2)

	// Already canonical keys pass through unchanged.
	assert.Equal(t, canon, canon.Canonical())
}

// Writing the pair (B,A) after (A,B) must land on the same rows, with the
// phase sign flipped to match the canonical ordering.
func TestReplaceCoherenceSpectraCanonicalises(t *testing.T) {
	store := openTestStore(t)
	a := seedRecord(t, store, 50)

	forward := CoherenceKey{
		Record1ID: a.ID, Record2ID: a.ID + 100,
		Component1: seismic.ComponentNorth, Component2: seismic.ComponentEast,
	}
	rows := []CoherenceSpectrum{{Frequency: 1, Coherence: 0.9, Phase: 0.25}}
	require.NoError(t, store.ReplaceCoherenceSpectra(forward, rows))

	reversed := CoherenceKey{
		Record1ID: forward.Record2ID, Record2ID: forward.Record1ID,
		Component1: forward.Component2, Component2: forward.Component1,
	}
	rows = []CoherenceSpectrum{{Frequency: 1, Coherence: 0.8, Phase: 0.5}}
	require.NoError(t, store.ReplaceCoherenceSpectra(reversed, rows))

	var stored []CoherenceSpectrum
	require.NoError(t, store.DB.Find(&stored).Error)
	require.Len(t, stored, 1)
	assert.EqualValues(t, forward.Record1ID, stored[0].Record1ID)
	assert.Equal(t, 0.8, stored[0].Coherence)
	assert.Equal(t, -0.5, stored[0].Phase)
}

func TestReplaceSpectralStabilityValidatesSegments(t *testing.T) {
	store := openTestStore(t)
	record := seedRecord(t, store, 50)
	scope := SpectrumScope{
		RecordID:   record.ID,
		RecordType: seismic.RecordTypeOriginal,
		Component:  seismic.ComponentVertical,
	}

	bad := []SpectralStability{{
		RecordID: scope.RecordID, RecordType: scope.RecordType,
		Component: scope.Component, SegmentNumber: 1, SegmentsTotal: 3, Frequency: 1,
	}}
	err := store.ReplaceSpectralStability(scope, 4, bad)
	require.Error(t, err)
	assert.True(t, errors.IsDataIntegrity(err))

	outOfRange := []SpectralStability{{
		RecordID: scope.RecordID, RecordType: scope.RecordType,
		Component: scope.Component, SegmentNumber: 5, SegmentsTotal: 4, Frequency: 1,
	}}
	err = store.ReplaceSpectralStability(scope, 4, outOfRange)
	require.Error(t, err)
	assert.True(t, errors.IsDataIntegrity(err))

	good := []SpectralStability{{
		RecordID: scope.RecordID, RecordType: scope.RecordType,
		Component: scope.Component, SegmentNumber: 1, SegmentsTotal: 4, Frequency: 1,
		StabilityIndex: 0.9,
	}}
	require.NoError(t, store.ReplaceSpectralStability(scope, 4, good))
}

func TestStationSummaryProjection(t *testing.T) {
	store := openTestStore(t)
	record := seedRecord(t, store, 100)

	def := &FilterDefinition{Name: "sum-f", FilterType: "bandpass", LowCutoff: 0.1, HighCutoff: 25, Order: 4}
	require.NoError(t, store.SaveFilterDefinition(def))

	processed := &ProcessedAccelerationRecord{
		RecordID: record.ID, FilterID: def.ID, ProcessType: seismic.ProcessBoth,
		Vertical: TimeDomainScalars{PGA: 0.9, PGV: 0.07, AriasIntensity: 1.2},
		North:    TimeDomainScalars{PGA: 1.8, PGV: 0.14, AriasIntensity: 4.8},
		East:     TimeDomainScalars{PGA: 0.4, PGV: 0.03, AriasIntensity: 0.3},
	}
	require.NoError(t, store.ReplaceProcessedRecord(processed, nil))

	scope := SpectrumScope{
		RecordID:   record.ID,
		RecordType: seismic.RecordTypeProcessed,
		Component:  seismic.ComponentResultant,
	}
	require.NoError(t, store.ReplaceResponseSpectra(scope, []ResponseSpectrum{
		{RecordID: record.ID, RecordType: scope.RecordType, Component: scope.Component,
			Damping: 0.05, Period: 0.2, Sa: 5.5, Sv: 0.9},
		{RecordID: record.ID, RecordType: scope.RecordType, Component: scope.Component,
			Damping: 0.05, Period: 0.5, Sa: 7.25, Sv: 0.4},
		{RecordID: record.ID, RecordType: scope.RecordType, Component: scope.Component,
			Damping: 0.02, Period: 0.5, Sa: 12, Sv: 2},
	}))

	rows, err := store.StationSummary("LIM001")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "ev-2024-001", row.EventID)
	assert.Equal(t, record.ID, row.RecordID)
	assert.Equal(t, ComponentValues{Vertical: 1, North: 2, East: 0.5}, row.RawPGA)
	assert.Equal(t, ComponentValues{Vertical: 0.9, North: 1.8, East: 0.4}, row.ProcessedPGA)
	assert.Equal(t, ComponentValues{Vertical: 0.07, North: 0.14, East: 0.03}, row.PGV)
	assert.Equal(t, ComponentValues{Vertical: 1.2, North: 4.8, East: 0.3}, row.AriasIntensity)
	assert.Equal(t, seismic.ProcessBoth, row.ProcessType)

	// Peaks come from damping 0.05 rows only, with their own periods.
	assert.Equal(t, 7.25, row.PeakSa)
	assert.Equal(t, 0.5, row.PeakSaPeriod)
	assert.Equal(t, 0.9, row.PeakSv)
	assert.Equal(t, 0.2, row.PeakSvPeriod)
}

func TestStationSummaryUnknownStation(t *testing.T) {
	store := openTestStore(t)
	_, err := store.StationSummary("NOPE")
	assert.Error(t, err)
}

func TestListRecordIDs(t *testing.T) {
	store := openTestStore(t)

	ids, err := store.ListRecordIDs()
	require.NoError(t, err)
	assert.Empty(t, ids)

	record := seedRecord(t, store, 10)
	ids, err = store.ListRecordIDs()
	require.NoError(t, err)
	assert.Equal(t, []uint{record.ID}, ids)
}
