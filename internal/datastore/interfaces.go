// interfaces.go defines the store abstraction over the concrete SQLite and
// MySQL backends.
package datastore

import (
	"sync"

	"gorm.io/gorm"

	"github.com/joelefrain/gura-forge/internal/conf"
	"github.com/joelefrain/gura-forge/internal/errors"
	"github.com/joelefrain/gura-forge/internal/seismic"
)

// SpectrumScope is the natural key shared by the frequency- and
// period-indexed derived families.
type SpectrumScope struct {
	RecordID   uint
	RecordType seismic.RecordType
	Component  seismic.Component
}

// CoherenceKey identifies one record/component pairing. Store it through
// Canonical so (A,B) and (B,A) collapse to one row set.
type CoherenceKey struct {
	Record1ID  uint
	Record2ID  uint
	Component1 seismic.Component
	Component2 seismic.Component
}

// Canonical orders the pair by record ID, swapping components along with the
// records. Equal record IDs order by component name.
func (k CoherenceKey) Canonical() CoherenceKey {
	if k.Record1ID > k.Record2ID ||
		(k.Record1ID == k.Record2ID && k.Component1 > k.Component2) {
		return CoherenceKey{
			Record1ID:  k.Record2ID,
			Record2ID:  k.Record1ID,
			Component1: k.Component2,
			Component2: k.Component1,
		}
	}
	return k
}

// Interface abstracts the underlying database implementation.
type Interface interface {
	Open() error
	Close() error

	// Reference data, written by ingestion.
	SaveStation(station *SeismicStation) error
	GetStationByCode(code string) (*SeismicStation, error)
	SaveEvent(event *SeismicEvent) error
	GetEventByEventID(eventID string) (*SeismicEvent, error)
	SaveRecord(record *AccelerationRecord, samples []AccelerationSample) error
	GetRecord(id uint) (*AccelerationRecord, error)
	GetRecordSeries(id uint) (*seismic.TriaxialSeries, error)
	ListRecordIDs() ([]uint, error)

	// Filter definitions.
	SaveFilterDefinition(def *FilterDefinition) error
	GetFilterDefinition(name string) (*FilterDefinition, error)
	ListFilterDefinitions() ([]FilterDefinition, error)
	DeleteFilterDefinition(name string) error

	// Derived-entity families, each written as an atomic replace of its
	// natural-key scope.
	ReplaceProcessedRecord(rec *ProcessedAccelerationRecord, samples []ProcessedAccelerationSample) error
	ReplaceFourierSpectra(scope SpectrumScope, rows []FourierSpectrum) error
	ReplaceResponseSpectra(scope SpectrumScope, rows []ResponseSpectrum) error
	ReplaceFourierResponseSpectra(scope SpectrumScope, rows []FourierResponseSpectrum) error
	ReplaceVelocityDisplacementSpectra(scope SpectrumScope, rows []VelocityDisplacementSpectrum) error
	ReplaceSpectralRatios(recordID uint, recordType seismic.RecordType, rows []SpectralRatio) error
	ReplaceSpectralParameters(scope SpectrumScope, rows []SpectralParameters) error
	ReplaceCoherenceSpectra(key CoherenceKey, rows []CoherenceSpectrum) error
	ReplaceSpectralStability(scope SpectrumScope, segmentsTotal int, rows []SpectralStability) error

	// Projections.
	StationSummary(stationCode string) ([]StationSummaryRow, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB

	mu     sync.Mutex
	scopes map[string]*sync.Mutex
}

// New picks the backend from the output settings.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return nil
	}
}

// SaveStation upserts a station by its unique code.
func (ds *DataStore) SaveStation(station *SeismicStation) error {
	if err := ds.DB.Where("code = ?", station.Code).
		Assign(station).
		FirstOrCreate(station).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("station_code", station.Code).
			Build()
	}
	return nil
}

func (ds *DataStore) GetStationByCode(code string) (*SeismicStation, error) {
	var station SeismicStation
	if err := ds.DB.Where("code = ?", code).First(&station).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("station_code", code).
			Build()
	}
	return &station, nil
}

// SaveEvent upserts an event by its unique event ID.
func (ds *DataStore) SaveEvent(event *SeismicEvent) error {
	if err := ds.DB.Where("event_id = ?", event.EventID).
		Assign(event).
		FirstOrCreate(event).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("event_id", event.EventID).
			Build()
	}
	return nil
}

func (ds *DataStore) GetEventByEventID(eventID string) (*SeismicEvent, error) {
	var event SeismicEvent
	if err := ds.DB.Where("event_id = ?", eventID).First(&event).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("event_id", eventID).
			Build()
	}
	return &event, nil
}

// SaveRecord stores a raw record and its samples in one transaction. Raw
// records are immutable: a second save for the same (event, station) fails
// on the unique index.
func (ds *DataStore) SaveRecord(record *AccelerationRecord, samples []AccelerationSample) error {
	if err := validateSampleSequence(record.NumSamples, samples); err != nil {
		return err
	}
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		for i := range samples {
			samples[i].RecordID = record.ID
		}
		return tx.CreateInBatches(samples, insertBatchSize).Error
	})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("record_id", record.ID).
			Build()
	}
	return nil
}

func (ds *DataStore) GetRecord(id uint) (*AccelerationRecord, error) {
	var record AccelerationRecord
	if err := ds.DB.First(&record, id).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("record_id", id).
			Build()
	}
	return &record, nil
}

// ListRecordIDs returns the IDs of every stored acceleration record, oldest
// first.
func (ds *DataStore) ListRecordIDs() ([]uint, error) {
	var ids []uint
	if err := ds.DB.Model(&AccelerationRecord{}).
		Order("id asc").
		Pluck("id", &ids).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return ids, nil
}

// GetRecordSeries loads a record's samples as a triaxial series, validating
// the declared-versus-stored cardinality and index contiguity.
func (ds *DataStore) GetRecordSeries(id uint) (*seismic.TriaxialSeries, error) {
	record, err := ds.GetRecord(id)
	if err != nil {
		return nil, err
	}

	var samples []AccelerationSample
	if err := ds.DB.Where("record_id = ?", id).
		Order("sample_index asc").
		Find(&samples).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("record_id", id).
			Build()
	}
	if err := validateSampleSequence(record.NumSamples, samples); err != nil {
		return nil, err
	}

	ts := &seismic.TriaxialSeries{
		SamplingFreq: record.SamplingFreq,
		Vertical:     make([]float64, len(samples)),
		North:        make([]float64, len(samples)),
		East:         make([]float64, len(samples)),
	}
	for i, s := range samples {
		ts.Vertical[i] = s.Vertical
		ts.North[i] = s.North
		ts.East[i] = s.East
	}
	if err := ts.Validate(record.NumSamples); err != nil {
		return nil, err
	}
	return ts, nil
}

func validateSampleSequence(declared int, samples []AccelerationSample) error {
	if len(samples) != declared {
		return errors.Newf("sample count %d does not match declared num_samples %d", len(samples), declared).
			Component("datastore").
			Category(errors.CategoryDataIntegrity).
			Build()
	}
	for i, s := range samples {
		if s.SampleIndex != i {
			return errors.Newf("sample index gap: expected %d, found %d", i, s.SampleIndex).
				Component("datastore").
				Category(errors.CategoryDataIntegrity).
				Build()
		}
	}
	return nil
}

// SaveFilterDefinition upserts a filter definition by name.
func (ds *DataStore) SaveFilterDefinition(def *FilterDefinition) error {
	if err := ds.DB.Where("name = ?", def.Name).
		Assign(def).
		FirstOrCreate(def).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("filter_name", def.Name).
			Build()
	}
	return nil
}

func (ds *DataStore) GetFilterDefinition(name string) (*FilterDefinition, error) {
	var def FilterDefinition
	if err := ds.DB.Where("name = ?", name).First(&def).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("filter_name", name).
			Build()
	}
	return &def, nil
}

func (ds *DataStore) ListFilterDefinitions() ([]FilterDefinition, error) {
	var defs []FilterDefinition
	if err := ds.DB.Order("name asc").Find(&defs).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return defs, nil
}

// DeleteFilterDefinition removes a filter unless a processed record still
// references it.
func (ds *DataStore) DeleteFilterDefinition(name string) error {
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		var def FilterDefinition
		if err := tx.Where("name = ?", name).First(&def).Error; err != nil {
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Context("filter_name", name).
				Build()
		}

		var inUse int64
		if err := tx.Model(&ProcessedAccelerationRecord{}).
			Where("filter_id = ?", def.ID).
			Count(&inUse).Error; err != nil {
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Build()
		}
		if inUse > 0 {
			return errors.Newf("filter %q is referenced by %d processed records", name, inUse).
				Component("datastore").
				Category(errors.CategoryConflict).
				Context("filter_name", name).
				Build()
		}
		return tx.Delete(&def).Error
	})
}
