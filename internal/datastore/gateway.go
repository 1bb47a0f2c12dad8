// gateway.go implements the atomic replace semantics of the derived-entity
// families: each write deletes any rows sharing the natural key and inserts
// the new set inside one transaction, serialized per scope so concurrent
// writers of the same scope cannot interleave.
package datastore

import (
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/joelefrain/gura-forge/internal/errors"
	"github.com/joelefrain/gura-forge/internal/seismic"
)

const insertBatchSize = 500

// lockScope serializes writers of one natural key. Distinct scopes proceed
// in parallel.
func (ds *DataStore) lockScope(key string) func() {
	ds.mu.Lock()
	if ds.scopes == nil {
		ds.scopes = make(map[string]*sync.Mutex)
	}
	m, ok := ds.scopes[key]
	if !ok {
		m = &sync.Mutex{}
		ds.scopes[key] = m
	}
	ds.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func (scope SpectrumScope) lockKey(family string) string {
	return fmt.Sprintf("%s/%d/%s/%s", family, scope.RecordID, scope.RecordType, scope.Component)
}

func dbErr(err error, scope SpectrumScope) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("record_id", scope.RecordID).
		Context("record_type", string(scope.RecordType)).
		Context("component", string(scope.Component)).
		Build()
}

// ReplaceProcessedRecord overwrites the (record, filter, process type) scope:
// the previous processed record, its samples (cascade) and the new set are
// exchanged in one transaction.
func (ds *DataStore) ReplaceProcessedRecord(rec *ProcessedAccelerationRecord, samples []ProcessedAccelerationSample) error {
	unlock := ds.lockScope(fmt.Sprintf("processed/%d/%d/%s", rec.RecordID, rec.FilterID, rec.ProcessType))
	defer unlock()

	rec.ProcessedAt = time.Now()
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		var prior ProcessedAccelerationRecord
		res := tx.Where("record_id = ? AND filter_id = ? AND process_type = ?",
			rec.RecordID, rec.FilterID, rec.ProcessType).First(&prior)
		if res.Error == nil {
			if err := tx.Where("processed_record_id = ?", prior.ID).
				Delete(&ProcessedAccelerationSample{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&prior).Error; err != nil {
				return err
			}
		} else if !errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return res.Error
		}

		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		for i := range samples {
			samples[i].ProcessedRecordID = rec.ID
		}
		return tx.CreateInBatches(samples, insertBatchSize).Error
	})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("record_id", rec.RecordID).
			Context("filter_id", rec.FilterID).
			Context("process_type", string(rec.ProcessType)).
			Build()
	}
	return nil
}

func (ds *DataStore) ReplaceFourierSpectra(scope SpectrumScope, rows []FourierSpectrum) error {
	unlock := ds.lockScope(scope.lockKey("fourier"))
	defer unlock()

	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("record_id = ? AND record_type = ? AND component = ?",
			scope.RecordID, scope.RecordType, scope.Component).
			Delete(&FourierSpectrum{}).Error; err != nil {
			return err
		}
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
	if err != nil {
		return dbErr(err, scope)
	}
	return nil
}

func (ds *DataStore) ReplaceResponseSpectra(scope SpectrumScope, rows []ResponseSpectrum) error {
	unlock := ds.lockScope(scope.lockKey("response"))
	defer unlock()

	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("record_id = ? AND record_type = ? AND component = ?",
			scope.RecordID, scope.RecordType, scope.Component).
			Delete(&ResponseSpectrum{}).Error; err != nil {
			return err
		}
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
	if err != nil {
		return dbErr(err, scope)
	}
	return nil
}

func (ds *DataStore) ReplaceFourierResponseSpectra(scope SpectrumScope, rows []FourierResponseSpectrum) error {
	unlock := ds.lockScope(scope.lockKey("fourier-response"))
	defer unlock()

	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("record_id = ? AND record_type = ? AND component = ?",
			scope.RecordID, scope.RecordType, scope.Component).
			Delete(&FourierResponseSpectrum{}).Error; err != nil {
			return err
		}
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
	if err != nil {
		return dbErr(err, scope)
	}
	return nil
}

func (ds *DataStore) ReplaceVelocityDisplacementSpectra(scope SpectrumScope, rows []VelocityDisplacementSpectrum) error {
	unlock := ds.lockScope(scope.lockKey("veldisp"))
	defer unlock()

	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("record_id = ? AND record_type = ? AND component = ?",
			scope.RecordID, scope.RecordType, scope.Component).
			Delete(&VelocityDisplacementSpectrum{}).Error; err != nil {
			return err
		}
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
	if err != nil {
		return dbErr(err, scope)
	}
	return nil
}

// ReplaceSpectralRatios is keyed by record and type only; the ratio has no
// per-component scope.
func (ds *DataStore) ReplaceSpectralRatios(recordID uint, recordType seismic.RecordType, rows []SpectralRatio) error {
	unlock := ds.lockScope(fmt.Sprintf("ratio/%d/%s", recordID, recordType))
	defer unlock()

	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("record_id = ? AND record_type = ?", recordID, recordType).
			Delete(&SpectralRatio{}).Error; err != nil {
			return err
		}
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("record_id", recordID).
			Context("record_type", string(recordType)).
			Build()
	}
	return nil
}

func (ds *DataStore) ReplaceSpectralParameters(scope SpectrumScope, rows []SpectralParameters) error {
	unlock := ds.lockScope(scope.lockKey("params"))
	defer unlock()

	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("record_id = ? AND record_type = ? AND component = ?",
			scope.RecordID, scope.RecordType, scope.Component).
			Delete(&SpectralParameters{}).Error; err != nil {
			return err
		}
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
	if err != nil {
		return dbErr(err, scope)
	}
	return nil
}

// ReplaceCoherenceSpectra canonicalises the pair key before writing, so both
// orderings of the same pair land on one row set.
func (ds *DataStore) ReplaceCoherenceSpectra(key CoherenceKey, rows []CoherenceSpectrum) error {
	canon := key.Canonical()
	swapped := canon != key
	unlock := ds.lockScope(fmt.Sprintf("coherence/%d/%d/%s/%s",
		canon.Record1ID, canon.Record2ID, canon.Component1, canon.Component2))
	defer unlock()

	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("record1_id = ? AND record2_id = ? AND component1 = ? AND component2 = ?",
			canon.Record1ID, canon.Record2ID, canon.Component1, canon.Component2).
			Delete(&CoherenceSpectrum{}).Error; err != nil {
			return err
		}
		for i := range rows {
			rows[i].Record1ID = canon.Record1ID
			rows[i].Record2ID = canon.Record2ID
			rows[i].Component1 = canon.Component1
			rows[i].Component2 = canon.Component2
			if swapped {
				// Cross-spectrum phase is antisymmetric in the pair order.
				rows[i].Phase = -rows[i].Phase
			}
		}
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("record_1", canon.Record1ID).
			Context("record_2", canon.Record2ID).
			Build()
	}
	return nil
}

// ReplaceSpectralStability validates that every row declares the same
// segments_total before the atomic swap.
func (ds *DataStore) ReplaceSpectralStability(scope SpectrumScope, segmentsTotal int, rows []SpectralStability) error {
	for i := range rows {
		if rows[i].SegmentsTotal != segmentsTotal {
			return errors.Newf("stability row %d declares segments_total %d, expected %d",
				i, rows[i].SegmentsTotal, segmentsTotal).
				Component("datastore").
				Category(errors.CategoryDataIntegrity).
				Build()
		}
		if rows[i].SegmentNumber < 1 || rows[i].SegmentNumber > segmentsTotal {
			return errors.Newf("stability row %d has segment_number %d outside 1..%d",
				i, rows[i].SegmentNumber, segmentsTotal).
				Component("datastore").
				Category(errors.CategoryDataIntegrity).
				Build()
		}
	}

	unlock := ds.lockScope(scope.lockKey("stability"))
	defer unlock()

	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("record_id = ? AND record_type = ? AND component = ?",
			scope.RecordID, scope.RecordType, scope.Component).
			Delete(&SpectralStability{}).Error; err != nil {
			return err
		}
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
	if err != nil {
		return dbErr(err, scope)
	}
	return nil
}
