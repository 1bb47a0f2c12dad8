// summary.go provides read-only projections over the derived entities.
package datastore

import (
	"gorm.io/gorm"

	"github.com/joelefrain/gura-forge/internal/errors"
	"github.com/joelefrain/gura-forge/internal/seismic"
)

// SummaryDamping is the damping ratio whose resultant response-spectrum
// peaks the station summary reports.
const SummaryDamping = 0.05

// ComponentValues holds one scalar per orthogonal component.
type ComponentValues struct {
	Vertical float64
	North    float64
	East     float64
}

// StationSummaryRow joins, per record: raw and processed peaks per
// component, and the resultant response-spectrum peaks at the summary
// damping. Zero values mean the derived family has not been computed.
type StationSummaryRow struct {
	StationCode string
	EventID     string
	RecordID    uint

	RawPGA         ComponentValues
	ProcessedPGA   ComponentValues
	PGV            ComponentValues
	AriasIntensity ComponentValues
	ProcessType    seismic.ProcessType

	PeakSa       float64
	PeakSaPeriod float64
	PeakSv       float64
	PeakSvPeriod float64
}

// StationSummary projects one row per record of the station, most recent
// first. Pure read, no side effects; it never re-runs the pipeline.
func (ds *DataStore) StationSummary(stationCode string) ([]StationSummaryRow, error) {
	station, err := ds.GetStationByCode(stationCode)
	if err != nil {
		return nil, err
	}

	var records []AccelerationRecord
	if err := ds.DB.Where("station_id = ?", station.ID).
		Order("start_time desc").
		Find(&records).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("station_code", stationCode).
			Build()
	}

	rows := make([]StationSummaryRow, 0, len(records))
	for i := range records {
		rec := &records[i]
		row, err := ds.summarizeRecord(stationCode, rec)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (ds *DataStore) summarizeRecord(stationCode string, rec *AccelerationRecord) (StationSummaryRow, error) {
	row := StationSummaryRow{
		StationCode: stationCode,
		RecordID:    rec.ID,
		RawPGA: ComponentValues{
			Vertical: rec.PGAVertical,
			North:    rec.PGANorth,
			East:     rec.PGAEast,
		},
	}

	var event SeismicEvent
	err := ds.DB.First(&event, rec.EventID).Error
	switch {
	case err == nil:
		row.EventID = event.EventID
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return row, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("record_id", rec.ID).
			Build()
	}

	var processed ProcessedAccelerationRecord
	err = ds.DB.Where("record_id = ?", rec.ID).
		Order("processed_at desc").
		First(&processed).Error
	switch {
	case err == nil:
		row.ProcessedPGA = ComponentValues{
			Vertical: processed.Vertical.PGA,
			North:    processed.North.PGA,
			East:     processed.East.PGA,
		}
		row.PGV = ComponentValues{
			Vertical: processed.Vertical.PGV,
			North:    processed.North.PGV,
			East:     processed.East.PGV,
		}
		row.AriasIntensity = ComponentValues{
			Vertical: processed.Vertical.AriasIntensity,
			North:    processed.North.AriasIntensity,
			East:     processed.East.AriasIntensity,
		}
		row.ProcessType = processed.ProcessType
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return row, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("record_id", rec.ID).
			Build()
	}

	var saPeak ResponseSpectrum
	err = ds.DB.Where("record_id = ? AND component = ? AND damping = ?",
		rec.ID, seismic.ComponentResultant, SummaryDamping).
		Order("sa desc").
		First(&saPeak).Error
	switch {
	case err == nil:
		row.PeakSa = saPeak.Sa
		row.PeakSaPeriod = saPeak.Period
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return row, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("record_id", rec.ID).
			Build()
	}

	var svPeak ResponseSpectrum
	err = ds.DB.Where("record_id = ? AND component = ? AND damping = ?",
		rec.ID, seismic.ComponentResultant, SummaryDamping).
		Order("sv desc").
		First(&svPeak).Error
	switch {
	case err == nil:
		row.PeakSv = svPeak.Sv
		row.PeakSvPeriod = svPeak.Period
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return row, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("record_id", rec.ID).
			Build()
	}

	return row, nil
}
