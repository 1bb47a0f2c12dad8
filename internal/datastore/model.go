// model.go defines the persisted data model: reference entities written by
// ingestion, and the derived entities written by the processing pipeline.
package datastore

import (
	"time"

	"github.com/joelefrain/gura-forge/internal/seismic"
)

// SeismicStation is a recording site. Reference data, read-only to the
// pipeline.
type SeismicStation struct {
	ID        uint   `gorm:"primaryKey"`
	Code      string `gorm:"uniqueIndex;not null"`
	Name      string
	Latitude  float64
	Longitude float64
	Altitude  float64
	SoilClass string
}

// SeismicEvent is the earthquake a record belongs to.
type SeismicEvent struct {
	ID            uint   `gorm:"primaryKey"`
	EventID       string `gorm:"uniqueIndex;not null"`
	OriginTime    time.Time
	Latitude      float64
	Longitude     float64
	Depth         float64
	Magnitude     float64
	MagnitudeType string
	Location      string
}

// AccelerationRecord is one triaxial strong-motion recording of one event at
// one station. Immutable once ingested.
type AccelerationRecord struct {
	ID           uint `gorm:"primaryKey"`
	EventID      uint `gorm:"uniqueIndex:idx_record_event_station;not null"`
	StationID    uint `gorm:"uniqueIndex:idx_record_event_station;not null"`
	SamplingFreq float64
	NumSamples   int
	StartTime    time.Time
	PGAVertical  float64
	PGANorth     float64
	PGAEast      float64
	FilePath     string

	Samples []AccelerationSample `gorm:"foreignKey:RecordID;constraint:OnDelete:CASCADE"`
}

// AccelerationSample is one time step of a raw record. SampleIndex runs
// contiguously from 0 to NumSamples-1.
type AccelerationSample struct {
	ID          uint `gorm:"primaryKey"`
	RecordID    uint `gorm:"uniqueIndex:idx_sample_record_index;not null"`
	SampleIndex int  `gorm:"uniqueIndex:idx_sample_record_index;not null"`
	TimeOffset  float64
	Vertical    float64
	North       float64
	East        float64
}

// FilterDefinition is a named, immutable preprocessing configuration.
// Deleting one that a processed record references is rejected.
type FilterDefinition struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"uniqueIndex;not null"`
	FilterType   string `gorm:"not null"`
	LowCutoff    float64
	HighCutoff   float64
	Order        int
	TaperType    string
	TaperPercent float64
}

// TimeDomainScalars are the per-component derived scalars of a processed
// record, embedded three times with component prefixes.
type TimeDomainScalars struct {
	PGA            float64
	PGV            float64
	PGD            float64
	AriasIntensity float64
	Duration595    float64
	CAV            float64
	MeanPeriod     float64
}

// ProcessedAccelerationRecord is the result of one (record, filter,
// process type) application. The triple is unique; reprocessing overwrites.
type ProcessedAccelerationRecord struct {
	ID          uint                `gorm:"primaryKey"`
	RecordID    uint                `gorm:"uniqueIndex:idx_processed_scope;not null"`
	FilterID    uint                `gorm:"uniqueIndex:idx_processed_scope;not null"`
	ProcessType seismic.ProcessType `gorm:"uniqueIndex:idx_processed_scope;not null"`
	ProcessedAt time.Time

	Vertical TimeDomainScalars `gorm:"embedded;embeddedPrefix:vertical_"`
	North    TimeDomainScalars `gorm:"embedded;embeddedPrefix:north_"`
	East     TimeDomainScalars `gorm:"embedded;embeddedPrefix:east_"`

	Samples []ProcessedAccelerationSample `gorm:"foreignKey:ProcessedRecordID;constraint:OnDelete:CASCADE"`
}

// ComponentMotion is one component's processed motion at one time step.
type ComponentMotion struct {
	Acceleration float64
	Velocity     float64
	Displacement float64
}

// ProcessedAccelerationSample mirrors AccelerationSample for a processed
// record, with integrated velocity and displacement per component.
type ProcessedAccelerationSample struct {
	ID                uint `gorm:"primaryKey"`
	ProcessedRecordID uint `gorm:"uniqueIndex:idx_proc_sample_record_index;not null"`
	SampleIndex       int  `gorm:"uniqueIndex:idx_proc_sample_record_index;not null"`
	TimeOffset        float64

	Vertical ComponentMotion `gorm:"embedded;embeddedPrefix:vertical_"`
	North    ComponentMotion `gorm:"embedded;embeddedPrefix:north_"`
	East     ComponentMotion `gorm:"embedded;embeddedPrefix:east_"`
}

// FourierSpectrum is one frequency bin of a record/component amplitude
// spectrum.
type FourierSpectrum struct {
	ID                 uint               `gorm:"primaryKey"`
	RecordID           uint               `gorm:"uniqueIndex:idx_fourier_scope;not null"`
	RecordType         seismic.RecordType `gorm:"uniqueIndex:idx_fourier_scope;not null"`
	Component          seismic.Component  `gorm:"uniqueIndex:idx_fourier_scope;not null"`
	Frequency          float64            `gorm:"uniqueIndex:idx_fourier_scope;not null"`
	Amplitude          float64
	Phase              float64
	AmplitudeDB        float64
	PSD                float64
	CumulativePower    float64
	CumulativePowerPct float64
}

// ResponseSpectrum is one (period, damping) grid point of the time-domain
// oscillator solution.
type ResponseSpectrum struct {
	ID         uint               `gorm:"primaryKey"`
	RecordID   uint               `gorm:"uniqueIndex:idx_response_scope;not null"`
	RecordType seismic.RecordType `gorm:"uniqueIndex:idx_response_scope;not null"`
	Component  seismic.Component  `gorm:"uniqueIndex:idx_response_scope;not null"`
	Damping    float64            `gorm:"uniqueIndex:idx_response_scope;not null"`
	Period     float64            `gorm:"uniqueIndex:idx_response_scope;not null"`
	Sd         float64
	Sv         float64
	Sa         float64
	PSv        float64
	PSa        float64
}

// FourierResponseSpectrum holds the same grid solved through the frequency
// domain.
type FourierResponseSpectrum struct {
	ID         uint               `gorm:"primaryKey"`
	RecordID   uint               `gorm:"uniqueIndex:idx_fresponse_scope;not null"`
	RecordType seismic.RecordType `gorm:"uniqueIndex:idx_fresponse_scope;not null"`
	Component  seismic.Component  `gorm:"uniqueIndex:idx_fresponse_scope;not null"`
	Damping    float64            `gorm:"uniqueIndex:idx_fresponse_scope;not null"`
	Period     float64            `gorm:"uniqueIndex:idx_fresponse_scope;not null"`
	Sd         float64
	Sv         float64
	Sa         float64
	PSv        float64
	PSa        float64
}

// VelocityDisplacementSpectrum is the Fourier velocity |X|/ω and
// displacement |X|/ω² at one frequency bin.
type VelocityDisplacementSpectrum struct {
	ID           uint               `gorm:"primaryKey"`
	RecordID     uint               `gorm:"uniqueIndex:idx_veldisp_scope;not null"`
	RecordType   seismic.RecordType `gorm:"uniqueIndex:idx_veldisp_scope;not null"`
	Component    seismic.Component  `gorm:"uniqueIndex:idx_veldisp_scope;not null"`
	Frequency    float64            `gorm:"uniqueIndex:idx_veldisp_scope;not null"`
	Velocity     float64
	Displacement float64
}

// SpectralRatio is the horizontal-over-vertical amplitude ratio at one
// frequency bin.
type SpectralRatio struct {
	ID         uint               `gorm:"primaryKey"`
	RecordID   uint               `gorm:"uniqueIndex:idx_ratio_scope;not null"`
	RecordType seismic.RecordType `gorm:"uniqueIndex:idx_ratio_scope;not null"`
	Frequency  float64            `gorm:"uniqueIndex:idx_ratio_scope;not null"`
	Ratio      float64
}

// SpectralParameters is the scalar reduction of one response spectrum.
// Exactly one row per (record, type, component, damping).
type SpectralParameters struct {
	ID         uint               `gorm:"primaryKey"`
	RecordID   uint               `gorm:"uniqueIndex:idx_params_scope;not null"`
	RecordType seismic.RecordType `gorm:"uniqueIndex:idx_params_scope;not null"`
	Component  seismic.Component  `gorm:"uniqueIndex:idx_params_scope;not null"`
	Damping    float64            `gorm:"uniqueIndex:idx_params_scope;not null"`

	PeakSa            float64
	PeakSaPeriod      float64
	PeakSv            float64
	PeakSvPeriod      float64
	PeakSd            float64
	PeakSdPeriod      float64
	PredominantPeriod float64
	MeanPeriod        float64
	A95               float64
	V95               float64
	D95               float64
	Bandwidth         float64
	ShapeFactor       float64
	Regularity        float64
}

// CoherenceSpectrum pairs two records/components at one frequency bin. The
// key is canonicalised so Record1ID <= Record2ID; callers go through
// CanonicalCoherenceKey.
type CoherenceSpectrum struct {
	ID         uint              `gorm:"primaryKey"`
	Record1ID  uint              `gorm:"uniqueIndex:idx_coherence_scope;not null"`
	Record2ID  uint              `gorm:"uniqueIndex:idx_coherence_scope;not null"`
	Component1 seismic.Component `gorm:"uniqueIndex:idx_coherence_scope;not null"`
	Component2 seismic.Component `gorm:"uniqueIndex:idx_coherence_scope;not null"`
	Frequency  float64           `gorm:"uniqueIndex:idx_coherence_scope;not null"`
	Coherence  float64
	Phase      float64
}

// SpectralStability is one segment's spectral value at one frequency bin,
// with the across-segment statistics repeated per row.
type SpectralStability struct {
	ID            uint               `gorm:"primaryKey"`
	RecordID      uint               `gorm:"uniqueIndex:idx_stability_scope;not null"`
	RecordType    seismic.RecordType `gorm:"uniqueIndex:idx_stability_scope;not null"`
	Component     seismic.Component  `gorm:"uniqueIndex:idx_stability_scope;not null"`
	SegmentNumber int                `gorm:"uniqueIndex:idx_stability_scope;not null"`
	SegmentsTotal int                `gorm:"uniqueIndex:idx_stability_scope;not null"`
	Frequency     float64            `gorm:"uniqueIndex:idx_stability_scope;not null"`

	Amplitude      float64
	Phase          float64
	MeanAmplitude  float64
	StdAmplitude   float64
	CoV            float64 `gorm:"column:cov"`
	MeanPhase      float64
	StdPhase       float64
	StabilityIndex float64
}
