// Package pipeline orchestrates the derived-metric computation for
// acceleration records: preprocessing, the concurrent derived-entity
// families, and their idempotent persistence.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joelefrain/gura-forge/internal/conf"
	"github.com/joelefrain/gura-forge/internal/datastore"
	"github.com/joelefrain/gura-forge/internal/errors"
	"github.com/joelefrain/gura-forge/internal/logging"
	"github.com/joelefrain/gura-forge/internal/observability"
	"github.com/joelefrain/gura-forge/internal/seismic"
	"github.com/joelefrain/gura-forge/internal/seismic/filter"
	"github.com/joelefrain/gura-forge/internal/seismic/preprocess"
	"github.com/joelefrain/gura-forge/internal/seismic/spectral"
	"github.com/joelefrain/gura-forge/internal/seismic/timedomain"
	"github.com/joelefrain/gura-forge/internal/seismic/window"
)

func getLogger() *slog.Logger {
	return logging.ForService("pipeline")
}

// FamilyError records the failure of one derived-entity family. A numerical
// failure in one family does not block the others.
type FamilyError struct {
	Family string
	Err    error
}

// RecordResult is the outcome of one record's pipeline run.
type RecordResult struct {
	RecordID uint
	RunID    string

	FamilyErrors []FamilyError
}

// Failed reports whether any family failed.
func (r *RecordResult) Failed() bool { return len(r.FamilyErrors) > 0 }

// BatchResult collects per-record outcomes of a batch run.
type BatchResult struct {
	Results []*RecordResult
	Errors  map[uint]error // fatal per-record errors (integrity, configuration)
}

// Pipeline computes and persists every derived-entity family for a record.
type Pipeline struct {
	store    datastore.Interface
	settings *conf.Settings
	metrics  *observability.Metrics

	registerOnce sync.Once
	filters      []datastore.FilterDefinition
	registerErr  error
}

// New builds a pipeline. metrics may be nil.
func New(store datastore.Interface, settings *conf.Settings, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{store: store, settings: settings, metrics: metrics}
}

// RegisterFilters upserts the configured filter definitions into the store
// and returns them with their assigned IDs. Registration happens once per
// pipeline; concurrent record runs share the resolved definitions instead of
// racing find-then-create upserts against the name unique index.
func (p *Pipeline) RegisterFilters() ([]datastore.FilterDefinition, error) {
	p.registerOnce.Do(func() {
		defs := make([]datastore.FilterDefinition, 0, len(p.settings.Processing.Filters))
		for _, fc := range p.settings.Processing.Filters {
			def := datastore.FilterDefinition{
				Name:         fc.Name,
				FilterType:   fc.Type,
				LowCutoff:    fc.LowCutoff,
				HighCutoff:   fc.HighCutoff,
				Order:        fc.Order,
				TaperType:    fc.TaperType,
				TaperPercent: fc.TaperPercent,
			}
			if err := p.store.SaveFilterDefinition(&def); err != nil {
				p.registerErr = err
				return
			}
			defs = append(defs, def)
		}
		p.filters = defs
	})
	return p.filters, p.registerErr
}

// ProcessBatch runs the pipeline over the given records with bounded
// concurrency. A fatal error on one record never aborts its siblings; it is
// reported in BatchResult.Errors instead.
func (p *Pipeline) ProcessBatch(ctx context.Context, recordIDs []uint) *BatchResult {
	batch := &BatchResult{Errors: make(map[uint]error)}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.settings.Processing.MaxConcurrent)

	for _, id := range recordIDs {
		g.Go(func() error {
			res, err := p.ProcessRecord(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				batch.Errors[id] = err
				return nil
			}
			batch.Results = append(batch.Results, res)
			return nil
		})
	}
	_ = g.Wait()
	return batch
}

// ProcessRecord runs the full pipeline for one record: derived families on
// the raw series, then one processed variant per configured filter and
// process type, each with its own derived families.
func (p *Pipeline) ProcessRecord(ctx context.Context, recordID uint) (*RecordResult, error) {
	result := &RecordResult{
		RecordID: recordID,
		RunID:    uuid.New().String(),
	}
	log := getLogger().With("run_id", result.RunID, "record_id", recordID)

	if p.metrics != nil {
		p.metrics.Pipeline.ActiveRecords.Inc()
		defer p.metrics.Pipeline.ActiveRecords.Dec()
	}
	start := time.Now()

	record, err := p.store.GetRecord(recordID)
	if err != nil {
		p.countError(err)
		return nil, err
	}
	raw, err := p.store.GetRecordSeries(recordID)
	if err != nil {
		p.countError(err)
		return nil, err
	}

	// Raw-series families under the "original" record type.
	famErrs, _ := p.runFamilies(ctx, recordID, seismic.RecordTypeOriginal, raw)
	result.FamilyErrors = append(result.FamilyErrors, famErrs...)

	defs, err := p.RegisterFilters()
	if err != nil {
		p.countError(err)
		return nil, err
	}

	for i := range defs {
		def := &defs[i]
		for _, ptName := range p.settings.Processing.ProcessTypes {
			pt := seismic.ProcessType(ptName)
			famErrs, err := p.processVariant(ctx, record, raw, def, pt)
			if err != nil {
				// Integrity and configuration failures are fatal to the
				// record run: the processed scope stays untouched.
				p.countError(err)
				return nil, err
			}
			result.FamilyErrors = append(result.FamilyErrors, famErrs...)
		}
	}

	elapsed := time.Since(start)
	if p.metrics != nil {
		status := "ok"
		if result.Failed() {
			status = "partial"
		}
		p.metrics.Pipeline.RecordProcessed(status)
		p.metrics.Pipeline.ObserveStage("record", elapsed.Seconds())
	}
	log.Info("record processed",
		"families_failed", len(result.FamilyErrors),
		"elapsed", elapsed)
	return result, nil
}

// processVariant preprocesses the raw series with one (filter, process type)
// pair, persists the processed record and runs the derived families on the
// processed series.
func (p *Pipeline) processVariant(ctx context.Context, record *datastore.AccelerationRecord,
	raw *seismic.TriaxialSeries, def *datastore.FilterDefinition, pt seismic.ProcessType) ([]FamilyError, error) {

	spec := &filter.Spec{
		Name:         def.Name,
		Type:         filter.Type(def.FilterType),
		LowCutoff:    def.LowCutoff,
		HighCutoff:   def.HighCutoff,
		Order:        def.Order,
		TaperType:    window.Type(def.TaperType),
		TaperPercent: def.TaperPercent,
	}

	stageStart := time.Now()
	pre, err := preprocess.Run(raw, spec, pt, preprocess.Options{DetrendLinear: true})
	if err != nil {
		return nil, err
	}
	p.observeStage("preprocess", stageStart)

	famErrs, spectra := p.runFamilies(ctx, record.ID, seismic.RecordTypeProcessed, &pre.Accel)

	// Time-domain scalars of the processed variant; the mean period needs the
	// Fourier amplitude spectrum of its own component.
	processed := &datastore.ProcessedAccelerationRecord{
		RecordID:    record.ID,
		FilterID:    def.ID,
		ProcessType: pt,
	}
	for _, c := range seismic.Orthogonal() {
		var vel, disp []float64
		if pre.Vel != nil {
			vel = pre.Vel.Component(c)
		}
		if pre.Disp != nil {
			disp = pre.Disp.Component(c)
		}
		metrics, err := timedomain.Analyze(pre.Accel.Component(c), vel, disp, pre.Accel.SamplingFreq)
		if err != nil {
			return nil, err
		}
		if s, ok := spectra[c]; ok {
			metrics.SetMeanPeriod(s.Frequencies, s.Amplitude)
		}
		scalars := datastore.TimeDomainScalars{
			PGA:            metrics.PGA,
			PGV:            metrics.PGV,
			PGD:            metrics.PGD,
			AriasIntensity: metrics.AriasIntensity,
			Duration595:    metrics.Duration595,
			CAV:            metrics.CAV,
			MeanPeriod:     metrics.MeanPeriod,
		}
		switch c {
		case seismic.ComponentVertical:
			processed.Vertical = scalars
		case seismic.ComponentNorth:
			processed.North = scalars
		case seismic.ComponentEast:
			processed.East = scalars
		}
	}

	samples := buildProcessedSamples(pre)
	stageStart = time.Now()
	if err := p.store.ReplaceProcessedRecord(processed, samples); err != nil {
		return nil, err
	}
	p.observeStage("persist-processed", stageStart)

	return famErrs, nil
}

func buildProcessedSamples(pre *preprocess.Result) []datastore.ProcessedAccelerationSample {
	n := pre.Accel.NumSamples()
	dt := pre.Accel.Dt()
	samples := make([]datastore.ProcessedAccelerationSample, n)
	for i := 0; i < n; i++ {
		s := datastore.ProcessedAccelerationSample{
			SampleIndex: i,
			TimeOffset:  float64(i) * dt,
			Vertical:    datastore.ComponentMotion{Acceleration: pre.Accel.Vertical[i]},
			North:       datastore.ComponentMotion{Acceleration: pre.Accel.North[i]},
			East:        datastore.ComponentMotion{Acceleration: pre.Accel.East[i]},
		}
		if pre.Vel != nil {
			s.Vertical.Velocity = pre.Vel.Vertical[i]
			s.North.Velocity = pre.Vel.North[i]
			s.East.Velocity = pre.Vel.East[i]
		}
		if pre.Disp != nil {
			s.Vertical.Displacement = pre.Disp.Vertical[i]
			s.North.Displacement = pre.Disp.North[i]
			s.East.Displacement = pre.Disp.East[i]
		}
		samples[i] = s
	}
	return samples
}

// runFamilies executes the derived-entity families of one series
// concurrently, collecting failures per family. The Fourier spectra are
// returned for the mean-period dependency of the time-domain metrics.
func (p *Pipeline) runFamilies(ctx context.Context, recordID uint, rt seismic.RecordType,
	ts *seismic.TriaxialSeries) ([]FamilyError, map[seismic.Component]*spectral.Spectrum) {

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		famErrs []FamilyError
	)
	fail := func(family string, err error) {
		mu.Lock()
		famErrs = append(famErrs, FamilyError{Family: family, Err: err})
		mu.Unlock()
		if p.metrics != nil {
			p.metrics.Pipeline.RecordFamilyFailure(family)
		}
		getLogger().Error("derived family failed",
			"family", family, "record_id", recordID, "record_type", rt, "error", err)
	}
	run := func(family string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ctx.Err() != nil {
				fail(family, ctx.Err())
				return
			}
			start := time.Now()
			if err := fn(); err != nil {
				fail(family, err)
				return
			}
			p.observeStage(family, start)
		}()
	}

	spectraCh := make(chan map[seismic.Component]*spectral.Spectrum, 1)
	run("fourier", func() error {
		spectra, err := p.fourierFamily(recordID, rt, ts)
		if err != nil {
			spectraCh <- nil
			return err
		}
		spectraCh <- spectra
		return nil
	})
	run("response", func() error { return p.responseFamily(recordID, rt, ts) })
	run("stability", func() error { return p.stabilityFamily(recordID, rt, ts) })
	run("coherence", func() error { return p.coherenceFamily(recordID, ts) })

	spectra := <-spectraCh
	wg.Wait()
	return famErrs, spectra
}

func (p *Pipeline) observeStage(stage string, start time.Time) {
	if p.metrics != nil {
		p.metrics.Pipeline.ObserveStage(stage, time.Since(start).Seconds())
	}
}

func (p *Pipeline) countError(err error) {
	if p.metrics == nil {
		return
	}
	var enhanced *errors.EnhancedError
	category := string(errors.CategoryGeneric)
	if errors.As(err, &enhanced) {
		category = enhanced.GetCategory()
	}
	p.metrics.Pipeline.RecordError(category)
}

// windowType parses a configured window name, defaulting to Hann.
func windowType(name string) window.Type {
	if name == "" {
		return window.TypeHann
	}
	return window.Type(name)
}
