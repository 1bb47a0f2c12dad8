// Package analysis wires the configuration, datastore, metrics and pipeline
// together for the CLI entry points.
package analysis

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/joelefrain/gura-forge/internal/conf"
	"github.com/joelefrain/gura-forge/internal/datastore"
	"github.com/joelefrain/gura-forge/internal/logging"
	"github.com/joelefrain/gura-forge/internal/observability"
	"github.com/joelefrain/gura-forge/internal/pipeline"
)

// ProcessOptions selects what the process command works on.
type ProcessOptions struct {
	// RecordIDs to process. Ignored when All is set.
	RecordIDs []uint
	// All processes every stored record.
	All bool
	// MetricsAddr, when non-empty, exposes /metrics on that address for the
	// duration of the run.
	MetricsAddr string
}

// ProcessRecords opens the configured store, registers the configured filter
// definitions and runs the derivation pipeline over the selected records.
// Individual record failures are reported but do not abort the batch; the
// returned error is non-nil only when the run as a whole could not proceed or
// at least one record failed.
func ProcessRecords(ctx context.Context, settings *conf.Settings, opts ProcessOptions) error {
	store := datastore.New(settings)
	if store == nil {
		return fmt.Errorf("no database backend enabled in configuration")
	}
	if err := store.Open(); err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Warn("Failed to close datastore", "error", err)
		}
	}()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	var metricsSrv *http.Server
	if opts.MetricsAddr != "" {
		metricsSrv = serveMetrics(opts.MetricsAddr, metrics)
		defer shutdownMetrics(metricsSrv)
	}

	proc := pipeline.New(store, settings, metrics)

	filters, err := proc.RegisterFilters()
	if err != nil {
		return fmt.Errorf("failed to register filter definitions: %w", err)
	}
	logging.Info("Registered filter definitions", "count", len(filters))

	ids := opts.RecordIDs
	if opts.All {
		ids, err = store.ListRecordIDs()
		if err != nil {
			return fmt.Errorf("failed to list records: %w", err)
		}
	}
	if len(ids) == 0 {
		logging.Info("No records to process")
		return nil
	}

	start := time.Now()
	batch := proc.ProcessBatch(ctx, ids)

	var failed []uint
	for id, err := range batch.Errors {
		logging.Error("Record processing failed", "record_id", id, "error", err)
		failed = append(failed, id)
	}
	for _, res := range batch.Results {
		if res.Failed() {
			failed = append(failed, res.RecordID)
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })

	logging.Info("Processing run finished",
		"records", len(ids),
		"failed", len(failed),
		"elapsed", time.Since(start).Round(time.Millisecond))

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d records failed: %v", len(failed), len(ids), failed)
	}
	return nil
}

func serveMetrics(addr string, metrics *observability.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logging.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Warn("Metrics server stopped", "error", err)
		}
	}()
	return srv
}

func shutdownMetrics(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Metrics server shutdown failed", "error", err)
	}
}
