package analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/joelefrain/gura-forge/internal/conf"
	"github.com/joelefrain/gura-forge/internal/datastore"
	"github.com/joelefrain/gura-forge/internal/logging"
)

// SummaryOptions selects and formats the station summary output.
type SummaryOptions struct {
	StationCode string
	// EventID, when non-empty, restricts the rows to one event.
	EventID string
	// Format is "table" (default) or "csv".
	Format string
}

// StationSummary queries the summary projection for a station and writes it
// to w in the requested format.
func StationSummary(settings *conf.Settings, opts SummaryOptions, w io.Writer) error {
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

	rows, err := store.StationSummary(opts.StationCode)
	if err != nil {
		return err
	}
	if opts.EventID != "" {
		filtered := rows[:0]
		for _, r := range rows {
			if r.EventID == opts.EventID {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}

	switch opts.Format {
	case "", "table":
		return writeSummaryTable(w, rows)
	case "csv":
		return writeSummaryCsv(w, rows)
	default:
		return fmt.Errorf("unsupported output format: %s", opts.Format)
	}
}

var summaryHeader = []string{
	"event", "record",
	"raw_pga_v", "raw_pga_n", "raw_pga_e",
	"pga_v", "pga_n", "pga_e",
	"pgv_v", "pgv_n", "pgv_e",
	"arias_v", "arias_n", "arias_e",
	"process", "peak_sa", "peak_sa_period", "peak_sv", "peak_sv_period",
}

func summaryFields(r *datastore.StationSummaryRow) []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', 6, 64) }
	return []string{
		r.EventID, strconv.FormatUint(uint64(r.RecordID), 10),
		f(r.RawPGA.Vertical), f(r.RawPGA.North), f(r.RawPGA.East),
		f(r.ProcessedPGA.Vertical), f(r.ProcessedPGA.North), f(r.ProcessedPGA.East),
		f(r.PGV.Vertical), f(r.PGV.North), f(r.PGV.East),
		f(r.AriasIntensity.Vertical), f(r.AriasIntensity.North), f(r.AriasIntensity.East),
		string(r.ProcessType),
		f(r.PeakSa), f(r.PeakSaPeriod), f(r.PeakSv), f(r.PeakSvPeriod),
	}
}

func writeSummaryTable(w io.Writer, rows []datastore.StationSummaryRow) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	for i, h := range summaryHeader {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, h)
	}
	fmt.Fprintln(tw)
	for i := range rows {
		for j, field := range summaryFields(&rows[i]) {
			if j > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, field)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

func writeSummaryCsv(w io.Writer, rows []datastore.StationSummaryRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(summaryHeader); err != nil {
		return err
	}
	for i := range rows {
		if err := cw.Write(summaryFields(&rows[i])); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
