package process

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joelefrain/gura-forge/internal/analysis"
	"github.com/joelefrain/gura-forge/internal/conf"
)

// Command creates the process command, which runs the derivation pipeline
// over stored acceleration records.
func Command(settings *conf.Settings) *cobra.Command {
	var opts analysis.ProcessOptions

	cmd := &cobra.Command{
		Use:   "process [recordID ...]",
		Short: "Derive metrics and spectra for stored records",
		Long: `Run the full derivation pipeline (preprocessing, time-domain metrics,
Fourier and response spectra, coherence and stability) over the given record
IDs. Results replace any prior results for the same record, filter and
process type.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.All && len(args) == 0 {
				return fmt.Errorf("no record IDs given; pass IDs or use --all")
			}
			ids, err := parseRecordIDs(args)
			if err != nil {
				return err
			}
			opts.RecordIDs = ids
			return analysis.ProcessRecords(cmd.Context(), settings, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "Process every stored record")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address during the run, e.g. :9090")
	cmd.Flags().IntVar(&settings.Processing.MaxConcurrent, "max-concurrent", settings.Processing.MaxConcurrent, "Maximum records processed in parallel")

	return cmd
}

func parseRecordIDs(args []string) ([]uint, error) {
	ids := make([]uint, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseUint(arg, 10, 32)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("invalid record ID %q", arg)
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}
