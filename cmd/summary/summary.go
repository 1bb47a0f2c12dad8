package summary

import (
	"github.com/spf13/cobra"

	"github.com/joelefrain/gura-forge/internal/analysis"
	"github.com/joelefrain/gura-forge/internal/conf"
)

// Command creates the summary command, which prints the per-station summary
// projection.
func Command(settings *conf.Settings) *cobra.Command {
	var opts analysis.SummaryOptions

	cmd := &cobra.Command{
		Use:   "summary [station code]",
		Short: "Print derived-metric summary rows for a station",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.StationCode = args[0]
			return analysis.StationSummary(settings, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.EventID, "event", "", "Restrict the summary to one event ID")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, csv")

	return cmd
}
