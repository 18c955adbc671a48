package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/evaluator"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/export"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/parser"
)

// NewExportCmd creates the 'export' command.
func NewExportCmd() *cobra.Command {
	var src indexFlags
	var qf queryFlags
	var output string

	cmd := &cobra.Command{
		Use:   "export [query]",
		Short: "Export search results as a report_pid CSV",
		Long: `Run a search and write every matching report identifier to a CSV file
with a single report_pid column, ready for the bulk report downloader.`,
		Example: `  reportsearch export coal
  reportsearch export --term1 coal --join1 NOT --term2 seam --out coal.csv
  reportsearch export --out - "coal AND gold"   # write to stdout`,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := qf.query(args)
			if err != nil {
				return err
			}
			idx, err := src.load(cmd.Context())
			if err != nil {
				return err
			}
			return runExport(cmd.OutOrStdout(), cmd.ErrOrStderr(), idx, q, output)
		},
	}

	src.register(cmd)
	qf.register(cmd)
	cmd.Flags().StringVarP(&output, "out", "o", "", "Output path, or - for stdout (default: <terms>_search_results.csv)")

	return cmd
}

// runExport writes the CSV to output, or to stdout when output is "-".
// Status lines go to status so stdout stays clean CSV.
func runExport(stdout, status io.Writer, idx *index.Index, q *parser.Query, output string) error {
	out, err := evaluator.New(evaluator.DefaultLargeResultThreshold).Evaluate(q, idx)
	if err != nil {
		return err
	}
	if !out.Found() {
		return fmt.Errorf("search terms not found in the report index: %v", out.MissingTerms)
	}
	if output == "-" {
		return export.WriteCSV(stdout, out.Results)
	}
	if output == "" {
		output = export.Filename(q)
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", output, err)
	}
	if err := export.WriteCSV(f, out.Results); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", output, err)
	}
	fmt.Fprintf(status, "%d report ids written to %s\n", out.Count, output)
	return nil
}
