package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/evaluator"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/parser"
)

// NewSearchCmd creates the 'search' command.
func NewSearchCmd() *cobra.Command {
	var src indexFlags
	var qf queryFlags
	var jsonOutput bool
	var threshold int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the report index",
		Long: `Evaluate a boolean query of up to three terms joined by AND, OR or NOT.
Terms are lower-cased and stripped of everything but letters and spaces.
Evaluation is left to right: (term1 join1 term2) join2 term3.`,
		Example: `  reportsearch search coal
  reportsearch search "coal seam AND gold NOT copper"
  reportsearch search --term1 coal --join1 OR --term2 seam
  reportsearch search --index data/index.json --json coal`,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := qf.query(args)
			if err != nil {
				return err
			}
			idx, err := src.load(cmd.Context())
			if err != nil {
				return err
			}
			return runSearch(cmd.OutOrStdout(), idx, q, threshold, jsonOutput)
		},
	}

	src.register(cmd)
	qf.register(cmd)
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	cmd.Flags().IntVar(&threshold, "threshold", evaluator.DefaultLargeResultThreshold, "Result count above which only a summary is printed")

	return cmd
}

// runSearch prints the advisory messages and, unless the result is large,
// every report identifier.
func runSearch(w io.Writer, idx *index.Index, q *parser.Query, threshold int, jsonOutput bool) error {
	out, err := evaluator.New(threshold).Evaluate(q, idx)
	if err != nil {
		return err
	}
	result := &executor.SearchResult{
		Query:        q.String(),
		RawQuery:     q.RawQuery,
		Outcome:      *out,
		Messages:     evaluator.Messages(q, out),
		IndexVersion: idx.Version(),
	}
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	for _, msg := range result.Messages {
		fmt.Fprintln(w, msg)
	}
	if out.Found() && !out.LargeResult {
		for _, id := range out.Results {
			fmt.Fprintf(w, "  %s\n", id)
		}
	}
	return nil
}
