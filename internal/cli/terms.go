package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/normalizer"
)

// NewTermsCmd creates the 'terms' command.
func NewTermsCmd() *cobra.Command {
	var src indexFlags
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "terms [term...]",
		Short: "Show index statistics or look up individual terms",
		Example: `  reportsearch terms
  reportsearch terms coal "coal seam"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := src.load(cmd.Context())
			if err != nil {
				return err
			}
			return runTerms(cmd.OutOrStdout(), idx, args, jsonOutput)
		},
	}

	src.register(cmd)
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}

type termInfo struct {
	Term    string `json:"term"`
	Present bool   `json:"present"`
	Reports int    `json:"reports"`
}

type indexInfo struct {
	Version   string     `json:"version"`
	Terms     int        `json:"terms"`
	Documents int        `json:"documents"`
	Lookups   []termInfo `json:"lookups,omitempty"`
}

func runTerms(w io.Writer, idx *index.Index, lookups []string, jsonOutput bool) error {
	info := indexInfo{
		Version:   idx.Version(),
		Terms:     idx.Len(),
		Documents: idx.DocCount(),
	}
	for _, raw := range lookups {
		term := normalizer.Normalize(raw)
		ids, ok := idx.Lookup(term)
		info.Lookups = append(info.Lookups, termInfo{Term: term, Present: ok, Reports: len(ids)})
	}
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintf(w, "Index version: %s\n", info.Version)
	fmt.Fprintf(w, "Terms:         %d\n", info.Terms)
	fmt.Fprintf(w, "Reports:       %d\n", info.Documents)
	for _, l := range info.Lookups {
		if l.Present {
			fmt.Fprintf(w, "  %q: %d reports\n", l.Term, l.Reports)
		} else {
			fmt.Fprintf(w, "  %q: not in index\n", l.Term)
		}
	}
	return nil
}
