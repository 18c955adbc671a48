package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/index/loader"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/config"
)

// indexFlags selects where commands read the index from.
type indexFlags struct {
	indexPath  string
	configPath string
}

func (f *indexFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.indexPath, "index", "", "Local index file (.json document or .rpix snapshot); default fetches the configured URL")
	cmd.Flags().StringVar(&f.configPath, "config", "", "Config file (default: built-in settings plus RS_* environment)")
}

// load reads the index from --index, or else from the configured remote URL
// with the snapshot directory as fallback.
func (f *indexFlags) load(ctx context.Context) (*index.Index, error) {
	if f.indexPath != "" {
		return loader.LoadFile(f.indexPath)
	}
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	holder := index.NewHolder()
	if err := loader.New(cfg.Index, holder, nil).Bootstrap(ctx); err != nil {
		return nil, err
	}
	return holder.Current(), nil
}

// queryFlags are the search form fields. Positional arguments form a
// free-text query instead.
type queryFlags struct {
	term1, join1, term2, join2, term3 string
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.term1, "term1", "", "First search term")
	cmd.Flags().StringVar(&f.join1, "join1", "AND", "Join between term1 and term2 (AND, OR, NOT)")
	cmd.Flags().StringVar(&f.term2, "term2", "", "Second search term")
	cmd.Flags().StringVar(&f.join2, "join2", "AND", "Join between the first result and term3 (AND, OR, NOT)")
	cmd.Flags().StringVar(&f.term3, "term3", "", "Third search term")
}

func (f *queryFlags) query(args []string) (*parser.Query, error) {
	if len(args) > 0 {
		if f.term1 != "" {
			return nil, fmt.Errorf("use either a free-text query or --term1, not both")
		}
		return parser.Parse(strings.Join(args, " "))
	}
	if f.term1 == "" {
		return nil, fmt.Errorf("no query: pass a query such as \"coal AND seam\" or --term1")
	}
	return parser.FromForm(f.term1, f.join1, f.term2, f.join2, f.term3)
}
