package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/index/segment"
)

// NewSnapshotCmd creates the 'snapshot' command.
func NewSnapshotCmd() *cobra.Command {
	var src indexFlags
	var dir string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Write the index as a local .rpix snapshot",
		Long: `Fetch the report index (or read --index) and write it as a checksummed
segment file. The search service falls back to the newest snapshot when the
remote index cannot be fetched.`,
		Example: `  reportsearch snapshot --dir data/index
  reportsearch snapshot --index downloads/index.json --dir data/index`,
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := src.load(cmd.Context())
			if err != nil {
				return err
			}
			return runSnapshot(cmd.OutOrStdout(), idx, dir)
		},
	}

	src.register(cmd)
	cmd.Flags().StringVar(&dir, "dir", "data/index", "Snapshot directory")

	return cmd
}

func runSnapshot(w io.Writer, idx *index.Index, dir string) error {
	name, err := segment.NewWriter(dir).Write(idx)
	if err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	fmt.Fprintf(w, "Snapshot written: %s (%d terms, version %s)\n", filepath.Join(dir, name), idx.Len(), idx.Version())
	return nil
}
