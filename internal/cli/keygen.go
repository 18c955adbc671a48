package cli

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/middleware"
)

// NewKeygenCmd creates the 'keygen' command.
func NewKeygenCmd() *cobra.Command {
	var hashOnly string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an admin API key for the search service",
		Long: `Generate a random admin key and the SHA-256 digest to list under
server.adminKeys (or RS_SERVER_ADMIN_KEYS). Only the digest is stored in
configuration; the key itself is shown once.`,
		Example: `  reportsearch keygen
  reportsearch keygen --hash existing-key`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if hashOnly != "" {
				fmt.Fprintln(cmd.OutOrStdout(), middleware.HashKey(hashOnly))
				return nil
			}
			return runKeygen(cmd.OutOrStdout(), rand.Reader)
		},
	}

	cmd.Flags().StringVar(&hashOnly, "hash", "", "Print the digest of an existing key instead of generating one")

	return cmd
}

func runKeygen(w io.Writer, random io.Reader) error {
	b := make([]byte, 32)
	if _, err := io.ReadFull(random, b); err != nil {
		return fmt.Errorf("generating key: %w", err)
	}
	key := hex.EncodeToString(b)
	fmt.Fprintf(w, "key:    %s\n", key)
	fmt.Fprintf(w, "digest: %s\n", middleware.HashKey(key))
	return nil
}
