/*
Command reportsearch queries the report index from the command line.

Usage:

	reportsearch [command]

Available Commands:

	search      Search the report index
	export      Export search results as a report_pid CSV
	snapshot    Write the index as a local .rpix snapshot
	terms       Show index statistics or look up individual terms
	keygen      Generate an admin API key for the search service

Examples:

	# Reports mentioning coal seams but not copper
	reportsearch search "coal seam NOT copper"

	# Save the result list for the bulk downloader
	reportsearch export --term1 coal --join1 AND --term2 gold
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/cli"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/logger"
)

// Set via ldflags.
var version = "dev"

func main() {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "reportsearch",
		Short: "Boolean search over the report OCR index",
		Long: `reportsearch finds reports whose OCR text contains terms of interest.
Queries combine up to three terms with AND, OR and NOT and are evaluated
left to right. Results can be exported as a CSV of report identifiers.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "warn"
			if verbose {
				level = "debug"
			}
			// Logs go to stderr so results on stdout can be piped.
			logger.SetupWriter(os.Stderr, level, "text")
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log index loading and fetch progress")

	rootCmd.AddCommand(cli.NewSearchCmd())
	rootCmd.AddCommand(cli.NewExportCmd())
	rootCmd.AddCommand(cli.NewSnapshotCmd())
	rootCmd.AddCommand(cli.NewTermsCmd())
	rootCmd.AddCommand(cli.NewKeygenCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
