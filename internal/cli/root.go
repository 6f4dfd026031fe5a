package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "crystal-snapshots",
	Short: "Crystal snapshot subgraph",
	Long: `crystal-snapshots serves the crystal snapshots of data collections as a
federated GraphQL subgraph. Snapshot paths are read from the DataCollection
table and returned as pre-signed S3 URLs valid for ten minutes.

Lookups made while one GraphQL request resolves are batched into a single
database query.

Exit Codes:
  0  - Server shut down cleanly
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration
  11 - Database connection failed
  12 - Interrupted before the server was ready`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo(os.Stdout)
		return nil
	}
	return rootCmd.Execute()
}

func init() {
	// -h belongs to --host, as in psql.
	rootCmd.PersistentFlags().Bool("help", false, "Help for crystal-snapshots")
}
