package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xtal-snapshots/crystal-snapshots/internal/graph"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the subgraph schema",
	Long: `Print the GraphQL schema of the subgraph to stdout, for composing the
supergraph with the router.

Examples:
  crystal-snapshots schema > crystal-snapshots.graphql`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprint(cmd.OutOrStdout(), graph.SDL)
		return err
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
