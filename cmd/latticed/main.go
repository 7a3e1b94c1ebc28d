// Command latticed runs the Lattice document store: its HTTP API and the
// operator-facing CLI verbs built atop the same core services
// (internal/lattice/{ingest,search,rebuild}).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "latticed",
	Short: "Lattice JSON document store",
	Long: `latticed stores JSON documents in per-collection directories with
derived metadata (schemas, flattened projections, dynamic per-key index
tables) in a relational backend. It serves a versioned HTTP API and offers
the same ingestion, search, and index-maintenance operations as CLI verbs.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to latticed.toml (optional; defaults and LATTICE_ env vars apply otherwise)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
