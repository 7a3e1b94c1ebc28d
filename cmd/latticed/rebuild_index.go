package main

import (
	"github.com/spf13/cobra"

	"github.com/lattice/lattice/internal/blobstore"
	"github.com/lattice/lattice/internal/lattice/indextable"
	"github.com/lattice/lattice/internal/lattice/rebuild"
)

var rebuildIndexDropUnused bool

var rebuildIndexCmd = &cobra.Command{
	Use:   "rebuild-index <collection-id>",
	Short: "Rebuild a collection's dynamic index tables from stored documents",
	Long: `rebuild-index recomputes the indexed-key set from the collection's
current indexing policy, provisions any new index tables, optionally drops
rows (and tables) for keys no longer indexed, and re-flattens every stored
document into the resulting tables (spec §4.10).`,
	Args: cobra.ExactArgs(1),
	RunE: runRebuildIndex,
}

func init() {
	rootCmd.AddCommand(rebuildIndexCmd)
	rebuildIndexCmd.Flags().BoolVar(&rebuildIndexDropUnused, "drop-unused", false, "drop index rows (and, globally, empty tables) for keys no longer indexed")
}

func runRebuildIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	repo, _, err := openRepo(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	svc := rebuild.New(repo, blobstore.New(), indextable.New(repo))
	result, err := svc.Rebuild(ctx, args[0], rebuildIndexDropUnused)
	if err != nil {
		return err
	}
	return printJSON(result)
}
