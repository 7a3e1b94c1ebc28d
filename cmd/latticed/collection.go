package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lattice/lattice/internal/blobstore"
	"github.com/lattice/lattice/internal/lattice/id"
	"github.com/lattice/lattice/internal/lattice/model"
)

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Manage collections",
}

var (
	collectionCreateEnforcement string
	collectionCreateIndexing    string
	collectionCreateLocking     bool
)

var collectionCreateCmd = &cobra.Command{
	Use:   "create <name> <documents-directory>",
	Short: "Create a new collection",
	Args:  cobra.ExactArgs(2),
	RunE:  runCollectionCreate,
}

var collectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all collections",
	Args:  cobra.NoArgs,
	RunE:  runCollectionList,
}

func init() {
	rootCmd.AddCommand(collectionCmd)
	collectionCmd.AddCommand(collectionCreateCmd)
	collectionCmd.AddCommand(collectionListCmd)

	collectionCreateCmd.Flags().StringVar(&collectionCreateEnforcement, "enforcement", string(model.EnforcementNone), "schema enforcement mode: None, Soft, Strict")
	collectionCreateCmd.Flags().StringVar(&collectionCreateIndexing, "indexing", string(model.IndexingAll), "indexing mode: None, All, Selective")
	collectionCreateCmd.Flags().BoolVar(&collectionCreateLocking, "object-locking", false, "enable named document-ingestion locks")
}

func runCollectionCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	repo, _, err := openRepo(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	name, dir := args[0], args[1]

	if err := blobstore.New().EnsureDirectory(dir); err != nil {
		return err
	}

	c := &model.Collection{
		ID:                    id.New(id.Collection),
		Name:                  name,
		DocumentsDirectory:    dir,
		SchemaEnforcementMode: model.SchemaEnforcementMode(collectionCreateEnforcement),
		IndexingMode:          model.IndexingMode(collectionCreateIndexing),
		EnableObjectLocking:   collectionCreateLocking,
		ObjectLockExpiration:  30,
	}
	if err := repo.CreateCollection(ctx, c); err != nil {
		return err
	}

	return printJSON(c)
}

func runCollectionList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	repo, _, err := openRepo(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	collections, err := repo.ListCollections(ctx)
	if err != nil {
		return err
	}
	return printJSON(collections)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
