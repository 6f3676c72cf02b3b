package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-auth/internal/database"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the HNSW candidate index",
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the HNSW index from the store and save it",
	Long: `Build a fresh HNSW index from every enrolled identity and write it to
HNSW_INDEX_PATH. Superseded descriptors left in a long-running index are
dropped. Stop the server first; it saves its own index on shutdown.`,
	RunE: runIndexRebuild,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexRebuildCmd)
}

func runIndexRebuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := requireDurableStore(cfg); err != nil {
		return err
	}
	if cfg.Database.HNSWIndexPath == "" {
		return errors.New("HNSW_INDEX_PATH environment variable is required")
	}

	ctx := context.Background()
	store, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	identities, err := store.All(ctx)
	if err != nil {
		return fmt.Errorf("loading identities: %w", err)
	}

	startTime := time.Now()
	index := database.NewHNSWIndex(cfg.Auth.Dimension)
	skipped := index.Build(identities)
	if err := index.SaveWithMetadata(cfg.Database.HNSWIndexPath); err != nil {
		return fmt.Errorf("saving HNSW index: %w", err)
	}

	fmt.Printf("HNSW index rebuilt with %d identities in %s (saved to %s)\n",
		index.Count(), time.Since(startTime).Round(time.Millisecond), cfg.Database.HNSWIndexPath)
	if skipped > 0 {
		fmt.Printf("Warning: %d identities skipped (descriptor is not %d-dimensional)\n", skipped, cfg.Auth.Dimension)
	}
	return nil
}
