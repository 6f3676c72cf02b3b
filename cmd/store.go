package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/kozaktomas/face-auth/internal/auth"
	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/kozaktomas/face-auth/internal/database/mariadb"
	"github.com/kozaktomas/face-auth/internal/database/memory"
	"github.com/kozaktomas/face-auth/internal/database/postgres"
	"github.com/kozaktomas/face-auth/internal/database/sqlite"
	"github.com/kozaktomas/face-auth/internal/observe"
)

func init() {
	database.RegisterDriver(database.DriverMemory, func(context.Context, *config.DatabaseConfig) (database.IdentityStore, error) {
		return memory.New(), nil
	})
	database.RegisterDriver(database.DriverPostgres, postgres.Open)
	database.RegisterDriver(database.DriverSQLite, sqlite.Open)
	database.RegisterDriver(database.DriverMariaDB, mariadb.Open)
}

// loadConfig loads and validates the configuration from the environment.
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newObserver creates the logger/tracer configured by cfg, writing to stderr.
func newObserver(cfg *config.Config) *observe.Observer {
	return observe.New(os.Stderr, cfg.Log.Format, cfg.Log.Verbose)
}

// requireDurableStore rejects the memory driver for commands whose effect would
// vanish when the process exits.
func requireDurableStore(cfg *config.Config) error {
	if cfg.Database.Driver == database.DriverMemory {
		return errors.New("this command needs a durable store: set DATABASE_DRIVER to postgres, sqlite or mariadb")
	}
	return nil
}

// loadHNSWIndex loads the index persisted at HNSW_INDEX_PATH and syncs it with the
// store, or builds a new one when nothing usable is on disk.
func loadHNSWIndex(ctx context.Context, cfg *config.Config, store database.IdentityReader) (*database.HNSWIndex, error) {
	identities, err := store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading identities: %w", err)
	}

	index := database.NewHNSWIndex(cfg.Auth.Dimension)
	path := cfg.Database.HNSWIndexPath

	if path != "" {
		fmt.Printf("Loading HNSW index from %s...\n", path)
		err := index.Load(path)
		switch {
		case err == nil:
			changed := index.Sync(identities)
			fmt.Printf("HNSW index ready with %d identities (%d updated from store)\n", index.Count(), changed)
			return index, nil
		case errors.Is(err, database.ErrIndexNotFound):
			fmt.Printf("No saved HNSW index, building a new one\n")
		default:
			fmt.Printf("Warning: failed to load HNSW index: %v\n", err)
			fmt.Printf("Rebuilding from store\n")
			index = database.NewHNSWIndex(cfg.Auth.Dimension)
		}
	}

	skipped := index.Build(identities)
	index.SetPath(path)
	if skipped > 0 {
		fmt.Printf("Warning: %d identities skipped (descriptor is not %d-dimensional)\n", skipped, cfg.Auth.Dimension)
	}
	if path != "" {
		fmt.Printf("HNSW index built with %d identities (persisted to %s)\n", index.Count(), path)
	} else {
		fmt.Printf("HNSW index built with %d identities (in-memory only)\n", index.Count())
	}
	return index, nil
}

// selectIndex returns the candidate index for the configured match strategy.
// The second return value is the in-memory index to persist on shutdown, if any.
func selectIndex(ctx context.Context, cfg *config.Config, store database.IdentityStore) (database.NeighborIndex, *database.HNSWIndex, error) {
	switch cfg.Auth.Strategy {
	case config.StrategyHNSW:
		index, err := loadHNSWIndex(ctx, cfg, store)
		if err != nil {
			return nil, nil, err
		}
		return index, index, nil
	case config.StrategyPGVector:
		index, ok := store.(database.NeighborIndex)
		if !ok {
			return nil, nil, fmt.Errorf("driver %q does not support the %s strategy", cfg.Database.Driver, cfg.Auth.Strategy)
		}
		fmt.Printf("Using pgvector for candidate selection\n")
		return index, nil, nil
	default:
		return nil, nil, nil
	}
}

// newService builds the auth service for cfg over store.
func newService(cfg *config.Config, store database.IdentityWriter, index database.NeighborIndex, obs *observe.Observer) *auth.Service {
	return auth.NewService(store, obs, auth.Options{
		Threshold:  cfg.Auth.Threshold,
		Dimension:  cfg.Auth.Dimension,
		Index:      index,
		Candidates: cfg.Auth.HNSWCandidates,
	})
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
