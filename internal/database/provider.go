package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kozaktomas/face-auth/internal/config"
)

// Opener creates an identity store for the given database configuration.
type Opener func(ctx context.Context, cfg *config.DatabaseConfig) (IdentityStore, error)

var (
	openers   = make(map[string]Opener)
	openersMu sync.RWMutex
)

// RegisterDriver registers a store constructor under a driver name.
// Backend packages import this package, so registration is done by the caller
// (the cmd package) to avoid import cycles.
func RegisterDriver(name string, opener Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[name] = opener
}

// Drivers returns the names of all registered drivers, sorted.
func Drivers() []string {
	openersMu.RLock()
	defer openersMu.RUnlock()

	names := make([]string, 0, len(openers))
	for name := range openers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates the store configured by cfg.Driver.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (IdentityStore, error) {
	openersMu.RLock()
	opener, ok := openers[cfg.Driver]
	openersMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown database driver %q (registered: %v)", cfg.Driver, Drivers())
	}

	store, err := opener(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Driver, err)
	}
	return store, nil
}
