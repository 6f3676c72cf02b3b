package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidIdentity is returned by stores asked to persist an empty user ID or descriptor.
var ErrInvalidIdentity = errors.New("invalid identity")

// IdentityReader provides read-only access to enrolled identities
type IdentityReader interface {
	// Get retrieves an identity by user ID, returns nil if not found
	Get(ctx context.Context, userID string) (*Identity, error)
	// All returns every enrolled identity ordered by first enrollment
	All(ctx context.Context) ([]Identity, error)
	// Count returns the number of enrolled identities
	Count(ctx context.Context) (int, error)
}

// IdentityWriter provides write access to enrolled identities
type IdentityWriter interface {
	IdentityReader

	// Put inserts or overwrites the descriptor for userID (last write wins).
	// The enrollment order of an existing identity is preserved.
	Put(ctx context.Context, userID string, descriptor []float64) (*Identity, error)
}

// IdentityStore is an IdentityWriter owning resources that must be released.
type IdentityStore interface {
	IdentityWriter
	Close() error
}

// CheckPut validates the arguments shared by every Put implementation.
func CheckPut(userID string, descriptor []float64) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user ID is required", ErrInvalidIdentity)
	}
	if len(descriptor) == 0 {
		return fmt.Errorf("%w: descriptor is required", ErrInvalidIdentity)
	}
	return nil
}

// NewEnrollmentID returns a fresh identifier for a registered descriptor.
func NewEnrollmentID() string {
	return uuid.NewString()
}

// NeighborIndex pre-selects the identities nearest to a query. Results are in
// enrollment order and are re-scored exactly by the caller. An index may lag behind
// the store it was built from.
type NeighborIndex interface {
	Nearest(ctx context.Context, query []float64, k int) ([]Identity, error)
}

// MutableIndex is a NeighborIndex kept in memory that must be told about new registrations.
type MutableIndex interface {
	NeighborIndex
	Add(identity Identity) bool
}

// SyncableIndex is a MutableIndex that can be reconciled with the store contents.
type SyncableIndex interface {
	MutableIndex
	Sync(identities []Identity) int
}
