// Package memory provides a process-local identity store.
// Its contents are lost on restart, which matches the behaviour of a server
// without a configured database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kozaktomas/face-auth/internal/database"
)

// Store keeps identities in a map guarded by a read/write lock.
type Store struct {
	mu         sync.RWMutex
	identities map[string]*database.Identity
	order      []string // user IDs in first-enrollment order
	seq        int64
	now        func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		identities: make(map[string]*database.Identity),
		now:        time.Now,
	}
}

// Put inserts or overwrites the descriptor for userID.
func (s *Store) Put(ctx context.Context, userID string, descriptor []float64) (*database.Identity, error) {
	if err := database.CheckPut(userID, descriptor); err != nil {
		return nil, err
	}

	stored := make([]float64, len(descriptor))
	copy(stored, descriptor)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[userID]
	if !ok {
		s.seq++
		identity = &database.Identity{
			UserID:     userID,
			Seq:        s.seq,
			EnrolledAt: now,
		}
		s.identities[userID] = identity
		s.order = append(s.order, userID)
	}
	identity.Descriptor = stored
	identity.EnrollmentID = database.NewEnrollmentID()
	identity.UpdatedAt = now

	out := identity.Clone()
	return &out, nil
}

// Get retrieves an identity by user ID, returns nil if not found.
func (s *Store) Get(ctx context.Context, userID string) (*database.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.identities[userID]
	if !ok {
		return nil, nil
	}
	out := identity.Clone()
	return &out, nil
}

// All returns a copy of every identity in first-enrollment order.
func (s *Store) All(ctx context.Context) ([]database.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]database.Identity, 0, len(s.order))
	for _, userID := range s.order {
		out = append(out, s.identities[userID].Clone())
	}
	return out, nil
}

// Count returns the number of enrolled identities.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.identities), nil
}

// Close is a no-op; it satisfies database.IdentityStore.
func (s *Store) Close() error {
	return nil
}
