// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/kozaktomas/face-auth/internal/database"
)

// MockIdentityStore is a mock implementation of database.IdentityStore
type MockIdentityStore struct {
	mu         sync.RWMutex
	identities map[string]*database.Identity
	order      []string
	seq        int64

	// Error injection
	PutError   error
	GetError   error
	AllError   error
	CountError error
	CloseError error

	// Call tracking
	PutCalls int
	AllCalls int
}

// NewMockIdentityStore creates a new mock identity store
func NewMockIdentityStore() *MockIdentityStore {
	return &MockIdentityStore{
		identities: make(map[string]*database.Identity),
	}
}

// AddIdentity seeds the mock with an identity, bypassing validation.
func (m *MockIdentityStore) AddIdentity(userID string, descriptor []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(userID, descriptor)
}

func (m *MockIdentityStore) putLocked(userID string, descriptor []float64) *database.Identity {
	identity, ok := m.identities[userID]
	if !ok {
		m.seq++
		identity = &database.Identity{UserID: userID, Seq: m.seq, EnrolledAt: time.Now()}
		m.identities[userID] = identity
		m.order = append(m.order, userID)
	}
	identity.Descriptor = append([]float64(nil), descriptor...)
	identity.EnrollmentID = database.NewEnrollmentID()
	identity.UpdatedAt = time.Now()
	return identity
}

// Put inserts or overwrites an identity
func (m *MockIdentityStore) Put(ctx context.Context, userID string, descriptor []float64) (*database.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutCalls++
	if m.PutError != nil {
		return nil, m.PutError
	}
	if err := database.CheckPut(userID, descriptor); err != nil {
		return nil, err
	}
	out := m.putLocked(userID, descriptor).Clone()
	return &out, nil
}

// Get retrieves an identity by user ID
func (m *MockIdentityStore) Get(ctx context.Context, userID string) (*database.Identity, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	identity, ok := m.identities[userID]
	if !ok {
		return nil, nil
	}
	out := identity.Clone()
	return &out, nil
}

// All returns every identity in insertion order
func (m *MockIdentityStore) All(ctx context.Context) ([]database.Identity, error) {
	m.mu.Lock()
	m.AllCalls++
	m.mu.Unlock()
	if m.AllError != nil {
		return nil, m.AllError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Identity, 0, len(m.order))
	for _, userID := range m.order {
		out = append(out, m.identities[userID].Clone())
	}
	return out, nil
}

// Count returns the number of identities
func (m *MockIdentityStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.identities), nil
}

// Close returns CloseError
func (m *MockIdentityStore) Close() error {
	return m.CloseError
}

// Ensure the mock implements the interface
var _ database.IdentityStore = (*MockIdentityStore)(nil)
