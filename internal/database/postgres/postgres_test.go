//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/database"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	require.NoError(t, err, "container host")

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err, "container port")

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	// Run migrations
	if _, err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func descriptorOf(dim int, lead float64) []float64 {
	d := make([]float64, dim)
	d[0] = lead
	return d
}

func TestIdentityRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewIdentityRepository(pool)

	t.Run("PutAndGet", func(t *testing.T) {
		descriptor := make([]float64, 128)
		for i := range descriptor {
			descriptor[i] = float64(i) / 130.0
		}

		identity, err := repo.Put(ctx, "alice", descriptor)
		require.NoError(t, err)
		assert.NotEmpty(t, identity.EnrollmentID)

		got, err := repo.Get(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, descriptor, got.Descriptor, "components must keep double precision")
	})

	t.Run("GetNonExistent", func(t *testing.T) {
		got, err := repo.Get(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("OverwriteKeepsEnrollmentOrder", func(t *testing.T) {
		first, err := repo.Put(ctx, "bob", descriptorOf(128, 1))
		require.NoError(t, err)
		second, err := repo.Put(ctx, "bob", descriptorOf(128, 2))
		require.NoError(t, err)

		assert.Equal(t, first.Seq, second.Seq)
		assert.NotEqual(t, first.EnrollmentID, second.EnrollmentID)
		assert.Equal(t, 2.0, second.Descriptor[0])

		all, err := repo.All(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "alice", all[0].UserID)
		assert.Equal(t, "bob", all[1].UserID)
	})

	t.Run("Nearest", func(t *testing.T) {
		_, err := repo.Put(ctx, "legacy", descriptorOf(3, 2))
		require.NoError(t, err)

		results, err := repo.Nearest(ctx, descriptorOf(128, 2), 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "bob", results[0].UserID)
		assert.Equal(t, descriptorOf(128, 2), results[0].Descriptor)
	})

	t.Run("Count", func(t *testing.T) {
		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("RejectsEmptyUserID", func(t *testing.T) {
		_, err := repo.Put(ctx, "", descriptorOf(128, 0))
		assert.ErrorIs(t, err, database.ErrInvalidIdentity)
	})
}

func TestMigrations(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	applied, err := pool.MigrationsApplied(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"001_identities.sql", "002_identity_components.sql"}, applied)
}
