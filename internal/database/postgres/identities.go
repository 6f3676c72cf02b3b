package postgres

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-auth/internal/database"
)

const identityColumns = `seq, user_id, enrollment_id, components, enrolled_at, updated_at`

// IdentityRepository provides PostgreSQL-backed identity storage.
type IdentityRepository struct {
	pool *Pool
}

// NewIdentityRepository creates a new identity repository.
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// Put inserts or overwrites the descriptor for userID. The row keeps its seq and
// enrolled_at on conflict, so enrollment order is stable. The exact components are
// stored next to the single precision vector used for nearest-neighbour ordering.
func (r *IdentityRepository) Put(ctx context.Context, userID string, descriptor []float64) (*database.Identity, error) {
	if err := database.CheckPut(userID, descriptor); err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO identities (user_id, enrollment_id, descriptor, components, dim)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			enrollment_id = EXCLUDED.enrollment_id,
			descriptor = EXCLUDED.descriptor,
			components = EXCLUDED.components,
			dim = EXCLUDED.dim,
			updated_at = NOW()
		RETURNING `+identityColumns,
		userID, database.NewEnrollmentID(), pgvector.NewVector(database.ToVector(descriptor)), pq.Array(descriptor), len(descriptor),
	)

	identity, err := scanIdentity(row)
	if err != nil {
		return nil, fmt.Errorf("upsert identity: %w", err)
	}
	return identity, nil
}

// Get retrieves an identity by user ID, returns nil if not found.
func (r *IdentityRepository) Get(ctx context.Context, userID string) (*database.Identity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE user_id = $1`, userID)
	identity, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return identity, nil
}

// All returns every identity in enrollment order.
func (r *IdentityRepository) All(ctx context.Context) ([]database.Identity, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+identityColumns+` FROM identities ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIdentities(rows)
}

// Nearest returns up to k identities of matching dimensionality ordered by the
// pgvector L2 operator, then re-sorted into enrollment order.
func (r *IdentityRepository) Nearest(ctx context.Context, query []float64, k int) ([]database.Identity, error) {
	if len(query) == 0 || k <= 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+identityColumns+`
		FROM identities
		WHERE dim = $2
		ORDER BY descriptor <-> $1
		LIMIT $3`,
		pgvector.NewVector(database.ToVector(query)), len(query), k,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	identities, err := scanIdentities(rows)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(identities, func(a, b database.Identity) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return identities, nil
}

// Count returns the number of enrolled identities.
func (r *IdentityRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM identities`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return n, nil
}

// Close releases the connection pool.
func (r *IdentityRepository) Close() error {
	return r.pool.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row scanner) (*database.Identity, error) {
	var identity database.Identity
	var components pq.Float64Array
	if err := row.Scan(&identity.Seq, &identity.UserID, &identity.EnrollmentID, &components,
		&identity.EnrolledAt, &identity.UpdatedAt); err != nil {
		return nil, err
	}
	identity.Descriptor = components
	return &identity, nil
}

func scanIdentities(rows *sql.Rows) ([]database.Identity, error) {
	var identities []database.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identities = append(identities, *identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return identities, nil
}

var (
	_ database.IdentityStore = (*IdentityRepository)(nil)
	_ database.NeighborIndex = (*IdentityRepository)(nil)
)
