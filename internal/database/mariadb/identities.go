package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-auth/internal/database"
)

const selectIdentities = `SELECT seq, user_id, enrollment_id, descriptor, enrolled_at, updated_at FROM identities`

// IdentityRepository provides MariaDB-backed identity storage.
type IdentityRepository struct {
	pool *Pool
	now  func() time.Time
}

// NewIdentityRepository creates a new identity repository.
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool, now: time.Now}
}

// Put inserts or overwrites the descriptor for userID inside a transaction and
// returns the stored row.
func (r *IdentityRepository) Put(ctx context.Context, userID string, descriptor []float64) (*database.Identity, error) {
	if err := database.CheckPut(userID, descriptor); err != nil {
		return nil, err
	}

	blob, err := database.EncodeDescriptor(descriptor)
	if err != nil {
		return nil, err
	}
	now := r.now().UTC()

	tx, err := r.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO identities (user_id, enrollment_id, descriptor, dim, enrolled_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			enrollment_id = VALUES(enrollment_id),
			descriptor = VALUES(descriptor),
			dim = VALUES(dim),
			updated_at = VALUES(updated_at)`,
		userID, database.NewEnrollmentID(), blob, len(descriptor), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert identity: %w", err)
	}

	identity, err := scanIdentity(tx.QueryRowContext(ctx, selectIdentities+` WHERE user_id = ?`, userID))
	if err != nil {
		return nil, fmt.Errorf("read back identity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit identity: %w", err)
	}
	return identity, nil
}

// Get retrieves an identity by user ID, returns nil if not found.
func (r *IdentityRepository) Get(ctx context.Context, userID string) (*database.Identity, error) {
	identity, err := scanIdentity(r.pool.db.QueryRowContext(ctx, selectIdentities+` WHERE user_id = ?`, userID))
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
	rows, err := r.pool.db.QueryContext(ctx, selectIdentities+` ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var identities []database.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		identities = append(identities, *identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return identities, nil
}

// Count returns the number of enrolled identities.
func (r *IdentityRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM identities`).Scan(&n); err != nil {
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
	var blob []byte
	if err := row.Scan(&identity.Seq, &identity.UserID, &identity.EnrollmentID, &blob,
		&identity.EnrolledAt, &identity.UpdatedAt); err != nil {
		return nil, err
	}

	descriptor, err := database.DecodeDescriptor(blob)
	if err != nil {
		return nil, err
	}
	identity.Descriptor = descriptor
	return &identity, nil
}

var _ database.IdentityStore = (*IdentityRepository)(nil)
