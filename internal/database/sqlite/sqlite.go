// Package sqlite provides a file-backed identity store on top of modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/database"
)

const schema = `CREATE TABLE IF NOT EXISTS identities (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL UNIQUE,
	enrollment_id TEXT NOT NULL,
	descriptor BLOB NOT NULL,
	dim INTEGER NOT NULL,
	enrolled_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

const selectColumns = `SELECT seq, user_id, enrollment_id, descriptor, enrolled_at, updated_at FROM identities`

// Store persists identities in a single SQLite file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open is a database.Opener; cfg.URL is a file path, optionally prefixed with "file:".
func Open(ctx context.Context, cfg *config.DatabaseConfig) (database.IdentityStore, error) {
	return New(ctx, cfg.URL)
}

// New opens (or creates) the database at path and initializes the schema.
func New(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimPrefix(path, "sqlite://")
	if path == "" {
		return nil, errors.New("sqlite: database path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection serializes writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", schema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("initialize schema: %w", err)
		}
	}

	return &Store{db: db, now: time.Now}, nil
}

// Put inserts or overwrites the descriptor for userID. Enrollment order and the
// first enrollment time survive an overwrite.
func (s *Store) Put(ctx context.Context, userID string, descriptor []float64) (*database.Identity, error) {
	if err := database.CheckPut(userID, descriptor); err != nil {
		return nil, err
	}

	blob, err := database.EncodeDescriptor(descriptor)
	if err != nil {
		return nil, err
	}
	now := formatTime(s.now())
	enrollmentID := database.NewEnrollmentID()

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO identities (user_id, enrollment_id, descriptor, dim, enrolled_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			enrollment_id = excluded.enrollment_id,
			descriptor = excluded.descriptor,
			dim = excluded.dim,
			updated_at = excluded.updated_at
		RETURNING seq, user_id, enrollment_id, descriptor, enrolled_at, updated_at`,
		userID, enrollmentID, blob, len(descriptor), now, now,
	)

	identity, err := scanIdentity(row)
	if err != nil {
		return nil, fmt.Errorf("upsert identity: %w", err)
	}
	return identity, nil
}

// Get retrieves an identity by user ID, returns nil if not found.
func (s *Store) Get(ctx context.Context, userID string) (*database.Identity, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE user_id = ?`, userID)
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
func (s *Store) All(ctx context.Context) ([]database.Identity, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var identities []database.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identities = append(identities, *identity)
	}
	return identities, rows.Err()
}

// Count returns the number of enrolled identities.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM identities`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row scanner) (*database.Identity, error) {
	var (
		identity              database.Identity
		blob                  []byte
		enrolledAt, updatedAt string
	)
	if err := row.Scan(&identity.Seq, &identity.UserID, &identity.EnrollmentID, &blob, &enrolledAt, &updatedAt); err != nil {
		return nil, err
	}

	descriptor, err := database.DecodeDescriptor(blob)
	if err != nil {
		return nil, err
	}
	identity.Descriptor = descriptor
	identity.EnrolledAt, _ = time.Parse(time.RFC3339Nano, enrolledAt)
	identity.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &identity, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

var _ database.IdentityStore = (*Store)(nil)
