// Package mariadb stores identities in a MariaDB (or MySQL) table.
package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/database"
)

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// ParseDSN accepts a go-sql-driver DSN, optionally prefixed with mysql:// or mariadb://,
// and forces the options the store depends on.
func ParseDSN(dsn string) (*mysql.Config, error) {
	for _, prefix := range []string{"mariadb://", "mysql://"} {
		dsn = strings.TrimPrefix(dsn, prefix)
	}
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid MariaDB DSN: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg, nil
}

// NewPool creates a new MariaDB connection pool.
func NewPool(cfg *config.DatabaseConfig) (*Pool, error) {
	dsn, err := ParseDSN(cfg.URL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

const schema = `CREATE TABLE IF NOT EXISTS identities (
	seq BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
	user_id VARCHAR(255) NOT NULL,
	enrollment_id CHAR(36) NOT NULL,
	descriptor BLOB NOT NULL,
	dim INT NOT NULL,
	enrolled_at DATETIME(6) NOT NULL,
	updated_at DATETIME(6) NOT NULL,
	UNIQUE KEY uq_identities_user_id (user_id)
) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin`

// EnsureSchema creates the identities table if it does not exist.
func (p *Pool) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create identities table: %w", err)
	}
	return nil
}

// Open is a database.Opener for the mariadb driver.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (database.IdentityStore, error) {
	pool, err := NewPool(cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.EnsureSchema(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return NewIdentityRepository(pool), nil
}
