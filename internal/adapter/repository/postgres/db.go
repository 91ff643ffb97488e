package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection
// connectionString should be in the format: "host=localhost port=5432 user=postgres password=postgres dbname=liqgobbler sslmode=disable"
func NewDB(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// EnsureSchema creates the transfers table if it does not exist.
// The worker owns its ledger table; there is no separate migration step.
func (db *DB) EnsureSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS transfers (
			id                 UUID PRIMARY KEY,
			incoming_signature TEXT NOT NULL UNIQUE,
			sender_address     TEXT NOT NULL,
			amount_lamports    BIGINT NOT NULL,
			status             TEXT NOT NULL,
			current_step       TEXT NOT NULL,
			retry_count        INT NOT NULL DEFAULT 0,
			last_error         TEXT,
			next_retry_at      TIMESTAMPTZ,
			counter_mint       TEXT,
			counter_symbol     TEXT,
			pool_address       TEXT,
			position_mint      TEXT,
			pool_created       BOOLEAN NOT NULL DEFAULT FALSE,
			sig_swap_primary   TEXT,
			sig_swap_secondary TEXT,
			sig_pool           TEXT,
			sig_lock           TEXT,
			sig_settle         TEXT,
			created_at         TIMESTAMPTZ NOT NULL,
			completed_at       TIMESTAMPTZ
		)
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure transfers schema: %w", err)
	}

	index := `
		CREATE INDEX IF NOT EXISTS idx_transfers_retry
		ON transfers (status, next_retry_at, created_at)
	`
	if _, err := db.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("failed to ensure retry index: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
