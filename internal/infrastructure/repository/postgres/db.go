package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS query_log (
	id BIGSERIAL PRIMARY KEY,
	asked_at TIMESTAMPTZ NOT NULL,
	question TEXT NOT NULL,
	outcome TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	retrieval_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
	generation_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	source_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
	used_fallback BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_query_log_asked_at ON query_log(asked_at DESC);
CREATE INDEX IF NOT EXISTS idx_query_log_outcome ON query_log(outcome);

CREATE TABLE IF NOT EXISTS feedback_log (
	id BIGSERIAL PRIMARY KEY,
	submitted_at TIMESTAMPTZ NOT NULL,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	helpful BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS student_profiles (
	id TEXT PRIMARY KEY,
	visa_type TEXT NOT NULL,
	home_country TEXT NOT NULL,
	first_entry_year TEXT NOT NULL,
	tax_year TEXT NOT NULL,
	income_types JSONB NOT NULL DEFAULT '[]'::jsonb,
	state TEXT NOT NULL,
	has_ssn_or_itin BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates the interaction and profile tables.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101601)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
