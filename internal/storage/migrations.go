package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// expectedSchemaVersion is the latest schema version the application expects.
const expectedSchemaVersion = 2

// migration represents a database schema migration.
type migration struct {
	up          func(*sql.Tx) error
	description string
	version     int
}

var migrations = []migration{
	{
		version:     1,
		description: "Initial schema",
		up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					category_id TEXT,
					amount INTEGER NOT NULL CHECK (amount > 0),
					kind TEXT NOT NULL CHECK (kind IN ('income', 'expense')),
					date TEXT NOT NULL,
					note TEXT,
					status TEXT NOT NULL DEFAULT 'success',
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_transactions_user ON transactions(user_id)`,
				`CREATE INDEX idx_transactions_date ON transactions(date)`,
				`CREATE INDEX idx_transactions_status ON transactions(status)`,

				`CREATE TABLE IF NOT EXISTS categories (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					name TEXT NOT NULL,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_categories_user ON categories(user_id)`,
				`CREATE UNIQUE INDEX idx_categories_user_name
					ON categories(user_id, name COLLATE NOCASE)`,

				`CREATE TABLE IF NOT EXISTS sync_queue (
					id TEXT PRIMARY KEY,
					entity_kind TEXT NOT NULL,
					op TEXT NOT NULL,
					payload TEXT NOT NULL,
					enqueued_at DATETIME NOT NULL,
					attempts INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE INDEX idx_sync_queue_enqueued ON sync_queue(enqueued_at)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		version:     2,
		description: "Dead-letter collection for entries past the retry budget",
		up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS dead_letters (
					id TEXT PRIMARY KEY,
					entity_kind TEXT NOT NULL,
					op TEXT NOT NULL,
					payload TEXT NOT NULL,
					attempts INTEGER NOT NULL,
					enqueued_at DATETIME NOT NULL,
					failed_at DATETIME NOT NULL,
					last_error TEXT NOT NULL
				)`,
				`CREATE INDEX idx_dead_letters_failed ON dead_letters(failed_at)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

// migrate brings the schema up to the expected version. Safe to call
// repeatedly; applied versions are skipped.
func migrate(ctx context.Context, db *sql.DB) error {
	var current int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.version, err)
		}

		if err := m.up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.description, err)
		}

		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to set schema version %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}

		slog.Debug("applied migration", "version", m.version, "description", m.description)
	}

	if current > expectedSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than expected %d", current, expectedSchemaVersion)
	}

	return nil
}
