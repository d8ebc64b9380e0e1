// Package storage provides the on-device persistence layer backing the sync core.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/kantongapp/kantong/internal/common"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements service.LocalStore and service.SyncQueue on SQLite.
//
// Opening is lazy and idempotent: the database is opened and migrated on first
// access. If opening fails, the error is not cached; the next access retries,
// so a transient storage failure heals at the next connectivity event. While
// the store is unavailable, reads return empty results and writes return an
// error wrapping common.ErrStoreUnavailable.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// NewSQLiteStore creates a store for the given database path. The underlying
// database is not touched until first use; use ":memory:" for tests.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	return &SQLiteStore{dbPath: dbPath}, nil
}

// ensureOpen opens and migrates the database on first use.
func (s *SQLiteStore) ensureOpen(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	if s.dbPath != ":memory:" {
		dir := filepath.Dir(s.dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", s.dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	s.db = db
	return s.db, nil
}

// reader returns the database for a read operation, or nil if the store is
// unavailable. Callers must treat nil as "return empty results".
func (s *SQLiteStore) reader(ctx context.Context) *sql.DB {
	db, err := s.ensureOpen(ctx)
	if err != nil {
		slog.Warn("local store unavailable, degrading read to empty result", "error", err)
		return nil
	}
	return db
}

// writer returns the database for a write operation, surfacing unavailability
// as an error the caller must report.
func (s *SQLiteStore) writer(ctx context.Context) (*sql.DB, error) {
	db, err := s.ensureOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return db, nil
}

// ClearAll empties every collection. Used on sign-out.
func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	db, err := s.writer(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"transactions", "categories", "sync_queue", "dead_letters"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clear: %w", err)
	}

	slog.Info("cleared all local data")
	return nil
}

// Close closes the database connection if it was ever opened.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
