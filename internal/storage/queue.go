package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kantongapp/kantong/internal/model"
)

// queuePayload is the persisted form of a queue entry's tagged payload union.
type queuePayload struct {
	Transaction *model.Transaction `json:"transaction,omitempty"`
	Category    *model.Category    `json:"category,omitempty"`
}

// Enqueue persists a new sync-queue entry.
func (s *SQLiteStore) Enqueue(ctx context.Context, entry model.QueueEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	db, err := s.writer(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(queuePayload{
		Transaction: entry.Transaction,
		Category:    entry.Category,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal queue payload: %w", err)
	}

	query := `
		INSERT INTO sync_queue (id, entity_kind, op, payload, enqueued_at, attempts)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err = db.ExecContext(ctx, query,
		entry.ID, string(entry.Kind), string(entry.Op), string(payload),
		entry.EnqueuedAt.UTC(), entry.Attempts)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s %s for %s: %w", entry.Kind, entry.Op, entry.EntityID(), err)
	}

	slog.Debug("enqueued sync entry",
		"id", entry.ID, "kind", entry.Kind, "op", entry.Op, "entity_id", entry.EntityID())
	return nil
}

// Snapshot returns the pending entries, category mutations first so that a
// transaction never reaches the remote before a category it references;
// within each kind, enqueue order is preserved.
func (s *SQLiteStore) Snapshot(ctx context.Context) ([]model.QueueEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	db := s.reader(ctx)
	if db == nil {
		return []model.QueueEntry{}, nil
	}

	query := `
		SELECT id, entity_kind, op, payload, enqueued_at, attempts
		FROM sync_queue
		ORDER BY CASE entity_kind WHEN 'category' THEN 0 ELSE 1 END, enqueued_at, rowid`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync queue: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.QueueEntry
	for rows.Next() {
		var (
			entry   model.QueueEntry
			kind    string
			op      string
			payload string
		)
		if err := rows.Scan(&entry.ID, &kind, &op, &payload, &entry.EnqueuedAt, &entry.Attempts); err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		entry.Kind = model.EntityKind(kind)
		entry.Op = model.Operation(op)

		var p queuePayload
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload for entry %s: %w", entry.ID, err)
		}
		entry.Transaction = p.Transaction
		entry.Category = p.Category

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync queue: %w", err)
	}

	return entries, nil
}

// Remove deletes one queue entry. Removing an absent entry is a no-op.
func (s *SQLiteStore) Remove(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	db, err := s.writer(ctx)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove queue entry %s: %w", id, err)
	}

	return nil
}

// RecordAttempt increments the entry's attempt counter and re-persists it.
func (s *SQLiteStore) RecordAttempt(ctx context.Context, entry *model.QueueEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("queue entry cannot be nil")
	}

	db, err := s.writer(ctx)
	if err != nil {
		return err
	}

	entry.Attempts++

	if _, err := db.ExecContext(ctx,
		`UPDATE sync_queue SET attempts = ? WHERE id = ?`, entry.Attempts, entry.ID); err != nil {
		entry.Attempts--
		return fmt.Errorf("failed to record attempt for entry %s: %w", entry.ID, err)
	}

	return nil
}

// Len reports the number of pending queue entries.
func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	db := s.reader(ctx)
	if db == nil {
		return 0, nil
	}

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sync queue: %w", err)
	}
	return n, nil
}

// SaveDeadLetter persists an entry that exhausted its retry budget.
func (s *SQLiteStore) SaveDeadLetter(ctx context.Context, letter model.DeadLetter) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	db, err := s.writer(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(queuePayload{
		Transaction: letter.Entry.Transaction,
		Category:    letter.Entry.Category,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal dead-letter payload: %w", err)
	}

	query := `
		INSERT INTO dead_letters (id, entity_kind, op, payload, attempts, enqueued_at, failed_at, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			attempts = excluded.attempts,
			failed_at = excluded.failed_at,
			last_error = excluded.last_error`

	_, err = db.ExecContext(ctx, query,
		letter.Entry.ID, string(letter.Entry.Kind), string(letter.Entry.Op), string(payload),
		letter.Entry.Attempts, letter.Entry.EnqueuedAt.UTC(), letter.FailedAt.UTC(), letter.LastErr)
	if err != nil {
		return fmt.Errorf("failed to save dead letter %s: %w", letter.Entry.ID, err)
	}

	return nil
}

// GetDeadLetters returns every dead-lettered entry, most recent failure first.
func (s *SQLiteStore) GetDeadLetters(ctx context.Context) ([]model.DeadLetter, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	db := s.reader(ctx)
	if db == nil {
		return []model.DeadLetter{}, nil
	}

	query := `
		SELECT id, entity_kind, op, payload, attempts, enqueued_at, failed_at, last_error
		FROM dead_letters
		ORDER BY failed_at DESC`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query dead letters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var letters []model.DeadLetter
	for rows.Next() {
		var (
			letter  model.DeadLetter
			kind    string
			op      string
			payload string
		)
		if err := rows.Scan(&letter.Entry.ID, &kind, &op, &payload,
			&letter.Entry.Attempts, &letter.Entry.EnqueuedAt, &letter.FailedAt, &letter.LastErr); err != nil {
			return nil, fmt.Errorf("failed to scan dead letter: %w", err)
		}
		letter.Entry.Kind = model.EntityKind(kind)
		letter.Entry.Op = model.Operation(op)

		var p queuePayload
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dead-letter payload %s: %w", letter.Entry.ID, err)
		}
		letter.Entry.Transaction = p.Transaction
		letter.Entry.Category = p.Category

		letters = append(letters, letter)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dead letters: %w", err)
	}

	return letters, nil
}
