package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kantongapp/kantong/internal/model"
)

const dateLayout = "2006-01-02"

// SaveTransaction upserts a transaction by its identifier. Overwriting an
// existing row is not an error; put is idempotent.
func (s *SQLiteStore) SaveTransaction(ctx context.Context, txn model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(&txn); err != nil {
		return err
	}

	db, err := s.writer(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO transactions (id, user_id, category_id, amount, kind, date, note, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			category_id = excluded.category_id,
			amount = excluded.amount,
			kind = excluded.kind,
			date = excluded.date,
			note = excluded.note,
			status = excluded.status,
			updated_at = excluded.updated_at`

	_, err = db.ExecContext(ctx, query,
		txn.ID, txn.UserID, txn.CategoryID, txn.Amount, string(txn.Kind),
		txn.Date.Format(dateLayout), txn.Note, string(txn.Status),
		txn.CreatedAt.UTC(), txn.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save transaction %s: %w", txn.ID, err)
	}

	slog.Debug("saved transaction", "id", txn.ID, "status", txn.Status)
	return nil
}

// GetTransactionsByUser returns all cached transactions owned by userID.
// Order is unspecified; callers re-sort if needed.
func (s *SQLiteStore) GetTransactionsByUser(ctx context.Context, userID string) ([]model.Transaction, error) {
	return s.getTransactions(ctx, userID, false)
}

// GetPendingTransactions returns the user's transactions still awaiting remote
// confirmation.
func (s *SQLiteStore) GetPendingTransactions(ctx context.Context, userID string) ([]model.Transaction, error) {
	return s.getTransactions(ctx, userID, true)
}

func (s *SQLiteStore) getTransactions(ctx context.Context, userID string, pendingOnly bool) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	db := s.reader(ctx)
	if db == nil {
		return []model.Transaction{}, nil
	}

	query := `
		SELECT id, user_id, category_id, amount, kind, date, note, status, created_at, updated_at
		FROM transactions
		WHERE user_id = ?`
	args := []any{userID}
	if pendingOnly {
		query += ` AND status = ?`
		args = append(args, string(model.StatusPending))
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txns []model.Transaction
	for rows.Next() {
		var (
			txn        model.Transaction
			kind       string
			status     string
			date       string
			categoryID *string
			note       *string
		)
		if err := rows.Scan(&txn.ID, &txn.UserID, &categoryID, &txn.Amount, &kind,
			&date, &note, &status, &txn.CreatedAt, &txn.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txn.Kind = model.TransactionKind(kind)
		txn.Status = model.SyncStatus(status)
		txn.CategoryID = categoryID
		txn.Note = note
		if txn.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("failed to parse transaction date %q: %w", date, err)
		}
		txns = append(txns, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return txns, nil
}

// DeleteTransaction removes a cached transaction by identifier. Deleting an
// absent row is a no-op, not an error.
func (s *SQLiteStore) DeleteTransaction(ctx context.Context, id string) error {
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

	if _, err := db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", id, err)
	}

	return nil
}
