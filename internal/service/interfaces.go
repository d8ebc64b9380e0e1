// Package service defines the interfaces wiring the sync core together.
package service

import (
	"context"
	"time"

	"github.com/kantongapp/kantong/internal/model"
)

// LocalStore is the on-device durable cache of transactions and categories.
//
// Reads degrade to empty results when the underlying storage medium is
// unavailable; writes surface the error so callers can tell the user the
// action did not persist.
type LocalStore interface {
	// Transaction cache
	SaveTransaction(ctx context.Context, txn model.Transaction) error
	GetTransactionsByUser(ctx context.Context, userID string) ([]model.Transaction, error)
	GetPendingTransactions(ctx context.Context, userID string) ([]model.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error

	// Category cache
	SaveCategory(ctx context.Context, cat model.Category) error
	GetCategoriesByUser(ctx context.Context, userID string) ([]model.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	// Dead letters
	SaveDeadLetter(ctx context.Context, letter model.DeadLetter) error
	GetDeadLetters(ctx context.Context) ([]model.DeadLetter, error)

	// ClearAll empties every collection, including the sync queue. Sign-out.
	ClearAll(ctx context.Context) error

	Close() error
}

// SyncQueue is the ordered backlog of not-yet-confirmed remote mutations.
type SyncQueue interface {
	// Enqueue persists a new entry. The entry's identifier, timestamp and
	// zero attempt counter are assigned by the model constructors.
	Enqueue(ctx context.Context, entry model.QueueEntry) error

	// Snapshot returns the current entries without holding any lock across
	// network calls. Category entries sort before transaction entries so a
	// transaction never references a category the remote has not seen;
	// within each kind, enqueue order is preserved.
	Snapshot(ctx context.Context) ([]model.QueueEntry, error)

	// Remove deletes one entry, after success or after giving up.
	Remove(ctx context.Context, id string) error

	// RecordAttempt increments the entry's attempt counter and re-persists it.
	RecordAttempt(ctx context.Context, entry *model.QueueEntry) error

	// Len reports how many entries are pending.
	Len(ctx context.Context) (int, error)
}

// RemoteStore is the hosted relational store, one method per table operation.
//
// Implementations must treat every failure uniformly; the sync engine does not
// distinguish retryable from permanent errors.
type RemoteStore interface {
	InsertTransaction(ctx context.Context, txn model.Transaction) error
	UpdateTransaction(ctx context.Context, txn model.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	// ListTransactions returns one page of a user's transactions ordered by
	// date descending then creation time descending.
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]model.Transaction, error)

	InsertCategory(ctx context.Context, cat model.Category) error
	UpdateCategory(ctx context.Context, cat model.Category) error
	DeleteCategory(ctx context.Context, id string) error
	ListCategories(ctx context.Context, userID string) ([]model.Category, error)
}

// Probe reports the platform's current connectivity signal.
type Probe interface {
	Online(ctx context.Context) bool
}

// RetryOptions configures retry behavior for operations that support it.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
