package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EntityKind identifies which entity a queue entry mutates.
type EntityKind string

const (
	// EntityTransaction marks a queue entry carrying a transaction payload.
	EntityTransaction EntityKind = "transaction"
	// EntityCategory marks a queue entry carrying a category payload.
	EntityCategory EntityKind = "category"
)

// Operation identifies the remote mutation a queue entry performs.
type Operation string

const (
	// OpCreate inserts a new row remotely.
	OpCreate Operation = "create"
	// OpUpdate updates an existing row remotely.
	OpUpdate Operation = "update"
	// OpDelete removes a row remotely.
	OpDelete Operation = "delete"
)

// QueueEntry is one pending remote mutation awaiting confirmation.
//
// The payload is a tagged union: exactly one of Transaction or Category is
// non-nil, matching Kind. Attempts counts failed remote applications and only
// ever grows until the entry is removed.
type QueueEntry struct {
	EnqueuedAt  time.Time    `json:"enqueued_at"`
	Transaction *Transaction `json:"transaction,omitempty"`
	Category    *Category    `json:"category,omitempty"`
	ID          string       `json:"id"`
	Kind        EntityKind   `json:"kind"`
	Op          Operation    `json:"op"`
	Attempts    int          `json:"attempts"`
}

// NewTransactionEntry builds a queue entry snapshotting a transaction payload.
func NewTransactionEntry(op Operation, txn Transaction) QueueEntry {
	return QueueEntry{
		ID:          uuid.NewString(),
		Kind:        EntityTransaction,
		Op:          op,
		Transaction: &txn,
		EnqueuedAt:  time.Now().UTC(),
	}
}

// NewCategoryEntry builds a queue entry snapshotting a category payload.
func NewCategoryEntry(op Operation, cat Category) QueueEntry {
	return QueueEntry{
		ID:         uuid.NewString(),
		Kind:       EntityCategory,
		Op:         op,
		Category:   &cat,
		EnqueuedAt: time.Now().UTC(),
	}
}

// EntityID returns the identifier of the entity the entry mutates.
func (e *QueueEntry) EntityID() string {
	switch e.Kind {
	case EntityTransaction:
		if e.Transaction != nil {
			return e.Transaction.ID
		}
	case EntityCategory:
		if e.Category != nil {
			return e.Category.ID
		}
	}
	return ""
}

// Validate checks that the payload union is consistent with the tags.
func (e *QueueEntry) Validate() error {
	switch e.Kind {
	case EntityTransaction:
		if e.Transaction == nil {
			return fmt.Errorf("queue entry %s: transaction payload missing", e.ID)
		}
		if e.Category != nil {
			return fmt.Errorf("queue entry %s: both payloads set", e.ID)
		}
	case EntityCategory:
		if e.Category == nil {
			return fmt.Errorf("queue entry %s: category payload missing", e.ID)
		}
		if e.Transaction != nil {
			return fmt.Errorf("queue entry %s: both payloads set", e.ID)
		}
	default:
		return fmt.Errorf("queue entry %s: unknown entity kind %q", e.ID, e.Kind)
	}
	switch e.Op {
	case OpCreate, OpUpdate, OpDelete:
	default:
		return fmt.Errorf("queue entry %s: unknown operation %q", e.ID, e.Op)
	}
	return nil
}

// DeadLetter preserves a queue entry that exhausted its attempt budget, kept
// for manual recovery instead of being dropped.
type DeadLetter struct {
	FailedAt time.Time  `json:"failed_at"`
	Entry    QueueEntry `json:"entry"`
	LastErr  string     `json:"last_error"`
}
