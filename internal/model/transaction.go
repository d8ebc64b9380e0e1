// Package model defines the core data types shared across the application.
package model

import "time"

// TransactionKind indicates whether a transaction is income or expense.
type TransactionKind string

const (
	// KindIncome represents money coming in.
	KindIncome TransactionKind = "income"
	// KindExpense represents money going out.
	KindExpense TransactionKind = "expense"
)

// SyncStatus tracks a transaction's lifecycle against the remote store.
type SyncStatus string

const (
	// StatusPending marks a record created offline, not yet confirmed remotely.
	StatusPending SyncStatus = "pending"
	// StatusSuccess marks a record confirmed by the remote store.
	StatusSuccess SyncStatus = "success"
	// StatusError marks a record whose remote confirmation failed.
	StatusError SyncStatus = "error"
)

// Transaction represents a single income or expense entry for a user.
//
// Amount is in the smallest currency unit (e.g. cents) and must be positive.
// CategoryID is nil for uncategorized transactions. Date carries no time
// component.
type Transaction struct {
	Date       time.Time       `json:"date"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	CategoryID *string         `json:"category_id"`
	Note       *string         `json:"note"`
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Kind       TransactionKind `json:"kind"`
	Status     SyncStatus      `json:"status"`
	Amount     int64           `json:"amount"`
}

// ValidKind reports whether the transaction kind is one of the known values.
func (t *Transaction) ValidKind() bool {
	return t.Kind == KindIncome || t.Kind == KindExpense
}

// ValidStatus reports whether the sync status is one of the known values.
func (t *Transaction) ValidStatus() bool {
	return t.Status == StatusPending || t.Status == StatusSuccess || t.Status == StatusError
}
