// Package offline implements the write path that keeps user actions durable
// while disconnected.
package offline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kantongapp/kantong/internal/common"
	"github.com/kantongapp/kantong/internal/connectivity"
	"github.com/kantongapp/kantong/internal/model"
	"github.com/kantongapp/kantong/internal/service"
)

// TransactionInput carries the user-supplied fields of a new transaction.
type TransactionInput struct {
	CategoryID *string
	Note       *string
	Kind       model.TransactionKind
	Date       time.Time
	Amount     int64
}

// Writer routes entity mutations. While online it applies them directly to
// the remote store and caches the confirmed state; while offline it
// synthesizes a locally valid record, persists it for optimistic rendering,
// and enqueues the mutation for the sync engine. Offline writes return
// synchronously with no network round-trip.
type Writer struct {
	now     func() time.Time
	newID   func() string
	store   service.LocalStore
	queue   service.SyncQueue
	remote  service.RemoteStore
	monitor *connectivity.Monitor
}

// NewWriter creates a writer wired to the given components.
func NewWriter(store service.LocalStore, queue service.SyncQueue, remote service.RemoteStore, monitor *connectivity.Monitor) *Writer {
	return &Writer{
		store:   store,
		queue:   queue,
		remote:  remote,
		monitor: monitor,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// CreateTransaction records a new transaction for the user. The returned
// record carries status pending when created offline and success otherwise.
func (w *Writer) CreateTransaction(ctx context.Context, userID string, in TransactionInput) (model.Transaction, error) {
	if in.Amount <= 0 {
		return model.Transaction{}, fmt.Errorf("amount must be positive, got %d", in.Amount)
	}
	if in.Kind != model.KindIncome && in.Kind != model.KindExpense {
		return model.Transaction{}, fmt.Errorf("unknown transaction kind %q", in.Kind)
	}

	now := w.now()
	txn := model.Transaction{
		ID:         w.newID(),
		UserID:     userID,
		CategoryID: in.CategoryID,
		Amount:     in.Amount,
		Kind:       in.Kind,
		Date:       truncateToDay(in.Date),
		Note:       in.Note,
		Status:     model.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if w.monitor.Online() {
		if err := w.remote.InsertTransaction(ctx, txn); err != nil {
			return model.Transaction{}, common.NewUserError("failed to save transaction", err)
		}
		txn.Status = model.StatusSuccess
		if err := w.store.SaveTransaction(ctx, txn); err != nil {
			return model.Transaction{}, err
		}
		return txn, nil
	}

	// Offline: persist first so the UI can render it, then queue the upload.
	if err := w.store.SaveTransaction(ctx, txn); err != nil {
		return model.Transaction{}, common.NewUserError("transaction was not saved locally", err)
	}
	if err := w.queue.Enqueue(ctx, model.NewTransactionEntry(model.OpCreate, txn)); err != nil {
		return model.Transaction{}, common.NewUserError("transaction saved locally but could not be queued for sync", err)
	}

	return txn, nil
}

// UpdateTransaction applies an edit, optimistically updating the cache and
// queueing the remote update when offline.
func (w *Writer) UpdateTransaction(ctx context.Context, txn model.Transaction) error {
	txn.UpdatedAt = w.now()
	txn.Date = truncateToDay(txn.Date)

	if w.monitor.Online() {
		if err := w.remote.UpdateTransaction(ctx, txn); err != nil {
			return common.NewUserError("failed to update transaction", err)
		}
		return w.store.SaveTransaction(ctx, txn)
	}

	if err := w.store.SaveTransaction(ctx, txn); err != nil {
		return common.NewUserError("update was not saved locally", err)
	}
	return w.queue.Enqueue(ctx, model.NewTransactionEntry(model.OpUpdate, txn))
}

// DeleteTransaction removes a transaction, queueing the remote delete when
// offline.
func (w *Writer) DeleteTransaction(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("transaction id cannot be empty")
	}

	if w.monitor.Online() {
		if err := w.remote.DeleteTransaction(ctx, id); err != nil {
			return common.NewUserError("failed to delete transaction", err)
		}
		return w.store.DeleteTransaction(ctx, id)
	}

	if err := w.store.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	return w.queue.Enqueue(ctx, model.NewTransactionEntry(model.OpDelete, model.Transaction{ID: id}))
}

// CreateCategory records a new category for the user.
func (w *Writer) CreateCategory(ctx context.Context, userID, name string) (model.Category, error) {
	if strings.TrimSpace(name) == "" {
		return model.Category{}, fmt.Errorf("category name cannot be empty")
	}

	now := w.now()
	cat := model.Category{
		ID:        w.newID(),
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if w.monitor.Online() {
		if err := w.remote.InsertCategory(ctx, cat); err != nil {
			return model.Category{}, common.NewUserError("failed to save category", err)
		}
		if err := w.store.SaveCategory(ctx, cat); err != nil {
			return model.Category{}, err
		}
		return cat, nil
	}

	if err := w.store.SaveCategory(ctx, cat); err != nil {
		return model.Category{}, common.NewUserError("category was not saved locally", err)
	}
	if err := w.queue.Enqueue(ctx, model.NewCategoryEntry(model.OpCreate, cat)); err != nil {
		return model.Category{}, common.NewUserError("category saved locally but could not be queued for sync", err)
	}

	return cat, nil
}

// UpdateCategory renames a category.
func (w *Writer) UpdateCategory(ctx context.Context, cat model.Category) error {
	cat.UpdatedAt = w.now()

	if w.monitor.Online() {
		if err := w.remote.UpdateCategory(ctx, cat); err != nil {
			return common.NewUserError("failed to update category", err)
		}
		return w.store.SaveCategory(ctx, cat)
	}

	if err := w.store.SaveCategory(ctx, cat); err != nil {
		return common.NewUserError("update was not saved locally", err)
	}
	return w.queue.Enqueue(ctx, model.NewCategoryEntry(model.OpUpdate, cat))
}

// DeleteCategory removes a category, queueing the remote delete when offline.
func (w *Writer) DeleteCategory(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("category id cannot be empty")
	}

	if w.monitor.Online() {
		if err := w.remote.DeleteCategory(ctx, id); err != nil {
			return common.NewUserError("failed to delete category", err)
		}
		return w.store.DeleteCategory(ctx, id)
	}

	if err := w.store.DeleteCategory(ctx, id); err != nil {
		return err
	}
	return w.queue.Enqueue(ctx, model.NewCategoryEntry(model.OpDelete, model.Category{ID: id}))
}

func truncateToDay(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
