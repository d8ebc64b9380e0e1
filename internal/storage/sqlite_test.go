package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kantongapp/kantong/internal/common"
	"github.com/kantongapp/kantong/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

func testTransaction(id, userID string) model.Transaction {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	return model.Transaction{
		ID:        id,
		UserID:    userID,
		Amount:    50000,
		Kind:      model.KindExpense,
		Date:      time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Status:    model.StatusSuccess,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSaveTransaction_IdempotentPut(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	txn := testTransaction("txn-1", "user-a")

	require.NoError(t, store.SaveTransaction(ctx, txn))
	require.NoError(t, store.SaveTransaction(ctx, txn))

	got, err := store.GetTransactionsByUser(ctx, "user-a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, txn.ID, got[0].ID)
	assert.Equal(t, txn.Amount, got[0].Amount)
	assert.Equal(t, txn.Kind, got[0].Kind)
	assert.True(t, txn.Date.Equal(got[0].Date))
}

func TestSaveTransaction_OverwriteUpdatesFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	txn := testTransaction("txn-1", "user-a")
	txn.Status = model.StatusPending
	require.NoError(t, store.SaveTransaction(ctx, txn))

	txn.Status = model.StatusSuccess
	txn.Amount = 75000
	require.NoError(t, store.SaveTransaction(ctx, txn))

	got, err := store.GetTransactionsByUser(ctx, "user-a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.StatusSuccess, got[0].Status)
	assert.Equal(t, int64(75000), got[0].Amount)
}

func TestSaveTransaction_Validation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		mutate func(*model.Transaction)
		name   string
	}{
		{name: "zero amount", mutate: func(txn *model.Transaction) { txn.Amount = 0 }},
		{name: "negative amount", mutate: func(txn *model.Transaction) { txn.Amount = -100 }},
		{name: "missing ID", mutate: func(txn *model.Transaction) { txn.ID = "" }},
		{name: "missing user", mutate: func(txn *model.Transaction) { txn.UserID = "" }},
		{name: "unknown kind", mutate: func(txn *model.Transaction) { txn.Kind = "transfer" }},
		{name: "unknown status", mutate: func(txn *model.Transaction) { txn.Status = "queued" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := testTransaction("txn-1", "user-a")
			tt.mutate(&txn)
			assert.Error(t, store.SaveTransaction(ctx, txn))
		})
	}
}

func TestGetTransactionsByUser_UserIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveTransaction(ctx, testTransaction("txn-1", "userA")))
	require.NoError(t, store.SaveTransaction(ctx, testTransaction("txn-2", "userA")))
	require.NoError(t, store.SaveTransaction(ctx, testTransaction("txn-3", "userB")))

	got, err := store.GetTransactionsByUser(ctx, "userA")
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, txn := range got {
		assert.Equal(t, "userA", txn.UserID)
	}
}

func TestGetPendingTransactions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pending := testTransaction("txn-1", "user-a")
	pending.Status = model.StatusPending
	require.NoError(t, store.SaveTransaction(ctx, pending))
	require.NoError(t, store.SaveTransaction(ctx, testTransaction("txn-2", "user-a")))

	got, err := store.GetPendingTransactions(ctx, "user-a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "txn-1", got[0].ID)
}

func TestDeleteTransaction_AbsentIsNoOp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	assert.NoError(t, store.DeleteTransaction(ctx, "does-not-exist"))
}

func TestSaveCategory_DuplicateNamePerUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	cat := model.Category{ID: "cat-1", UserID: "user-a", Name: "Groceries", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.SaveCategory(ctx, cat))

	// Same name, different case, same user
	clash := model.Category{ID: "cat-2", UserID: "user-a", Name: "groceries", CreatedAt: now, UpdatedAt: now}
	err := store.SaveCategory(ctx, clash)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)

	// Same name for a different user is fine
	other := model.Category{ID: "cat-3", UserID: "user-b", Name: "Groceries", CreatedAt: now, UpdatedAt: now}
	assert.NoError(t, store.SaveCategory(ctx, other))
}

func TestClearAll(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.SaveTransaction(ctx, testTransaction("txn-1", "user-a")))
	require.NoError(t, store.SaveCategory(ctx, model.Category{
		ID: "cat-1", UserID: "user-a", Name: "Groceries", CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, store.Enqueue(ctx, model.NewTransactionEntry(model.OpCreate, testTransaction("txn-1", "user-a"))))

	require.NoError(t, store.ClearAll(ctx))

	txns, err := store.GetTransactionsByUser(ctx, "user-a")
	require.NoError(t, err)
	assert.Empty(t, txns)

	cats, err := store.GetCategoriesByUser(ctx, "user-a")
	require.NoError(t, err)
	assert.Empty(t, cats)

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUnavailableStore(t *testing.T) {
	// /dev/null is not a directory, so the store can never be created there.
	store, err := NewSQLiteStore("/dev/null/nested/kantong.db")
	require.NoError(t, err)
	ctx := context.Background()

	// Reads degrade to empty results.
	txns, err := store.GetTransactionsByUser(ctx, "user-a")
	require.NoError(t, err)
	assert.Empty(t, txns)

	entries, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Writes surface the failure.
	err = store.SaveTransaction(ctx, testTransaction("txn-1", "user-a"))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
}

func TestLazyOpenIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.GetTransactionsByUser(ctx, "user-a")
		require.NoError(t, err)
	}

	require.NoError(t, store.SaveTransaction(ctx, testTransaction("txn-1", "user-a")))
	got, err := store.GetTransactionsByUser(ctx, "user-a")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
