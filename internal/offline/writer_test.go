package offline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kantongapp/kantong/internal/common"
	"github.com/kantongapp/kantong/internal/connectivity"
	"github.com/kantongapp/kantong/internal/model"
	"github.com/kantongapp/kantong/internal/remote"
	"github.com/kantongapp/kantong/internal/storage"
)

const testUserID = "user-a"

type testEnv struct {
	writer  *Writer
	store   *storage.SQLiteStore
	mock    *remote.Mock
	monitor *connectivity.Monitor
}

func newTestEnv(t *testing.T, online bool) *testEnv {
	t.Helper()

	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	mock := remote.NewMock()
	monitor := connectivity.NewMonitor(context.Background(), connectivity.StaticProbe(online))

	writer := NewWriter(store, store, mock, monitor)
	writer.now = func() time.Time { return time.Date(2025, 1, 10, 8, 30, 0, 0, time.UTC) }

	return &testEnv{writer: writer, store: store, mock: mock, monitor: monitor}
}

func expenseInput(amount int64) TransactionInput {
	return TransactionInput{
		Amount: amount,
		Kind:   model.KindExpense,
		Date:   time.Date(2025, 1, 10, 14, 45, 12, 0, time.UTC),
	}
}

func TestCreateTransaction_OfflineIsDurableAndQueued(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	txn, err := env.writer.CreateTransaction(ctx, testUserID, expenseInput(2500))
	require.NoError(t, err)

	assert.NotEmpty(t, txn.ID)
	assert.Equal(t, model.StatusPending, txn.Status)
	assert.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), txn.Date)

	// Visible immediately in the local cache.
	local, err := env.store.GetTransactionsByUser(ctx, testUserID)
	require.NoError(t, err)
	require.Len(t, local, 1)
	assert.Equal(t, txn.ID, local[0].ID)
	assert.Equal(t, model.StatusPending, local[0].Status)

	// Queued for the sync engine with a fresh attempt counter.
	entries, err := env.store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.EntityTransaction, entries[0].Kind)
	assert.Equal(t, model.OpCreate, entries[0].Op)
	assert.Zero(t, entries[0].Attempts)
	require.NotNil(t, entries[0].Transaction)
	assert.Equal(t, txn.ID, entries[0].Transaction.ID)

	// No network round-trip happened.
	assert.Empty(t, env.mock.Calls())
}

func TestCreateTransaction_OnlineConfirmsImmediately(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	txn, err := env.writer.CreateTransaction(ctx, testUserID, expenseInput(2500))
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, txn.Status)

	_, ok := env.mock.Transaction(txn.ID)
	assert.True(t, ok)

	n, err := env.store.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	local, err := env.store.GetTransactionsByUser(ctx, testUserID)
	require.NoError(t, err)
	require.Len(t, local, 1)
	assert.Equal(t, model.StatusSuccess, local[0].Status)
}

func TestCreateTransaction_OnlineRemoteFailure(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	env.mock.SetErr(errors.New("remote returned 500"))

	_, err := env.writer.CreateTransaction(ctx, testUserID, expenseInput(2500))
	require.Error(t, err)

	var userErr *common.UserError
	assert.ErrorAs(t, err, &userErr)

	// Nothing cached, nothing queued.
	local, lerr := env.store.GetTransactionsByUser(ctx, testUserID)
	require.NoError(t, lerr)
	assert.Empty(t, local)

	n, lerr := env.store.Len(ctx)
	require.NoError(t, lerr)
	assert.Zero(t, n)
}

func TestCreateTransaction_Validation(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	tests := []struct {
		name  string
		input TransactionInput
	}{
		{"zero amount", TransactionInput{Amount: 0, Kind: model.KindExpense}},
		{"negative amount", TransactionInput{Amount: -500, Kind: model.KindIncome}},
		{"unknown kind", TransactionInput{Amount: 100, Kind: "transfer"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.writer.CreateTransaction(ctx, testUserID, tt.input)
			assert.Error(t, err)
		})
	}

	n, err := env.store.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpdateTransaction_OfflineQueuesUpdate(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	txn, err := env.writer.CreateTransaction(ctx, testUserID, expenseInput(2500))
	require.NoError(t, err)

	txn.Amount = 3000
	require.NoError(t, env.writer.UpdateTransaction(ctx, txn))

	local, err := env.store.GetTransactionsByUser(ctx, testUserID)
	require.NoError(t, err)
	require.Len(t, local, 1)
	assert.Equal(t, int64(3000), local[0].Amount)

	entries, err := env.store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.OpCreate, entries[0].Op)
	assert.Equal(t, model.OpUpdate, entries[1].Op)
}

func TestDeleteTransaction_OfflineRemovesAndQueues(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	txn, err := env.writer.CreateTransaction(ctx, testUserID, expenseInput(2500))
	require.NoError(t, err)
	require.NoError(t, env.writer.DeleteTransaction(ctx, txn.ID))

	local, err := env.store.GetTransactionsByUser(ctx, testUserID)
	require.NoError(t, err)
	assert.Empty(t, local)

	entries, err := env.store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.OpDelete, entries[1].Op)
	assert.Equal(t, txn.ID, entries[1].EntityID())
}

func TestDeleteTransaction_OnlineGoesStraightToRemote(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	txn, err := env.writer.CreateTransaction(ctx, testUserID, expenseInput(2500))
	require.NoError(t, err)
	require.NoError(t, env.writer.DeleteTransaction(ctx, txn.ID))

	_, ok := env.mock.Transaction(txn.ID)
	assert.False(t, ok)

	n, err := env.store.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateCategory_Offline(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	cat, err := env.writer.CreateCategory(ctx, testUserID, "  Groceries ")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", cat.Name)

	cats, err := env.store.GetCategoriesByUser(ctx, testUserID)
	require.NoError(t, err)
	require.Len(t, cats, 1)

	entries, err := env.store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.EntityCategory, entries[0].Kind)
	assert.Equal(t, model.OpCreate, entries[0].Op)

	assert.Empty(t, env.mock.Calls())
}

func TestCreateCategory_DuplicateName(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	_, err := env.writer.CreateCategory(ctx, testUserID, "Groceries")
	require.NoError(t, err)

	_, err = env.writer.CreateCategory(ctx, testUserID, "groceries")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)
}

func TestCreateCategory_EmptyName(t *testing.T) {
	env := newTestEnv(t, false)

	_, err := env.writer.CreateCategory(context.Background(), testUserID, "   ")
	assert.Error(t, err)
}
