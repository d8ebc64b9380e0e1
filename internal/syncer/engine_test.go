package syncer

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
	engine  *Engine
	store   *storage.SQLiteStore
	mock    *remote.Mock
	monitor *connectivity.Monitor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	mock := remote.NewMock()
	monitor := connectivity.NewMonitor(context.Background(), connectivity.StaticProbe(true))

	return &testEnv{
		engine:  New(store, store, mock, monitor, testUserID),
		store:   store,
		mock:    mock,
		monitor: monitor,
	}
}

func pendingTransaction(id string) model.Transaction {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	return model.Transaction{
		ID:        id,
		UserID:    testUserID,
		Amount:    1500,
		Kind:      model.KindExpense,
		Date:      now.Truncate(24 * time.Hour),
		Status:    model.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func testCategory(id, name string) model.Category {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	return model.Category{ID: id, UserID: testUserID, Name: name, CreatedAt: now, UpdatedAt: now}
}

func queueLen(t *testing.T, env *testEnv) int {
	t.Helper()
	n, err := env.store.Len(context.Background())
	require.NoError(t, err)
	return n
}

func TestSyncNow_DrainEmptiesQueue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	txn := pendingTransaction("txn-1")
	require.NoError(t, env.store.SaveTransaction(ctx, txn))
	require.NoError(t, env.store.Enqueue(ctx, model.NewTransactionEntry(model.OpCreate, txn)))

	cat := testCategory("cat-1", "Groceries")
	require.NoError(t, env.store.SaveCategory(ctx, cat))
	require.NoError(t, env.store.Enqueue(ctx, model.NewCategoryEntry(model.OpCreate, cat)))

	stats, err := env.engine.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.Synced)
	assert.Zero(t, stats.Retried)
	assert.Zero(t, stats.Dropped)

	assert.Zero(t, queueLen(t, env))

	remoteTxn, ok := env.mock.Transaction("txn-1")
	require.True(t, ok)
	assert.Equal(t, model.StatusSuccess, remoteTxn.Status)
	_, ok = env.mock.Category("cat-1")
	assert.True(t, ok)

	// The cached copy is flipped to success once the remote confirms.
	local, err := env.store.GetTransactionsByUser(ctx, testUserID)
	require.NoError(t, err)
	require.Len(t, local, 1)
	assert.Equal(t, model.StatusSuccess, local[0].Status)
}

func TestSyncNow_OfflineFailsFast(t *testing.T) {
	env := newTestEnv(t)
	env.monitor.SetOnline(false)

	_, err := env.engine.SyncNow(context.Background())
	assert.ErrorIs(t, err, common.ErrOffline)
	assert.Empty(t, env.mock.Calls())
}

func TestDrain_CategoriesBeforeTransactions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Transaction enqueued first, category second; the drain still pushes
	// the category first.
	require.NoError(t, env.store.Enqueue(ctx, model.NewTransactionEntry(model.OpCreate, pendingTransaction("txn-1"))))
	require.NoError(t, env.store.Enqueue(ctx, model.NewCategoryEntry(model.OpCreate, testCategory("cat-1", "Rent"))))

	_, err := env.engine.SyncNow(ctx)
	require.NoError(t, err)

	calls := env.mock.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, remote.Call{Table: "categories", Op: "insert", ID: "cat-1"}, calls[0])
	assert.Equal(t, remote.Call{Table: "transactions", Op: "insert", ID: "txn-1"}, calls[1])
}

func TestDrain_RetryThenDeadLetter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	txn := pendingTransaction("txn-1")
	require.NoError(t, env.store.SaveTransaction(ctx, txn))
	require.NoError(t, env.store.Enqueue(ctx, model.NewTransactionEntry(model.OpCreate, txn)))

	env.mock.SetErr(errors.New("remote returned 500"))

	// First two failing passes keep the entry with a growing attempt count.
	for pass, wantAttempts := range []int{1, 2} {
		stats, err := env.engine.SyncNow(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Retried, "pass %d", pass)
		assert.Zero(t, stats.Dropped, "pass %d", pass)

		entries, err := env.store.Snapshot(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, wantAttempts, entries[0].Attempts)
	}

	// Third failure exhausts the budget: removed from the queue,
	// dead-lettered, local record untouched.
	stats, err := env.engine.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Dropped)
	assert.Zero(t, stats.Retried)
	assert.Zero(t, queueLen(t, env))

	letters, err := env.store.GetDeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, 3, letters[0].Entry.Attempts)
	assert.Equal(t, "remote returned 500", letters[0].LastErr)

	local, err := env.store.GetTransactionsByUser(ctx, testUserID)
	require.NoError(t, err)
	require.Len(t, local, 1)
	assert.Equal(t, model.StatusPending, local[0].Status)
}

func TestDrain_RecoversAfterFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	txn := pendingTransaction("txn-1")
	require.NoError(t, env.store.SaveTransaction(ctx, txn))
	require.NoError(t, env.store.Enqueue(ctx, model.NewTransactionEntry(model.OpCreate, txn)))

	env.mock.SetErr(errors.New("gateway timeout"))
	stats, err := env.engine.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Retried)

	env.mock.SetErr(nil)
	stats, err = env.engine.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Synced)
	assert.Zero(t, queueLen(t, env))
}

func TestDrain_BatchOfOfflineCreates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ids := []string{"txn-1", "txn-2", "txn-3", "txn-4", "txn-5"}
	for _, id := range ids {
		txn := pendingTransaction(id)
		require.NoError(t, env.store.SaveTransaction(ctx, txn))
		require.NoError(t, env.store.Enqueue(ctx, model.NewTransactionEntry(model.OpCreate, txn)))
	}

	var progress [][2]int
	env.engine.config.OnProgress = func(done, total int) {
		progress = append(progress, [2]int{done, total})
	}

	stats, err := env.engine.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(ids), stats.Synced)
	assert.Zero(t, queueLen(t, env))

	require.Len(t, progress, len(ids))
	assert.Equal(t, [2]int{1, 5}, progress[0])
	assert.Equal(t, [2]int{5, 5}, progress[4])

	for _, id := range ids {
		remoteTxn, ok := env.mock.Transaction(id)
		require.True(t, ok, "transaction %s missing remotely", id)
		assert.Equal(t, model.StatusSuccess, remoteTxn.Status)
	}
}

func TestDrain_SingleInFlight(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.store.Enqueue(ctx, model.NewTransactionEntry(model.OpCreate, pendingTransaction("txn-1"))))

	gate := make(chan struct{})
	env.mock.Gate = gate

	done := make(chan DrainStats, 1)
	go func() {
		stats, err := env.engine.SyncNow(ctx)
		assert.NoError(t, err)
		done <- stats
	}()

	require.Eventually(t, env.engine.Draining, time.Second, time.Millisecond)

	_, err := env.engine.SyncNow(ctx)
	assert.ErrorIs(t, err, common.ErrSyncInProgress)

	close(gate)
	stats := <-done
	assert.Equal(t, 1, stats.Synced)

	// Only the held pass reached the remote.
	assert.Len(t, env.mock.Calls(), 1)
}

func TestDrain_DeleteFollowUpsCleanCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	txn := pendingTransaction("txn-1")
	require.NoError(t, env.store.SaveTransaction(ctx, txn))
	cat := testCategory("cat-1", "Travel")
	require.NoError(t, env.store.SaveCategory(ctx, cat))

	require.NoError(t, env.store.Enqueue(ctx, model.NewTransactionEntry(model.OpDelete, txn)))
	require.NoError(t, env.store.Enqueue(ctx, model.NewCategoryEntry(model.OpDelete, cat)))

	stats, err := env.engine.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Synced)

	txns, err := env.store.GetTransactionsByUser(ctx, testUserID)
	require.NoError(t, err)
	assert.Empty(t, txns)

	cats, err := env.store.GetCategoriesByUser(ctx, testUserID)
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func TestRefresh_PopulatesCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.mock.InsertCategory(ctx, testCategory("cat-1", "Groceries")))
	for _, id := range []string{"txn-1", "txn-2", "txn-3"} {
		txn := pendingTransaction(id)
		txn.Status = model.StatusSuccess
		require.NoError(t, env.mock.InsertTransaction(ctx, txn))
	}

	require.NoError(t, env.engine.Refresh(ctx))

	cats, err := env.store.GetCategoriesByUser(ctx, testUserID)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "Groceries", cats[0].Name)

	txns, err := env.store.GetTransactionsByUser(ctx, testUserID)
	require.NoError(t, err)
	assert.Len(t, txns, 3)
}

func TestRefresh_PaginatesTransactions(t *testing.T) {
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	mock := remote.NewMock()
	monitor := connectivity.NewMonitor(context.Background(), connectivity.StaticProbe(true))
	config := DefaultConfig()
	config.PageSize = 2
	engine := NewWithConfig(store, store, mock, monitor, testUserID, config)

	ctx := context.Background()
	for _, id := range []string{"txn-1", "txn-2", "txn-3", "txn-4", "txn-5"} {
		require.NoError(t, mock.InsertTransaction(ctx, pendingTransaction(id)))
	}

	require.NoError(t, engine.Refresh(ctx))

	txns, err := store.GetTransactionsByUser(ctx, testUserID)
	require.NoError(t, err)
	assert.Len(t, txns, 5)

	// Five rows at page size two means three list calls.
	var listCalls int
	for _, call := range mock.Calls() {
		if call.Table == "transactions" && call.Op == "list" {
			listCalls++
		}
	}
	assert.Equal(t, 3, listCalls)
}

func TestRefresh_Offline(t *testing.T) {
	env := newTestEnv(t)
	env.monitor.SetOnline(false)

	err := env.engine.Refresh(context.Background())
	assert.ErrorIs(t, err, common.ErrOffline)
	assert.Empty(t, env.mock.Calls())
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.store.Enqueue(ctx, model.NewTransactionEntry(model.OpCreate, pendingTransaction("txn-1"))))

	status, err := env.engine.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Online)
	assert.False(t, status.Draining)
	assert.Equal(t, 1, status.Pending)
	assert.Zero(t, status.DeadLetters)

	env.monitor.SetOnline(false)
	status, err = env.engine.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Online)
}
