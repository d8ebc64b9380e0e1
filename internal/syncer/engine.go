// Package syncer drains the offline mutation queue against the remote store.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/kantongapp/kantong/internal/common"
	"github.com/kantongapp/kantong/internal/connectivity"
	"github.com/kantongapp/kantong/internal/model"
	"github.com/kantongapp/kantong/internal/service"
)

// Config holds configuration options for the sync engine.
type Config struct {
	// OnProgress, if set, is called after each processed entry of a drain
	// pass with (done, total).
	OnProgress func(done, total int)

	// MaxAttempts is the retry budget per queue entry. Once a failing entry
	// reaches it, the entry is removed and dead-lettered.
	MaxAttempts int

	// TickInterval is the safety-net timer period for the Run loop.
	TickInterval time.Duration

	// PageSize is the remote read page size used by Refresh.
	PageSize int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		TickInterval: 2 * time.Minute,
		PageSize:     1000,
	}
}

// Engine replays queued mutations against the remote store.
//
// Exactly one drain pass is active at a time; a trigger arriving while a pass
// runs is a no-op and the remainder is picked up by the next trigger.
type Engine struct {
	store    service.LocalStore
	queue    service.SyncQueue
	remote   service.RemoteStore
	monitor  *connectivity.Monitor
	userID   string
	config   Config
	draining atomic.Bool
}

// DrainStats summarizes one drain pass.
type DrainStats struct {
	Total   int
	Synced  int
	Retried int
	Dropped int
}

// New creates a sync engine with the default configuration.
func New(store service.LocalStore, queue service.SyncQueue, remote service.RemoteStore, monitor *connectivity.Monitor, userID string) *Engine {
	return NewWithConfig(store, queue, remote, monitor, userID, DefaultConfig())
}

// NewWithConfig creates a sync engine with custom configuration.
func NewWithConfig(store service.LocalStore, queue service.SyncQueue, remote service.RemoteStore, monitor *connectivity.Monitor, userID string, config Config) *Engine {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultConfig().TickInterval
	}
	if config.PageSize <= 0 {
		config.PageSize = DefaultConfig().PageSize
	}
	return &Engine{
		store:   store,
		queue:   queue,
		remote:  remote,
		monitor: monitor,
		userID:  userID,
		config:  config,
	}
}

// SyncNow runs a drain pass on demand. It fails fast with common.ErrOffline
// when the monitor reports offline and with common.ErrSyncInProgress when a
// pass is already active.
func (e *Engine) SyncNow(ctx context.Context) (DrainStats, error) {
	if !e.monitor.Online() {
		return DrainStats{}, common.ErrOffline
	}

	stats, started := e.TrySync(ctx)
	if !started {
		return DrainStats{}, common.ErrSyncInProgress
	}
	return stats, nil
}

// TrySync runs a drain pass if one is not already active and the monitor
// reports online. It reports whether a pass actually ran.
func (e *Engine) TrySync(ctx context.Context) (DrainStats, bool) {
	if !e.monitor.Online() {
		return DrainStats{}, false
	}
	if !e.draining.CompareAndSwap(false, true) {
		slog.Debug("sync trigger ignored, drain already in progress")
		return DrainStats{}, false
	}
	defer e.draining.Store(false)

	return e.drain(ctx), true
}

// Draining reports whether a drain pass is currently active.
func (e *Engine) Draining() bool {
	return e.draining.Load()
}

// drain processes one snapshot of the queue to completion. A pass is never
// cancelled mid-flight; entries that fail mid-pass are accounted and left for
// the next trigger.
func (e *Engine) drain(ctx context.Context) DrainStats {
	var stats DrainStats

	snapshot, err := e.queue.Snapshot(ctx)
	if err != nil {
		common.LogError(err, "failed to snapshot sync queue", nil)
		return stats
	}
	stats.Total = len(snapshot)
	if stats.Total == 0 {
		return stats
	}

	slog.Info("draining sync queue", "entries", stats.Total)

	for i := range snapshot {
		entry := snapshot[i]

		if err := e.dispatch(ctx, &entry); err != nil {
			e.recordFailure(ctx, &entry, err, &stats)
		} else {
			e.confirm(ctx, &entry)
			if err := e.queue.Remove(ctx, entry.ID); err != nil {
				slog.Error("failed to remove synced entry", "id", entry.ID, "error", err)
			}
			stats.Synced++
		}

		if e.config.OnProgress != nil {
			e.config.OnProgress(i+1, stats.Total)
		}
	}

	common.LogInfo("drain pass complete", common.Fields{
		"synced":  stats.Synced,
		"retried": stats.Retried,
		"dropped": stats.Dropped,
	})
	return stats
}

// dispatch applies one queue entry to the remote store. Every error is
// treated uniformly as a failed attempt; the engine does not distinguish
// retryable from permanent failures.
func (e *Engine) dispatch(ctx context.Context, entry *model.QueueEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	switch entry.Kind {
	case model.EntityTransaction:
		switch entry.Op {
		case model.OpCreate:
			return e.remote.InsertTransaction(ctx, *entry.Transaction)
		case model.OpUpdate:
			return e.remote.UpdateTransaction(ctx, *entry.Transaction)
		case model.OpDelete:
			return e.remote.DeleteTransaction(ctx, entry.Transaction.ID)
		}
	case model.EntityCategory:
		switch entry.Op {
		case model.OpCreate:
			return e.remote.InsertCategory(ctx, *entry.Category)
		case model.OpUpdate:
			return e.remote.UpdateCategory(ctx, *entry.Category)
		case model.OpDelete:
			return e.remote.DeleteCategory(ctx, entry.Category.ID)
		}
	}
	return fmt.Errorf("unhandled queue entry %s/%s", entry.Kind, entry.Op)
}

// confirm applies the local follow-up for a successfully dispatched entry.
// Follow-up failures are logged, not retried; the remote already holds the
// confirmed state and the next refresh re-converges the cache.
func (e *Engine) confirm(ctx context.Context, entry *model.QueueEntry) {
	switch {
	case entry.Kind == model.EntityTransaction && entry.Op == model.OpCreate:
		txn := *entry.Transaction
		txn.Status = model.StatusSuccess
		if err := e.store.SaveTransaction(ctx, txn); err != nil {
			common.LogError(err, "failed to mark transaction synced", common.Fields{"id": txn.ID})
		}
	case entry.Kind == model.EntityTransaction && entry.Op == model.OpDelete:
		if err := e.store.DeleteTransaction(ctx, entry.Transaction.ID); err != nil {
			common.LogError(err, "failed to remove deleted transaction from cache", common.Fields{"id": entry.Transaction.ID})
		}
	case entry.Kind == model.EntityCategory && entry.Op == model.OpDelete:
		if err := e.store.DeleteCategory(ctx, entry.Category.ID); err != nil {
			common.LogError(err, "failed to remove deleted category from cache", common.Fields{"id": entry.Category.ID})
		}
	}
}

// recordFailure charges one attempt against the entry, dead-lettering it once
// the budget is exhausted.
func (e *Engine) recordFailure(ctx context.Context, entry *model.QueueEntry, cause error, stats *DrainStats) {
	if entry.Attempts+1 >= e.config.MaxAttempts {
		entry.Attempts++
		slog.Warn("dropping sync entry after max attempts",
			"id", entry.ID, "kind", entry.Kind, "op", entry.Op,
			"attempts", entry.Attempts, "error", cause)

		letter := model.DeadLetter{
			Entry:    *entry,
			FailedAt: time.Now().UTC(),
			LastErr:  cause.Error(),
		}
		if err := e.store.SaveDeadLetter(ctx, letter); err != nil {
			common.LogError(err, "failed to save dead letter", common.Fields{"id": entry.ID})
		}
		if err := e.queue.Remove(ctx, entry.ID); err != nil {
			common.LogError(err, "failed to remove exhausted entry", common.Fields{"id": entry.ID})
		}
		stats.Dropped++
		return
	}

	if err := e.queue.RecordAttempt(ctx, entry); err != nil {
		slog.Error("failed to record attempt", "id", entry.ID, "error", err)
	}
	slog.Warn("sync entry failed, will retry",
		"id", entry.ID, "kind", entry.Kind, "op", entry.Op,
		"attempts", entry.Attempts, "max_attempts", e.config.MaxAttempts, "error", cause)
	stats.Retried++
}

// Status is the externally visible sync health surface.
type Status struct {
	Online      bool
	Draining    bool
	Pending     int
	DeadLetters int
}

// Status reports the queue length and connectivity state for the UI layer.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	pending, err := e.queue.Len(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("failed to read queue length: %w", err)
	}

	letters, err := e.store.GetDeadLetters(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("failed to read dead letters: %w", err)
	}

	return Status{
		Online:      e.monitor.Online(),
		Draining:    e.draining.Load(),
		Pending:     pending,
		DeadLetters: len(letters),
	}, nil
}
