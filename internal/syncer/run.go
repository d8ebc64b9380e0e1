package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kantongapp/kantong/internal/common"
)

// Run blocks, draining the queue on connectivity-restored signals and on a
// periodic safety-net timer while the app is visible. Each tick re-probes the
// platform signal before consulting it, so a recovery that arrived without an
// event still fires the restored trigger and a silent disconnect stops the
// ticker from burning retry attempts against a dead network. Returns when ctx
// is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.config.TickInterval)
	defer ticker.Stop()

	slog.Info("sync engine running", "tick_interval", e.config.TickInterval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-e.monitor.Restored():
			e.syncAndRefresh(ctx)

		case <-ticker.C:
			e.monitor.Reprobe(ctx)
			if e.monitor.Visible() && e.monitor.Online() {
				e.syncAndRefresh(ctx)
			}
		}
	}
}

// HandleVisibility feeds a visibility transition into the monitor and, when
// the app becomes visible while online, triggers a drain.
func (e *Engine) HandleVisibility(ctx context.Context, visible bool) {
	if !visible {
		e.monitor.PageHidden()
		return
	}

	e.monitor.PageVisible(ctx)
	if e.monitor.Online() {
		e.syncAndRefresh(ctx)
	}
}

func (e *Engine) syncAndRefresh(ctx context.Context) {
	if _, started := e.TrySync(ctx); !started {
		return
	}
	if err := e.Refresh(ctx); err != nil && !errors.Is(err, common.ErrOffline) {
		slog.Warn("cache refresh failed", "error", err)
	}
}

// Refresh pulls the user's categories and transactions from the remote store
// into the local cache, paginating transactions newest-first.
func (e *Engine) Refresh(ctx context.Context) error {
	if !e.monitor.Online() {
		return common.ErrOffline
	}

	cats, err := e.remote.ListCategories(ctx, e.userID)
	if err != nil {
		return fmt.Errorf("failed to fetch categories: %w", err)
	}
	for _, cat := range cats {
		if err := e.store.SaveCategory(ctx, cat); err != nil {
			slog.Warn("failed to cache category", "id", cat.ID, "error", err)
		}
	}

	offset := 0
	total := 0
	for {
		page, err := e.remote.ListTransactions(ctx, e.userID, e.config.PageSize, offset)
		if err != nil {
			return fmt.Errorf("failed to fetch transactions at offset %d: %w", offset, err)
		}
		for _, txn := range page {
			if err := e.store.SaveTransaction(ctx, txn); err != nil {
				slog.Warn("failed to cache transaction", "id", txn.ID, "error", err)
			}
		}
		total += len(page)
		if len(page) < e.config.PageSize {
			break
		}
		offset += e.config.PageSize
	}

	slog.Debug("cache refreshed", "categories", len(cats), "transactions", total)
	return nil
}
