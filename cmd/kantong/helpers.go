package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/kantongapp/kantong/internal/common"
	"github.com/kantongapp/kantong/internal/config"
	"github.com/kantongapp/kantong/internal/connectivity"
	"github.com/kantongapp/kantong/internal/offline"
	"github.com/kantongapp/kantong/internal/remote"
	"github.com/kantongapp/kantong/internal/service"
	"github.com/kantongapp/kantong/internal/storage"
	"github.com/kantongapp/kantong/internal/syncer"
)

// app bundles the wired sync-core components for a command invocation.
type app struct {
	store   *storage.SQLiteStore
	remote  service.RemoteStore
	monitor *connectivity.Monitor
	engine  *syncer.Engine
	writer  *offline.Writer
	userID  string
}

// initStore opens the local store, retrying briefly since storage
// unavailability is treated as transient.
func initStore(ctx context.Context) (*storage.SQLiteStore, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/kantong/kantong.db"
	}
	dbPath = config.ExpandPath(dbPath)

	var store *storage.SQLiteStore
	err := common.WithRetry(ctx, func() error {
		var err error
		store, err = storage.NewSQLiteStore(dbPath)
		return err
	}, service.RetryOptions{MaxAttempts: 3, InitialDelay: 200 * time.Millisecond})
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	return store, nil
}

// buildApp wires the store, remote client, monitor, engine and writer.
func buildApp(ctx context.Context, progress func(done, total int)) (*app, error) {
	userID := viper.GetString("user.id")
	if userID == "" {
		return nil, fmt.Errorf("%w: user.id", common.ErrMissingConfig)
	}

	baseURL := viper.GetString("remote.url")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: remote.url", common.ErrMissingConfig)
	}

	store, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	client, err := remote.NewClient(baseURL, viper.GetString("remote.api_key"))
	if err != nil {
		return nil, fmt.Errorf("%w: remote.url: %v", common.ErrInvalidConfig, err)
	}

	var probe service.Probe
	if viper.GetBool("offline") {
		probe = connectivity.StaticProbe(false)
	} else {
		probe = connectivity.NewHTTPProbe(baseURL)
	}
	monitor := connectivity.NewMonitor(ctx, probe)

	engineConfig := syncer.DefaultConfig()
	engineConfig.OnProgress = progress
	if v := viper.GetInt("sync.max_attempts"); v > 0 {
		engineConfig.MaxAttempts = v
	}
	if v := viper.GetDuration("sync.tick_interval"); v > 0 {
		engineConfig.TickInterval = v
	}

	engine := syncer.NewWithConfig(store, store, client, monitor, userID, engineConfig)
	writer := offline.NewWriter(store, store, client, monitor)

	return &app{
		store:   store,
		remote:  client,
		monitor: monitor,
		engine:  engine,
		writer:  writer,
		userID:  userID,
	}, nil
}

func (a *app) close() {
	_ = a.store.Close()
}
