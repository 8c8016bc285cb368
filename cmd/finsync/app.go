package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/spf13/viper"

	"github.com/Veraticus/finsync/internal/common"
	"github.com/Veraticus/finsync/internal/config"
	"github.com/Veraticus/finsync/internal/connectivity"
	"github.com/Veraticus/finsync/internal/ledger"
	"github.com/Veraticus/finsync/internal/model"
	"github.com/Veraticus/finsync/internal/remote"
	"github.com/Veraticus/finsync/internal/service"
	"github.com/Veraticus/finsync/internal/snapshot"
	"github.com/Veraticus/finsync/internal/storage"
	"github.com/Veraticus/finsync/internal/syncer"
	"github.com/Veraticus/finsync/internal/wire"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

// current is the app of the running command, read by the interrupt handler.
var current atomic.Pointer[app]

// app wires every component a command may need.
type app struct {
	cfg        *config.Config
	store      *storage.SQLiteStorage
	client     *remote.Client // nil when no remote is configured
	snapshot   *snapshot.Store
	monitor    *connectivity.Monitor
	guard      *syncer.Guard
	processor  *syncer.Processor
	reconciler *syncer.Reconciler
	ledger     *ledger.Ledger
}

type appOptions struct {
	progress syncer.ProgressFunc
	// probe pings the remote once to decide the initial connectivity state.
	probe bool
	// background lets ledger writes trigger sync passes.
	background bool
}

// openApp loads the configuration, opens and migrates the local store,
// restores the fallback snapshot into an empty store and builds the sync
// components.
func openApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	a := &app{
		cfg:     cfg,
		store:   store,
		monitor: connectivity.NewMonitor(false),
		guard:   &syncer.Guard{},
	}

	if cfg.Snapshot.Path != "" {
		snap, err := snapshot.Open(cfg.Snapshot.Path, cfg.Snapshot.Limit)
		if err != nil {
			slog.Warn("Fallback snapshot unavailable", "path", cfg.Snapshot.Path, "error", err)
		} else {
			a.snapshot = snap
			if _, err := syncer.Bootstrap(ctx, store, snap); err != nil {
				slog.Warn("Failed to restore fallback snapshot", "error", err)
			}
		}
	}

	if cfg.RemoteConfigured() {
		client, err := remote.NewClient(cfg.ClientConfig())
		if err != nil {
			a.close()
			return nil, err
		}
		a.client = client
	}

	var rs service.RemoteStore = offlineRemote{}
	if a.client != nil {
		rs = a.client
	}
	a.processor = syncer.NewProcessor(store, rs, a.monitor, a.guard, syncer.ProcessorOptions{
		Progress:    opts.progress,
		UserID:      cfg.Remote.UserID,
		ItemTimeout: cfg.Sync.ItemTimeout,
		MaxAttempts: cfg.Sync.MaxAttempts,
	})

	reconcileOpts := syncer.ReconcilerOptions{UserID: cfg.Remote.UserID}
	if a.snapshot != nil {
		reconcileOpts.Snapshot = a.snapshot
	}
	a.reconciler = syncer.NewReconciler(store, rs, a.monitor, a.guard, reconcileOpts)

	if opts.background {
		a.ledger = ledger.New(store, a.processor)
	} else {
		a.ledger = ledger.New(store, nil)
	}

	if opts.probe && a.client != nil {
		err := common.WithTimeout(ctx, cfg.Sync.ItemTimeout, a.client.Ping)
		if err != nil {
			slog.Warn("Remote store unreachable, working offline", "error", err)
		}
		a.monitor.SetOnline(err == nil)
	}

	current.Store(a)
	return a, nil
}

func (a *app) close() {
	current.CompareAndSwap(a, nil)
	if a.processor != nil {
		a.processor.Close()
	}
	if a.snapshot != nil {
		if err := a.snapshot.Close(); err != nil {
			slog.Warn("Failed to close snapshot", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
}

// pendingChanges reports the queue length of the running command.
func pendingChanges() int {
	a := current.Load()
	if a == nil {
		return 0
	}
	n, err := a.store.QueueLen(context.Background())
	if err != nil {
		return 0
	}
	return n
}

// requireRemote fails commands that cannot work without a remote store.
func (a *app) requireRemote() error {
	if a.client == nil {
		return common.NewUserError("No remote store configured",
			fmt.Errorf("%w: set remote.url and remote.api_key", common.ErrMissingConfig))
	}
	if a.cfg.Remote.UserID == "" {
		return common.NewUserError("No remote user configured",
			fmt.Errorf("%w: set remote.user_id", common.ErrMissingConfig))
	}
	if !a.monitor.Online() {
		return common.NewUserError("Remote store is unreachable", common.ErrOffline)
	}
	return nil
}

// offlineRemote stands in for the remote store when none is configured. The
// monitor never goes online without a client, so it is not normally called.
type offlineRemote struct{}

func (offlineRemote) BulkUpsert(context.Context, model.Table, []wire.Row) error { return common.ErrOffline }
func (offlineRemote) Delete(context.Context, model.Table, string) error { return common.ErrOffline }
func (offlineRemote) Ping(context.Context) error { return common.ErrOffline }

func (offlineRemote) SelectAll(context.Context, model.Table, string) ([]wire.Row, error) {
	return nil, common.ErrOffline
}
