package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/finsync/internal/common"
	"github.com/Veraticus/finsync/internal/connectivity"
	"github.com/Veraticus/finsync/internal/model"
	"github.com/Veraticus/finsync/internal/service"
	"github.com/Veraticus/finsync/internal/snapshot"
	"github.com/Veraticus/finsync/internal/storage"
)

// SnapshotLoader reads the fallback snapshot.
type SnapshotLoader interface {
	Load(ctx context.Context) (*snapshot.Snapshot, error)
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	// Pinger enables the connectivity probe when ProbeInterval > 0.
	Pinger            service.Pinger
	ProbeInterval     time.Duration
	ProbeTimeout      time.Duration
	ReconcileInterval time.Duration
}

// Runner connects the connectivity monitor to the processor and the
// reconciler for long-running processes.
type Runner struct {
	processor  *Processor
	reconciler *Reconciler
	monitor    *connectivity.Monitor
	logger     *slog.Logger
	focus      chan struct{}
	opts       RunnerOptions
}

// NewRunner creates a runner.
func NewRunner(processor *Processor, reconciler *Reconciler, monitor *connectivity.Monitor, opts RunnerOptions) *Runner {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultItemTimeout
	}
	return &Runner{
		processor:  processor,
		reconciler: reconciler,
		monitor:    monitor,
		opts:       opts,
		focus:      make(chan struct{}, 1),
		logger:     common.ComponentLogger("runner"),
	}
}

// Bootstrap restores the fallback snapshot when the local store has
// neither transactions nor accounts. Restored rows are not enqueued.
// It reports whether anything was restored.
func Bootstrap(ctx context.Context, store service.LocalStore, loader SnapshotLoader) (bool, error) {
	if loader == nil {
		return false, nil
	}

	for _, table := range []model.Table{model.TableTransactions, model.TableAccounts} {
		n, err := store.Count(ctx, table)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return false, nil
		}
	}

	snap, err := loader.Load(ctx)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var restored int
	err = store.Update(ctx, func(tx *storage.Tx) error {
		for _, table := range model.TrackedTables {
			if err := tx.PutDocs(ctx, table, snap.Tables[table]); err != nil {
				return err
			}
			restored += len(snap.Tables[table])
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to restore snapshot: %w", err)
	}

	common.ComponentLogger("runner").Warn("Local store was empty, restored fallback snapshot",
		"records", restored,
		"saved_at", snap.SavedAt)
	return restored > 0, nil
}

// Focus asks the runner to catch up as if the application regained focus.
// It never blocks.
func (r *Runner) Focus() {
	select {
	case r.focus <- struct{}{}:
	default:
	}
}

// Run handles connectivity transitions, focus events and the optional
// reconcile interval until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	transitions, unsubscribe := r.monitor.Subscribe()
	defer unsubscribe()

	if r.opts.Pinger != nil && r.opts.ProbeInterval > 0 {
		go r.monitor.Probe(ctx, r.opts.Pinger, r.opts.ProbeInterval, r.opts.ProbeTimeout)
	}

	var interval <-chan time.Time
	if r.opts.ReconcileInterval > 0 {
		ticker := time.NewTicker(r.opts.ReconcileInterval)
		defer ticker.Stop()
		interval = ticker.C
	}

	if r.monitor.Online() {
		r.catchUp(ctx, model.TriggerManual)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case online, ok := <-transitions:
			if !ok {
				return nil
			}
			if online {
				r.catchUp(ctx, model.TriggerReconnect)
			}
		case <-r.focus:
			r.catchUp(ctx, model.TriggerFocus)
		case <-interval:
			r.catchUp(ctx, model.TriggerInterval)
		}
	}
}

// catchUp drains the queue and then reconciles. Failures are logged only.
func (r *Runner) catchUp(ctx context.Context, reason model.Trigger) {
	logger := r.logger.With("trigger", reason)

	result, err := r.processor.SyncNow(ctx)
	switch {
	case errors.Is(err, common.ErrOffline), errors.Is(err, common.ErrPassInProgress):
		logger.Debug("Skipping catch-up", "reason", err)
		return
	case err != nil:
		logger.Warn("Sync pass failed", "error", err)
		return
	}

	if result.Remaining > 0 {
		logger.Info("Skipping reconciliation, queue not empty", "remaining", result.Remaining)
		return
	}

	if _, err := r.reconciler.Reconcile(ctx); err != nil {
		if errors.Is(err, common.ErrQueueNotEmpty) || errors.Is(err, common.ErrPassInProgress) {
			logger.Info("Reconciliation skipped", "reason", err)
			return
		}
		logger.Warn("Reconciliation failed", "error", err)
	}
}
