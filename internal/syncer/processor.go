package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/finsync/internal/common"
	"github.com/Veraticus/finsync/internal/model"
	"github.com/Veraticus/finsync/internal/remote"
	"github.com/Veraticus/finsync/internal/service"
	"github.com/Veraticus/finsync/internal/storage"
	"github.com/Veraticus/finsync/internal/wire"
)

// DefaultItemTimeout bounds each remote call made for a queue item.
const DefaultItemTimeout = 15 * time.Second

// ProgressFunc is called after every processed queue item.
type ProgressFunc func(done, total int, item model.QueueItem, outcome model.Outcome)

// ProcessorOptions configures a Processor.
type ProcessorOptions struct {
	Progress    ProgressFunc
	UserID      string
	ItemTimeout time.Duration
	// MaxAttempts moves an item to the dead-letter table once it has been
	// rejected this many times. Zero keeps rejected items queued forever.
	MaxAttempts int
}

// PassResult summarizes one sync pass.
type PassResult struct {
	Synced       int
	Ghosts       int
	Failed       int
	DeadLettered int
	Remaining    int
	Duration     time.Duration
}

// Processor drains the mutation queue against the remote store.
type Processor struct {
	store  service.LocalStore
	remote service.RemoteStore
	conn   service.Connectivity
	guard  *Guard
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	opts   ProcessorOptions
	wg     sync.WaitGroup
}

var _ service.SyncTrigger = (*Processor)(nil)

// NewProcessor creates a processor. The guard is shared with the Reconciler.
func NewProcessor(store service.LocalStore, rs service.RemoteStore, conn service.Connectivity, guard *Guard, opts ProcessorOptions) *Processor {
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = DefaultItemTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Processor{
		store:  store,
		remote: rs,
		conn:   conn,
		guard:  guard,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		logger: common.ComponentLogger("syncer"),
	}
}

// Trigger starts a background pass and returns immediately. The trigger is
// ignored while offline and dropped while another pass holds the guard.
func (p *Processor) Trigger(reason model.Trigger) {
	if p.ctx.Err() != nil {
		return
	}
	if !p.conn.Online() {
		p.logger.Debug("Sync trigger ignored while offline", "trigger", reason)
		return
	}
	if !p.guard.TryAcquire() {
		p.logger.Debug("Sync trigger dropped, pass in progress", "trigger", reason)
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.guard.Release()

		result, err := p.pass(p.ctx)
		if err != nil {
			p.logger.Warn("Sync pass failed", "trigger", reason, "error", err)
			return
		}
		p.logResult(reason, result)
	}()
}

// SyncNow runs a pass on the calling goroutine.
func (p *Processor) SyncNow(ctx context.Context) (PassResult, error) {
	if !p.conn.Online() {
		return PassResult{}, common.ErrOffline
	}
	if !p.guard.TryAcquire() {
		return PassResult{}, common.ErrPassInProgress
	}
	defer p.guard.Release()

	result, err := p.pass(ctx)
	if err != nil {
		return result, err
	}
	p.logResult(model.TriggerManual, result)
	return result, nil
}

// Wait blocks until every background pass has finished.
func (p *Processor) Wait() {
	p.wg.Wait()
}

// Close cancels background passes and waits for them to stop.
func (p *Processor) Close() {
	p.cancel()
	p.wg.Wait()
}

func (p *Processor) logResult(reason model.Trigger, result PassResult) {
	if result.Synced+result.Ghosts+result.Failed == 0 {
		return
	}
	level := slog.LevelInfo
	if result.Failed > 0 {
		level = slog.LevelWarn
	}
	p.logger.Log(context.Background(), level, "Sync pass complete",
		"trigger", reason,
		"synced", result.Synced,
		"ghosts", result.Ghosts,
		"failed", result.Failed,
		"dead_lettered", result.DeadLettered,
		"remaining", result.Remaining,
		"duration", result.Duration)
}

// pass processes a snapshot of the queue sequentially. A failed item is
// left queued and never stops the items after it.
func (p *Processor) pass(ctx context.Context) (PassResult, error) {
	start := time.Now()
	var result PassResult

	items, err := p.store.QueueItems(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to read queue: %w", err)
	}

	for i, item := range items {
		if ctx.Err() != nil {
			break
		}

		outcome, attemptErr := p.attempt(ctx, item)
		if outcome == model.OutcomeFailed && ctx.Err() != nil {
			break
		}

		switch outcome {
		case model.OutcomeSynced, model.OutcomeGhost:
			if err := p.store.RemoveQueueItem(ctx, item.Seq); err != nil {
				return result, fmt.Errorf("failed to dequeue item %d: %w", item.Seq, err)
			}
			if outcome == model.OutcomeGhost {
				result.Ghosts++
				p.logger.Debug("Discarded ghost queue item", "table", item.Table, "id", item.EntityID, "action", item.Action)
			} else {
				result.Synced++
			}
		case model.OutcomeFailed:
			result.Failed++
			dead, err := p.recordFailure(ctx, item, attemptErr)
			if err != nil {
				return result, err
			}
			if dead {
				result.DeadLettered++
			}
		}

		if p.opts.Progress != nil {
			p.opts.Progress(i+1, len(items), item, outcome)
		}
	}

	remaining, err := p.store.QueueLen(context.WithoutCancel(ctx))
	if err != nil {
		return result, err
	}
	result.Remaining = remaining
	result.Duration = time.Since(start)
	return result, nil
}

// attempt pushes one queue item to the remote store.
func (p *Processor) attempt(ctx context.Context, item model.QueueItem) (model.Outcome, error) {
	switch item.Action {
	case model.ActionInsert, model.ActionUpdate:
		doc, err := p.store.GetDoc(ctx, item.Table, item.EntityID)
		if storage.IsNotFound(err) {
			return model.OutcomeGhost, nil
		}
		if err != nil {
			return model.OutcomeFailed, err
		}

		row, err := wire.ToRemote(item.Table, doc, p.opts.UserID)
		if err != nil {
			return model.OutcomeFailed, err
		}

		err = common.WithTimeout(ctx, p.opts.ItemTimeout, func(ctx context.Context) error {
			return p.remote.BulkUpsert(ctx, item.Table, []wire.Row{row})
		})
		if err != nil {
			return model.OutcomeFailed, err
		}
		return model.OutcomeSynced, nil

	case model.ActionDelete:
		err := common.WithTimeout(ctx, p.opts.ItemTimeout, func(ctx context.Context) error {
			return p.remote.Delete(ctx, item.Table, item.EntityID)
		})
		if err != nil && !errors.Is(err, remote.ErrNotFound) {
			return model.OutcomeFailed, err
		}
		return model.OutcomeSynced, nil

	default:
		return model.OutcomeFailed, fmt.Errorf("%w: %q", storage.ErrInvalidAction, item.Action)
	}
}

// recordFailure keeps a failed item queued, or dead-letters it once a
// permanent rejection has exhausted its attempts.
func (p *Processor) recordFailure(ctx context.Context, item model.QueueItem, cause error) (bool, error) {
	reason := cause.Error()
	logger := p.logger.With("table", item.Table, "id", item.EntityID, "action", item.Action)

	attempts, err := p.store.RecordQueueFailure(ctx, item.Seq, reason)
	if err != nil {
		if storage.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to record failure of item %d: %w", item.Seq, err)
	}

	if p.opts.MaxAttempts > 0 && attempts >= p.opts.MaxAttempts && remote.IsRejected(cause) {
		item.Attempts = attempts
		item.LastError = reason
		if err := p.store.DeadLetter(ctx, item, "rejected by remote store"); err != nil {
			return false, fmt.Errorf("failed to dead-letter item %d: %w", item.Seq, err)
		}
		logger.Error("Queue item dead-lettered", "attempts", attempts, "error", cause)
		return true, nil
	}

	logger.Warn("Queue item failed, will retry", "attempts", attempts, "error", cause)
	return false, nil
}
