// Package syncer drains the mutation queue into the remote store and
// reconciles the local store against it.
package syncer

import "sync/atomic"

// Guard is the single in-progress flag shared by sync and reconciliation
// passes. At most one pass of either kind runs at a time.
type Guard struct {
	busy atomic.Bool
}

// TryAcquire claims the guard and reports whether it was free.
func (g *Guard) TryAcquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Release frees the guard.
func (g *Guard) Release() {
	g.busy.Store(false)
}

// Busy reports whether a pass is running.
func (g *Guard) Busy() bool {
	return g.busy.Load()
}
