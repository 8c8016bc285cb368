// Package connectivity tracks whether the remote store is reachable.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/finsync/internal/common"
	"github.com/Veraticus/finsync/internal/service"
)

// Monitor holds the current online state and fans transitions out to
// subscribers. Only real transitions are delivered.
type Monitor struct {
	subs   map[chan bool]struct{}
	logger *slog.Logger
	mu     sync.Mutex
	online bool
}

var _ service.Connectivity = (*Monitor)(nil)

// NewMonitor creates a monitor with an initial state.
func NewMonitor(online bool) *Monitor {
	return &Monitor{
		online: online,
		subs:   make(map[chan bool]struct{}),
		logger: common.ComponentLogger("connectivity"),
	}
}

// Online reports the last known state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline records a new state and reports whether it was a transition.
func (m *Monitor) SetOnline(online bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.online == online {
		return false
	}
	m.online = online
	m.logger.Info("Connectivity changed", "online", online)

	for ch := range m.subs {
		// Each channel holds only the newest state.
		select {
		case <-ch:
		default:
		}
		ch <- online
	}
	return true
}

// Subscribe returns a channel of transitions and a function that
// unsubscribes and closes it.
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	ch := make(chan bool, 1)

	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, ch)
			m.mu.Unlock()
			close(ch)
		})
	}
}

// Probe pings the remote store every interval and feeds the result into
// the monitor until ctx is done. Each ping is bounded by timeout.
func (m *Monitor) Probe(ctx context.Context, pinger service.Pinger, interval, timeout time.Duration) {
	if interval <= 0 {
		return
	}

	check := func() {
		err := common.WithTimeout(ctx, timeout, pinger.Ping)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			m.logger.Debug("Remote ping failed", "error", err)
		}
		m.SetOnline(err == nil)
	}

	check()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
