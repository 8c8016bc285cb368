package storage

import (
	"sync"

	"github.com/Veraticus/finsync/internal/model"
)

// subscriptionBuffer bounds how many unread changes a subscriber can hold.
// Further changes are dropped for that subscriber; readers re-query the
// table on every signal so a dropped duplicate never hides data.
const subscriptionBuffer = 16

// Hub fans change notifications out to subscribers.
type Hub struct {
	subs   map[*Subscription]struct{}
	mu     sync.RWMutex
	closed bool
}

// Subscription receives changes for a set of tables.
type Subscription struct {
	C      <-chan model.Change
	ch     chan model.Change
	tables map[model.Table]struct{}
	hub    *Hub
	once   sync.Once
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a subscriber. No tables means every table.
func (h *Hub) Subscribe(tables ...model.Table) *Subscription {
	ch := make(chan model.Change, subscriptionBuffer)
	sub := &Subscription{
		C:      ch,
		ch:     ch,
		tables: make(map[model.Table]struct{}, len(tables)),
		hub:    h,
	}
	for _, t := range tables {
		sub.tables[t] = struct{}{}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.once.Do(func() { close(ch) })
		return sub
	}
	h.subs[sub] = struct{}{}
	return sub
}

// Publish delivers a change to every interested subscriber without blocking.
func (h *Hub) Publish(change model.Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		if !sub.wants(change.Table) {
			continue
		}
		select {
		case sub.ch <- change:
		default:
		}
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close closes every subscription and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		delete(h.subs, sub)
		sub.once.Do(func() { close(sub.ch) })
	}
}

func (s *Subscription) wants(table model.Table) bool {
	if len(s.tables) == 0 {
		return true
	}
	_, ok := s.tables[table]
	return ok
}

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	delete(s.hub.subs, s)
	s.once.Do(func() { close(s.ch) })
}
