package remote

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Veraticus/finsync/internal/model"
	"github.com/Veraticus/finsync/internal/service"
	"github.com/Veraticus/finsync/internal/wire"
)

// Memory is an in-memory remote store for tests and offline demos.
type Memory struct {
	// Functions that can be set by tests to inject failures
	UpsertFn func(table model.Table, rows []wire.Row) error
	DeleteFn func(table model.Table, id string) error
	SelectFn func(table model.Table) error
	PingFn   func() error

	tables map[model.Table]map[string]wire.Row

	// Call tracking
	UpsertCalls int
	DeleteCalls int
	SelectCalls int

	// Delay is applied to every call before it touches state.
	Delay time.Duration

	mu sync.Mutex
}

var _ service.RemoteStore = (*Memory)(nil)

// NewMemory creates an empty in-memory remote store.
func NewMemory() *Memory {
	return &Memory{tables: make(map[model.Table]map[string]wire.Row)}
}

func (m *Memory) wait(ctx context.Context) error {
	m.mu.Lock()
	delay := m.Delay
	m.mu.Unlock()

	if delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

func (m *Memory) table(t model.Table) map[string]wire.Row {
	rows, ok := m.tables[t]
	if !ok {
		rows = make(map[string]wire.Row)
		m.tables[t] = rows
	}
	return rows
}

// BulkUpsert merges rows into the table. Columns absent from a row keep
// their stored value.
func (m *Memory) BulkUpsert(ctx context.Context, table model.Table, rows []wire.Row) error {
	if err := m.wait(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls++

	if m.UpsertFn != nil {
		if err := m.UpsertFn(table, rows); err != nil {
			return err
		}
	}

	stored := m.table(table)
	for _, row := range rows {
		id, ok := row.ID()
		if !ok {
			return &RejectedError{StatusError: &StatusError{Table: table, Status: 400, Body: "row without id"}}
		}
		merged := maps.Clone(stored[id])
		if merged == nil {
			merged = make(wire.Row, len(row))
		}
		maps.Copy(merged, row)
		stored[id] = merged
	}
	return nil
}

// Delete removes a row, returning ErrNotFound when it does not exist.
func (m *Memory) Delete(ctx context.Context, table model.Table, id string) error {
	if err := m.wait(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++

	if m.DeleteFn != nil {
		if err := m.DeleteFn(table, id); err != nil {
			return err
		}
	}

	stored := m.table(table)
	if _, ok := stored[id]; !ok {
		return fmt.Errorf("%s %s: %w", table, id, ErrNotFound)
	}
	delete(stored, id)
	return nil
}

// SelectAll returns copies of every row owned by userID, ordered by id.
// An empty userID returns every row.
func (m *Memory) SelectAll(ctx context.Context, table model.Table, userID string) ([]wire.Row, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.SelectCalls++

	if m.SelectFn != nil {
		if err := m.SelectFn(table); err != nil {
			return nil, err
		}
	}

	var out []wire.Row
	for _, id := range slices.Sorted(maps.Keys(m.table(table))) {
		row := m.tables[table][id]
		if userID != "" && row[wire.UserColumn] != userID {
			continue
		}
		out = append(out, maps.Clone(row))
	}
	return out, nil
}

// Ping implements service.Pinger.
func (m *Memory) Ping(ctx context.Context) error {
	m.mu.Lock()
	fn := m.PingFn
	m.mu.Unlock()

	if fn != nil {
		return fn()
	}
	return ctx.Err()
}

// Seed stores rows directly, bypassing failure injection and call tracking.
func (m *Memory) Seed(table model.Table, rows ...wire.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := m.table(table)
	for _, row := range rows {
		if id, ok := row.ID(); ok {
			stored[id] = maps.Clone(row)
		}
	}
}

// Row returns a copy of one stored row.
func (m *Memory) Row(table model.Table, id string) (wire.Row, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.table(table)[id]
	return maps.Clone(row), ok
}

// IDs returns the stored ids of a table in order.
func (m *Memory) IDs(table model.Table) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.table(table)))
}

// Reset clears all call tracking.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls = 0
	m.DeleteCalls = 0
	m.SelectCalls = 0
}

// Calls returns the upsert, delete and select call counts.
func (m *Memory) Calls() (upserts, deletes, selects int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.UpsertCalls, m.DeleteCalls, m.SelectCalls
}
