package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/finsync/internal/model"
)

func receive(t *testing.T, c <-chan model.Change) model.Change {
	t.Helper()
	select {
	case change, ok := <-c:
		require.True(t, ok, "subscription closed")
		return change
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
		return model.Change{}
	}
}

func TestHub_FiltersByTable(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	accounts := hub.Subscribe(model.TableAccounts)
	all := hub.Subscribe()
	assert.Equal(t, 2, hub.Len())

	hub.Publish(model.Change{Table: model.TableGoals, At: time.Now()})
	hub.Publish(model.Change{Table: model.TableAccounts, At: time.Now()})

	assert.Equal(t, model.TableAccounts, receive(t, accounts.C).Table)
	assert.Equal(t, model.TableGoals, receive(t, all.C).Table)
	assert.Equal(t, model.TableAccounts, receive(t, all.C).Table)

	accounts.Close()
	accounts.Close()
	assert.Equal(t, 1, hub.Len())
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	sub := hub.Subscribe()
	for range subscriptionBuffer * 4 {
		hub.Publish(model.Change{Table: model.TableTags})
	}
	assert.Len(t, sub.C, subscriptionBuffer)
}

func TestHub_CloseEndsSubscriptions(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe()
	hub.Close()

	_, ok := <-sub.C
	assert.False(t, ok)

	late := hub.Subscribe()
	_, ok = <-late.C
	assert.False(t, ok)
	late.Close()
	sub.Close()
}

func TestWatch_ReemitsAfterCommit(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, Put(ctx, store, testAccount("acc-1", 100)))

	views, err := Watch[model.Account](ctx, store)
	require.NoError(t, err)

	initial := <-views
	require.Len(t, initial, 1)

	require.NoError(t, Put(ctx, store, testAccount("acc-2", 50)))

	select {
	case view := <-views:
		assert.Len(t, view, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not emit after commit")
	}

	cancel()
	for range views {
	}
}

func TestSubscribe_QueueChanges(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	sub := store.Subscribe(QueueTable)
	defer sub.Close()

	_, err := store.Enqueue(ctx, model.TableGoals, "g-1", model.ActionInsert)
	require.NoError(t, err)
	assert.Equal(t, QueueTable, receive(t, sub.C).Table)
}
