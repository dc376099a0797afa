package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lan-dot-party/relkit/internal/config"
)

func newTestStore(t *testing.T) Storage {
	t.Helper()
	cfg := config.HistoryConfig{
		Type:   "sqlite",
		SQLite: config.SQLiteConfig{Path: ".relkit/history.db"},
	}
	root := t.TempDir()
	store, err := NewStorage(cfg, root)
	require.NoError(t, err)
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	assert.FileExists(t, filepath.Join(root, ".relkit", "history.db"))
	return store
}

func saveAt(t *testing.T, store Storage, kind Kind, status string, at time.Time) *Event {
	t.Helper()
	e := NewEvent(kind)
	e.Status = status
	e.CreatedAt = at
	require.NoError(t, store.SaveEvent(context.Background(), e))
	return e
}

func TestSaveAndGetEvent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := NewEvent(KindBump)
	e.Directive = "patch"
	e.Previous = "1.0.9"
	e.Version = "1.0.10"
	e.Status = StatusComplete
	require.NoError(t, store.SaveEvent(ctx, e))
	require.NotZero(t, e.ID)

	got, err := store.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.RunID, got.RunID)
	assert.Equal(t, KindBump, got.Kind)
	assert.Equal(t, "1.0.10", got.Version)
	assert.Equal(t, "1.0.9", got.Previous)
	assert.WithinDuration(t, e.CreatedAt, got.CreatedAt, time.Second)
}

func TestGetEventNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetEvent(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListEventsFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	saveAt(t, store, KindBump, StatusComplete, now.Add(-3*time.Hour))
	saveAt(t, store, KindNightly, "triggered", now.Add(-2*time.Hour))
	saveAt(t, store, KindBump, StatusIncomplete, now.Add(-1*time.Hour))

	all, err := store.ListEvents(ctx, EventFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, StatusIncomplete, all[0].Status, "newest first")

	bumps, err := store.ListEvents(ctx, EventFilter{Kind: KindBump})
	require.NoError(t, err)
	assert.Len(t, bumps, 2)

	limited, err := store.ListEvents(ctx, EventFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, KindNightly, limited[0].Kind)

	offsetOnly, err := store.ListEvents(ctx, EventFilter{Offset: 2})
	require.NoError(t, err)
	assert.Len(t, offsetOnly, 1)
}

func TestLatestEvents(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	saveAt(t, store, KindBump, StatusComplete, now.Add(-3*time.Hour))
	saveAt(t, store, KindNightly, "cancelled", now.Add(-2*time.Hour))
	last := saveAt(t, store, KindBump, StatusIncomplete, now.Add(-1*time.Hour))

	latest, err := store.LatestEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, KindBump, latest[0].Kind)
	assert.Equal(t, last.ID, latest[0].ID)
	assert.Equal(t, KindNightly, latest[1].Kind)
}

func TestDeleteOlderThan(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	saveAt(t, store, KindPrune, StatusComplete, now.Add(-48*time.Hour))
	saveAt(t, store, KindPrune, StatusNotFound, now.Add(-time.Minute))

	n, err := store.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rest, err := store.ListEvents(ctx, EventFilter{})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, StatusNotFound, rest[0].Status)
}

func TestRecordWithoutStore(t *testing.T) {
	// a nil store is a no-op
	Record(context.Background(), nil, NewEvent(KindBump), nil)
}

func TestEventIsFailure(t *testing.T) {
	e := NewEvent(KindNightly)
	e.Status = "triggered"
	assert.False(t, e.IsFailure())
	e.Status = "dependency_missing"
	assert.True(t, e.IsFailure())
}

func TestNewStorageUnknownType(t *testing.T) {
	_, err := NewStorage(config.HistoryConfig{Type: "mysql"}, t.TempDir())
	assert.Error(t, err)
}
