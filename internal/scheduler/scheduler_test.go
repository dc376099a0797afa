package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lan-dot-party/relkit/internal/config"
	"github.com/lan-dot-party/relkit/internal/execx"
	"github.com/lan-dot-party/relkit/internal/nightly"
	"github.com/lan-dot-party/relkit/internal/storage"
)

const dispatch = "gh workflow run nightly-release.yml -f version_tag=1.2.0-nightly.20250307"

func newJob(t *testing.T, fake *execx.Fake, storeContent string) (*NightlyJob, storage.Storage) {
	t.Helper()
	dir := t.TempDir()
	storePath := filepath.Join(dir, "version.json")
	if storeContent != "" {
		require.NoError(t, os.WriteFile(storePath, []byte(storeContent), 0644))
	}

	store, err := storage.NewSQLiteStorage(config.SQLiteConfig{Path: filepath.Join(dir, "history.db")})
	require.NoError(t, err)
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	trigger := nightly.NewTrigger(nightly.Options{
		CLI:       "gh",
		Workflow:  "nightly-release.yml",
		Input:     "version_tag",
		AssumeYes: true,
	}, fake, nil, nil, nil)

	now := func() time.Time { return time.Date(2025, 3, 7, 2, 0, 0, 0, time.UTC) }
	releaser := &nightly.Releaser{
		StorePath:  storePath,
		StoreKey:   "version",
		Identifier: nightly.DateIdentifier(now),
		Trigger:    trigger,
	}
	revision := func(context.Context) (string, error) { return "abc1234", nil }

	job := NewNightlyJob(releaser, store, revision, nil)
	job.now = now
	return job, store
}

func TestNightlyJobTriggersAndRecords(t *testing.T) {
	fake := execx.NewFake().On("gh --version", "gh version 2.62.0").On(dispatch, "")
	job, store := newJob(t, fake, `{"version": "1.2.0"}`)

	require.NoError(t, job.RunWithContext(context.Background()))

	events, err := store.ListEvents(context.Background(), storage.EventFilter{Kind: storage.KindNightly})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "1.2.0-nightly.20250307", events[0].Tag)
	assert.Equal(t, "1.2.0", events[0].Version)
	assert.Equal(t, "triggered", events[0].Status)
	assert.Equal(t, "abc1234", events[0].Revision)
}

func TestNightlyJobSkipsAlreadyTriggeredTag(t *testing.T) {
	fake := execx.NewFake().On("gh --version", "gh version 2.62.0").On(dispatch, "")
	job, store := newJob(t, fake, `{"version": "1.2.0"}`)

	require.NoError(t, job.RunWithContext(context.Background()))
	require.NoError(t, job.RunWithContext(context.Background()))

	assert.Equal(t, []string{"gh --version", dispatch}, fake.Calls())
	events, err := store.ListEvents(context.Background(), storage.EventFilter{})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestNightlyJobRecordsFailure(t *testing.T) {
	fake := execx.NewFake().On("gh --version", "gh version 2.62.0").Fail(dispatch, 1, "HTTP 404: workflow not found")
	job, store := newJob(t, fake, `{"version": "1.2.0"}`)

	err := job.RunWithContext(context.Background())
	require.Error(t, err)

	events, err := store.ListEvents(context.Background(), storage.EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "failed", events[0].Status)
	assert.Contains(t, events[0].Detail, "HTTP 404")
}

func TestNightlyJobMissingStore(t *testing.T) {
	job, store := newJob(t, execx.NewFake(), "")

	require.Error(t, job.RunWithContext(context.Background()))

	events, err := store.ListEvents(context.Background(), storage.EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Empty(t, events[0].Tag)
}

func TestSchedulerLifecycle(t *testing.T) {
	job, _ := newJob(t, execx.NewFake(), `{"version": "1.2.0"}`)

	_, err := NewScheduler(nil, job, nil)
	assert.Error(t, err)

	disabled, err := NewScheduler(&config.SchedulerConfig{Enabled: false, Schedule: "0 2 * * *"}, job, nil)
	require.NoError(t, err)
	require.NoError(t, disabled.Start())
	assert.False(t, disabled.IsRunning())

	bad, err := NewScheduler(&config.SchedulerConfig{Enabled: true, Schedule: "every night"}, job, nil)
	require.NoError(t, err)
	assert.Error(t, bad.Start())

	s, err := NewScheduler(&config.SchedulerConfig{Enabled: true, Schedule: "0 2 * * *"}, job, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start())
	s.Stop()
	assert.False(t, s.IsRunning())
}
