package storage_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listingexport/internal/etl"
	"listingexport/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// RunStore
// ─────────────────────────────────────────────────────────────

func newStore(t *testing.T) *storage.RunStore {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return storage.NewRunStore(db)
}

func runLog(job string, started time.Time, status string) *etl.RunLog {
	return &etl.RunLog{
		JobName:     job,
		Source:      "feed.xml",
		Output:      "out.csv",
		StartedAt:   started,
		FinishedAt:  started.Add(1500 * time.Millisecond),
		Status:      status,
		RowsRead:    3,
		RowsWritten: 3,
	}
}

func TestRunStore_CreateAssignsID(t *testing.T) {
	store := newStore(t)

	l := runLog("listings", time.Now(), etl.StatusSuccess)
	require.NoError(t, store.CreateRunLog(l))
	assert.NotEmpty(t, l.ID)

	kept := runLog("listings", time.Now(), etl.StatusSuccess)
	kept.ID = "run-1"
	require.NoError(t, store.CreateRunLog(kept))
	assert.Equal(t, "run-1", kept.ID)
}

func TestRunStore_DuplicateID(t *testing.T) {
	store := newStore(t)

	l := runLog("listings", time.Now(), etl.StatusSuccess)
	l.ID = "same"
	require.NoError(t, store.CreateRunLog(l))
	assert.Error(t, store.CreateRunLog(l))
}

func TestRunStore_ListNewestFirst(t *testing.T) {
	store := newStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.CreateRunLog(runLog("listings", base.Add(time.Duration(i)*time.Hour), etl.StatusSuccess)))
	}
	failed := runLog("other", base.Add(10*time.Hour), etl.StatusError)
	failed.Error = "extract: parse document: unexpected EOF"
	require.NoError(t, store.CreateRunLog(failed))

	logs, err := store.ListRunLogs("listings", 10)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.True(t, logs[0].StartedAt.Equal(base.Add(2*time.Hour)))
	assert.True(t, logs[2].StartedAt.Equal(base))
	assert.Equal(t, 3, logs[0].RowsWritten)
	assert.Equal(t, "feed.xml", logs[0].Source)

	all, err := store.ListRunLogs("", 10)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "other", all[0].JobName)
	assert.Equal(t, failed.Error, all[0].Error)
	assert.Equal(t, etl.StatusError, all[0].Status)
}

func TestRunStore_ListLimit(t *testing.T) {
	store := newStore(t)
	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.CreateRunLog(runLog("listings", base.Add(time.Duration(i)*time.Minute), etl.StatusSuccess)))
	}

	logs, err := store.ListRunLogs("listings", 2)
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	logs, err = store.ListRunLogs("listings", 0)
	require.NoError(t, err)
	assert.Len(t, logs, 5, "non-positive limit falls back to the default")
}

func TestRunStore_ListEmpty(t *testing.T) {
	logs, err := newStore(t).ListRunLogs("listings", 10)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestNew_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	db, err := storage.New(path)
	require.NoError(t, err)
	require.NoError(t, storage.NewRunStore(db).CreateRunLog(runLog("listings", time.Now(), etl.StatusSuccess)))
	require.NoError(t, db.Close())

	db, err = storage.New(path)
	require.NoError(t, err)
	defer db.Close()
	logs, err := storage.NewRunStore(db).ListRunLogs("", 10)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}
