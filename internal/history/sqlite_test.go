package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSQLiteStoreAppendAndRecent(t *testing.T) {
	store, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	at := time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC)
	require.NoError(t, store.Append(ctx,
		Entry{RunID: "r1", Kind: KindDecision, Subject: "daniel", Rule: "Block Daniel", State: "enabled", Reason: "incomplete_tasks", Applied: true, At: at},
		Entry{RunID: "r1", Kind: KindScheduledAction, Subject: "disable_allow_sophie_at_time", Rule: "Allow Sophie", State: "failed", Error: "boom", At: at},
	))
	require.NoError(t, store.Append(ctx,
		Entry{RunID: "r2", Kind: KindDecision, Subject: "daniel", Rule: "Block Daniel", State: "disabled", Reason: "tasks_complete", Applied: true, At: at.Add(5 * time.Minute)},
	))

	recent, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "r2", recent[0].RunID)
	require.Equal(t, "tasks_complete", recent[0].Reason)
	require.Equal(t, KindScheduledAction, recent[1].Kind)
	require.Equal(t, "boom", recent[1].Error)
	require.False(t, recent[1].Applied)
	require.True(t, recent[0].At.Equal(at.Add(5*time.Minute)))

	run, err := store.ForRun(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, run, 2)
	require.Equal(t, "daniel", run[0].Subject)
	require.True(t, run[0].Applied)
}

func TestSQLiteStorePrune(t *testing.T) {
	store, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Append(ctx,
		Entry{RunID: "old", Kind: KindDecision, Subject: "a", At: old},
		Entry{RunID: "new", Kind: KindDecision, Subject: "a", At: old.AddDate(0, 2, 0)},
	))

	n, err := store.Prune(ctx, old.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	left, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, left, 1)
	require.Equal(t, "new", left[0].RunID)
}

func TestSQLiteStorePersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	ctx := context.Background()

	store, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, Entry{RunID: "r", Kind: KindDecision, Subject: "kim"}))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	entries, err := reopened.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.False(t, entries[0].At.IsZero())
}

func TestAppendNothingIsNoop(t *testing.T) {
	store, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	require.NoError(t, store.Append(context.Background()))
	require.NoError(t, NoopJournal{}.Append(context.Background(), Entry{}))
}

var _ Journal = (*SQLiteStore)(nil)
