package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secchub-loadtest/internal/metrics"
	"secchub-loadtest/internal/runstate"
	"secchub-loadtest/internal/scenario"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleResult(runID string, start time.Time, passed bool) *scenario.Result {
	return &scenario.Result{
		RunID:          runID,
		ScenarioName:   "load",
		BaseURL:        "http://localhost:8080",
		StartTime:      start,
		EndTime:        start.Add(85 * time.Second),
		PeakVUs:        50,
		Iterations:     metrics.IterationSnapshot{Total: 1200, Completed: 1195, Aborted: 5},
		HTTPRequests:   9000,
		HTTPFailedRate: 0.01,
		ErrorRate:      0.02,
		HTTPDuration:   metrics.TrendStats{P95: 420.5, P99: 910},
		Created: []runstate.CategoryCount{
			{Category: runstate.Courses, Count: 40},
			{Category: runstate.Sections, Count: 12},
		},
		Thresholds: []metrics.ThresholdResult{{Name: "errors: rate<0.05", Passed: passed}},
	}
}

func TestFromResult(t *testing.T) {
	start := time.Now()
	run := FromResult(sampleResult("r1", start, false))

	assert.Equal(t, "r1", run.RunID)
	assert.Equal(t, "load", run.Scenario)
	assert.Equal(t, uint64(1200), run.Iterations)
	assert.Equal(t, uint64(5), run.Aborted)
	assert.Equal(t, 420.5, run.P95)
	assert.False(t, run.Passed)
	assert.Equal(t, map[string]int{"courses": 40, "sections": 12}, run.Created)
	assert.Equal(t, 85*time.Second, run.Duration())
}

func TestSaveAndGet(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	start := time.UnixMilli(time.Now().UnixMilli())

	run := FromResult(sampleResult("r1", start, true))
	require.NoError(t, store.Save(ctx, run))
	assert.NotZero(t, run.ID)

	got, err := store.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "r1", got.RunID)
	assert.Equal(t, "http://localhost:8080", got.BaseURL)
	assert.True(t, got.StartedAt.Equal(start))
	assert.Equal(t, 50, got.PeakVUs)
	assert.Equal(t, uint64(9000), got.HTTPRequests)
	assert.InDelta(t, 0.02, got.ErrorRate, 1e-9)
	assert.True(t, got.Passed)
	assert.Equal(t, 40, got.Created["courses"])
}

func TestGetNotFound(t *testing.T) {
	store := openStore(t)
	_, err := store.Get(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveDuplicateRunID(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, FromResult(sampleResult("dup", time.Now(), true))))
	assert.Error(t, store.Save(ctx, FromResult(sampleResult("dup", time.Now(), true))))
}

func TestListNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Save(ctx, FromResult(sampleResult(id, base.Add(time.Duration(i)*time.Minute), true))))
	}

	runs, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "c", runs[0].RunID)
	assert.Equal(t, "a", runs[2].RunID)

	runs, err = store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[1].RunID)
}

func TestListEmpty(t *testing.T) {
	runs, err := openStore(t).List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestCreatedTotal(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, FromResult(sampleResult("a", time.Now(), true))))
	require.NoError(t, store.Save(ctx, FromResult(sampleResult("b", time.Now(), false))))

	totals, err := store.CreatedTotal(ctx)
	require.NoError(t, err)
	require.Len(t, totals, len(runstate.Categories()))
	assert.Equal(t, runstate.CategoryCount{Category: runstate.Courses, Count: 80}, totals[0])
	assert.Equal(t, runstate.CategoryCount{Category: runstate.Sections, Count: 24}, totals[5])
	assert.Equal(t, 0, totals[1].Count)
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, FromResult(sampleResult("persisted", time.Now(), true))))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "persisted", runs[0].RunID)
}
