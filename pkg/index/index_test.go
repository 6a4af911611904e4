package index_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/mtsoor/pkg/config"
	"github.com/ethpandaops/mtsoor/pkg/index"
)

func setupTestStore(t *testing.T) index.Store {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteDatabaseConfig{Path: ":memory:"},
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	s := index.NewStore(log, cfg)
	require.NoError(t, s.Start(context.Background()))

	t.Cleanup(func() { _ = s.Stop() })

	return s
}

func TestStore_UpsertAndListRuns(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().Unix()

	older := &index.Run{
		RunID:       "run-1",
		PlanFile:    "/plans/regression.xml",
		Status:      "success",
		Timestamp:   now,
		TestsTotal:  4,
		TestsPassed: 4,
		Percentage:  100,
	}
	newer := &index.Run{
		RunID:     "run-2",
		PlanFile:  "/plans/calls.xml",
		Status:    "run-error",
		Timestamp: now + 10,
		ExitCode:  1,
	}

	require.NoError(t, s.UpsertRun(ctx, older))
	require.NoError(t, s.UpsertRun(ctx, newer))

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "run-2", runs[0].RunID, "newest run first")
	assert.Equal(t, "run-1", runs[1].RunID)
}

func TestStore_UpsertIsIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	run := &index.Run{RunID: "run-1", Status: "run-error"}
	require.NoError(t, s.UpsertRun(ctx, run))

	// Same run reindexed with a final status.
	update := &index.Run{RunID: "run-1", Status: "success", TestsTotal: 2, TestsPassed: 2}
	require.NoError(t, s.UpsertRun(ctx, update))

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	assert.Equal(t, "success", runs[0].Status)
	assert.Equal(t, 2, runs[0].TestsTotal)
}

func TestStore_GetRun(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertRun(ctx, &index.Run{
		RunID:      "run-1",
		Status:     "success",
		Percentage: 50,
	}))

	run, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.InDelta(t, 50.0, run.Percentage, 0.001)

	_, err = s.GetRun(ctx, "absent")
	require.ErrorIs(t, err, index.ErrRunNotFound)
}

func TestStore_ListRunIDs(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertRun(ctx, &index.Run{RunID: "a"}))
	require.NoError(t, s.UpsertRun(ctx, &index.Run{RunID: "b"}))

	ids, err := s.ListRunIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestStore_UnsupportedDriver(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	s := index.NewStore(log, &config.DatabaseConfig{Driver: "oracle"})
	require.Error(t, s.Start(context.Background()))
}
