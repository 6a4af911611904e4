package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/mtsoor/pkg/config"
	"github.com/ethpandaops/mtsoor/pkg/index"
	"github.com/ethpandaops/mtsoor/pkg/report"
	"github.com/ethpandaops/mtsoor/pkg/runner"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

func newMemoryStore(t *testing.T) index.Store {
	t.Helper()

	store := index.NewStore(testLogger(), &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteDatabaseConfig{Path: ":memory:"},
	})
	require.NoError(t, store.Start(context.Background()))

	t.Cleanup(func() { _ = store.Stop() })

	return store
}

// writeRun creates a run directory with a result.json under root.
func writeRun(t *testing.T, root, dir, runID string, status runner.Status) {
	t.Helper()

	runDir := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(runDir, 0755))

	result := &runner.Result{
		RunID:     runID,
		PlanFile:  "plans/regression.xml",
		Status:    status,
		Timestamp: 100,
		Summary:   &report.Summary{Total: 1, Passed: 1, Percentage: 100},
	}
	require.NoError(t, runner.WriteResult(
		filepath.Join(runDir, runner.ResultFileName), result,
	))
}

func newTestIndexer(t *testing.T, store index.Store, root string, reindex bool) *indexer {
	t.Helper()

	idx, err := NewIndexer(testLogger(), store, []Source{NewLocalSource(root)},
		&config.IndexingConfig{Interval: "1m", Reindex: reindex})
	require.NoError(t, err)

	i, ok := idx.(*indexer)
	require.True(t, ok)

	return i
}

func TestIndexerPassIndexesNewRuns(t *testing.T) {
	root := t.TempDir()
	writeRun(t, root, "100_aaaa1111", "aaaa1111", runner.StatusSuccess)
	writeRun(t, root, "200_bbbb2222", "bbbb2222", runner.StatusRunError)

	// A run still executing has no result file yet.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "300_cccc3333"), 0755))

	store := newMemoryStore(t)
	idx := newTestIndexer(t, store, root, false)

	idx.runPass(context.Background())

	runs, err := store.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	run, err := store.GetRun(context.Background(), "aaaa1111")
	require.NoError(t, err)
	assert.Equal(t, "success", run.Status)
	assert.Equal(t, 1, run.TestsTotal)
	assert.Nil(t, run.ReindexedAt)
}

func TestIndexerPassIsIncremental(t *testing.T) {
	root := t.TempDir()
	writeRun(t, root, "100_aaaa1111", "aaaa1111", runner.StatusSuccess)

	store := newMemoryStore(t)
	idx := newTestIndexer(t, store, root, false)

	idx.runPass(context.Background())
	idx.runPass(context.Background())

	runs, err := store.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Nil(t, runs[0].ReindexedAt)
}

func TestIndexerPicksUpLateResult(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "100_aaaa1111"), 0755))

	store := newMemoryStore(t)
	idx := newTestIndexer(t, store, root, false)

	idx.runPass(context.Background())

	runs, err := store.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)

	// The run finishes and its result appears before the next pass.
	writeRun(t, root, "100_aaaa1111", "aaaa1111", runner.StatusSuccess)

	idx.runPass(context.Background())

	runs, err = store.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestIndexerReindexUpdatesExistingRuns(t *testing.T) {
	root := t.TempDir()
	writeRun(t, root, "100_aaaa1111", "aaaa1111", runner.StatusSuccess)

	store := newMemoryStore(t)

	newTestIndexer(t, store, root, false).runPass(context.Background())
	newTestIndexer(t, store, root, true).runPass(context.Background())

	run, err := store.GetRun(context.Background(), "aaaa1111")
	require.NoError(t, err)
	require.NotNil(t, run.ReindexedAt)
}

func TestNewIndexerRejectsBadInterval(t *testing.T) {
	_, err := NewIndexer(testLogger(), nil, nil,
		&config.IndexingConfig{Interval: "often"})
	assert.Error(t, err)
}

func TestRunIDFromDir(t *testing.T) {
	tests := []struct {
		dir  string
		want string
	}{
		{"1769791126_8cec1fab", "8cec1fab"},
		{"8cec1fab", "8cec1fab"},
		{"a_b_c", "c"},
		{"trailing_", "trailing_"},
	}

	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			assert.Equal(t, tt.want, runIDFromDir(tt.dir))
		})
	}
}
