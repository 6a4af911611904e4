// Package indexer keeps the run index in sync with the run sources:
// it periodically discovers run directories, reads their result files,
// and upserts them into the index store.
package indexer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ethpandaops/mtsoor/pkg/config"
	"github.com/ethpandaops/mtsoor/pkg/index"
	"github.com/ethpandaops/mtsoor/pkg/runner"
)

// defaultConcurrency is the number of runs indexed in parallel when
// no explicit concurrency value is configured.
const defaultConcurrency = 4

// Indexer is a background service that periodically scans the run
// sources and upserts discovered runs into the index store.
type Indexer interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Indexer = (*indexer)(nil)

type indexer struct {
	log         logrus.FieldLogger
	store       index.Store
	sources     []Source
	interval    time.Duration
	concurrency int
	reindex     bool
	done        chan struct{}
	wg          sync.WaitGroup
	dbMu        sync.Mutex // serializes DB writes to avoid SQLite contention
}

// NewIndexer creates a new background indexer over the given sources.
func NewIndexer(
	log logrus.FieldLogger,
	store index.Store,
	sources []Source,
	cfg *config.IndexingConfig,
) (Indexer, error) {
	intervalStr := cfg.Interval
	if intervalStr == "" {
		intervalStr = config.DefaultIndexInterval
	}

	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("parsing indexing interval: %w", err)
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &indexer{
		log:         log.WithField("component", "indexer"),
		store:       store,
		sources:     sources,
		interval:    interval,
		concurrency: concurrency,
		reindex:     cfg.Reindex,
		done:        make(chan struct{}),
	}, nil
}

// Start launches a background goroutine that runs an immediate indexing
// pass and then ticks at the configured interval. The first pass is
// asynchronous so the caller (the API server) is not blocked.
func (idx *indexer) Start(ctx context.Context) error {
	idx.log.WithFields(logrus.Fields{
		"interval":    idx.interval.String(),
		"concurrency": idx.concurrency,
		"sources":     len(idx.sources),
	}).Info("Starting indexer")

	idx.wg.Add(1)

	go func() {
		defer idx.wg.Done()

		// Run one pass immediately.
		idx.runPass(ctx)

		ticker := time.NewTicker(idx.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				idx.runPass(ctx)
			case <-idx.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop signals the indexer goroutine to stop and waits for it.
func (idx *indexer) Stop() error {
	close(idx.done)
	idx.wg.Wait()

	idx.log.Info("Indexer stopped")

	return nil
}

// runPass executes one full indexing pass across all sources.
func (idx *indexer) runPass(ctx context.Context) {
	start := time.Now()

	idx.log.WithField("sources", len(idx.sources)).
		Info("Indexing pass started")

	for _, src := range idx.sources {
		select {
		case <-ctx.Done():
			return
		case <-idx.done:
			return
		default:
		}

		if err := idx.indexSource(ctx, src); err != nil {
			idx.log.WithError(err).
				WithField("source", src.Name()).
				Warn("Indexing pass failed for source")
		}
	}

	idx.log.WithField("duration", time.Since(start).Round(time.Millisecond)).
		Info("Indexing pass completed")
}

// indexSource performs incremental indexing for a single source: run
// directories whose run IDs are already indexed are skipped unless
// reindexing is forced. Discovered runs are processed by a bounded
// worker pool.
func (idx *indexer) indexSource(ctx context.Context, src Source) error {
	dirs, err := src.ListRunDirs(ctx)
	if err != nil {
		return fmt.Errorf("listing source run directories: %w", err)
	}

	indexedIDs, err := idx.store.ListRunIDs(ctx)
	if err != nil {
		return fmt.Errorf("listing indexed run IDs: %w", err)
	}

	indexedSet := make(map[string]struct{}, len(indexedIDs))
	for _, id := range indexedIDs {
		indexedSet[id] = struct{}{}
	}

	type runTask struct {
		dir            string
		alreadyIndexed bool
	}

	var tasks []runTask

	for _, dir := range dirs {
		_, alreadyIndexed := indexedSet[runIDFromDir(dir)]

		if alreadyIndexed && !idx.reindex {
			continue
		}

		tasks = append(tasks, runTask{
			dir:            dir,
			alreadyIndexed: alreadyIndexed,
		})
	}

	srcLog := idx.log.WithField("source", src.Name())

	srcLog.WithFields(logrus.Fields{
		"source_runs":  len(dirs),
		"indexed_runs": len(indexedIDs),
		"new_runs":     len(tasks),
	}).Info("Scanning source")

	if len(tasks) == 0 {
		return nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(idx.concurrency)

	var indexed atomic.Int64

	for _, task := range tasks {
		g.Go(func() error {
			// Check for cancellation before starting work.
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			case <-idx.done:
				return nil
			default:
			}

			ok, err := idx.indexRun(gCtx, src, task.dir, task.alreadyIndexed)
			if err != nil {
				srcLog.WithError(err).
					WithField("run_dir", task.dir).
					Warn("Failed to index run")

				return nil //nolint:nilerr // log and continue
			}

			if !ok {
				return nil
			}

			action := "indexed"
			if task.alreadyIndexed {
				action = "reindexed"
			}

			srcLog.WithField("run_dir", task.dir).
				WithField("action", action).
				Info("Indexed run")

			indexed.Add(1)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("indexing runs: %w", err)
	}

	if count := indexed.Load(); count > 0 {
		srcLog.WithField("count", count).
			Info("Source indexing complete")
	}

	return nil
}

// indexRun reads the run's result file, builds the index record, and
// upserts it. A run directory without a result file is not an error;
// the run is still executing and is picked up on a later pass.
func (idx *indexer) indexRun(
	ctx context.Context, src Source, runDir string, isReindex bool,
) (bool, error) {
	data, err := src.GetRunFile(ctx, runDir, runner.ResultFileName)
	if err != nil {
		return false, fmt.Errorf("reading result file: %w", err)
	}

	if data == nil {
		idx.log.WithField("run_dir", runDir).
			Debug("Run has no result file yet, skipping")

		return false, nil
	}

	run, err := runner.BuildIndexRunFromData(data)
	if err != nil {
		return false, fmt.Errorf("building index record: %w", err)
	}

	if isReindex {
		now := time.Now().UTC()
		run.ReindexedAt = &now
	}

	// Serialize DB writes to avoid SQLite BUSY errors under concurrency.
	idx.dbMu.Lock()
	defer idx.dbMu.Unlock()

	if err := idx.store.UpsertRun(ctx, run); err != nil {
		return false, fmt.Errorf("upserting run: %w", err)
	}

	return true, nil
}

// runIDFromDir extracts the run ID from a run directory name of the
// form "<timestamp>_<run-id>". Names without the separator are used
// verbatim.
func runIDFromDir(dir string) string {
	if i := strings.LastIndex(dir, "_"); i >= 0 && i+1 < len(dir) {
		return dir[i+1:]
	}

	return dir
}
