// Package runner orchestrates complete MTS runs: plan validation,
// engine launch, report parsing, and run artifact persistence.
package runner

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/mtsoor/pkg/config"
	"github.com/ethpandaops/mtsoor/pkg/engine"
	"github.com/ethpandaops/mtsoor/pkg/fsutil"
	"github.com/ethpandaops/mtsoor/pkg/index"
	"github.com/ethpandaops/mtsoor/pkg/report"
	"github.com/ethpandaops/mtsoor/pkg/testplan"
	"github.com/ethpandaops/mtsoor/pkg/upload"
)

// Status is the terminal state of one run.
type Status string

const (
	// StatusSuccess means the engine ran and its report was parsed.
	// A report with zero classifiable rows still counts as success.
	StatusSuccess Status = "success"
	// StatusRunError covers every failure between parameter validation
	// and report parsing.
	StatusRunError Status = "run-error"
	// StatusSkipped means the engine installation is unusable and the
	// run never started.
	StatusSkipped Status = "skipped"
)

// Params are the caller-supplied inputs of one run.
type Params struct {
	// PlanFile is the XML test plan handed to the engine. Required.
	PlanFile string
	// LogLevel overrides the configured engine log level.
	LogLevel string
	// StoreMethod overrides the configured engine log storage method.
	StoreMethod string
	// TestCases restricts the run to a subset of the plan's cases.
	// Every name must be declared in the plan. Empty runs everything.
	TestCases []string
}

// Config for the runner.
type Config struct {
	// ResultsDir is the root under which per-run artifact directories
	// are created.
	ResultsDir string
	// EngineLogsToStdout mirrors the engine's console output to stdout
	// in addition to the per-run console.log.
	EngineLogsToStdout bool
	// TableWriter receives the rendered per-case result table.
	// Defaults to stdout.
	TableWriter io.Writer
}

// Runner executes MTS test plans and persists their results.
type Runner interface {
	Start(ctx context.Context) error
	Stop() error

	// RunPlan runs a single test plan through its full lifecycle and
	// returns the finalized result. Failures are recorded in the
	// result, never propagated.
	RunPlan(ctx context.Context, params *Params) *Result
}

// NewRunner creates a new runner. The index store and uploader are
// optional; when nil the corresponding finalization step is skipped.
func NewRunner(
	log logrus.FieldLogger,
	cfg *Config,
	engineCfg *config.EngineConfig,
	store index.Store,
	uploader upload.Uploader,
) Runner {
	if cfg.TableWriter == nil {
		cfg.TableWriter = os.Stdout
	}

	return &runner{
		log:       log.WithField("component", "runner"),
		cfg:       cfg,
		engineCfg: engineCfg,
		parser:    report.NewParser(log),
		store:     store,
		uploader:  uploader,
	}
}

type runner struct {
	log       logrus.FieldLogger
	cfg       *Config
	engineCfg *config.EngineConfig
	parser    report.Parser
	store     index.Store
	uploader  upload.Uploader
}

// Ensure interface compliance.
var _ Runner = (*runner)(nil)

// Start prepares the results directory and verifies the upload target
// when one is configured.
func (r *runner) Start(ctx context.Context) error {
	if err := fsutil.EnsureDir(r.cfg.ResultsDir, 0o755); err != nil {
		return fmt.Errorf("creating results directory: %w", err)
	}

	if r.uploader != nil {
		if err := r.uploader.Preflight(ctx); err != nil {
			return fmt.Errorf("upload preflight: %w", err)
		}
	}

	r.log.Debug("Runner started")

	return nil
}

// Stop cleans up the runner.
func (r *runner) Stop() error {
	r.log.Debug("Runner stopped")

	return nil
}

// RunPlan runs one test plan. Every path finalizes the result: the end
// timestamp is always set and result.json is always written into the
// run directory before the result is returned.
func (r *runner) RunPlan(ctx context.Context, params *Params) *Result {
	runID := generateShortID()
	result := &Result{
		RunID:     runID,
		PlanFile:  params.PlanFile,
		TestCases: params.TestCases,
		Status:    StatusRunError,
		Timestamp: time.Now().Unix(),
	}

	log := r.log.WithFields(logrus.Fields{
		"run_id": runID,
		"plan":   params.PlanFile,
	})

	runDir := filepath.Join(
		r.cfg.ResultsDir,
		fmt.Sprintf("%d_%s", result.Timestamp, runID),
	)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		result.Error = fmt.Sprintf("creating run directory: %v", err)
		result.TimestampEnd = time.Now().Unix()

		log.WithError(err).Error("Failed to create run directory")

		return result
	}

	defer r.finalize(result, runDir)

	log.Info("Starting run")

	if params.PlanFile == "" {
		result.ExitCode = engine.ExitMissingParam
		result.Error = engine.ErrMissingPlanFile.Error()

		log.Error("Missing mandatory test plan file")

		return result
	}

	consoleFile, err := os.Create(filepath.Join(runDir, consoleLogName))
	if err != nil {
		result.Error = fmt.Sprintf("creating console log: %v", err)

		log.WithError(err).Error("Failed to create console log")

		return result
	}
	defer func() { _ = consoleFile.Close() }()

	result.ConsoleLog = consoleLogName

	var console io.Writer = consoleFile
	if r.cfg.EngineLogsToStdout {
		console = io.MultiWriter(
			consoleFile,
			&prefixedWriter{prefix: "[mts] ", writer: os.Stdout},
		)
	}

	eng, err := engine.New(r.log, r.engineCfg, engine.Options{
		StatsDir:    filepath.Join(runDir, "stats"),
		LogsDir:     filepath.Join(runDir, "log"),
		LogLevel:    params.LogLevel,
		StoreMethod: params.StoreMethod,
		Launcher:    engine.NewShellLauncher(r.log, console),
	})
	if err != nil {
		result.Error = fmt.Sprintf("creating engine: %v", err)

		return result
	}

	if err := eng.CheckRequirements(); err != nil {
		result.Status = StatusSkipped
		result.Error = err.Error()

		log.WithError(err).Warn("Engine installation unusable, skipping run")

		return result
	}

	def, err := testplan.Parse(params.PlanFile)
	if err != nil {
		result.Error = err.Error()

		log.WithError(err).Error("Failed to parse test plan")

		return result
	}

	if len(def.CaseNames()) == 0 {
		result.Error = "no test case declared in the plan"

		log.Warn("No test case declared in the plan")

		return result
	}

	code, err := eng.Run(ctx, params.PlanFile, params.TestCases)
	result.ExitCode = code

	if err != nil {
		result.Error = err.Error()

		log.WithError(err).Error("Engine run failed")

		return result
	}

	if code != 0 {
		result.Error = fmt.Sprintf("engine exited with code %d", code)

		log.WithField("exit_code", code).Error("Engine exited with a failure")

		return result
	}

	summary, err := r.parser.Parse(r.engineCfg.AbsReportPath())
	if err != nil {
		result.Error = err.Error()

		log.WithError(err).Error("Failed to parse engine report")

		return result
	}

	result.Summary = summary
	result.Status = StatusSuccess

	report.RenderTable(r.cfg.TableWriter, summary)

	if err := report.WriteSummary(filepath.Join(runDir, summaryName), summary); err != nil {
		log.WithError(err).Warn("Failed to write summary")
	}

	log.WithFields(logrus.Fields{
		"total":      summary.Total,
		"passed":     summary.Passed,
		"failed":     summary.Failed,
		"percentage": summary.Percentage,
	}).Info("Run finished")

	return result
}

// finalize stamps the end time, persists result.json, and performs the
// configured index and upload steps. Index and upload failures are
// logged but never change the run outcome. A background context is
// used so finalization survives cancellation of the run context.
func (r *runner) finalize(result *Result, runDir string) {
	result.TimestampEnd = time.Now().Unix()

	if err := WriteResult(filepath.Join(runDir, resultName), result); err != nil {
		r.log.WithError(err).Warn("Failed to write run result")
	}

	ctx := context.Background()

	if r.store != nil {
		if err := r.store.UpsertRun(ctx, BuildIndexRun(result)); err != nil {
			r.log.WithError(err).WithField("run_id", result.RunID).
				Warn("Failed to index run")
		}
	}

	if r.uploader != nil {
		if err := r.uploader.Upload(ctx, runDir); err != nil {
			r.log.WithError(err).WithField("run_id", result.RunID).
				Warn("Failed to upload run directory")
		}
	}
}

// generateShortID generates a short random hex ID (8 characters).
func generateShortID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		// Fallback to timestamp-based ID if crypto/rand fails.
		return fmt.Sprintf("%08x", time.Now().UnixNano()&0xFFFFFFFF)
	}

	return hex.EncodeToString(b)
}
