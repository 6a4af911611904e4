// Package engine drives the installed MTS test engine as a blocking
// subprocess: it prepares fresh output directories, constructs the
// launch command, and reports the engine's exit code.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/mtsoor/pkg/config"
	"github.com/ethpandaops/mtsoor/pkg/fsutil"
	"github.com/ethpandaops/mtsoor/pkg/testplan"
)

// Exit codes for failures detected before the engine launches. The
// engine itself only produces non-negative codes.
const (
	// ExitMissingParam is returned when the plan file parameter is absent.
	ExitMissingParam = -1
	// ExitInvalidSelection is returned when the requested test cases are
	// not declared in the plan.
	ExitInvalidSelection = -3
)

// ErrMissingPlanFile is returned when no test-plan file is supplied.
var ErrMissingPlanFile = errors.New("test plan file is required")

// Engine prepares the MTS output directories and launches test runs.
type Engine interface {
	// CheckRequirements verifies the engine installation is usable.
	CheckRequirements() error

	// PrepareOutputDirs removes the stale report and recreates the
	// stats and logs directories fresh and empty.
	PrepareOutputDirs() error

	// BuildCommand constructs the full shell command launching the
	// engine for the given plan and case selection.
	BuildCommand(planFile string, cases []string) (string, error)

	// Run validates inputs, prepares directories, and launches the
	// engine, returning its exit code. The exit code is only
	// meaningful when the returned error is nil, except for the
	// sentinel values above which accompany their matching errors.
	Run(ctx context.Context, planFile string, cases []string) (int, error)
}

// Options configures a single engine instance for one run.
type Options struct {
	// StatsDir receives the engine's HTML statistics report.
	StatsDir string
	// LogsDir receives the engine's per-test log files.
	LogsDir string
	// LogLevel is the engine's -levelLog flag value. Defaults to the
	// configured engine log level.
	LogLevel string
	// StoreMethod is the engine's -storageLog flag value. Defaults to
	// the configured store method.
	StoreMethod string
	// Launcher executes the constructed command. Defaults to a shell
	// launcher writing to stdout.
	Launcher Launcher
}

// Compile-time interface check.
var _ Engine = (*engine)(nil)

type engine struct {
	log      logrus.FieldLogger
	cfg      *config.EngineConfig
	opts     Options
	launcher Launcher
}

// New creates an Engine for one run against the installed tool.
func New(log logrus.FieldLogger, cfg *config.EngineConfig, opts Options) (Engine, error) {
	if opts.StatsDir == "" || opts.LogsDir == "" {
		return nil, fmt.Errorf("stats and logs directories are required")
	}

	if opts.LogLevel == "" {
		opts.LogLevel = cfg.LogLevel
	}

	if opts.StoreMethod == "" {
		opts.StoreMethod = cfg.StoreMethod
	}

	launcher := opts.Launcher
	if launcher == nil {
		launcher = NewShellLauncher(log, os.Stdout)
	}

	return &engine{
		log:      log.WithField("component", "engine"),
		cfg:      cfg,
		opts:     opts,
		launcher: launcher,
	}, nil
}

// CheckRequirements verifies the engine entry script is installed.
func (e *engine) CheckRequirements() error {
	entry := e.cfg.EntryPath()
	if !fsutil.FileExists(entry) {
		return fmt.Errorf("engine entry script not found at %s", entry)
	}

	return nil
}

// PrepareOutputDirs resets the engine's writable paths so reruns never
// see stale state: the previous report is deleted and both output
// directories are recreated empty.
func (e *engine) PrepareOutputDirs() error {
	if err := fsutil.RemoveIfExists(e.cfg.AbsReportPath()); err != nil {
		return fmt.Errorf("removing stale report: %w", err)
	}

	if err := fsutil.RecreateDir(e.opts.StatsDir, 0o755); err != nil {
		return fmt.Errorf("preparing stats dir: %w", err)
	}

	if err := fsutil.RecreateDir(e.opts.LogsDir, 0o755); err != nil {
		return fmt.Errorf("preparing logs dir: %w", err)
	}

	return nil
}

// BuildCommand constructs the engine invocation. The command changes
// into the executable directory first because the engine resolves its
// own resources relative to it.
func (e *engine) BuildCommand(planFile string, cases []string) (string, error) {
	if planFile == "" {
		return "", ErrMissingPlanFile
	}

	// The engine mishandles a storage path without a trailing
	// separator, writing beside the directory instead of into it.
	logsDir := e.opts.LogsDir
	if !strings.HasSuffix(logsDir, string(os.PathSeparator)) {
		logsDir += string(os.PathSeparator)
	}

	cmd := fmt.Sprintf(
		"cd %s && ./%s %s %s -sequential -levelLog:%s -storageLog:%s"+
			" -config:stats.REPORT_DIRECTORY+%s"+
			" -config:logs.STORAGE_DIRECTORY+%s"+
			" -genReport:true -showRep:false",
		e.cfg.BinPath(),
		e.cfg.EntryScript,
		planFile,
		strings.Join(cases, " "),
		e.opts.LogLevel,
		e.opts.StoreMethod,
		e.opts.StatsDir,
		logsDir,
	)

	return cmd, nil
}

// Run validates the selection, prepares the output directories, and
// launches the engine, blocking until it exits.
func (e *engine) Run(ctx context.Context, planFile string, cases []string) (int, error) {
	if planFile == "" {
		return ExitMissingParam, ErrMissingPlanFile
	}

	if len(cases) > 0 {
		def, err := testplan.Parse(planFile)
		if err != nil {
			return ExitInvalidSelection, fmt.Errorf("validating selection: %w", err)
		}

		universe := def.CaseNames()

		if err := testplan.ValidateSubset(universe, cases); err != nil {
			for _, name := range testplan.MissingCases(universe, cases) {
				e.log.WithField("case", name).Error("Test case not declared in the plan")
			}

			return ExitInvalidSelection, err
		}
	}

	if err := e.PrepareOutputDirs(); err != nil {
		return 0, err
	}

	cmd, err := e.BuildCommand(planFile, cases)
	if err != nil {
		return ExitMissingParam, err
	}

	e.log.WithField("command", cmd).Info("Launching engine")

	code, err := e.launcher.Launch(ctx, cmd)
	if err != nil {
		return 0, fmt.Errorf("launching engine: %w", err)
	}

	e.log.WithField("exit_code", code).Debug("Engine finished")

	return code, nil
}
