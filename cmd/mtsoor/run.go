package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/mtsoor/pkg/config"
	"github.com/ethpandaops/mtsoor/pkg/exitcodes"
	"github.com/ethpandaops/mtsoor/pkg/index"
	"github.com/ethpandaops/mtsoor/pkg/runner"
	"github.com/ethpandaops/mtsoor/pkg/upload"
)

var (
	runPlanFile       string
	runTestCases      []string
	runEngineLogLevel string
	runStoreMethod    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a test plan through the MTS engine",
	Long: `Validate the XML test plan, launch the engine over it, and parse the
engine's CSV report. The process exit code reflects the run status.`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runPlanFile, "plan", "",
		"Path to the XML test plan (required)")
	runCmd.Flags().StringSliceVar(&runTestCases, "testcases", nil,
		"Restrict the run to these test cases (comma-separated or repeated flag)")
	runCmd.Flags().StringVar(&runEngineLogLevel, "engine-log-level", "",
		"Engine -levelLog value (overrides config)")
	runCmd.Flags().StringVar(&runStoreMethod, "store-method", "",
		"Engine -storageLog value (overrides config)")

	_ = runCmd.MarkFlagRequired("plan")
}

func runPlan(cmd *cobra.Command, args []string) error {
	code, err := executeRun()
	if err != nil {
		return err
	}

	if code != exitcodes.Success {
		os.Exit(code)
	}

	return nil
}

// executeRun performs the run and returns the process exit code. It is
// separate from the cobra handler so deferred cleanups complete before
// the process exits.
func executeRun() (int, error) {
	if cfgFile == "" {
		return 0, fmt.Errorf("config file is required (use --config)")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return 0, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return 0, fmt.Errorf("validating config: %w", err)
	}

	// Set up context with signal handling.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
	}()

	// Open the index store when the runner is configured to record runs.
	var store index.Store

	if cfg.Runner.Database != nil {
		store = index.NewStore(log, cfg.Runner.Database)
		if err := store.Start(ctx); err != nil {
			return 0, fmt.Errorf("starting index store: %w", err)
		}

		defer func() {
			if err := store.Stop(); err != nil {
				log.WithError(err).Warn("Failed to stop index store")
			}
		}()
	}

	// Create the S3 uploader when configured.
	var uploader upload.Uploader

	if cfg.Upload != nil {
		uploader, err = upload.NewS3Uploader(log, cfg.Upload)
		if err != nil {
			return 0, fmt.Errorf("creating S3 uploader: %w", err)
		}
	}

	r := runner.NewRunner(log, &runner.Config{
		ResultsDir:         cfg.Runner.ResultsDir,
		EngineLogsToStdout: cfg.Runner.EngineLogsToStdout,
	}, &cfg.Engine, store, uploader)

	if err := r.Start(ctx); err != nil {
		return 0, fmt.Errorf("starting runner: %w", err)
	}

	defer func() {
		if err := r.Stop(); err != nil {
			log.WithError(err).Warn("Failed to stop runner")
		}
	}()

	result := r.RunPlan(ctx, &runner.Params{
		PlanFile:    runPlanFile,
		LogLevel:    runEngineLogLevel,
		StoreMethod: runStoreMethod,
		TestCases:   runTestCases,
	})

	if result.Status != runner.StatusSuccess {
		return exitcodes.RunError, nil
	}

	return exitcodes.Success, nil
}
