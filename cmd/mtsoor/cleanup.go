package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/mtsoor/pkg/config"
	"github.com/ethpandaops/mtsoor/pkg/fsutil"
)

var (
	forceCleanup   bool
	cleanupResults bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove stale engine output left by previous runs",
	Long: `Remove the engine's stale CSV report and, with --results, the local run
results directory. Useful after interrupted runs.`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().BoolVarP(&forceCleanup, "force", "f", false,
		"Skip confirmation prompt")
	cleanupCmd.Flags().BoolVar(&cleanupResults, "results", false,
		"Also remove the local results directory")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	if cfgFile == "" {
		return fmt.Errorf("config file is required (use --config)")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var targets []string

	if fsutil.FileExists(cfg.Engine.AbsReportPath()) {
		targets = append(targets, cfg.Engine.AbsReportPath())
	}

	if cleanupResults && fsutil.DirExists(cfg.Runner.ResultsDir) {
		targets = append(targets, cfg.Runner.ResultsDir)
	}

	if len(targets) == 0 {
		log.Info("Nothing to clean up")

		return nil
	}

	fmt.Printf("\nPaths to be removed (%d):\n", len(targets))

	for _, target := range targets {
		fmt.Printf("  - %s\n", target)
	}

	fmt.Println()

	// Prompt for confirmation if not forced.
	if !forceCleanup {
		fmt.Print("Are you sure you want to remove these paths? [y/N] ")

		reader := bufio.NewReader(os.Stdin)

		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			log.Info("Cleanup cancelled")

			return nil
		}
	}

	for _, target := range targets {
		log.WithField("path", target).Info("Removing")

		if err := os.RemoveAll(target); err != nil {
			log.WithError(err).WithField("path", target).
				Warn("Failed to remove path")
		}
	}

	log.Info("Cleanup completed")

	return nil
}
