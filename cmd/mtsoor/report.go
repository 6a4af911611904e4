package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/mtsoor/pkg/config"
	"github.com/ethpandaops/mtsoor/pkg/exitcodes"
	"github.com/ethpandaops/mtsoor/pkg/report"
)

var reportPath string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Parse an engine CSV report and render the result table",
	Long: `Parse an existing engine report without launching a run. Defaults to the
report path of the configured engine installation. The exit code is
non-zero when the report contains failed or unclassifiable test cases.`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVar(&reportPath, "report", "",
		"Path to the CSV report (defaults to the engine's report path)")
}

func runReport(cmd *cobra.Command, args []string) error {
	code, err := executeReport()
	if err != nil {
		return err
	}

	if code != exitcodes.Success {
		os.Exit(code)
	}

	return nil
}

func executeReport() (int, error) {
	path := reportPath

	if path == "" {
		if cfgFile == "" {
			return 0, fmt.Errorf("either --report or --config is required")
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return 0, fmt.Errorf("loading config: %w", err)
		}

		path = cfg.Engine.AbsReportPath()
	}

	summary, err := report.NewParser(log).Parse(path)
	if err != nil {
		return 0, fmt.Errorf("parsing report: %w", err)
	}

	report.RenderTable(os.Stdout, summary)

	log.WithFields(logrus.Fields{
		"total":      summary.Total,
		"passed":     summary.Passed,
		"failed":     summary.Failed,
		"skipped":    summary.Skipped,
		"unknown":    summary.Unknown,
		"percentage": summary.Percentage,
	}).Info("Report parsed")

	if summary.Failed > 0 || summary.Unknown > 0 {
		return exitcodes.RunError, nil
	}

	return exitcodes.Success, nil
}
