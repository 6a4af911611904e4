package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ethpandaops/mtsoor/pkg/index"
	"github.com/ethpandaops/mtsoor/pkg/report"
)

// Artifact file names inside a run directory.
const (
	resultName     = "result.json"
	summaryName    = "summary.json"
	consoleLogName = "console.log"
)

// ResultFileName is the run result artifact written into every run
// directory. The indexer discovers runs by this file.
const ResultFileName = resultName

// Result records the outcome of one run. It is serialized to
// result.json inside the run directory.
type Result struct {
	RunID        string          `json:"run_id"`
	PlanFile     string          `json:"plan_file"`
	TestCases    []string        `json:"test_cases,omitempty"`
	Status       Status          `json:"status"`
	Timestamp    int64           `json:"timestamp"`
	TimestampEnd int64           `json:"timestamp_end"`
	ExitCode     int             `json:"exit_code"`
	Error        string          `json:"error,omitempty"`
	ConsoleLog   string          `json:"console_log,omitempty"`
	Summary      *report.Summary `json:"summary,omitempty"`
}

// WriteResult writes the result as indented JSON to path.
func WriteResult(path string, result *Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return nil
}

// ParseResult parses a serialized run result.
func ParseResult(data []byte) (*Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parsing result: %w", err)
	}

	if result.RunID == "" {
		return nil, fmt.Errorf("result has no run_id")
	}

	return &result, nil
}

// BuildIndexRun converts a run result into its index record.
func BuildIndexRun(result *Result) *index.Run {
	run := &index.Run{
		RunID:        result.RunID,
		PlanFile:     result.PlanFile,
		Status:       string(result.Status),
		Timestamp:    result.Timestamp,
		TimestampEnd: result.TimestampEnd,
		ExitCode:     result.ExitCode,
		IndexedAt:    time.Now().UTC(),
	}

	if s := result.Summary; s != nil {
		run.TestsTotal = s.Total
		run.TestsPassed = s.Passed
		run.TestsFailed = s.Failed
		run.TestsSkipped = s.Skipped
		run.TestsUnknown = s.Unknown
		run.Percentage = s.Percentage
	}

	return run
}

// BuildIndexRunFromData parses serialized result.json content and
// converts it into an index record.
func BuildIndexRunFromData(data []byte) (*index.Run, error) {
	result, err := ParseResult(data)
	if err != nil {
		return nil, err
	}

	return BuildIndexRun(result), nil
}
