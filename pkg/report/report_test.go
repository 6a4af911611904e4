package report_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/mtsoor/pkg/report"
)

func newParser(t *testing.T) report.Parser {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return report.NewParser(log)
}

func writeReport(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "testPlan.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestParse_GroupAndCaseRows(t *testing.T) {
	csv := `Test;Case;Result
Registration;
 REG_01;00:00:12;OK
 REG_02;00:00:03;Failed
`

	summary, err := newParser(t).Parse(writeReport(t, csv))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Skipped)
	assert.InDelta(t, 50.0, summary.Percentage, 0.001)

	require.Len(t, summary.Rows, 2)
	assert.Equal(t, report.Row{Group: "Registration", Name: "REG_01", Status: report.StatusPass}, summary.Rows[0])
	assert.Equal(t, report.Row{Group: "Registration", Name: "REG_02", Status: report.StatusFail}, summary.Rows[1])
}

func TestParse_NotRunCountsAsSkip(t *testing.T) {
	csv := `Test;Case;Result
Calls;
 CALL_01;;?
`

	summary, err := newParser(t).Parse(writeReport(t, csv))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Passed)
	assert.InDelta(t, 0.0, summary.Percentage, 0.001)
}

func TestParse_UnrecognizedStatus(t *testing.T) {
	csv := `Test;Case;Result
G;
 A;;OK
 B;;Exploded
`

	summary, err := newParser(t).Parse(writeReport(t, csv))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 1, summary.Unknown)
	assert.Equal(t, summary.Total,
		summary.Passed+summary.Failed+summary.Skipped+summary.Unknown)

	assert.Equal(t, report.StatusUnknown, summary.Rows[1].Status)
}

func TestParse_UnexpectedRowShape(t *testing.T) {
	csv := `Test;Case;Result
G;
 A;x;y;z;OK
 B;;OK
`

	summary, err := newParser(t).Parse(writeReport(t, csv))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Unknown)
	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, summary.Total,
		summary.Passed+summary.Failed+summary.Skipped+summary.Unknown)
}

func TestParse_HeaderOnly(t *testing.T) {
	summary, err := newParser(t).Parse(writeReport(t, "Test;Case;Result\n"))
	require.NoError(t, err)

	assert.Zero(t, summary.Total)
	assert.Zero(t, summary.Percentage, "zero-total report has no score")
	assert.Empty(t, summary.Rows)
}

func TestParse_MissingFile(t *testing.T) {
	_, err := newParser(t).Parse(filepath.Join(t.TempDir(), "absent.csv"))
	require.ErrorIs(t, err, report.ErrReportMissing)
}

func TestParse_Idempotent(t *testing.T) {
	path := writeReport(t, `Test;Case;Result
G;
 A;;OK
 B;;Failed
 C;;?
`)

	p := newParser(t)

	first, err := p.Parse(path)
	require.NoError(t, err)

	second, err := p.Parse(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSummary_OverallStatus(t *testing.T) {
	tests := []struct {
		name     string
		summary  report.Summary
		expected report.TestStatus
	}{
		{name: "empty", summary: report.Summary{}, expected: report.StatusUnknown},
		{name: "all pass", summary: report.Summary{Total: 2, Passed: 2}, expected: report.StatusPass},
		{name: "any failure wins", summary: report.Summary{Total: 3, Passed: 2, Failed: 1}, expected: report.StatusFail},
		{name: "unknown beats pass", summary: report.Summary{Total: 2, Passed: 1, Unknown: 1}, expected: report.StatusUnknown},
		{name: "only skips", summary: report.Summary{Total: 2, Skipped: 2}, expected: report.StatusSkip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.summary.OverallStatus())
		})
	}
}

func TestRenderTable(t *testing.T) {
	summary := &report.Summary{
		Total:      2,
		Passed:     1,
		Failed:     1,
		Percentage: 50,
		Rows: []report.Row{
			{Group: "Registration", Name: "REG_01", Status: report.StatusPass},
			{Group: "Registration", Name: "REG_02", Status: report.StatusFail},
		},
	}

	var buf bytes.Buffer

	report.RenderTable(&buf, summary)

	out := buf.String()
	assert.Contains(t, out, "REG_01")
	assert.Contains(t, out, "REG_02")
	assert.Contains(t, out, "TOTAL")
	assert.Contains(t, out, "50.0% pass")
}
