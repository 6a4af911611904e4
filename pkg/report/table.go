package report

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RenderTable writes the per-case operator table to w, styled by the
// overall outcome.
func RenderTable(w io.Writer, s *Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)

	t.AppendHeader(table.Row{"Test", "Test Case", "Status"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Test", AutoMerge: true},
		{Name: "Test Case", WidthMax: 60},
		{Name: "Status", Align: text.AlignLeft},
	})

	for _, row := range s.Rows {
		t.AppendRow(table.Row{row.Group, row.Name, statusString(row.Status)})
	}

	switch s.OverallStatus() {
	case StatusPass:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	case StatusFail:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL", s.Total, fmt.Sprintf("%.1f%% pass", s.Percentage),
	})

	t.Render()
}

// statusString formats a status for table display.
func statusString(status TestStatus) string {
	switch status {
	case StatusPass:
		return "✓ pass"
	case StatusFail:
		return "✗ fail"
	case StatusSkip:
		return "- skip"
	default:
		return "? unknown"
	}
}
