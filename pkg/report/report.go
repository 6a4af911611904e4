// Package report parses the CSV result file the MTS engine writes
// after a run into an aggregate pass/fail/skip summary.
package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
)

// ErrReportMissing is returned when the engine finished without
// producing its report file.
var ErrReportMissing = errors.New("report file missing")

// TestStatus represents the classified outcome of a single test case.
type TestStatus string

const (
	StatusPass    TestStatus = "pass"
	StatusFail    TestStatus = "fail"
	StatusSkip    TestStatus = "skip"
	StatusUnknown TestStatus = "unknown"
)

// Status literals the engine writes into its report.
const (
	literalPass   = "OK"
	literalFail   = "Failed"
	literalNotRun = "?"
)

// Row is one classified test-case outcome from the report.
type Row struct {
	Group  string     `json:"group"`
	Name   string     `json:"name"`
	Status TestStatus `json:"status"`
}

// Summary aggregates the outcome of one engine run. It is computed
// once after the report is fully read and never mutated afterward.
type Summary struct {
	Total      int     `json:"total"`
	Passed     int     `json:"passed"`
	Failed     int     `json:"failed"`
	Skipped    int     `json:"skipped"`
	Unknown    int     `json:"unknown"`
	Percentage float64 `json:"percentage"`
	Rows       []Row   `json:"rows"`
}

// OverallStatus returns the dominant status for the whole summary.
func (s *Summary) OverallStatus() TestStatus {
	switch {
	case s.Failed > 0:
		return StatusFail
	case s.Unknown > 0:
		return StatusUnknown
	case s.Passed > 0:
		return StatusPass
	case s.Skipped > 0:
		return StatusSkip
	default:
		return StatusUnknown
	}
}

// Parser reads an engine CSV report into a Summary.
type Parser interface {
	Parse(path string) (*Summary, error)
}

// Compile-time interface check.
var _ Parser = (*parser)(nil)

type parser struct {
	log logrus.FieldLogger
}

// NewParser creates a report parser.
func NewParser(log logrus.FieldLogger) Parser {
	return &parser{
		log: log.WithField("component", "report"),
	}
}

// Parse reads the semicolon-delimited report at path. The header row
// is skipped; 2-field rows name the group for subsequent cases and
// 3-field rows are classified case outcomes. Rows with any other
// shape, and statuses outside the engine's vocabulary, are counted
// into the unknown bucket and logged.
func (p *parser) Parse(path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrReportMissing, path)
		}

		return nil, fmt.Errorf("opening report %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	summary := &Summary{Rows: make([]Row, 0)}

	var group string

	for rowIdx := 0; ; rowIdx++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("parsing report %s: %w", path, err)
		}

		// The first row is the report header.
		if rowIdx == 0 {
			continue
		}

		switch len(record) {
		case 2:
			group = record[0]
		case 3:
			p.classifyCase(summary, group, record)
		default:
			summary.Total++
			summary.Unknown++
			summary.Rows = append(summary.Rows, Row{
				Group:  group,
				Name:   trimName(record[0]),
				Status: StatusUnknown,
			})

			p.log.WithField("row", strings.Join(record, ";")).
				Warn("Unexpected report row shape")
		}
	}

	if summary.Total > 0 {
		summary.Percentage = 100 * float64(summary.Passed) / float64(summary.Total)
	} else {
		p.log.Error("No test has been executed")
	}

	return summary, nil
}

// classifyCase counts one 3-field case row into the summary.
func (p *parser) classifyCase(summary *Summary, group string, record []string) {
	name := trimName(record[0])
	literal := record[2]

	status := StatusUnknown

	switch literal {
	case literalPass:
		status = StatusPass
		summary.Passed++
	case literalFail:
		status = StatusFail
		summary.Failed++
	case literalNotRun:
		status = StatusSkip
		summary.Skipped++
	default:
		summary.Unknown++

		p.log.WithField("case", name).
			WithField("status", literal).
			Warn("Unrecognized test case status")
	}

	summary.Total++
	summary.Rows = append(summary.Rows, Row{Group: group, Name: name, Status: status})
}

// trimName strips the leading whitespace the engine pads case names with.
func trimName(name string) string {
	return strings.TrimLeftFunc(name, unicode.IsSpace)
}

// WriteSummary writes the summary as indented JSON to path.
func WriteSummary(path string, s *Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return nil
}
