package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/nao1215/localizer/internal/config"
	"github.com/nao1215/localizer/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.RunReport) (int, error)
}

// MultiWriter writes to multiple Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.RunReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// NewWriter returns the writer for format. version is embedded in JSON
// and Markdown output.
func NewWriter(format config.ReportFormat, output io.Writer, version string) (Writer, error) {
	switch format {
	case config.ReportText, "":
		return NewSimpleWriter(output), nil
	case config.ReportJSON:
		return NewFullJSONWriter(output, version, WithPrettyPrint()), nil
	case config.ReportMarkdown:
		return NewMarkdownWriter(output, WithVersion(version)), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidReportFormat, format)
	}
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// sortedFindings returns the findings ordered from most to least severe.
func sortedFindings(findings []model.Finding) []model.Finding {
	sorted := make([]model.Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Severity > sorted[j].Severity
	})
	return sorted
}

// statusText is the one-line status shown by text and Markdown reports.
func statusText(report *model.RunReport) string {
	switch report.Status {
	case model.StatusSuccess:
		return "Complete"
	case model.StatusCancelled:
		return "Cancelled (partial output kept)"
	case model.StatusFailed:
		return "Failed - " + report.Message
	default:
		return string(report.Status)
	}
}
