package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/localizer/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose lists every stored asset.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.RunReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	if w.verbose {
		w.writeAssets(&sb, report)
	}
	w.writeFailures(&sb, report)
	w.writeFindings(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.RunReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         LOCALIZER REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Run ID:    %s\n", report.ID)
	fmt.Fprintf(sb, "Source:    %s\n", report.SourceDir)
	fmt.Fprintf(sb, "Output:    %s\n", report.OutputDir)
	fmt.Fprintf(sb, "Started:   %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:  %s\n", report.Duration().Round(time.Millisecond))
	fmt.Fprintf(sb, "Status:    %s\n", statusText(report))
	sb.WriteString("\n")
}

// writeSummary writes the counters.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.RunReport) {
	sb.WriteString("SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")

	counts := report.AssetCounts()
	parts := make([]string, 0, len(model.Categories))
	for _, category := range model.Categories {
		parts = append(parts, fmt.Sprintf("%s %d", category, counts[category]))
	}
	stored := len(report.StoredAssets())

	fmt.Fprintf(sb, "  HTML rewritten:  %d\n", report.DocumentsRewritten)
	fmt.Fprintf(sb, "  HTML unchanged:  %d\n", report.DocumentsUnchanged)
	fmt.Fprintf(sb, "  Files copied:    %d\n", report.FilesCopied)
	fmt.Fprintf(sb, "  Assets stored:   %d (%s)\n", stored, strings.Join(parts, ", "))
	fmt.Fprintf(sb, "  Assets reused:   %d\n", len(report.Assets)-stored)
	fmt.Fprintf(sb, "  Failures:        %d\n", len(report.Failures))
	sb.WriteString("\n")
}

// writeAssets lists every stored asset.
func (w *SimpleWriter) writeAssets(sb *strings.Builder, report *model.RunReport) {
	stored := report.StoredAssets()
	if len(stored) == 0 {
		return
	}

	sb.WriteString("ASSETS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	for _, a := range stored {
		fmt.Fprintf(sb, "  %-6s %s (%d bytes, %s)\n", a.Category, a.Filename, a.Size, a.Hash)
		fmt.Fprintf(sb, "         from %s\n", a.Origin)
	}
	sb.WriteString("\n")
}

// writeFailures lists references left unlocalized.
func (w *SimpleWriter) writeFailures(sb *strings.Builder, report *model.RunReport) {
	if len(report.Failures) == 0 {
		return
	}

	sb.WriteString("FAILED REFERENCES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	for _, f := range report.Failures {
		fmt.Fprintf(sb, "  [%s] %s\n", f.Document, f.Reference)
		fmt.Fprintf(sb, "      %s\n", f.Reason)
	}
	sb.WriteString("\n")
}

// writeFindings lists image metadata findings, most severe first.
func (w *SimpleWriter) writeFindings(sb *strings.Builder, report *model.RunReport) {
	if len(report.Findings) == 0 {
		return
	}

	sb.WriteString("IMAGE METADATA\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	for _, f := range sortedFindings(report.Findings) {
		fmt.Fprintf(sb, "  [%s] %s\n", strings.ToUpper(f.SeverityText), f.Title)
		fmt.Fprintf(sb, "      Value:    %s\n", f.Value)
		fmt.Fprintf(sb, "      Location: %s\n", f.Location)
		if f.Recommendation != "" {
			fmt.Fprintf(sb, "      %s\n", f.Recommendation)
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes the closing rule.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
