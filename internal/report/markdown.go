package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/localizer/internal/model"
)

// MarkdownWriter outputs reports in GitHub Flavored Markdown.
type MarkdownWriter struct {
	baseWriter

	// version is printed in the footer.
	version string
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithVersion sets the version printed in the footer.
func WithVersion(version string) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.version = version
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeFailures(md, report)
	w.writeFindings(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.RunReport) {
	md.H1("Localizer Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", "`" + report.ID + "`"},
			{"Source", "`" + report.SourceDir + "`"},
			{"Output", "`" + report.OutputDir + "`"},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration().Round(time.Millisecond).String()},
			{"Status", w.statusIcon(report) + " " + statusText(report)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) statusIcon(report *model.RunReport) string {
	switch report.Status {
	case model.StatusSuccess:
		return "✅"
	case model.StatusCancelled:
		return "⚠️"
	default:
		return "❌"
	}
}

// writeSummary writes the counters and the asset distribution.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.RunReport) {
	md.H2("Summary")
	md.PlainText("")

	stored := len(report.StoredAssets())
	md.Table(markdown.TableSet{
		Header: []string{"Item", "Count"},
		Rows: [][]string{
			{"HTML rewritten", strconv.Itoa(report.DocumentsRewritten)},
			{"HTML unchanged", strconv.Itoa(report.DocumentsUnchanged)},
			{"Files copied", strconv.Itoa(report.FilesCopied)},
			{"Assets stored", strconv.Itoa(stored)},
			{"Assets reused", strconv.Itoa(len(report.Assets) - stored)},
			{"Failures", strconv.Itoa(len(report.Failures))},
		},
	})
	md.PlainText("")

	if stored > 0 {
		w.writePieChart(md, report)
	}

	switch {
	case report.Status == model.StatusFailed:
		md.Cautionf("The run failed: %s", report.Message)
	case report.Status == model.StatusCancelled:
		md.Warning("The run was cancelled. Files written before cancellation were kept.")
	case len(report.Failures) > 0:
		md.Importantf("%d reference(s) could not be localized and still point at the network.", len(report.Failures))
	default:
		md.Tip("Every remote stylesheet and script was localized.")
	}
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of stored assets per category.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.RunReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Localized Assets"),
		piechart.WithShowData(true),
	)

	counts := report.AssetCounts()
	for _, category := range model.Categories {
		if n := counts[category]; n > 0 {
			chart.LabelAndIntValue(category.String(), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeFailures writes the table of references left unlocalized.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, report *model.RunReport) {
	if len(report.Failures) == 0 {
		return
	}

	md.H2("Failed References")
	md.PlainText("")

	rows := make([][]string, len(report.Failures))
	for i, f := range report.Failures {
		rows[i] = []string{
			"`" + f.Document + "`",
			truncateString(f.Reference, 60),
			truncateString(f.Reason, 60),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Document", "Reference", "Reason"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFindings writes image metadata findings, most severe first.
func (w *MarkdownWriter) writeFindings(md *markdown.Markdown, report *model.RunReport) {
	if len(report.Findings) == 0 {
		return
	}

	md.H2("Image Metadata")
	md.PlainText("")

	findings := sortedFindings(report.Findings)
	rows := make([][]string, len(findings))
	for i, f := range findings {
		rows[i] = []string{
			f.SeverityText,
			f.Title,
			truncateString(f.Value, 50),
			truncateString(f.Location, 40),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Title", "Value", "Location"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, f := range findings {
		if f.Recommendation != "" {
			md.Details(f.Title, f.Recommendation)
		}
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	if w.version != "" {
		md.PlainTextf("*Report generated by localizer %s*", w.version)
		return
	}
	md.PlainText("*Report generated by localizer*")
}

// truncateString truncates a string to maxLen bytes with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
