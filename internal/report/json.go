package report

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/nao1215/localizer/internal/model"
)

// JSONWriter encodes the bare run report, one JSON document per Write.
// URLs are written as-is: HTML escaping is disabled so query strings keep
// their "&".
type JSONWriter struct {
	baseWriter

	// prefix and indent are passed to json.Encoder.SetIndent when pretty is set.
	pretty bool
	prefix string
	indent string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables indented output using prefix and indent per level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.pretty = true
		w.prefix = prefix
		w.indent = indent
	}
}

// WithPrettyPrint indents with two spaces.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write encodes the report followed by a newline.
func (w *JSONWriter) Write(report *model.RunReport) (int, error) {
	return w.encode(report)
}

// encode buffers the document so the byte count is exact and a failed
// encoding writes nothing.
func (w *JSONWriter) encode(v any) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if w.pretty {
		enc.SetIndent(w.prefix, w.indent)
	}
	if err := enc.Encode(v); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}

// JSONReport wraps a run report with the version that produced it and the
// per-category asset counts.
type JSONReport struct {
	// Version is the localizer version that generated this report.
	Version string `json:"version"`

	// AssetCounts is the number of stored assets per category name.
	AssetCounts map[string]int `json:"asset_counts"`

	// Report is the full run report.
	Report *model.RunReport `json:"report"`
}

// NewJSONReport creates a JSONReport wrapper with version information.
func NewJSONReport(report *model.RunReport, version string) *JSONReport {
	counts := make(map[string]int, len(model.Categories))
	for category, n := range report.AssetCounts() {
		counts[category.String()] = n
	}
	return &JSONReport{
		Version:     version,
		AssetCounts: counts,
		Report:      report,
	}
}

// FullJSONWriter encodes the report inside a JSONReport envelope. It is
// the writer behind --json.
type FullJSONWriter struct {
	*JSONWriter
	version string
}

// NewFullJSONWriter creates a FullJSONWriter stamping reports with version.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write encodes the wrapped report.
func (w *FullJSONWriter) Write(report *model.RunReport) (int, error) {
	return w.encode(NewJSONReport(report, w.version))
}
