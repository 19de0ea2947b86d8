// Package report renders a RunReport for people and tools.
//
// This package contains writers for different output formats:
//   - SimpleWriter: plain text summary for the terminal
//   - MarkdownWriter: GitHub Flavored Markdown with a mermaid pie chart
//   - JSONWriter: structured JSON for tool integration
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
