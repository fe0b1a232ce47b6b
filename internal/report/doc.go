// Package report renders statistics, progress and snapshot history.
//
// This package contains writers for different output formats:
//   - SimpleWriter: human-readable text output for terminal display
//   - JSONWriter: structured JSON output for tool integration
//   - MarkdownWriter: GitHub Flavored Markdown with a relation type pie chart
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably by the CLI.
package report
