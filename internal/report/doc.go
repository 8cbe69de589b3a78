// Package report provides report generation and output functionality.
//
// This package contains writers for different output formats:
//   - TextWriter: Human-readable text output for terminal display and files
//   - CSVWriter: One row per probed site for spreadsheets
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: Shareable Markdown with a status distribution chart
//
// Design decision: We separate report writing from report data structures
// (which are in the model package) to follow the single responsibility
// principle. This allows adding new output formats without modifying
// the core data structures.
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
