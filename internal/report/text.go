package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/handlescan/handlescan/internal/model"
)

// TextWriter outputs human-readable text reports.
// This format is designed for terminal display and plain result files with
// clear section formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Colored live output is the notifier's job, not the report's
type TextWriter struct {
	baseWriter

	// showAll lists every probed site, not just the claimed ones.
	showAll bool

	// verbose adds per-site response timings to the listing.
	verbose bool
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithShowAll configures the writer to list every result, including
// available, unknown and illegal ones.
func WithShowAll(show bool) TextWriterOption {
	return func(w *TextWriter) {
		w.showAll = show
	}
}

// WithVerbose enables verbose output with per-site response timings.
func WithVerbose(verbose bool) TextWriterOption {
	return func(w *TextWriter) {
		w.verbose = verbose
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{
		baseWriter: newBaseWriter(output),
		showAll:    false,
		verbose:    false,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the run in human-readable format.
func (w *TextWriter) Write(run *model.Run) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, run)
	w.writeSummary(&sb, run)
	w.writeClaimed(&sb, run)
	if w.showAll {
		w.writeAllResults(&sb, run)
	}
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with run information.
func (w *TextWriter) writeHeader(sb *strings.Builder, run *model.Run) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        HANDLESCAN REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Username:     %s\n", run.Username))
	sb.WriteString(fmt.Sprintf("Scan Date:    %s\n", run.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Duration:     %s\n", run.Duration.Round(time.Millisecond)))
	sb.WriteString(fmt.Sprintf("Sites Probed: %d\n", len(run.Results)))
	sb.WriteString("\n")
}

// writeSummary writes the status summary section.
func (w *TextWriter) writeSummary(sb *strings.Builder, run *model.Run) {
	counts := run.CountByStatus()

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("STATUS SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("  CLAIMED:   %d\n", counts[model.StatusClaimed]))
	sb.WriteString(fmt.Sprintf("  AVAILABLE: %d\n", counts[model.StatusAvailable]))
	sb.WriteString(fmt.Sprintf("  UNKNOWN:   %d\n", counts[model.StatusUnknown]))
	sb.WriteString(fmt.Sprintf("  ILLEGAL:   %d\n", counts[model.StatusIllegal]))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  TOTAL:     %d sites\n", len(run.Results)))
	sb.WriteString("\n")
}

// writeClaimed writes the claimed accounts section.
func (w *TextWriter) writeClaimed(sb *strings.Builder, run *model.Run) {
	claimed := run.Claimed()

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("CLAIMED ACCOUNTS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(claimed) == 0 {
		sb.WriteString("  No accounts found\n")
	} else {
		for _, res := range claimed {
			sb.WriteString(fmt.Sprintf("  [+] %s: %s\n", res.SiteName, res.UserURL))
			if w.verbose && res.Elapsed > 0 {
				sb.WriteString(fmt.Sprintf("      Response Time: %s\n", res.Elapsed.Round(time.Millisecond)))
			}
		}
	}
	sb.WriteString("\n")
}

// writeAllResults writes every result with a status marker.
func (w *TextWriter) writeAllResults(sb *strings.Builder, run *model.Run) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("ALL RESULTS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, res := range run.Results {
		marker := w.statusMarker(res.Status)
		sb.WriteString(fmt.Sprintf("  [%s] %s: %s\n", marker, res.SiteName, res.String()))
		if w.verbose && res.Elapsed > 0 {
			sb.WriteString(fmt.Sprintf("      Response Time: %s\n", res.Elapsed.Round(time.Millisecond)))
		}
	}
	sb.WriteString("\n")
}

// statusMarker returns a visual indicator for the status.
func (w *TextWriter) statusMarker(status model.QueryStatus) string {
	switch status {
	case model.StatusClaimed:
		return "+"
	case model.StatusAvailable:
		return "-"
	case model.StatusIllegal:
		return "x"
	default:
		return "?"
	}
}

// writeFooter writes the report footer.
func (w *TextWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by handlescan\n")
	sb.WriteString("https://github.com/handlescan/handlescan\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
