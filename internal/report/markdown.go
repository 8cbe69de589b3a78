package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/handlescan/handlescan/internal/model"
)

// MarkdownWriter outputs runs in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run in Markdown format.
func (w *MarkdownWriter) Write(run *model.Run) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, run)
	w.writeSummary(md, run)
	w.writeClaimed(md, run)
	w.writeAllResults(md, run)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run *model.Run) {
	md.H1("Handlescan Report")
	md.PlainText("")

	// Basic info table
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Username", "`" + run.Username + "`"},
			{"Scan Date", run.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", run.Duration.Round(time.Millisecond).String()},
			{"Sites Probed", strconv.Itoa(len(run.Results))},
		},
	})
	md.PlainText("")
}

// writeSummary writes the status summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, run *model.Run) {
	counts := run.CountByStatus()

	md.H2("Status Summary")
	md.PlainText("")

	// Summary table
	md.Table(markdown.TableSet{
		Header: []string{"Status", "Count"},
		Rows: [][]string{
			{"🟢 Claimed", strconv.Itoa(counts[model.StatusClaimed])},
			{"🟡 Available", strconv.Itoa(counts[model.StatusAvailable])},
			{"🔴 Unknown", strconv.Itoa(counts[model.StatusUnknown])},
			{"⚪ Illegal", strconv.Itoa(counts[model.StatusIllegal])},
			{"**Total**", "**" + strconv.Itoa(len(run.Results)) + "**"},
		},
	})
	md.PlainText("")

	// Add pie chart if there are results
	if len(run.Results) > 0 {
		w.writePieChart(md, counts)
	}

	// Add alert based on outcome
	w.writeAlert(md, counts)
}

// writePieChart writes a mermaid pie chart for the status distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, counts map[model.QueryStatus]int) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Result Status Distribution"),
		piechart.WithShowData(true),
	)

	if counts[model.StatusClaimed] > 0 {
		chart.LabelAndIntValue("Claimed", uint64(counts[model.StatusClaimed]))
	}
	if counts[model.StatusAvailable] > 0 {
		chart.LabelAndIntValue("Available", uint64(counts[model.StatusAvailable]))
	}
	if counts[model.StatusUnknown] > 0 {
		chart.LabelAndIntValue("Unknown", uint64(counts[model.StatusUnknown]))
	}
	if counts[model.StatusIllegal] > 0 {
		chart.LabelAndIntValue("Illegal", uint64(counts[model.StatusIllegal]))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert based on the result counts.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, counts map[model.QueryStatus]int) {
	switch {
	case counts[model.StatusUnknown] > 0:
		md.Warningf(
			"%d probe(s) failed or could not be classified. Results may be incomplete.",
			counts[model.StatusUnknown],
		)
	case counts[model.StatusClaimed] > 0:
		md.Importantf(
			"Found %d account(s) for this username.",
			counts[model.StatusClaimed],
		)
	default:
		md.Tip("No accounts found. The username appears unclaimed on every probed site.")
	}
	md.PlainText("")
}

// writeClaimed writes the claimed accounts section.
func (w *MarkdownWriter) writeClaimed(md *markdown.Markdown, run *model.Run) {
	md.H2("Claimed Accounts")
	md.PlainText("")

	claimed := run.Claimed()
	if len(claimed) == 0 {
		md.PlainText("No accounts found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(claimed))
	for i, res := range claimed {
		rows[i] = []string{
			res.SiteName,
			"[" + res.UserURL + "](" + res.UserURL + ")",
			res.Elapsed.Round(time.Millisecond).String(),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Site", "Profile URL", "Response Time"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeAllResults writes the full per-site listing.
func (w *MarkdownWriter) writeAllResults(md *markdown.Markdown, run *model.Run) {
	md.H2("All Results")
	md.PlainText("")

	if len(run.Results) == 0 {
		md.PlainText("No sites were probed.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(run.Results))
	for i, res := range run.Results {
		detail := res.Context
		if detail == "" {
			detail = "-"
		}
		rows[i] = []string{
			res.SiteName,
			res.Status.String(),
			truncateString(detail, 50),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Site", "Status", "Detail"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [handlescan](https://github.com/handlescan/handlescan)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
