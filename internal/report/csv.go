package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/handlescan/handlescan/internal/model"
)

// CSVWriter outputs runs in CSV format, one row per probed site.
// This format is designed for spreadsheets and ad-hoc analysis.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{
		baseWriter: newBaseWriter(output),
	}
}

// csvHeader is the column set written before the result rows.
var csvHeader = []string{"username", "site", "url_user", "status", "response_time_ms", "context"}

// Write outputs the run in CSV format.
func (w *CSVWriter) Write(run *model.Run) (int, error) {
	counter := &countingWriter{output: w.output}
	cw := csv.NewWriter(counter)

	if err := cw.Write(csvHeader); err != nil {
		return counter.written, err
	}

	for _, res := range run.Results {
		elapsed := ""
		if res.Elapsed > 0 {
			elapsed = strconv.FormatInt(res.Elapsed.Milliseconds(), 10)
		}

		row := []string{
			run.Username,
			res.SiteName,
			res.UserURL,
			res.Status.String(),
			elapsed,
			res.Context,
		}
		if err := cw.Write(row); err != nil {
			return counter.written, err
		}
	}

	cw.Flush()
	return counter.written, cw.Error()
}

// countingWriter tracks bytes written so CSVWriter can satisfy the Writer
// contract. encoding/csv does not report byte counts itself.
type countingWriter struct {
	output  io.Writer
	written int
}

// Write implements io.Writer.
func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.output.Write(p)
	c.written += n
	return n, err
}
