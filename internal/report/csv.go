package report

import (
	"encoding/csv"
	"io"

	"github.com/epscrapper/epscrapper/internal/model"
)

// csvHeader is the column layout of CSV output.
var csvHeader = []string{"url", "source", "type", "method", "page"}

// CSVWriter outputs the collected endpoints as CSV with a header row.
// One row per endpoint, in first-seen order, so the file diffs cleanly
// between runs against the same application.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report's endpoints as CSV rows.
// An empty capture still produces the header row.
//
// The byte count is computed from the record lengths because encoding/csv
// does not report how much it wrote.
func (w *CSVWriter) Write(report *model.ScrapeReport) (int, error) {
	cw := csv.NewWriter(w.output)

	total := rowLen(csvHeader)
	if err := cw.Write(csvHeader); err != nil {
		return 0, err
	}

	for _, ep := range report.Endpoints {
		row := []string{ep.URL, string(ep.Source), ep.Type, ep.Method, ep.Page}
		if err := cw.Write(row); err != nil {
			return total, err
		}
		total += rowLen(row)
	}

	cw.Flush()
	return total, cw.Error()
}

// rowLen approximates the serialized length of a record: fields, commas,
// and the trailing newline. Quoting may add a few bytes on top.
func rowLen(row []string) int {
	n := len(row) // commas plus newline
	for _, f := range row {
		n += len(f)
	}
	return n
}
