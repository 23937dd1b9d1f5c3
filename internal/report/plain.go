package report

import (
	"io"

	"github.com/epscrapper/epscrapper/internal/model"
)

// PlainWriter outputs one endpoint URL per line.
// This is the format most convenient for piping into other tools
// (sort, grep, httpx, and the like).
type PlainWriter struct {
	baseWriter

	// withSource prefixes each URL with its source and type, e.g.
	// "network/xhr https://...". Off by default to keep the output pipeable.
	withSource bool
}

// PlainWriterOption configures a PlainWriter.
type PlainWriterOption func(*PlainWriter)

// WithSourceColumn prefixes each line with the endpoint's source and type.
func WithSourceColumn() PlainWriterOption {
	return func(w *PlainWriter) {
		w.withSource = true
	}
}

// NewPlainWriter creates a PlainWriter that outputs to the given writer.
func NewPlainWriter(output io.Writer, opts ...PlainWriterOption) *PlainWriter {
	w := &PlainWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs one URL per line in first-seen order.
func (w *PlainWriter) Write(report *model.ScrapeReport) (int, error) {
	var total int
	for _, ep := range report.Endpoints {
		line := ep.URL + "\n"
		if w.withSource {
			line = string(ep.Source) + "/" + ep.Type + " " + line
		}
		n, err := io.WriteString(w.output, line)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
