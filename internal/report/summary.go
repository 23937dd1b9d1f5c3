package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/epscrapper/epscrapper/internal/model"
)

// timeRounding is the precision used when printing durations.
const timeRounding = 100 * time.Millisecond

// SummaryWriter outputs a human-readable session summary.
// This format is designed for terminal display after a scrape finishes.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SummaryWriter struct {
	baseWriter

	// verbose lists every endpoint instead of just the counts.
	verbose bool
}

// SummaryWriterOption configures a SummaryWriter.
type SummaryWriterOption func(*SummaryWriter)

// WithVerbose enables verbose output listing each collected endpoint.
func WithVerbose(verbose bool) SummaryWriterOption {
	return func(w *SummaryWriter) {
		w.verbose = verbose
	}
}

// NewSummaryWriter creates a SummaryWriter that outputs to the given writer.
func NewSummaryWriter(output io.Writer, opts ...SummaryWriterOption) *SummaryWriter {
	w := &SummaryWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the session summary in human-readable format.
func (w *SummaryWriter) Write(report *model.ScrapeReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	if w.verbose {
		w.writeEndpoints(&sb, report)
	}
	w.writeFooter(&sb, report)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the session identification block.
func (w *SummaryWriter) writeHeader(sb *strings.Builder, report *model.ScrapeReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "Endpoint scrape: %s\n", report.Origin)
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "  Dashboard:      %s\n", report.DashboardURL)
	if report.LandedURL != "" && report.LandedURL != report.DashboardURL {
		fmt.Fprintf(sb, "  Landed on:      %s\n", report.LandedURL)
	}
	fmt.Fprintf(sb, "  Scraped at:     %s\n", report.DateScraped.Format("2006-01-02 15:04:05 MST"))
	if report.AuthDuration > 0 {
		fmt.Fprintf(sb, "  Login took:     %s\n", report.AuthDuration.Round(timeRounding))
	}
	sb.WriteString("\n")
}

// writeSummary writes the per-source endpoint counts.
func (w *SummaryWriter) writeSummary(sb *strings.Builder, report *model.ScrapeReport) {
	summary := report.Summarize()

	fmt.Fprintf(sb, "  Pages visited:  %d\n", summary.PagesVisited)
	fmt.Fprintf(sb, "  DOM endpoints:  %d\n", summary.DOM)
	fmt.Fprintf(sb, "  Network:        %d\n", summary.Network)
	fmt.Fprintf(sb, "  Total unique:   %d\n", summary.Total)
	sb.WriteString("\n")
}

// writeEndpoints lists every collected endpoint in first-seen order.
func (w *SummaryWriter) writeEndpoints(sb *strings.Builder, report *model.ScrapeReport) {
	if len(report.Endpoints) == 0 {
		sb.WriteString("  No endpoints collected.\n\n")
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	for _, ep := range report.Endpoints {
		tag := string(ep.Source)
		if ep.Type != "" {
			tag += "/" + ep.Type
		}
		fmt.Fprintf(sb, "  [%-14s] %s\n", tag, ep.URL)
	}
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeFooter reports the terminal status of the session.
func (w *SummaryWriter) writeFooter(sb *strings.Builder, report *model.ScrapeReport) {
	switch {
	case report.TimedOut:
		sb.WriteString("  Status: TIMED OUT waiting for the dashboard URL\n")
	case report.ErrorMessage != "":
		fmt.Fprintf(sb, "  Status: ERROR - %s\n", report.ErrorMessage)
	default:
		sb.WriteString("  Status: complete\n")
	}
	sb.WriteString("\n")
}
