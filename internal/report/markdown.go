package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/epscrapper/epscrapper/internal/model"
)

// MarkdownWriter outputs the scrape report in Markdown format.
// This format is designed for documentation and sharing, for example
// attaching an endpoint inventory to a pentest finding or wiki page.
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

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ScrapeReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeEndpoints(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with session information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.ScrapeReport) {
	md.H1("Endpoint Scrape Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Origin", "`" + report.Origin + "`"},
			{"Dashboard", "`" + report.DashboardURL + "`"},
			{"Scrape Date", report.DateScraped.Format("2006-01-02 15:04:05 MST")},
			{"Login Duration", report.AuthDuration.Round(timeRounding).String()},
			{"Pages Visited", strconv.Itoa(report.PagesVisited)},
			{"Status", w.statusText(report)},
		},
	})
	md.PlainText("")
}

// statusText returns the status text based on report state.
func (w *MarkdownWriter) statusText(report *model.ScrapeReport) string {
	if report.TimedOut {
		return "⚠️ Login timed out (no endpoints collected)"
	}
	if report.ErrorMessage != "" {
		return "❌ Error - " + report.ErrorMessage
	}
	return "✅ Complete"
}

// writeSummary writes the per-source endpoint counts.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.ScrapeReport) {
	summary := report.Summarize()

	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Source", "Count"},
		Rows: [][]string{
			{"DOM", strconv.Itoa(summary.DOM)},
			{"Network", strconv.Itoa(summary.Network)},
			{"**Total**", "**" + strconv.Itoa(summary.Total) + "**"},
		},
	})
	md.PlainText("")

	if summary.Total > 0 {
		w.writePieChart(md, summary)
		md.Tip(fmt.Sprintf("%d unique endpoints collected across %d page(s).",
			summary.Total, summary.PagesVisited))
	} else {
		md.Note("No endpoints were collected. The session may have ended before the dashboard finished loading.")
	}
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart for the source distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Endpoint Sources"),
		piechart.WithShowData(true),
	)

	if summary.DOM > 0 {
		chart.LabelAndIntValue("DOM", uint64(summary.DOM))
	}
	if summary.Network > 0 {
		chart.LabelAndIntValue("Network", uint64(summary.Network))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeEndpoints writes the endpoint inventory table.
func (w *MarkdownWriter) writeEndpoints(md *markdown.Markdown, report *model.ScrapeReport) {
	md.H2("Endpoints")
	md.PlainText("")

	if len(report.Endpoints) == 0 {
		md.PlainText("No endpoints collected.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Endpoints))
	for i, ep := range report.Endpoints {
		method := ep.Method
		if method == "" {
			method = "-"
		}
		typ := ep.Type
		if typ == "" {
			typ = "-"
		}
		rows[i] = []string{
			"`" + truncateString(ep.URL, 80) + "`",
			string(ep.Source),
			typ,
			method,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Source", "Type", "Method"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [epscrapper](https://github.com/epscrapper/epscrapper)*")
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
