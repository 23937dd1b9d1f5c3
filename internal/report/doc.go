// Package report serializes scrape results to their output formats.
// It provides writers for JSON, CSV, plaintext, and Markdown, plus a
// human-readable terminal summary. All writers share the Writer interface
// so the output destination and format are chosen at wiring time.
package report
