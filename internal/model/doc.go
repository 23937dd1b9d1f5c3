// Package model defines the core data structures used throughout epscrapper.
//
// This package contains the following main types:
//   - Endpoint: A URL observed as a DOM link/attribute or network request
//   - ScrapeReport: The accumulated result of one authenticated scrape
//   - Summary: Per-source endpoint counters for terminal output
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (collector, crawler, report, database) need
// these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
