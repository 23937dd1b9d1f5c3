// Package config provides configuration structures and utilities for epscrapper.
// It defines the main options for the authenticated scrape session, crawl
// settings, output format selection, and per-site overrides loaded from the
// .epscrapper YAML file.
package config
