// Package database provides SQLite-backed storage of scrape sessions.
// Each completed scrape is saved as a session row plus one row per endpoint,
// allowing later runs against the same origin to be compared with the diff
// command.
package database
