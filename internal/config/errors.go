package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages. Using errors.New() here rather than fmt.Errorf()
// because we don't need to include dynamic values in these messages.
var (
	// ErrNoLoginURL is returned when no login URL is specified.
	// The login page is the first positional argument of the scrape command.
	ErrNoLoginURL = errors.New("no login URL specified: provide the login page URL")

	// ErrNoDashboardURL is returned when no dashboard URL is specified.
	// Without it there is no signal that authentication completed.
	ErrNoDashboardURL = errors.New("no dashboard URL specified: use --dashboard to set the post-login URL")

	// ErrInvalidWaitTimeout is returned when the login wait timeout is not
	// positive. A zero or negative timeout would abandon the session
	// before the user can authenticate.
	ErrInvalidWaitTimeout = errors.New("invalid wait timeout: must be positive")

	// ErrInvalidStay is returned when the dashboard stay duration is negative.
	// Use 0 to harvest immediately after the dashboard loads.
	ErrInvalidStay = errors.New("invalid stay duration: must be non-negative")

	// ErrInvalidFormat is returned when the output format is not one of
	// json, csv, txt, or md.
	ErrInvalidFormat = errors.New("invalid output format: must be json, csv, txt, or md")

	// ErrNoOutputFile is returned when the output file path is empty.
	ErrNoOutputFile = errors.New("no output file specified")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	// A negative delay is invalid; use 0 for no delay between page visits.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidConcurrency is returned when the tab concurrency is not
	// positive. A concurrency of zero would mean no pages get visited.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidCrawlDepth is returned when the crawl depth is negative.
	// Depth 0 means only the dashboard itself is harvested.
	ErrInvalidCrawlDepth = errors.New("invalid crawl depth: must be non-negative")

	// ErrInvalidMaxPages is returned when the page limit is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")
)
