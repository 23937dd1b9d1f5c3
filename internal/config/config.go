package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These values are chosen around interactive login sessions: the user
// completes authentication by hand in a visible browser window, so waits
// are generous and the browser is headed by default.
const (
	// DefaultWaitTimeout is the maximum time to wait for the user to finish
	// logging in and land on the dashboard URL. 15 minutes is generous enough
	// for multi-factor flows, email magic links, and CAPTCHA solving.
	DefaultWaitTimeout = 900 * time.Second

	// DefaultDashboardPoll is how often the browser's current URL is checked
	// against the dashboard URL while waiting for login to complete.
	DefaultDashboardPoll = 500 * time.Millisecond

	// DefaultStay is how long to remain on the dashboard after login before
	// harvesting, giving single-page applications time to fire their initial
	// burst of API requests. The page is scrolled during this window to
	// trigger lazy-loaded content.
	DefaultStay = 8 * time.Second

	// DefaultNavTimeout is the timeout for a single page navigation during
	// crawling. Authenticated dashboards can be slow to first paint, so this
	// is more generous than a typical HTTP client timeout.
	DefaultNavTimeout = 60 * time.Second

	// DefaultCrawlDepth of 2 covers the dashboard plus the pages it links to.
	// Depth 0 means harvest only the dashboard itself. Deeper crawls find
	// more endpoints but multiply session time; override via --depth.
	DefaultCrawlDepth = 2

	// DefaultMaxPages is the maximum number of pages to visit per session.
	// This prevents runaway crawling on large or infinitely-generating sites.
	// Users can override this via the --max-pages CLI flag.
	DefaultMaxPages = 50

	// DefaultCrawlDelay is the delay between page visits during crawling.
	// This is a politeness setting: the session is authenticated, so
	// aggressive crawling risks rate limits or account lockout.
	DefaultCrawlDelay = 1 * time.Second

	// DefaultConcurrency is the number of browser tabs used during crawling.
	// The login session lives in one browser profile, so tabs share cookies.
	// Higher values speed up crawls but make the traffic pattern obvious.
	DefaultConcurrency = 2

	// AppName is the application name used for XDG directory paths.
	AppName = "epscrapper"

	// DefaultFormat is the output format when --format is not specified.
	DefaultFormat = "json"

	// DefaultOutputFile is the output path when --output is not specified.
	DefaultOutputFile = "endpoints.json"
)

// Output formats accepted by the --format flag.
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatPlain    = "txt"
	FormatMarkdown = "md"
)

// Config holds all configuration options for a scrape session.
// This struct is designed to be populated from CLI flags and passed through
// the application via dependency injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., BrowserConfig, CrawlConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant benefit.
// If the configuration grows significantly, consider refactoring into sub-structs.
type Config struct {
	// LoginURL is the page where the user authenticates. The scheme defaults
	// to https when omitted. This is the first page the browser opens.
	LoginURL string

	// DashboardURL is the post-login URL that signals authentication
	// succeeded. The wait ends when the browser's current URL equals this
	// value or starts with it (covering query strings and sub-paths).
	DashboardURL string

	// WaitTimeout is the maximum time to wait for the dashboard URL after
	// opening the login page. When it elapses the session is abandoned and
	// nothing is harvested.
	WaitTimeout time.Duration

	// Stay is how long to remain on the dashboard before harvesting.
	Stay time.Duration

	// Headless runs the browser without a visible window. Login must then be
	// satisfiable without human input (e.g., an already-authenticated
	// profile directory or injected cookies).
	Headless bool

	// ProfileDir is the browser user-data directory. Reusing a directory
	// across runs preserves cookies, so a second run may skip login
	// entirely. When empty, a throwaway profile is used.
	ProfileDir string

	// UserAgent overrides the browser's User-Agent header when non-empty.
	UserAgent string

	// IgnoreCertErrors makes the browser accept invalid TLS certificates.
	// Off by default; enable for targets with self-signed certificates.
	IgnoreCertErrors bool

	// SameOriginOnly restricts recorded endpoints to the dashboard's origin.
	// Enabled by default; --any-origin disables it so third-party API hosts
	// are captured too.
	SameOriginOnly bool

	// IncludeStatic records every intercepted network URL. When false, only
	// API-like requests are kept (xhr/fetch/document resource types, or URLs
	// whose path looks like an API route).
	IncludeStatic bool

	// Crawl enables breadth-first crawling of same-origin links found on the
	// dashboard after the initial harvest.
	Crawl bool

	// CrawlDepth is the maximum link depth to follow from the dashboard.
	// Depth 0 means only harvest the dashboard. Only used when Crawl is set.
	CrawlDepth int

	// MaxPages is the maximum number of pages to visit per session.
	// This prevents runaway crawling on large or infinitely-generating sites.
	MaxPages int

	// CrawlDelay is the delay between page visits during crawling.
	CrawlDelay time.Duration

	// Concurrency is the number of browser tabs used during crawling.
	Concurrency int

	// Format selects the output file format: json, csv, txt, or md.
	Format string

	// OutputFile is the path the collected endpoints are written to.
	// Parent directories are created automatically if they don't exist.
	OutputFile string

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .epscrapper in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds site-specific configurations loaded from the config
	// file. This is populated by LoadConfigFile and consulted per origin.
	SiteConfigs *File

	// DBDir is the directory path for storing the SQLite history database.
	// When set, session results are saved for historical comparison via the
	// diff command. Defaults to XDG data directory.
	DBDir string

	// SaveToDB indicates whether to save session results to the database.
	// Set to false via --no-save for one-off scrapes.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use cases.
// Users can override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., timeouts) and some
// booleans default to true (SameOriginOnly, IncludeStatic).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		WaitTimeout:    DefaultWaitTimeout,
		Stay:           DefaultStay,
		SameOriginOnly: true,
		IncludeStatic:  true,
		CrawlDepth:     DefaultCrawlDepth,
		MaxPages:       DefaultMaxPages,
		CrawlDelay:     DefaultCrawlDelay,
		Concurrency:    DefaultConcurrency,
		Format:         DefaultFormat,
		OutputFile:     DefaultOutputFile,
		SaveToDB:       true,
		DBDir:          XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for epscrapper.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.local/share/epscrapper
// On macOS: ~/Library/Application Support/epscrapper
// On Windows: %LOCALAPPDATA%\epscrapper
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for epscrapper.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.config/epscrapper
// On macOS: ~/Library/Application Support/epscrapper
// On Windows: %APPDATA%\epscrapper
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for epscrapper.
// Browser profile directories created by --profile-dir auto live here.
// On Linux: ~/.cache/epscrapper
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// validFormats is consulted by Validate; keep in sync with the Format* constants.
var validFormats = map[string]bool{
	FormatJSON:     true,
	FormatCSV:      true,
	FormatPlain:    true,
	FormatMarkdown: true,
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after CLI parsing, before the browser is launched.
//
// We chose to return the first error found rather than collecting all errors
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	// Both URLs are required; without a dashboard URL there is no way to
	// know when login finished.
	if c.LoginURL == "" {
		return ErrNoLoginURL
	}
	if c.DashboardURL == "" {
		return ErrNoDashboardURL
	}

	// WaitTimeout must be positive; zero would abandon the session before
	// the login page even loads.
	if c.WaitTimeout <= 0 {
		return ErrInvalidWaitTimeout
	}

	// Stay must be non-negative; zero means harvest immediately.
	if c.Stay < 0 {
		return ErrInvalidStay
	}

	if !validFormats[c.Format] {
		return ErrInvalidFormat
	}

	if c.OutputFile == "" {
		return ErrNoOutputFile
	}

	// CrawlDelay must be non-negative
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}

	// Concurrency must be positive; zero tabs would mean no crawling
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.CrawlDepth < 0 {
		return ErrInvalidCrawlDepth
	}

	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}

	return nil
}
