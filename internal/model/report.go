package model

import (
	"time"
)

// ScrapeReport is the main scrape result structure.
// It accumulates endpoints as the pipeline steps run and carries enough
// context (origin, URLs, timing) for report writers and the history database.
//
// Design decision: endpoints are deduplicated at insertion time rather than
// in a final pass because several steps append concurrently discovered URLs
// and every consumer (writers, database, diff) expects the list to already be
// unique and in first-seen order.
type ScrapeReport struct {
	// Origin is the authenticated origin (scheme://host) of the dashboard.
	// All same-origin filtering is relative to this value.
	Origin string `json:"origin"`

	// LoginURL is the page where authentication started.
	LoginURL string `json:"login_url"`

	// DashboardURL is the configured post-login landing page.
	DashboardURL string `json:"dashboard_url"`

	// LandedURL is the URL the browser actually ended up on when the
	// dashboard wait completed. It may differ from DashboardURL by query
	// parameters or a deeper path.
	LandedURL string `json:"landed_url,omitempty"`

	// DateScraped is when the scrape started.
	DateScraped time.Time `json:"date_scraped"`

	// AuthDuration is how long the login-to-dashboard wait took.
	AuthDuration time.Duration `json:"auth_duration_ns,omitempty"`

	// PagesVisited counts pages that contributed endpoints, including the
	// dashboard itself.
	PagesVisited int `json:"pages_visited"`

	// Endpoints is the deduplicated, first-seen-ordered endpoint list.
	Endpoints []Endpoint `json:"endpoints"`

	// TimedOut indicates the scrape was cut short by the wait timeout or
	// by context cancellation. Collected endpoints are still valid.
	TimedOut bool `json:"timed_out,omitempty"`

	// ErrorMessage holds the failure description when a step failed.
	ErrorMessage string `json:"error,omitempty"`

	// Error is the underlying error. Excluded from JSON; use ErrorMessage.
	Error error `json:"-"`

	// seen tracks endpoint URLs already recorded, for insertion-time
	// deduplication.
	seen map[string]bool
}

// NewScrapeReport creates a report for the given authenticated origin.
func NewScrapeReport(origin string) *ScrapeReport {
	return &ScrapeReport{
		Origin:      origin,
		DateScraped: time.Now(),
		Endpoints:   make([]Endpoint, 0),
		seen:        make(map[string]bool),
	}
}

// AddEndpoint records an endpoint unless its URL was already recorded.
// It reports whether the endpoint was added. The first observation of a URL
// wins; later duplicates (even from a different source) are dropped.
func (r *ScrapeReport) AddEndpoint(ep Endpoint) bool {
	if ep.URL == "" {
		return false
	}

	if r.seen == nil {
		r.seen = make(map[string]bool, len(r.Endpoints))
		for _, e := range r.Endpoints {
			r.seen[e.URL] = true
		}
	}

	if r.seen[ep.URL] {
		return false
	}

	r.seen[ep.URL] = true
	r.Endpoints = append(r.Endpoints, ep)
	return true
}

// AddEndpoints records a batch of endpoints and returns how many were new.
func (r *ScrapeReport) AddEndpoints(eps []Endpoint) int {
	added := 0
	for _, ep := range eps {
		if r.AddEndpoint(ep) {
			added++
		}
	}
	return added
}

// SetError records a step failure on the report.
func (r *ScrapeReport) SetError(err error) {
	if err == nil {
		return
	}
	r.Error = err
	r.ErrorMessage = err.Error()
}

// Summary contains endpoint counters for terminal output.
type Summary struct {
	// Total is the number of unique endpoints.
	Total int `json:"total"`

	// DOM is the number of endpoints discovered in page markup.
	DOM int `json:"dom"`

	// Network is the number of endpoints observed as network requests.
	Network int `json:"network"`

	// PagesVisited is carried over from the report.
	PagesVisited int `json:"pages_visited"`
}

// Summarize computes per-source endpoint counters.
func (r *ScrapeReport) Summarize() Summary {
	s := Summary{
		Total:        len(r.Endpoints),
		PagesVisited: r.PagesVisited,
	}

	for _, ep := range r.Endpoints {
		switch ep.Source {
		case SourceDOM:
			s.DOM++
		case SourceNetwork:
			s.Network++
		}
	}

	return s
}
