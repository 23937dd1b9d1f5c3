package collector

import (
	"strings"
	"sync"

	"github.com/chromedp/cdproto/network"

	"github.com/epscrapper/epscrapper/internal/model"
	"github.com/epscrapper/epscrapper/internal/origin"
)

// Recorder captures network request URLs intercepted from the browser.
// It is fed request-will-be-sent events and accumulates one endpoint per
// request, tagged with the HTTP method, the browser's resource type, and
// the page that was current when the request fired.
//
// Design decision: The recorder holds raw events only; origin and
// API-likeness filtering happen at record time via options so that a
// filtered-out request never allocates an endpoint. Deduplication is NOT
// done here because the scrape report owns first-seen ordering across all
// sources.
type Recorder struct {
	mu        sync.Mutex
	endpoints []model.Endpoint
	page      string

	// filterOrigin, when non-empty, drops requests to other origins.
	filterOrigin string

	// apiOnly drops requests that do not look like API calls.
	apiOnly bool
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithOrigin restricts recording to requests sharing the given origin.
func WithOrigin(o string) RecorderOption {
	return func(r *Recorder) {
		r.filterOrigin = o
	}
}

// WithAPIOnly drops static assets, keeping only xhr/fetch/document requests
// and URLs whose path looks like an API route.
func WithAPIOnly() RecorderOption {
	return func(r *Recorder) {
		r.apiOnly = true
	}
}

// NewRecorder creates a network request recorder.
func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{
		endpoints: make([]model.Endpoint, 0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetPage records the URL of the page currently being visited.
// Subsequent requests are attributed to this page.
func (r *Recorder) SetPage(pageURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.page = pageURL
}

// Listener returns a callback suitable for chromedp.ListenTarget.
// It reacts to request-will-be-sent events and ignores everything else.
// The callback must not block; chromedp dispatches events serially.
func (r *Recorder) Listener() func(ev any) {
	return func(ev any) {
		if e, ok := ev.(*network.EventRequestWillBeSent); ok {
			r.record(e)
		}
	}
}

// record applies the configured filters and stores the request.
func (r *Recorder) record(ev *network.EventRequestWillBeSent) {
	if ev.Request == nil || ev.Request.URL == "" {
		return
	}

	rawURL := ev.Request.URL
	resourceType := strings.ToLower(string(ev.Type))

	if r.filterOrigin != "" && !origin.IsSame(rawURL, r.filterOrigin) {
		return
	}
	if r.apiOnly && !origin.IsAPILike(resourceType, rawURL) {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints = append(r.endpoints, model.Endpoint{
		URL:    rawURL,
		Source: model.SourceNetwork,
		Type:   resourceType,
		Method: ev.Request.Method,
		Page:   r.page,
	})
}

// Drain returns all endpoints recorded so far and resets the recorder.
// Called once per page visit so each page's requests are attributed
// before the next navigation begins.
func (r *Recorder) Drain() []model.Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.endpoints
	r.endpoints = make([]model.Endpoint, 0)
	return out
}

// Len returns the number of endpoints currently held.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.endpoints)
}
