package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/epscrapper/epscrapper/internal/browser"
	"github.com/epscrapper/epscrapper/internal/collector"
	"github.com/epscrapper/epscrapper/internal/config"
	"github.com/epscrapper/epscrapper/internal/crawler"
)

// TabVisitor implements crawler.Visitor on top of a browser session.
// Each visit opens a fresh tab sharing the session's authenticated cookies,
// records the page's network requests, parses its rendered DOM, and closes
// the tab.
//
// Design decision: One tab per visit rather than a reused tab pool. Tabs are
// cheap next to page loads, and a fresh tab guarantees that request events
// cannot bleed between pages visited concurrently.
type TabVisitor struct {
	// session is the authenticated browser session.
	session *browser.Session

	// crawlOrigin restricts recorded network requests when sameOriginOnly
	// is set.
	crawlOrigin string

	// navTimeout bounds each page navigation and HTML read.
	navTimeout time.Duration

	// settle is how long to stay on each page before harvesting. Shorter
	// than the dashboard stay; crawled pages rarely need a full SPA warmup.
	settle time.Duration

	// sameOriginOnly drops endpoints outside crawlOrigin.
	sameOriginOnly bool

	// includeStatic keeps script, image, and stylesheet references.
	includeStatic bool

	// cookieHeader, when non-empty, is installed into each tab before
	// navigation. Used for pre-authenticated headless runs.
	cookieHeader string

	// extraHeaders are attached to every request each tab sends.
	extraHeaders map[string]string

	// logger for structured logging.
	logger *slog.Logger
}

// TabVisitorOption configures a TabVisitor.
type TabVisitorOption func(*TabVisitor)

// WithVisitorNavTimeout sets the per-page navigation timeout.
func WithVisitorNavTimeout(d time.Duration) TabVisitorOption {
	return func(v *TabVisitor) {
		v.navTimeout = d
	}
}

// WithVisitorSettle sets how long to stay on each page before harvesting.
func WithVisitorSettle(d time.Duration) TabVisitorOption {
	return func(v *TabVisitor) {
		v.settle = d
	}
}

// WithVisitorSameOriginOnly restricts recorded endpoints to the crawl origin.
func WithVisitorSameOriginOnly(on bool) TabVisitorOption {
	return func(v *TabVisitor) {
		v.sameOriginOnly = on
	}
}

// WithVisitorIncludeStatic controls whether static asset references are kept.
func WithVisitorIncludeStatic(on bool) TabVisitorOption {
	return func(v *TabVisitor) {
		v.includeStatic = on
	}
}

// WithVisitorCookie installs cookies from a "name=value; ..." header string
// into each tab before navigation.
func WithVisitorCookie(cookieHeader string) TabVisitorOption {
	return func(v *TabVisitor) {
		v.cookieHeader = cookieHeader
	}
}

// WithVisitorHeaders attaches extra headers to every request each tab sends.
func WithVisitorHeaders(headers map[string]string) TabVisitorOption {
	return func(v *TabVisitor) {
		v.extraHeaders = headers
	}
}

// WithVisitorLogger sets a custom logger for the visitor.
func WithVisitorLogger(logger *slog.Logger) TabVisitorOption {
	return func(v *TabVisitor) {
		v.logger = logger
	}
}

// NewTabVisitor creates a visitor opening tabs in the given session.
// crawlOrigin is the authenticated origin that same-origin filtering is
// relative to.
func NewTabVisitor(session *browser.Session, crawlOrigin string, opts ...TabVisitorOption) *TabVisitor {
	v := &TabVisitor{
		session:        session,
		crawlOrigin:    crawlOrigin,
		navTimeout:     config.DefaultNavTimeout,
		settle:         2 * time.Second,
		sameOriginOnly: true,
		includeStatic:  true,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Visit loads pageURL in a new tab and returns the endpoints observed there
// plus the same-origin links found in its DOM.
func (v *TabVisitor) Visit(ctx context.Context, pageURL string) (*crawler.VisitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tab, err := v.session.NewTab()
	if err != nil {
		return nil, err
	}
	defer tab.Close()

	recorderOpts := make([]collector.RecorderOption, 0, 2)
	if v.sameOriginOnly {
		recorderOpts = append(recorderOpts, collector.WithOrigin(v.crawlOrigin))
	}
	if !v.includeStatic {
		recorderOpts = append(recorderOpts, collector.WithAPIOnly())
	}
	recorder := collector.NewRecorder(recorderOpts...)
	recorder.SetPage(pageURL)

	// The listener must be attached before navigation or the initial burst
	// of requests is lost.
	tab.Listen(recorder.Listener())

	if v.cookieHeader != "" {
		if err := tab.SetCookies(v.cookieHeader, pageURL); err != nil {
			return nil, err
		}
	}
	if len(v.extraHeaders) > 0 {
		if err := tab.SetExtraHeaders(v.extraHeaders); err != nil {
			return nil, err
		}
	}

	if err := tab.Navigate(pageURL, v.navTimeout); err != nil {
		return nil, err
	}

	if err := tab.ScrollToBottom(); err != nil {
		v.logger.Debug("scroll failed", "url", pageURL, "error", err)
	}
	if v.settle > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(v.settle):
		}
	}

	content, err := tab.HTML(v.navTimeout)
	if err != nil {
		return nil, err
	}

	parser, err := collector.NewParser(pageURL)
	if err != nil {
		return nil, err
	}
	parsed, err := parser.Parse(strings.NewReader(content))
	if err != nil {
		return nil, err
	}

	endpoints := filterDOMEndpoints(parsed.Endpoints, v.crawlOrigin, v.sameOriginOnly, v.includeStatic)
	endpoints = append(endpoints, recorder.Drain()...)

	return &crawler.VisitResult{
		Endpoints: endpoints,
		Links:     parsed.SameOriginLinks,
	}, nil
}
