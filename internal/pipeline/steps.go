package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/epscrapper/epscrapper/internal/browser"
	"github.com/epscrapper/epscrapper/internal/collector"
	"github.com/epscrapper/epscrapper/internal/config"
	"github.com/epscrapper/epscrapper/internal/crawler"
	"github.com/epscrapper/epscrapper/internal/model"
	"github.com/epscrapper/epscrapper/internal/origin"
)

// loginTab is the subset of browser.Tab the login step needs.
// Steps depend on this interface rather than the concrete type so the
// pipeline is testable without launching Chrome.
type loginTab interface {
	Navigate(url string, timeout time.Duration) error
	WaitForURL(timeout, poll time.Duration, match func(string) bool) (string, error)
}

// harvestTab is the subset of browser.Tab the settle and harvest steps need.
type harvestTab interface {
	Location() (string, error)
	HTML(timeout time.Duration) (string, error)
	ScrollToBottom() error
	ScrollToTop() error
}

// LoginStep opens the login page and waits for the browser to land on the
// dashboard URL. The user completes authentication by hand in the browser
// window; this step only watches the address bar.
//
// Design decision: We detect login completion by URL rather than by DOM
// element because the dashboard URL is something the operator already knows,
// while a reliable post-login selector differs per application and would
// need per-site configuration.
type LoginStep struct {
	// tab is the browser tab the login page opens in.
	tab loginTab

	// recorder receives page attribution updates as the login progresses.
	recorder *collector.Recorder

	// loginURL is the page where authentication starts.
	loginURL string

	// dashboardURL is the URL (or URL prefix) that signals success.
	dashboardURL string

	// waitTimeout bounds the whole login flow.
	waitTimeout time.Duration

	// poll is how often the current URL is sampled.
	poll time.Duration

	// navTimeout bounds the initial navigation to the login page.
	navTimeout time.Duration

	// logger for structured logging.
	logger *slog.Logger
}

// LoginStepOption configures a LoginStep.
type LoginStepOption func(*LoginStep)

// WithWaitTimeout sets the maximum time to wait for the dashboard URL.
func WithWaitTimeout(d time.Duration) LoginStepOption {
	return func(s *LoginStep) {
		s.waitTimeout = d
	}
}

// WithPollInterval sets how often the current URL is checked.
func WithPollInterval(d time.Duration) LoginStepOption {
	return func(s *LoginStep) {
		s.poll = d
	}
}

// WithLoginLogger sets a custom logger for the login step.
func WithLoginLogger(logger *slog.Logger) LoginStepOption {
	return func(s *LoginStep) {
		s.logger = logger
	}
}

// NewLoginStep creates a login step. The recorder may be nil when no network
// interception is attached to the login tab.
func NewLoginStep(tab loginTab, recorder *collector.Recorder, loginURL, dashboardURL string, opts ...LoginStepOption) *LoginStep {
	s := &LoginStep{
		tab:          tab,
		recorder:     recorder,
		loginURL:     loginURL,
		dashboardURL: dashboardURL,
		waitTimeout:  config.DefaultWaitTimeout,
		poll:         config.DefaultDashboardPoll,
		navTimeout:   config.DefaultNavTimeout,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *LoginStep) Name() string {
	return "login"
}

// Do executes the login step.
// On timeout the report is marked TimedOut and the error is returned, which
// aborts the pipeline: without an authenticated session there is nothing to
// harvest.
func (s *LoginStep) Do(ctx context.Context, report *model.ScrapeReport) error {
	report.LoginURL = s.loginURL

	if s.recorder != nil {
		s.recorder.SetPage(s.loginURL)
	}

	if err := s.tab.Navigate(s.loginURL, s.navTimeout); err != nil {
		return err
	}

	s.logger.Info("waiting for login to complete",
		"login_url", s.loginURL,
		"dashboard_url", s.dashboardURL,
		"timeout", s.waitTimeout,
	)

	start := time.Now()
	landed, err := s.tab.WaitForURL(s.waitTimeout, s.poll, func(current string) bool {
		return origin.MatchesDashboard(current, s.dashboardURL)
	})
	report.AuthDuration = time.Since(start)

	if err != nil {
		if errors.Is(err, browser.ErrWaitTimeout) {
			report.TimedOut = true
		}
		report.LandedURL = landed
		return err
	}

	report.LandedURL = landed
	if s.recorder != nil {
		s.recorder.SetPage(landed)
	}

	s.logger.Info("login completed",
		"landed_url", landed,
		"duration", report.AuthDuration,
	)
	return nil
}

// SettleStep keeps the dashboard open for a while after login so single-page
// applications fire their initial burst of API requests. The page is scrolled
// to the bottom and back to trigger lazy-loaded content.
type SettleStep struct {
	// tab is the dashboard tab.
	tab harvestTab

	// stay is how long to remain on the page.
	stay time.Duration

	// logger for structured logging.
	logger *slog.Logger
}

// SettleStepOption configures a SettleStep.
type SettleStepOption func(*SettleStep)

// WithSettleLogger sets a custom logger for the settle step.
func WithSettleLogger(logger *slog.Logger) SettleStepOption {
	return func(s *SettleStep) {
		s.logger = logger
	}
}

// NewSettleStep creates a settle step that stays on the page for the given
// duration.
func NewSettleStep(tab harvestTab, stay time.Duration, opts ...SettleStepOption) *SettleStep {
	s := &SettleStep{
		tab:    tab,
		stay:   stay,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *SettleStep) Name() string {
	return "settle"
}

// Do executes the settle step.
// Scroll failures are logged but not fatal; a page that refuses to scroll
// can still be harvested.
func (s *SettleStep) Do(ctx context.Context, _ *model.ScrapeReport) error {
	if err := s.tab.ScrollToBottom(); err != nil {
		s.logger.Debug("scroll to bottom failed", "error", err)
	}

	if s.stay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.stay):
		}
	}

	if err := s.tab.ScrollToTop(); err != nil {
		s.logger.Debug("scroll to top failed", "error", err)
	}

	return nil
}

// HarvestStep collects endpoints from the current page: URL-bearing DOM
// attributes parsed out of the rendered HTML, plus every network request the
// recorder intercepted since the scrape began.
type HarvestStep struct {
	// tab is the dashboard tab.
	tab harvestTab

	// recorder holds the intercepted network requests.
	recorder *collector.Recorder

	// sameOriginOnly drops DOM endpoints outside the report's origin.
	// Network endpoints are filtered by the recorder itself.
	sameOriginOnly bool

	// includeStatic keeps script, image, and stylesheet references.
	// When false only anchors and form actions are kept.
	includeStatic bool

	// htmlTimeout bounds reading the rendered HTML.
	htmlTimeout time.Duration

	// logger for structured logging.
	logger *slog.Logger
}

// HarvestStepOption configures a HarvestStep.
type HarvestStepOption func(*HarvestStep)

// WithSameOriginOnly restricts harvested DOM endpoints to the scrape origin.
func WithSameOriginOnly(on bool) HarvestStepOption {
	return func(s *HarvestStep) {
		s.sameOriginOnly = on
	}
}

// WithIncludeStatic controls whether static asset references are harvested.
func WithIncludeStatic(on bool) HarvestStepOption {
	return func(s *HarvestStep) {
		s.includeStatic = on
	}
}

// WithHarvestLogger sets a custom logger for the harvest step.
func WithHarvestLogger(logger *slog.Logger) HarvestStepOption {
	return func(s *HarvestStep) {
		s.logger = logger
	}
}

// NewHarvestStep creates a harvest step reading from the given tab and
// recorder.
func NewHarvestStep(tab harvestTab, recorder *collector.Recorder, opts ...HarvestStepOption) *HarvestStep {
	s := &HarvestStep{
		tab:            tab,
		recorder:       recorder,
		sameOriginOnly: true,
		includeStatic:  true,
		htmlTimeout:    config.DefaultNavTimeout,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *HarvestStep) Name() string {
	return "harvest"
}

// Do executes the harvest step.
func (s *HarvestStep) Do(ctx context.Context, report *model.ScrapeReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	pageURL, err := s.tab.Location()
	if err != nil || pageURL == "" {
		// The address bar read can race a late redirect; fall back to
		// the URL the login step recorded.
		pageURL = report.LandedURL
	}

	content, err := s.tab.HTML(s.htmlTimeout)
	if err != nil {
		return err
	}

	parser, err := collector.NewParser(pageURL)
	if err != nil {
		return err
	}

	parsed, err := parser.Parse(strings.NewReader(content))
	if err != nil {
		return err
	}

	domAdded := report.AddEndpoints(
		filterDOMEndpoints(parsed.Endpoints, report.Origin, s.sameOriginOnly, s.includeStatic))
	netAdded := report.AddEndpoints(s.recorder.Drain())
	report.PagesVisited++

	s.logger.Info("page harvested",
		"page", pageURL,
		"title", parsed.Title,
		"dom_endpoints", domAdded,
		"network_endpoints", netAdded,
	)
	return nil
}

// staticDOMTypes are DOM endpoint types dropped when static assets are
// excluded. Anchors and form actions are always kept since they are
// navigable application surface.
var staticDOMTypes = map[string]bool{
	model.TypeScript: true,
	model.TypeImage:  true,
	model.TypeLink:   true,
}

// filterDOMEndpoints applies the origin and static-asset filters to DOM
// endpoints. Network endpoints never pass through here; the recorder filters
// them at interception time.
func filterDOMEndpoints(eps []model.Endpoint, scrapeOrigin string, sameOriginOnly, includeStatic bool) []model.Endpoint {
	out := make([]model.Endpoint, 0, len(eps))
	for _, ep := range eps {
		if sameOriginOnly && !origin.IsSame(ep.URL, scrapeOrigin) {
			continue
		}
		if !includeStatic && staticDOMTypes[ep.Type] {
			continue
		}
		out = append(out, ep)
	}
	return out
}

// CrawlStep walks same-origin links breadth-first from the landed dashboard,
// harvesting each visited page through the visitor.
//
// Design decision: The crawl re-visits the dashboard as its starting page
// rather than seeding from the harvest step's links. Re-loading one page is
// cheap, deduplication absorbs the repeated endpoints, and the two steps stay
// independent.
type CrawlStep struct {
	// visitor loads pages in the authenticated browser session.
	visitor crawler.Visitor

	// maxDepth limits crawl recursion.
	maxDepth int

	// maxPages limits total pages to visit.
	maxPages int

	// delay between page visits for politeness.
	delay time.Duration

	// concurrency is the number of tabs used in parallel.
	concurrency int

	// ignorePatterns are URL path patterns to skip during crawling.
	ignorePatterns []string

	// followPatterns are URL path patterns to follow during crawling.
	followPatterns []string

	// logger for structured logging.
	logger *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlMaxDepth sets the maximum crawl depth.
func WithCrawlMaxDepth(depth int) CrawlStepOption {
	return func(s *CrawlStep) {
		s.maxDepth = depth
	}
}

// WithCrawlMaxPages sets the maximum pages to visit.
func WithCrawlMaxPages(maxPages int) CrawlStepOption {
	return func(s *CrawlStep) {
		s.maxPages = maxPages
	}
}

// WithCrawlDelay sets the delay between page visits.
func WithCrawlDelay(d time.Duration) CrawlStepOption {
	return func(s *CrawlStep) {
		s.delay = d
	}
}

// WithCrawlConcurrency sets the number of tabs used in parallel.
func WithCrawlConcurrency(n int) CrawlStepOption {
	return func(s *CrawlStep) {
		s.concurrency = n
	}
}

// WithCrawlIgnorePatterns sets URL path patterns to skip during crawling.
func WithCrawlIgnorePatterns(patterns []string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.ignorePatterns = patterns
	}
}

// WithCrawlFollowPatterns sets URL path patterns to follow during crawling.
func WithCrawlFollowPatterns(patterns []string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.followPatterns = patterns
	}
}

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawl step using the given visitor.
func NewCrawlStep(visitor crawler.Visitor, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		visitor:     visitor,
		maxDepth:    config.DefaultCrawlDepth,
		maxPages:    config.DefaultMaxPages,
		delay:       config.DefaultCrawlDelay,
		concurrency: config.DefaultConcurrency,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do executes the crawl step.
func (s *CrawlStep) Do(ctx context.Context, report *model.ScrapeReport) error {
	startURL := report.LandedURL
	if startURL == "" {
		startURL = report.DashboardURL
	}

	spiderOpts := []crawler.SpiderOption{
		crawler.WithMaxDepth(s.maxDepth),
		crawler.WithMaxPages(s.maxPages),
		crawler.WithDelay(s.delay),
		crawler.WithConcurrency(s.concurrency),
		crawler.WithSpiderLogger(s.logger),
	}
	if len(s.ignorePatterns) > 0 {
		spiderOpts = append(spiderOpts, crawler.WithIgnorePatterns(s.ignorePatterns))
	}
	if len(s.followPatterns) > 0 {
		spiderOpts = append(spiderOpts, crawler.WithFollowPatterns(s.followPatterns))
	}

	spider := crawler.NewSpider(s.visitor, report.Origin, spiderOpts...)

	endpoints, err := spider.Crawl(ctx, startURL)

	// Keep whatever the crawl collected even when it was cut short.
	added := report.AddEndpoints(endpoints)
	stats := spider.Stats()
	// The starting page was already counted by the harvest step.
	if stats.PagesVisited > 1 {
		report.PagesVisited += stats.PagesVisited - 1
	}

	s.logger.Info("crawl completed",
		"pages_visited", stats.PagesVisited,
		"urls_seen", stats.URLsSeen,
		"new_endpoints", added,
	)

	return err
}
