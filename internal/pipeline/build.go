package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/epscrapper/epscrapper/internal/browser"
	"github.com/epscrapper/epscrapper/internal/collector"
	"github.com/epscrapper/epscrapper/internal/config"
	"github.com/epscrapper/epscrapper/internal/origin"
)

// NewScrapePipeline assembles the standard scrape pipeline for a launched
// browser session: login, settle, harvest, and optionally crawl.
//
// Design decision: Pipeline assembly lives here rather than in the CLI
// because attaching the network recorder to the login tab must happen before
// the login page loads, and keeping that ordering in one place prevents the
// CLI from getting it wrong.
//
// Site-specific settings (cookie, headers, stay, depth, URL patterns) are
// taken from site, which the caller resolves from the config file for the
// dashboard's host.
func NewScrapePipeline(session *browser.Session, cfg *config.Config, site config.SiteConfig, logger *slog.Logger) (*Pipeline, error) {
	scrapeOrigin, err := origin.Of(cfg.DashboardURL)
	if err != nil {
		return nil, fmt.Errorf("invalid dashboard URL: %w", err)
	}

	tab := session.FirstTab()

	recorderOpts := make([]collector.RecorderOption, 0, 2)
	if cfg.SameOriginOnly {
		recorderOpts = append(recorderOpts, collector.WithOrigin(scrapeOrigin))
	}
	if !cfg.IncludeStatic {
		recorderOpts = append(recorderOpts, collector.WithAPIOnly())
	}
	recorder := collector.NewRecorder(recorderOpts...)

	// Attach before the login page loads so its requests are captured too.
	tab.Listen(recorder.Listener())

	if site.Cookie != "" {
		if err := tab.SetCookies(site.Cookie, cfg.LoginURL); err != nil {
			return nil, fmt.Errorf("set cookies: %w", err)
		}
	}
	if len(site.Headers) > 0 {
		if err := tab.SetExtraHeaders(site.Headers); err != nil {
			return nil, fmt.Errorf("set headers: %w", err)
		}
	}

	stay := cfg.Stay
	if site.StaySeconds > 0 {
		stay = time.Duration(site.StaySeconds) * time.Second
	}
	depth := cfg.CrawlDepth
	if site.Depth > 0 {
		depth = site.Depth
	}

	p := New(WithLogger(logger))
	p.AddSteps(
		NewLoginStep(tab, recorder, cfg.LoginURL, cfg.DashboardURL,
			WithWaitTimeout(cfg.WaitTimeout),
			WithLoginLogger(logger),
		),
		NewSettleStep(tab, stay, WithSettleLogger(logger)),
		NewHarvestStep(tab, recorder,
			WithSameOriginOnly(cfg.SameOriginOnly),
			WithIncludeStatic(cfg.IncludeStatic),
			WithHarvestLogger(logger),
		),
	)

	if cfg.Crawl {
		visitor := NewTabVisitor(session, scrapeOrigin,
			WithVisitorSameOriginOnly(cfg.SameOriginOnly),
			WithVisitorIncludeStatic(cfg.IncludeStatic),
			WithVisitorCookie(site.Cookie),
			WithVisitorHeaders(site.Headers),
			WithVisitorLogger(logger),
		)
		p.AddStep(NewCrawlStep(visitor,
			WithCrawlMaxDepth(depth),
			WithCrawlMaxPages(cfg.MaxPages),
			WithCrawlDelay(cfg.CrawlDelay),
			WithCrawlConcurrency(cfg.Concurrency),
			WithCrawlIgnorePatterns(site.IgnorePatterns),
			WithCrawlFollowPatterns(site.FollowPatterns),
			WithCrawlLogger(logger),
		))
	}

	return p, nil
}
