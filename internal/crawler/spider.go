package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/epscrapper/epscrapper/internal/model"
	"github.com/epscrapper/epscrapper/internal/origin"
)

// Visitor loads a single page in the authenticated browser session and
// returns what it found there. The crawler never touches the browser
// directly; it only schedules visits.
type Visitor interface {
	// Visit navigates to pageURL and returns the endpoints observed on it
	// plus the same-origin links discovered in its DOM.
	Visit(ctx context.Context, pageURL string) (*VisitResult, error)
}

// VisitResult is what a single page visit produced.
type VisitResult struct {
	// Endpoints observed while the page loaded, from both DOM attributes
	// and intercepted network requests.
	Endpoints []model.Endpoint

	// Links are same-origin URLs found in the page's DOM, candidates for
	// the next crawl level.
	Links []string
}

// Spider crawls same-origin pages breadth-first from a starting URL.
// It manages a queue of URLs to visit and respects depth and page limits.
//
// Design decision: We call it "Spider" rather than "Crawler" because:
//  1. "Spider" is the traditional term for web crawlers
//  2. Distinguishes the component from the package name
//  3. Clearer in code: crawler.NewSpider() vs crawler.NewCrawler()
type Spider struct {
	// visitor performs the actual page loads.
	visitor Visitor

	// crawlOrigin is the authenticated origin. Links outside it are never
	// followed, regardless of endpoint filtering settings.
	crawlOrigin string

	// maxDepth limits how deep to crawl from the starting URL.
	// 0 means only the starting page, 1 means one level of links, etc.
	maxDepth int

	// maxPages limits the total number of pages to visit.
	// This prevents runaway crawling on large sites.
	maxPages int

	// delay is the time each worker waits after a page visit.
	// This is a politeness setting: the session is authenticated, so
	// hammering the application risks rate limits or lockout.
	delay time.Duration

	// concurrency is the number of pages visited in parallel per level.
	concurrency int

	// ignorePatterns are URL path patterns to skip during crawling.
	// Patterns use glob syntax (e.g., "/logout*", "*.pdf").
	ignorePatterns []string

	// followPatterns are URL path patterns to follow during crawling.
	// If set, only URLs matching these patterns are crawled.
	// Empty means all URLs are allowed (subject to ignorePatterns).
	followPatterns []string

	// logger reports per-page progress and visit failures.
	logger *slog.Logger

	// visited tracks URLs already visited or queued to avoid duplicates.
	visited map[string]bool

	// mutex protects concurrent access to visited and pageCount.
	mutex sync.Mutex

	// pageCount tracks pages visited.
	pageCount int
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the maximum crawl depth.
// 0 = only the starting page, 1 = starting page plus linked pages, etc.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithMaxPages sets the maximum number of pages to visit.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithDelay sets the politeness delay after each page visit.
func WithDelay(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.delay = d
	}
}

// WithConcurrency sets how many pages are visited in parallel.
func WithConcurrency(n int) SpiderOption {
	return func(s *Spider) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/logout*", "*.pdf", "/admin/*").
// URLs matching any of these patterns will not be crawled.
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// Patterns use glob syntax (e.g., "/api/*", "/reports/*").
// If set, only URLs matching at least one pattern are crawled.
// Empty slice means all URLs are allowed (default behavior).
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithSpiderLogger sets the logger for crawl progress.
func WithSpiderLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates a new Spider crawling the given origin via the visitor.
//
// Design decision: We require an external visitor because:
//  1. Browser session ownership stays in the pipeline
//  2. The crawl algorithm is testable with a fake visitor
//  3. The spider stays free of chromedp details
func NewSpider(visitor Visitor, crawlOrigin string, opts ...SpiderOption) *Spider {
	s := &Spider{
		visitor:     visitor,
		crawlOrigin: crawlOrigin,
		maxDepth:    2,
		maxPages:    50,
		delay:       1 * time.Second,
		concurrency: 1,
		logger:      slog.Default(),
		visited:     make(map[string]bool),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Crawl visits pages breadth-first from startURL and returns every endpoint
// observed, in queue order. Pages whose visit fails are logged and skipped;
// the crawl only aborts when the context is cancelled.
//
// Design decision: Levels are processed one at a time with a bounded
// errgroup rather than a shared worker pool over a channel because
// breadth-first ordering falls out naturally: all links discovered at depth
// N are known before any page at depth N+1 loads.
func (s *Spider) Crawl(ctx context.Context, startURL string) ([]model.Endpoint, error) {
	start, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start URL: %w", err)
	}
	if start.Scheme != "http" && start.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q in start URL", start.Scheme)
	}

	endpoints := make([]model.Endpoint, 0)
	level := []string{start.String()}
	s.markVisited(start.String())

	for depth := 0; len(level) > 0 && depth <= s.maxDepth; depth++ {
		// Trim the level to the remaining page budget.
		remaining := s.maxPages - s.pages()
		if remaining <= 0 {
			break
		}
		if len(level) > remaining {
			level = level[:remaining]
		}

		results := make([]*VisitResult, len(level))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)
		for i, pageURL := range level {
			g.Go(func() error {
				res, err := s.visitor.Visit(gctx, pageURL)
				if err != nil {
					// Some pages fail to load; keep crawling.
					s.logger.Warn("page visit failed", "url", pageURL, "error", err)
				} else {
					results[i] = res
					s.addPage()
				}

				if s.delay > 0 {
					select {
					case <-gctx.Done():
						return gctx.Err()
					case <-time.After(s.delay):
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return endpoints, err
		}

		// Collect results in queue order so output is deterministic for a
		// given link structure, then build the next level.
		next := make([]string, 0)
		for i, res := range results {
			if res == nil {
				continue
			}
			endpoints = append(endpoints, res.Endpoints...)
			s.logger.Debug("page visited",
				"url", level[i], "depth", depth, "endpoints", len(res.Endpoints))

			if depth == s.maxDepth {
				continue
			}
			for _, link := range res.Links {
				if !origin.IsSame(link, s.crawlOrigin) {
					continue
				}
				if !s.shouldCrawl(link) {
					continue
				}
				if s.markVisited(link) {
					next = append(next, link)
				}
			}
		}
		level = next
	}

	return endpoints, nil
}

// markVisited records a URL as seen and reports whether it was new.
func (s *Spider) markVisited(pageURL string) bool {
	key := s.normalizeURL(pageURL)

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.visited[key] {
		return false
	}
	s.visited[key] = true
	return true
}

// addPage increments the visited page counter.
func (s *Spider) addPage() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.pageCount++
}

// pages returns the number of pages visited so far.
func (s *Spider) pages() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.pageCount
}

// normalizeURL normalizes a URL for deduplication.
//
// Design decision: We normalize URLs because:
//  1. Same page can have different URL representations
//  2. Fragment (#anchor) doesn't change content
//  3. Trailing slashes may or may not be significant
func (s *Spider) normalizeURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}

	// Remove fragment
	u.Fragment = ""

	// Normalize scheme to lowercase
	u.Scheme = strings.ToLower(u.Scheme)

	// Normalize host to lowercase
	u.Host = strings.ToLower(u.Host)

	// Normalize root path (empty path and "/" are equivalent)
	// This handles the common case where http://example.com and
	// http://example.com/ should be treated as the same URL
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}

// Stats returns current crawl statistics.
func (s *Spider) Stats() SpiderStats {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return SpiderStats{
		PagesVisited: s.pageCount,
		URLsSeen:     len(s.visited),
	}
}

// SpiderStats contains crawl statistics.
type SpiderStats struct {
	// PagesVisited is the number of pages successfully visited.
	PagesVisited int

	// URLsSeen is the number of unique URLs encountered.
	URLsSeen int
}

// shouldCrawl checks if a URL should be crawled based on ignore/follow patterns.
//
// Logic:
//  1. If URL matches any ignorePattern, skip it (return false)
//  2. If followPatterns is set and URL matches none, skip it (return false)
//  3. Otherwise, crawl it (return true)
func (s *Spider) shouldCrawl(targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	// Get the path for pattern matching
	path := u.Path
	if path == "" {
		path = "/"
	}

	// Check ignore patterns first - if matched, skip
	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	// If follow patterns are set, URL must match at least one
	if len(s.followPatterns) > 0 {
		for _, pattern := range s.followPatterns {
			if matchPattern(pattern, path) {
				return true
			}
		}
		// No follow pattern matched
		return false
	}

	// No follow patterns set, allow all (that weren't ignored)
	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ** is treated as * (single segment match for simplicity)
//   - ? to match any single character
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard", "/admin/users"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	// Handle common patterns more efficiently
	// For patterns like "/admin/*", we want to match "/admin/anything"
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	// Handle extension patterns like "*.pdf"
	if strings.HasPrefix(pattern, "*.") {
		ext := strings.TrimPrefix(pattern, "*")
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	// Use filepath.Match for standard glob matching
	// Note: filepath.Match doesn't support ** for recursive matching,
	// but it handles * and ? well for single-segment patterns
	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Also try matching just the filename for patterns like "*.pdf"
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		filename := filepath.Base(path)
		matched, err := filepath.Match(pattern, filename)
		if err == nil && matched {
			return true
		}
	}

	return false
}
