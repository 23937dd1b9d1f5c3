package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/epscrapper/epscrapper/internal/model"
)

// fakeVisitor serves canned visit results from an in-memory page graph.
type fakeVisitor struct {
	mu     sync.Mutex
	pages  map[string]*VisitResult
	fail   map[string]error
	visits []string
}

func (f *fakeVisitor) Visit(_ context.Context, pageURL string) (*VisitResult, error) {
	f.mu.Lock()
	f.visits = append(f.visits, pageURL)
	f.mu.Unlock()

	if err, ok := f.fail[pageURL]; ok {
		return nil, err
	}
	if res, ok := f.pages[pageURL]; ok {
		return res, nil
	}
	return &VisitResult{}, nil
}

func (f *fakeVisitor) visitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visits)
}

func pageWith(urls []string, links []string) *VisitResult {
	endpoints := make([]model.Endpoint, 0, len(urls))
	for _, u := range urls {
		endpoints = append(endpoints, model.Endpoint{
			URL:    u,
			Source: model.SourceDOM,
			Type:   model.TypeAnchor,
		})
	}
	return &VisitResult{Endpoints: endpoints, Links: links}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSpiderCrawl(t *testing.T) {
	t.Parallel()

	const appOrigin = "https://app.example.com"

	t.Run("depth zero visits only the start page", func(t *testing.T) {
		t.Parallel()

		visitor := &fakeVisitor{
			pages: map[string]*VisitResult{
				appOrigin + "/dashboard": pageWith(
					[]string{appOrigin + "/api/v1/user"},
					[]string{appOrigin + "/settings"},
				),
			},
		}

		spider := NewSpider(visitor, appOrigin,
			WithMaxDepth(0), WithDelay(0), WithSpiderLogger(quietLogger()))

		endpoints, err := spider.Crawl(context.Background(), appOrigin+"/dashboard")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if visitor.visitCount() != 1 {
			t.Errorf("expected 1 visit, got %d", visitor.visitCount())
		}
		if len(endpoints) != 1 {
			t.Errorf("expected 1 endpoint, got %d", len(endpoints))
		}
	})

	t.Run("follows same-origin links breadth-first", func(t *testing.T) {
		t.Parallel()

		visitor := &fakeVisitor{
			pages: map[string]*VisitResult{
				appOrigin + "/dashboard": pageWith(
					[]string{appOrigin + "/a"},
					[]string{appOrigin + "/settings", appOrigin + "/reports"},
				),
				appOrigin + "/settings": pageWith([]string{appOrigin + "/b"}, nil),
				appOrigin + "/reports":  pageWith([]string{appOrigin + "/c"}, nil),
			},
		}

		spider := NewSpider(visitor, appOrigin,
			WithMaxDepth(1), WithDelay(0), WithSpiderLogger(quietLogger()))

		endpoints, err := spider.Crawl(context.Background(), appOrigin+"/dashboard")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if visitor.visitCount() != 3 {
			t.Errorf("expected 3 visits, got %d: %v", visitor.visitCount(), visitor.visits)
		}
		// Dashboard endpoints come before any level-1 endpoints
		if len(endpoints) != 3 || endpoints[0].URL != appOrigin+"/a" {
			t.Errorf("unexpected endpoints: %v", endpoints)
		}
	})

	t.Run("never leaves the origin", func(t *testing.T) {
		t.Parallel()

		visitor := &fakeVisitor{
			pages: map[string]*VisitResult{
				appOrigin + "/dashboard": pageWith(nil, []string{
					"https://evil.example.net/phish",
					"http://app.example.com/insecure", // http is a different origin
					appOrigin + "/safe",
				}),
			},
		}

		spider := NewSpider(visitor, appOrigin,
			WithMaxDepth(3), WithDelay(0), WithSpiderLogger(quietLogger()))

		if _, err := spider.Crawl(context.Background(), appOrigin+"/dashboard"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if visitor.visitCount() != 2 {
			t.Errorf("expected dashboard and /safe only, got %v", visitor.visits)
		}
		for _, v := range visitor.visits {
			if v == "https://evil.example.net/phish" || v == "http://app.example.com/insecure" {
				t.Errorf("crawled outside the origin: %s", v)
			}
		}
	})

	t.Run("respects max pages", func(t *testing.T) {
		t.Parallel()

		links := make([]string, 10)
		for i := range links {
			links[i] = fmt.Sprintf("%s/page%d", appOrigin, i)
		}

		visitor := &fakeVisitor{
			pages: map[string]*VisitResult{
				appOrigin + "/dashboard": pageWith(nil, links),
			},
		}

		spider := NewSpider(visitor, appOrigin,
			WithMaxDepth(3), WithMaxPages(4), WithDelay(0), WithSpiderLogger(quietLogger()))

		if _, err := spider.Crawl(context.Background(), appOrigin+"/dashboard"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if visitor.visitCount() != 4 {
			t.Errorf("expected 4 visits, got %d", visitor.visitCount())
		}
	})

	t.Run("deduplicates links across pages", func(t *testing.T) {
		t.Parallel()

		visitor := &fakeVisitor{
			pages: map[string]*VisitResult{
				appOrigin + "/dashboard": pageWith(nil, []string{
					appOrigin + "/settings",
					appOrigin + "/settings#profile", // fragment stripped, same page
					appOrigin + "/dashboard",        // link back to start
				}),
				appOrigin + "/settings": pageWith(nil, []string{appOrigin + "/dashboard"}),
			},
		}

		spider := NewSpider(visitor, appOrigin,
			WithMaxDepth(5), WithDelay(0), WithSpiderLogger(quietLogger()))

		if _, err := spider.Crawl(context.Background(), appOrigin+"/dashboard"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if visitor.visitCount() != 2 {
			t.Errorf("expected 2 visits, got %d: %v", visitor.visitCount(), visitor.visits)
		}
	})

	t.Run("ignore patterns skip matching paths", func(t *testing.T) {
		t.Parallel()

		visitor := &fakeVisitor{
			pages: map[string]*VisitResult{
				appOrigin + "/dashboard": pageWith(nil, []string{
					appOrigin + "/logout",
					appOrigin + "/settings",
				}),
			},
		}

		spider := NewSpider(visitor, appOrigin,
			WithMaxDepth(1), WithDelay(0),
			WithIgnorePatterns([]string{"/logout*"}),
			WithSpiderLogger(quietLogger()))

		if _, err := spider.Crawl(context.Background(), appOrigin+"/dashboard"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for _, v := range visitor.visits {
			if v == appOrigin+"/logout" {
				t.Error("logout link was crawled despite ignore pattern")
			}
		}
		if visitor.visitCount() != 2 {
			t.Errorf("expected 2 visits, got %v", visitor.visits)
		}
	})

	t.Run("follow patterns restrict the crawl", func(t *testing.T) {
		t.Parallel()

		visitor := &fakeVisitor{
			pages: map[string]*VisitResult{
				appOrigin + "/dashboard": pageWith(nil, []string{
					appOrigin + "/reports/monthly",
					appOrigin + "/settings",
				}),
			},
		}

		spider := NewSpider(visitor, appOrigin,
			WithMaxDepth(1), WithDelay(0),
			WithFollowPatterns([]string{"/reports/*"}),
			WithSpiderLogger(quietLogger()))

		if _, err := spider.Crawl(context.Background(), appOrigin+"/dashboard"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if visitor.visitCount() != 2 {
			t.Errorf("expected dashboard and /reports/monthly, got %v", visitor.visits)
		}
	})

	t.Run("failed visits are skipped not fatal", func(t *testing.T) {
		t.Parallel()

		visitor := &fakeVisitor{
			pages: map[string]*VisitResult{
				appOrigin + "/dashboard": pageWith(nil, []string{
					appOrigin + "/broken",
					appOrigin + "/ok",
				}),
				appOrigin + "/ok": pageWith([]string{appOrigin + "/api/data"}, nil),
			},
			fail: map[string]error{
				appOrigin + "/broken": errors.New("navigation timeout"),
			},
		}

		spider := NewSpider(visitor, appOrigin,
			WithMaxDepth(1), WithDelay(0), WithSpiderLogger(quietLogger()))

		endpoints, err := spider.Crawl(context.Background(), appOrigin+"/dashboard")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(endpoints) != 1 || endpoints[0].URL != appOrigin+"/api/data" {
			t.Errorf("expected endpoint from the healthy page, got %v", endpoints)
		}
	})

	t.Run("cancelled context stops the crawl", func(t *testing.T) {
		t.Parallel()

		visitor := &fakeVisitor{
			pages: map[string]*VisitResult{
				appOrigin + "/dashboard": pageWith(nil, []string{appOrigin + "/next"}),
			},
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		spider := NewSpider(visitor, appOrigin,
			WithMaxDepth(5), WithSpiderLogger(quietLogger()))

		if _, err := spider.Crawl(ctx, appOrigin+"/dashboard"); err == nil {
			t.Error("expected error from cancelled context")
		}
	})

	t.Run("rejects non-http start URL", func(t *testing.T) {
		t.Parallel()

		spider := NewSpider(&fakeVisitor{}, appOrigin, WithSpiderLogger(quietLogger()))
		if _, err := spider.Crawl(context.Background(), "ftp://app.example.com/"); err == nil {
			t.Error("expected error for non-http scheme")
		}
	})

	t.Run("stats track visits", func(t *testing.T) {
		t.Parallel()

		visitor := &fakeVisitor{
			pages: map[string]*VisitResult{
				appOrigin + "/dashboard": pageWith(nil, []string{appOrigin + "/settings"}),
			},
		}

		spider := NewSpider(visitor, appOrigin,
			WithMaxDepth(1), WithDelay(0), WithSpiderLogger(quietLogger()))

		if _, err := spider.Crawl(context.Background(), appOrigin+"/dashboard"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		stats := spider.Stats()
		if stats.PagesVisited != 2 {
			t.Errorf("expected 2 pages visited, got %d", stats.PagesVisited)
		}
		if stats.URLsSeen != 2 {
			t.Errorf("expected 2 URLs seen, got %d", stats.URLsSeen)
		}
	})
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	s := NewSpider(&fakeVisitor{}, "https://app.example.com")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips fragment", "https://app.example.com/page#section", "https://app.example.com/page"},
		{"lowercases host", "https://APP.Example.COM/page", "https://app.example.com/page"},
		{"lowercases scheme", "HTTPS://app.example.com/page", "https://app.example.com/page"},
		{"empty path becomes slash", "https://app.example.com", "https://app.example.com/"},
		{"query preserved", "https://app.example.com/p?x=1", "https://app.example.com/p?x=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := s.normalizeURL(tt.in); got != tt.want {
				t.Errorf("normalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		{"directory wildcard matches child", "/admin/*", "/admin/users", true},
		{"directory wildcard matches nested", "/admin/*", "/admin/users/1", true},
		{"directory wildcard matches exact dir", "/admin/*", "/admin", true},
		{"directory wildcard rejects sibling", "/admin/*", "/administrator", false},
		{"extension pattern", "*.pdf", "/docs/file.pdf", true},
		{"extension pattern rejects other ext", "*.pdf", "/docs/file.html", false},
		{"question mark single char", "/api/v?", "/api/v1", true},
		{"question mark rejects multi char", "/api/v?", "/api/v10", false},
		{"prefix glob", "/logout*", "/logout", true},
		{"prefix glob with suffix", "/logout*", "/logout-all", true},
		{"exact path", "/health", "/health", true},
		{"exact path mismatch", "/health", "/healthz", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := matchPattern(tt.pattern, tt.path); got != tt.want {
				t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}
