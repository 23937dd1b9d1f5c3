package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ErrWaitTimeout is returned when the URL wait elapses before a match.
var ErrWaitTimeout = errors.New("timed out waiting for URL")

// DefaultPoll is how often WaitForURL samples the current URL.
const DefaultPoll = 500 * time.Millisecond

// Options configures the launched browser.
type Options struct {
	// Headless runs the browser without a window. Default is headed so a
	// human can complete the login flow.
	Headless bool

	// ProfileDir is the Chrome user-data directory. Empty means a temporary
	// profile that is discarded when the browser exits.
	ProfileDir string

	// UserAgent overrides the browser's User-Agent when non-empty.
	UserAgent string

	// IgnoreCertErrors makes the browser accept invalid TLS certificates,
	// for targets behind self-signed or expired certificates. Off by
	// default so a real certificate failure is not silently swallowed.
	IgnoreCertErrors bool

	// Logger receives chromedp's internal log output. When nil, chromedp
	// output is suppressed entirely.
	Logger *slog.Logger
}

// Session owns a running Chrome instance. All tabs opened from a session
// share its profile, so cookies set during login carry into crawl tabs.
//
// Design decision: One Session per scrape run rather than one browser per
// page. Reusing the instance keeps the authenticated state alive and avoids
// the multi-second Chrome startup cost on every navigation.
type Session struct {
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	logger      *slog.Logger
}

// NewSession launches a Chrome instance. The returned session must be
// closed with Close. Cancelling ctx tears down the browser as well, which
// is how SIGINT aborts a scrape mid-login.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
	}
	for name, value := range allocatorFlags(opts) {
		allocOpts = append(allocOpts, chromedp.Flag(name, value))
	}
	if opts.ProfileDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.ProfileDir))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)

	var ctxOpts []chromedp.ContextOption
	if opts.Logger != nil {
		logger := opts.Logger
		ctxOpts = append(ctxOpts,
			chromedp.WithLogf(func(f string, a ...any) { logger.Info(fmt.Sprintf(f, a...)) }),
			chromedp.WithDebugf(func(f string, a ...any) { logger.Debug(fmt.Sprintf(f, a...)) }),
			chromedp.WithErrorf(func(f string, a ...any) { logger.Warn(fmt.Sprintf(f, a...)) }),
		)
	} else {
		ctxOpts = append(ctxOpts,
			chromedp.WithLogf(func(string, ...any) {}),
			chromedp.WithDebugf(func(string, ...any) {}),
			chromedp.WithErrorf(func(string, ...any) {}),
		)
	}

	browserCtx, cancel := chromedp.NewContext(allocCtx, ctxOpts...)

	// Starting the browser eagerly surfaces launch failures (missing Chrome
	// binary, locked profile dir) here instead of on first navigation.
	if err := chromedp.Run(browserCtx, network.Enable()); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	return &Session{
		allocCancel: allocCancel,
		ctx:         browserCtx,
		cancel:      cancel,
		logger:      opts.Logger,
	}, nil
}

// allocatorFlags builds the Chrome command-line flags for the session.
func allocatorFlags(opts Options) map[string]any {
	flags := map[string]any{
		"disable-gpu": true,
		// Hides the automation banner and navigator.webdriver flag so
		// login pages with bot detection behave as they would for a human.
		"disable-blink-features": "AutomationControlled",
		"headless":               opts.Headless,
	}
	if opts.IgnoreCertErrors {
		flags["ignore-certificate-errors"] = true
	}
	return flags
}

// Close shuts the browser down and releases its profile directory.
func (s *Session) Close() {
	s.cancel()
	s.allocCancel()
}

// FirstTab returns the tab created when the browser launched.
// The login flow runs here so the window the user sees is the login page.
func (s *Session) FirstTab() *Tab {
	return &Tab{ctx: s.ctx, cancel: func() {}}
}

// NewTab opens an additional tab sharing the session's cookies.
// Used by the crawler to visit pages concurrently.
func (s *Session) NewTab() (*Tab, error) {
	tabCtx, cancel := chromedp.NewContext(s.ctx)
	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return &Tab{ctx: tabCtx, cancel: cancel}, nil
}

// Tab is a single browser tab.
type Tab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Close closes the tab. Closing the session's first tab is a no-op; it
// lives until the session itself is closed.
func (t *Tab) Close() {
	t.cancel()
}

// Navigate loads the given URL, waiting up to timeout for the navigation
// to commit.
func (t *Tab) Navigate(url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(t.ctx, timeout)
	defer cancel()

	if err := chromedp.Run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Location returns the tab's current URL.
func (t *Tab) Location() (string, error) {
	var loc string
	if err := chromedp.Run(t.ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// WaitForURL polls the tab's current URL every poll interval until match
// returns true, then returns the matching URL. It returns ErrWaitTimeout
// when timeout elapses first, wrapped with the URL last observed so the
// operator can see how far the login flow got.
func (t *Tab) WaitForURL(timeout, poll time.Duration, match func(string) bool) (string, error) {
	if poll <= 0 {
		poll = DefaultPoll
	}

	ctx, cancel := context.WithTimeout(t.ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	var last string
	for {
		var loc string
		// Location errors during navigation races are transient; keep
		// polling until the deadline decides.
		if err := chromedp.Run(ctx, chromedp.Location(&loc)); err == nil && loc != "" {
			last = loc
			if match(loc) {
				return loc, nil
			}
		}

		select {
		case <-ctx.Done():
			if last == "" {
				return "", ErrWaitTimeout
			}
			return last, fmt.Errorf("%w (last URL: %s)", ErrWaitTimeout, last)
		case <-ticker.C:
		}
	}
}

// HTML returns the rendered document's outer HTML.
func (t *Tab) HTML(timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(t.ctx, timeout)
	defer cancel()

	var content string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &content, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page HTML: %w", err)
	}
	return content, nil
}

// ScrollToBottom scrolls the page to its full height, prompting
// lazy-loaded content and infinite-scroll fetches to fire.
func (t *Tab) ScrollToBottom() error {
	return chromedp.Run(t.ctx,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil))
}

// ScrollToTop scrolls the page back to the top.
func (t *Tab) ScrollToTop() error {
	return chromedp.Run(t.ctx, chromedp.Evaluate(`window.scrollTo(0, 0)`, nil))
}

// Listen subscribes fn to the tab's CDP events. Network events start
// flowing immediately; detaching happens when the tab closes.
func (t *Tab) Listen(fn func(ev any)) {
	chromedp.ListenTarget(t.ctx, fn)
}

// SetCookies installs cookies from a "name=value; name2=value2" header
// string for the given URL before navigation. An invalid pair is skipped
// rather than failing the whole set.
func (t *Tab) SetCookies(cookieHeader, url string) error {
	pairs := ParseCookieHeader(cookieHeader)
	if len(pairs) == 0 {
		return nil
	}

	return chromedp.Run(t.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for name, value := range pairs {
			if err := network.SetCookie(name, value).WithURL(url).Do(ctx); err != nil {
				return fmt.Errorf("set cookie %s: %w", name, err)
			}
		}
		return nil
	}))
}

// SetExtraHeaders attaches headers to every request the tab sends.
func (t *Tab) SetExtraHeaders(headers map[string]string) error {
	if len(headers) == 0 {
		return nil
	}

	h := make(network.Headers, len(headers))
	for k, v := range headers {
		h[k] = v
	}

	return chromedp.Run(t.ctx, network.SetExtraHTTPHeaders(h))
}

// Cookies exports the browser's cookies for the given URLs.
func (t *Tab) Cookies(urls ...string) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := chromedp.Run(t.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().WithURLs(urls).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("get cookies: %w", err)
	}
	return cookies, nil
}

// ParseCookieHeader splits a "name=value; name2=value2" string into pairs.
// Malformed segments without an equals sign are dropped.
func ParseCookieHeader(header string) map[string]string {
	pairs := make(map[string]string)
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok || name == "" {
			continue
		}
		pairs[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return pairs
}
