// Package browser wraps chromedp with the small surface the scrape pipeline
// needs: launching a Chrome instance (headed by default so the user can log
// in by hand), opening tabs, navigating, polling the current URL, reading
// rendered HTML, and subscribing to network events.
package browser
