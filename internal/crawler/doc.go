// Package crawler provides breadth-first crawling of an authenticated origin.
//
// # Architecture
//
// The crawler package is designed around the Spider type, which coordinates
// the crawl. It processes the link graph level by level, handing each URL to
// a Visitor that loads the page in the authenticated browser session and
// returns the endpoints and links it found.
//
// Design decision: We implement our own crawler rather than using a
// third-party library because:
//  1. Pages must load inside the authenticated browser session, not over a
//     plain HTTP client, or cookies and JavaScript-rendered links are lost
//  2. We need tight control over visit timing to avoid rate limits on
//     authenticated accounts
//  3. The crawl must never leave the login origin
//
// # Politeness
//
// The crawler is designed to be polite:
//   - Delays between page visits (configurable)
//   - Bounded tab concurrency per level
//   - Respects max depth and max page settings
//
// # Usage
//
//	spider := crawler.NewSpider(visitor, "https://app.example.com",
//		crawler.WithMaxDepth(2))
//	endpoints, err := spider.Crawl(ctx, "https://app.example.com/dashboard")
package crawler
