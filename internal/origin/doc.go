// Package origin provides URL normalization and origin matching helpers.
//
// Every comparison the collector makes (same-origin filtering, dashboard
// detection, API-likeness) goes through this package so that the rules are
// applied consistently:
//   - URLs without a scheme are assumed to be https
//   - two URLs share an origin when scheme and host (including port) match
//   - the dashboard is reached when the page is same-origin with the
//     dashboard URL or the page URL has the dashboard URL as prefix
package origin
