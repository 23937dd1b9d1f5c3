// Package log provides secure logging with automatic sanitization of
// credential material, built on top of the standard slog package.
//
// epscrapper drives authenticated browser sessions: cookies, bearer tokens,
// and session identifiers flow through the code that waits for a login to
// complete and that intercepts network requests. The SecureHandler masks
// these values before they reach log output, even in verbose mode, so debug
// logs can be shared without leaking a live session.
//
// Usage:
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//
//	logger.Debug("cookie synced",
//	    "cookie", "session=abc123",   // masked
//	    "url", "https://app.example.com/dashboard",
//	)
package log
