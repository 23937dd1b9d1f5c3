package origin

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultScheme is assumed for targets given without a scheme.
// Login and dashboard pages are almost always served over TLS, and a wrong
// guess surfaces immediately when the browser fails to load the login page.
const DefaultScheme = "https"

// apiPathMarkers are path fragments that identify an endpoint as API-like
// even when the browser reports a static resource type.
var apiPathMarkers = []string{"/api/", "/v1/", "/graphql", "/rest/"}

// apiResourceTypes are browser resource types that always count as API-like.
var apiResourceTypes = map[string]bool{
	"xhr":      true,
	"fetch":    true,
	"document": true,
}

// Normalize ensures the raw target has a scheme and returns its canonical
// string form. It returns an error when the target cannot be parsed as a URL
// or has no host.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty target URL")
	}

	if !strings.Contains(raw, "://") {
		raw = DefaultScheme + "://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid target URL %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("target URL %q has no host", raw)
	}

	return u.String(), nil
}

// Of returns the origin (scheme://host) of the given URL.
// The input is normalized first, so "app.example.com/login" yields
// "https://app.example.com".
func Of(rawURL string) (string, error) {
	normalized, err := Normalize(rawURL)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(normalized)
	if err != nil {
		return "", err
	}

	return u.Scheme + "://" + u.Host, nil
}

// IsSame reports whether two URLs share an origin: equal scheme and equal
// host. Host comparison is case-insensitive and includes any explicit port.
func IsSame(u1, u2 string) bool {
	p1, err := url.Parse(u1)
	if err != nil {
		return false
	}
	p2, err := url.Parse(u2)
	if err != nil {
		return false
	}

	return strings.EqualFold(p1.Scheme, p2.Scheme) && strings.EqualFold(p1.Host, p2.Host)
}

// MatchesDashboard reports whether pageURL signals that the post-login
// redirect has completed. A page matches when it is same-origin with the
// dashboard URL or when its URL starts with the full dashboard URL.
//
// The prefix check matters for single sign-on flows where the identity
// provider lives on the dashboard origin: same-origin alone would fire while
// the user is still on the login form.
func MatchesDashboard(pageURL, dashboardURL string) bool {
	if pageURL == "" {
		return false
	}

	return IsSame(pageURL, dashboardURL) || strings.HasPrefix(pageURL, dashboardURL)
}

// IsAPILike reports whether an observed request looks like an API call rather
// than a static asset. Resource types xhr, fetch, and document always
// qualify; otherwise the URL path is checked for well-known API markers.
func IsAPILike(resourceType, rawURL string) bool {
	if apiResourceTypes[strings.ToLower(resourceType)] {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	path := strings.ToLower(u.Path)
	for _, marker := range apiPathMarkers {
		if strings.Contains(path, marker) {
			return true
		}
	}

	return false
}
