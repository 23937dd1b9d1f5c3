package config

// SiteConfig holds site-specific configuration for a single origin.
// This allows customizing scrape behavior per web application, for example
// injecting a saved session cookie so login is skipped entirely.
type SiteConfig struct {
	// Cookie is an HTTP cookie to set in the browser before opening the
	// login page. Format: "name=value" or "name1=value1; name2=value2".
	// A valid session cookie lets the login page redirect straight to
	// the dashboard.
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers the browser sends with every request
	// to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the global crawl depth for this site.
	// If zero, the global CrawlDepth is used.
	Depth int `yaml:"depth,omitempty"`

	// StaySeconds overrides how long to remain on the dashboard before
	// harvesting. If zero, the global Stay is used.
	StaySeconds int `yaml:"stay,omitempty"`

	// IgnorePatterns are URL patterns to skip during crawling.
	// Patterns are matched against the URL path using glob syntax.
	// Useful for skipping logout links that would end the session.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are URL patterns to follow during crawling.
	// If specified, only URLs matching these patterns are crawled.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File represents the structure of the .epscrapper configuration file.
type File struct {
	// Sites maps origins to their site-specific configurations.
	// Keys should be the host without the scheme (e.g., "app.example.com").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains default site configuration applied to all sites
	// unless overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a specific host.
// It merges the site-specific configuration with defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	// Start with defaults
	result := cf.Defaults

	// Override with site-specific configuration if present
	if siteConfig, ok := cf.Sites[host]; ok {
		if siteConfig.Cookie != "" {
			result.Cookie = siteConfig.Cookie
		}
		if siteConfig.Depth != 0 {
			result.Depth = siteConfig.Depth
		}
		if siteConfig.StaySeconds != 0 {
			result.StaySeconds = siteConfig.StaySeconds
		}
		if len(siteConfig.Headers) > 0 {
			// Merge into a fresh map. result.Headers aliases the Defaults
			// map, and writing through it would leak site headers into
			// every later lookup.
			merged := make(map[string]string, len(result.Headers)+len(siteConfig.Headers))
			for k, v := range result.Headers {
				merged[k] = v
			}
			for k, v := range siteConfig.Headers {
				merged[k] = v
			}
			result.Headers = merged
		}
		if len(siteConfig.IgnorePatterns) > 0 {
			result.IgnorePatterns = siteConfig.IgnorePatterns
		}
		if len(siteConfig.FollowPatterns) > 0 {
			result.FollowPatterns = siteConfig.FollowPatterns
		}
	}

	return result
}
