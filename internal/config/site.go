package config

import (
	"maps"
	"net/url"
	"strings"
)

// SiteConfig holds site-specific crawl settings.
// Zero values mean "not set" and leave the global setting in place.
type SiteConfig struct {
	// Cookie is sent as the Cookie header on every request to the site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers sent with every request to the site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// MaxPages overrides the global page limit.
	MaxPages int `yaml:"max_pages,omitempty"`

	// MaxExpandAttempts overrides the global expand attempt limit.
	MaxExpandAttempts int `yaml:"max_expand_attempts,omitempty"`

	// SnapshotStrategy overrides the global snapshot strategy.
	SnapshotStrategy string `yaml:"snapshot_strategy,omitempty"`

	// StripQueryParams are query parameters removed from links on this site.
	StripQueryParams []string `yaml:"strip_query_params,omitempty"`

	// IgnorePatterns are URL path patterns that are never visited.
	// Patterns use glob syntax.
	IgnorePatterns []string `yaml:"ignore_patterns,omitempty"`

	// FollowPatterns restrict visits to matching URL paths.
	FollowPatterns []string `yaml:"follow_patterns,omitempty"`
}

// File represents the structure of the .sitegraph configuration file.
type File struct {
	// Sites maps hosts (without "www.") to their configuration.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to all sites unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for host merged over the defaults.
// Host keys are compared case-insensitively and without a "www." prefix.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)

	want := normalizeHost(host)
	for key, site := range cf.Sites {
		if normalizeHost(key) == want {
			return result.merge(site)
		}
	}
	return result
}

// SiteFor returns the configuration for the host of seedURL.
func (cf *File) SiteFor(seedURL string) SiteConfig {
	u, err := url.Parse(seedURL)
	if err != nil {
		return cf.GetSiteConfig("")
	}
	return cf.GetSiteConfig(u.Hostname())
}

// RequestHeaders returns Headers with Cookie added as a Cookie header.
// It returns nil when neither is set.
func (sc SiteConfig) RequestHeaders() map[string]string {
	if sc.Cookie == "" && len(sc.Headers) == 0 {
		return nil
	}
	headers := make(map[string]string, len(sc.Headers)+1)
	maps.Copy(headers, sc.Headers)
	if sc.Cookie != "" {
		headers["Cookie"] = sc.Cookie
	}
	return headers
}

// merge returns sc overridden by the set fields of o. Headers are combined.
func (sc SiteConfig) merge(o SiteConfig) SiteConfig {
	if o.Cookie != "" {
		sc.Cookie = o.Cookie
	}
	if len(o.Headers) > 0 {
		merged := make(map[string]string, len(sc.Headers)+len(o.Headers))
		maps.Copy(merged, sc.Headers)
		maps.Copy(merged, o.Headers)
		sc.Headers = merged
	}
	if o.MaxPages != 0 {
		sc.MaxPages = o.MaxPages
	}
	if o.MaxExpandAttempts != 0 {
		sc.MaxExpandAttempts = o.MaxExpandAttempts
	}
	if o.SnapshotStrategy != "" {
		sc.SnapshotStrategy = o.SnapshotStrategy
	}
	if len(o.StripQueryParams) > 0 {
		sc.StripQueryParams = o.StripQueryParams
	}
	if len(o.IgnorePatterns) > 0 {
		sc.IgnorePatterns = o.IgnorePatterns
	}
	if len(o.FollowPatterns) > 0 {
		sc.FollowPatterns = o.FollowPatterns
	}
	return sc
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	for strings.HasPrefix(host, "www.") {
		host = strings.TrimPrefix(host, "www.")
	}
	return host
}
