package canonical

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrMalformedURL is returned when a URL cannot be parsed or lacks a scheme
// or host. Such URLs are never enqueued.
var ErrMalformedURL = errors.New("malformed url")

// TrackingParams lists common analytics parameters. It is the value used by
// the config template for strip_query_params.
var TrackingParams = []string{
	"utm_source",
	"utm_medium",
	"utm_campaign",
	"utm_term",
	"utm_content",
	"fbclid",
	"gclid",
	"gclsrc",
	"dclid",
	"msclkid",
}

// Option customizes Canonicalize.
type Option func(*options)

type options struct {
	dropParams map[string]struct{}
}

// WithoutQueryParams removes the named query parameters from the result.
// The remaining parameters keep their original order and encoding.
func WithoutQueryParams(names ...string) Option {
	return func(o *options) {
		if o.dropParams == nil {
			o.dropParams = make(map[string]struct{}, len(names))
		}
		for _, n := range names {
			o.dropParams[n] = struct{}{}
		}
	}
}

// Canonicalize returns the canonical form of raw:
//   - scheme and host are lower-cased and a leading "www." is removed
//   - the fragment is dropped
//   - trailing slashes are removed, so "/" and "" both become ""
//   - the query is preserved unless WithoutQueryParams says otherwise
func Canonicalize(raw string, opts ...Option) (string, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedURL, err)
	}
	if u.Scheme == "" || u.Host == "" || u.Opaque != "" {
		return "", fmt.Errorf("%w: missing scheme or host in %q", ErrMalformedURL, raw)
	}

	host := strings.ToLower(u.Host)
	for strings.HasPrefix(host, "www.") {
		host = strings.TrimPrefix(host, "www.")
	}
	if host == "" {
		return "", fmt.Errorf("%w: empty host in %q", ErrMalformedURL, raw)
	}

	var b strings.Builder
	b.WriteString(strings.ToLower(u.Scheme))
	b.WriteString("://")
	if u.User != nil {
		b.WriteString(u.User.String())
		b.WriteByte('@')
	}
	b.WriteString(host)
	b.WriteString(strings.TrimRight(u.EscapedPath(), "/"))

	query := u.RawQuery
	if len(o.dropParams) > 0 {
		query = filterQuery(query, o.dropParams)
	}
	if query != "" {
		b.WriteByte('?')
		b.WriteString(query)
	}

	return b.String(), nil
}

// MustCanonicalize is like Canonicalize but panics on error.
// It is intended for literals in tests and tables.
func MustCanonicalize(raw string, opts ...Option) string {
	c, err := Canonicalize(raw, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Equal reports whether a and b canonicalize to the same URL.
// Malformed URLs are never equal to anything.
func Equal(a, b string) bool {
	ca, err := Canonicalize(a)
	if err != nil {
		return false
	}
	cb, err := Canonicalize(b)
	if err != nil {
		return false
	}
	return ca == cb
}

// filterQuery drops pairs whose decoded key is in drop.
// Pairs are matched textually so the order and escaping of the
// remaining pairs are untouched.
func filterQuery(raw string, drop map[string]struct{}) string {
	if raw == "" {
		return ""
	}
	pairs := strings.Split(raw, "&")
	kept := pairs[:0]
	for _, pair := range pairs {
		key, _, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if _, ok := drop[key]; ok {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}
