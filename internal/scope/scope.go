package scope

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ErrNoHost is returned by New when the seed URL has no host.
var ErrNoHost = errors.New("seed url has no host")

// Scope holds the registrable domain of a crawl's seed.
// It is computed once and is safe for concurrent use.
type Scope struct {
	domain string
}

// New returns the scope of the given seed URL.
func New(seedURL string) (*Scope, error) {
	u, err := url.Parse(seedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse seed url: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %q", ErrNoHost, seedURL)
	}
	return &Scope{domain: RegistrableDomain(u.Hostname())}, nil
}

// Domain returns the registrable domain every in-scope URL shares.
func (s *Scope) Domain() string {
	return s.domain
}

// Contains reports whether rawURL has the same registrable domain as the seed.
// URLs that fail to parse or have no host are out of scope.
func (s *Scope) Contains(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	return RegistrableDomain(u.Hostname()) == s.domain
}

// RegistrableDomain returns the eTLD+1 of host, lower-cased.
// IP addresses and hosts without a derivable eTLD+1 (such as "localhost")
// are their own registrable domain.
func RegistrableDomain(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if net.ParseIP(host) != nil {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}
