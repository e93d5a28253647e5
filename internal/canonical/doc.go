// Package canonical reduces URLs to the canonical form used as the identity
// of a page throughout a crawl.
//
// Two URLs that differ only in scheme or host case, a leading "www.", a
// fragment, or trailing slashes canonicalize to the same string. The query
// string is kept because it distinguishes pages on most sites; callers can
// opt into removing specific parameters with WithoutQueryParams.
//
// Canonicalize is idempotent: applying it to its own output returns the same
// string.
package canonical
