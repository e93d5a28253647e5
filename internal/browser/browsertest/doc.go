// Package browsertest provides an in-memory browser.Driver for tests.
//
// A Driver serves a fixed set of pages keyed by URL. Pages can grow when
// scrolled or when their "load more" buttons are clicked, which is enough
// to exercise expansion, snapshot and crawl logic without a real browser.
package browsertest
