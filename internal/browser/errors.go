package browser

import "errors"

var (
	// ErrNavigation marks a navigation that failed because of the target
	// page. The crawl records the page as failed and moves on.
	ErrNavigation = errors.New("navigation failed")

	// ErrUnknownScript is returned by fakes for scripts they do not emulate.
	ErrUnknownScript = errors.New("unknown script")
)
