package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() so callers can use
// errors.Is() to tell which rule was violated.
var (
	// ErrNoSeed is returned when no seed URL or list file is specified.
	ErrNoSeed = errors.New("no seed specified: provide a URL or use --list")

	// ErrInvalidPageTimeout is returned when the page timeout is not positive.
	ErrInvalidPageTimeout = errors.New("invalid page timeout: must be positive")

	// ErrInvalidSessions is returned when the number of browser sessions is not positive.
	ErrInvalidSessions = errors.New("invalid sessions: must be positive")

	// ErrInvalidSettleDelay is returned when the settle delay is negative.
	ErrInvalidSettleDelay = errors.New("invalid settle delay: must be non-negative")

	// ErrInvalidCaptureDelay is returned when the capture delay is negative.
	ErrInvalidCaptureDelay = errors.New("invalid capture delay: must be non-negative")

	// ErrInvalidMaxPages is returned when the page limit is negative.
	// Use 0 for no limit.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidExpandAttempts is returned when the expand attempt limit is negative.
	ErrInvalidExpandAttempts = errors.New("invalid max expand attempts: must be non-negative")

	// ErrInvalidMaxScrolls is returned when the scroll limit is negative.
	ErrInvalidMaxScrolls = errors.New("invalid max scrolls: must be non-negative")

	// ErrInvalidViewport is returned when a viewport dimension is not positive.
	ErrInvalidViewport = errors.New("invalid viewport: width and height must be positive")

	// ErrInvalidCaptureHeight is returned when the stitch capture height is not positive.
	ErrInvalidCaptureHeight = errors.New("invalid max capture height: must be positive")

	// ErrDuplicateOutput is returned when two seeds would write the same
	// link graph file, such as https://acme.test and https://acme.test/blog.
	ErrDuplicateOutput = errors.New("seeds share a link graph file: crawl one seed per host")

	// ErrUnknownStrategy is returned when a snapshot strategy is neither
	// "print" nor "stitch", globally or for a site.
	ErrUnknownStrategy = errors.New("unknown snapshot strategy: use print or stitch")
)
