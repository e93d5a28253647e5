package snapshot

import "errors"

var (
	// ErrCapture wraps every failure to produce or write a snapshot.
	// The crawl records the page without a snapshot and continues.
	ErrCapture = errors.New("snapshot capture failed")

	// ErrUnknownStrategy is returned by StrategyByName.
	ErrUnknownStrategy = errors.New("unknown snapshot strategy")

	// ErrEmptyPage is returned when the document has no area to capture.
	ErrEmptyPage = errors.New("page has zero width or height")
)
