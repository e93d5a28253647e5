package crawler

import "errors"

// ErrOffsiteRedirect marks a page whose navigation ended on a host outside
// the crawl scope. The page is recorded as failed.
var ErrOffsiteRedirect = errors.New("redirected outside the crawl scope")
