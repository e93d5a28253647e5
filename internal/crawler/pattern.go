package crawler

import (
	"path"
	"strings"
)

// matchPattern reports whether the URL path p matches a site's
// include/exclude glob. On top of path.Match syntax:
//
//	/blog/*   matches /blog and everything below it
//	*.pdf     matches the extension in any directory, case-insensitively
//	draft-*   matches the last segment when the glob has no slash
func matchPattern(pattern, p string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	if ext, ok := strings.CutPrefix(pattern, "*."); ok && !strings.ContainsAny(ext, "*?[") {
		if strings.HasSuffix(strings.ToLower(p), "."+strings.ToLower(ext)) {
			return true
		}
	}
	if ok, _ := path.Match(pattern, p); ok {
		return true
	}
	if strings.Contains(pattern, "/") {
		return false
	}
	ok, _ := path.Match(pattern, path.Base(p))
	return ok
}
