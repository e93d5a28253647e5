package graph

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// FileExtension is the extension of link graph files.
const FileExtension = ".json"

// FileName returns the graph file name for a seed URL: the host without a
// leading "www.", with any port appended after an underscore.
func FileName(seedURL string) (string, error) {
	u, err := url.Parse(seedURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse seed url: %w", err)
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return "", fmt.Errorf("seed url %q has no host", seedURL)
	}
	host = strings.ReplaceAll(host, ":", "_") // IPv6 literals
	if port := u.Port(); port != "" {
		host += "_" + port
	}
	return host + FileExtension, nil
}

// OutputPath joins dir and FileName(seedURL).
func OutputPath(dir, seedURL string) (string, error) {
	name, err := FileName(seedURL)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}
