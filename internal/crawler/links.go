package crawler

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// LinkParser extracts absolute http(s) links from rendered HTML.
type LinkParser struct {
	// baseURL resolves relative hrefs. A <base href> in the document
	// takes precedence.
	baseURL *url.URL
}

// NewLinkParser creates a parser resolving links against baseURL.
func NewLinkParser(baseURL string) (*LinkParser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	return &LinkParser{baseURL: u}, nil
}

// Parse returns the href of every anchor, resolved and in document order.
// Duplicates are removed. Non-web schemes and fragment-only links are
// skipped.
func (p *LinkParser) Parse(content io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	base := p.baseURL
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if u, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = u
		}
	}

	seen := make(map[string]struct{})
	links := make([]string, 0)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link := resolveURL(base, href)
		if link == "" {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	return links, nil
}

// resolveURL resolves href against base and returns "" for links that
// cannot lead to a web page.
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:", "sms:", "ftp:"} {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}

	u, err := base.Parse(href)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
