package browser

import (
	"context"
	"strings"
)

// Driver is a single browser tab under automation.
// A Driver is used by one crawl session at a time.
type Driver interface {
	// Navigate loads url and waits for the document to be ready.
	// Failures caused by the target (DNS, TLS, aborted downloads, timeouts)
	// are wrapped with ErrNavigation; any other error means the session is
	// unusable.
	Navigate(ctx context.Context, url string) (Response, error)

	// Evaluate runs script in the page and decodes its result into out.
	// out may be nil when the result is not needed.
	Evaluate(ctx context.Context, script string, out any) error

	// FindElements returns a description of every element matching the CSS
	// selector. Handles are stable for the lifetime of the DOM node.
	FindElements(ctx context.Context, selector string) ([]Element, error)

	// ScrollIntoView scrolls el into the visible area.
	ScrollIntoView(ctx context.Context, el Element) error

	// Click clicks el.
	Click(ctx context.Context, el Element) error

	// Screenshot captures the current viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)

	// PrintToPDF renders the current document with the browser's print
	// pipeline.
	PrintToPDF(ctx context.Context, opts PrintOptions) ([]byte, error)

	// SetViewport resizes the layout viewport.
	SetViewport(ctx context.Context, width, height int) error

	// Viewport returns the current viewport size.
	Viewport() (width, height int)

	// SetExtraHeaders sends headers with every subsequent request.
	// A nil or empty map clears previously set headers.
	SetExtraHeaders(ctx context.Context, headers map[string]string) error
}

// Response describes a completed navigation.
type Response struct {
	// Status is the HTTP status of the main document.
	Status int

	// URL is the location after redirects.
	URL string
}

// OK reports whether the status is 2xx.
func (r Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Element describes a DOM element returned by FindElements.
type Element struct {
	// Handle identifies the element across calls.
	Handle string `json:"handle"`

	// Tag is the lower-case tag name.
	Tag string `json:"tag"`

	// Text is the whitespace-collapsed text content, truncated.
	Text string `json:"text"`

	// Class is the class attribute.
	Class string `json:"class"`

	// ID is the id attribute.
	ID string `json:"id"`

	// Href is the raw href attribute, empty when absent.
	Href string `json:"href"`

	// Nested reports whether the element contains a link or button.
	Nested bool `json:"nested"`

	// Visible reports whether the element is rendered with a non-empty box.
	Visible bool `json:"visible"`

	// Enabled is false for disabled form controls.
	Enabled bool `json:"enabled"`
}

// Clickable reports whether the element can receive a click.
func (e Element) Clickable() bool {
	return e.Visible && e.Enabled
}

// Navigates reports whether clicking el would follow a link to another
// document. Anchors without an href, or with a fragment or javascript: href,
// stay on the page.
func (e Element) Navigates() bool {
	if e.Tag != "a" {
		return false
	}
	href := strings.TrimSpace(e.Href)
	if href == "" || strings.HasPrefix(href, "#") {
		return false
	}
	return !strings.HasPrefix(strings.ToLower(href), "javascript:")
}

// SameDocument reports whether two locations address the same document,
// ignoring their fragments.
func SameDocument(a, b string) bool {
	a, _, _ = strings.Cut(a, "#")
	b, _, _ = strings.Cut(b, "#")
	return a == b
}

// PrintOptions controls PrintToPDF. Margins are in inches.
type PrintOptions struct {
	PrintBackground   bool
	MarginTop         float64
	MarginBottom      float64
	MarginLeft        float64
	MarginRight       float64
	PreferCSSPageSize bool
}
