package expand

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/nao1215/sitegraph/internal/browser"
)

// Matcher decides which elements are expand controls.
type Matcher interface {
	// Selector is the CSS selector of elements worth inspecting.
	Selector() string

	// Matches reports whether el looks like an expand control.
	Matches(el browser.Element) bool
}

// DefaultPhrases are the texts of common expand controls.
var DefaultPhrases = []string{"show more", "load more", "view more", "see more"}

// DefaultAttributeHints are substrings of class or id attributes that mark
// buttons and links as expand controls.
var DefaultAttributeHints = []string{"more", "load", "expand"}

// KeywordMatcher matches elements by text and attribute keywords.
//
// Buttons and links match when their text contains one of Phrases. They
// also match when their class or id contains one of AttributeHints, unless
// they are links to another document: "read-more" and "download" anchors
// on listing pages lead away. Generic containers (div, span) match only on
// ContainerPhrases and only when they hold no link or button of their own.
type KeywordMatcher struct {
	Phrases          []string
	ContainerPhrases []string
	AttributeHints   []string
}

var _ Matcher = (*KeywordMatcher)(nil)

// NewKeywordMatcher returns a matcher with the default keywords.
func NewKeywordMatcher() *KeywordMatcher {
	return &KeywordMatcher{
		Phrases:          DefaultPhrases,
		ContainerPhrases: []string{"show more", "load more"},
		AttributeHints:   DefaultAttributeHints,
	}
}

// Selector implements Matcher.
func (m *KeywordMatcher) Selector() string {
	return `button, a, [role="button"], div, span`
}

// Matches implements Matcher.
func (m *KeywordMatcher) Matches(el browser.Element) bool {
	// A Caser is stateful, so one is created per call.
	fold := cases.Fold()
	text := fold.String(el.Text)

	switch el.Tag {
	case "div", "span":
		return !el.Nested && containsAny(text, m.ContainerPhrases, fold)
	default:
		if containsAny(text, m.Phrases, fold) {
			return true
		}
		if el.Navigates() {
			return false
		}
		attrs := fold.String(el.Class + " " + el.ID)
		return containsAny(attrs, m.AttributeHints, fold)
	}
}

func containsAny(s string, needles []string, fold cases.Caser) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, fold.String(n)) {
			return true
		}
	}
	return false
}
