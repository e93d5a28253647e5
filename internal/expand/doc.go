// Package expand reveals lazily loaded content on the current page before
// it is captured.
//
// Expansion runs in two phases. The scroll phase repeatedly scrolls to the
// bottom of the document until its height stops changing, which triggers
// infinite-scroll feeds. The expand phase then looks for "show more" style
// controls, clicks them one at a time, and stops once nothing is left to
// click and the document has stopped growing.
//
// Which elements count as expand controls is decided by a Matcher. The
// default KeywordMatcher looks at element text and class/id attributes.
package expand
