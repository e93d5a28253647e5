// Package report summarizes persisted link graphs for people.
//
// NewSummary derives page counts, the content-type breakdown, missing
// snapshots, the most-linked pages and dead ends from a model.LinkGraph.
// Writers render it:
//   - SimpleWriter: plain text for terminal display
//   - MarkdownWriter: GitHub Flavored Markdown with tables and a pie chart
//   - JSONWriter: the Summary as JSON for other tools
//
// Writers implement the Writer interface and can be combined with MultiWriter.
package report
