package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/sitegraph/internal/model"
)

// MarkdownWriter outputs reports in GitHub Flavored Markdown, suitable for
// pasting into issues or committing next to the graph.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write summarizes g and writes it in Markdown format.
func (w *MarkdownWriter) Write(g *model.LinkGraph) (int, error) {
	return w.WriteSummary(NewSummary(g))
}

// WriteSummary outputs the summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(s *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, s)
	w.writeContentTypes(md, s)
	w.writeMostLinked(md, s)
	w.writeGaps(md, s)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *Summary) {
	md.H1("Sitegraph Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Start URL", "`" + s.StartURL + "`"},
			{"Saved", s.SavedAt.Format("2006-01-02 15:04:05 MST")},
			{"Pages", strconv.Itoa(s.Pages)},
			{"Links", strconv.Itoa(s.Edges)},
			{"Hosts", strconv.Itoa(len(s.Hosts))},
		},
	})
	md.PlainText("")

	if s.Complete() {
		md.Tip("Every recorded page has a snapshot and every discovered link was recorded.")
	} else if len(s.MissingSnapshots) > 0 {
		md.Warningf("%d page(s) were recorded without a snapshot.", len(s.MissingSnapshots))
	} else {
		md.Note("Some discovered links were not recorded. They failed to load, were filtered, or the crawl stopped early.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeContentTypes(md *markdown.Markdown, s *Summary) {
	md.H2("Content Types")
	md.PlainText("")

	if len(s.ContentTypes) == 0 {
		md.PlainText("No pages recorded.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(s.ContentTypes))
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Pages by Content Type"),
		piechart.WithShowData(true),
	)
	for i, tc := range s.ContentTypes {
		rows[i] = []string{tc.ContentType.String(), strconv.Itoa(tc.Count)}
		chart.LabelAndIntValue(tc.ContentType.String(), uint64(tc.Count)) //nolint:gosec // counts are never negative
	}

	md.Table(markdown.TableSet{
		Header: []string{"Type", "Pages"},
		Rows:   rows,
	})
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeMostLinked(md *markdown.Markdown, s *Summary) {
	md.H2("Most Linked Pages")
	md.PlainText("")

	if len(s.MostLinked) == 0 {
		md.PlainText("No links recorded.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(s.MostLinked))
	for i, lc := range s.MostLinked {
		rows[i] = []string{truncateString(lc.Link, 80), strconv.Itoa(lc.Inbound)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Page", "Inbound Links"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeGaps(md *markdown.Markdown, s *Summary) {
	if len(s.MissingSnapshots) > 0 {
		md.H2("Missing Snapshots")
		md.PlainText("")
		md.BulletList(s.MissingSnapshots...)
		md.PlainText("")
	}
	if len(s.Unvisited) > 0 {
		md.H2("Linked but Not Recorded")
		md.PlainText("")
		md.BulletList(s.Unvisited...)
		md.PlainText("")
	}
	if len(s.DeadEnds) > 0 {
		md.Details("Dead ends ("+strconv.Itoa(len(s.DeadEnds))+")", "- "+strings.Join(s.DeadEnds, "\n- "))
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [sitegraph](https://github.com/nao1215/sitegraph)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
