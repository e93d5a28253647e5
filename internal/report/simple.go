package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/sitegraph/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether empty sections are shown.
	showEmpty bool

	// verbose lists every page of the long sections instead of a sample.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose lists every entry of long sections.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// sampleSize is the number of entries listed per section without verbose.
const sampleSize = 10

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write summarizes g and writes it in human-readable format.
func (w *SimpleWriter) Write(g *model.LinkGraph) (int, error) {
	return w.WriteSummary(NewSummary(g))
}

// WriteSummary outputs the summary in human-readable format.
func (w *SimpleWriter) WriteSummary(s *Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, s)
	w.writeContentTypes(&sb, s)
	w.writeList(&sb, "MOST LINKED PAGES", linkCountLines(s.MostLinked))
	w.writeList(&sb, "MISSING SNAPSHOTS", s.MissingSnapshots)
	w.writeList(&sb, "LINKED BUT NOT RECORDED", s.Unvisited)
	w.writeList(&sb, "DEAD ENDS", s.DeadEnds)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        SITEGRAPH REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Start URL:  %s\n", s.StartURL)
	fmt.Fprintf(sb, "Saved:      %s\n", s.SavedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Pages:      %d\n", s.Pages)
	fmt.Fprintf(sb, "Links:      %d\n", s.Edges)
	fmt.Fprintf(sb, "Hosts:      %s\n", strings.Join(s.Hosts, ", "))
	if s.Complete() {
		sb.WriteString("Status:     Complete\n")
	} else {
		fmt.Fprintf(sb, "Status:     %d missing snapshot(s), %d link(s) not recorded\n",
			len(s.MissingSnapshots), len(s.Unvisited))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeContentTypes(sb *strings.Builder, s *Summary) {
	if len(s.ContentTypes) == 0 && !w.showEmpty {
		return
	}
	writeSection(sb, "CONTENT TYPES")
	if len(s.ContentTypes) == 0 {
		sb.WriteString("  No pages\n\n")
		return
	}
	for _, tc := range s.ContentTypes {
		fmt.Fprintf(sb, "  %-8s %d\n", tc.ContentType+":", tc.Count)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeList(sb *strings.Builder, title string, lines []string) {
	if len(lines) == 0 && !w.showEmpty {
		return
	}
	writeSection(sb, title)
	if len(lines) == 0 {
		sb.WriteString("  None\n\n")
		return
	}

	shown := lines
	if !w.verbose && len(shown) > sampleSize {
		shown = shown[:sampleSize]
	}
	for _, line := range shown {
		fmt.Fprintf(sb, "  [-] %s\n", line)
	}
	if rest := len(lines) - len(shown); rest > 0 {
		fmt.Fprintf(sb, "  ... and %d more (use --verbose to list all)\n", rest)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by sitegraph\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

func linkCountLines(counts []LinkCount) []string {
	lines := make([]string, len(counts))
	for i, c := range counts {
		lines[i] = fmt.Sprintf("%s (%d)", c.Link, c.Inbound)
	}
	return lines
}
