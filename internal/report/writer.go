package report

import (
	"io"

	"github.com/nao1215/sitegraph/internal/model"
)

// Writer renders crawl summaries. Both methods return the bytes written.
type Writer interface {
	// Write summarizes g before rendering it.
	Write(g *model.LinkGraph) (int, error)
	// WriteSummary renders a summary computed elsewhere, e.g. with a
	// non-default WithTopLinked.
	WriteSummary(s *Summary) (int, error)
}

// MultiWriter renders one summary through several Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter returns a MultiWriter over writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write computes the summary once and hands it to every writer.
func (m *MultiWriter) Write(g *model.LinkGraph) (int, error) {
	return m.WriteSummary(NewSummary(g))
}

// WriteSummary returns the summed byte count. The first failing writer
// stops the fan-out.
func (m *MultiWriter) WriteSummary(s *Summary) (int, error) {
	n := 0
	for _, w := range m.writers {
		written, err := w.WriteSummary(s)
		n += written
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
