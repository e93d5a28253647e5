package report

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/nao1215/sitegraph/internal/model"
)

// JSONWriter emits a Summary as a single JSON document.
// URLs are written without HTML escaping, so query strings stay readable.
type JSONWriter struct {
	baseWriter
	pretty bool
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint indents nested fields by two spaces.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) { w.pretty = true }
}

// NewJSONWriter returns a JSONWriter writing compact JSON to output.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write implements Writer.
func (w *JSONWriter) Write(g *model.LinkGraph) (int, error) {
	return w.WriteSummary(NewSummary(g))
}

// WriteSummary implements Writer. The document ends with a newline.
func (w *JSONWriter) WriteSummary(s *Summary) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if w.pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(s); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}
