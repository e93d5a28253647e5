package snapshot

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/nao1215/sitegraph/internal/browser"
	"github.com/nao1215/sitegraph/internal/browser/browsertest"
	"github.com/nao1215/sitegraph/internal/model"
)

const pageURL = "https://acme.test/about"

func openPage(t *testing.T, p *browsertest.Page) *browsertest.Driver {
	t.Helper()

	d := browsertest.New(200, 100, map[string]*browsertest.Page{pageURL: p})
	if _, err := d.Navigate(context.Background(), pageURL); err != nil {
		t.Fatalf("failed to navigate: %v", err)
	}
	return d
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestSnapshotterCapture tests that the print strategy writes <id>.pdf.
func TestSnapshotterCapture(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "content")
	d := openPage(t, &browsertest.Page{Height: 500})
	s := New(dir, WithLogger(quietLogger()))

	id := model.PageID(pageURL)
	res, err := s.Capture(context.Background(), d, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Filename != id+".pdf" {
		t.Errorf("expected filename %s.pdf, got %s", id, res.Filename)
	}

	data, err := os.ReadFile(filepath.Join(dir, res.Filename))
	if err != nil {
		t.Fatalf("failed to read snapshot: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Errorf("expected a PDF, got %q", data[:min(len(data), 16)])
	}

	prints := d.Prints()
	if len(prints) != 1 {
		t.Fatalf("expected 1 print call, got %d", len(prints))
	}
	if !prints[0].PrintBackground {
		t.Error("expected background graphics to be printed")
	}
	if prints[0].MarginTop != 0 || prints[0].MarginLeft != 0 {
		t.Error("expected zero margins")
	}
}

// TestSnapshotterCaptureFailure tests that failures are wrapped with ErrCapture.
func TestSnapshotterCaptureFailure(t *testing.T) {
	t.Parallel()

	d := openPage(t, &browsertest.Page{Height: 500})
	d.PrintErr = errors.New("printing is not supported")
	s := New(t.TempDir(), WithLogger(quietLogger()))

	_, err := s.Capture(context.Background(), d, "abc")
	if !errors.Is(err, ErrCapture) {
		t.Errorf("expected ErrCapture, got %v", err)
	}
}

// TestSnapshotterContentType tests content type detection.
func TestSnapshotterContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mime     string
		expected model.ContentType
	}{
		{mime: "text/html", expected: model.ContentTypeHTML},
		{mime: "application/pdf", expected: model.ContentTypePDF},
		{mime: "image/jpeg", expected: model.ContentTypeImage},
		{mime: "application/json", expected: "Other: application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			t.Parallel()

			d := openPage(t, &browsertest.Page{MIME: tt.mime})
			got, err := New(t.TempDir()).ContentType(context.Background(), d)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

// TestStitchStrategy tests full-page capture and viewport restoration.
func TestStitchStrategy(t *testing.T) {
	t.Parallel()

	d := openPage(t, &browsertest.Page{Height: 450, Width: 120})
	s := NewStitchStrategy(100)
	s.RenderDelay = 0

	data, err := s.Capture(context.Background(), d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("expected a PDF")
	}
	if got := countPages(data); got != 3 {
		t.Errorf("expected 3 pages for a 550px capture in 200px bands, got %d", got)
	}

	history := d.ViewportHistory()
	if len(history) != 2 {
		t.Fatalf("expected resize and restore, got %v", history)
	}
	if history[0] != [2]int{120, 550} {
		t.Errorf("expected full-page viewport 120x550, got %v", history[0])
	}
	if history[1] != [2]int{200, 100} {
		t.Errorf("expected viewport restored to 200x100, got %v", history[1])
	}
}

// TestStitchStrategyMaxHeight tests the capture height cap.
func TestStitchStrategyMaxHeight(t *testing.T) {
	t.Parallel()

	d := openPage(t, &browsertest.Page{Height: 100000, Width: 50})
	s := &StitchStrategy{BandHeight: 500, MaxHeight: 1000}

	if _, err := s.Capture(context.Background(), d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := d.ViewportHistory()[0]; got != [2]int{50, 1000} {
		t.Errorf("expected capped viewport 50x1000, got %v", got)
	}
}

// TestStitchStrategyScreenshotError tests that the viewport is restored on failure.
func TestStitchStrategyScreenshotError(t *testing.T) {
	t.Parallel()

	d := openPage(t, &browsertest.Page{Height: 300})
	d.ScreenshotErr = errors.New("screenshot failed")
	s := &StitchStrategy{BandHeight: 100}

	if _, err := s.Capture(context.Background(), d); err == nil {
		t.Fatal("expected error")
	}
	w, h := d.Viewport()
	if w != 200 || h != 100 {
		t.Errorf("expected viewport restored to 200x100, got %dx%d", w, h)
	}
}

// TestStitchPDF tests band slicing directly.
func TestStitchPDF(t *testing.T) {
	t.Parallel()

	img := image.NewRGBA(image.Rect(0, 0, 10, 25))
	for y := range 25 {
		for x := range 10 {
			img.Set(x, y, color.RGBA{R: uint8(y * 10), A: 255})
		}
	}

	t.Run("one page per band", func(t *testing.T) {
		t.Parallel()

		data, err := StitchPDF(img, 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := countPages(data); got != 3 {
			t.Errorf("expected 3 pages, got %d", got)
		}
	})

	t.Run("zero band height yields one page", func(t *testing.T) {
		t.Parallel()

		data, err := StitchPDF(img, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := countPages(data); got != 1 {
			t.Errorf("expected 1 page, got %d", got)
		}
	})

	t.Run("empty image is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := StitchPDF(image.NewRGBA(image.Rect(0, 0, 0, 0)), 10)
		if !errors.Is(err, ErrEmptyPage) {
			t.Errorf("expected ErrEmptyPage, got %v", err)
		}
	})
}

// TestStrategyByName tests strategy lookup.
func TestStrategyByName(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", StrategyPrint, StrategyStitch} {
		s, err := StrategyByName(name, 1080)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", name, err)
		}
		if name != "" && s.Name() != name {
			t.Errorf("expected %q, got %q", name, s.Name())
		}
	}

	stitch, _ := StrategyByName(StrategyStitch, 1080)
	if got := stitch.(*StitchStrategy).BandHeight; got != 2160 {
		t.Errorf("expected band height 2160, got %d", got)
	}

	if _, err := StrategyByName("scan", 1080); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("expected ErrUnknownStrategy, got %v", err)
	}
}

var _ browser.Driver = (*browsertest.Driver)(nil)

var pageObject = regexp.MustCompile(`/Type\s*/Page\b`)

// countPages counts page objects in a PDF. Page dictionaries are never
// compressed, so a textual match is enough.
func countPages(pdf []byte) int {
	return len(pageObject.FindAll(pdf, -1))
}
