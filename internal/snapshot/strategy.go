package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/nao1215/sitegraph/internal/browser"
)

// Strategy names accepted by StrategyByName.
const (
	StrategyPrint  = "print"
	StrategyStitch = "stitch"
)

// Defaults of StitchStrategy.
const (
	// DefaultMaxHeight caps the capture height in CSS pixels.
	DefaultMaxHeight = 20000

	// heightSlack is added to the document height when resizing.
	heightSlack = 100
)

// Strategy turns the current page into PDF bytes.
type Strategy interface {
	Name() string
	Capture(ctx context.Context, d browser.Driver) ([]byte, error)
}

// StrategyByName returns the strategy registered under name.
// viewportHeight sizes the bands of the stitch strategy.
func StrategyByName(name string, viewportHeight int) (Strategy, error) {
	switch name {
	case StrategyPrint, "":
		return NewPrintStrategy(), nil
	case StrategyStitch:
		return NewStitchStrategy(viewportHeight), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// PrintStrategy prints the document with zero margins and backgrounds.
type PrintStrategy struct {
	Options browser.PrintOptions
}

// NewPrintStrategy returns a PrintStrategy with zero margins and background
// graphics enabled.
func NewPrintStrategy() *PrintStrategy {
	return &PrintStrategy{
		Options: browser.PrintOptions{PrintBackground: true},
	}
}

// Name implements Strategy.
func (s *PrintStrategy) Name() string {
	return StrategyPrint
}

// Capture implements Strategy.
func (s *PrintStrategy) Capture(ctx context.Context, d browser.Driver) ([]byte, error) {
	return d.PrintToPDF(ctx, s.Options)
}

// StitchStrategy captures one full-page screenshot and splits it into
// page-sized bands.
type StitchStrategy struct {
	// BandHeight is the height of one PDF page in pixels.
	BandHeight int

	// MaxHeight caps the height of the resized viewport.
	MaxHeight int

	// RenderDelay is the wait between resizing and taking the screenshot.
	RenderDelay time.Duration
}

// NewStitchStrategy returns a StitchStrategy whose bands are twice the
// viewport height.
func NewStitchStrategy(viewportHeight int) *StitchStrategy {
	if viewportHeight <= 0 {
		viewportHeight = browser.DefaultViewportHeight
	}
	return &StitchStrategy{
		BandHeight:  2 * viewportHeight,
		MaxHeight:   DefaultMaxHeight,
		RenderDelay: time.Second,
	}
}

// Name implements Strategy.
func (s *StitchStrategy) Name() string {
	return StrategyStitch
}

// Capture implements Strategy. The viewport is restored afterwards.
func (s *StitchStrategy) Capture(ctx context.Context, d browser.Driver) (_ []byte, err error) {
	var width, height int
	if err := d.Evaluate(ctx, browser.ScriptScrollWidth, &width); err != nil {
		return nil, fmt.Errorf("failed to read document width: %w", err)
	}
	if err := d.Evaluate(ctx, browser.ScriptScrollHeight, &height); err != nil {
		return nil, fmt.Errorf("failed to read document height: %w", err)
	}
	if width <= 0 || height <= 0 {
		return nil, ErrEmptyPage
	}
	height = min(s.maxHeight(), height+heightSlack)

	origWidth, origHeight := d.Viewport()
	if err := d.SetViewport(ctx, width, height); err != nil {
		return nil, err
	}
	defer func() {
		if rerr := d.SetViewport(ctx, origWidth, origHeight); rerr != nil && err == nil {
			err = fmt.Errorf("failed to restore viewport: %w", rerr)
		}
	}()

	if err := sleep(ctx, s.RenderDelay); err != nil {
		return nil, err
	}

	shot, err := d.Screenshot(ctx)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(shot))
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot: %w", err)
	}
	return StitchPDF(img, s.bandHeight())
}

func (s *StitchStrategy) maxHeight() int {
	if s.MaxHeight <= 0 {
		return DefaultMaxHeight
	}
	return s.MaxHeight
}

func (s *StitchStrategy) bandHeight() int {
	if s.BandHeight <= 0 {
		return 2 * browser.DefaultViewportHeight
	}
	return s.BandHeight
}

// subImager is implemented by every image type png.Decode returns.
type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// StitchPDF slices img into horizontal bands of bandHeight pixels and
// returns a PDF with one page per band. Bands are embedded as PNG, so no
// quality is lost. The last band keeps its natural height.
func StitchPDF(img image.Image, bandHeight int) ([]byte, error) {
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, ErrEmptyPage
	}
	if bandHeight <= 0 {
		bandHeight = bounds.Dy()
	}
	src, ok := img.(subImager)
	if !ok {
		return nil, fmt.Errorf("image type %T cannot be sliced", img)
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)

	width := float64(bounds.Dx())
	for i, top := 0, bounds.Min.Y; top < bounds.Max.Y; i, top = i+1, top+bandHeight {
		bottom := min(top+bandHeight, bounds.Max.Y)
		band := src.SubImage(image.Rect(bounds.Min.X, top, bounds.Max.X, bottom))

		var buf bytes.Buffer
		if err := png.Encode(&buf, band); err != nil {
			return nil, fmt.Errorf("failed to encode band %d: %w", i, err)
		}

		name := fmt.Sprintf("band-%d", i)
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		h := float64(bottom - top)
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: width, Ht: h})
		pdf.RegisterImageOptionsReader(name, opts, &buf)
		pdf.ImageOptions(name, 0, 0, width, h, false, opts, 0, "")
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("failed to assemble pdf: %w", err)
	}
	return out.Bytes(), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
