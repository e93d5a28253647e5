package expand

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/nao1215/sitegraph/internal/browser"
	"github.com/nao1215/sitegraph/internal/browser/browsertest"
)

const pageURL = "https://acme.test/news"

func newTestExpander(opts ...Option) *Expander {
	base := []Option{
		WithSettleDelay(0),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return New(append(base, opts...)...)
}

func openPage(t *testing.T, p *browsertest.Page) *browsertest.Driver {
	t.Helper()

	d := browsertest.New(800, 600, map[string]*browsertest.Page{pageURL: p})
	if _, err := d.Navigate(context.Background(), pageURL); err != nil {
		t.Fatalf("failed to navigate: %v", err)
	}
	return d
}

// TestExpandLoadMore tests that every load-more button is clicked exactly once.
func TestExpandLoadMore(t *testing.T) {
	t.Parallel()

	d := openPage(t, &browsertest.Page{Height: 1000, LoadMore: 3, LoadMoreGrowth: 800})

	res, err := newTestExpander().Expand(context.Background(), d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Clicks != 3 {
		t.Errorf("expected 3 clicks, got %d", res.Clicks)
	}
	if len(d.Clicks()) != 3 {
		t.Errorf("expected 3 recorded clicks, got %v", d.Clicks())
	}
	if res.Height != 3400 {
		t.Errorf("expected final height 3400, got %d", res.Height)
	}
	if res.Attempts != 4 {
		t.Errorf("expected 4 attempts, got %d", res.Attempts)
	}
}

// TestExpandInfiniteScroll tests that scrolling stops once the height is stable.
func TestExpandInfiniteScroll(t *testing.T) {
	t.Parallel()

	d := openPage(t, &browsertest.Page{Height: 1000, ScrollHeights: []int{2000, 3000, 3000}})

	res, err := newTestExpander().Expand(context.Background(), d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Scrolls != 3 {
		t.Errorf("expected 3 scrolls, got %d", res.Scrolls)
	}
	if res.Height != 3000 {
		t.Errorf("expected height 3000, got %d", res.Height)
	}
	if res.Clicks != 0 {
		t.Errorf("expected no clicks, got %d", res.Clicks)
	}
}

// TestExpandScrollLimit tests that endless feeds stop at the scroll cap.
func TestExpandScrollLimit(t *testing.T) {
	t.Parallel()

	heights := make([]int, 50)
	for i := range heights {
		heights[i] = 1000 * (i + 2)
	}
	d := openPage(t, &browsertest.Page{Height: 1000, ScrollHeights: heights})

	res, err := newTestExpander(WithMaxScrolls(5)).Expand(context.Background(), d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Scrolls != 5 {
		t.Errorf("expected 5 scrolls, got %d", res.Scrolls)
	}
}

// TestExpandPersistentControl tests that the same element is never clicked twice.
func TestExpandPersistentControl(t *testing.T) {
	t.Parallel()

	d := openPage(t, &browsertest.Page{
		Height: 1000,
		Elements: []browser.Element{
			{Handle: "more", Tag: "button", Text: "Show more", Visible: true, Enabled: true},
		},
		ClickGrowth: map[string]int{"more": 100},
	})

	res, err := newTestExpander().Expand(context.Background(), d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Clicks != 1 {
		t.Errorf("expected 1 click, got %d", res.Clicks)
	}
}

// TestExpandSkipsFailingControls tests that click errors do not abort expansion.
func TestExpandSkipsFailingControls(t *testing.T) {
	t.Parallel()

	d := openPage(t, &browsertest.Page{
		Height: 1000,
		Elements: []browser.Element{
			{Handle: "broken", Tag: "button", Text: "Load more", Visible: true, Enabled: true},
			{Handle: "hidden", Tag: "button", Text: "Show more", Visible: false, Enabled: true},
			{Handle: "disabled", Tag: "button", Text: "Show more", Visible: true, Enabled: false},
			{Handle: "other", Tag: "button", Text: "Subscribe", Visible: true, Enabled: true},
			{Handle: "works", Tag: "a", Text: "See more", Visible: true, Enabled: true},
		},
		ClickErrors: map[string]error{"broken": errors.New("element click intercepted")},
		ClickGrowth: map[string]int{"works": 500},
	})

	res, err := newTestExpander().Expand(context.Background(), d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clicks := d.Clicks()
	if len(clicks) != 1 || clicks[0] != "works" {
		t.Errorf("expected only 'works' to be clicked, got %v", clicks)
	}
	if res.Height != 1500 {
		t.Errorf("expected height 1500, got %d", res.Height)
	}
}

// TestExpandMaxAttempts tests the expand phase cap.
func TestExpandMaxAttempts(t *testing.T) {
	t.Parallel()

	d := openPage(t, &browsertest.Page{Height: 1000, LoadMore: 10, LoadMoreGrowth: 10})

	res, err := newTestExpander(WithMaxAttempts(4)).Expand(context.Background(), d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Attempts != 4 || res.Clicks != 4 {
		t.Errorf("expected 4 attempts and 4 clicks, got %d and %d", res.Attempts, res.Clicks)
	}
}

// TestExpandHeightError tests that a broken session is reported.
func TestExpandHeightError(t *testing.T) {
	t.Parallel()

	d := openPage(t, &browsertest.Page{Height: 1000})
	d.EvaluateErr = errors.New("target closed")

	if _, err := newTestExpander().Expand(context.Background(), d); err == nil {
		t.Error("expected error when the document height cannot be read")
	}
}

// TestExpandCancelled tests that a cancelled context stops expansion.
func TestExpandCancelled(t *testing.T) {
	t.Parallel()

	d := openPage(t, &browsertest.Page{Height: 1000, LoadMore: 5, LoadMoreGrowth: 10})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestExpander().Expand(ctx, d)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func leavingPage() *browsertest.Page {
	return &browsertest.Page{
		Height: 1000,
		Elements: []browser.Element{
			{Handle: "story", Tag: "a", Text: "See more stories", Href: "/article", Visible: true, Enabled: true},
		},
		ClickNavigates: map[string]string{"story": "https://acme.test/article"},
		LoadMore:       1,
		LoadMoreGrowth: 400,
	}
}

// TestExpandReturnsAfterLeavingPage tests that a control loading another
// document is undone and expansion continues on the original page.
func TestExpandReturnsAfterLeavingPage(t *testing.T) {
	t.Parallel()

	d := openPage(t, leavingPage())

	res, err := newTestExpander().Expand(context.Background(), d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Returns != 1 || res.Clicks != 1 {
		t.Errorf("expected 1 return and 1 click, got %+v", res)
	}
	if res.Height != 1400 {
		t.Errorf("expected height 1400, got %d", res.Height)
	}

	var loc string
	if err := d.Evaluate(context.Background(), browser.ScriptLocation, &loc); err != nil {
		t.Fatal(err)
	}
	if loc != pageURL {
		t.Errorf("expected to end on %s, got %s", pageURL, loc)
	}
	if visits := d.Visits(); len(visits) != 2 || visits[1] != pageURL {
		t.Errorf("expected one navigation back to the page, got %v", visits)
	}
}

// TestExpandReturnFails tests that a failed navigation back is reported as
// a navigation error.
func TestExpandReturnFails(t *testing.T) {
	t.Parallel()

	d := openPage(t, leavingPage())
	d.AddPage(pageURL, &browsertest.Page{Status: 503})

	_, err := newTestExpander().Expand(context.Background(), d)
	if !errors.Is(err, browser.ErrNavigation) {
		t.Errorf("expected ErrNavigation, got %v", err)
	}
}
