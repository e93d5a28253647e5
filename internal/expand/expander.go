package expand

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/sitegraph/internal/browser"
)

const (
	// DefaultMaxAttempts bounds the expand phase.
	DefaultMaxAttempts = 100

	// DefaultMaxScrolls bounds the scroll phase on endless feeds.
	DefaultMaxScrolls = 100

	// DefaultSettleDelay is the pause after each scroll and click.
	DefaultSettleDelay = 500 * time.Millisecond
)

// Expander runs the scroll and expand phases on a page.
// An Expander holds no per-page state and may be reused.
type Expander struct {
	// matcher selects expand controls.
	matcher Matcher

	// maxAttempts is the iteration cap of the expand phase.
	maxAttempts int

	// maxScrolls is the iteration cap of the scroll phase.
	maxScrolls int

	// settle is the wait after each scroll, scroll-into-view and click.
	settle time.Duration

	logger *slog.Logger
}

// Option configures an Expander.
type Option func(*Expander)

// WithMatcher sets the expand control strategy.
func WithMatcher(m Matcher) Option {
	return func(e *Expander) {
		e.matcher = m
	}
}

// WithMaxAttempts caps the expand phase. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(e *Expander) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithMaxScrolls caps the scroll phase. Values below 1 are ignored.
func WithMaxScrolls(n int) Option {
	return func(e *Expander) {
		if n > 0 {
			e.maxScrolls = n
		}
	}
}

// WithSettleDelay sets the wait after each interaction.
func WithSettleDelay(d time.Duration) Option {
	return func(e *Expander) {
		e.settle = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Expander) {
		e.logger = l
	}
}

// New creates an Expander.
func New(opts ...Option) *Expander {
	e := &Expander{
		matcher:     NewKeywordMatcher(),
		maxAttempts: DefaultMaxAttempts,
		maxScrolls:  DefaultMaxScrolls,
		settle:      DefaultSettleDelay,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result summarizes one expansion.
type Result struct {
	// Scrolls is the number of scrolls to the bottom.
	Scrolls int

	// Attempts is the number of expand phase iterations.
	Attempts int

	// Clicks is the number of successful clicks.
	Clicks int

	// Returns counts clicks that left the page and were undone by
	// navigating back.
	Returns int

	// Height is the final document height.
	Height int
}

// Expand runs both phases on the page d is showing.
// Failures to interact with a single element are logged and skipped;
// failures to read the document height are returned. A click that loads
// another document is undone by navigating back to the page; if that
// navigation fails, its error is returned.
func (e *Expander) Expand(ctx context.Context, d browser.Driver) (Result, error) {
	var res Result

	height, err := e.scroll(ctx, d, &res)
	if err != nil {
		return res, err
	}
	res.Height = height

	height, err = e.expand(ctx, d, &res, height)
	if err != nil {
		return res, err
	}
	res.Height = height

	e.logger.Debug("page expanded",
		"scrolls", res.Scrolls,
		"attempts", res.Attempts,
		"clicks", res.Clicks,
		"returns", res.Returns,
		"height", res.Height,
	)
	return res, nil
}

func (e *Expander) scroll(ctx context.Context, d browser.Driver, res *Result) (int, error) {
	last, err := documentHeight(ctx, d)
	if err != nil {
		return 0, err
	}

	for res.Scrolls < e.maxScrolls {
		if err := d.Evaluate(ctx, browser.ScriptScrollToBottom, nil); err != nil {
			return last, fmt.Errorf("failed to scroll to bottom: %w", err)
		}
		res.Scrolls++
		if err := sleep(ctx, e.settle); err != nil {
			return last, err
		}

		height, err := documentHeight(ctx, d)
		if err != nil {
			return last, err
		}
		if height == last {
			break
		}
		last = height
	}
	return last, nil
}

func (e *Expander) expand(ctx context.Context, d browser.Driver, res *Result, last int) (int, error) {
	origin, err := location(ctx, d)
	if err != nil {
		return last, err
	}
	attempted := make(map[string]struct{})

	for res.Attempts < e.maxAttempts {
		res.Attempts++

		returns := res.Returns
		clicked, err := e.clickNext(ctx, d, origin, attempted, res)
		if err != nil {
			return last, err
		}
		if clicked {
			res.Clicks++
		}

		height, err := documentHeight(ctx, d)
		if err != nil {
			return last, err
		}
		if !clicked && res.Returns == returns && height == last {
			break
		}
		last = height
	}
	return last, nil
}

// clickNext clicks the first clickable candidate not attempted yet.
// A click that leaves origin does not count: the page is reloaded, and
// since the listed handles belong to the old document, the caller lists
// candidates again. Context errors and failures to get back to origin are
// returned.
func (e *Expander) clickNext(ctx context.Context, d browser.Driver, origin string, attempted map[string]struct{}, res *Result) (bool, error) {
	elements, err := d.FindElements(ctx, e.matcher.Selector())
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		e.logger.Warn("failed to list expand controls", "error", err)
		return false, nil
	}

	for _, el := range elements {
		if _, done := attempted[el.Handle]; done {
			continue
		}
		if !el.Clickable() || !e.matcher.Matches(el) {
			continue
		}
		attempted[el.Handle] = struct{}{}

		if err := d.ScrollIntoView(ctx, el); err != nil {
			e.logger.Debug("failed to scroll to expand control", "handle", el.Handle, "error", err)
			continue
		}
		if err := sleep(ctx, e.settle); err != nil {
			return false, err
		}
		if err := d.Click(ctx, el); err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			e.logger.Debug("failed to click expand control",
				"handle", el.Handle,
				"tag", el.Tag,
				"text", el.Text,
				"error", err,
			)
			continue
		}
		if err := sleep(ctx, e.settle); err != nil {
			return false, err
		}

		left, err := e.returnIfLeft(ctx, d, origin, el)
		if err != nil {
			return false, err
		}
		if left {
			res.Returns++
			return false, nil
		}
		return true, nil
	}
	return false, nil
}

// returnIfLeft navigates back to origin when the document changed.
func (e *Expander) returnIfLeft(ctx context.Context, d browser.Driver, origin string, el browser.Element) (bool, error) {
	now, err := location(ctx, d)
	if err != nil {
		return false, err
	}
	if browser.SameDocument(now, origin) {
		return false, nil
	}

	e.logger.Info("expand control left the page, navigating back",
		"handle", el.Handle,
		"text", el.Text,
		"location", now,
	)
	resp, err := d.Navigate(ctx, origin)
	if err != nil {
		return true, fmt.Errorf("failed to return to %s: %w", origin, err)
	}
	if !resp.OK() {
		return true, fmt.Errorf("%w: returning to %s gave status %d", browser.ErrNavigation, origin, resp.Status)
	}
	if err := sleep(ctx, e.settle); err != nil {
		return true, err
	}
	return true, nil
}

func documentHeight(ctx context.Context, d browser.Driver) (int, error) {
	var h int
	if err := d.Evaluate(ctx, browser.ScriptScrollHeight, &h); err != nil {
		return 0, fmt.Errorf("failed to read document height: %w", err)
	}
	return h, nil
}

func location(ctx context.Context, d browser.Driver) (string, error) {
	var loc string
	if err := d.Evaluate(ctx, browser.ScriptLocation, &loc); err != nil {
		return "", fmt.Errorf("failed to read page location: %w", err)
	}
	return loc, nil
}

// sleep waits for d or until ctx is done.
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
