package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nao1215/sitegraph/internal/browser"
	"github.com/nao1215/sitegraph/internal/canonical"
	"github.com/nao1215/sitegraph/internal/expand"
	"github.com/nao1215/sitegraph/internal/model"
	"github.com/nao1215/sitegraph/internal/snapshot"
)

// PageEvent is passed to the page callback after each processed entry.
type PageEvent struct {
	// Entry is the processed frontier entry.
	Entry model.FrontierEntry

	// Record is the recorded page. Zero when Failed is true.
	Record model.PageRecord

	// Failed reports a navigation failure, a non-2xx status or a redirect
	// outside the crawl scope.
	Failed bool

	// Status is the HTTP status, when known.
	Status int

	// Err is the navigation or capture error, if any.
	Err error
}

// Engine drives crawl sessions with one browser.
type Engine struct {
	// driver is the browser tab all pages are loaded in.
	driver browser.Driver

	// expander reveals lazily loaded content before capture.
	expander *expand.Expander

	// snapshotter writes page snapshots.
	snapshotter *snapshot.Snapshotter

	// onPage is called after each processed entry.
	onPage func(*Session, PageEvent)

	logger *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithExpander sets the expander.
func WithExpander(e *expand.Expander) EngineOption {
	return func(en *Engine) {
		en.expander = e
	}
}

// WithSnapshotter sets the snapshotter.
func WithSnapshotter(s *snapshot.Snapshotter) EngineOption {
	return func(en *Engine) {
		en.snapshotter = s
	}
}

// WithPageCallback registers fn to be called after each processed entry.
func WithPageCallback(fn func(*Session, PageEvent)) EngineOption {
	return func(en *Engine) {
		en.onPage = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(en *Engine) {
		en.logger = l
	}
}

// NewEngine creates an Engine using driver.
// Without options it expands with default settings and prints snapshots
// into the current directory.
func NewEngine(driver browser.Driver, opts ...EngineOption) *Engine {
	e := &Engine{
		driver: driver,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.expander == nil {
		e.expander = expand.New(expand.WithLogger(e.logger))
	}
	if e.snapshotter == nil {
		e.snapshotter = snapshot.New(".", snapshot.WithLogger(e.logger))
	}
	return e
}

// Run processes s until its frontier is empty, its page limit is reached,
// ctx is cancelled, or an unexpected error occurs.
func (e *Engine) Run(ctx context.Context, s *Session) (err error) {
	logger := e.logger.With("seed", s.seed, "domain", s.Domain())
	s.state = StateRunning
	defer func() {
		if err != nil {
			s.state = StateAborted
		}
	}()

	if len(s.headers) > 0 {
		if err := e.driver.SetExtraHeaders(ctx, s.headers); err != nil {
			return fmt.Errorf("failed to apply site headers: %w", err)
		}
		defer func() {
			// Headers must not leak into the next site crawled with this driver.
			if rerr := e.driver.SetExtraHeaders(context.WithoutCancel(ctx), nil); rerr != nil {
				logger.Warn("failed to clear site headers", "error", rerr)
			}
		}()
	}

	logger.Info("crawl started", "pending", len(s.frontier), "resumed_pages", s.stats.PagesResumed)

	for len(s.frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.maxPages > 0 && s.stats.PagesCaptured >= s.maxPages {
			logger.Info("page limit reached", "max_pages", s.maxPages, "pending", len(s.frontier))
			break
		}

		entry := s.pop()
		if s.isVisited(entry.Link) {
			continue
		}
		s.markVisited(entry.Link)

		if err := e.visit(ctx, s, entry); err != nil {
			return err
		}
	}

	s.state = StateDone
	logger.Info("crawl finished",
		"captured", s.stats.PagesCaptured,
		"failed", s.stats.PagesFailed,
		"snapshot_failures", s.stats.SnapshotsFailed,
		"links", s.stats.LinksFound,
	)
	return nil
}

// visit processes one entry. Only unexpected errors are returned.
func (e *Engine) visit(ctx context.Context, s *Session, entry model.FrontierEntry) error {
	logger := e.logger.With("url", entry.Link, "discovered_from", entry.DiscoveredFrom)

	resp, err := e.driver.Navigate(ctx, entry.Link)
	if err != nil {
		if errors.Is(err, browser.ErrNavigation) {
			logger.Warn("navigation failed", "error", err)
			e.fail(s, PageEvent{Entry: entry, Failed: true, Err: err})
			return nil
		}
		return fmt.Errorf("failed to navigate to %s: %w", entry.Link, err)
	}
	if !resp.OK() {
		logger.Warn("page returned non-success status", "status", resp.Status)
		e.fail(s, PageEvent{Entry: entry, Failed: true, Status: resp.Status})
		return nil
	}
	if resp.URL != "" && !canonical.Equal(resp.URL, entry.Link) {
		if !s.scope.Contains(resp.URL) {
			err := fmt.Errorf("%w: %s", ErrOffsiteRedirect, resp.URL)
			logger.Warn("page redirected outside the crawl scope", "location", resp.URL)
			e.fail(s, PageEvent{Entry: entry, Failed: true, Status: resp.Status, Err: err})
			return nil
		}
		logger.Info("page redirected", "location", resp.URL)
	}

	expander := e.expander
	if s.expander != nil {
		expander = s.expander
	}
	if _, err := expander.Expand(ctx, e.driver); err != nil {
		if errors.Is(err, browser.ErrNavigation) && ctx.Err() == nil {
			logger.Warn("page lost during expansion", "error", err)
			e.fail(s, PageEvent{Entry: entry, Failed: true, Err: err})
			return nil
		}
		return fmt.Errorf("failed to expand %s: %w", entry.Link, err)
	}

	snap := e.snapshotter
	if s.snapshotter != nil {
		snap = s.snapshotter
	}
	contentType, err := snap.ContentType(ctx, e.driver)
	if err != nil {
		return fmt.Errorf("failed to classify %s: %w", entry.Link, err)
	}

	var (
		filename   string
		captureErr error
	)
	result, err := snap.Capture(ctx, e.driver, model.PageID(entry.Link))
	switch {
	case err == nil:
		filename = result.Filename
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		logger.Warn("snapshot failed, recording page without it", "error", err)
		s.stats.SnapshotsFailed++
		captureErr = err
	}

	raw, err := e.extractLinks(ctx, entry.Link)
	if err != nil {
		return fmt.Errorf("failed to extract links from %s: %w", entry.Link, err)
	}

	children := s.children(entry.Link, raw)
	for _, child := range children {
		s.store.AddEdge(entry.Link, child)
		if !s.isVisited(child) && s.shouldVisit(child) {
			s.enqueue(model.FrontierEntry{Link: child, DiscoveredFrom: entry.Link})
		}
	}

	rec := model.NewPageRecord(entry.Link, contentType, filename)
	s.store.AddPage(rec)
	if err := s.store.Save(); err != nil {
		return fmt.Errorf("failed to persist link graph: %w", err)
	}

	s.state = StatePageCaptured
	s.stats.PagesCaptured++
	s.stats.LinksFound += len(children)
	logger.Debug("page captured",
		"content_type", contentType,
		"snapshot", filename,
		"children", len(children),
		"pending", len(s.frontier),
	)
	if e.onPage != nil {
		e.onPage(s, PageEvent{Entry: entry, Record: rec, Status: resp.Status, Err: captureErr})
	}
	return nil
}

func (e *Engine) fail(s *Session, ev PageEvent) {
	s.state = StatePageFailed
	s.stats.PagesFailed++
	if e.onPage != nil {
		e.onPage(s, ev)
	}
}

// extractLinks reads the rendered DOM and returns its absolute links.
func (e *Engine) extractLinks(ctx context.Context, pageURL string) ([]string, error) {
	var html, base string
	if err := e.driver.Evaluate(ctx, browser.ScriptOuterHTML, &html); err != nil {
		return nil, err
	}
	if err := e.driver.Evaluate(ctx, browser.ScriptBaseURI, &base); err != nil || base == "" {
		base = pageURL
	}

	parser, err := NewLinkParser(base)
	if err != nil {
		return nil, err
	}
	return parser.Parse(strings.NewReader(html))
}
