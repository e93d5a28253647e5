package crawler

import (
	"fmt"
	"net/url"

	"github.com/nao1215/sitegraph/internal/canonical"
	"github.com/nao1215/sitegraph/internal/expand"
	"github.com/nao1215/sitegraph/internal/graph"
	"github.com/nao1215/sitegraph/internal/model"
	"github.com/nao1215/sitegraph/internal/scope"
	"github.com/nao1215/sitegraph/internal/snapshot"
)

// State is the lifecycle state of a Session.
type State int

const (
	// StateIdle is the state before Run.
	StateIdle State = iota
	// StateRunning is the state while entries are being processed.
	StateRunning
	// StatePageFailed is the state after a page failed to load.
	StatePageFailed
	// StatePageCaptured is the state after a page was recorded and saved.
	StatePageCaptured
	// StateDone is the state after the frontier was drained or the page
	// limit was reached.
	StateDone
	// StateAborted is the state after an unexpected error or cancellation.
	StateAborted
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePageFailed:
		return "page_failed"
	case StatePageCaptured:
		return "page_captured"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Stats contains crawl statistics of a Session.
type Stats struct {
	// PagesCaptured is the number of pages recorded in this run.
	PagesCaptured int

	// PagesFailed is the number of pages that failed to load.
	PagesFailed int

	// SnapshotsFailed is the number of recorded pages without a snapshot.
	SnapshotsFailed int

	// LinksFound is the number of edges recorded in this run.
	LinksFound int

	// PagesResumed is the number of pages restored from a previous run.
	PagesResumed int
}

// Session is the crawl state of one seed. It is owned by one goroutine.
type Session struct {
	startURL string
	seed     string
	scope    *scope.Scope
	store    *graph.Store

	visited  map[string]struct{}
	queued   map[string]struct{}
	frontier []model.FrontierEntry

	state State
	stats Stats

	// per-site settings
	maxPages       int
	canonOpts      []canonical.Option
	ignorePatterns []string
	followPatterns []string
	headers        map[string]string
	expander       *expand.Expander
	snapshotter    *snapshot.Snapshotter
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithMaxPages caps the pages captured in one run. 0 means no limit.
func WithMaxPages(n int) SessionOption {
	return func(s *Session) {
		if n >= 0 {
			s.maxPages = n
		}
	}
}

// WithoutQueryParams removes the named query parameters while
// canonicalizing discovered links.
func WithoutQueryParams(names ...string) SessionOption {
	return func(s *Session) {
		if len(names) > 0 {
			s.canonOpts = append(s.canonOpts, canonical.WithoutQueryParams(names...))
		}
	}
}

// WithIgnorePatterns sets URL path patterns that are never visited.
// Links to them are still recorded as children.
// Patterns use glob syntax (e.g., "/admin/*", "*.zip").
func WithIgnorePatterns(patterns []string) SessionOption {
	return func(s *Session) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns restricts visits to URL paths matching at least one
// pattern. The seed is always visited.
func WithFollowPatterns(patterns []string) SessionOption {
	return func(s *Session) {
		s.followPatterns = patterns
	}
}

// WithHeaders sets extra request headers (such as Cookie) for the session.
func WithHeaders(headers map[string]string) SessionOption {
	return func(s *Session) {
		s.headers = headers
	}
}

// WithSessionExpander overrides the engine's expander for this session.
func WithSessionExpander(e *expand.Expander) SessionOption {
	return func(s *Session) {
		s.expander = e
	}
}

// WithSessionSnapshotter overrides the engine's snapshotter for this session.
func WithSessionSnapshotter(sn *snapshot.Snapshotter) SessionOption {
	return func(s *Session) {
		s.snapshotter = sn
	}
}

// NewSession creates the state for crawling startURL into store.
// The seed is canonicalized and becomes the only frontier entry.
func NewSession(startURL string, store *graph.Store, opts ...SessionOption) (*Session, error) {
	s := &Session{
		startURL: startURL,
		store:    store,
		visited:  make(map[string]struct{}),
		queued:   make(map[string]struct{}),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}

	seed, err := canonical.Canonicalize(startURL, s.canonOpts...)
	if err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}
	sc, err := scope.New(seed)
	if err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}
	s.seed = seed
	s.scope = sc
	s.enqueue(model.FrontierEntry{Link: seed, DiscoveredFrom: model.Root})
	return s, nil
}

// Resume continues a previous crawl of the same seed from its saved graph.
// Recorded pages count as visited; their children that were never visited
// are queued. Pages that failed in the previous run are not recorded and
// are therefore tried again.
func (s *Session) Resume(g *model.LinkGraph) {
	s.store.Restore(g)
	s.visited = make(map[string]struct{}, len(g.Links))
	s.queued = make(map[string]struct{})
	s.frontier = nil

	for _, p := range g.Links {
		s.visited[p.Link] = struct{}{}
	}
	if _, done := s.visited[s.seed]; !done {
		s.enqueue(model.FrontierEntry{Link: s.seed, DiscoveredFrom: model.Root})
	}
	for _, p := range g.Links {
		for _, c := range p.Children {
			if !s.isVisited(c) && s.shouldVisit(c) {
				s.enqueue(model.FrontierEntry{Link: c, DiscoveredFrom: p.Link})
			}
		}
	}
	s.stats.PagesResumed = len(g.Links)
}

// Seed returns the canonical seed.
func (s *Session) Seed() string { return s.seed }

// StartURL returns the seed as given.
func (s *Session) StartURL() string { return s.startURL }

// Domain returns the registrable domain the crawl is scoped to.
func (s *Session) Domain() string { return s.scope.Domain() }

// Store returns the graph store.
func (s *Session) Store() *graph.Store { return s.store }

// State returns the current state.
func (s *Session) State() State { return s.state }

// Stats returns the statistics of the current run.
func (s *Session) Stats() Stats { return s.stats }

// Pending returns the number of frontier entries.
func (s *Session) Pending() int { return len(s.frontier) }

// Visited reports whether link was visited.
func (s *Session) Visited(link string) bool { return s.isVisited(link) }

func (s *Session) isVisited(link string) bool {
	_, ok := s.visited[link]
	return ok
}

func (s *Session) markVisited(link string) {
	s.visited[link] = struct{}{}
}

// enqueue appends e unless its link is already waiting.
func (s *Session) enqueue(e model.FrontierEntry) {
	if _, ok := s.queued[e.Link]; ok {
		return
	}
	s.queued[e.Link] = struct{}{}
	s.frontier = append(s.frontier, e)
}

func (s *Session) pop() model.FrontierEntry {
	e := s.frontier[0]
	s.frontier[0] = model.FrontierEntry{}
	s.frontier = s.frontier[1:]
	delete(s.queued, e.Link)
	return e
}

// children canonicalizes raw links and keeps the in-scope ones other than
// page itself, without duplicates and in discovery order.
func (s *Session) children(page string, raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		link, err := canonical.Canonicalize(r, s.canonOpts...)
		if err != nil {
			continue
		}
		if link == page || !s.scope.Contains(link) {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		out = append(out, link)
	}
	return out
}

// shouldVisit applies the ignore and follow patterns to link's path.
//
// Logic:
//  1. If the path matches any ignore pattern, skip it
//  2. If follow patterns are set and none matches, skip it
//  3. Otherwise, visit it
func (s *Session) shouldVisit(link string) bool {
	if len(s.ignorePatterns) == 0 && len(s.followPatterns) == 0 {
		return true
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}
	if len(s.followPatterns) > 0 {
		for _, pattern := range s.followPatterns {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	}
	return true
}
