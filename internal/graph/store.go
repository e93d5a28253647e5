package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"github.com/nao1215/sitegraph/internal/model"
)

// ErrGraphNotFound is returned by Load when the file does not exist.
var ErrGraphNotFound = errors.New("link graph file not found")

// Store holds the pages and edges of one crawl.
// It is owned by a single crawl session and is not safe for concurrent use.
type Store struct {
	path      string
	startURL  string
	startedAt time.Time

	pages []model.PageRecord
	edges []model.Edge

	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore returns an empty store that saves to path.
func NewStore(path, startURL string, opts ...Option) *Store {
	s := &Store{
		path:     path,
		startURL: startURL,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startedAt = s.now()
	return s
}

// Path returns the file the store saves to.
func (s *Store) Path() string {
	return s.path
}

// StartURL returns the seed of the crawl.
func (s *Store) StartURL() string {
	return s.startURL
}

// StartedAt returns the creation time of the store.
func (s *Store) StartedAt() time.Time {
	return s.startedAt
}

// AddPage appends a page record.
func (s *Store) AddPage(rec model.PageRecord) {
	s.pages = append(s.pages, rec)
}

// AddEdge appends an edge.
func (s *Store) AddEdge(from, to string) {
	s.edges = append(s.edges, model.Edge{From: from, To: to})
}

// PageCount returns the number of distinct pages.
func (s *Store) PageCount() int {
	seen := make(map[string]struct{}, len(s.pages))
	for _, p := range s.pages {
		seen[p.Link] = struct{}{}
	}
	return len(seen)
}

// EdgeCount returns the number of edges added, duplicates included.
func (s *Store) EdgeCount() int {
	return len(s.edges)
}

// Graph builds the persisted view of the store at the given time.
func (s *Store) Graph(at time.Time) *model.LinkGraph {
	children := make(map[string]map[string]struct{})
	for _, e := range s.edges {
		set, ok := children[e.From]
		if !ok {
			set = make(map[string]struct{})
			children[e.From] = set
		}
		set[e.To] = struct{}{}
	}

	seen := make(map[string]struct{}, len(s.pages))
	links := make([]model.PageRecord, 0, len(s.pages))
	for _, p := range s.pages {
		if _, dup := seen[p.Link]; dup {
			continue
		}
		seen[p.Link] = struct{}{}

		rec := p
		rec.Children = make([]string, 0, len(children[p.Link]))
		for c := range children[p.Link] {
			rec.Children = append(rec.Children, c)
		}
		slices.Sort(rec.Children)
		links = append(links, rec)
	}
	sort.SliceStable(links, func(i, j int) bool {
		return links[i].Link < links[j].Link
	})

	return &model.LinkGraph{
		SavedAt:  at,
		StartURL: s.startURL,
		Links:    links,
	}
}

// Save writes the current graph to the store's path, replacing the file
// atomically. Parent directories are created as needed.
func (s *Store) Save() error {
	g := s.Graph(s.now())
	if err := WriteFile(s.path, g); err != nil {
		return err
	}
	s.logger.Debug("link graph saved", "path", s.path, "pages", len(g.Links), "edges", len(s.edges))
	return nil
}

// Restore replaces the store's content with the pages and edges of g.
// It is used to continue an interrupted crawl.
func (s *Store) Restore(g *model.LinkGraph) {
	s.pages = s.pages[:0]
	s.edges = s.edges[:0]
	for _, p := range g.Links {
		rec := p
		rec.Children = []string{}
		s.pages = append(s.pages, rec)
		for _, c := range p.Children {
			s.edges = append(s.edges, model.Edge{From: p.Link, To: c})
		}
	}
	if g.StartURL != "" {
		s.startURL = g.StartURL
	}
}

// Load reads a link graph file.
func Load(path string) (*model.LinkGraph, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the user or the output directory
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrGraphNotFound, path)
		}
		return nil, fmt.Errorf("failed to read link graph: %w", err)
	}

	var g model.LinkGraph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse link graph %s: %w", path, err)
	}
	for i := range g.Links {
		if g.Links[i].Children == nil {
			g.Links[i].Children = []string{}
		}
	}
	return &g, nil
}

// WriteFile writes g as indented JSON to path through a temporary file in
// the same directory followed by a rename.
func WriteFile(path string, g *model.LinkGraph) (err error) {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode link graph: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write link graph: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync link graph: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close link graph: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace link graph: %w", err)
	}
	return nil
}
