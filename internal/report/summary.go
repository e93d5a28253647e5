package report

import (
	"cmp"
	"net/url"
	"slices"
	"time"

	"github.com/nao1215/sitegraph/internal/model"
)

// DefaultTopLinked is the number of most-linked pages in a Summary.
const DefaultTopLinked = 10

// LinkCount is a page and the number of recorded pages linking to it.
type LinkCount struct {
	Link    string `json:"link"`
	Inbound int    `json:"inbound"`
}

// TypeCount is the number of pages of one content type.
type TypeCount struct {
	ContentType model.ContentType `json:"content_type"`
	Count       int               `json:"count"`
}

// Summary is the derived view of a link graph that writers render.
type Summary struct {
	// StartURL is the seed of the crawl.
	StartURL string `json:"start_url"`

	// SavedAt is the time the graph was last saved.
	SavedAt time.Time `json:"dt"`

	// Pages is the number of recorded pages.
	Pages int `json:"pages"`

	// Edges is the number of parent to child links.
	Edges int `json:"edges"`

	// Hosts lists the distinct hosts of the recorded pages, sorted.
	Hosts []string `json:"hosts"`

	// ContentTypes is the number of pages per content type, largest first.
	ContentTypes []TypeCount `json:"content_types"`

	// MissingSnapshots lists pages recorded without a snapshot.
	MissingSnapshots []string `json:"missing_snapshots"`

	// MostLinked lists the pages with the most inbound links.
	MostLinked []LinkCount `json:"most_linked"`

	// Unvisited lists children that were never recorded: pages that
	// failed to load, were excluded by patterns, or are still pending.
	Unvisited []string `json:"unvisited"`

	// DeadEnds lists recorded pages without children.
	DeadEnds []string `json:"dead_ends"`
}

// SummaryOption configures NewSummary.
type SummaryOption func(*summaryOptions)

type summaryOptions struct {
	topLinked int
}

// WithTopLinked sets how many most-linked pages are listed.
func WithTopLinked(n int) SummaryOption {
	return func(o *summaryOptions) {
		if n >= 0 {
			o.topLinked = n
		}
	}
}

// NewSummary derives a Summary from g.
func NewSummary(g *model.LinkGraph, opts ...SummaryOption) *Summary {
	o := summaryOptions{topLinked: DefaultTopLinked}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Summary{
		StartURL:         g.StartURL,
		SavedAt:          g.SavedAt,
		Pages:            len(g.Links),
		Hosts:            []string{},
		ContentTypes:     []TypeCount{},
		MissingSnapshots: []string{},
		MostLinked:       []LinkCount{},
		Unvisited:        []string{},
		DeadEnds:         []string{},
	}

	recorded := make(map[string]struct{}, len(g.Links))
	hosts := make(map[string]struct{})
	for _, p := range g.Links {
		recorded[p.Link] = struct{}{}
		if u, err := url.Parse(p.Link); err == nil && u.Host != "" {
			hosts[u.Host] = struct{}{}
		}
	}

	inbound := make(map[string]int)
	unvisited := make(map[string]struct{})
	for _, p := range g.Links {
		s.Edges += len(p.Children)
		if len(p.Children) == 0 {
			s.DeadEnds = append(s.DeadEnds, p.Link)
		}
		if !p.HasSnapshot() {
			s.MissingSnapshots = append(s.MissingSnapshots, p.Link)
		}
		for _, c := range p.Children {
			inbound[c]++
			if _, ok := recorded[c]; !ok {
				unvisited[c] = struct{}{}
			}
		}
	}

	for h := range hosts {
		s.Hosts = append(s.Hosts, h)
	}
	slices.Sort(s.Hosts)

	for ct, n := range g.CountByContentType() {
		s.ContentTypes = append(s.ContentTypes, TypeCount{ContentType: ct, Count: n})
	}
	slices.SortFunc(s.ContentTypes, func(a, b TypeCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.ContentType, b.ContentType)
	})

	for link, n := range inbound {
		s.MostLinked = append(s.MostLinked, LinkCount{Link: link, Inbound: n})
	}
	slices.SortFunc(s.MostLinked, func(a, b LinkCount) int {
		if c := cmp.Compare(b.Inbound, a.Inbound); c != 0 {
			return c
		}
		return cmp.Compare(a.Link, b.Link)
	})
	if len(s.MostLinked) > o.topLinked {
		s.MostLinked = s.MostLinked[:o.topLinked]
	}

	for link := range unvisited {
		s.Unvisited = append(s.Unvisited, link)
	}
	slices.Sort(s.Unvisited)
	slices.Sort(s.MissingSnapshots)
	slices.Sort(s.DeadEnds)
	return s
}

// Complete reports whether every page has a snapshot and every child was
// recorded.
func (s *Summary) Complete() bool {
	return len(s.MissingSnapshots) == 0 && len(s.Unvisited) == 0
}
