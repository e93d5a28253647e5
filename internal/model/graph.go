package model

import "time"

// LinkGraph is the persisted unit of one crawl: every captured page of a
// site together with its outgoing in-scope links.
//
// The JSON form is:
//
//	{"dt": "...", "start_url": "...", "links": [PageRecord, ...]}
type LinkGraph struct {
	// SavedAt is the time of the save that produced this graph.
	SavedAt time.Time `json:"dt"`

	// StartURL is the seed the crawl started from, as given by the user.
	StartURL string `json:"start_url"`

	// Links holds one record per distinct page, sorted by link.
	Links []PageRecord `json:"links"`
}

// Page returns the record for link, or false when the graph has none.
func (g *LinkGraph) Page(link string) (PageRecord, bool) {
	for _, p := range g.Links {
		if p.Link == link {
			return p, true
		}
	}
	return PageRecord{}, false
}

// Edges flattens the children lists back into edges.
func (g *LinkGraph) Edges() []Edge {
	var edges []Edge
	for _, p := range g.Links {
		for _, c := range p.Children {
			edges = append(edges, Edge{From: p.Link, To: c})
		}
	}
	return edges
}

// CountByContentType returns the number of pages per content type.
func (g *LinkGraph) CountByContentType() map[ContentType]int {
	counts := make(map[ContentType]int)
	for _, p := range g.Links {
		counts[p.ContentType]++
	}
	return counts
}

// MissingSnapshots returns the links of pages whose capture failed.
func (g *LinkGraph) MissingSnapshots() []string {
	var links []string
	for _, p := range g.Links {
		if !p.HasSnapshot() {
			links = append(links, p.Link)
		}
	}
	return links
}
