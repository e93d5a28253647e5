package model

import "testing"

func sampleGraph() *LinkGraph {
	return &LinkGraph{
		StartURL: "https://acme.test",
		Links: []PageRecord{
			{Link: "https://acme.test", ContentType: ContentTypeHTML, Filename: ptr("a.pdf"), Children: []string{"https://acme.test/about", "https://acme.test/doc"}},
			{Link: "https://acme.test/about", ContentType: ContentTypeHTML, Children: []string{}},
			{Link: "https://acme.test/doc", ContentType: ContentTypePDF, Filename: ptr("c.pdf"), Children: []string{}},
		},
	}
}

func ptr(s string) *string { return &s }

// TestLinkGraphHelpers tests the lookup and aggregation helpers.
func TestLinkGraphHelpers(t *testing.T) {
	t.Parallel()

	t.Run("Page finds records by link", func(t *testing.T) {
		t.Parallel()

		g := sampleGraph()
		p, ok := g.Page("https://acme.test/doc")
		if !ok {
			t.Fatal("expected page to be found")
		}
		if p.ContentType != ContentTypePDF {
			t.Errorf("expected PDF, got %s", p.ContentType)
		}
		if _, ok := g.Page("https://acme.test/missing"); ok {
			t.Error("expected missing page not to be found")
		}
	})

	t.Run("Edges flattens children", func(t *testing.T) {
		t.Parallel()

		edges := sampleGraph().Edges()
		if len(edges) != 2 {
			t.Fatalf("expected 2 edges, got %d", len(edges))
		}
		if edges[0].From != "https://acme.test" {
			t.Errorf("expected edge from root, got %s", edges[0].From)
		}
	})

	t.Run("CountByContentType", func(t *testing.T) {
		t.Parallel()

		counts := sampleGraph().CountByContentType()
		if counts[ContentTypeHTML] != 2 || counts[ContentTypePDF] != 1 {
			t.Errorf("unexpected counts: %v", counts)
		}
	})

	t.Run("MissingSnapshots", func(t *testing.T) {
		t.Parallel()

		missing := sampleGraph().MissingSnapshots()
		if len(missing) != 1 || missing[0] != "https://acme.test/about" {
			t.Errorf("expected only /about to be missing, got %v", missing)
		}
	})
}
