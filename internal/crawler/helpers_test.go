package crawler

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/sitegraph/internal/browser/browsertest"
	"github.com/nao1215/sitegraph/internal/expand"
	"github.com/nao1215/sitegraph/internal/graph"
	"github.com/nao1215/sitegraph/internal/snapshot"
)

const seedURL = "https://www.acme.test/"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// acmeSite returns a small site with a subdomain, a foreign link, a
// broken page, a PDF and a self link.
func acmeSite() map[string]*browsertest.Page {
	return map[string]*browsertest.Page{
		"https://acme.test": {
			Height: 1000,
			HTML: `<html><body>
				<a href="/">Home</a>
				<a href="/about">About</a>
				<a href="https://www.acme.test/about/">About again</a>
				<a href="https://blog.acme.test/post#comments">Blog</a>
				<a href="https://partner.test/x">Partner</a>
				<a href="#top">Top</a>
				<a href="mailto:info@acme.test">Mail</a>
				<a href="/missing">Missing</a>
				<a href="/docs/brochure.pdf">Brochure</a>
			</body></html>`,
		},
		"https://acme.test/about": {
			Height:  800,
			HTML:    `<html><body><a href="/">Home</a><a href="team">Team</a></body></html>`,
			BaseURI: "https://acme.test/",
		},
		"https://acme.test/team": {
			HTML: `<html><body><a href="/about">About</a></body></html>`,
		},
		"https://blog.acme.test/post": {
			HTML: `<html><body><a href="https://acme.test">Main site</a></body></html>`,
		},
		"https://acme.test/missing": {
			Status: 404,
		},
		"https://acme.test/docs/brochure.pdf": {
			MIME: "application/pdf",
			HTML: `<html><body><embed type="application/pdf"></body></html>`,
		},
	}
}

type fixture struct {
	driver  *browsertest.Driver
	engine  *Engine
	outPath string
	snapDir string
}

func newFixture(t *testing.T, pages map[string]*browsertest.Page, opts ...EngineOption) *fixture {
	t.Helper()

	dir := t.TempDir()
	d := browsertest.New(800, 600, pages)
	snapDir := filepath.Join(dir, "content")
	base := []EngineOption{
		WithLogger(quietLogger()),
		WithExpander(expand.New(expand.WithSettleDelay(0), expand.WithLogger(quietLogger()))),
		WithSnapshotter(snapshot.New(snapDir, snapshot.WithLogger(quietLogger()))),
	}
	return &fixture{
		driver:  d,
		engine:  NewEngine(d, append(base, opts...)...),
		outPath: filepath.Join(dir, "acme.test.json"),
		snapDir: snapDir,
	}
}

func (f *fixture) session(t *testing.T, opts ...SessionOption) *Session {
	t.Helper()

	store := graph.NewStore(f.outPath, seedURL,
		graph.WithLogger(quietLogger()),
		graph.WithClock(func() time.Time { return time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC) }),
	)
	s, err := NewSession(seedURL, store, opts...)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return s
}

func countVisits(visits []string) map[string]int {
	counts := make(map[string]int)
	for _, v := range visits {
		counts[v]++
	}
	return counts
}
