package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/sitegraph/internal/browser"
	"github.com/nao1215/sitegraph/internal/browser/browsertest"
	"github.com/nao1215/sitegraph/internal/config"
	"github.com/nao1215/sitegraph/internal/database"
	"github.com/nao1215/sitegraph/internal/graph"
	"github.com/nao1215/sitegraph/internal/snapshot"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestNewCrawlCmd tests the crawl command flags.
func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()

	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{name: "list", shorthand: "l"},
		{name: "output", shorthand: "o", defValue: config.XDGGraphsDir()},
		{name: "snapshots"},
		{name: "resume", shorthand: "r", defValue: "false"},
		{name: "strategy", shorthand: "s", defValue: "print"},
		{name: "max-pages", shorthand: "p", defValue: "0"},
		{name: "max-expand", defValue: "100"},
		{name: "max-scrolls", defValue: "100"},
		{name: "settle", defValue: "500ms"},
		{name: "capture-delay", defValue: "1s"},
		{name: "max-height", defValue: "20000"},
		{name: "strip-param", defValue: "[]"},
		{name: "page-timeout", shorthand: "t", defValue: "1m0s"},
		{name: "sessions", shorthand: "n", defValue: "1"},
		{name: "no-headless", defValue: "false"},
		{name: "chrome"},
		{name: "user-agent"},
		{name: "config", shorthand: "c"},
		{name: "no-db", defValue: "false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("expected default %q, got %q", tt.defValue, flag.DefValue)
			}
		})
	}
}

// parseCrawlFlags builds a Config the way the crawl command does.
func parseCrawlFlags(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	cmd := NewCrawlCmd()
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	return buildConfig(cmd, cmd.Flags().Args())
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// TestBuildConfig tests mapping of flags, seed lists and config files.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("maps flags", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		cfgPath := filepath.Join(dir, "crawl.yaml")
		writeFile(t, cfgPath, "defaults:\n  max_pages: 7\n")

		cfg, err := parseCrawlFlags(t,
			"-c", cfgPath,
			"-o", dir,
			"--snapshots", filepath.Join(dir, "pdf"),
			"--strategy", "stitch",
			"--max-pages", "50",
			"--max-expand", "3",
			"--settle", "0s",
			"--page-timeout", "10s",
			"--sessions", "4",
			"--resume",
			"--no-headless",
			"--no-db",
			"--strip-param", "utm_source",
			"--strip-param", "ref",
			"https://acme.test",
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.OutputDir != dir {
			t.Errorf("OutputDir = %q, want %q", cfg.OutputDir, dir)
		}
		if cfg.ContentDir() != filepath.Join(dir, "pdf") {
			t.Errorf("ContentDir() = %q", cfg.ContentDir())
		}
		if cfg.SnapshotStrategy != snapshot.StrategyStitch {
			t.Errorf("SnapshotStrategy = %q", cfg.SnapshotStrategy)
		}
		if cfg.MaxPages != 50 || cfg.MaxExpandAttempts != 3 {
			t.Errorf("MaxPages = %d, MaxExpandAttempts = %d", cfg.MaxPages, cfg.MaxExpandAttempts)
		}
		if cfg.SettleDelay != 0 || cfg.PageTimeout != 10*time.Second {
			t.Errorf("SettleDelay = %s, PageTimeout = %s", cfg.SettleDelay, cfg.PageTimeout)
		}
		if cfg.Sessions != 4 || !cfg.Resume || cfg.Headless || cfg.SaveToDB {
			t.Errorf("Sessions = %d, Resume = %t, Headless = %t, SaveToDB = %t",
				cfg.Sessions, cfg.Resume, cfg.Headless, cfg.SaveToDB)
		}
		if !slices.Equal(cfg.StripQueryParams, []string{"utm_source", "ref"}) {
			t.Errorf("StripQueryParams = %v", cfg.StripQueryParams)
		}
		if !slices.Equal(cfg.Seeds, []string{"https://acme.test"}) {
			t.Errorf("Seeds = %v", cfg.Seeds)
		}
		if cfg.SiteConfigs == nil || cfg.SiteConfigs.Defaults.MaxPages != 7 {
			t.Errorf("SiteConfigs = %+v", cfg.SiteConfigs)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() = %v", err)
		}
	})

	t.Run("appends seeds from list", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		cfgPath := filepath.Join(dir, "crawl.yaml")
		writeFile(t, cfgPath, "sites: {}\n")
		list := filepath.Join(dir, "seeds.txt")
		writeFile(t, list, "# shops\nhttps://globex.test\n\n  https://initech.test  \n")

		cfg, err := parseCrawlFlags(t, "-c", cfgPath, "--list", list, "https://acme.test")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"https://acme.test", "https://globex.test", "https://initech.test"}
		if !slices.Equal(cfg.Seeds, want) {
			t.Errorf("Seeds = %v, want %v", cfg.Seeds, want)
		}
	})

	t.Run("missing seed list", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		cfgPath := filepath.Join(dir, "crawl.yaml")
		writeFile(t, cfgPath, "sites: {}\n")

		if _, err := parseCrawlFlags(t, "-c", cfgPath, "--list", filepath.Join(dir, "nope.txt")); err == nil {
			t.Error("expected error for missing seed list")
		}
	})

	t.Run("explicit config file must exist", func(t *testing.T) {
		t.Parallel()
		_, err := parseCrawlFlags(t, "-c", filepath.Join(t.TempDir(), "missing.yaml"), "https://acme.test")
		if err == nil || !strings.Contains(err.Error(), "configuration file not found") {
			t.Errorf("expected not found error, got %v", err)
		}
	})

	t.Run("invalid config file", func(t *testing.T) {
		t.Parallel()
		cfgPath := filepath.Join(t.TempDir(), "crawl.yaml")
		writeFile(t, cfgPath, "sites: [unclosed\n")

		if _, err := parseCrawlFlags(t, "-c", cfgPath, "https://acme.test"); err == nil {
			t.Error("expected parse error")
		}
	})
}

// TestNewStrategy tests that stitch strategies pick up the capture settings.
func TestNewStrategy(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.ViewportHeight = 700
	cfg.CaptureDelay = 250 * time.Millisecond
	cfg.MaxCaptureHeight = 9000

	s, err := newStrategy(cfg, snapshot.StrategyStitch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stitch, ok := s.(*snapshot.StitchStrategy)
	if !ok {
		t.Fatalf("expected *snapshot.StitchStrategy, got %T", s)
	}
	if stitch.BandHeight != 1400 || stitch.RenderDelay != cfg.CaptureDelay || stitch.MaxHeight != 9000 {
		t.Errorf("unexpected stitch settings: %+v", stitch)
	}

	if s, err := newStrategy(cfg, ""); err != nil || s.Name() != snapshot.StrategyPrint {
		t.Errorf("newStrategy(\"\") = %v, %v", s, err)
	}
	if _, err := newStrategy(cfg, "photocopy"); !errors.Is(err, snapshot.ErrUnknownStrategy) {
		t.Errorf("expected ErrUnknownStrategy, got %v", err)
	}
}

// TestChromeOptions tests mapping of browser settings.
func TestChromeOptions(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.Headless = false
	cfg.ChromePath = "/opt/chrome"
	cfg.UserAgent = "sitegraph-test"
	cfg.PageTimeout = 5 * time.Second

	opts := chromeOptions(cfg, quietLogger())
	if opts.Headless || opts.ExecPath != "/opt/chrome" || opts.UserAgent != "sitegraph-test" {
		t.Errorf("unexpected options: %+v", opts)
	}
	if opts.NavigationTimeout != 5*time.Second {
		t.Errorf("NavigationTimeout = %s", opts.NavigationTimeout)
	}
	if opts.ViewportWidth != config.DefaultViewportWidth || opts.ViewportHeight != config.DefaultViewportHeight {
		t.Errorf("viewport = %dx%d", opts.ViewportWidth, opts.ViewportHeight)
	}
	if opts.ActionTimeout != browser.DefaultActionTimeout {
		t.Errorf("ActionTimeout = %s", opts.ActionTimeout)
	}
}

func testSites() map[string]*browsertest.Page {
	return map[string]*browsertest.Page{
		"https://acme.test": {
			HTML: `<a href="/about">About</a><a href="/gone">Gone</a><a href="/shop?utm_source=mail">Shop</a>`,
		},
		"https://acme.test/about": {HTML: `<a href="https://blog.acme.test">Blog</a>`},
		"https://acme.test/shop":  {HTML: `<p>shop</p>`},
		"https://acme.test/gone":  {Status: 410},
		"https://blog.acme.test":  {HTML: `<a href="https://acme.test/about">About</a>`},
		"https://initech.test":    {NavigateErr: errors.New("target crashed")},
	}
}

type driverPool struct {
	mu      sync.Mutex
	drivers []*browsertest.Driver
}

func (p *driverPool) newDriver(context.Context) (browser.Driver, func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d := browsertest.New(800, 600, testSites())
	p.drivers = append(p.drivers, d)
	return d, func() {}, nil
}

func testCrawlConfig(t *testing.T, seeds ...string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.Seeds = seeds
	cfg.OutputDir = filepath.Join(dir, "graphs")
	cfg.DBDir = filepath.Join(dir, "db")
	cfg.SettleDelay = 0
	cfg.StripQueryParams = []string{"utm_source"}
	cfg.SiteConfigs = &config.File{Sites: map[string]config.SiteConfig{}}
	return cfg
}

// TestRunCrawl tests a full crawl with progress output and history.
func TestRunCrawl(t *testing.T) {
	t.Parallel()

	cfg := testCrawlConfig(t, "https://www.acme.test/")
	cfg.SiteConfigs.Sites["acme.test"] = config.SiteConfig{Cookie: "session=abc"}

	var pool driverPool
	var out bytes.Buffer
	if err := runCrawl(context.Background(), cfg, pool.newDriver, &out, quietLogger()); err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out.String())
	}

	g, err := graph.Load(filepath.Join(cfg.OutputDir, "acme.test.json"))
	if err != nil {
		t.Fatalf("failed to load graph: %v", err)
	}
	var links []string
	for _, p := range g.Links {
		links = append(links, p.Link)
	}
	want := []string{"https://acme.test", "https://acme.test/about", "https://acme.test/shop", "https://blog.acme.test"}
	if !slices.Equal(links, want) {
		t.Errorf("links = %v, want %v", links, want)
	}
	for _, p := range g.Links {
		if _, err := os.Stat(filepath.Join(cfg.ContentDir(), p.SnapshotName())); err != nil {
			t.Errorf("missing snapshot for %s: %v", p.Link, err)
		}
	}

	output := out.String()
	for _, s := range []string{
		"Crawling 1 seed(s)",
		"[acme.test] HTML https://acme.test/about",
		"[acme.test] failed https://acme.test/gone (HTTP 410)",
		"[1/1] https://www.acme.test/: done, 4 page(s), 1 failed",
		"Crawl finished",
	} {
		if !strings.Contains(output, s) {
			t.Errorf("expected output to contain %q, got:\n%s", s, output)
		}
	}

	if len(pool.drivers) != 1 {
		t.Fatalf("expected 1 browser session, got %d", len(pool.drivers))
	}
	if h := pool.drivers[0].Headers(); h != nil {
		t.Errorf("expected site headers to be cleared, got %v", h)
	}

	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	runs, err := db.ListRuns(context.Background(), database.RunFilter{})
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.Status != database.RunStatusDone || run.Pages != 4 || run.Failed != 1 || run.Domain != "acme.test" {
		t.Errorf("unexpected run: %+v", run)
	}
	stored, err := db.LoadGraph(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("failed to load stored graph: %v", err)
	}
	if len(stored.Links) != 4 {
		t.Errorf("expected 4 stored pages, got %d", len(stored.Links))
	}
}

// TestRunCrawl_FailingSeed tests that a broken seed is reported without
// stopping the others.
func TestRunCrawl_FailingSeed(t *testing.T) {
	t.Parallel()

	cfg := testCrawlConfig(t, "https://initech.test", "not a url", "https://acme.test")
	cfg.SaveToDB = false

	var pool driverPool
	var out bytes.Buffer
	err := runCrawl(context.Background(), cfg, pool.newDriver, &out, quietLogger())
	if !errors.Is(err, errSeedsFailed) {
		t.Fatalf("expected errSeedsFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "2 of 3") {
		t.Errorf("expected failure count in %q", err)
	}

	if _, err := os.Stat(filepath.Join(cfg.OutputDir, "acme.test.json")); err != nil {
		t.Errorf("expected acme.test graph: %v", err)
	}
	output := out.String()
	if !strings.Contains(output, "[1/3] https://initech.test: aborted") {
		t.Errorf("expected aborted seed in output:\n%s", output)
	}
	if !strings.Contains(output, "[2/3] not a url:") {
		t.Errorf("expected invalid seed in output:\n%s", output)
	}
	if _, err := os.Stat(cfg.DBDir); !os.IsNotExist(err) {
		t.Errorf("expected no database with --no-db, stat error: %v", err)
	}
}

// TestRunCrawl_Resume tests that a second crawl continues from the graph.
func TestRunCrawl_Resume(t *testing.T) {
	t.Parallel()

	cfg := testCrawlConfig(t, "https://acme.test")
	cfg.SaveToDB = false
	cfg.MaxPages = 2

	var first driverPool
	if err := runCrawl(context.Background(), cfg, first.newDriver, io.Discard, quietLogger()); err != nil {
		t.Fatalf("first crawl: %v", err)
	}

	cfg.MaxPages = 0
	cfg.Resume = true
	var second driverPool
	if err := runCrawl(context.Background(), cfg, second.newDriver, io.Discard, quietLogger()); err != nil {
		t.Fatalf("second crawl: %v", err)
	}

	visits := second.drivers[0].Visits()
	for _, v := range visits {
		if v == "https://acme.test" || v == "https://acme.test/about" {
			t.Errorf("resumed crawl revisited %s", v)
		}
	}
	g, err := graph.Load(filepath.Join(cfg.OutputDir, "acme.test.json"))
	if err != nil {
		t.Fatalf("failed to load graph: %v", err)
	}
	if len(g.Links) != 4 {
		t.Errorf("expected 4 pages after resume, got %d", len(g.Links))
	}
}
