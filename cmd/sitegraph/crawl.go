package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitegraph/internal/browser"
	"github.com/nao1215/sitegraph/internal/config"
	"github.com/nao1215/sitegraph/internal/crawler"
	"github.com/nao1215/sitegraph/internal/database"
	"github.com/nao1215/sitegraph/internal/expand"
	"github.com/nao1215/sitegraph/internal/graph"
	"github.com/nao1215/sitegraph/internal/log"
	"github.com/nao1215/sitegraph/internal/snapshot"
)

// errSeedsFailed is returned when at least one seed could not be crawled.
var errSeedsFailed = errors.New("some seeds failed")

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Crawl websites into snapshots and link graphs",
		Long: `Crawl visits every page reachable from each seed URL without leaving the
seed's registrable domain. Subdomains are in scope: crawling
https://www.example.com also visits https://blog.example.com.

For every page sitegraph:
- scrolls endless feeds and clicks "load more" style controls
- saves a PDF snapshot named <page id>.pdf into the snapshot directory
- records the page and its in-scope links in <output>/<host>.json

The link graph is saved after every page, so an interrupted crawl can be
continued with --resume.

Examples:
  # Crawl one site
  sitegraph crawl https://example.com

  # Crawl every seed in a file (one URL per line, # starts a comment)
  sitegraph crawl --list seeds.txt

  # Crawl three sites with two browsers at once
  sitegraph crawl --sessions 2 https://a.example https://b.example https://c.example

  # Stitch screenshots instead of printing, at most 200 pages per site
  sitegraph crawl --strategy stitch --max-pages 200 https://example.com

  # Continue an interrupted crawl
  sitegraph crawl --resume https://example.com`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Seeds and output
	cmd.Flags().StringP("list", "l", "",
		"File with one seed URL per line")
	cmd.Flags().StringP("output", "o", config.XDGGraphsDir(),
		"Directory for the link graph files")
	cmd.Flags().String("snapshots", "",
		"Directory for the PDF snapshots (default: <output>/content)")
	cmd.Flags().BoolP("resume", "r", false,
		"Continue from existing link graph files")

	// Crawl behavior
	cmd.Flags().StringP("strategy", "s", config.DefaultSnapshotStrategy,
		"Snapshot strategy: print or stitch")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum pages captured per site (0 = no limit)")
	cmd.Flags().Int("max-expand", config.DefaultMaxExpandAttempts,
		"Maximum expand-control clicks per page")
	cmd.Flags().Int("max-scrolls", config.DefaultMaxScrolls,
		"Maximum scrolls per page on endless feeds")
	cmd.Flags().Duration("settle", config.DefaultSettleDelay,
		"Pause after each scroll and click")
	cmd.Flags().Duration("capture-delay", config.DefaultCaptureDelay,
		"Pause before a stitched screenshot")
	cmd.Flags().Int("max-height", config.DefaultMaxCaptureHeight,
		"Maximum height of a stitched screenshot in pixels")
	cmd.Flags().StringSlice("strip-param", nil,
		"Query parameter removed from every link (repeatable)")

	// Browser
	cmd.Flags().DurationP("page-timeout", "t", config.DefaultPageTimeout,
		"Timeout for loading a single page")
	cmd.Flags().IntP("sessions", "n", config.DefaultSessions,
		"Number of browser sessions crawling seeds concurrently")
	cmd.Flags().Bool("no-headless", false,
		"Show the browser window")
	cmd.Flags().String("chrome", "",
		"Path to the Chrome binary (default: automatic lookup)")
	cmd.Flags().String("user-agent", "",
		"User agent sent by the browser")

	// Configuration and history
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitegraph in current or home directory)")
	cmd.Flags().Bool("no-db", false,
		"Do not record the crawl in the history database")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.New(os.Stderr, cfg.Verbose, cfg.LogJSON)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, newChromeFactory(cfg, logger), cmd.OutOrStdout(), logger)
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.SeedFile, err = flags.GetString("list"); err != nil {
		return nil, err
	}
	if cfg.OutputDir, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.SnapshotDir, err = flags.GetString("snapshots"); err != nil {
		return nil, err
	}
	if cfg.Resume, err = flags.GetBool("resume"); err != nil {
		return nil, err
	}
	if cfg.SnapshotStrategy, err = flags.GetString("strategy"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.MaxExpandAttempts, err = flags.GetInt("max-expand"); err != nil {
		return nil, err
	}
	if cfg.MaxScrolls, err = flags.GetInt("max-scrolls"); err != nil {
		return nil, err
	}
	if cfg.SettleDelay, err = flags.GetDuration("settle"); err != nil {
		return nil, err
	}
	if cfg.CaptureDelay, err = flags.GetDuration("capture-delay"); err != nil {
		return nil, err
	}
	if cfg.MaxCaptureHeight, err = flags.GetInt("max-height"); err != nil {
		return nil, err
	}
	if cfg.StripQueryParams, err = flags.GetStringSlice("strip-param"); err != nil {
		return nil, err
	}
	if cfg.PageTimeout, err = flags.GetDuration("page-timeout"); err != nil {
		return nil, err
	}
	if cfg.Sessions, err = flags.GetInt("sessions"); err != nil {
		return nil, err
	}
	noHeadless, err := flags.GetBool("no-headless")
	if err != nil {
		return nil, err
	}
	cfg.Headless = !noHeadless
	if cfg.ChromePath, err = flags.GetString("chrome"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	cfg.Verbose = getBoolFlag(cmd, "verbose")
	cfg.LogJSON = getBoolFlag(cmd, "log-json")

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.SiteConfigs, err = loadSiteConfigs(cfg.ConfigFilePath); err != nil {
		return nil, err
	}

	cfg.Seeds = append(cfg.Seeds, args...)
	if cfg.SeedFile != "" {
		seeds, err := config.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		cfg.Seeds = append(cfg.Seeds, seeds...)
	}
	return cfg, nil
}

// loadSiteConfigs loads the configuration file. A missing file is an error
// only when its path was given explicitly.
func loadSiteConfigs(explicitPath string) (*config.File, error) {
	path := config.FindConfigFile(explicitPath)
	if path == "" {
		if explicitPath != "" {
			return nil, fmt.Errorf("configuration file not found: %s", explicitPath)
		}
		return &config.File{Sites: make(map[string]config.SiteConfig)}, nil
	}
	cf, err := config.LoadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return cf, nil
}

// chromeOptions maps the configuration onto browser options.
func chromeOptions(cfg *config.Config, logger *slog.Logger) browser.ChromeOptions {
	opts := browser.DefaultChromeOptions()
	opts.Headless = cfg.Headless
	opts.ExecPath = cfg.ChromePath
	opts.UserAgent = cfg.UserAgent
	opts.ViewportWidth = cfg.ViewportWidth
	opts.ViewportHeight = cfg.ViewportHeight
	opts.NavigationTimeout = cfg.PageTimeout
	opts.Logger = logger
	return opts
}

// newChromeFactory starts one Chrome process per browser session.
func newChromeFactory(cfg *config.Config, logger *slog.Logger) crawler.DriverFactory {
	opts := chromeOptions(cfg, logger)
	return func(ctx context.Context) (browser.Driver, func(), error) {
		c, err := browser.NewChrome(ctx, opts)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	}
}

// newStrategy returns the named snapshot strategy tuned by cfg.
func newStrategy(cfg *config.Config, name string) (snapshot.Strategy, error) {
	s, err := snapshot.StrategyByName(name, cfg.ViewportHeight)
	if err != nil {
		return nil, err
	}
	if stitch, ok := s.(*snapshot.StitchStrategy); ok {
		stitch.RenderDelay = cfg.CaptureDelay
		stitch.MaxHeight = cfg.MaxCaptureHeight
	}
	return s, nil
}

// newSessionFactory builds the Session of a seed from the global settings
// merged with its site configuration.
func newSessionFactory(cfg *config.Config, logger *slog.Logger) crawler.SessionFactory {
	return func(_ context.Context, seed string) (*crawler.Session, error) {
		site := cfg.Site(seed)

		path, err := graph.OutputPath(cfg.OutputDir, seed)
		if err != nil {
			return nil, err
		}
		strategy, err := newStrategy(cfg, site.SnapshotStrategy)
		if err != nil {
			return nil, err
		}

		expander := expand.New(
			expand.WithMaxAttempts(site.MaxExpandAttempts),
			expand.WithMaxScrolls(cfg.MaxScrolls),
			expand.WithSettleDelay(cfg.SettleDelay),
			expand.WithLogger(logger),
		)
		snapshotter := snapshot.New(cfg.ContentDir(),
			snapshot.WithStrategy(strategy),
			snapshot.WithLogger(logger),
		)

		session, err := crawler.NewSession(seed,
			graph.NewStore(path, seed, graph.WithLogger(logger)),
			crawler.WithMaxPages(site.MaxPages),
			crawler.WithoutQueryParams(site.StripQueryParams...),
			crawler.WithIgnorePatterns(site.IgnorePatterns),
			crawler.WithFollowPatterns(site.FollowPatterns),
			crawler.WithHeaders(site.RequestHeaders()),
			crawler.WithSessionExpander(expander),
			crawler.WithSessionSnapshotter(snapshotter),
		)
		if err != nil {
			return nil, err
		}

		if cfg.Resume {
			g, err := graph.Load(path)
			switch {
			case err == nil:
				session.Resume(g)
				logger.Info("resuming crawl", "seed", seed, "pages", len(g.Links), "pending", session.Pending())
			case errors.Is(err, graph.ErrGraphNotFound):
				logger.Info("nothing to resume, starting over", "seed", seed, "path", path)
			default:
				return nil, err
			}
		}
		return session, nil
	}
}

// runCrawl crawls every seed of cfg with browsers from newDriver and prints
// progress to out.
func runCrawl(ctx context.Context, cfg *config.Config, newDriver crawler.DriverFactory, out io.Writer, logger *slog.Logger) error {
	logger.Info("starting crawl",
		"seeds", len(cfg.Seeds),
		"output", cfg.OutputDir,
		"snapshots", cfg.ContentDir(),
		"strategy", cfg.SnapshotStrategy,
		"sessions", cfg.Sessions,
		"save_to_db", cfg.SaveToDB,
	)

	var rec *runRecorder
	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		rec = newRunRecorder(db, logger)
	}

	progress := &progressPrinter{out: out, total: len(cfg.Seeds)}
	newSession := newSessionFactory(cfg, logger)
	if rec != nil {
		newSession = rec.wrap(newSession)
	}

	batch := crawler.NewBatch(newDriver, newSession,
		crawler.WithConcurrency(cfg.Sessions),
		crawler.WithBatchLogger(logger),
		crawler.WithEngineOptions(
			crawler.WithLogger(logger),
			crawler.WithPageCallback(progress.page),
		),
		crawler.WithSeedCallback(func(res crawler.SeedResult) {
			if rec != nil {
				rec.finish(ctx, res)
			}
			progress.seed(res)
		}),
	)

	fmt.Fprintf(out, "Crawling %d seed(s) with %d browser session(s)...\n\n", len(cfg.Seeds), cfg.Sessions)
	start := time.Now()
	results, err := batch.Run(ctx, cfg.Seeds)
	fmt.Fprintf(out, "\nCrawl finished in %s\n", time.Since(start).Round(time.Millisecond))
	if err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errSeedsFailed, failed, len(results))
	}
	return nil
}

// progressPrinter writes one line per page and one summary per seed.
// Engines report from several goroutines when sessions run concurrently.
type progressPrinter struct {
	mu    sync.Mutex
	out   io.Writer
	total int
}

func (p *progressPrinter) page(s *crawler.Session, ev crawler.PageEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case ev.Failed && ev.Err != nil:
		fmt.Fprintf(p.out, "  [%s] failed %s: %v\n", s.Domain(), ev.Entry.Link, ev.Err)
	case ev.Failed && ev.Status != 0:
		fmt.Fprintf(p.out, "  [%s] failed %s (HTTP %d)\n", s.Domain(), ev.Entry.Link, ev.Status)
	case ev.Failed:
		fmt.Fprintf(p.out, "  [%s] failed %s\n", s.Domain(), ev.Entry.Link)
	case !ev.Record.HasSnapshot():
		fmt.Fprintf(p.out, "  [%s] %s %s (no snapshot)\n", s.Domain(), ev.Record.ContentType, ev.Record.Link)
	default:
		fmt.Fprintf(p.out, "  [%s] %s %s\n", s.Domain(), ev.Record.ContentType, ev.Record.Link)
	}
}

func (p *progressPrinter) seed(res crawler.SeedResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	prefix := fmt.Sprintf("[%d/%d] %s", res.Index+1, p.total, res.Seed)
	if res.Session == nil {
		fmt.Fprintf(p.out, "%s: %v\n", prefix, res.Err)
		return
	}

	stats := res.Session.Stats()
	fmt.Fprintf(p.out, "%s: %s, %d page(s), %d failed, %d without snapshot -> %s (%s)\n",
		prefix,
		res.Session.State(),
		res.Session.Store().PageCount(),
		stats.PagesFailed,
		stats.SnapshotsFailed,
		res.Session.Store().Path(),
		res.Finished.Sub(res.Started).Round(time.Millisecond),
	)
	if res.Err != nil {
		fmt.Fprintf(p.out, "  error: %v\n", res.Err)
	}
}

// runRecorder mirrors crawl runs into the history database.
type runRecorder struct {
	db     *database.CrawlDB
	logger *slog.Logger

	mu   sync.Mutex
	runs map[*crawler.Session]string
}

func newRunRecorder(db *database.CrawlDB, logger *slog.Logger) *runRecorder {
	return &runRecorder{
		db:     db,
		logger: logger,
		runs:   make(map[*crawler.Session]string),
	}
}

// wrap opens a run for every session newSession creates.
// A database failure is logged and does not stop the crawl.
func (r *runRecorder) wrap(newSession crawler.SessionFactory) crawler.SessionFactory {
	return func(ctx context.Context, seed string) (*crawler.Session, error) {
		s, err := newSession(ctx, seed)
		if err != nil {
			return nil, err
		}
		id, err := r.db.StartRun(ctx, seed, s.Domain(), s.Store().Path())
		if err != nil {
			r.logger.Warn("failed to record crawl run", "seed", seed, "error", err)
			return s, nil
		}
		r.mu.Lock()
		r.runs[s] = id
		r.mu.Unlock()
		return s, nil
	}
}

// finish stores the final graph and outcome of the run behind res.
func (r *runRecorder) finish(ctx context.Context, res crawler.SeedResult) {
	if res.Session == nil {
		return
	}
	r.mu.Lock()
	id, ok := r.runs[res.Session]
	delete(r.runs, res.Session)
	r.mu.Unlock()
	if !ok {
		return
	}

	// The crawl may have been interrupted; the history must still be written.
	ctx = context.WithoutCancel(ctx)
	store := res.Session.Store()
	if err := r.db.SaveGraph(ctx, id, store.Graph(res.Finished)); err != nil {
		r.logger.Warn("failed to save graph to history", "run", id, "error", err)
	}

	status := database.RunStatusDone
	if res.Err != nil || res.Session.State() != crawler.StateDone {
		status = database.RunStatusAborted
	}
	stats := res.Session.Stats()
	if err := r.db.FinishRun(ctx, id, database.RunResult{
		Status:           status,
		Pages:            store.PageCount(),
		Failed:           stats.PagesFailed,
		SnapshotFailures: stats.SnapshotsFailed,
		Err:              res.Err,
	}); err != nil {
		r.logger.Warn("failed to finish crawl run", "run", id, "error", err)
	}
}
