package crawler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitegraph/internal/browser"
)

// DriverFactory starts a browser session. The returned function releases it.
type DriverFactory func(ctx context.Context) (browser.Driver, func(), error)

// SessionFactory creates the Session of a seed, including its graph store.
type SessionFactory func(ctx context.Context, seed string) (*Session, error)

// SeedResult is the outcome of crawling one seed.
type SeedResult struct {
	// Seed is the start URL as given.
	Seed string

	// Index is the position of the seed in the batch.
	Index int

	// Session is nil when the session could not be created.
	Session *Session

	// Err is the error that stopped the crawl, if any.
	Err error

	// Started and Finished bound the crawl.
	Started  time.Time
	Finished time.Time
}

// Batch crawls an ordered list of seeds, one Session per seed.
// With a concurrency of 1 (the default) every seed reuses the same browser
// session in list order. Higher values spread seeds over that many
// browser sessions; each site is still crawled sequentially.
type Batch struct {
	newDriver  DriverFactory
	newSession SessionFactory
	engineOpts []EngineOption

	// concurrency is the number of browser sessions.
	concurrency int

	// onDone is called after each seed from the goroutine that crawled it.
	onDone func(SeedResult)

	logger *slog.Logger
}

// BatchOption configures a Batch.
type BatchOption func(*Batch)

// WithConcurrency sets the number of browser sessions. Values below 1 are ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *Batch) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithEngineOptions sets the options every Engine is created with.
func WithEngineOptions(opts ...EngineOption) BatchOption {
	return func(b *Batch) {
		b.engineOpts = append(b.engineOpts, opts...)
	}
}

// WithSeedCallback registers fn to be called after each seed.
// fn must be safe for concurrent use when concurrency is above 1.
func WithSeedCallback(fn func(SeedResult)) BatchOption {
	return func(b *Batch) {
		b.onDone = fn
	}
}

// WithBatchLogger sets the logger.
func WithBatchLogger(l *slog.Logger) BatchOption {
	return func(b *Batch) {
		b.logger = l
	}
}

// NewBatch creates a Batch.
func NewBatch(newDriver DriverFactory, newSession SessionFactory, opts ...BatchOption) *Batch {
	b := &Batch{
		newDriver:   newDriver,
		newSession:  newSession,
		concurrency: 1,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// lease is a browser session handed to one seed at a time.
type lease struct {
	driver  browser.Driver
	release func()
}

// Run crawls seeds and returns one result per seed in input order.
// A failing seed does not stop the others; the returned error is non-nil
// only when ctx is cancelled.
func (b *Batch) Run(ctx context.Context, seeds []string) ([]SeedResult, error) {
	b.logger.Info("starting batch", "seeds", len(seeds), "browser_sessions", b.concurrency)
	start := time.Now()

	results := make([]SeedResult, len(seeds))
	pool := make(chan *lease, b.concurrency)
	var (
		mu   sync.Mutex
		open []*lease
	)
	defer func() {
		mu.Lock()
		defer mu.Unlock()
		for _, l := range open {
			if l.release != nil {
				l.release()
			}
		}
	}()

	acquire := func(ctx context.Context) (*lease, error) {
		select {
		case l := <-pool:
			return l, nil
		default:
		}
		d, release, err := b.newDriver(ctx)
		if err != nil {
			return nil, err
		}
		l := &lease{driver: d, release: release}
		mu.Lock()
		open = append(open, l)
		mu.Unlock()
		return l, nil
	}
	discard := func(l *lease) {
		mu.Lock()
		defer mu.Unlock()
		for i, o := range open {
			if o == l {
				open = append(open[:i], open[i+1:]...)
				break
			}
		}
		if l.release != nil {
			l.release()
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, seed := range seeds {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res := SeedResult{Seed: seed, Index: i, Started: time.Now()}
			defer func() {
				res.Finished = time.Now()
				results[i] = res
				if b.onDone != nil {
					b.onDone(res)
				}
			}()

			if err := gctx.Err(); err != nil {
				res.Err = err
				return err
			}

			session, err := b.newSession(gctx, seed)
			if err != nil {
				res.Err = err
				b.logger.Warn("failed to prepare seed", "seed", seed, "error", err)
				return nil
			}
			res.Session = session

			l, err := acquire(gctx)
			if err != nil {
				res.Err = err
				b.logger.Error("failed to start browser", "seed", seed, "error", err)
				return nil
			}

			b.logger.Info("crawling seed", "seed", seed, "index", i+1, "total", len(seeds))
			err = NewEngine(l.driver, b.engineOpts...).Run(gctx, session)
			res.Err = err
			switch {
			case err == nil:
				pool <- l
			case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				pool <- l
				return err
			default:
				// The browser may be unusable; the next seed gets a fresh one.
				b.logger.Warn("crawl aborted", "seed", seed, "error", err)
				discard(l)
			}
			return nil
		})
	}

	err := g.Wait()
	for i := range results {
		if results[i].Seed == "" {
			results[i] = SeedResult{Seed: seeds[i], Index: i, Err: context.Cause(gctx)}
		}
	}
	b.logger.Info("batch complete", "seeds", len(seeds), "elapsed", time.Since(start))
	if err == nil {
		err = ctx.Err()
	}
	return results, err
}
