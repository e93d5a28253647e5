package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Default Chrome settings.
const (
	// DefaultViewportWidth is the initial layout width.
	DefaultViewportWidth = 1920

	// DefaultViewportHeight is the initial layout height.
	DefaultViewportHeight = 1080

	// DefaultNavigationTimeout bounds a single page load.
	DefaultNavigationTimeout = 60 * time.Second

	// DefaultActionTimeout bounds element interactions. Clicks on nodes
	// that disappeared would otherwise wait forever.
	DefaultActionTimeout = 5 * time.Second
)

// ChromeOptions configures a Chrome session.
type ChromeOptions struct {
	// Headless runs Chrome without a window.
	Headless bool

	// ExecPath is the Chrome binary. Empty means chromedp's lookup.
	ExecPath string

	// UserAgent overrides the browser's user agent when set.
	UserAgent string

	// ViewportWidth and ViewportHeight set the initial viewport.
	ViewportWidth  int
	ViewportHeight int

	// NavigationTimeout bounds Navigate.
	NavigationTimeout time.Duration

	// ActionTimeout bounds Click and ScrollIntoView.
	ActionTimeout time.Duration

	// Logger receives chromedp diagnostics at debug level.
	Logger *slog.Logger
}

// DefaultChromeOptions returns headless options with default sizes and timeouts.
func DefaultChromeOptions() ChromeOptions {
	return ChromeOptions{
		Headless:          true,
		ViewportWidth:     DefaultViewportWidth,
		ViewportHeight:    DefaultViewportHeight,
		NavigationTimeout: DefaultNavigationTimeout,
		ActionTimeout:     DefaultActionTimeout,
	}
}

// Chrome is a Driver backed by one tab of a headless Chrome process.
type Chrome struct {
	opts   ChromeOptions
	logger *slog.Logger

	// ctx is the chromedp tab context; cancelling it closes the tab.
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	mu     sync.Mutex
	width  int
	height int
}

var _ Driver = (*Chrome)(nil)

// NewChrome starts Chrome and opens a tab.
// The browser lives until Close is called or ctx is cancelled.
func NewChrome(ctx context.Context, opts ChromeOptions) (*Chrome, error) {
	if opts.ViewportWidth <= 0 {
		opts.ViewportWidth = DefaultViewportWidth
	}
	if opts.ViewportHeight <= 0 {
		opts.ViewportHeight = DefaultViewportHeight
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = DefaultNavigationTimeout
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = DefaultActionTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.WindowSize(opts.ViewportWidth, opts.ViewportHeight),
	)
	if ua := strings.TrimSpace(opts.UserAgent); ua != "" {
		execOpts = append(execOpts, chromedp.UserAgent(ua))
	}
	if opts.ExecPath != "" {
		execOpts = append(execOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, execOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			// CDP events unknown to this cdproto version are reported here.
			logger.Debug("chromedp", "message", fmt.Sprintf(format, args...))
		}),
	)

	c := &Chrome{
		opts:        opts,
		logger:      logger,
		ctx:         tabCtx,
		cancel:      tabCancel,
		allocCancel: allocCancel,
		width:       opts.ViewportWidth,
		height:      opts.ViewportHeight,
	}

	// The first Run launches the browser process.
	if err := chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.EmulateViewport(int64(opts.ViewportWidth), int64(opts.ViewportHeight)),
	); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	logger.Debug("chrome started",
		"headless", opts.Headless,
		"viewport_width", opts.ViewportWidth,
		"viewport_height", opts.ViewportHeight,
	)
	return c, nil
}

// Close shuts the tab and the browser process down.
func (c *Chrome) Close() {
	c.cancel()
	c.allocCancel()
}

// Navigate implements Driver.
func (c *Chrome) Navigate(ctx context.Context, target string) (Response, error) {
	runCtx, cancel := c.derive(ctx, c.opts.NavigationTimeout)
	defer cancel()

	var (
		status   int
		location string
	)
	err := chromedp.Run(runCtx,
		chromedp.Navigate(target),
		waitForDocumentReady(),
		chromedp.Evaluate(ScriptResponseStatus, &status),
		chromedp.Location(&location),
	)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return Response{}, ctx.Err()
		case c.ctx.Err() != nil:
			return Response{}, fmt.Errorf("browser session closed: %w", err)
		case isNavigationError(err):
			return Response{}, fmt.Errorf("%w: %s: %w", ErrNavigation, target, err)
		default:
			return Response{}, fmt.Errorf("failed to navigate to %s: %w", target, err)
		}
	}
	return Response{Status: status, URL: location}, nil
}

// Evaluate implements Driver.
func (c *Chrome) Evaluate(ctx context.Context, script string, out any) error {
	runCtx, cancel := c.derive(ctx, 0)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, out)); err != nil {
		return fmt.Errorf("failed to evaluate script: %w", err)
	}
	return nil
}

// FindElements implements Driver.
func (c *Chrome) FindElements(ctx context.Context, selector string) ([]Element, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return nil, fmt.Errorf("failed to encode selector: %w", err)
	}
	script := strings.Replace(findElementsTemplate, "__SELECTOR__", string(quoted), 1)

	var elements []Element
	if err := c.Evaluate(ctx, script, &elements); err != nil {
		return nil, fmt.Errorf("failed to find elements %q: %w", selector, err)
	}
	return elements, nil
}

// ScrollIntoView implements Driver.
func (c *Chrome) ScrollIntoView(ctx context.Context, el Element) error {
	runCtx, cancel := c.derive(ctx, c.opts.ActionTimeout)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.ScrollIntoView(handleSelector(el), chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to scroll to element %s: %w", el.Handle, err)
	}
	return nil
}

// Click implements Driver.
func (c *Chrome) Click(ctx context.Context, el Element) error {
	runCtx, cancel := c.derive(ctx, c.opts.ActionTimeout)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.Click(handleSelector(el), chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to click element %s: %w", el.Handle, err)
	}
	return nil
}

// Screenshot implements Driver.
func (c *Chrome) Screenshot(ctx context.Context) ([]byte, error) {
	runCtx, cancel := c.derive(ctx, 0)
	defer cancel()

	var buf []byte
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// PrintToPDF implements Driver.
func (c *Chrome) PrintToPDF(ctx context.Context, opts PrintOptions) ([]byte, error) {
	runCtx, cancel := c.derive(ctx, 0)
	defer cancel()

	var buf []byte
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, _, err = page.PrintToPDF().
			WithPrintBackground(opts.PrintBackground).
			WithMarginTop(opts.MarginTop).
			WithMarginBottom(opts.MarginBottom).
			WithMarginLeft(opts.MarginLeft).
			WithMarginRight(opts.MarginRight).
			WithPreferCSSPageSize(opts.PreferCSSPageSize).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to print page: %w", err)
	}
	return buf, nil
}

// SetViewport implements Driver.
func (c *Chrome) SetViewport(ctx context.Context, width, height int) error {
	runCtx, cancel := c.derive(ctx, 0)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.EmulateViewport(int64(width), int64(height))); err != nil {
		return fmt.Errorf("failed to resize viewport to %dx%d: %w", width, height, err)
	}

	c.mu.Lock()
	c.width, c.height = width, height
	c.mu.Unlock()
	return nil
}

// Viewport implements Driver.
func (c *Chrome) Viewport() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

// SetExtraHeaders implements Driver.
func (c *Chrome) SetExtraHeaders(ctx context.Context, headers map[string]string) error {
	runCtx, cancel := c.derive(ctx, 0)
	defer cancel()

	h := make(network.Headers, len(headers))
	for k, v := range headers {
		h[k] = v
	}
	if err := chromedp.Run(runCtx, network.SetExtraHTTPHeaders(h)); err != nil {
		return fmt.Errorf("failed to set extra headers: %w", err)
	}
	return nil
}

// derive returns a context that runs on the tab but is also cancelled with
// ctx. Cancelling it never closes the tab.
func (c *Chrome) derive(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(c.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(c.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func handleSelector(el Element) string {
	return fmt.Sprintf(`[%s=%q]`, handleAttribute, el.Handle)
}

// isNavigationError reports whether err was caused by the page rather than
// the browser: Chrome net errors and load timeouts.
func isNavigationError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "net::ERR_") || strings.Contains(msg, "page load error")
}

func waitForDocumentReady() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			var readyState string
			if err := chromedp.Evaluate(`document.readyState`, &readyState).Do(ctx); err != nil {
				return err
			}
			if readyState == "complete" {
				return nil
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})
}
