package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/sitegraph/internal/graph"
	"github.com/nao1215/sitegraph/internal/snapshot"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitegraph"

	// DefaultViewportWidth and DefaultViewportHeight size the browser window.
	// Stitched snapshots use bands of twice the height.
	DefaultViewportWidth  = 1920
	DefaultViewportHeight = 1080

	// DefaultSettleDelay is the pause after each scroll and click while
	// expanding a page.
	DefaultSettleDelay = 500 * time.Millisecond

	// DefaultCaptureDelay is the pause between resizing the viewport and
	// taking the screenshot of a stitched snapshot.
	DefaultCaptureDelay = 1 * time.Second

	// DefaultPageTimeout bounds a single page load.
	DefaultPageTimeout = 60 * time.Second

	// DefaultMaxExpandAttempts bounds the expand-control clicks per page.
	DefaultMaxExpandAttempts = 100

	// DefaultMaxScrolls bounds the scrolls per page on endless feeds.
	DefaultMaxScrolls = 100

	// DefaultSnapshotStrategy is the snapshot strategy used when none is set.
	DefaultSnapshotStrategy = snapshot.StrategyPrint

	// DefaultMaxCaptureHeight caps the stitched capture height in pixels.
	DefaultMaxCaptureHeight = snapshot.DefaultMaxHeight

	// DefaultSessions is the number of browser sessions. With one session
	// seeds are crawled one after another in list order.
	DefaultSessions = 1

	// DefaultMaxPages of 0 means no page limit.
	DefaultMaxPages = 0

	// graphsDirName is the subdirectory of the data directory holding
	// link graphs.
	graphsDirName = "graphs"

	// contentDirName is the subdirectory of the output directory holding
	// snapshots.
	contentDirName = "content"
)

// Config holds all configuration options for sitegraph.
// It is populated from CLI flags and passed down explicitly.
type Config struct {
	// Seeds are the start URLs, crawled in order.
	Seeds []string

	// SeedFile is the path of a seed list given with --list.
	SeedFile string

	// OutputDir receives one <host>.json link graph per seed.
	OutputDir string

	// SnapshotDir receives the <id>.pdf snapshots.
	// Empty means <OutputDir>/content.
	SnapshotDir string

	// SnapshotStrategy is "print" or "stitch".
	SnapshotStrategy string

	// MaxPages caps the pages captured per seed. 0 means no limit.
	MaxPages int

	// MaxExpandAttempts bounds the expand phase per page.
	MaxExpandAttempts int

	// MaxScrolls bounds the scroll phase per page.
	MaxScrolls int

	// SettleDelay is the pause after each scroll and click.
	SettleDelay time.Duration

	// CaptureDelay is the pause before a stitched screenshot.
	CaptureDelay time.Duration

	// MaxCaptureHeight caps the height of a stitched screenshot.
	MaxCaptureHeight int

	// PageTimeout bounds a single navigation.
	PageTimeout time.Duration

	// ViewportWidth and ViewportHeight size the browser window.
	ViewportWidth  int
	ViewportHeight int

	// Sessions is the number of browser sessions used for a batch.
	Sessions int

	// Resume continues from existing link graph files instead of
	// starting over.
	Resume bool

	// Headless runs Chrome without a window.
	Headless bool

	// ChromePath is the Chrome binary. Empty means automatic lookup.
	ChromePath string

	// UserAgent overrides the browser user agent when set.
	UserAgent string

	// StripQueryParams are query parameters removed from every link
	// (for example utm_source). A site setting replaces them.
	StripQueryParams []string

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON switches the log output to JSON.
	LogJSON bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, .sitegraph is searched in the current directory and then
	// in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds the configuration file contents.
	SiteConfigs *File

	// DBDir is the directory of the crawl history database.
	DBDir string

	// SaveToDB records crawl runs in the history database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		OutputDir:         XDGGraphsDir(),
		SnapshotStrategy:  DefaultSnapshotStrategy,
		MaxPages:          DefaultMaxPages,
		MaxExpandAttempts: DefaultMaxExpandAttempts,
		MaxScrolls:        DefaultMaxScrolls,
		SettleDelay:       DefaultSettleDelay,
		CaptureDelay:      DefaultCaptureDelay,
		MaxCaptureHeight:  DefaultMaxCaptureHeight,
		PageTimeout:       DefaultPageTimeout,
		ViewportWidth:     DefaultViewportWidth,
		ViewportHeight:    DefaultViewportHeight,
		Sessions:          DefaultSessions,
		Headless:          true,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
	}
}

// XDGDataDir returns the XDG data directory for sitegraph.
// On Linux: ~/.local/share/sitegraph
// On macOS: ~/Library/Application Support/sitegraph
// On Windows: %LOCALAPPDATA%\sitegraph
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGGraphsDir returns the default output directory for link graphs.
func XDGGraphsDir() string {
	return filepath.Join(XDGDataDir(), graphsDirName)
}

// XDGConfigDir returns the XDG config directory for sitegraph.
// On Linux: ~/.config/sitegraph
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ContentDir returns the snapshot directory: SnapshotDir when set,
// otherwise the content subdirectory of OutputDir.
func (c *Config) ContentDir() string {
	if c.SnapshotDir != "" {
		return c.SnapshotDir
	}
	return filepath.Join(c.OutputDir, contentDirName)
}

// Site returns the effective settings for a seed: the global values
// overridden by the defaults and site sections of the configuration file.
func (c *Config) Site(seedURL string) SiteConfig {
	site := SiteConfig{
		MaxPages:          c.MaxPages,
		MaxExpandAttempts: c.MaxExpandAttempts,
		SnapshotStrategy:  c.SnapshotStrategy,
		StripQueryParams:  c.StripQueryParams,
	}
	if c.SiteConfigs == nil {
		return site
	}
	return site.merge(c.SiteConfigs.SiteFor(seedURL))
}

// Validate checks if the configuration is valid.
// It returns the first violated rule.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeed
	}
	if err := checkOutputFiles(c.Seeds); err != nil {
		return err
	}
	if c.PageTimeout <= 0 {
		return ErrInvalidPageTimeout
	}
	if c.Sessions <= 0 {
		return ErrInvalidSessions
	}
	if c.SettleDelay < 0 {
		return ErrInvalidSettleDelay
	}
	if c.CaptureDelay < 0 {
		return ErrInvalidCaptureDelay
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.MaxExpandAttempts < 0 {
		return ErrInvalidExpandAttempts
	}
	if c.MaxScrolls < 0 {
		return ErrInvalidMaxScrolls
	}
	if c.ViewportWidth <= 0 || c.ViewportHeight <= 0 {
		return ErrInvalidViewport
	}
	if c.MaxCaptureHeight <= 0 {
		return ErrInvalidCaptureHeight
	}
	if err := validateStrategy(c.SnapshotStrategy); err != nil {
		return err
	}
	if c.SiteConfigs != nil {
		if err := validateStrategy(c.SiteConfigs.Defaults.SnapshotStrategy); err != nil {
			return fmt.Errorf("defaults: %w", err)
		}
		for host, site := range c.SiteConfigs.Sites {
			if err := validateStrategy(site.SnapshotStrategy); err != nil {
				return fmt.Errorf("site %s: %w", host, err)
			}
		}
	}
	return nil
}

// checkOutputFiles rejects seeds mapping to the same graph file. Seeds
// without a host are left to fail on their own during the crawl.
func checkOutputFiles(seeds []string) error {
	owners := make(map[string]string, len(seeds))
	for _, seed := range seeds {
		name, err := graph.FileName(seed)
		if err != nil {
			continue
		}
		if prev, ok := owners[name]; ok {
			return fmt.Errorf("%w: %s and %s both write %s", ErrDuplicateOutput, prev, seed, name)
		}
		owners[name] = seed
	}
	return nil
}

// validateStrategy accepts the known strategy names and the empty string.
func validateStrategy(name string) error {
	switch name {
	case "", snapshot.StrategyPrint, snapshot.StrategyStitch:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}
