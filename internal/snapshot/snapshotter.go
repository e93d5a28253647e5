package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nao1215/sitegraph/internal/browser"
	"github.com/nao1215/sitegraph/internal/model"
)

// Result describes a written snapshot.
type Result struct {
	// Filename is the file name relative to the snapshot directory.
	Filename string

	// Path is the full path of the file.
	Path string

	// Size is the file size in bytes.
	Size int
}

// Snapshotter writes page snapshots into one directory.
type Snapshotter struct {
	dir      string
	strategy Strategy
	logger   *slog.Logger
}

// Option configures a Snapshotter.
type Option func(*Snapshotter)

// WithStrategy sets the capture strategy.
func WithStrategy(s Strategy) Option {
	return func(sn *Snapshotter) {
		sn.strategy = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(sn *Snapshotter) {
		sn.logger = l
	}
}

// New returns a Snapshotter writing into dir with the print strategy
// unless another one is given.
func New(dir string, opts ...Option) *Snapshotter {
	s := &Snapshotter{
		dir:      dir,
		strategy: NewPrintStrategy(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the snapshot directory.
func (s *Snapshotter) Dir() string {
	return s.dir
}

// Strategy returns the capture strategy.
func (s *Snapshotter) Strategy() Strategy {
	return s.strategy
}

// Capture snapshots the current page as "<pageID>.pdf".
// Every error is wrapped with ErrCapture.
func (s *Snapshotter) Capture(ctx context.Context, d browser.Driver, pageID string) (Result, error) {
	data, err := s.strategy.Capture(ctx, d)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %w", ErrCapture, s.strategy.Name(), err)
	}

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return Result{}, fmt.Errorf("%w: failed to create snapshot directory: %w", ErrCapture, err)
	}

	name := model.SnapshotFilename(pageID)
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return Result{}, fmt.Errorf("%w: failed to write %s: %w", ErrCapture, path, err)
	}

	s.logger.Debug("snapshot written", "path", path, "bytes", len(data), "strategy", s.strategy.Name())
	return Result{Filename: name, Path: path, Size: len(data)}, nil
}

// ContentType classifies the document the browser is showing.
func (s *Snapshotter) ContentType(ctx context.Context, d browser.Driver) (model.ContentType, error) {
	var mime string
	if err := d.Evaluate(ctx, browser.ScriptContentType, &mime); err != nil {
		return "", fmt.Errorf("failed to read content type: %w", err)
	}
	return model.ClassifyContentType(mime), nil
}
