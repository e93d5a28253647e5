package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitegraph/internal/model"
)

// FileName is the database file created in the database directory.
const FileName = "sitegraph.db"

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("crawl run not found")

// RunStatus is the outcome of a crawl run.
type RunStatus string

const (
	// RunStatusRunning marks a run that has not finished. A run left in
	// this state was interrupted by a crash.
	RunStatusRunning RunStatus = "running"
	// RunStatusDone marks a run whose frontier was drained or whose page
	// limit was reached.
	RunStatusDone RunStatus = "done"
	// RunStatusAborted marks a run stopped by an error or cancellation.
	RunStatusAborted RunStatus = "aborted"
)

// CrawlDB provides SQLite-based storage for crawl history.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string

	// now returns the current time. Replaced in tests.
	now func() time.Time
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so the history command can
	// read while a crawl writes.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file; mode=rwc creates it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
		now:    time.Now,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per crawled seed
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id TEXT PRIMARY KEY,
		seed TEXT NOT NULL,
		domain TEXT NOT NULL,
		output_path TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		status TEXT NOT NULL,
		pages INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		snapshot_failures INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_runs_domain ON crawl_runs(domain);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON crawl_runs(started_at);

	-- Pages recorded by a run
	CREATE TABLE IF NOT EXISTS pages (
		run_id TEXT NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		link TEXT NOT NULL,
		page_id TEXT NOT NULL,
		content_type TEXT NOT NULL,
		filename TEXT,
		position INTEGER NOT NULL,
		PRIMARY KEY (run_id, link)
	);

	-- Parent to child links recorded by a run
	CREATE TABLE IF NOT EXISTS edges (
		run_id TEXT NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		from_link TEXT NOT NULL,
		to_link TEXT NOT NULL,
		PRIMARY KEY (run_id, from_link, to_link)
	);

	CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(run_id, to_link);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// Run is a crawl_runs row.
type Run struct {
	// ID is the UUID of the run.
	ID string

	// Seed is the start URL as given.
	Seed string

	// Domain is the registrable domain the crawl was scoped to.
	Domain string

	// OutputPath is the link graph file written by the run.
	OutputPath string

	// StartedAt and FinishedAt bound the run. FinishedAt is zero while
	// the run is in progress.
	StartedAt  time.Time
	FinishedAt time.Time

	// Status is the outcome of the run.
	Status RunStatus

	// Pages is the number of pages in the final graph.
	Pages int

	// Failed is the number of pages that failed to load.
	Failed int

	// SnapshotFailures is the number of pages recorded without a snapshot.
	SnapshotFailures int

	// Error is the error that stopped an aborted run.
	Error string
}

// Duration returns how long the run took, or 0 while it is in progress.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunResult is the outcome passed to FinishRun.
type RunResult struct {
	Status           RunStatus
	Pages            int
	Failed           int
	SnapshotFailures int
	Err              error
}

// StartRun records a new run in progress and returns its ID.
func (cdb *CrawlDB) StartRun(ctx context.Context, seed, domain, outputPath string) (string, error) {
	id := uuid.NewString()
	query := `
	INSERT INTO crawl_runs (id, seed, domain, output_path, started_at, status)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := cdb.db.ExecContext(ctx, query,
		id, seed, domain, outputPath, formatTimestamp(cdb.now()), string(RunStatusRunning))
	if err != nil {
		return "", fmt.Errorf("failed to start crawl run: %w", err)
	}
	return id, nil
}

// FinishRun closes the run with its outcome.
func (cdb *CrawlDB) FinishRun(ctx context.Context, id string, res RunResult) error {
	errText := ""
	if res.Err != nil {
		errText = res.Err.Error()
	}
	query := `
	UPDATE crawl_runs
	SET finished_at = ?, status = ?, pages = ?, failed = ?, snapshot_failures = ?, error = ?
	WHERE id = ?
	`
	result, err := cdb.db.ExecContext(ctx, query,
		formatTimestamp(cdb.now()), string(res.Status), res.Pages, res.Failed, res.SnapshotFailures, errText, id)
	if err != nil {
		return fmt.Errorf("failed to finish crawl run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// SaveGraph replaces the pages and edges stored for a run with g.
func (cdb *CrawlDB) SaveGraph(ctx context.Context, runID string, g *model.LinkGraph) (err error) {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM crawl_runs WHERE id = ?`, runID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to look up crawl run: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to clear edges: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to clear pages: %w", err)
	}

	pageStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pages (run_id, link, page_id, content_type, filename, position)
	VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer pageStmt.Close()

	edgeStmt, err := tx.PrepareContext(ctx, `
	INSERT OR IGNORE INTO edges (run_id, from_link, to_link) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare edge insert: %w", err)
	}
	defer edgeStmt.Close()

	for i, p := range g.Links {
		var filename sql.NullString
		if p.Filename != nil {
			filename = sql.NullString{String: *p.Filename, Valid: true}
		}
		if _, err := pageStmt.ExecContext(ctx, runID, p.Link, p.ID, string(p.ContentType), filename, i); err != nil {
			return fmt.Errorf("failed to insert page %s: %w", p.Link, err)
		}
		for _, c := range p.Children {
			if _, err := edgeStmt.ExecContext(ctx, runID, p.Link, c); err != nil {
				return fmt.Errorf("failed to insert edge %s -> %s: %w", p.Link, c, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit graph: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID. It returns ErrRunNotFound for unknown IDs.
func (cdb *CrawlDB) GetRun(ctx context.Context, id string) (*Run, error) {
	row := cdb.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl run: %w", err)
	}
	return run, nil
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	// Domain keeps runs of one registrable domain when set.
	Domain string

	// Limit caps the number of runs. 0 means no limit.
	Limit int
}

// ListRuns returns runs, most recent first.
func (cdb *CrawlDB) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := selectRun + ` WHERE 1=1`
	args := make([]any, 0, 2)

	if filter.Domain != "" {
		query += " AND domain = ?"
		args = append(args, filter.Domain)
	}
	query += " ORDER BY started_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list crawl runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan crawl run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// LoadGraph rebuilds the link graph stored for a run. SavedAt is the time
// the run finished, or started when it never finished.
func (cdb *CrawlDB) LoadGraph(ctx context.Context, runID string) (*model.LinkGraph, error) {
	run, err := cdb.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	rows, err := cdb.db.QueryContext(ctx, `
	SELECT link, page_id, content_type, filename FROM pages
	WHERE run_id = ?
	ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	g := &model.LinkGraph{
		SavedAt:  run.FinishedAt,
		StartURL: run.Seed,
		Links:    []model.PageRecord{},
	}
	if g.SavedAt.IsZero() {
		g.SavedAt = run.StartedAt
	}
	index := make(map[string]int)
	for rows.Next() {
		var (
			p           model.PageRecord
			contentType string
			filename    sql.NullString
		)
		if err := rows.Scan(&p.Link, &p.ID, &contentType, &filename); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		p.ContentType = model.ContentType(contentType)
		if filename.Valid {
			name := filename.String
			p.Filename = &name
		}
		p.Children = []string{}
		index[p.Link] = len(g.Links)
		g.Links = append(g.Links, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	edges, err := cdb.db.QueryContext(ctx, `
	SELECT from_link, to_link FROM edges WHERE run_id = ? ORDER BY from_link, to_link
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer edges.Close()

	for edges.Next() {
		var from, to string
		if err := edges.Scan(&from, &to); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		if i, ok := index[from]; ok {
			g.Links[i].Children = append(g.Links[i].Children, to)
		}
	}
	if err := edges.Err(); err != nil {
		return nil, err
	}
	for i := range g.Links {
		slices.Sort(g.Links[i].Children)
	}
	return g, nil
}

// Inbound returns the links pointing to target in a run, sorted.
func (cdb *CrawlDB) Inbound(ctx context.Context, runID, target string) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT from_link FROM edges WHERE run_id = ? AND to_link = ? ORDER BY from_link
	`, runID, target)
	if err != nil {
		return nil, fmt.Errorf("failed to query inbound links: %w", err)
	}
	defer rows.Close()

	var links []string
	for rows.Next() {
		var from string
		if err := rows.Scan(&from); err != nil {
			return nil, fmt.Errorf("failed to scan inbound link: %w", err)
		}
		links = append(links, from)
	}
	return links, rows.Err()
}

const selectRun = `
	SELECT id, seed, domain, output_path, started_at, finished_at, status, pages, failed, snapshot_failures, error
	FROM crawl_runs`

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*Run, error) {
	var (
		run       Run
		started   string
		finished  sql.NullString
		statusStr string
	)
	err := s.Scan(
		&run.ID,
		&run.Seed,
		&run.Domain,
		&run.OutputPath,
		&started,
		&finished,
		&statusStr,
		&run.Pages,
		&run.Failed,
		&run.SnapshotFailures,
		&run.Error,
	)
	if err != nil {
		return nil, err
	}
	run.Status = RunStatus(statusStr)
	run.StartedAt = parseTimestamp(started)
	if finished.Valid {
		run.FinishedAt = parseTimestamp(finished.String)
	}
	return &run, nil
}

// timestampLayout is the layout timestamps are written with. It sorts
// lexically in time order.
const timestampLayout = "2006-01-02 15:04:05.000"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timestampLayout,
	"2006-01-02 15:04:05",  // SQLite default datetime format
	"2006-01-02T15:04:05Z", // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",  // ISO 8601 without timezone
	time.RFC3339,
	time.RFC3339Nano,
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, it returns the zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
