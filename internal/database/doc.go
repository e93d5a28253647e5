// Package database provides the SQLite-based crawl history for sitegraph.
//
// The CrawlDB stores:
//   - one crawl_runs row per crawled seed, identified by a UUID
//   - the pages and edges of the link graph each run produced
//
// The JSON link graph files remain the primary output; the database keeps
// every run so past crawls can be listed and their graphs rebuilt.
// modernc.org/sqlite is CGO-free, so the binary cross-compiles.
package database
