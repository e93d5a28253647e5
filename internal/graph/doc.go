// Package graph accumulates the pages and links discovered by one crawl and
// persists them as a single JSON file.
//
// The Store is append-only: pages and edges are added as the crawl
// proceeds and Save rewrites the whole file each time. Saving builds a
// consistent view first: one record per link (the first one added wins),
// children derived from the edges, records sorted by link. The file is
// replaced atomically, so a crash leaves the previous complete snapshot in
// place.
package graph
