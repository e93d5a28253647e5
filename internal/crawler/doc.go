// Package crawler walks a website breadth-first inside a real browser and
// records its link graph.
//
// # Architecture
//
// A Session holds everything that belongs to the crawl of one seed: the
// scope, the visited set, the FIFO frontier, and the graph store. An Engine
// drives a Session with a browser.Driver, an expand.Expander and a
// snapshot.Snapshotter. A Batch runs an ordered list of seeds, each in its
// own Session, over one or more browser sessions.
//
// # Crawl loop
//
// For every frontier entry the engine:
//
//  1. skips it when already visited, otherwise marks it visited
//  2. navigates; a navigation error or non-2xx status fails the page
//  3. expands lazily loaded content
//  4. classifies the content type and captures a snapshot
//  5. extracts anchors from the rendered DOM, canonicalizes them and keeps
//     the in-scope ones other than the page itself
//  6. records an edge per kept link and enqueues the unvisited ones
//  7. records the page and saves the graph file
//
// Failed pages stay visited and are never retried. A failed snapshot is
// logged and the page is recorded without one. Any other error stops the
// session; the graph file then holds every page finished so far.
//
// # Usage
//
//	store := graph.NewStore(path, seed)
//	session, err := crawler.NewSession(seed, store)
//	engine := crawler.NewEngine(driver, crawler.WithSnapshotter(snap))
//	err = engine.Run(ctx, session)
package crawler
