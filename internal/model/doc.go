// Package model defines the core data structures shared by the sitegraph
// packages.
//
// This package contains the following main types:
//   - FrontierEntry: A pending visit and the page that discovered it
//   - Edge: A directed "page links to page" relation
//   - PageRecord: The persisted description of one captured page
//   - LinkGraph: The persisted unit written once per crawled site
//   - ContentType: The coarse classification of a captured document
//
// Models live in their own package because the crawler, graph store,
// report writers and history database all exchange them.
//
// LinkGraph and PageRecord are serialized to JSON with the exact field names
// consumed by downstream tooling, so their tags must not change.
package model
