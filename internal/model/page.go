package model

import (
	"crypto/sha256"
	"encoding/hex"
)

// Root is the DiscoveredFrom marker of the seed entry.
const Root = "ROOT"

// SnapshotExtension is the file extension of every page snapshot.
const SnapshotExtension = ".pdf"

// FrontierEntry is a URL waiting to be visited.
// Entries are processed in FIFO order, which makes the crawl breadth-first.
type FrontierEntry struct {
	// Link is the canonical URL to visit.
	Link string

	// DiscoveredFrom is the canonical URL of the page where Link was found,
	// or Root for the seed.
	DiscoveredFrom string
}

// IsSeed reports whether the entry is the crawl's starting point.
func (e FrontierEntry) IsSeed() bool {
	return e.DiscoveredFrom == Root
}

// Edge records that the page at From links to To.
// Both ends are canonical URLs and To is always in scope.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PageRecord describes one successfully visited page.
type PageRecord struct {
	// ID is a stable identifier derived from Link (see PageID).
	ID string `json:"id"`

	// ContentType is the classified type of the loaded document.
	ContentType ContentType `json:"content_type"`

	// Filename is the snapshot file name inside the snapshot directory.
	// Nil when the capture failed; the page is still part of the graph.
	Filename *string `json:"filename"`

	// Link is the canonical URL of the page.
	Link string `json:"link"`

	// Children is the set of in-scope canonical URLs linked from this page.
	// It is derived from edges when the graph is saved.
	Children []string `json:"children"`
}

// NewPageRecord returns a record for link with its ID already computed.
// An empty filename marks a failed capture.
func NewPageRecord(link string, contentType ContentType, filename string) PageRecord {
	rec := PageRecord{
		ID:          PageID(link),
		ContentType: contentType,
		Link:        link,
		Children:    []string{},
	}
	if filename != "" {
		rec.Filename = &filename
	}
	return rec
}

// SnapshotName returns the snapshot file name, or "" when there is none.
func (p PageRecord) SnapshotName() string {
	if p.Filename == nil {
		return ""
	}
	return *p.Filename
}

// HasSnapshot reports whether the page has a snapshot file.
func (p PageRecord) HasSnapshot() bool {
	return p.SnapshotName() != ""
}

// PageID returns the identifier of a canonical link: the hex-encoded
// SHA-256 digest of the link. Equal links always produce equal IDs, so the
// ID doubles as a collision-free snapshot file stem across sites.
func PageID(link string) string {
	sum := sha256.Sum256([]byte(link))
	return hex.EncodeToString(sum[:])
}

// SnapshotFilename returns the snapshot file name for a page ID.
func SnapshotFilename(id string) string {
	return id + SnapshotExtension
}
