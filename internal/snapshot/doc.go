// Package snapshot captures the page a browser is showing as a PDF file.
//
// Two strategies are available. PrintStrategy uses the browser's own print
// pipeline. StitchStrategy resizes the viewport to the whole document,
// takes a single screenshot and slices it into bands that become the pages
// of a PDF, which preserves the on-screen rendering exactly.
//
// The Snapshotter writes the result to "<dir>/<page id>.pdf" and also
// classifies the document's content type.
package snapshot
