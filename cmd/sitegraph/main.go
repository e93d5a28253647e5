// Package main provides the entry point for the sitegraph CLI.
//
// sitegraph crawls websites with a headless browser, stays inside each
// seed's registrable domain, saves every page as a PDF snapshot and writes
// the discovered link graph as JSON.
//
// Usage:
//
//	sitegraph crawl <url>...
//	sitegraph crawl --list seeds.txt
//	sitegraph report <host>.json
//
// See --help for all available options.
package main

func main() {
	Execute()
}
