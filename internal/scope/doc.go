// Package scope decides whether a URL belongs to the site being crawled.
//
// A crawl is scoped to the registrable domain (eTLD+1, as defined by the
// Public Suffix List) of its seed URL. All subdomains of that domain are in
// scope; sibling registrable domains and foreign domains are not. There is
// no path-prefix scoping.
package scope
