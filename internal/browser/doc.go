// Package browser defines the browser-automation capability the crawler
// needs and implements it on top of headless Chrome via chromedp.
//
// The Driver interface is deliberately small: navigate, evaluate a script,
// list and click elements, take a screenshot, print to PDF, and resize the
// viewport. Everything else (expansion heuristics, snapshot strategies,
// link extraction) is built from these primitives in other packages, which
// keeps them testable against the in-memory fake in package browsertest.
//
// Well-known scripts are exported as constants (ScriptScrollHeight and
// friends) so fakes can recognize them.
package browser
