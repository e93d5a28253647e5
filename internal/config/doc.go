// Package config provides configuration structures and utilities for sitegraph.
// It defines the crawl, browser and snapshot settings, the per-site overrides
// read from the .sitegraph YAML file, and the seed list loader.
package config
