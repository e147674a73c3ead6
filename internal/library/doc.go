// Package library persists library paths, confirmed games, provider records,
// and exclusions in SQLite.
package library
