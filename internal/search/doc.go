// Package search sequences provider queries, pagination, and choices into a
// terminal per-path result.
//
// The state machine owns one State per library path and advances it through
// the configured provider order. Every state transition is synchronous; the
// only blocking points are the provider network calls issued through Session.
package search
