// Package provider defines the metadata provider abstraction the sync
// pipeline consumes.
//
// A Client answers paged search queries and fetches full game records for a
// confirmed result. Concrete HTTP implementations live in the giantbomb,
// igdb, and opencritic subpackages; the Registry holds the enabled clients
// in the configured priority order. Search responses carry a tri-state
// "more results" flag: nil means the provider does not report whether more
// pages exist, which is distinct from a definitive false.
package provider
