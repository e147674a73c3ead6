// Package notify delivers sync milestones via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. The Forwarder bridges the in-process event bus so sync code never
// touches HTTP glue directly.
package notify
