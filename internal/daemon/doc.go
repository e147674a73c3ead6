// Package daemon assembles the library store, metadata providers, sync
// service, and notifier into one long-running process.
//
// It enforces single-instance execution with a lock file and exposes the
// operations the IPC layer serves to CLI clients. The daemon owns resource
// lifecycle: Close tears down the event bus and database once outstanding
// work has stopped.
package daemon
