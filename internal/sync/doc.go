// Package sync walks an ordered queue of library paths through the search
// state machine, one path at a time, and persists each terminal result.
package sync
