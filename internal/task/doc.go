// Package task executes cancellable, progress-reporting units of work under
// a single-flight contract.
//
// At most one task is current at any time. A second submission either waits
// for the current task to finish or fails immediately, depending on the
// requested mode; two tasks never interleave progress state.
package task
