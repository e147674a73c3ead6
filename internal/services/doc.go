// Package services defines the shared error taxonomy and context annotations
// used across the sync pipeline.
//
// Errors are classified with sentinel markers so callers can distinguish
// caller-contract violations (ErrValidation) from expected runtime outcomes
// (ErrProvider, context cancellation) and everything else. Wrap attaches a
// user-facing message alongside the technical cause; Details recovers it for
// presentation without losing the chain for errors.Is/As.
package services
