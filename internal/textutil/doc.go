// Package textutil provides text normalization helpers for comparing game
// names across metadata providers.
//
// Provider catalogs disagree on casing, spacing, and Unicode width for the
// same title, so every exact-match comparison in the sync pipeline goes
// through NormalizeName. Keep that the single normalization path; do not
// reimplement ad-hoc lowercasing at call sites.
package textutil
