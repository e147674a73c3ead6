package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var caseFolder = cases.Fold()

// CollapseWhitespace trims the string and replaces every run of whitespace
// with a single ASCII space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeName canonicalizes a game name for comparison: NFKC normalization,
// Unicode case folding, and whitespace collapsing.
func NormalizeName(name string) string {
	name = norm.NFKC.String(name)
	name = caseFolder.String(name)
	return CollapseWhitespace(name)
}

// EqualNames reports whether two game names are the same after normalization.
func EqualNames(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}
