package search

import "ludex/internal/provider"

// Choice is the decision recorded against one provider search. The set of
// implementations is closed; consumers switch over all of them.
type Choice interface {
	isChoice()
}

// Accept confirms a specific search result.
type Accept struct {
	Result provider.SearchResult
}

// NewSearch restarts the current provider with a different query.
type NewSearch struct {
	Query string
}

// Skip records that the current provider contributes nothing for this path.
type Skip struct{}

// Exclude removes the entire path from the library going forward.
type Exclude struct{}

// Cancel aborts the whole state machine immediately.
type Cancel struct{}

// Preset is the synthetic choice injected when re-syncing a path that already
// has stored data for the current provider. It is never produced
// interactively.
type Preset struct {
	Result provider.SearchResult
	Data   provider.GameData
}

func (Accept) isChoice()    {}
func (NewSearch) isChoice() {}
func (Skip) isChoice()      {}
func (Exclude) isChoice()   {}
func (Cancel) isChoice()    {}
func (Preset) isChoice()    {}

// IsResult reports whether the choice settles the current provider rather
// than continuing or aborting the search.
func IsResult(choice Choice) bool {
	switch choice.(type) {
	case NewSearch, Cancel:
		return false
	}
	return true
}

// IsNonExcludeResult reports whether the choice settles the provider without
// excluding the path.
func IsNonExcludeResult(choice Choice) bool {
	switch choice.(type) {
	case Accept, Preset, Skip:
		return true
	}
	return false
}

// Describe renders a short human-readable label for logs and status output.
func Describe(choice Choice) string {
	switch c := choice.(type) {
	case Accept:
		return "accept " + c.Result.Name
	case NewSearch:
		return "new search " + c.Query
	case Skip:
		return "skip"
	case Exclude:
		return "exclude"
	case Cancel:
		return "cancel"
	case Preset:
		return "preset " + c.Result.Name
	}
	return "unknown"
}
