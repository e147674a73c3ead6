package search

import (
	"context"
	"fmt"

	"ludex/internal/library"
	"ludex/internal/provider"
	"ludex/internal/services"
	"ludex/internal/textutil"
)

// Options control per-run machine behavior.
type Options struct {
	// AllowSmartChoose auto-accepts when exactly one result's name matches
	// the query exactly. Toggled per sync run, never ambiently.
	AllowSmartChoose bool
	// FilterPreviouslyDiscarded hides results the user already passed over
	// for the same provider and path.
	FilterPreviouslyDiscarded bool
	// SearchLimit is the page size requested from providers.
	SearchLimit int
}

// Machine owns per-path search states and applies choices to them.
type Machine struct {
	session *Session
	opts    Options
}

// NewMachine creates a machine over the given session.
func NewMachine(session *Session, opts Options) *Machine {
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 20
	}
	return &Machine{session: session, opts: opts}
}

// Session returns the provider session the machine drives.
func (m *Machine) Session() *Session {
	return m.session
}

// Start initializes the search state for one path. An empty provider order
// completes immediately.
func (m *Machine) Start(index int, path library.Path, order []provider.ID, existing *library.Game, records []library.ProviderRecord) *State {
	state := &State{
		Index:           index,
		Path:            path,
		ProviderOrder:   append([]provider.ID(nil), order...),
		Status:          StatusRunning,
		ExistingGame:    existing,
		ProviderRecords: records,
	}
	if len(state.ProviderOrder) == 0 {
		state.Status = StatusSuccess
		return state
	}
	state.CurrentProvider = state.ProviderOrder[0]
	return state
}

// SubmitChoice records a choice for the state's current provider and advances
// the machine.
func (m *Machine) SubmitChoice(state *State, choice Choice) error {
	if choice == nil {
		return services.Wrap(services.ErrValidation, "search", "submit choice",
			"choice is required", nil)
	}
	if state.Status.Terminal() || state.CurrentProvider == "" {
		return services.Wrap(services.ErrValidation, "search", "submit choice",
			fmt.Sprintf("state for %q is not awaiting a choice (status %s)", state.Path.Dir, state.Status), nil)
	}

	current := state.CurrentProvider
	if state.lastSearch(current) == nil {
		// Implicit first search at offset 0: a choice may arrive before any
		// query was issued (Preset on re-sync, Skip from the consumer).
		state.appendSearch(&ProviderSearch{Provider: current, Query: state.InitialQuery()})
	}
	if err := state.setChoice(current, choice); err != nil {
		return err
	}

	switch c := choice.(type) {
	case Cancel:
		state.Status = StatusCancelled
		state.CurrentProvider = ""
	case NewSearch:
		state.appendSearch(&ProviderSearch{Provider: current, Query: c.Query})
	default:
		next := state.nextProvider(current)
		state.CurrentProvider = next
		if next == "" {
			state.Status = StatusSuccess
		}
	}
	return nil
}

// Search issues a query for the state's current provider and records the
// response in the open history entry. When smart choose is enabled and
// exactly one result matches the query exactly, the machine auto-submits
// Accept and returns the choice it made; otherwise the returned choice is
// nil and the machine waits for SubmitChoice.
func (m *Machine) Search(ctx context.Context, state *State, query string, offset, limit int) (provider.SearchResponse, Choice, error) {
	if state.Status.Terminal() || state.CurrentProvider == "" {
		return provider.SearchResponse{}, nil, services.Wrap(services.ErrValidation, "search", "search",
			fmt.Sprintf("state for %q is not running", state.Path.Dir), nil)
	}
	if limit <= 0 {
		limit = m.opts.SearchLimit
	}

	current := state.CurrentProvider
	resp, err := m.session.Search(ctx, current, query, state.Path.Platform, offset, limit)
	if err != nil {
		return provider.SearchResponse{}, nil, err
	}
	if m.opts.FilterPreviouslyDiscarded {
		resp.Results = FilterPreviouslyDiscarded(resp.Results, state.discardedNames(current))
	}
	// A provider that reports no paging info ends on the first empty page.
	if resp.CanShowMoreResults == nil && offset > 0 && len(resp.Results) == 0 {
		resp.CanShowMoreResults = provider.BoolPtr(false)
	}

	entry := state.lastSearch(current)
	if entry != nil && entry.Choice == nil && entry.Query == query {
		entry.Results = append(entry.Results, resp.Results...)
		entry.Offset = offset
		entry.CanShowMoreResults = resp.CanShowMoreResults
		entry.Searched = true
	} else {
		state.appendSearch(&ProviderSearch{
			Provider:           current,
			Query:              query,
			Offset:             offset,
			Results:            resp.Results,
			CanShowMoreResults: resp.CanShowMoreResults,
			Searched:           true,
		})
	}

	if m.opts.AllowSmartChoose && offset == 0 {
		if match, ok := exactMatch(resp.Results, query); ok {
			choice := Accept{Result: match}
			if err := m.SubmitChoice(state, choice); err != nil {
				return resp, nil, err
			}
			return resp, choice, nil
		}
	}
	return resp, nil, nil
}

// exactMatch reports the single result whose name equals the query after
// case folding and whitespace collapsing. More than one match disables the
// shortcut.
func exactMatch(results []provider.SearchResult, query string) (provider.SearchResult, bool) {
	var (
		match provider.SearchResult
		count int
	)
	for _, result := range results {
		if textutil.EqualNames(result.Name, query) {
			match = result
			count++
		}
	}
	return match, count == 1
}

// discardedNames collects result names from history entries the user
// abandoned by searching again.
func (s *State) discardedNames(id provider.ID) []string {
	var names []string
	for _, entry := range s.history[id] {
		if _, abandoned := entry.Choice.(NewSearch); !abandoned {
			continue
		}
		for _, result := range entry.Results {
			names = append(names, result.Name)
		}
	}
	return names
}
