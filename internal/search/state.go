package search

import (
	"fmt"
	"path/filepath"

	"ludex/internal/library"
	"ludex/internal/provider"
	"ludex/internal/services"
)

// Status is the lifecycle of one path's search.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further mutation is permitted.
func (s Status) Terminal() bool {
	return s != StatusRunning
}

// ProviderSearch is one query attempt against one provider.
type ProviderSearch struct {
	Provider           provider.ID
	Query              string
	Offset             int
	Results            []provider.SearchResult
	CanShowMoreResults *bool
	Choice             Choice
	// Searched is set once the entry's query has actually been issued;
	// entries created implicitly by a choice, or appended by a new-search
	// choice, start false.
	Searched bool
}

// OpenSearch returns a copy of the newest unchosen entry for a provider.
func (s *State) OpenSearch(id provider.ID) (ProviderSearch, bool) {
	entry := s.lastSearch(id)
	if entry == nil || entry.Choice != nil {
		return ProviderSearch{}, false
	}
	return *entry, true
}

// State is the per-path search record. History is append-only: entries are
// never mutated except to set the final entry's choice, exactly once.
type State struct {
	Index           int
	Path            library.Path
	ProviderOrder   []provider.ID
	CurrentProvider provider.ID
	Status          Status
	ExistingGame    *library.Game
	ProviderRecords []library.ProviderRecord

	history map[provider.ID][]*ProviderSearch
}

// InitialQuery is the query pre-seeded for every provider: the previously
// matched game's name on re-sync, the folder name otherwise.
func (s *State) InitialQuery() string {
	if s.ExistingGame != nil && s.ExistingGame.Name != "" {
		return s.ExistingGame.Name
	}
	return filepath.Base(s.Path.Dir)
}

// HistoryFor returns a copy of the search history for one provider.
func (s *State) HistoryFor(id provider.ID) []ProviderSearch {
	entries := s.history[id]
	out := make([]ProviderSearch, 0, len(entries))
	for _, entry := range entries {
		out = append(out, *entry)
	}
	return out
}

// Progress reports the fraction of providers with a recorded choice, in [0,1].
func (s *State) Progress() float64 {
	if len(s.ProviderOrder) == 0 {
		return 1
	}
	chosen := 0
	for _, id := range s.ProviderOrder {
		entries := s.history[id]
		if len(entries) > 0 && entries[len(entries)-1].Choice != nil {
			chosen++
		}
	}
	return float64(chosen) / float64(len(s.ProviderOrder))
}

// lastSearch returns the newest history entry for a provider, or nil.
func (s *State) lastSearch(id provider.ID) *ProviderSearch {
	entries := s.history[id]
	if len(entries) == 0 {
		return nil
	}
	return entries[len(entries)-1]
}

// appendSearch adds a fresh history entry for a provider.
func (s *State) appendSearch(entry *ProviderSearch) {
	if s.history == nil {
		s.history = make(map[provider.ID][]*ProviderSearch)
	}
	s.history[entry.Provider] = append(s.history[entry.Provider], entry)
}

// setChoice records the choice on the final history entry for a provider.
// A choice may be set exactly once per entry.
func (s *State) setChoice(id provider.ID, choice Choice) error {
	entry := s.lastSearch(id)
	if entry == nil {
		return services.Wrap(services.ErrValidation, "search", "set choice",
			fmt.Sprintf("no search history for provider %q", id), nil)
	}
	if entry.Choice != nil {
		return services.Wrap(services.ErrValidation, "search", "set choice",
			fmt.Sprintf("choice already recorded for provider %q", id), nil)
	}
	entry.Choice = choice
	return nil
}

// nextProvider returns the provider after id in the configured order, or ""
// when id is the last.
func (s *State) nextProvider(id provider.ID) provider.ID {
	for i, candidate := range s.ProviderOrder {
		if candidate == id && i+1 < len(s.ProviderOrder) {
			return s.ProviderOrder[i+1]
		}
	}
	return ""
}

// RecordFor returns the stored provider record matching id on the re-sync
// path, or nil.
func (s *State) RecordFor(id provider.ID) *library.ProviderRecord {
	for i := range s.ProviderRecords {
		if s.ProviderRecords[i].Provider == string(id) {
			return &s.ProviderRecords[i]
		}
	}
	return nil
}
