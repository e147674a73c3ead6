package sync

import (
	"ludex/internal/library"
	"ludex/internal/provider"
	"ludex/internal/search"
	"ludex/internal/task"
)

// PathSnapshot is the read model for one path in the run.
type PathSnapshot struct {
	Path            library.Path
	Status          search.Status
	CurrentProvider provider.ID
	Progress        float64
	History         map[provider.ID][]search.ProviderSearch
}

// Snapshot is the read model for the whole run.
type Snapshot struct {
	RunID       string
	Active      bool
	Processed   int
	Total       int
	CurrentPath *library.Key
	Paths       []PathSnapshot
	Task        *task.Snapshot
	LastOutcome *task.Outcome
}

// Snapshot returns a consistent copy of the run state for presentation.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		RunID:       s.runID,
		Active:      s.running,
		LastOutcome: s.lastOutcome,
		Task:        s.engine.Current(),
	}
	if s.coord == nil {
		return snap
	}

	snap.Processed = s.coord.NumProcessed()
	snap.Total = s.coord.Total()
	if current := s.coord.Current(); current != nil {
		key := current.Path.Key()
		snap.CurrentPath = &key
	}

	for _, key := range s.coord.Paths() {
		state, err := s.coord.StateFor(key)
		if err != nil {
			continue
		}
		history := make(map[provider.ID][]search.ProviderSearch, len(state.ProviderOrder))
		for _, id := range state.ProviderOrder {
			if entries := state.HistoryFor(id); len(entries) > 0 {
				history[id] = entries
			}
		}
		snap.Paths = append(snap.Paths, PathSnapshot{
			Path:            state.Path,
			Status:          state.Status,
			CurrentProvider: state.CurrentProvider,
			Progress:        state.Progress(),
			History:         history,
		})
	}
	return snap
}
