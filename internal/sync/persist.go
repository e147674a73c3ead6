package sync

import (
	"context"
	"encoding/json"

	"ludex/internal/events"
	"ludex/internal/library"
	"ludex/internal/logging"
	"ludex/internal/provider"
	"ludex/internal/search"
)

// acceptedResult pairs a settled provider with its confirmed result.
type acceptedResult struct {
	provider provider.ID
	result   provider.SearchResult
	data     *provider.GameData
	siteURL  string
}

// finishPath persists one terminal state and emits its path-finished event.
// Persistence failures are logged and recorded, never fatal to the run.
func (s *Service) finishPath(ctx context.Context, runID string, state *search.State) {
	key := state.Path.Key()
	result := library.SyncResult{
		RunID:   runID,
		Library: key.Library,
		Dir:     key.Dir,
	}

	switch {
	case state.Status == search.StatusCancelled:
		result.Outcome = library.OutcomeCancelled

	case s.hasExclude(state):
		result.Outcome = library.OutcomeExcluded
		if err := s.store.MarkExcluded(ctx, key); err != nil {
			s.logger.Error("mark excluded failed",
				logging.String(logging.FieldPathID, key.Dir), logging.Error(err))
			result.Outcome = library.OutcomeFailed
			result.Detail = err.Error()
		} else if err := s.store.RemovePath(ctx, key); err != nil {
			// Paths discovered by scan may never have been registered.
			s.logger.Debug("remove excluded path",
				logging.String(logging.FieldPathID, key.Dir), logging.Error(err))
		}

	default:
		accepted := s.acceptedResults(ctx, state)
		if len(accepted) == 0 {
			result.Outcome = library.OutcomeSkipped
		} else if game, err := s.persistGame(ctx, state, accepted); err != nil {
			s.logger.Error("persist game failed",
				logging.String(logging.FieldPathID, key.Dir), logging.Error(err))
			result.Outcome = library.OutcomeFailed
			result.Detail = err.Error()
		} else {
			result.Outcome = library.OutcomeMatched
			result.Detail = game.Name
		}
	}

	if err := s.store.RecordSyncResult(ctx, result); err != nil {
		s.logger.Error("record sync result failed",
			logging.String(logging.FieldPathID, key.Dir), logging.Error(err))
	}

	s.bus.Emit(events.New(events.TypePathFinished, map[string]string{
		"run_id":  runID,
		"path":    key.Dir,
		"library": key.Library,
		"outcome": string(result.Outcome),
		"detail":  result.Detail,
	}))
}

func (s *Service) hasExclude(state *search.State) bool {
	for _, id := range state.ProviderOrder {
		entries := state.HistoryFor(id)
		if len(entries) == 0 {
			continue
		}
		if _, ok := entries[len(entries)-1].Choice.(search.Exclude); ok {
			return true
		}
	}
	return false
}

// acceptedResults collects the Accept and Preset choices in provider
// priority order, fetching full records for Accepts. A failed fetch degrades
// to the search result's own fields.
func (s *Service) acceptedResults(ctx context.Context, state *search.State) []acceptedResult {
	var accepted []acceptedResult
	for _, id := range state.ProviderOrder {
		entries := state.HistoryFor(id)
		if len(entries) == 0 {
			continue
		}
		switch choice := entries[len(entries)-1].Choice.(type) {
		case search.Accept:
			item := acceptedResult{provider: id, result: choice.Result}
			fetched, err := s.machine.Session().Fetch(ctx, id, choice.Result.ProviderGameID, state.Path.Platform)
			if err != nil {
				s.logger.Warn("fetch game details failed",
					logging.String(logging.FieldPathID, state.Path.Dir),
					logging.String(logging.FieldProvider, string(id)),
					logging.Error(err))
			} else {
				item.data = &fetched.GameData
				item.siteURL = fetched.SiteURL
			}
			accepted = append(accepted, item)
		case search.Preset:
			data := choice.Data
			item := acceptedResult{provider: id, result: choice.Result, data: &data}
			if record := state.RecordFor(id); record != nil {
				item.siteURL = record.SiteURL
			}
			accepted = append(accepted, item)
		}
	}
	return accepted
}

// persistGame upserts the confirmed game and one provider record per
// accepted provider. The highest-priority provider's data wins the game row.
func (s *Service) persistGame(ctx context.Context, state *search.State, accepted []acceptedResult) (*library.Game, error) {
	pathRow, err := s.store.AddPath(ctx, state.Path)
	if err != nil {
		return nil, err
	}

	primary := accepted[0]
	game := &library.Game{PathID: pathRow.ID}
	if primary.data != nil && primary.data.Name != "" {
		game.Name = primary.data.Name
		game.Description = primary.data.Description
		game.ReleaseDate = primary.data.ReleaseDate
		game.CriticScore = primary.data.CriticScore
		game.UserScore = primary.data.UserScore
		game.Genres = primary.data.Genres
		game.ThumbnailURL = primary.data.ThumbnailURL
		game.PosterURL = primary.data.PosterURL
		game.ScreenshotURLs = primary.data.ScreenshotURLs
	} else {
		game.Name = primary.result.Name
		game.ReleaseDate = primary.result.ReleaseDate
		game.CriticScore = primary.result.CriticScore
		game.UserScore = primary.result.UserScore
		game.ThumbnailURL = primary.result.ThumbnailURL
	}

	saved, err := s.store.UpsertGame(ctx, game)
	if err != nil {
		return nil, err
	}

	for _, item := range accepted {
		record := library.ProviderRecord{
			GameID:         saved.ID,
			Provider:       string(item.provider),
			ProviderGameID: item.result.ProviderGameID,
			SiteURL:        item.siteURL,
		}
		if item.data != nil {
			if encoded, err := json.Marshal(item.data); err == nil {
				record.DataJSON = string(encoded)
			}
		}
		if err := s.store.UpsertProviderRecord(ctx, record); err != nil {
			return nil, err
		}
	}
	return saved, nil
}
