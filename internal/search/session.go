package search

import (
	"context"

	"ludex/internal/provider"
	"ludex/internal/textutil"
)

// Session drives one provider's interaction for one library path. Searches
// are stateless pass-throughs; all history mutation belongs to the Machine.
type Session struct {
	registry *provider.Registry
}

// NewSession creates a session over the enabled providers.
func NewSession(registry *provider.Registry) *Session {
	return &Session{registry: registry}
}

// Search issues one provider query without reinterpreting the response.
func (s *Session) Search(ctx context.Context, id provider.ID, query, platform string, offset, limit int) (provider.SearchResponse, error) {
	client, err := s.registry.Client(id)
	if err != nil {
		return provider.SearchResponse{}, err
	}
	return client.Search(ctx, provider.SearchQuery{
		Query:    query,
		Platform: platform,
		Offset:   offset,
		Limit:    limit,
	})
}

// Fetch loads the full provider record for a confirmed result.
func (s *Session) Fetch(ctx context.Context, id provider.ID, providerGameID, platform string) (provider.FetchResponse, error) {
	client, err := s.registry.Client(id)
	if err != nil {
		return provider.FetchResponse{}, err
	}
	return client.Fetch(ctx, providerGameID, platform)
}

// FilterPreviouslyDiscarded removes results whose name matches one the user
// already discarded for this path and provider. If filtering would remove
// every result, the unfiltered list is returned instead so the consumer is
// never handed an empty choice set by over-aggressive filtering.
func FilterPreviouslyDiscarded(results []provider.SearchResult, discardedNames []string) []provider.SearchResult {
	if len(results) == 0 || len(discardedNames) == 0 {
		return results
	}
	discarded := make(map[string]struct{}, len(discardedNames))
	for _, name := range discardedNames {
		discarded[textutil.NormalizeName(name)] = struct{}{}
	}
	kept := make([]provider.SearchResult, 0, len(results))
	for _, result := range results {
		if _, drop := discarded[textutil.NormalizeName(result.Name)]; !drop {
			kept = append(kept, result)
		}
	}
	if len(kept) == 0 {
		return results
	}
	return kept
}
