package testsupport

import (
	"context"

	"ludex/internal/provider"
)

// StubProvider implements provider.Client with canned or func-driven behavior.
type StubProvider struct {
	Provider   provider.ID
	SearchFunc func(ctx context.Context, q provider.SearchQuery) (provider.SearchResponse, error)
	FetchFunc  func(ctx context.Context, providerGameID, platform string) (provider.FetchResponse, error)
}

func (s *StubProvider) ID() provider.ID {
	return s.Provider
}

func (s *StubProvider) Search(ctx context.Context, q provider.SearchQuery) (provider.SearchResponse, error) {
	if s.SearchFunc != nil {
		return s.SearchFunc(ctx, q)
	}
	return provider.SearchResponse{}, nil
}

func (s *StubProvider) Fetch(ctx context.Context, providerGameID, platform string) (provider.FetchResponse, error) {
	if s.FetchFunc != nil {
		return s.FetchFunc(ctx, providerGameID, platform)
	}
	return provider.FetchResponse{}, nil
}
