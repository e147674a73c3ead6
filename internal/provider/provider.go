package provider

import (
	"context"
	"strings"

	"ludex/internal/services"
)

// ID identifies a metadata provider.
type ID string

const (
	GiantBomb  ID = "giantbomb"
	IGDB       ID = "igdb"
	OpenCritic ID = "opencritic"
)

// ParseID converts a string into a known provider ID.
func ParseID(value string) (ID, error) {
	normalized := ID(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case GiantBomb, IGDB, OpenCritic:
		return normalized, nil
	}
	return "", services.Wrap(services.ErrConfiguration, "provider", "parse",
		"unknown provider "+strings.TrimSpace(value), nil)
}

// SearchQuery describes one paged provider search.
type SearchQuery struct {
	Query    string
	Platform string
	Offset   int
	Limit    int
}

// SearchResult is a single candidate match returned by a provider search.
type SearchResult struct {
	ProviderGameID string
	Name           string
	ReleaseDate    string
	CriticScore    *float64
	UserScore      *float64
	ThumbnailURL   string
}

// SearchResponse is one page of search results.
//
// CanShowMoreResults is tri-state: nil means the provider does not report
// whether further pages exist, so callers must still allow a "show more"
// attempt and treat a subsequent empty page as the end.
type SearchResponse struct {
	Results            []SearchResult
	CanShowMoreResults *bool
}

// GameData is the full provider record for a confirmed game.
type GameData struct {
	Name           string
	Description    string
	ReleaseDate    string
	CriticScore    *float64
	UserScore      *float64
	Genres         []string
	ThumbnailURL   string
	PosterURL      string
	ScreenshotURLs []string
}

// FetchResponse carries the full record plus the provider's canonical page.
type FetchResponse struct {
	GameData GameData
	SiteURL  string
}

// Client is the surface the sync pipeline needs from each provider.
type Client interface {
	ID() ID
	Search(ctx context.Context, q SearchQuery) (SearchResponse, error)
	Fetch(ctx context.Context, providerGameID, platform string) (FetchResponse, error)
}

// BoolPtr returns a pointer to b; helper for CanShowMoreResults literals.
func BoolPtr(b bool) *bool {
	return &b
}
