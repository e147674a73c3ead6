package opencritic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ludex/internal/provider"
)

// DefaultBaseURL is the OpenCritic API root on RapidAPI.
const DefaultBaseURL = "https://opencritic-api.p.rapidapi.com"

const rapidAPIHost = "opencritic-api.p.rapidapi.com"

type searchHit struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type gameRecord struct {
	ID               int64       `json:"id"`
	Name             string      `json:"name"`
	Description      string      `json:"description"`
	FirstReleaseDate string      `json:"firstReleaseDate"`
	TopCriticScore   *float64    `json:"topCriticScore"`
	URL              string      `json:"url"`
	Images           gameImages  `json:"images"`
	Genres           []namedItem `json:"Genres"`
}

type gameImages struct {
	Box    imageRef   `json:"box"`
	Banner imageRef   `json:"banner"`
	Shots  []imageRef `json:"screenshots"`
}

type imageRef struct {
	OG string `json:"og"`
	SM string `json:"sm"`
}

type namedItem struct {
	Name string `json:"name"`
}

// Client provides access to the OpenCritic API.
type Client struct {
	apiKey     string
	baseURL    string
	limiter    *rate.Limiter
	httpClient *http.Client
}

var _ provider.Client = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates an OpenCritic client.
func New(apiKey, baseURL string, requestsPerSecond float64, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("opencritic api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		limiter:    limiter,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// ID reports the provider identity.
func (c *Client) ID() provider.ID {
	return provider.OpenCritic
}

// Search queries OpenCritic for games matching q. The search endpoint returns
// a plain relevance-ordered list with no paging metadata, so
// CanShowMoreResults is left nil.
func (c *Client) Search(ctx context.Context, q provider.SearchQuery) (provider.SearchResponse, error) {
	query := strings.TrimSpace(q.Query)
	if query == "" {
		return provider.SearchResponse{}, errors.New("query must not be empty")
	}

	params := url.Values{}
	params.Set("criteria", query)

	var hits []searchHit
	if err := c.get(ctx, "/game/search", params, &hits); err != nil {
		return provider.SearchResponse{}, err
	}
	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}

	results := make([]provider.SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, provider.SearchResult{
			ProviderGameID: strconv.FormatInt(hit.ID, 10),
			Name:           hit.Name,
		})
	}
	return provider.SearchResponse{Results: results}, nil
}

// Fetch loads the full game record for an OpenCritic game ID.
func (c *Client) Fetch(ctx context.Context, providerGameID, platform string) (provider.FetchResponse, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(providerGameID), 10, 64)
	if err != nil {
		return provider.FetchResponse{}, fmt.Errorf("parse opencritic game id %q: %w", providerGameID, err)
	}

	var rec gameRecord
	if err := c.get(ctx, fmt.Sprintf("/game/%d", id), nil, &rec); err != nil {
		return provider.FetchResponse{}, err
	}

	genres := make([]string, 0, len(rec.Genres))
	for _, genre := range rec.Genres {
		genres = append(genres, genre.Name)
	}
	screenshots := make([]string, 0, len(rec.Images.Shots))
	for _, shot := range rec.Images.Shots {
		if shot.OG != "" {
			screenshots = append(screenshots, shot.OG)
		}
	}
	var critic *float64
	if rec.TopCriticScore != nil && *rec.TopCriticScore >= 0 {
		critic = rec.TopCriticScore
	}
	return provider.FetchResponse{
		GameData: provider.GameData{
			Name:           rec.Name,
			Description:    rec.Description,
			ReleaseDate:    formatReleaseDate(rec.FirstReleaseDate),
			CriticScore:    critic,
			Genres:         genres,
			ThumbnailURL:   rec.Images.Box.SM,
			PosterURL:      rec.Images.Box.OG,
			ScreenshotURLs: screenshots,
		},
		SiteURL: rec.URL,
	}, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse opencritic url: %w", err)
	}
	if params != nil {
		endpoint.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	req.Header.Set("X-RapidAPI-Host", rapidAPIHost)

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("opencritic returned %d (latency=%v)", resp.StatusCode, latency)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode opencritic response: %w", err)
	}
	return nil
}

func formatReleaseDate(ts string) string {
	if ts == "" {
		return ""
	}
	parsed, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return parsed.UTC().Format("2006-01-02")
}
