package giantbomb

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

// DefaultBaseURL is the public GiantBomb API root.
const DefaultBaseURL = "https://www.giantbomb.com/api"

type searchPayload struct {
	StatusCode           int          `json:"status_code"`
	Error                string       `json:"error"`
	NumberOfPageResults  int          `json:"number_of_page_results"`
	NumberOfTotalResults int          `json:"number_of_total_results"`
	Offset               int          `json:"offset"`
	Results              []gameRecord `json:"results"`
}

type gamePayload struct {
	StatusCode int        `json:"status_code"`
	Error      string     `json:"error"`
	Results    gameRecord `json:"results"`
}

type gameRecord struct {
	GUID                string        `json:"guid"`
	Name                string        `json:"name"`
	Deck                string        `json:"deck"`
	OriginalReleaseDate string        `json:"original_release_date"`
	SiteDetailURL       string        `json:"site_detail_url"`
	Image               imageRecord   `json:"image"`
	Images              []imageRecord `json:"images"`
	Genres              []namedItem   `json:"genres"`
}

type imageRecord struct {
	ThumbURL    string `json:"thumb_url"`
	MediumURL   string `json:"medium_url"`
	OriginalURL string `json:"original_url"`
}

type namedItem struct {
	Name string `json:"name"`
}

// Client provides access to the GiantBomb API.
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

// New creates a GiantBomb client. requestsPerSecond bounds the outbound
// request rate; values <= 0 disable the limiter.
func New(apiKey, baseURL string, requestsPerSecond float64, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("giantbomb api key required")
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
	return provider.GiantBomb
}

// Search queries GiantBomb for games matching q.
func (c *Client) Search(ctx context.Context, q provider.SearchQuery) (provider.SearchResponse, error) {
	query := strings.TrimSpace(q.Query)
	if query == "" {
		return provider.SearchResponse{}, errors.New("query must not be empty")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")
	params.Set("resources", "game")
	params.Set("query", query)
	params.Set("limit", strconv.Itoa(limit))
	if q.Offset > 0 {
		params.Set("page", strconv.Itoa(q.Offset/limit+1))
	}

	var payload searchPayload
	if err := c.get(ctx, "/search/", params, &payload); err != nil {
		return provider.SearchResponse{}, err
	}
	if payload.StatusCode != 1 {
		return provider.SearchResponse{}, fmt.Errorf("giantbomb search error %d: %s", payload.StatusCode, payload.Error)
	}

	results := make([]provider.SearchResult, 0, len(payload.Results))
	for _, rec := range payload.Results {
		results = append(results, provider.SearchResult{
			ProviderGameID: rec.GUID,
			Name:           rec.Name,
			ReleaseDate:    rec.OriginalReleaseDate,
			ThumbnailURL:   rec.Image.ThumbURL,
		})
	}
	more := q.Offset+payload.NumberOfPageResults < payload.NumberOfTotalResults
	return provider.SearchResponse{
		Results:            results,
		CanShowMoreResults: provider.BoolPtr(more),
	}, nil
}

// Fetch loads the full game record for a GiantBomb GUID.
func (c *Client) Fetch(ctx context.Context, providerGameID, platform string) (provider.FetchResponse, error) {
	guid := strings.TrimSpace(providerGameID)
	if guid == "" {
		return provider.FetchResponse{}, errors.New("provider game id must not be empty")
	}

	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")

	var payload gamePayload
	if err := c.get(ctx, "/game/"+url.PathEscape(guid)+"/", params, &payload); err != nil {
		return provider.FetchResponse{}, err
	}
	if payload.StatusCode != 1 {
		return provider.FetchResponse{}, fmt.Errorf("giantbomb fetch error %d: %s", payload.StatusCode, payload.Error)
	}

	rec := payload.Results
	genres := make([]string, 0, len(rec.Genres))
	for _, genre := range rec.Genres {
		genres = append(genres, genre.Name)
	}
	screenshots := make([]string, 0, len(rec.Images))
	for _, img := range rec.Images {
		if img.MediumURL != "" {
			screenshots = append(screenshots, img.MediumURL)
		}
	}
	return provider.FetchResponse{
		GameData: provider.GameData{
			Name:           rec.Name,
			Description:    rec.Deck,
			ReleaseDate:    rec.OriginalReleaseDate,
			Genres:         genres,
			ThumbnailURL:   rec.Image.ThumbURL,
			PosterURL:      rec.Image.OriginalURL,
			ScreenshotURLs: screenshots,
		},
		SiteURL: rec.SiteDetailURL,
	}, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse giantbomb url: %w", err)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("giantbomb returned %d (latency=%v)", resp.StatusCode, latency)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode giantbomb response: %w", err)
	}
	return nil
}
