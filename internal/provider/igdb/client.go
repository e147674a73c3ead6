package igdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"ludex/internal/provider"
)

const (
	// DefaultBaseURL is the public IGDB API root.
	DefaultBaseURL = "https://api.igdb.com/v4"
	// DefaultTokenURL is the Twitch token endpoint IGDB authenticates against.
	DefaultTokenURL = "https://id.twitch.tv/oauth2/token"
)

type gameRecord struct {
	ID               int64         `json:"id"`
	Name             string        `json:"name"`
	Summary          string        `json:"summary"`
	FirstReleaseDate int64         `json:"first_release_date"`
	AggregatedRating *float64      `json:"aggregated_rating"`
	Rating           *float64      `json:"rating"`
	URL              string        `json:"url"`
	Cover            *imageRecord  `json:"cover"`
	Screenshots      []imageRecord `json:"screenshots"`
	Genres           []namedItem   `json:"genres"`
}

type imageRecord struct {
	ImageID string `json:"image_id"`
}

type namedItem struct {
	Name string `json:"name"`
}

// Client provides access to the IGDB API.
type Client struct {
	clientID   string
	baseURL    string
	limiter    *rate.Limiter
	tokens     oauth2.TokenSource
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

// WithTokenSource overrides the Twitch client-credentials token source.
func WithTokenSource(source oauth2.TokenSource) Option {
	return func(c *Client) {
		if source != nil {
			c.tokens = source
		}
	}
}

// New creates an IGDB client. Tokens are fetched lazily and cached by the
// underlying oauth2 token source.
func New(clientID, clientSecret, baseURL, tokenURL string, requestsPerSecond float64, opts ...Option) (*Client, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, errors.New("igdb client id required")
	}
	clientSecret = strings.TrimSpace(clientSecret)
	if clientSecret == "" {
		return nil, errors.New("igdb client secret required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	tokenURL = strings.TrimSpace(tokenURL)
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	grant := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	client := &Client{
		clientID:   clientID,
		baseURL:    strings.TrimRight(baseURL, "/"),
		limiter:    limiter,
		tokens:     grant.TokenSource(context.Background()),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// ID reports the provider identity.
func (c *Client) ID() provider.ID {
	return provider.IGDB
}

// Search queries IGDB for games matching q.
func (c *Client) Search(ctx context.Context, q provider.SearchQuery) (provider.SearchResponse, error) {
	query := strings.TrimSpace(q.Query)
	if query == "" {
		return provider.SearchResponse{}, errors.New("query must not be empty")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	var body strings.Builder
	body.WriteString("search ")
	body.WriteString(strconv.Quote(query))
	body.WriteString("; fields name,summary,first_release_date,aggregated_rating,rating,url,cover.image_id;")
	if q.Platform != "" {
		body.WriteString(" where platforms.name = ")
		body.WriteString(strconv.Quote(q.Platform))
		body.WriteString(";")
	}
	fmt.Fprintf(&body, " limit %d; offset %d;", limit, q.Offset)

	var records []gameRecord
	if err := c.post(ctx, "/games", body.String(), &records); err != nil {
		return provider.SearchResponse{}, err
	}

	results := make([]provider.SearchResult, 0, len(records))
	for _, rec := range records {
		results = append(results, provider.SearchResult{
			ProviderGameID: strconv.FormatInt(rec.ID, 10),
			Name:           rec.Name,
			ReleaseDate:    formatReleaseDate(rec.FirstReleaseDate),
			CriticScore:    rec.AggregatedRating,
			UserScore:      rec.Rating,
			ThumbnailURL:   imageURL(rec.Cover, "t_thumb"),
		})
	}
	// IGDB reports no total count on search responses. A full page means
	// more results may exist; anything shorter is the end.
	more := len(records) == limit
	return provider.SearchResponse{
		Results:            results,
		CanShowMoreResults: provider.BoolPtr(more),
	}, nil
}

// Fetch loads the full game record for an IGDB game ID.
func (c *Client) Fetch(ctx context.Context, providerGameID, platform string) (provider.FetchResponse, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(providerGameID), 10, 64)
	if err != nil {
		return provider.FetchResponse{}, fmt.Errorf("parse igdb game id %q: %w", providerGameID, err)
	}

	body := fmt.Sprintf("fields name,summary,first_release_date,aggregated_rating,rating,url,cover.image_id,screenshots.image_id,genres.name; where id = %d;", id)

	var records []gameRecord
	if err := c.post(ctx, "/games", body, &records); err != nil {
		return provider.FetchResponse{}, err
	}
	if len(records) == 0 {
		return provider.FetchResponse{}, fmt.Errorf("igdb game %d not found", id)
	}

	rec := records[0]
	genres := make([]string, 0, len(rec.Genres))
	for _, genre := range rec.Genres {
		genres = append(genres, genre.Name)
	}
	screenshots := make([]string, 0, len(rec.Screenshots))
	for i := range rec.Screenshots {
		if u := imageURL(&rec.Screenshots[i], "t_screenshot_med"); u != "" {
			screenshots = append(screenshots, u)
		}
	}
	return provider.FetchResponse{
		GameData: provider.GameData{
			Name:           rec.Name,
			Description:    rec.Summary,
			ReleaseDate:    formatReleaseDate(rec.FirstReleaseDate),
			CriticScore:    rec.AggregatedRating,
			UserScore:      rec.Rating,
			Genres:         genres,
			ThumbnailURL:   imageURL(rec.Cover, "t_thumb"),
			PosterURL:      imageURL(rec.Cover, "t_cover_big"),
			ScreenshotURLs: screenshots,
		},
		SiteURL: rec.URL,
	}, nil
}

func (c *Client) post(ctx context.Context, path, body string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("fetch igdb token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Client-ID", c.clientID)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("igdb returned %d (latency=%v)", resp.StatusCode, latency)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode igdb response: %w", err)
	}
	return nil
}

func formatReleaseDate(unix int64) string {
	if unix <= 0 {
		return ""
	}
	return time.Unix(unix, 0).UTC().Format("2006-01-02")
}

func imageURL(img *imageRecord, size string) string {
	if img == nil || img.ImageID == "" {
		return ""
	}
	return fmt.Sprintf("https://images.igdb.com/igdb/image/upload/%s/%s.jpg", size, img.ImageID)
}
