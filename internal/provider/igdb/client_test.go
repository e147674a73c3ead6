package igdb

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/oauth2"

	"ludex/internal/provider"
)

func staticToken() oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "twitch-token"})
}

func TestSearchSendsApicalypseBody(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/games" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Client-ID"); got != "cid" {
			t.Errorf("missing client id header, got %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer twitch-token" {
			t.Errorf("missing bearer token, got %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(`[
			{"id": 17000, "name": "Stardew Valley", "first_release_date": 1456444800,
			 "aggregated_rating": 89.5, "cover": {"image_id": "xyz"}}
		]`))
	}))
	defer server.Close()

	client, err := New("cid", "secret", server.URL, DefaultTokenURL, 0, WithTokenSource(staticToken()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	resp, err := client.Search(context.Background(), provider.SearchQuery{Query: "stardew", Platform: "PC", Limit: 10, Offset: 10})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if !strings.Contains(gotBody, `search "stardew";`) {
		t.Errorf("body missing search clause: %q", gotBody)
	}
	if !strings.Contains(gotBody, `where platforms.name = "PC";`) {
		t.Errorf("body missing platform filter: %q", gotBody)
	}
	if !strings.Contains(gotBody, "limit 10; offset 10;") {
		t.Errorf("body missing paging: %q", gotBody)
	}

	if len(resp.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(resp.Results))
	}
	got := resp.Results[0]
	if got.ProviderGameID != "17000" || got.Name != "Stardew Valley" {
		t.Fatalf("unexpected result: %+v", got)
	}
	if got.ReleaseDate != "2016-02-26" {
		t.Fatalf("unexpected release date: %q", got.ReleaseDate)
	}
	if got.CriticScore == nil || *got.CriticScore != 89.5 {
		t.Fatalf("unexpected critic score: %v", got.CriticScore)
	}
	if !strings.Contains(got.ThumbnailURL, "t_thumb/xyz") {
		t.Fatalf("unexpected thumbnail: %q", got.ThumbnailURL)
	}
	// A partial page means no further results.
	if resp.CanShowMoreResults == nil || *resp.CanShowMoreResults {
		t.Fatal("expected CanShowMoreResults false for partial page")
	}
}

func TestSearchFullPageReportsMore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": 1, "name": "A"}, {"id": 2, "name": "B"}]`))
	}))
	defer server.Close()

	client, err := New("cid", "secret", server.URL, DefaultTokenURL, 0, WithTokenSource(staticToken()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	resp, err := client.Search(context.Background(), provider.SearchQuery{Query: "anything", Limit: 2})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if resp.CanShowMoreResults == nil || !*resp.CanShowMoreResults {
		t.Fatal("expected CanShowMoreResults true for full page")
	}
}

func TestFetchMapsRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "where id = 17000;") {
			t.Errorf("body missing id filter: %q", string(body))
		}
		w.Write([]byte(`[
			{"id": 17000, "name": "Stardew Valley", "summary": "Farming sim.",
			 "url": "https://www.igdb.com/games/stardew-valley",
			 "cover": {"image_id": "xyz"},
			 "screenshots": [{"image_id": "s1"}, {"image_id": "s2"}],
			 "genres": [{"name": "Simulator"}, {"name": "RPG"}]}
		]`))
	}))
	defer server.Close()

	client, err := New("cid", "secret", server.URL, DefaultTokenURL, 0, WithTokenSource(staticToken()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	resp, err := client.Fetch(context.Background(), "17000", "PC")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if resp.GameData.Name != "Stardew Valley" || resp.GameData.Description != "Farming sim." {
		t.Fatalf("unexpected game data: %+v", resp.GameData)
	}
	if len(resp.GameData.Genres) != 2 || resp.GameData.Genres[1] != "RPG" {
		t.Fatalf("unexpected genres: %v", resp.GameData.Genres)
	}
	if len(resp.GameData.ScreenshotURLs) != 2 {
		t.Fatalf("unexpected screenshots: %v", resp.GameData.ScreenshotURLs)
	}
	if !strings.Contains(resp.GameData.PosterURL, "t_cover_big/xyz") {
		t.Fatalf("unexpected poster: %q", resp.GameData.PosterURL)
	}
	if resp.SiteURL != "https://www.igdb.com/games/stardew-valley" {
		t.Fatalf("unexpected site url: %q", resp.SiteURL)
	}
}

func TestFetchRejectsBadID(t *testing.T) {
	client, err := New("cid", "secret", DefaultBaseURL, DefaultTokenURL, 1, WithTokenSource(staticToken()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := client.Fetch(context.Background(), "not-a-number", ""); err == nil {
		t.Fatal("expected error for non-numeric game id")
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New("", "secret", "", "", 1); err == nil {
		t.Fatal("expected error for empty client id")
	}
	if _, err := New("cid", "", "", "", 1); err == nil {
		t.Fatal("expected error for empty client secret")
	}
}
