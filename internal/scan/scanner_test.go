package scan_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"ludex/internal/library"
	"ludex/internal/provider"
	"ludex/internal/scan"
	"ludex/internal/testsupport"
)

func mkGameDirs(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.MkdirAll(filepath.Join(root, name), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", name, err)
		}
	}
}

func TestDiscoverFindsNewFolders(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Paths.LibraryRoots[0]
	mkGameDirs(t, root, "Hades", "Celeste", ".hidden")
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	scanner := scan.New(cfg, store, nil)
	requests, err := scanner.Discover(context.Background(), scan.Options{})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if len(requests) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(requests), requests)
	}
	libraryName := filepath.Base(root)
	dirs := map[string]bool{}
	for _, req := range requests {
		if req.Path.Library != libraryName {
			t.Fatalf("unexpected library %q", req.Path.Library)
		}
		dirs[filepath.Base(req.Path.Dir)] = true
	}
	if !dirs["Hades"] || !dirs["Celeste"] {
		t.Fatalf("unexpected candidates: %v", dirs)
	}
}

func TestDiscoverHonorsExclusions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Paths.LibraryRoots[0]
	mkGameDirs(t, root, "Soundtracks", "Hades")

	ctx := context.Background()
	key := library.Key{Library: filepath.Base(root), Dir: filepath.Join(root, "Soundtracks")}
	if err := store.MarkExcluded(ctx, key); err != nil {
		t.Fatalf("MarkExcluded: %v", err)
	}

	requests, err := scan.New(cfg, store, nil).Discover(ctx, scan.Options{})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(requests) != 1 || filepath.Base(requests[0].Path.Dir) != "Hades" {
		t.Fatalf("expected only Hades, got %+v", requests)
	}
}

func TestDiscoverSkipsMatchedUnlessRescan(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Paths.LibraryRoots[0]
	mkGameDirs(t, root, "Hades")

	ctx := context.Background()
	libraryName := filepath.Base(root)
	pathRow := testsupport.NewPath(t, store, libraryName, filepath.Join(root, "Hades"))
	game, err := store.UpsertGame(ctx, &library.Game{PathID: pathRow.ID, Name: "Hades"})
	if err != nil {
		t.Fatalf("UpsertGame: %v", err)
	}
	data, _ := json.Marshal(provider.GameData{Name: "Hades"})
	if err := store.UpsertProviderRecord(ctx, library.ProviderRecord{
		GameID:         game.ID,
		Provider:       "giantbomb",
		ProviderGameID: "gb-1",
		DataJSON:       string(data),
	}); err != nil {
		t.Fatalf("UpsertProviderRecord: %v", err)
	}

	scanner := scan.New(cfg, store, nil)
	requests, err := scanner.Discover(ctx, scan.Options{})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(requests) != 0 {
		t.Fatalf("expected matched path skipped, got %+v", requests)
	}

	requests, err = scanner.Discover(ctx, scan.Options{Rescan: true})
	if err != nil {
		t.Fatalf("Discover rescan: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("expected rescan candidate, got %+v", requests)
	}
	req := requests[0]
	if req.ExistingGame == nil || req.ExistingGame.Name != "Hades" {
		t.Fatalf("expected stored game attached, got %+v", req.ExistingGame)
	}
	if len(req.ProviderRecords) != 1 || req.ProviderRecords[0].ProviderGameID != "gb-1" {
		t.Fatalf("expected provider records attached, got %+v", req.ProviderRecords)
	}
}

func TestDiscoverKeepsStoredPlatform(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Paths.LibraryRoots[0]
	mkGameDirs(t, root, "Hades")

	ctx := context.Background()
	libraryName := filepath.Base(root)
	pathRow, err := store.AddPath(ctx, library.Path{
		Library:  libraryName,
		Platform: "PS5",
		Dir:      filepath.Join(root, "Hades"),
	})
	if err != nil {
		t.Fatalf("AddPath: %v", err)
	}

	scanner := scan.New(cfg, store, nil)
	requests, err := scanner.Discover(ctx, scan.Options{})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("expected 1 candidate, got %+v", requests)
	}
	if got := requests[0].Path.Platform; got != "PS5" {
		t.Fatalf("stored platform dropped: got %q, want %q", got, "PS5")
	}
	if requests[0].Path.ID != pathRow.ID {
		t.Fatalf("expected stored row id %d, got %d", pathRow.ID, requests[0].Path.ID)
	}

	if _, err := store.UpsertGame(ctx, &library.Game{PathID: pathRow.ID, Name: "Hades"}); err != nil {
		t.Fatalf("UpsertGame: %v", err)
	}
	requests, err = scanner.Discover(ctx, scan.Options{Rescan: true})
	if err != nil {
		t.Fatalf("Discover rescan: %v", err)
	}
	if len(requests) != 1 || requests[0].Path.Platform != "PS5" {
		t.Fatalf("rescan dropped stored platform: %+v", requests)
	}
}

func TestDiscoverSkipsMissingRoot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.Paths.LibraryRoots[0]
	mkGameDirs(t, root, "Hades")
	cfg.Paths.LibraryRoots = append(cfg.Paths.LibraryRoots, filepath.Join(testsupport.BaseDir(cfg), "missing"))

	requests, err := scan.New(cfg, store, nil).Discover(context.Background(), scan.Options{})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("expected missing root skipped, got %+v", requests)
	}
}
