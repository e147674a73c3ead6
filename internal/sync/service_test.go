package sync_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"ludex/internal/events"
	"ludex/internal/library"
	"ludex/internal/provider"
	"ludex/internal/search"
	"ludex/internal/sync"
	"ludex/internal/task"
	"ludex/internal/testsupport"
)

const waitTimeout = 5 * time.Second

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// submitWhenActive retries a choice until the coordinator has advanced the
// named path to the front of the queue.
func submitWhenActive(t *testing.T, service *sync.Service, key library.Key, id provider.ID, choice search.Choice) {
	t.Helper()
	var lastErr error
	waitFor(t, "path "+key.Dir+" to become active", func() bool {
		lastErr = service.SubmitChoice(key, id, choice)
		return lastErr == nil
	})
	if lastErr != nil {
		t.Fatalf("SubmitChoice: %v", lastErr)
	}
}

type serviceHarness struct {
	service *sync.Service
	store   *library.Store
	bus     *events.Bus
}

func newServiceHarness(t *testing.T, clients ...provider.Client) *serviceHarness {
	t.Helper()

	order := make([]string, 0, len(clients))
	ids := make([]provider.ID, 0, len(clients))
	for _, c := range clients {
		order = append(order, string(c.ID()))
		ids = append(ids, c.ID())
	}
	cfg := testsupport.NewConfig(t, testsupport.WithProviderOrder(order...))
	store := testsupport.MustOpenStore(t, cfg)

	reg, err := provider.NewRegistry(ids, clients...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	bus := events.NewBus()
	t.Cleanup(bus.Close)
	engine := task.NewEngine(bus, nil)

	return &serviceHarness{
		service: sync.NewService(cfg, store, reg, engine, bus, nil),
		store:   store,
		bus:     bus,
	}
}

func resultProvider(id provider.ID, names ...string) *testsupport.StubProvider {
	results := make([]provider.SearchResult, 0, len(names))
	for i, name := range names {
		results = append(results, provider.SearchResult{
			ProviderGameID: string(id) + "-" + name,
			Name:           name,
			ReleaseDate:    "2020-01-0" + string(rune('1'+i)),
		})
	}
	return &testsupport.StubProvider{
		Provider: id,
		SearchFunc: func(ctx context.Context, q provider.SearchQuery) (provider.SearchResponse, error) {
			return provider.SearchResponse{Results: results, CanShowMoreResults: provider.BoolPtr(false)}, nil
		},
		FetchFunc: func(ctx context.Context, gameID, platform string) (provider.FetchResponse, error) {
			return provider.FetchResponse{
				GameData: provider.GameData{
					Name:        names[0],
					Description: "fetched description",
					Genres:      []string{"Action"},
				},
				SiteURL: "https://example.test/" + gameID,
			}, nil
		},
	}
}

func TestRunPersistsAcceptedAndSkippedPaths(t *testing.T) {
	h := newServiceHarness(t, resultProvider(provider.GiantBomb, "Hades", "Hades II"))

	eventsCh, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()

	requests := []sync.PathRequest{
		{Path: library.Path{Library: "PC", Dir: "/games/hades"}},
		{Path: library.Path{Library: "PC", Dir: "/games/unknown"}},
	}
	interactive := false
	runID, err := h.service.Start(requests, sync.RunOptions{AllowSmartChoose: &interactive})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	keyA := requests[0].Path.Key()
	submitWhenActive(t, h.service, keyA, provider.GiantBomb, search.Accept{
		Result: provider.SearchResult{ProviderGameID: "giantbomb-Hades", Name: "Hades"},
	})

	keyB := requests[1].Path.Key()
	submitWhenActive(t, h.service, keyB, provider.GiantBomb, search.Skip{})

	waitFor(t, "run to finish", func() bool {
		return !h.service.Snapshot().Active
	})

	snap := h.service.Snapshot()
	if snap.RunID != runID {
		t.Fatalf("unexpected run id %q", snap.RunID)
	}
	if snap.LastOutcome == nil || snap.LastOutcome.Kind != task.OutcomeSuccess {
		t.Fatalf("unexpected outcome: %+v", snap.LastOutcome)
	}
	if snap.Processed != 2 {
		t.Fatalf("expected 2 processed, got %d", snap.Processed)
	}

	ctx := context.Background()
	pathRow, err := h.store.PathByKey(ctx, keyA)
	if err != nil {
		t.Fatalf("PathByKey: %v", err)
	}
	game, err := h.store.GameForPath(ctx, pathRow.ID)
	if err != nil {
		t.Fatalf("GameForPath: %v", err)
	}
	if game == nil || game.Name != "Hades" {
		t.Fatalf("unexpected game: %+v", game)
	}
	if game.Description != "fetched description" {
		t.Fatalf("expected fetched details on game row, got %q", game.Description)
	}
	records, err := h.store.ProviderRecords(ctx, game.ID)
	if err != nil {
		t.Fatalf("ProviderRecords: %v", err)
	}
	if len(records) != 1 || records[0].Provider != "giantbomb" {
		t.Fatalf("unexpected provider records: %+v", records)
	}
	if records[0].SiteURL == "" {
		t.Fatal("expected site url from fetch")
	}

	results, err := h.store.ResultsForRun(ctx, runID)
	if err != nil {
		t.Fatalf("ResultsForRun: %v", err)
	}
	outcomes := make(map[string]library.SyncOutcome, len(results))
	for _, r := range results {
		outcomes[r.Dir] = r.Outcome
	}
	if outcomes["/games/hades"] != library.OutcomeMatched {
		t.Fatalf("expected matched, got %q", outcomes["/games/hades"])
	}
	if outcomes["/games/unknown"] != library.OutcomeSkipped {
		t.Fatalf("expected skipped, got %q", outcomes["/games/unknown"])
	}

	seen := map[events.Type]bool{}
	waitFor(t, "sync finished event", func() bool {
		for {
			select {
			case event := <-eventsCh:
				seen[event.Type] = true
				if event.Type == events.TypeSyncFinished {
					return true
				}
			default:
				return false
			}
		}
	})
	for _, want := range []events.Type{events.TypeSyncRequested, events.TypeSyncStarted, events.TypePathFinished} {
		if !seen[want] {
			t.Fatalf("missing %s event, saw %v", want, seen)
		}
	}
}

func TestExcludeMarksPathAndRemovesIt(t *testing.T) {
	h := newServiceHarness(t, resultProvider(provider.GiantBomb, "Something"))

	key := library.Key{Library: "PC", Dir: "/games/not-a-game"}
	testsupport.NewPath(t, h.store, key.Library, key.Dir)

	runID, err := h.service.Start([]sync.PathRequest{
		{Path: library.Path{Library: key.Library, Dir: key.Dir}},
	}, sync.RunOptions{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	submitWhenActive(t, h.service, key, provider.GiantBomb, search.Exclude{})
	waitFor(t, "run to finish", func() bool {
		return !h.service.Snapshot().Active
	})

	ctx := context.Background()
	excluded, err := h.store.IsExcluded(ctx, key)
	if err != nil {
		t.Fatalf("IsExcluded: %v", err)
	}
	if !excluded {
		t.Fatal("expected path marked excluded")
	}
	if _, err := h.store.PathByKey(ctx, key); err == nil {
		t.Fatal("expected excluded path removed from library")
	}

	results, err := h.store.ResultsForRun(ctx, runID)
	if err != nil {
		t.Fatalf("ResultsForRun: %v", err)
	}
	if len(results) != 1 || results[0].Outcome != library.OutcomeExcluded {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestCancelStopsRunAndMarksRemainingPaths(t *testing.T) {
	h := newServiceHarness(t, resultProvider(provider.GiantBomb, "Something"))

	if _, err := h.service.Start([]sync.PathRequest{
		{Path: library.Path{Library: "PC", Dir: "/games/a"}},
		{Path: library.Path{Library: "PC", Dir: "/games/b"}},
	}, sync.RunOptions{}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, "first path to await a choice", func() bool {
		snap := h.service.Snapshot()
		return snap.CurrentPath != nil && len(snap.Paths) == 2 &&
			len(snap.Paths[0].History[provider.GiantBomb]) > 0
	})

	if !h.service.Cancel() {
		t.Fatal("expected cancel to take effect on a running sync")
	}
	waitFor(t, "run to finish", func() bool {
		return !h.service.Snapshot().Active
	})

	snap := h.service.Snapshot()
	if snap.LastOutcome == nil || snap.LastOutcome.Kind != task.OutcomeCancelled {
		t.Fatalf("unexpected outcome: %+v", snap.LastOutcome)
	}
	for _, path := range snap.Paths {
		if path.Status != search.StatusCancelled {
			t.Fatalf("expected path %s cancelled, got %s", path.Path.Dir, path.Status)
		}
	}

	if h.service.Cancel() {
		t.Fatal("expected cancel of an idle service to report false")
	}
}

func TestCancelAbortsInFlightProviderSearch(t *testing.T) {
	searching := make(chan struct{})
	stub := &testsupport.StubProvider{
		Provider: provider.GiantBomb,
		SearchFunc: func(ctx context.Context, q provider.SearchQuery) (provider.SearchResponse, error) {
			close(searching)
			<-ctx.Done()
			return provider.SearchResponse{}, ctx.Err()
		},
	}
	h := newServiceHarness(t, stub)

	if _, err := h.service.Start([]sync.PathRequest{
		{Path: library.Path{Library: "PC", Dir: "/games/a"}},
	}, sync.RunOptions{}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-searching:
	case <-time.After(waitTimeout):
		t.Fatal("provider search never started")
	}

	// The driver is blocked inside the provider call; Cancel must still
	// reach the run context and abort it.
	done := make(chan bool, 1)
	go func() { done <- h.service.Cancel() }()
	select {
	case cancelled := <-done:
		if !cancelled {
			t.Fatal("expected cancel to take effect on a running sync")
		}
	case <-time.After(waitTimeout):
		t.Fatal("Cancel blocked behind the in-flight provider call")
	}

	waitFor(t, "run to finish", func() bool {
		return !h.service.Snapshot().Active
	})
	snap := h.service.Snapshot()
	if snap.LastOutcome == nil || snap.LastOutcome.Kind != task.OutcomeCancelled {
		t.Fatalf("unexpected outcome: %+v", snap.LastOutcome)
	}
}

func TestPresetRecordsResolveWithoutInteraction(t *testing.T) {
	h := newServiceHarness(t, resultProvider(provider.GiantBomb, "Celeste"))

	data, err := json.Marshal(provider.GameData{Name: "Celeste", Description: "stored"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	runID, err := h.service.Start([]sync.PathRequest{{
		Path:         library.Path{Library: "PC", Dir: "/games/celeste"},
		ExistingGame: &library.Game{Name: "Celeste"},
		ProviderRecords: []library.ProviderRecord{{
			Provider:       "giantbomb",
			ProviderGameID: "gb-celeste",
			SiteURL:        "https://example.test/celeste",
			DataJSON:       string(data),
		}},
	}}, sync.RunOptions{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, "run to finish", func() bool {
		return !h.service.Snapshot().Active
	})

	ctx := context.Background()
	results, err := h.store.ResultsForRun(ctx, runID)
	if err != nil {
		t.Fatalf("ResultsForRun: %v", err)
	}
	if len(results) != 1 || results[0].Outcome != library.OutcomeMatched {
		t.Fatalf("unexpected results: %+v", results)
	}

	pathRow, err := h.store.PathByKey(ctx, library.Key{Library: "PC", Dir: "/games/celeste"})
	if err != nil {
		t.Fatalf("PathByKey: %v", err)
	}
	game, err := h.store.GameForPath(ctx, pathRow.ID)
	if err != nil {
		t.Fatalf("GameForPath: %v", err)
	}
	if game == nil || game.Description != "stored" {
		t.Fatalf("expected stored provider data to win, got %+v", game)
	}
}

func TestSmartChooseRunsUnattended(t *testing.T) {
	h := newServiceHarness(t, resultProvider(provider.GiantBomb, "Hades"))

	enabled := true
	runID, err := h.service.Start([]sync.PathRequest{
		{Path: library.Path{Library: "PC", Dir: "/games/Hades"}},
	}, sync.RunOptions{AllowSmartChoose: &enabled})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, "run to finish", func() bool {
		return !h.service.Snapshot().Active
	})

	results, err := h.store.ResultsForRun(context.Background(), runID)
	if err != nil {
		t.Fatalf("ResultsForRun: %v", err)
	}
	if len(results) != 1 || results[0].Outcome != library.OutcomeMatched {
		t.Fatalf("expected unattended match, got %+v", results)
	}
}

func TestStartWhileRunningFails(t *testing.T) {
	h := newServiceHarness(t, resultProvider(provider.GiantBomb, "Something"))

	requests := []sync.PathRequest{{Path: library.Path{Library: "PC", Dir: "/games/a"}}}
	if _, err := h.service.Start(requests, sync.RunOptions{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := h.service.Start(requests, sync.RunOptions{}); !errors.Is(err, task.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	h.service.Cancel()
	waitFor(t, "run to finish", func() bool {
		return !h.service.Snapshot().Active
	})
}
