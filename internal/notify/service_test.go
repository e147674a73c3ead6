package notify_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ludex/internal/config"
	"ludex/internal/events"
	"ludex/internal/notify"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notify.Topic = ""
	svc := notify.NewService(&cfg)
	if err := svc.Publish(context.Background(), notify.EventGameMatched, notify.Payload{"name": "Hades"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notify.Event
		payload        notify.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "sync started",
			event:         notify.EventSyncStarted,
			payload:       notify.Payload{"paths": "12"},
			expectTitle:   "Ludex - Sync Started",
			expectMessage: "Started syncing 12 paths",
			expectTags:    "ludex,sync,started",
		},
		{
			name:  "sync completed",
			event: notify.EventSyncCompleted,
			payload: notify.Payload{
				"outcome":   "success",
				"processed": "12",
				"total":     "12",
				"elapsed":   "41s",
			},
			expectTitle:    "Ludex - Sync Complete",
			expectMessage:  "Sync complete: 12 of 12 paths processed in 41s",
			expectTags:     "ludex,sync,completed",
			expectPriority: "high",
		},
		{
			name:  "sync cancelled",
			event: notify.EventSyncCompleted,
			payload: notify.Payload{
				"outcome":   "cancelled",
				"processed": "3",
				"total":     "12",
				"elapsed":   "10s",
			},
			expectTitle:    "Ludex - Sync Complete (cancelled)",
			expectMessage:  "Sync complete: 3 of 12 paths processed in 10s",
			expectTags:     "ludex,sync,completed",
			expectPriority: "high",
		},
		{
			name:          "game matched",
			event:         notify.EventGameMatched,
			payload:       notify.Payload{"name": "Celeste"},
			expectTitle:   "Ludex - Game Matched",
			expectMessage: "Matched: Celeste",
			expectTags:    "ludex,match",
		},
		{
			name:          "path excluded",
			event:         notify.EventPathExcluded,
			payload:       notify.Payload{"path": "/games/Soundtracks"},
			expectTitle:   "Ludex - Path Excluded",
			expectMessage: "Excluded from library: /games/Soundtracks",
			expectTags:    "ludex,exclude",
		},
		{
			name:           "error",
			event:          notify.EventError,
			payload:        notify.Payload{"context": "giantbomb", "error": "rate limited"},
			expectTitle:    "Ludex - Error",
			expectMessage:  "Error with giantbomb: rate limited",
			expectTags:     "ludex,error,alert",
			expectPriority: "high",
		},
		{
			name:           "test",
			event:          notify.EventTest,
			payload:        nil,
			expectTitle:    "Ludex - Test",
			expectMessage:  "Notification system test",
			expectTags:     "ludex,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notify.Topic = server.URL
			cfg.Notify.RequestTimeout = 5
			cfg.Notify.SyncEvents = true
			cfg.Notify.Errors = true

			svc := notify.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsSuppression(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notify.Topic = server.URL
	cfg.Notify.SyncEvents = false
	cfg.Notify.Errors = false

	svc := notify.NewService(&cfg)
	suppressed := []notify.Event{
		notify.EventSyncStarted,
		notify.EventSyncCompleted,
		notify.EventGameMatched,
		notify.EventPathExcluded,
		notify.EventError,
	}
	for _, event := range suppressed {
		if err := svc.Publish(context.Background(), event, notify.Payload{"value": "ignored"}); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", event, err)
		}
	}
}

type recordingService struct {
	ch chan notify.Event
}

func (r *recordingService) Publish(_ context.Context, event notify.Event, _ notify.Payload) error {
	r.ch <- event
	return nil
}

func TestForwarderTranslatesBusEvents(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	rec := &recordingService{ch: make(chan notify.Event, 8)}
	forwarder := notify.NewForwarder(rec, bus, nil)
	forwarder.Start()
	defer forwarder.Close()

	bus.Emit(events.New(events.TypeSyncStarted, map[string]string{"paths": "2"}))
	bus.Emit(events.New(events.TypePathFinished, map[string]string{
		"outcome": "matched", "detail": "Hades", "path": "/games/hades",
	}))
	bus.Emit(events.New(events.TypePathFinished, map[string]string{
		"outcome": "skipped", "path": "/games/unknown",
	}))
	bus.Emit(events.New(events.TypeSyncFinished, map[string]string{"outcome": "success"}))

	want := []notify.Event{notify.EventSyncStarted, notify.EventGameMatched, notify.EventSyncCompleted}
	for _, expected := range want {
		select {
		case got := <-rec.ch:
			if got != expected {
				t.Fatalf("expected %s, got %s", expected, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", expected)
		}
	}
	select {
	case extra := <-rec.ch:
		t.Fatalf("unexpected extra notification %s", extra)
	case <-time.After(50 * time.Millisecond):
	}
}
