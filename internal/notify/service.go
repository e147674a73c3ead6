package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ludex/internal/config"
)

const userAgent = "Ludex-Go/0.1.0"

// Event enumerates the notification-worthy moments of a sync run.
type Event string

const (
	EventSyncStarted   Event = "sync_started"
	EventSyncCompleted Event = "sync_completed"
	EventGameMatched   Event = "game_matched"
	EventPathExcluded  Event = "path_excluded"
	EventError         Event = "error"
	EventTest          Event = "test"
)

// Payload carries the variable parts of a notification message.
type Payload map[string]string

// Service publishes notifications for sync events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notify.Topic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notify.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		syncEvents: cfg.Notify.SyncEvents,
		errors:     cfg.Notify.Errors,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	syncEvents bool
	errors     bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

// format maps an event onto a concrete message, or reports that the event is
// suppressed by configuration.
func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventSyncStarted:
		if !n.syncEvents {
			return message{}, false
		}
		return message{
			title: "Ludex - Sync Started",
			body:  fmt.Sprintf("Started syncing %s paths", payload.get("paths", "0")),
			tags:  []string{"ludex", "sync", "started"},
		}, true

	case EventSyncCompleted:
		if !n.syncEvents {
			return message{}, false
		}
		body := fmt.Sprintf("Sync complete: %s of %s paths processed in %s",
			payload.get("processed", "0"), payload.get("total", "0"), payload.get("elapsed", "0s"))
		title := "Ludex - Sync Complete"
		if outcome := payload["outcome"]; outcome != "" && outcome != "success" {
			title = fmt.Sprintf("Ludex - Sync Complete (%s)", outcome)
		}
		return message{
			title:    title,
			body:     body,
			tags:     []string{"ludex", "sync", "completed"},
			priority: "high",
		}, true

	case EventGameMatched:
		if !n.syncEvents {
			return message{}, false
		}
		return message{
			title: "Ludex - Game Matched",
			body:  fmt.Sprintf("Matched: %s", payload.get("name", "unknown")),
			tags:  []string{"ludex", "match"},
		}, true

	case EventPathExcluded:
		if !n.syncEvents {
			return message{}, false
		}
		return message{
			title: "Ludex - Path Excluded",
			body:  fmt.Sprintf("Excluded from library: %s", payload.get("path", "unknown")),
			tags:  []string{"ludex", "exclude"},
		}, true

	case EventError:
		if !n.errors {
			return message{}, false
		}
		var builder strings.Builder
		builder.WriteString("Error")
		if label := strings.TrimSpace(payload["context"]); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if detail := strings.TrimSpace(payload["error"]); detail != "" {
			builder.WriteString(detail)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "Ludex - Error",
			body:     builder.String(),
			tags:     []string{"ludex", "error", "alert"},
			priority: "high",
		}, true

	case EventTest:
		return message{
			title:    "Ludex - Test",
			body:     "Notification system test",
			tags:     []string{"ludex", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (p Payload) get(key, fallback string) string {
	if value := strings.TrimSpace(p[key]); value != "" {
		return value
	}
	return fallback
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
