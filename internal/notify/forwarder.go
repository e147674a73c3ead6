package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ludex/internal/events"
	"ludex/internal/library"
	"ludex/internal/logging"
)

const publishTimeout = 15 * time.Second

// Forwarder bridges the in-process event bus to the notification service.
// Delivery failures are logged and never propagate to event producers.
type Forwarder struct {
	service Service
	bus     *events.Bus
	logger  *slog.Logger

	once        sync.Once
	unsubscribe func()
	done        chan struct{}
}

// NewForwarder wires a forwarder over an event bus.
func NewForwarder(service Service, bus *events.Bus, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Forwarder{
		service: service,
		bus:     bus,
		logger:  logging.WithComponent(logger, "notify"),
		done:    make(chan struct{}),
	}
}

// Start subscribes to the bus and forwards events until Close.
func (f *Forwarder) Start() {
	ch, unsubscribe := f.bus.Subscribe()
	f.unsubscribe = unsubscribe
	go func() {
		defer close(f.done)
		for event := range ch {
			f.forward(event)
		}
	}()
}

// Close stops forwarding and waits for the worker to drain.
func (f *Forwarder) Close() {
	f.once.Do(func() {
		if f.unsubscribe != nil {
			f.unsubscribe()
			<-f.done
		}
	})
}

func (f *Forwarder) forward(event events.Event) {
	notifyEvent, payload, ok := translate(event)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := f.service.Publish(ctx, notifyEvent, payload); err != nil {
		f.logger.Warn("notification delivery failed",
			logging.String(logging.FieldEventType, string(event.Type)),
			logging.Error(err))
	}
}

// translate maps bus events onto notification events. Events without a
// notification-worthy translation are dropped.
func translate(event events.Event) (Event, Payload, bool) {
	switch event.Type {
	case events.TypeSyncStarted:
		return EventSyncStarted, Payload(event.Payload), true
	case events.TypeSyncFinished:
		return EventSyncCompleted, Payload(event.Payload), true
	case events.TypePathFinished:
		switch library.SyncOutcome(event.Payload["outcome"]) {
		case library.OutcomeMatched:
			return EventGameMatched, Payload{
				"name": event.Payload["detail"],
				"path": event.Payload["path"],
			}, true
		case library.OutcomeExcluded:
			return EventPathExcluded, Payload{"path": event.Payload["path"]}, true
		}
	case events.TypeError:
		return EventError, Payload{
			"context": event.Payload["provider"],
			"error":   event.Payload["error"],
		}, true
	}
	return "", nil, false
}
