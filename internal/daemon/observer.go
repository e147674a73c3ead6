package daemon

import (
	"log/slog"
	"sync"

	"ludex/internal/events"
	"ludex/internal/logging"
)

// eventLogger mirrors every bus event into the daemon log so sync and task
// lifecycle stay visible without a connected client.
type eventLogger struct {
	bus    *events.Bus
	logger *slog.Logger

	once        sync.Once
	unsubscribe func()
	done        chan struct{}
}

func newEventLogger(bus *events.Bus, logger *slog.Logger) *eventLogger {
	return &eventLogger{
		bus:    bus,
		logger: logging.WithComponent(logger, "events"),
		done:   make(chan struct{}),
	}
}

func (l *eventLogger) Start() {
	ch, unsubscribe := l.bus.Subscribe()
	l.unsubscribe = unsubscribe
	go func() {
		defer close(l.done)
		for event := range ch {
			l.log(event)
		}
	}()
}

func (l *eventLogger) Close() {
	l.once.Do(func() {
		if l.unsubscribe != nil {
			l.unsubscribe()
			<-l.done
		}
	})
}

func (l *eventLogger) log(event events.Event) {
	attrs := make([]any, 0, 2+2*len(event.Payload))
	attrs = append(attrs, logging.String(logging.FieldEventType, string(event.Type)))
	for key, value := range event.Payload {
		attrs = append(attrs, logging.String(key, value))
	}
	if event.Type == events.TypeError {
		l.logger.Warn("event", attrs...)
		return
	}
	l.logger.Info("event", attrs...)
}
