package events

import "time"

// Type identifies an event kind.
type Type string

const (
	TypeTaskStarted   Type = "task_started"
	TypeTaskFinished  Type = "task_finished"
	TypeSyncRequested Type = "sync_requested"
	TypeSyncStarted   Type = "sync_started"
	TypeSyncFinished  Type = "sync_finished"
	TypePathFinished  Type = "path_finished"
	TypeError         Type = "error"
)

// Event is one lifecycle notification. Payload keys are event-specific and
// documented on the emitting component.
type Event struct {
	Type    Type
	At      time.Time
	Payload map[string]string
}

// New builds an event stamped with the current time.
func New(eventType Type, payload map[string]string) Event {
	return Event{Type: eventType, At: time.Now().UTC(), Payload: payload}
}
