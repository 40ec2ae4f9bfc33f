package history

import (
	"context"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStart        EventType = "start"
	EventLaunchFailed EventType = "launch_failed"
	EventStop         EventType = "stop"
	EventForcedStop   EventType = "forced_stop"
	EventStaleCleared EventType = "stale_cleared"
)

// Event is one lifecycle transition of the managed process.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Process    string    `json:"process"`
	PID        int       `json:"pid"`
	LogPath    string    `json:"log_path,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// Sink is a destination for history events (analytics/statistics systems).
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Reader is implemented by sinks that can return what they stored.
type Reader interface {
	// Recent returns at most n events, newest first.
	Recent(ctx context.Context, n int) ([]Event, error)
}

// Nop discards events. It is used when no history DSN is configured.
type Nop struct{}

func (Nop) Send(context.Context, Event) error { return nil }
