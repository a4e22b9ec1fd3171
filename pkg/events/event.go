// Package events provides a small event stream for planning runs: the
// lexicographic driver appends phase lifecycle events keyed by a run
// ID, and consumers (the CLI's verbose mode, tests) read them back.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is one recorded occurrence within a stream.
type Event interface {
	Type() string
	StreamID() string
	Data() interface{}
	Timestamp() time.Time
	Version() int
}

// Store persists events per stream.
type Store interface {
	AppendEvent(streamID string, event Event) error
	ReadEvents(streamID string) ([]Event, error)
}

// BaseEvent is the concrete Event carried by every store.
type BaseEvent struct {
	EventType    string
	Stream       string
	EventData    interface{}
	EventTime    time.Time
	EventVersion int
}

func (e BaseEvent) Type() string         { return e.EventType }
func (e BaseEvent) StreamID() string     { return e.Stream }
func (e BaseEvent) Data() interface{}    { return e.EventData }
func (e BaseEvent) Timestamp() time.Time { return e.EventTime }
func (e BaseEvent) Version() int         { return e.EventVersion }

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType, streamID string, data interface{}) Event {
	return BaseEvent{
		EventType: eventType,
		Stream:    streamID,
		EventData: data,
		EventTime: time.Now(),
	}
}

// NewRunID returns a fresh stream identifier for one planning run.
func NewRunID() string {
	return uuid.NewString()
}
