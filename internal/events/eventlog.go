// Package events provides the append-only log of simulation events.
// Discrete happenings (input edges, parameter edits, resets, periodic
// snapshots) are recorded here; per-frame state is transport-only and is
// never logged.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a simulation event.
type EventType string

const (
	EventTypeSessionStart EventType = "SESSION_START"
	EventTypeSnapshot     EventType = "SNAPSHOT"
	EventTypeInputEdge    EventType = "INPUT_EDGE"
	EventTypeParamChange  EventType = "PARAM_CHANGE"
	EventTypePolicyChange EventType = "POLICY_CHANGE"
	EventTypeReset        EventType = "RESET"
	EventTypePause        EventType = "PAUSE"
	EventTypeResume       EventType = "RESUME"
)

// InputEdgePayload records a trigger press or release edge.
type InputEdgePayload struct {
	Active bool `json:"active"`
}

// ParamChangePayload records a parameter edit for audit.
type ParamChangePayload struct {
	Name     string  `json:"name"`
	Previous float64 `json:"previous"`
	Value    float64 `json:"value"`
}

// SnapshotPayload records the meter state at the time of a periodic snapshot.
type SnapshotPayload struct {
	Primary   float64 `json:"primary"`
	Secondary float64 `json:"secondary"`
	Frame     int64   `json:"frame"`
}

// SimEvent represents an immutable record of something that happened to the
// simulation.
type SimEvent struct {
	ID        string      `json:"id"`
	SessionID string      `json:"session_id"`
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	ActorID   string      `json:"actor_id"` // client ID or "SYSTEM"
	Payload   interface{} `json:"payload"`  // event-specific data
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event SimEvent) error
}

// EventLog is the in-memory append-only log, optionally write-through to a
// persister. Events are immutable once appended.
type EventLog struct {
	mu        sync.RWMutex
	events    []SimEvent
	persister EventPersister
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(persister EventPersister) *EventLog {
	return &EventLog{
		events:    make([]SimEvent, 0),
		persister: persister,
	}
}

// Append adds a new event to the log.
func (el *EventLog) Append(event SimEvent) {
	el.mu.Lock()
	el.events = append(el.events, event)
	el.mu.Unlock()

	if el.persister != nil {
		// Write through off the caller's goroutine; the step loop must
		// never block on storage.
		go func(e SimEvent) {
			_ = el.persister.Append(e)
		}(event)
	}
}

// Len returns the number of events appended so far.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return len(el.events)
}

// Since returns a copy of the events appended at or after index. Pollers
// track their own index and call this instead of re-reading the whole log.
func (el *EventLog) Since(index int) []SimEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	if index < 0 {
		index = 0
	}
	if index >= len(el.events) {
		return nil
	}
	out := make([]SimEvent, len(el.events)-index)
	copy(out, el.events[index:])
	return out
}

// GetByType returns all events of a given type.
func (el *EventLog) GetByType(t EventType) []SimEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []SimEvent
	for _, e := range el.events {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

// Replay returns the full history of events.
func (el *EventLog) Replay() []SimEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	out := make([]SimEvent, len(el.events))
	copy(out, el.events)
	return out
}

// NewEventID creates a unique event identifier.
func NewEventID() string {
	return uuid.NewString()
}
