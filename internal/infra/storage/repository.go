// Package storage provides the persistence layer for the simulation server.
// This package implements the repository pattern to keep the simulation core
// pure.
package storage

import (
	"context"
	"time"
)

// SimEventRecord mirrors the domain event structure for persistence.
// The sim package should NOT import this; the event log persists through an
// interface.
type SimEventRecord struct {
	ID        string                 `json:"id" db:"id"`
	SessionID string                 `json:"session_id" db:"session_id"`
	Timestamp time.Time              `json:"timestamp" db:"timestamp"`
	EventType string                 `json:"event_type" db:"event_type"`
	ActorID   string                 `json:"actor_id" db:"actor_id"`
	Payload   map[string]interface{} `json:"payload" db:"payload"`
}

// EventRepository defines the interface for event persistence.
type EventRepository interface {
	// Append adds a new event to the immutable ledger.
	Append(ctx context.Context, event SimEventRecord) error

	// GetBySessionID retrieves all events for a session (for replay).
	GetBySessionID(ctx context.Context, sessionID string) ([]SimEventRecord, error)

	// GetByEventType retrieves all events of a specific type.
	GetByEventType(ctx context.Context, sessionID string, eventType string) ([]SimEventRecord, error)
}

// SessionSnapshot represents the last persisted meter state of a session.
type SessionSnapshot struct {
	SessionID   string    `json:"session_id" db:"session_id"`
	Policy      string    `json:"policy" db:"policy"`
	Primary     float64   `json:"primary" db:"primary_value"`
	Secondary   float64   `json:"secondary" db:"secondary_value"`
	FrameCount  int64     `json:"frame_count" db:"frame_count"`
	StartedAt   time.Time `json:"started_at" db:"started_at"`
	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
}

// SessionRepository defines the interface for session state snapshots.
type SessionRepository interface {
	// Upsert updates or inserts a session snapshot.
	Upsert(ctx context.Context, snapshot SessionSnapshot) error

	// GetBySessionID retrieves a specific session's snapshot.
	GetBySessionID(ctx context.Context, sessionID string) (*SessionSnapshot, error)

	// GetLatest retrieves the most recently updated session, if any.
	GetLatest(ctx context.Context) (*SessionSnapshot, error)
}
