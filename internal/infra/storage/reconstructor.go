// Package storage - reconstructor.go
// Rebuilds session meter state from the event log: state = f(events).
// Used when a session row is missing or suspect, and for auditing.
package storage

import (
	"context"
	"fmt"
)

// Reconstructor rebuilds session state from the persisted event ledger.
type Reconstructor struct {
	eventRepo EventRepository
}

// NewReconstructor creates a new state reconstructor.
func NewReconstructor(eventRepo EventRepository) *Reconstructor {
	return &Reconstructor{eventRepo: eventRepo}
}

// RebuiltState holds the reconstructed meter state for a session.
type RebuiltState struct {
	SessionID string
	Primary   float64
	Secondary float64
	Frame     int64
}

// RebuildSessionState replays a session's ledger and returns the meter state
// implied by the last snapshot or reset. A reset after the last snapshot wins
// because it restores both meters to cap.
func (r *Reconstructor) RebuildSessionState(ctx context.Context, sessionID string, capacity float64) (*RebuiltState, error) {
	records, err := r.eventRepo.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events for session: %w", err)
	}

	state := &RebuiltState{
		SessionID: sessionID,
		Primary:   capacity,
		Secondary: capacity,
	}

	for _, rec := range records {
		switch rec.EventType {
		case "SNAPSHOT":
			if p, ok := rec.Payload["primary"].(float64); ok {
				state.Primary = p
			}
			if s, ok := rec.Payload["secondary"].(float64); ok {
				state.Secondary = s
			}
			if f, ok := rec.Payload["frame"].(float64); ok {
				state.Frame = int64(f)
			}
		case "RESET":
			state.Primary = capacity
			state.Secondary = capacity
		}
	}

	return state, nil
}
