// Package network - replay.go
// JSON export of the session's event history, for parameter-tuning review
// and debugging.
package network

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/staminalab/stamina-server/internal/events"
	"github.com/staminalab/stamina-server/internal/platform/logger"
)

// ReplayHandler provides the event history API.
type ReplayHandler struct {
	eventLog *events.EventLog
	logger   *logger.Logger
}

// NewReplayHandler creates a new replay handler.
func NewReplayHandler(el *events.EventLog, log *logger.Logger) *ReplayHandler {
	return &ReplayHandler{
		eventLog: el,
		logger:   log,
	}
}

// ReplayResponse is the API response for the event history.
type ReplayResponse struct {
	TotalEvents int               `json:"total_events"`
	FilteredBy  string            `json:"filtered_by,omitempty"`
	GeneratedAt string            `json:"generated_at"`
	Events      []events.SimEvent `json:"events"`
}

// HandleReplay returns the recorded event history.
// GET /api/replay?type=PARAM_CHANGE&limit=N
func (rh *ReplayHandler) HandleReplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rh.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	typeFilter := r.URL.Query().Get("type")

	var history []events.SimEvent
	if typeFilter != "" {
		history = rh.eventLog.GetByType(events.EventType(typeFilter))
	} else {
		history = rh.eventLog.Replay()
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit < len(history) {
			history = history[len(history)-limit:]
		}
	}

	resp := ReplayResponse{
		TotalEvents: len(history),
		FilteredBy:  typeFilter,
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      history,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		rh.logger.Error("Failed to encode replay response: %v", err)
	}
}

func (rh *ReplayHandler) jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
