// Package network - control.go
// REST bridge for the discrete command surface: clients that do not hold a
// WebSocket (scripts, curl, dashboards) can still reset the meters, edit
// parameters, and read the current state.
package network

import (
	"encoding/json"
	"net/http"

	"github.com/staminalab/stamina-server/internal/engine"
	"github.com/staminalab/stamina-server/internal/platform/logger"
	"github.com/staminalab/stamina-server/internal/sim"
)

// ControlBridge handles REST command requests.
type ControlBridge struct {
	runner *engine.Runner
	sim    *sim.Engine
	cfg    *sim.Config
	logger *logger.Logger
}

// NewControlBridge creates a new REST command handler.
func NewControlBridge(runner *engine.Runner, simEngine *sim.Engine, cfg *sim.Config, log *logger.Logger) *ControlBridge {
	return &ControlBridge{
		runner: runner,
		sim:    simEngine,
		cfg:    cfg,
		logger: log,
	}
}

// ParamRequest is the payload for a parameter edit.
type ParamRequest struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// HandleReset restores both meters to cap.
// POST /api/reset
func (cb *ControlBridge) HandleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		cb.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cb.runner.Reset("REST")
	cb.writeJSON(w, map[string]string{"status": "ok"})
}

// HandleParam edits a rate parameter.
// POST /api/param  {"name": "...", "value": N}
func (cb *ControlBridge) HandleParam(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		cb.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ParamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cb.jsonError(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	if err := cb.runner.SetParam("REST", req.Name, req.Value); err != nil {
		cb.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	cb.writeJSON(w, map[string]string{"status": "ok"})
}

// StateResponse is the API response for the current simulation state.
type StateResponse struct {
	Primary   float64               `json:"primary"`
	Secondary float64               `json:"secondary"`
	Ratio     float64               `json:"ratio"`
	Paused    bool                  `json:"paused"`
	Frame     int64                 `json:"frame"`
	Policy    string                `json:"policy"`
	Params    map[string]float64    `json:"params"`
	Bounds    map[string]sim.Bounds `json:"bounds"`
}

// HandleState returns the current meter state and configuration.
// GET /api/state
func (cb *ControlBridge) HandleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		cb.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	state := cb.sim.Snapshot()
	cb.writeJSON(w, StateResponse{
		Primary:   state.Primary,
		Secondary: state.Secondary,
		Ratio:     state.FillRatio(),
		Paused:    cb.runner.Paused(),
		Frame:     cb.runner.Frames(),
		Policy:    string(cb.cfg.Policy()),
		Params:    cb.cfg.Snapshot(),
		Bounds:    sim.ParamBounds,
	})
}

func (cb *ControlBridge) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		cb.logger.Error("Failed to encode response: %v", err)
	}
}

func (cb *ControlBridge) jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
