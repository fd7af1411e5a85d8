package network

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/staminalab/stamina-server/internal/engine"
	"github.com/staminalab/stamina-server/internal/events"
	"github.com/staminalab/stamina-server/internal/platform/logger"
	"github.com/staminalab/stamina-server/internal/platform/metrics"
	"github.com/staminalab/stamina-server/internal/platform/optimization"
)

// Hub maintains the set of active clients and broadcasts state frames and
// simulation events to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.Mutex
	logger     *logger.Logger
	runner     *engine.Runner
	tuning     *optimization.Config
}

// NewHub initializes a new WebSocket Hub.
func NewHub(log *logger.Logger, runner *engine.Runner, tuning *optimization.Config) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, tuning.BroadcastChannelBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     log,
		runner:     runner,
		tuning:     tuning,
	}
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket Hub shutting down.")
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.Get().RecordWSConnection(1)
			h.logger.Info("WebSocket client connected: %s", client.id)
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.Get().RecordWSConnection(-1)
				h.logger.Info("WebSocket client disconnected: %s", client.id)
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
					metrics.Get().RecordWSMessage(false)
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// PushState implements engine.StateSink. A full broadcast queue drops the
// frame rather than stalling the step loop; the next frame supersedes it
// anyway.
func (h *Hub) PushState(frame engine.StateFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("Failed to serialize state frame: %v", err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		metrics.Get().RecordWSError()
	}
}

// BroadcastEvent serializes a SimEvent and sends it to all connected clients.
func (h *Hub) BroadcastEvent(event events.SimEvent) {
	payload, err := json.Marshal(struct {
		Type string          `json:"type"`
		Data events.SimEvent `json:"data"`
	}{Type: "event", Data: event})
	if err != nil {
		h.logger.Error("Failed to serialize SimEvent for WebSocket broadcast: %v", err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		metrics.Get().RecordWSError()
	}
}

// StartEventPoller spawns a goroutine to poll the EventLog and push new
// discrete events to the Hub. This lets the Hub run independently from the
// Runner's frame loop while picking up the same events.
func (h *Hub) StartEventPoller(ctx context.Context, eventLog *events.EventLog) {
	go func() {
		pollInterval := time.NewTicker(200 * time.Millisecond)
		defer pollInterval.Stop()

		cursor := 0

		for {
			select {
			case <-ctx.Done():
				return
			case <-pollInterval.C:
				batch := eventLog.Since(cursor)
				for _, event := range batch {
					// Periodic snapshots are persistence-only; clients
					// already receive state at frame rate.
					if event.Type == events.EventTypeSnapshot {
						continue
					}
					h.BroadcastEvent(event)
				}
				cursor += len(batch)
			}
		}
	}()
}
