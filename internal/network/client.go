package network

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/staminalab/stamina-server/internal/platform/metrics"
	"github.com/staminalab/stamina-server/internal/sim"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// ClientCommand represents an incoming command from a connected UI.
//
// Key handling contract: the UI sends input_down on a real key press and
// input_up on release. Key-repeat filtering is best done upstream, but the
// trigger signal is edge-idempotent so leaked repeats are harmless.
type ClientCommand struct {
	Type   string  `json:"type"`             // "input_down", "input_up", "set_param", "set_policy", "reset", "pause", "resume"
	Name   string  `json:"name,omitempty"`   // parameter name for set_param
	Value  float64 `json:"value,omitempty"`  // parameter value for set_param
	Policy string  `json:"policy,omitempty"` // policy name for set_policy
}

// Client represents an active WebSocket connection.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// Sliding one-second window for parameter edit rate limiting.
	editWindowStart time.Time
	editsInWindow   int
}

// NewClient creates a new WebSocket client.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   "C-" + uuid.NewString()[:8],
		hub:  hub,
		conn: conn,
		send: make(chan []byte, hub.tuning.ClientSendBuffer),
	}
}

// Register adds the client to the hub.
func (c *Client) Register() {
	c.hub.register <- c
}

// ReadPump pumps commands from the websocket connection to the runner.
func (c *Client) ReadPump() {
	defer func() {
		// A dropped connection can no longer send input_up; release the
		// trigger so the meter does not drain forever.
		c.hub.runner.InputUp(c.id)
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("WebSocket read error: %v", err)
				metrics.Get().RecordWSError()
			}
			break
		}
		metrics.Get().RecordWSMessage(true)

		var cmd ClientCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.hub.logger.Error("Failed to parse ClientCommand: %v", err)
			continue
		}

		c.handleCommand(cmd)
	}
}

func (c *Client) handleCommand(cmd ClientCommand) {
	runner := c.hub.runner

	switch cmd.Type {
	case "input_down":
		runner.InputDown(c.id)
	case "input_up":
		runner.InputUp(c.id)
	case "set_param":
		if !c.allowParamEdit() {
			c.hub.logger.Warn("Parameter edit rate limit exceeded for %s", c.id)
			metrics.Get().RecordCommand(false)
			return
		}
		if err := runner.SetParam(c.id, cmd.Name, cmd.Value); err != nil {
			c.hub.logger.Warn("Rejected set_param from %s: %v", c.id, err)
		}
	case "set_policy":
		if err := runner.SetPolicy(c.id, sim.Policy(cmd.Policy)); err != nil {
			c.hub.logger.Warn("Rejected set_policy from %s: %v", c.id, err)
		}
	case "reset":
		runner.Reset(c.id)
	case "pause":
		runner.Pause(c.id)
	case "resume":
		runner.Resume(c.id)
	default:
		c.hub.logger.Warn("Unknown ClientCommand type: %s", cmd.Type)
	}
}

// allowParamEdit enforces the per-client edit budget over a one-second
// window. Input edges and reset are never rate limited.
func (c *Client) allowParamEdit() bool {
	now := time.Now()
	if now.Sub(c.editWindowStart) >= time.Second {
		c.editWindowStart = now
		c.editsInWindow = 0
	}
	c.editsInWindow++
	return c.editsInWindow <= c.hub.tuning.MaxParamEditsPerSecond
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
