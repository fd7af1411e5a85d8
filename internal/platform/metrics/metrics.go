// Package metrics provides observability for the simulation server: step
// latency, event persistence, and WebSocket traffic counters.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers performance metrics.
type Collector struct {
	// Step metrics
	StepCount      int64
	StepLatencySum int64 // nanoseconds
	StepLatencyMax int64
	LastStepTime   time.Time

	// Event metrics
	EventsWritten    int64
	EventWriteLatSum int64
	EventWriteLatMax int64
	EventWriteErrors int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64
	WSErrors            int64

	// Commands
	CommandsApplied  int64
	CommandsRejected int64

	// System
	StartTime time.Time
	mu        sync.RWMutex
}

// Global collector instance
var collector = &Collector{
	StartTime: time.Now(),
}

// Get returns the global collector.
func Get() *Collector {
	return collector
}

// RecordStep records a simulation step completion.
func (c *Collector) RecordStep(latency time.Duration) {
	atomic.AddInt64(&c.StepCount, 1)
	atomic.AddInt64(&c.StepLatencySum, int64(latency))

	// Update max (non-atomic but acceptable for metrics)
	if int64(latency) > atomic.LoadInt64(&c.StepLatencyMax) {
		atomic.StoreInt64(&c.StepLatencyMax, int64(latency))
	}

	c.mu.Lock()
	c.LastStepTime = time.Now()
	c.mu.Unlock()
}

// RecordEventWrite records an event write to the database.
func (c *Collector) RecordEventWrite(latency time.Duration, err error) {
	atomic.AddInt64(&c.EventsWritten, 1)
	atomic.AddInt64(&c.EventWriteLatSum, int64(latency))

	if int64(latency) > atomic.LoadInt64(&c.EventWriteLatMax) {
		atomic.StoreInt64(&c.EventWriteLatMax, int64(latency))
	}

	if err != nil {
		atomic.AddInt64(&c.EventWriteErrors, 1)
	}
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// RecordCommand records a discrete command, applied or rejected.
func (c *Collector) RecordCommand(applied bool) {
	if applied {
		atomic.AddInt64(&c.CommandsApplied, 1)
	} else {
		atomic.AddInt64(&c.CommandsRejected, 1)
	}
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stepCount := atomic.LoadInt64(&c.StepCount)
	eventsWritten := atomic.LoadInt64(&c.EventsWritten)

	var stepAvg, eventAvg float64
	if stepCount > 0 {
		stepAvg = float64(atomic.LoadInt64(&c.StepLatencySum)) / float64(stepCount) / 1e6 // ms
	}
	if eventsWritten > 0 {
		eventAvg = float64(atomic.LoadInt64(&c.EventWriteLatSum)) / float64(eventsWritten) / 1e6
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"step": map[string]interface{}{
			"count":          stepCount,
			"avg_latency_ms": stepAvg,
			"max_latency_ms": float64(atomic.LoadInt64(&c.StepLatencyMax)) / 1e6,
			"last_step":      c.LastStepTime.Format(time.RFC3339),
		},

		"events": map[string]interface{}{
			"written":          eventsWritten,
			"avg_write_lat_ms": eventAvg,
			"max_write_lat_ms": float64(atomic.LoadInt64(&c.EventWriteLatMax)) / 1e6,
			"errors":           atomic.LoadInt64(&c.EventWriteErrors),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_in":        atomic.LoadInt64(&c.WSMessagesIn),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},

		"commands": map[string]interface{}{
			"applied":  atomic.LoadInt64(&c.CommandsApplied),
			"rejected": atomic.LoadInt64(&c.CommandsRejected),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")

		snapshot := collector.Snapshot()
		json.NewEncoder(w).Encode(snapshot)
	}
}

// PrometheusHandler returns metrics in Prometheus format.
func PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		c := collector

		fmt.Fprintf(w, "# HELP stamina_step_count Total simulation steps\n")
		fmt.Fprintf(w, "# TYPE stamina_step_count counter\n")
		fmt.Fprintf(w, "stamina_step_count %d\n\n", atomic.LoadInt64(&c.StepCount))

		fmt.Fprintf(w, "# HELP stamina_step_latency_max_ms Maximum step latency\n")
		fmt.Fprintf(w, "# TYPE stamina_step_latency_max_ms gauge\n")
		fmt.Fprintf(w, "stamina_step_latency_max_ms %.2f\n\n", float64(atomic.LoadInt64(&c.StepLatencyMax))/1e6)

		fmt.Fprintf(w, "# HELP stamina_events_written Total events written\n")
		fmt.Fprintf(w, "# TYPE stamina_events_written counter\n")
		fmt.Fprintf(w, "stamina_events_written %d\n\n", atomic.LoadInt64(&c.EventsWritten))

		fmt.Fprintf(w, "# HELP stamina_event_write_errors Total event write errors\n")
		fmt.Fprintf(w, "# TYPE stamina_event_write_errors counter\n")
		fmt.Fprintf(w, "stamina_event_write_errors %d\n\n", atomic.LoadInt64(&c.EventWriteErrors))

		fmt.Fprintf(w, "# HELP stamina_ws_connections Active WebSocket connections\n")
		fmt.Fprintf(w, "# TYPE stamina_ws_connections gauge\n")
		fmt.Fprintf(w, "stamina_ws_connections %d\n\n", atomic.LoadInt64(&c.WSConnectionsActive))

		fmt.Fprintf(w, "# HELP stamina_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE stamina_ws_messages_total counter\n")
		fmt.Fprintf(w, "stamina_ws_messages_total{direction=\"in\"} %d\n", atomic.LoadInt64(&c.WSMessagesIn))
		fmt.Fprintf(w, "stamina_ws_messages_total{direction=\"out\"} %d\n\n", atomic.LoadInt64(&c.WSMessagesOut))

		fmt.Fprintf(w, "# HELP stamina_commands_total Discrete commands by outcome\n")
		fmt.Fprintf(w, "# TYPE stamina_commands_total counter\n")
		fmt.Fprintf(w, "stamina_commands_total{outcome=\"applied\"} %d\n", atomic.LoadInt64(&c.CommandsApplied))
		fmt.Fprintf(w, "stamina_commands_total{outcome=\"rejected\"} %d\n", atomic.LoadInt64(&c.CommandsRejected))
	}
}
