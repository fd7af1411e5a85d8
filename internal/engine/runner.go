package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/staminalab/stamina-server/internal/events"
	"github.com/staminalab/stamina-server/internal/platform/logger"
	"github.com/staminalab/stamina-server/internal/platform/metrics"
	"github.com/staminalab/stamina-server/internal/platform/optimization"
	"github.com/staminalab/stamina-server/internal/sim"
)

// SystemActor identifies engine-originated events in the audit log.
const SystemActor = "SYSTEM"

// StateFrame is the per-frame state message pushed to the transport layer.
type StateFrame struct {
	Type      string  `json:"type"` // always "state"
	Frame     int64   `json:"frame"`
	Primary   float64 `json:"primary"`
	Secondary float64 `json:"secondary"`
	Ratio     float64 `json:"ratio"`
	Active    bool    `json:"active"`
	Paused    bool    `json:"paused"`
	Policy    string  `json:"policy"`
}

// StateSink receives one StateFrame per simulation step. Implementations must
// not block; drop frames rather than stall the loop.
type StateSink interface {
	PushState(frame StateFrame)
}

// Runner drives the simulation at display-frame cadence and serializes all
// discrete commands into the event log.
type Runner struct {
	sim      *sim.Engine
	cfg      *sim.Config
	input    *sim.Signal
	eventLog *events.EventLog
	logger   *logger.Logger
	sink     StateSink

	sessionID     string
	frameInterval time.Duration
	snapshotEvery int64

	frames atomic.Int64
	paused atomic.Bool
}

// NewRunner wires a runner over the simulation core. sink may be nil for
// headless use.
func NewRunner(engine *sim.Engine, cfg *sim.Config, input *sim.Signal,
	eventLog *events.EventLog, log *logger.Logger, sink StateSink,
	sessionID string, tuning *optimization.Config) *Runner {

	return &Runner{
		sim:           engine,
		cfg:           cfg,
		input:         input,
		eventLog:      eventLog,
		logger:        log,
		sink:          sink,
		sessionID:     sessionID,
		frameInterval: time.Second / time.Duration(tuning.FrameRate),
		snapshotEvery: tuning.SnapshotEveryFrames(),
	}
}

// SetSink attaches the state sink. Must be called before Run.
func (r *Runner) SetSink(sink StateSink) {
	r.sink = sink
}

// SessionID returns the session this runner is recording under.
func (r *Runner) SessionID() string {
	return r.sessionID
}

// Frames returns the number of steps taken so far.
func (r *Runner) Frames() int64 {
	return r.frames.Load()
}

// Paused reports whether stepping is currently suspended.
func (r *Runner) Paused() bool {
	return r.paused.Load()
}

// Run executes the frame loop until the context is cancelled. Call in a
// goroutine. Steps are strictly sequential with monotonic timestamps; the
// single loop goroutine guarantees at-most-one-in-flight.
func (r *Runner) Run(ctx context.Context) {
	r.logger.Info("Runner started: session %s at %v per frame", r.sessionID, r.frameInterval)
	r.appendEvent(events.EventTypeSessionStart, SystemActor, nil)

	ticker := time.NewTicker(r.frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Runner stopped by context.")
			return
		case now := <-ticker.C:
			if r.paused.Load() {
				continue
			}
			r.step(now)
		}
	}
}

// step advances the simulation one frame and publishes the result.
func (r *Runner) step(now time.Time) {
	start := time.Now()
	state := r.sim.Step(now)
	metrics.Get().RecordStep(time.Since(start))

	frame := r.frames.Add(1)

	if r.sink != nil {
		r.sink.PushState(StateFrame{
			Type:      "state",
			Frame:     frame,
			Primary:   state.Primary,
			Secondary: state.Secondary,
			Ratio:     state.FillRatio(),
			Active:    r.input.Active(),
			Paused:    false,
			Policy:    string(r.cfg.Policy()),
		})
	}

	if frame%r.snapshotEvery == 0 {
		r.appendEvent(events.EventTypeSnapshot, SystemActor, events.SnapshotPayload{
			Primary:   state.Primary,
			Secondary: state.Secondary,
			Frame:     frame,
		})
	}
}

// InputDown applies a trigger press edge. Repeated presses while held are
// no-ops and are not logged, so upstream key-repeat never floods the log.
func (r *Runner) InputDown(actorID string) {
	if r.input.Active() {
		return
	}
	r.input.Activate()
	r.appendEvent(events.EventTypeInputEdge, actorID, events.InputEdgePayload{Active: true})
	r.logger.Event("INPUT_DOWN", actorID, "drain trigger held")
}

// InputUp applies a trigger release edge.
func (r *Runner) InputUp(actorID string) {
	if !r.input.Active() {
		return
	}
	r.input.Deactivate()
	r.appendEvent(events.EventTypeInputEdge, actorID, events.InputEdgePayload{Active: false})
	r.logger.Event("INPUT_UP", actorID, "drain trigger released")
}

// SetParam edits a rate parameter and records the change.
func (r *Runner) SetParam(actorID, name string, value float64) error {
	previous, _ := r.cfg.Get(name)

	if err := r.cfg.Set(name, value); err != nil {
		metrics.Get().RecordCommand(false)
		return err
	}
	metrics.Get().RecordCommand(true)

	r.appendEvent(events.EventTypeParamChange, actorID, events.ParamChangePayload{
		Name:     name,
		Previous: previous,
		Value:    value,
	})
	r.logger.Event("PARAM_CHANGE", actorID, fmt.Sprintf("%s: %.3f -> %.3f", name, previous, value))
	return nil
}

// SetPolicy switches the meter policy and records the change.
func (r *Runner) SetPolicy(actorID string, policy sim.Policy) error {
	if err := r.cfg.SetPolicy(policy); err != nil {
		metrics.Get().RecordCommand(false)
		return err
	}
	metrics.Get().RecordCommand(true)

	r.appendEvent(events.EventTypePolicyChange, actorID, string(policy))
	r.logger.Event("POLICY_CHANGE", actorID, string(policy))
	return nil
}

// Reset restores both meters to full and invalidates the clock baseline.
func (r *Runner) Reset(actorID string) {
	r.sim.Reset()
	metrics.Get().RecordCommand(true)
	r.appendEvent(events.EventTypeReset, actorID, nil)
	r.logger.Event("RESET", actorID, "meters restored to cap")
}

// Pause suspends stepping. Idempotent.
func (r *Runner) Pause(actorID string) {
	if !r.paused.CompareAndSwap(false, true) {
		return
	}
	r.appendEvent(events.EventTypePause, actorID, nil)
	r.logger.Event("PAUSE", actorID, "frame loop suspended")
}

// Resume restarts stepping. The clock is rebased so the paused interval is
// never charged as elapsed simulation time.
func (r *Runner) Resume(actorID string) {
	if !r.paused.CompareAndSwap(true, false) {
		return
	}
	r.sim.Rebase()
	r.appendEvent(events.EventTypeResume, actorID, nil)
	r.logger.Event("RESUME", actorID, "frame loop resumed, clock rebased")
}

func (r *Runner) appendEvent(t events.EventType, actorID string, payload interface{}) {
	r.eventLog.Append(events.SimEvent{
		ID:        events.NewEventID(),
		SessionID: r.sessionID,
		Timestamp: time.Now(),
		Type:      t,
		ActorID:   actorID,
		Payload:   payload,
	})
}
