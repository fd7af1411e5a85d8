package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/staminalab/stamina-server/internal/events"
	"github.com/staminalab/stamina-server/internal/platform/logger"
	"github.com/staminalab/stamina-server/internal/platform/optimization"
	"github.com/staminalab/stamina-server/internal/sim"
)

type frameRecorder struct {
	mu     sync.Mutex
	frames []StateFrame
}

func (f *frameRecorder) PushState(frame StateFrame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
}

func (f *frameRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func newTestRunner(sink StateSink) (*Runner, *events.EventLog) {
	cfg := sim.NewConfig(sim.PolicyDualBar)
	input := &sim.Signal{}
	engine := sim.NewEngine(cfg, input)
	el := events.NewEventLog(nil)

	tuning := optimization.DefaultConfig()
	tuning.FrameRate = 200
	tuning.SnapshotInterval = 50 * time.Millisecond

	return NewRunner(engine, cfg, input, el, logger.NewLogger(), sink, "SESSION_TEST", tuning), el
}

func TestRunnerStepsAndSnapshots(t *testing.T) {
	sink := &frameRecorder{}
	r, el := newTestRunner(sink)

	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)

	// Give the loop a few hundred milliseconds of real time.
	time.Sleep(300 * time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)

	if r.Frames() == 0 {
		t.Fatal("Expected the runner to have stepped")
	}
	if sink.count() == 0 {
		t.Error("Expected state frames pushed to the sink")
	}
	if len(el.GetByType(events.EventTypeSessionStart)) != 1 {
		t.Error("Expected exactly one SESSION_START event")
	}
	if len(el.GetByType(events.EventTypeSnapshot)) == 0 {
		t.Error("Expected periodic snapshot events")
	}
}

func TestInputEdgesAreDeduplicated(t *testing.T) {
	r, el := newTestRunner(nil)

	// Key-repeat delivers a burst of down edges; only the first transition
	// may be recorded.
	r.InputDown("C1")
	r.InputDown("C1")
	r.InputDown("C1")
	r.InputUp("C1")
	r.InputUp("C1")

	edges := el.GetByType(events.EventTypeInputEdge)
	if len(edges) != 2 {
		t.Fatalf("Expected 2 edge events (down, up), got %d", len(edges))
	}
	if p := edges[0].Payload.(events.InputEdgePayload); !p.Active {
		t.Error("Expected first edge to be a press")
	}
	if p := edges[1].Payload.(events.InputEdgePayload); p.Active {
		t.Error("Expected second edge to be a release")
	}
}

func TestSetParamRecordsPreviousValue(t *testing.T) {
	r, el := newTestRunner(nil)

	if err := r.SetParam("C1", sim.ParamSecondaryDrainRate, 45); err != nil {
		t.Fatalf("SetParam failed: %v", err)
	}

	changes := el.GetByType(events.EventTypeParamChange)
	if len(changes) != 1 {
		t.Fatalf("Expected 1 param change event, got %d", len(changes))
	}
	p := changes[0].Payload.(events.ParamChangePayload)
	if p.Previous != sim.DefaultSecondaryDrainRate || p.Value != 45 {
		t.Errorf("Expected %f -> 45, got %f -> %f", sim.DefaultSecondaryDrainRate, p.Previous, p.Value)
	}
}

func TestSetParamRejectsUnknownName(t *testing.T) {
	r, el := newTestRunner(nil)

	err := r.SetParam("C1", "warpFactor", 9)
	if !errors.Is(err, sim.ErrUnknownParam) {
		t.Errorf("Expected ErrUnknownParam, got %v", err)
	}
	if len(el.GetByType(events.EventTypeParamChange)) != 0 {
		t.Error("Expected no event for a rejected edit")
	}
}

func TestPauseResumeLifecycle(t *testing.T) {
	r, el := newTestRunner(nil)

	r.Pause("C1")
	r.Pause("C1") // idempotent
	if !r.Paused() {
		t.Fatal("Expected runner paused")
	}
	if len(el.GetByType(events.EventTypePause)) != 1 {
		t.Error("Expected a single PAUSE event")
	}

	r.Resume("C1")
	r.Resume("C1")
	if r.Paused() {
		t.Fatal("Expected runner resumed")
	}
	if len(el.GetByType(events.EventTypeResume)) != 1 {
		t.Error("Expected a single RESUME event")
	}
}

func TestResetEmitsEvent(t *testing.T) {
	r, el := newTestRunner(nil)

	r.Reset("C1")
	if len(el.GetByType(events.EventTypeReset)) != 1 {
		t.Error("Expected a RESET event")
	}
}
