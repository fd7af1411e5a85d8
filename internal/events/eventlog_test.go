package events

import (
	"sync"
	"testing"
	"time"
)

type recordingPersister struct {
	mu     sync.Mutex
	stored []SimEvent
}

func (p *recordingPersister) Append(e SimEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stored = append(p.stored, e)
	return nil
}

func newEvent(t EventType) SimEvent {
	return SimEvent{
		ID:        NewEventID(),
		SessionID: "SESSION_1",
		Timestamp: time.Now(),
		Type:      t,
		ActorID:   "SYSTEM",
	}
}

func TestSinceTracksPollerProgress(t *testing.T) {
	el := NewEventLog(nil)
	el.Append(newEvent(EventTypeSessionStart))
	el.Append(newEvent(EventTypeReset))

	batch := el.Since(0)
	if len(batch) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(batch))
	}

	el.Append(newEvent(EventTypeInputEdge))
	batch = el.Since(2)
	if len(batch) != 1 || batch[0].Type != EventTypeInputEdge {
		t.Errorf("Expected only the input edge event, got %v", batch)
	}

	if got := el.Since(el.Len()); got != nil {
		t.Errorf("Expected nil for a caught-up poller, got %v", got)
	}
}

func TestGetByTypeFilters(t *testing.T) {
	el := NewEventLog(nil)
	el.Append(newEvent(EventTypeParamChange))
	el.Append(newEvent(EventTypeReset))
	el.Append(newEvent(EventTypeParamChange))

	params := el.GetByType(EventTypeParamChange)
	if len(params) != 2 {
		t.Errorf("Expected 2 param changes, got %d", len(params))
	}
}

func TestAppendWritesThroughToPersister(t *testing.T) {
	p := &recordingPersister{}
	el := NewEventLog(p)

	el.Append(newEvent(EventTypeSnapshot))

	// Persistence is asynchronous; give the write-through goroutine a moment.
	deadline := time.Now().Add(2 * time.Second)
	for {
		p.mu.Lock()
		n := len(p.stored)
		p.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Expected 1 persisted event, got %d", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEventIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewEventID()
		if seen[id] {
			t.Fatalf("Duplicate event ID generated: %s", id)
		}
		seen[id] = true
	}
}
