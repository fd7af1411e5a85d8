package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) (*SQLiteEventRepository, *SQLiteSessionRepository) {
	t.Helper()
	db, err := InitSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("InitSQLite failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLiteEventRepository(db), NewSQLiteSessionRepository(db)
}

func TestEventAppendAndQuery(t *testing.T) {
	eventRepo, _ := newTestDB(t)
	ctx := context.Background()

	records := []SimEventRecord{
		{ID: "E1", SessionID: "S1", Timestamp: time.Now().Add(-2 * time.Second), EventType: "SESSION_START", ActorID: "SYSTEM"},
		{ID: "E2", SessionID: "S1", Timestamp: time.Now().Add(-1 * time.Second), EventType: "PARAM_CHANGE", ActorID: "C1",
			Payload: map[string]interface{}{"name": "secondaryDrainRate", "previous": 30.0, "value": 45.0}},
		{ID: "E3", SessionID: "S2", Timestamp: time.Now(), EventType: "RESET", ActorID: "C2"},
	}
	for _, rec := range records {
		if err := eventRepo.Append(ctx, rec); err != nil {
			t.Fatalf("Append failed for %s: %v", rec.ID, err)
		}
	}

	got, err := eventRepo.GetBySessionID(ctx, "S1")
	if err != nil {
		t.Fatalf("GetBySessionID failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 events for S1, got %d", len(got))
	}

	changes, err := eventRepo.GetByEventType(ctx, "S1", "PARAM_CHANGE")
	if err != nil {
		t.Fatalf("GetByEventType failed: %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("Expected 1 param change, got %d", len(changes))
	}
	if v, ok := changes[0].Payload["value"].(float64); !ok || v != 45.0 {
		t.Errorf("Expected payload value 45, got %v", changes[0].Payload["value"])
	}
}

func TestSessionUpsertAndLatest(t *testing.T) {
	_, sessionRepo := newTestDB(t)
	ctx := context.Background()

	first := SessionSnapshot{
		SessionID: "S1", Policy: "DUAL_BAR",
		Primary: 80, Secondary: 55, FrameCount: 1200,
		StartedAt: time.Now().Add(-time.Hour),
	}
	if err := sessionRepo.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	// Second upsert overwrites the same row.
	first.Primary = 70
	first.FrameCount = 2400
	if err := sessionRepo.Upsert(ctx, first); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	snap, err := sessionRepo.GetBySessionID(ctx, "S1")
	if err != nil {
		t.Fatalf("GetBySessionID failed: %v", err)
	}
	if snap == nil || snap.Primary != 70 || snap.FrameCount != 2400 {
		t.Errorf("Expected updated snapshot, got %+v", snap)
	}

	latest, err := sessionRepo.GetLatest(ctx)
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if latest == nil || latest.SessionID != "S1" {
		t.Errorf("Expected latest session S1, got %+v", latest)
	}

	missing, err := sessionRepo.GetBySessionID(ctx, "NOPE")
	if err != nil {
		t.Fatalf("Lookup of missing session errored: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for missing session, got %+v", missing)
	}
}

func TestReconstructorReplaysLedger(t *testing.T) {
	eventRepo, _ := newTestDB(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Minute)
	ledger := []SimEventRecord{
		{ID: "E1", SessionID: "S1", Timestamp: base, EventType: "SESSION_START", ActorID: "SYSTEM"},
		{ID: "E2", SessionID: "S1", Timestamp: base.Add(1 * time.Second), EventType: "SNAPSHOT", ActorID: "SYSTEM",
			Payload: map[string]interface{}{"primary": 90.0, "secondary": 40.0, "frame": 60.0}},
		{ID: "E3", SessionID: "S1", Timestamp: base.Add(2 * time.Second), EventType: "SNAPSHOT", ActorID: "SYSTEM",
			Payload: map[string]interface{}{"primary": 85.0, "secondary": 52.0, "frame": 120.0}},
	}
	for _, rec := range ledger {
		if err := eventRepo.Append(ctx, rec); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	rebuilt, err := NewReconstructor(eventRepo).RebuildSessionState(ctx, "S1", 100)
	if err != nil {
		t.Fatalf("RebuildSessionState failed: %v", err)
	}
	if rebuilt.Primary != 85 || rebuilt.Secondary != 52 || rebuilt.Frame != 120 {
		t.Errorf("Expected last snapshot state, got %+v", rebuilt)
	}

	// A reset after the last snapshot restores both meters.
	reset := SimEventRecord{ID: "E4", SessionID: "S1", Timestamp: base.Add(3 * time.Second), EventType: "RESET", ActorID: "C1"}
	if err := eventRepo.Append(ctx, reset); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	rebuilt, err = NewReconstructor(eventRepo).RebuildSessionState(ctx, "S1", 100)
	if err != nil {
		t.Fatalf("RebuildSessionState failed: %v", err)
	}
	if rebuilt.Primary != 100 || rebuilt.Secondary != 100 {
		t.Errorf("Expected reset state after replay, got %+v", rebuilt)
	}
}
