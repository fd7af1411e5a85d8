package sim

import (
	"errors"
	"testing"
)

func TestConfigRejectsUnknownParameter(t *testing.T) {
	cfg := NewConfig(PolicyDualBar)

	err := cfg.Set("turboBoost", 9000)
	if !errors.Is(err, ErrUnknownParam) {
		t.Errorf("Expected ErrUnknownParam, got %v", err)
	}
	if _, err := cfg.Get("turboBoost"); !errors.Is(err, ErrUnknownParam) {
		t.Errorf("Expected ErrUnknownParam from Get, got %v", err)
	}
}

func TestConfigAcceptsOutOfRangeValues(t *testing.T) {
	cfg := NewConfig(PolicyDualBar)

	// Range clamping is the slider UI's job; the engine takes values as-is.
	if err := cfg.Set(ParamSecondaryDrainRate, 500); err != nil {
		t.Fatalf("Expected out-of-range value to be accepted, got %v", err)
	}
	if got := cfg.SecondaryDrainRate(); got != 500 {
		t.Errorf("Expected drain rate 500, got %f", got)
	}
}

func TestCeilingPolicyPinsRecoveryRate(t *testing.T) {
	cfg := NewConfig(PolicyCeiling)

	err := cfg.Set(ParamSecondaryRecoveryRate, 77)
	if !errors.Is(err, ErrFixedParam) {
		t.Errorf("Expected ErrFixedParam under the ceiling policy, got %v", err)
	}
	if got := cfg.SecondaryRecoveryRate(); got != DefaultRecoveryRate {
		t.Errorf("Expected pinned recovery rate %f, got %f", DefaultRecoveryRate, got)
	}
}

func TestSwitchingToCeilingRepinsRecovery(t *testing.T) {
	cfg := NewConfig(PolicyDualBar)
	if err := cfg.Set(ParamSecondaryRecoveryRate, 60); err != nil {
		t.Fatalf("Expected recovery to be tunable under dual-bar, got %v", err)
	}

	if err := cfg.SetPolicy(PolicyCeiling); err != nil {
		t.Fatalf("Policy switch failed: %v", err)
	}
	if got := cfg.SecondaryRecoveryRate(); got != DefaultRecoveryRate {
		t.Errorf("Expected recovery re-pinned to %f, got %f", DefaultRecoveryRate, got)
	}

	if err := cfg.SetPolicy("HEXAGONAL"); err == nil {
		t.Error("Expected an error for an unknown policy")
	}
}

func TestConfigSnapshotListsAllParameters(t *testing.T) {
	cfg := NewConfig(PolicyDualBar)
	snap := cfg.Snapshot()

	for _, name := range []string{ParamPrimaryDecayRate, ParamSecondaryDrainRate, ParamSecondaryRecoveryRate} {
		if _, ok := snap[name]; !ok {
			t.Errorf("Expected %s in snapshot", name)
		}
		if _, ok := ParamBounds[name]; !ok {
			t.Errorf("Expected advertised bounds for %s", name)
		}
	}
}

func TestSignalEdgesAreIdempotent(t *testing.T) {
	var s Signal

	// Key-repeat sends many press edges; the flag must simply stay set.
	s.Activate()
	s.Activate()
	s.Activate()
	if !s.Active() {
		t.Error("Expected signal active after repeated press edges")
	}

	s.Deactivate()
	if s.Active() {
		t.Error("Expected signal inactive after release")
	}
	s.Deactivate()
	if s.Active() {
		t.Error("Expected repeated release to be a no-op")
	}
}
