package sim

import (
	"testing"
	"time"
)

func TestClockFirstTickReturnsNoElapsed(t *testing.T) {
	var c Clock

	if _, ok := c.Tick(t0); ok {
		t.Error("Expected first tick to only record the baseline")
	}

	elapsed, ok := c.Tick(t0.Add(500 * time.Millisecond))
	if !ok {
		t.Fatal("Expected second tick to report elapsed time")
	}
	if !almostEqual(elapsed, 0.5) {
		t.Errorf("Expected 0.5s elapsed, got %f", elapsed)
	}
}

func TestClockNeverReturnsNegativeElapsed(t *testing.T) {
	var c Clock
	c.Tick(t0)
	c.Tick(t0.Add(time.Second))

	elapsed, ok := c.Tick(t0) // regression
	if !ok {
		t.Fatal("Expected a regressing tick to still report")
	}
	if elapsed != 0 {
		t.Errorf("Expected elapsed clamped to 0 on regression, got %f", elapsed)
	}

	// The regressed timestamp is now the baseline.
	elapsed, _ = c.Tick(t0.Add(2 * time.Second))
	if !almostEqual(elapsed, 2.0) {
		t.Errorf("Expected 2s from the regressed baseline, got %f", elapsed)
	}
}

func TestClockResetClearsBaseline(t *testing.T) {
	var c Clock
	c.Tick(t0)
	c.Tick(t0.Add(time.Second))

	c.Reset()

	if _, ok := c.Tick(t0.Add(time.Hour)); ok {
		t.Error("Expected the first tick after Reset to only record the baseline")
	}
}
