// Package sim defines the core stamina simulation model: the meter state,
// the elapsed-time clock, the drain trigger signal, and the engine that
// advances the state.
// This package is PURE and must NOT import any infrastructure packages
// (network, events, platform).
package sim

// Cap bounds both meter quantities. Not user-configurable.
const Cap = 100.0

// State holds the two bounded meters of the simulation.
// Invariant after every update: 0 <= Secondary <= Primary <= Cap.
type State struct {
	// Primary is the slow-changing ceiling resource ("exhaustion" or "max"
	// depending on the policy). It decays regardless of input.
	Primary float64 `json:"primary"`

	// Secondary is the fast-changing action resource. It drains while the
	// trigger is held and recovers while it is released, and can never
	// exceed Primary.
	Secondary float64 `json:"secondary"`
}

// FillRatio returns Secondary as a fraction of Primary for display gradients.
// When Primary is zero the meter is fully drained, not an error.
func (s State) FillRatio() float64 {
	if s.Primary <= 0 {
		return 0
	}
	return s.Secondary / s.Primary
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
