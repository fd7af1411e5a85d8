package sim

import (
	"sync"
	"time"
)

// Engine owns the simulation state and is its sole mutator. It references a
// Config and a Signal that outside collaborators mutate; the engine only
// reads them. Step calls must be sequential with monotonically increasing
// timestamps - the driving loop guarantees at-most-one-in-flight. The mutex
// covers both state and clock so Reset and Rebase are safe to call from
// command handlers while the loop is running.
type Engine struct {
	mu    sync.RWMutex
	state State
	clock Clock

	cfg   *Config
	input *Signal
}

// NewEngine creates an engine with both meters full.
func NewEngine(cfg *Config, input *Signal) *Engine {
	return &Engine{
		state: State{Primary: Cap, Secondary: Cap},
		cfg:   cfg,
		input: input,
	}
}

// Step advances the simulation to now and returns the new state.
//
// The first step after construction, Reset, or Rebase only establishes the
// clock baseline and returns the state unchanged. Otherwise Primary decays by
// its rate over the elapsed time and Secondary drains or recovers depending
// on the trigger, then is clamped to the post-decay Primary. That ordering is
// the central coupling rule: when the ceiling drops below the current
// Secondary, Secondary bleeds down with it in the same step.
func (e *Engine) Step(now time.Time) State {
	// Read collaborators once per step; stale-but-consistent is acceptable.
	active := e.input.Active()
	decayRate := e.cfg.PrimaryDecayRate()
	drainRate := e.cfg.SecondaryDrainRate()
	recoveryRate := e.cfg.SecondaryRecoveryRate()

	e.mu.Lock()
	defer e.mu.Unlock()

	elapsed, ok := e.clock.Tick(now)
	if !ok {
		return e.state
	}

	primary := clamp(e.state.Primary-decayRate*elapsed, 0, Cap)

	secondary := e.state.Secondary
	if active {
		secondary -= drainRate * elapsed
	} else {
		secondary += recoveryRate * elapsed
	}
	secondary = clamp(secondary, 0, primary)

	// Both fields commit together; Snapshot readers never see a torn pair.
	e.state = State{Primary: primary, Secondary: secondary}
	return e.state
}

// Reset restores both meters to Cap and clears the clock baseline so the next
// Step is treated as a fresh first frame. Idempotent. Configuration and the
// input signal are untouched.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = State{Primary: Cap, Secondary: Cap}
	e.clock.Reset()
}

// Rebase clears only the clock baseline. Called on resume after a pause so
// wall-clock time accumulated while paused is never charged to the meters.
func (e *Engine) Rebase() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock.Reset()
}

// Restore loads a previously persisted state, clamped back into the meter
// invariant, and clears the clock baseline. Used at boot to resume the last
// session's meters.
func (e *Engine) Restore(s State) {
	primary := clamp(s.Primary, 0, Cap)
	secondary := clamp(s.Secondary, 0, primary)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = State{Primary: primary, Secondary: secondary}
	e.clock.Reset()
}

// Snapshot returns a consistent copy of the current state.
func (e *Engine) Snapshot() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}
