package sim

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
)

// Policy selects which published meter variant the simulation runs.
type Policy string

const (
	// PolicyCeiling is the single-bar variant: a decaying exhaustion
	// ceiling with a pinned, non-configurable recovery rate.
	PolicyCeiling Policy = "CEILING"

	// PolicyDualBar is the dual-bar variant: an independently decaying max
	// bar plus an action bar, with all three rates tunable.
	PolicyDualBar Policy = "DUAL_BAR"
)

// Parameter names recognized by Config.Set. Units are meter units per second.
const (
	ParamPrimaryDecayRate      = "primaryDecayRate"
	ParamSecondaryDrainRate    = "secondaryDrainRate"
	ParamSecondaryRecoveryRate = "secondaryRecoveryRate"
)

// Default rates applied at simulation start.
const (
	DefaultPrimaryDecayRate   = 2.0
	DefaultSecondaryDrainRate = 30.0

	// DefaultRecoveryRate is also the pinned value under PolicyCeiling.
	DefaultRecoveryRate = 20.0
)

// Bounds describes the slider range a parameter UI should offer. The engine
// itself never validates against these; out-of-range values just produce
// faster or slower dynamics.
type Bounds struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
}

// ParamBounds maps each parameter to its advertised UI range.
var ParamBounds = map[string]Bounds{
	ParamPrimaryDecayRate:      {Min: 0, Max: 10, Step: 0.1},
	ParamSecondaryDrainRate:    {Min: 0, Max: 100, Step: 1},
	ParamSecondaryRecoveryRate: {Min: 0, Max: 100, Step: 1},
}

var (
	// ErrUnknownParam is returned for a parameter name Set does not recognize.
	ErrUnknownParam = errors.New("unknown parameter")

	// ErrFixedParam is returned when a rate is pinned by the active policy.
	ErrFixedParam = errors.New("parameter fixed by policy")
)

// atomicFloat stores a float64 through its bit pattern so the engine can read
// rates mid-step while a UI goroutine writes them. Stale-but-consistent reads
// are fine; torn reads are not.
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) Store(v float64) { f.bits.Store(math.Float64bits(v)) }
func (f *atomicFloat) Load() float64   { return math.Float64frombits(f.bits.Load()) }

// Config is the live rate record read by the engine every step and mutated
// only by explicit user edits through Set.
type Config struct {
	policy            atomic.Value // Policy
	primaryDecay      atomicFloat
	secondaryDrain    atomicFloat
	secondaryRecovery atomicFloat
}

// NewConfig creates a Config with default rates under the given policy.
func NewConfig(policy Policy) *Config {
	c := &Config{}
	c.primaryDecay.Store(DefaultPrimaryDecayRate)
	c.secondaryDrain.Store(DefaultSecondaryDrainRate)
	c.secondaryRecovery.Store(DefaultRecoveryRate)
	c.policy.Store(policy)
	return c
}

// Policy returns the active meter policy.
func (c *Config) Policy() Policy {
	return c.policy.Load().(Policy)
}

// SetPolicy switches the active policy. Entering PolicyCeiling re-pins the
// recovery rate to its fixed constant.
func (c *Config) SetPolicy(p Policy) error {
	switch p {
	case PolicyCeiling:
		c.secondaryRecovery.Store(DefaultRecoveryRate)
	case PolicyDualBar:
	default:
		return fmt.Errorf("unknown policy %q", p)
	}
	c.policy.Store(p)
	return nil
}

// Set assigns a parameter by name. Values are accepted as-is - range clamping
// is the parameter UI's job, not the engine's. The only rejections are an
// unknown name or a rate the active policy pins.
func (c *Config) Set(name string, value float64) error {
	switch name {
	case ParamPrimaryDecayRate:
		c.primaryDecay.Store(value)
	case ParamSecondaryDrainRate:
		c.secondaryDrain.Store(value)
	case ParamSecondaryRecoveryRate:
		if c.Policy() == PolicyCeiling {
			return fmt.Errorf("%w: %s", ErrFixedParam, name)
		}
		c.secondaryRecovery.Store(value)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownParam, name)
	}
	return nil
}

// Get returns the current value of a named parameter.
func (c *Config) Get(name string) (float64, error) {
	switch name {
	case ParamPrimaryDecayRate:
		return c.primaryDecay.Load(), nil
	case ParamSecondaryDrainRate:
		return c.secondaryDrain.Load(), nil
	case ParamSecondaryRecoveryRate:
		return c.secondaryRecovery.Load(), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownParam, name)
	}
}

// PrimaryDecayRate returns the constant attrition applied to Primary.
func (c *Config) PrimaryDecayRate() float64 { return c.primaryDecay.Load() }

// SecondaryDrainRate returns the drain applied while the trigger is held.
func (c *Config) SecondaryDrainRate() float64 { return c.secondaryDrain.Load() }

// SecondaryRecoveryRate returns the recovery applied while it is released.
func (c *Config) SecondaryRecoveryRate() float64 { return c.secondaryRecovery.Load() }

// Snapshot returns all parameters by name for broadcast to parameter UIs.
func (c *Config) Snapshot() map[string]float64 {
	return map[string]float64{
		ParamPrimaryDecayRate:      c.primaryDecay.Load(),
		ParamSecondaryDrainRate:    c.secondaryDrain.Load(),
		ParamSecondaryRecoveryRate: c.secondaryRecovery.Load(),
	}
}
