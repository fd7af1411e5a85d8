package sim

import "time"

// Clock derives elapsed seconds between consecutive simulation steps.
// It holds only the previous timestamp; the zero value is ready to use.
type Clock struct {
	prev time.Time
	set  bool
}

// Tick records now as the new baseline and returns the seconds elapsed since
// the previous baseline. The first call after construction or Reset only
// establishes the baseline and returns ok=false - the caller must skip the
// state update for that frame so a stale baseline never produces a giant
// delta. Elapsed is clamped to zero if now regresses.
func (c *Clock) Tick(now time.Time) (elapsed float64, ok bool) {
	if !c.set {
		c.prev = now
		c.set = true
		return 0, false
	}

	elapsed = now.Sub(c.prev).Seconds()
	c.prev = now
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed, true
}

// Reset clears the baseline so the next Tick is treated as a first call.
func (c *Clock) Reset() {
	c.set = false
}
