package sim

import "sync/atomic"

// Signal is the shared drain trigger flag. Input collaborators flip it from
// their own goroutines on key press/release edges; the engine reads it at the
// start of every step. Last-write-wins, no queueing of rapid toggles.
//
// Activate while already active is a no-op by construction, so upstream
// key-repeat noise cannot re-fire anything.
type Signal struct {
	active atomic.Bool
}

// Activate marks the trigger as held.
func (s *Signal) Activate() {
	s.active.Store(true)
}

// Deactivate marks the trigger as released.
func (s *Signal) Deactivate() {
	s.active.Store(false)
}

// Active reports whether the trigger is currently held.
func (s *Signal) Active() bool {
	return s.active.Load()
}
