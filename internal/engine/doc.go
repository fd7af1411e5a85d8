// Package engine contains the frame loop that drives the stamina simulation.
// This is the heartbeat of the server.
//
// ARCHITECTURAL RULE: the Runner is the only goroutine that calls Step.
// Transport handlers mutate the Signal and Config (both safe for concurrent
// per-field access) and route discrete commands through the Runner, which
// records them in the EventLog.
package engine
