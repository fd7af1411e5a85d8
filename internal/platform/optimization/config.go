// Package optimization provides concurrency and cadence tuning for the
// simulation server under load.
package optimization

import (
	"runtime"
	"time"
)

// Config holds tuned parameters for the frame loop and transport.
type Config struct {
	// Frame loop cadence
	FrameRate        int           // steps per second
	SnapshotInterval time.Duration // periodic snapshot event cadence

	// Channel buffer sizes
	BroadcastChannelBuffer int
	ClientSendBuffer       int

	// Connection pools
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Rate limiting
	MaxParamEditsPerSecond int
	MaxClients             int
}

// DefaultConfig returns sensible defaults for an interactive session.
func DefaultConfig() *Config {
	numCPU := runtime.NumCPU()

	return &Config{
		// Display refresh cadence; the engine itself has no opinion on the
		// scheduler, only that steps are sequential and monotonic.
		FrameRate:        60,
		SnapshotInterval: time.Second,

		BroadcastChannelBuffer: 256,
		ClientSendBuffer:       64,

		DBMaxOpenConns: numCPU * 4,
		DBMaxIdleConns: numCPU * 2,

		MaxParamEditsPerSecond: 30,
		MaxClients:             200,
	}
}

// StressConfig returns aggressive settings for load testing with the
// agitator.
func StressConfig() *Config {
	cfg := DefaultConfig()
	cfg.BroadcastChannelBuffer = 1024
	cfg.ClientSendBuffer = 256
	cfg.MaxParamEditsPerSecond = 200
	cfg.MaxClients = 1000
	return cfg
}

// SnapshotEveryFrames converts the snapshot interval into a frame count for
// the runner's modulo check. Never below one frame.
func (c *Config) SnapshotEveryFrames() int64 {
	frames := int64(float64(c.FrameRate) * c.SnapshotInterval.Seconds())
	if frames < 1 {
		frames = 1
	}
	return frames
}
