package livequeue

import "time"

// Config holds configuration for a Livequeue instance.
type Config struct {
	// MaxConcurrentRooms caps the number of simultaneously open rooms.
	// Zero means unlimited (no capacity gate).
	MaxConcurrentRooms int

	// Departments is the list of departments the sweeper will poll.
	// An empty list sweeps the global (department-less) queue only.
	Departments []string

	// SweepInterval is how often the sweeper polls for queued inquiries.
	SweepInterval time.Duration

	// SweepBatchSize is the maximum number of queued inquiries the sweeper
	// advances per department per tick.
	SweepBatchSize int

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration

	// LeaderTTL is how long a sweeper leadership claim lasts before it must
	// be renewed.
	LeaderTTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentRooms: 0,
		Departments:        nil,
		SweepInterval:      5 * time.Second,
		SweepBatchSize:     10,
		ShutdownTimeout:    30 * time.Second,
		LeaderTTL:          15 * time.Second,
	}
}
