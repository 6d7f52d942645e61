package txn

import "time"

// Config holds the process-wide transaction-driver tuning knobs (§4.E, §6).
// Built once at container construction by pkg/config and threaded into every
// Driver; never a global singleton (§9 design notes).
type Config struct {
	RetryLimit     int
	InitialDelay   time.Duration
	MaxRetryDelay  time.Duration
	DefaultTimeout time.Duration
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{
		RetryLimit:     5,
		InitialDelay:   300 * time.Millisecond,
		MaxRetryDelay:  1000 * time.Millisecond,
		DefaultTimeout: 5 * time.Second,
	}
}
