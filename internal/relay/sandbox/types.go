package sandbox

import (
	"context"
	"time"
)

// Config defines sandbox configuration
type Config struct {
	MaxCallStack int           // Maximum JS call stack depth; 0 leaves the engine default
	Timeout      time.Duration // Invocation deadline; 0 disables it
}

// AsyncFunc is a host operation exposed to the guest as a promise-returning
// function. It runs off the loop, one host operation at a time.
type AsyncFunc func(ctx context.Context, args []interface{}) (interface{}, error)

// SyncFunc is a host function that runs on the loop and returns nothing to
// the guest. Arguments arrive rendered as strings.
type SyncFunc func(args []string)

// Coder is implemented by host errors that carry a machine-readable code
// for the guest-side Error object
type Coder interface {
	Code() string
}

// DefaultConfig returns sandbox defaults
func DefaultConfig() Config {
	return Config{
		MaxCallStack: 1024,
		Timeout:      60 * time.Second,
	}
}
