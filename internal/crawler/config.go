package crawler

import (
	"fmt"
	"time"
)

// Default tuning values.
const (
	DefaultWorkers      = 5
	DefaultPollInterval = 500 * time.Millisecond
)

// Config holds the orchestrator's tuning knobs.
type Config struct {
	// Workers is the size of the worker pool.
	Workers int
	// PollInterval bounds how long an idle worker waits before re-checking
	// the frontier.
	PollInterval time.Duration
}

// DefaultConfig returns Config populated with default values.
func DefaultConfig() Config {
	return Config{Workers: DefaultWorkers, PollInterval: DefaultPollInterval}
}

func (c Config) withDefaults() Config {
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

// Validate checks for obviously bad values.
func (c Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("%w (got %d)", ErrInvalidWorkers, c.Workers)
	}
	return nil
}
