// Package system provides the clocks used to time crawl runs.
package system

import (
	"sync"
	"time"
)

// Clock reads the wall clock in UTC.
type Clock struct{}

// New returns a wall Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Manual is a clock that only moves when told to. Every call to Now advances
// it by Step, which keeps durations deterministic in tests.
type Manual struct {
	mu   sync.Mutex
	now  time.Time
	Step time.Duration
}

// NewManual returns a Manual clock starting at start.
func NewManual(start time.Time, step time.Duration) *Manual {
	return &Manual{now: start, Step: step}
}

// Now returns the current reading and then advances by Step.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.now
	m.now = m.now.Add(m.Step)
	return t
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
