// Package clock provides the time base for the control loop and schedulers.
//
// Everything time-driven in this repo takes a Clock so tests and the
// simulator binary can step time deterministically.
package clock

import (
	"sync"
	"time"
)

// Clock abstracts time operations for testing and simulation.
type Clock interface {
	Now() time.Time
}

// System uses actual wall-clock time.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Sim is a manually advanced clock.
//
// It is safe for concurrent use, but the control loop normally owns it and
// advances it from a single goroutine.
type Sim struct {
	mu  sync.Mutex
	now time.Time
}

func NewSim(start time.Time) *Sim {
	return &Sim{now: start}
}

func (s *Sim) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Advance moves the clock forward by d. Negative deltas are ignored so the
// clock stays monotonic.
func (s *Sim) Advance(d time.Duration) {
	if d < 0 {
		return
	}
	s.mu.Lock()
	s.now = s.now.Add(d)
	s.mu.Unlock()
}

// Set jumps the clock to t if t is not before the current time.
func (s *Sim) Set(t time.Time) {
	s.mu.Lock()
	if t.After(s.now) {
		s.now = t
	}
	s.mu.Unlock()
}
