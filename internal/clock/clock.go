// Package clock supplies current time to the session tracker and review
// pipeline, so threshold logic can be driven by a fixed clock in tests.
package clock

import (
	"sync"
	"time"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// Real is the wall clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// Fixed always returns the same instant.
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time { return f.T }

// Stepped returns a settable instant. Safe for concurrent use.
type Stepped struct {
	mu sync.Mutex
	t  time.Time
}

// NewStepped creates a Stepped clock starting at t.
func NewStepped(t time.Time) *Stepped {
	return &Stepped{t: t}
}

func (s *Stepped) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t
}

// Advance moves the clock forward by d and returns the new instant.
func (s *Stepped) Advance(d time.Duration) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t = s.t.Add(d)
	return s.t
}

// Set jumps the clock to t.
func (s *Stepped) Set(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t = t
}
