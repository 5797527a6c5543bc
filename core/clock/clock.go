// Package clock provides the discrete time source the core schedules
// against. Every periodic component (drone tick, base flood-seed timer,
// ack watchdog) reads elapsed time through a Source rather than calling
// time.Now directly, so tests can drive simulated time deterministically.
package clock

import (
	"sync"
	"time"
)

// Source reports the current simulated time in seconds.
type Source interface {
	Now() float64
}

// System is a Source backed by the real wall clock. Seconds are measured
// from the moment the System was created, so small values stay
// representable in float64 across long-running processes.
type System struct {
	start time.Time
}

// NewSystem creates a System clock anchored to the current wall-clock time.
func NewSystem() *System {
	return &System{start: time.Now()}
}

// Now returns elapsed seconds since the System was created.
func (s *System) Now() float64 {
	return time.Since(s.start).Seconds()
}

// Manual is a Source whose value is set explicitly, for deterministic
// tests that need to simulate ack timeouts, flood propagation, or tick
// staggering without sleeping.
type Manual struct {
	mu  sync.Mutex
	now float64
}

// NewManual creates a Manual clock starting at t=0.
func NewManual() *Manual {
	return &Manual{}
}

// Now returns the current simulated time.
func (m *Manual) Now() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set pins the clock to an absolute simulated time. Time may move
// backward; Manual makes no monotonicity guarantee, since tests use it
// to probe boundary conditions around clock adjustment as well as
// forward progress.
func (m *Manual) Set(t float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance moves the clock forward by dt seconds and returns the new time.
func (m *Manual) Advance(dt float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += dt
	return m.now
}
