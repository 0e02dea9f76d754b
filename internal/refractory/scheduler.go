// Package refractory schedules per-key cooldown callbacks. Each key has at
// most one pending timer; scheduling again replaces it and cancelling a key
// guarantees its callback never runs afterwards.
package refractory

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// Scheduler runs one delayed callback per key.
// It is safe for concurrent use.
type Scheduler struct {
	mu      sync.Mutex
	clock   clock.Clock
	pending map[uuid.UUID]*entry
	next    uint64
	stopped bool
}

type entry struct {
	gen   uint64
	timer *clock.Timer
}

// NewScheduler creates a scheduler driven by clk. A nil clock uses wall time.
func NewScheduler(clk clock.Clock) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{
		clock:   clk,
		pending: make(map[uuid.UUID]*entry),
	}
}

// Schedule arranges for fn to run after d. Any timer already pending for key
// is cancelled first. fn runs on its own goroutine while the scheduler lock
// is held, so it must not call back into the scheduler.
func (s *Scheduler) Schedule(key uuid.UUID, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if e, ok := s.pending[key]; ok {
		e.timer.Stop()
	}

	s.next++
	gen := s.next
	e := &entry{gen: gen}
	e.timer = s.clock.AfterFunc(d, func() { s.fire(key, gen, fn) })
	s.pending[key] = e
}

// fire runs fn only if the entry that scheduled it is still current.
func (s *Scheduler) fire(key uuid.UUID, gen uint64, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.pending[key]
	if !ok || e.gen != gen {
		return
	}
	delete(s.pending, key)
	fn()
}

// Cancel drops the pending timer for key. It reports whether one existed.
func (s *Scheduler) Cancel(key uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.pending[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.pending, key)
	return true
}

// Pending returns the number of timers that have not yet fired.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// IsPending reports whether key has a timer waiting.
func (s *Scheduler) IsPending(key uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

// Stop cancels every pending timer and rejects further scheduling.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.pending {
		e.timer.Stop()
		delete(s.pending, key)
	}
	s.stopped = true
}
