// Package poll provides a timer-driven scheduler that invokes a refresh
// callback at a fixed interval, with enable/disable and live reconfiguration.
package poll

import (
	"sync"
	"time"
)

// MinInterval is the smallest accepted polling interval. Anything shorter is
// treated as disabled to guard against accidental request storms.
const MinInterval = time.Second

// Scheduler fires a callback once per interval while enabled. It owns at most
// one timer at a time: interval changes cancel and recreate the timer, while
// callback changes only swap the reference, so the next fire always uses the
// most recently supplied callback. Overlapping invocations are not deduped;
// a caller whose refresh can overlap unsafely must guard it itself.
type Scheduler struct {
	mu       sync.Mutex
	callback func()
	interval time.Duration
	enabled  bool
	timer    *time.Timer
	gen      uint64 // invalidates stale timer fires after reconfigure/stop
}

// New creates a stopped Scheduler. Call Start to begin ticking.
func New(callback func(), interval time.Duration, enabled bool) *Scheduler {
	return &Scheduler{
		callback: callback,
		interval: interval,
		enabled:  enabled,
	}
}

// Start arms the timer if the scheduler is enabled and the interval is valid.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reschedule()
}

// Stop cancels any pending tick and prevents any further ones from being
// scheduled. A tick already dispatched may still complete, but a timer that
// fired and has not yet run its callback is discarded by the generation
// check.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = false
	s.cancel()
}

// SetEnabled toggles the scheduler. Disabling cancels the pending tick;
// enabling arms a fresh timer at the current interval.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enabled == enabled {
		return
	}
	s.enabled = enabled
	s.reschedule()
}

// SetInterval changes the tick interval. While scheduled this cancels the
// existing timer and arms a new one, so the new interval takes effect for
// the very next tick. Intervals under MinInterval disable ticking.
func (s *Scheduler) SetInterval(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.interval == interval {
		return
	}
	s.interval = interval
	s.reschedule()
}

// SetCallback swaps the refresh callback without resetting the timer. The
// pending tick, if any, fires the new callback.
func (s *Scheduler) SetCallback(callback func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = callback
}

// Running reports whether a tick is currently scheduled.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// cancel stops the current timer and bumps the generation so an in-flight
// fire from the old timer is ignored. Caller holds s.mu.
func (s *Scheduler) cancel() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// reschedule moves the scheduler into the state implied by enabled/interval.
// Caller holds s.mu.
func (s *Scheduler) reschedule() {
	s.cancel()
	if !s.enabled || s.interval < MinInterval {
		return
	}
	gen := s.gen
	s.timer = time.AfterFunc(s.interval, func() { s.fire(gen) })
}

// fire runs one tick and arms the next one, unless the scheduler was
// reconfigured or stopped since this timer was created.
func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.enabled || s.interval < MinInterval {
		s.mu.Unlock()
		return
	}
	cb := s.callback
	s.timer = time.AfterFunc(s.interval, func() { s.fire(gen) })
	s.mu.Unlock()

	if cb != nil {
		cb()
	}
}
