package poller

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Timer fires a callback repeatedly, re-arming itself after every fire with
// whatever interval its interval function returns at that moment.
//
// Interval changes therefore take effect on the next cycle without
// restarting the timer. Start and Stop are safe for concurrent use and
// idempotent.
type Timer struct {
	clock    clock.Clock
	interval func() time.Duration
	fire     func()

	mu      sync.Mutex
	current *clock.Timer
	gen     uint64
}

// NewTimer creates a stopped [Timer]. A nil clk uses the wall clock.
func NewTimer(clk clock.Clock, interval func() time.Duration, fire func()) *Timer {
	if clk == nil {
		clk = clock.New()
	}
	return &Timer{
		clock:    clk,
		interval: interval,
		fire:     fire,
	}
}

// Start arms the timer. Calling Start on a running timer is a no-op.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil {
		return
	}
	t.arm()
}

// Stop cancels the next fire and reports whether the timer was running.
// A fire that is already executing finishes but does not re-arm.
func (t *Timer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return false
	}
	t.current.Stop()
	t.current = nil
	t.gen++
	return true
}

// Active reports whether the timer is armed.
func (t *Timer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current != nil
}

// arm must be called with t.mu held.
func (t *Timer) arm() {
	gen := t.gen
	t.current = t.clock.AfterFunc(t.interval(), func() { t.tick(gen) })
}

func (t *Timer) tick(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.current == nil {
		// stopped (and possibly restarted) since this fire was scheduled
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	t.fire()

	t.mu.Lock()
	defer t.mu.Unlock()
	if gen == t.gen && t.current != nil {
		t.arm()
	}
}
