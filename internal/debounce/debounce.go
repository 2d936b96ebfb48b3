// Package debounce delays propagation of rapidly changing values or calls
// until a quiet period has elapsed since the last change.
//
// Each debouncer holds at most one pending timer: arming a new one always
// cancels the previous one first. Stop disposes of the debouncer and
// cancels anything pending.
package debounce

import (
	"sync"
	"time"

	"audiencier/internal/clock"
)

// DefaultDelay is used when a non-positive delay is given.
const DefaultDelay = 500 * time.Millisecond

// slot is the single-timer state shared by Value and Func. Timers from a
// real clock fire on their own goroutine, so gen tags every arm and an
// expiry for an older generation is dropped.
type slot struct {
	clk     clock.Clock
	delay   time.Duration
	timer   clock.Timer
	gen     uint64
	stopped bool
}

func newSlot(clk clock.Clock, delay time.Duration) slot {
	if clk == nil {
		clk = clock.Real()
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	return slot{clk: clk, delay: delay}
}

// arm cancels any pending timer and schedules fire(gen). Callers hold the
// owner's mutex.
func (s *slot) arm(fire func(gen uint64)) {
	s.cancel()
	s.gen++
	gen := s.gen
	s.timer = s.clk.AfterFunc(s.delay, func() { fire(gen) })
}

func (s *slot) cancel() bool {
	if s.timer == nil {
		return false
	}
	s.timer.Stop()
	s.timer = nil
	s.gen++
	return true
}

func (s *slot) current(gen uint64) bool {
	return !s.stopped && s.timer != nil && gen == s.gen
}

// Value is a debounced view over a changing value.
type Value[T any] struct {
	mu       sync.Mutex
	slot     slot
	latest   T
	settled  T
	onSettle func(T)
}

// NewValue returns a Value whose output starts at initial. onSettle, if
// non-nil, runs with each settled value (outside the internal lock).
func NewValue[T any](clk clock.Clock, delay time.Duration, initial T, onSettle func(T)) *Value[T] {
	return &Value[T]{
		slot:     newSlot(clk, delay),
		latest:   initial,
		settled:  initial,
		onSettle: onSettle,
	}
}

// Set records v and restarts the quiet period.
func (d *Value[T]) Set(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.slot.stopped {
		return
	}
	d.latest = v
	d.slot.arm(d.expire)
}

// Get returns the last settled value.
func (d *Value[T]) Get() T {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settled
}

// Pending reports whether a change is waiting for its quiet period.
func (d *Value[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.slot.timer != nil
}

// Stop cancels any pending update. Later Sets are ignored.
func (d *Value[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slot.cancel()
	d.slot.stopped = true
}

func (d *Value[T]) expire(gen uint64) {
	d.mu.Lock()
	if !d.slot.current(gen) {
		d.mu.Unlock()
		return
	}
	d.slot.timer = nil
	d.settled = d.latest
	v, cb := d.settled, d.onSettle
	d.mu.Unlock()

	if cb != nil {
		cb(v)
	}
}

// Func debounces calls to fn: fn runs once per burst, with the argument of
// the last call in the burst.
type Func[A any] struct {
	mu   sync.Mutex
	slot slot
	fn   func(A)
	arg  A
}

func NewFunc[A any](clk clock.Clock, delay time.Duration, fn func(A)) *Func[A] {
	return &Func[A]{slot: newSlot(clk, delay), fn: fn}
}

// Call schedules fn(a) after the quiet period, replacing any pending call.
func (d *Func[A]) Call(a A) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.slot.stopped {
		return
	}
	d.arg = a
	d.slot.arm(d.expire)
}

// Flush runs a pending call immediately. It reports whether one ran.
func (d *Func[A]) Flush() bool {
	d.mu.Lock()
	if d.slot.stopped || !d.slot.cancel() {
		d.mu.Unlock()
		return false
	}
	a := d.arg
	d.mu.Unlock()

	d.fn(a)
	return true
}

// Pending reports whether a call is scheduled.
func (d *Func[A]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.slot.timer != nil
}

// Stop cancels any pending call. Later Calls are ignored.
func (d *Func[A]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slot.cancel()
	d.slot.stopped = true
}

func (d *Func[A]) expire(gen uint64) {
	d.mu.Lock()
	if !d.slot.current(gen) {
		d.mu.Unlock()
		return
	}
	d.slot.timer = nil
	a := d.arg
	d.mu.Unlock()

	d.fn(a)
}
