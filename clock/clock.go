// Package clock provides the abstract timer the interpreter consumes for
// delayed sends. The interpreter never creates a *time.Timer directly —
// everything goes through this interface so hosts can substitute a manual
// clock in tests.
package clock

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Handle cancels a scheduled thunk. Cancelling after the thunk has already
// fired, or cancelling twice, is a no-op.
type Handle interface {
	Cancel()
}

// Clock schedules a thunk to run after a delay, and allows cancelling it
// before it fires.
type Clock interface {
	// After schedules fn to run once, delay from now. The returned Handle
	// cancels the pending call; it has no effect once fn has started.
	After(delay time.Duration, fn func()) Handle
}

// WallClock is the production Clock, backed by time.AfterFunc. A
// context.CancelFunc stands in for the timer handle so Cancel is safe to
// call from any goroutine, any number of times.
type WallClock struct{}

// New returns the real-time Clock implementation.
func New() Clock { return WallClock{} }

func (WallClock) After(delay time.Duration, fn func()) Handle {
	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(delay, func() {
		select {
		case <-ctx.Done():
			return
		default:
			fn()
		}
	})
	return &wallHandle{cancel: cancel, timer: timer}
}

type wallHandle struct {
	once   sync.Once
	cancel context.CancelFunc
	timer  *time.Timer
}

func (h *wallHandle) Cancel() {
	h.once.Do(func() {
		h.cancel()
		h.timer.Stop()
	})
}

// ManualClock is a deterministic test double. Nothing fires until Advance
// is called; Advance runs (in fire-time order, ties broken by registration
// order) every pending thunk whose remaining delay is now due.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Duration
	pending []*manualEntry
	seq     uint64
}

type manualEntry struct {
	id        uint64
	fireAt    time.Duration
	fn        func()
	cancelled bool
}

// NewManual returns a ManualClock starting at t=0.
func NewManual() *ManualClock {
	return &ManualClock{}
}

func (m *ManualClock) After(delay time.Duration, fn func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	e := &manualEntry{id: m.seq, fireAt: m.now + delay, fn: fn}
	m.pending = append(m.pending, e)
	return &manualHandle{clock: m, id: e.id}
}

// Advance moves the clock forward by d, firing (in fire-time order, ties
// broken by registration order) every thunk now due. Firing happens
// outside the clock's lock so a fired thunk may itself call After.
func (m *ManualClock) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d
	due := m.dueLocked()
	m.mu.Unlock()

	for _, e := range due {
		e.fn()
	}
}

func (m *ManualClock) dueLocked() []*manualEntry {
	var due []*manualEntry
	var remaining []*manualEntry
	for _, e := range m.pending {
		if !e.cancelled && e.fireAt <= m.now {
			due = append(due, e)
		} else if !e.cancelled {
			remaining = append(remaining, e)
		}
	}
	m.pending = remaining
	sort.SliceStable(due, func(a, b int) bool { return due[a].fireAt < due[b].fireAt })
	return due
}

// Now returns the clock's current offset from t=0.
func (m *ManualClock) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

type manualHandle struct {
	clock *ManualClock
	id    uint64
}

func (h *manualHandle) Cancel() {
	h.clock.mu.Lock()
	defer h.clock.mu.Unlock()
	for _, e := range h.clock.pending {
		if e.id == h.id {
			e.cancelled = true
			return
		}
	}
}
