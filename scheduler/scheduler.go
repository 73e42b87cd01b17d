// Package scheduler implements the single-threaded FIFO microtask
// trampoline that serializes interpreter work: a queue of thunks plus an
// "initialized" gate and a re-entry guard that gives every batch of
// enqueued work run-to-completion semantics.
//
// The trampoline is synchronous rather than goroutine-backed: the
// interpreter's Start must run its first task in the caller's goroutine,
// and at most one microstep may be mid-flight at any time. Schedule
// itself drains the queue before returning.
package scheduler

import "sync"

// Task is one unit of scheduled work: a microstep.
type Task func()

// Scheduler is a FIFO queue of tasks with a pre-initialization defer
// buffer. The zero value is not usable; use New.
type Scheduler struct {
	mu sync.Mutex

	initialized bool
	processing  bool
	deferEvents bool

	queue    []Task
	deferred []Task
}

// New creates a Scheduler. When deferEvents is true, tasks scheduled
// before Initialize are held in a separate buffer and drained in order by
// Initialize; when false, pre-initialization tasks are dropped (the
// caller is expected to have already rejected them; the scheduler itself
// never warns, it just holds or discards).
func New(deferEvents bool) *Scheduler {
	return &Scheduler{deferEvents: deferEvents}
}

// Initialize marks the scheduler initialized, runs first synchronously,
// then drains any tasks deferred during construction, then anything those
// tasks enqueued. Further calls are no-ops: Initialize is idempotent once
// the scheduler has been initialized.
func (s *Scheduler) Initialize(first Task) {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return
	}
	s.initialized = true
	s.processing = true
	s.mu.Unlock()

	s.run(first)

	s.mu.Lock()
	pending := s.deferred
	s.deferred = nil
	s.mu.Unlock()

	for _, t := range pending {
		s.run(t)
	}

	s.mu.Lock()
	s.processing = false
	s.mu.Unlock()

	s.drainRemainder()
}

// Schedule enqueues task. If the scheduler is not yet initialized, task
// is held in the deferred buffer (when deferEvents is set) or discarded.
// If initialized and nothing is currently processing, Schedule drains the
// whole queue — including anything task itself enqueues — before
// returning, giving run-to-completion semantics for the caller's batch.
// If something is already processing (this is a re-entrant call made
// from inside a running task), Schedule appends and returns immediately;
// the outer drain loop picks it up.
func (s *Scheduler) Schedule(task Task) {
	s.mu.Lock()
	if !s.initialized {
		if s.deferEvents {
			s.deferred = append(s.deferred, task)
		}
		s.mu.Unlock()
		return
	}

	if s.processing {
		s.queue = append(s.queue, task)
		s.mu.Unlock()
		return
	}

	s.queue = append(s.queue, task)
	s.processing = true
	s.mu.Unlock()

	s.drainRemainder()
}

func (s *Scheduler) drainRemainder() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.processing = false
			s.mu.Unlock()
			return
		}
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.run(next)
	}
}

func (s *Scheduler) run(t Task) {
	if t != nil {
		t()
	}
}

// Clear empties both the live queue and the deferred buffer, without
// running them. An in-flight task is not interrupted.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = nil
	s.deferred = nil
}

// Initialized reports whether Initialize has been called; it is already
// true while Initialize is running its first task.
func (s *Scheduler) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// Processing reports whether a microstep is currently being drained.
// Exposed for tests.
func (s *Scheduler) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}
