package interpreter

import (
	"github.com/nocturnelabs/statecraft/actor"
	"github.com/nocturnelabs/statecraft/clock"
	"github.com/nocturnelabs/statecraft/machine"
	"github.com/nocturnelabs/statecraft/registry"
	"github.com/nocturnelabs/statecraft/scope"
)

// InitEventName is the synthetic event name used to drive the very first
// update after Start.
const InitEventName = "statecraft.init"

// Start begins running the interpreter from the machine's own initial
// state. Idempotent: calling it again once Running is a no-op. Satisfies
// actor.Starter, so nested-interpreter children get started the same
// way the action executor starts every other actor variant.
func (i *Interpreter) Start() { i.start(nil) }

// StartWithState begins running from state instead of the machine's
// initial snapshot. Reconstructing a snapshot from a bare state value
// plus the machine's default context is not implemented here: that
// requires the machine compiler, which lives behind the machine.Machine
// boundary.
func (i *Interpreter) StartWithState(state machine.State) { i.start(state) }

func (i *Interpreter) start(override machine.State) {
	i.mu.Lock()
	if i.status != NotStarted {
		i.mu.Unlock()
		return
	}
	i.status = Running
	i.mu.Unlock()

	_ = registry.Default().Register(i.sessionID, i)

	resolved := override
	if resolved == nil {
		resolved = i.InitialState()
	}

	if i.opts.DevTools != nil {
		i.opts.DevTools.Attach(i)
	}

	i.scheduler.Initialize(func() {
		i.update(resolved, machine.NewEvent(InitEventName))
	})
}

// Stop tears the interpreter down: stop-listeners fire exactly once each,
// every other listener set is discarded, every child exposing Stop is
// stopped, every pending timer is cancelled, the scheduler queue is
// cleared, and the session id is freed from the registry. Safe to call
// more than once; only the first call does anything.
func (i *Interpreter) Stop() {
	i.mu.Lock()
	if i.status == Stopped {
		i.mu.Unlock()
		return
	}
	i.status = Stopped

	children := make([]actor.Ref, 0, len(i.children))
	for _, c := range i.children {
		children = append(children, c)
	}
	i.children = make(map[string]actor.Ref)
	i.forwardTo = make(map[string]struct{})

	timers := make([]clock.Handle, 0, len(i.delayedEvents))
	for _, h := range i.delayedEvents {
		timers = append(timers, h)
	}
	i.delayedEvents = make(map[string]clock.Handle)
	i.mu.Unlock()

	for _, h := range timers {
		h.Cancel()
	}

	i.scheduler.Clear()

	for _, fn := range i.listeners.stop.drain() {
		fn(struct{}{})
	}
	i.listeners.transition.drain()
	i.listeners.context.drain()
	i.listeners.done.drain()
	i.listeners.errorSet.drain()
	i.listeners.event.drain()
	i.listeners.send.drain()

	for _, c := range children {
		c.Stop()
	}

	registry.Default().Unregister(i.sessionID)
}

// TrySend validates lifecycle status and, if accepted, schedules a
// microtask that forwards ev to every auto-forward child, computes the
// next snapshot, and runs update. Returns ErrNotStarted only for the one
// hard failure (NotStarted with deferral disabled); every other
// rejection is a logged warning with a nil return.
func (i *Interpreter) TrySend(ev machine.Event) error {
	i.mu.Lock()
	status := i.status
	i.mu.Unlock()

	switch status {
	case Stopped:
		i.opts.Logger.Log("warn", "send after stop ignored: "+ev.Name)
		return nil
	case NotStarted:
		if !*i.opts.DeferEvents {
			return ErrNotStarted
		}
		i.opts.Logger.Log("warn", "send before start deferred: "+ev.Name)
	}

	i.scheduler.Schedule(func() { i.dispatch(ev) })
	return nil
}

// Send is the actor.Ref-compliant entry point: it panics on the single
// hard-failure case TrySend reports (sending to an interpreter that was
// built with deferral disabled and never started) — a programmer error,
// not a runtime condition. Callers that want the error instead of a
// panic should call TrySend directly.
func (i *Interpreter) Send(ev machine.Event) {
	if err := i.TrySend(ev); err != nil {
		panic(err)
	}
}

func (i *Interpreter) dispatch(ev machine.Event) {
	if err := i.Forward(ev); err != nil {
		panic(err)
	}

	i.mu.Lock()
	current := i.current
	i.mu.Unlock()

	pop := scope.Enter(i)
	defer pop()
	next := i.machine.Transition(current, ev)

	i.escalateIfUnhandledPlatformError(next, ev)
	i.update(next, ev)
}

// TryBatch processes every event in events through one microstep:
// machine.Transition is folded repeatedly, the emitted actions are
// concatenated (each bound to the snapshot that produced it), the
// changed flags are OR-folded, and update runs exactly once with the
// final snapshot and the last event — so listeners fire once per batch.
func (i *Interpreter) TryBatch(events []machine.Event) error {
	i.mu.Lock()
	status := i.status
	i.mu.Unlock()

	switch status {
	case Stopped:
		i.opts.Logger.Log("warn", "batch after stop ignored")
		return nil
	case NotStarted:
		if !*i.opts.DeferEvents {
			return ErrNotStarted
		}
		i.opts.Logger.Log("warn", "batch before start deferred")
	}

	if len(events) == 0 {
		return nil
	}

	i.scheduler.Schedule(func() { i.dispatchBatch(events) })
	return nil
}

func (i *Interpreter) dispatchBatch(events []machine.Event) {
	i.mu.Lock()
	current := i.current
	i.mu.Unlock()

	batch := &batchState{}
	pop := scope.Enter(i)
	defer pop()
	var last machine.Event
	for _, ev := range events {
		current = i.machine.Transition(current, ev)
		last = ev
		for _, act := range current.Actions() {
			batch.actions = append(batch.actions, act)
			batch.bound = append(batch.bound, current)
		}
		batch.changed = batch.changed || current.Changed()
	}

	batch.State = current
	i.escalateIfUnhandledPlatformError(batch, last)
	i.update(batch, last)
}

// batchState is the coalesced snapshot a batch stores: the fold's final
// snapshot, except that Actions is the concatenation across every
// intermediate transition and Changed is the OR-fold. bound holds the
// producing snapshot for each action so the executor can hand it the
// context it was emitted under.
type batchState struct {
	machine.State
	actions []machine.Action
	bound   []machine.State
	changed bool
}

func (b *batchState) Actions() []machine.Action { return b.actions }
func (b *batchState) Changed() bool             { return b.changed }

// NextState computes what Transition would return without storing
// anything: i.Current and the child set are unchanged afterward. It
// deliberately does not enter service scope, so a Spawn call made from
// inside a speculative transition degrades to the null actor rather
// than mutating live state.
func (i *Interpreter) NextState(ev machine.Event) machine.State {
	base := i.Current()
	if base == nil {
		base = i.InitialState()
	}
	return i.machine.Transition(base, ev)
}

// escalateIfUnhandledPlatformError escalates a platform-error event that
// reaches a configuration with no transition for it (next didn't
// change): delivered to error-listeners if any are registered, rethrown
// as PlatformErrorUnhandled otherwise.
func (i *Interpreter) escalateIfUnhandledPlatformError(next machine.State, ev machine.Event) {
	if !registry.IsPlatformErrorName(ev.Name) || next.Changed() {
		return
	}
	if i.listeners.errorSet.len() > 0 {
		i.listeners.errorSet.notify(ev)
		return
	}
	var cause error
	if err, ok := ev.Data.(error); ok {
		cause = err
	}
	panic(&PlatformErrorUnhandled{EventName: ev.Name, Cause: cause})
}
