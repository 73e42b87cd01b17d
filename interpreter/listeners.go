package interpreter

import (
	"sync"

	"github.com/nocturnelabs/statecraft/machine"
)

// ListenerHandle unsubscribes the listener it was returned for. Calling
// it more than once is a no-op.
type ListenerHandle func()

// Off is sugar for calling a handle directly; kept so callers who stored
// the handle under a different name still have a removal verb.
func Off(h ListenerHandle) {
	if h != nil {
		h()
	}
}

// listenerSet is a copy-on-iterate registry of callbacks of type T:
// dispatch iterates a snapshot, so a callback that adds or removes
// listeners never corrupts the pass in flight.
type listenerSet[T any] struct {
	mu     sync.Mutex
	items  map[uint64]func(T)
	nextID uint64
}

func (s *listenerSet[T]) add(fn func(T)) ListenerHandle {
	s.mu.Lock()
	if s.items == nil {
		s.items = make(map[uint64]func(T))
	}
	s.nextID++
	id := s.nextID
	s.items[id] = fn
	s.mu.Unlock()

	var removed bool
	return func() {
		if removed {
			return
		}
		removed = true
		s.mu.Lock()
		delete(s.items, id)
		s.mu.Unlock()
	}
}

// snapshot returns the current callbacks in insertion order, stable
// across concurrent add/remove. Listeners added while iterating a
// snapshot already taken are not invoked in that pass.
func (s *listenerSet[T]) snapshot() []func(T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	// map iteration order is random; sort by id so insertion order (ids
	// are assigned monotonically) is reproducible across passes.
	for a := 1; a < len(ids); a++ {
		for b := a; b > 0 && ids[b-1] > ids[b]; b-- {
			ids[b-1], ids[b] = ids[b], ids[b-1]
		}
	}
	out := make([]func(T), 0, len(ids))
	for _, id := range ids {
		out = append(out, s.items[id])
	}
	return out
}

func (s *listenerSet[T]) notify(v T) {
	for _, fn := range s.snapshot() {
		fn(v)
	}
}

// drain atomically empties the set and returns what was in it, in
// insertion order — used by Stop to invoke each listener exactly once
// before discarding the whole set, rather than deleting while
// iterating.
func (s *listenerSet[T]) drain() []func(T) {
	out := s.snapshot()
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
	return out
}

func (s *listenerSet[T]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// contextChange is the payload delivered to context-listeners: the live
// context plus the context from the previous history snapshot, if any.
type contextChange struct {
	Context     any
	PrevContext any
}

type listenerSets struct {
	transition listenerSet[machine.State]
	context    listenerSet[contextChange]
	done       listenerSet[machine.Event]
	stop       listenerSet[struct{}]
	errorSet   listenerSet[machine.Event]
	event      listenerSet[machine.Event]
	send       listenerSet[machine.Event]
}

// OnTransition registers fn to run after every stored update, in
// dispatch order (actions → event → transition → context → done/stop).
func (i *Interpreter) OnTransition(fn func(machine.State)) ListenerHandle {
	return i.listeners.transition.add(fn)
}

// OnChange is an alias for OnTransition; both fire on every stored
// snapshot.
func (i *Interpreter) OnChange(fn func(machine.State)) ListenerHandle {
	return i.listeners.transition.add(fn)
}

// OnContext registers fn to run with the live and previous-history
// context after a transition.
func (i *Interpreter) OnContext(fn func(ctx, prevCtx any)) ListenerHandle {
	return i.listeners.context.add(func(c contextChange) { fn(c.Context, c.PrevContext) })
}

// OnDone registers fn to run once when a terminal configuration is
// reached.
func (i *Interpreter) OnDone(fn func(machine.Event)) ListenerHandle {
	return i.listeners.done.add(fn)
}

// OnStop registers fn to run exactly once, when the interpreter stops.
func (i *Interpreter) OnStop(fn func()) ListenerHandle {
	return i.listeners.stop.add(func(struct{}) { fn() })
}

// OnError registers fn to run for escalated platform-error events.
func (i *Interpreter) OnError(fn func(machine.Event)) ListenerHandle {
	return i.listeners.errorSet.add(fn)
}

// OnEvent registers fn to run for every incoming event a stored snapshot
// carries.
func (i *Interpreter) OnEvent(fn func(machine.Event)) ListenerHandle {
	return i.listeners.event.add(fn)
}

// OnSend registers fn to run whenever a `send` action dispatches an
// event, immediate or delayed.
func (i *Interpreter) OnSend(fn func(machine.Event)) ListenerHandle {
	return i.listeners.send.add(fn)
}
