// Package actor provides the uniform actor-reference interface, plus the
// adapters that let heterogeneous entities (nested interpreters, futures,
// callbacks, observable streams, bare machines) all be spawned and
// supervised through the same Ref shape.
package actor

import (
	"encoding/json"
	"sync"

	"github.com/nocturnelabs/statecraft/machine"
)

// Observer is what Subscribe registers: Next is required, Error and
// Complete are optional (nil is a valid no-op).
type Observer struct {
	Next     func(value any)
	Error    func(err error)
	Complete func()
}

// Subscription is returned by Subscribe. Unsubscribe must be safe to call
// more than once.
type Subscription interface {
	Unsubscribe()
}

// Ref is the uniform handle every actor variant conforms to.
type Ref interface {
	ID() string
	Send(ev machine.Event)
	Subscribe(obs Observer) Subscription
	Stop()
	MarshalJSON() ([]byte, error)
}

// SpawnOptions configures how spawn attaches a new actor to its parent.
// The zero value (no sync, no auto-forward) is the default for spawned
// machines.
type SpawnOptions struct {
	// Sync marks the child as wanting synchronous semantics from its
	// owning interpreter. It is carried on the options only;
	// Interpreter.Spawn does not consult it.
	Sync bool

	// AutoForward adds the spawned child's id to the parent's forwardTo
	// set as soon as it's registered.
	AutoForward bool
}

// Starter is implemented by actor variants that have a distinct
// construct-then-start lifecycle (nested interpreters, future/callback/
// observable adapters whose underlying work shouldn't begin until the
// producing `start` action has finished registering the child). Variants
// without a meaningful start step (Null) simply don't implement it.
type Starter interface {
	Start()
}

func marshalID(id string) ([]byte, error) {
	return json.Marshal(struct {
		ID string `json:"id"`
	}{ID: id})
}

// listenerSet is the copy-on-iterate broadcast primitive every adapter
// below uses to fan values out to subscribers, matching the
// notifySubscribers shape used throughout the interpreter package.
type listenerSet struct {
	mu        sync.Mutex
	observers map[uint64]Observer
	nextID    uint64
}

// add registers obs and returns a Subscription that removes it exactly
// once, however many times Unsubscribe is called.
func (l *listenerSet) add(obs Observer) Subscription {
	l.mu.Lock()
	if l.observers == nil {
		l.observers = make(map[uint64]Observer)
	}
	l.nextID++
	id := l.nextID
	l.observers[id] = obs
	l.mu.Unlock()

	return &subscription{set: l, id: id}
}

// snapshot returns a copy of the current observer set, safe to iterate
// after releasing the lock even if a callback unsubscribes or a new
// subscriber joins mid-dispatch.
func (l *listenerSet) snapshot() []Observer {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Observer, 0, len(l.observers))
	for _, o := range l.observers {
		out = append(out, o)
	}
	return out
}

func (l *listenerSet) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.observers, id)
}

func (l *listenerSet) notifyNext(value any) {
	for _, o := range l.snapshot() {
		if o.Next != nil {
			o.Next(value)
		}
	}
}

func (l *listenerSet) notifyError(err error) {
	for _, o := range l.snapshot() {
		if o.Error != nil {
			o.Error(err)
		}
	}
}

func (l *listenerSet) notifyComplete() {
	for _, o := range l.snapshot() {
		if o.Complete != nil {
			o.Complete()
		}
	}
}

type subscription struct {
	set  *listenerSet
	id   uint64
	once sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() { s.set.remove(s.id) })
}
