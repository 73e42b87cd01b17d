package actor

import (
	"sync"

	"github.com/nocturnelabs/statecraft/machine"
)

// FromInterpreter adopts a value that already satisfies Ref verbatim —
// the nested-interpreter variant, where the interpreter package's
// *Interpreter is the Ref itself. Kept as a named adapter purely so every
// spawn-dispatch case in the supervision table has a symmetric
// constructor to call.
func FromInterpreter(i Ref) Ref { return i }

// Null is the misuse-at-top-level actor: send is a no-op, subscribe
// yields an immediately-empty subscription, stop does nothing. Returned
// by the free Spawn entry point when called with no running interpreter.
type Null struct {
	id string
}

// NewNull returns a Null actor with the given id, used only for
// diagnostics.
func NewNull(id string) *Null { return &Null{id: id} }

var _ Ref = (*Null)(nil)

func (n *Null) ID() string { return n.id }

func (n *Null) Send(machine.Event) {}

func (n *Null) Subscribe(Observer) Subscription { return noopSubscription{} }

func (n *Null) Stop() {}

func (n *Null) MarshalJSON() ([]byte, error) { return marshalID(n.id) }

type noopSubscription struct{}

func (noopSubscription) Unsubscribe() {}

// Future is the minimal "thenable" shape the one-shot adapter consumes:
// Await blocks until the underlying operation settles.
type Future interface {
	Await() (any, error)
}

// FuncFuture adapts a plain func() (any, error) to Future.
type FuncFuture func() (any, error)

func (f FuncFuture) Await() (any, error) { return f() }

// FutureRef is the one-shot promise/future adapter: on resolution it
// sends the resolved value to parent as an event, on rejection it sends
// an error event. It is constructed eagerly but only begins awaiting
// once Start is called, mirroring the "start the child" step in the
// action executor.
type FutureRef struct {
	id     string
	parent machine.Actor
	fut    Future

	listeners listenerSet
	once      sync.Once
	done      chan struct{}
}

var _ Ref = (*FutureRef)(nil)
var _ Starter = (*FutureRef)(nil)

// NewFuture builds a FutureRef. Start must be called to begin awaiting.
func NewFuture(id string, parent machine.Actor, fut Future) *FutureRef {
	return &FutureRef{id: id, parent: parent, fut: fut, done: make(chan struct{})}
}

func (f *FutureRef) ID() string { return f.id }

func (f *FutureRef) Send(machine.Event) {
	// a future accepts no input; sends to it are dropped.
}

func (f *FutureRef) Subscribe(obs Observer) Subscription { return f.listeners.add(obs) }

func (f *FutureRef) Stop() { f.once.Do(func() { close(f.done) }) }

func (f *FutureRef) MarshalJSON() ([]byte, error) { return marshalID(f.id) }

// Start launches the goroutine that awaits the future exactly once.
func (f *FutureRef) Start() {
	go func() {
		value, err := f.fut.Await()
		select {
		case <-f.done:
			return
		default:
		}
		if err != nil {
			f.listeners.notifyError(err)
			f.parent.Send(machine.NewEvent("error." + f.id).WithData(err).WithOrigin(f.id))
			return
		}
		f.listeners.notifyNext(value)
		f.listeners.notifyComplete()
		f.parent.Send(machine.NewEvent("done.invoke." + f.id).WithData(value).WithOrigin(f.id))
	}()
}

// Send and Receive are the two handles a CallbackFn is invoked with: send
// dispatches an event to the callback's parent, receive registers the
// function the parent can use to deliver events back into the callback.
type Send func(machine.Event)
type Receive func(func(machine.Event))

// CallbackFn is the user logic a callback adapter wraps. Its return
// value, when non-nil, is invoked on Stop to release resources.
type CallbackFn func(send Send, receive Receive) (dispose func())

// CallbackRef is the callback adapter: the callable receives a send
// function bound to parent and a receive registrar it can use to be
// handed a delivery function.
type CallbackRef struct {
	id     string
	parent machine.Actor
	fn     CallbackFn

	mu        sync.Mutex
	deliver   func(machine.Event)
	dispose   func()
	listeners listenerSet
	stopped   bool
}

var _ Ref = (*CallbackRef)(nil)
var _ Starter = (*CallbackRef)(nil)

// NewCallback builds a CallbackRef. Start invokes fn.
func NewCallback(id string, parent machine.Actor, fn CallbackFn) *CallbackRef {
	return &CallbackRef{id: id, parent: parent, fn: fn}
}

func (c *CallbackRef) ID() string { return c.id }

func (c *CallbackRef) Send(ev machine.Event) {
	c.mu.Lock()
	deliver := c.deliver
	c.mu.Unlock()
	if deliver != nil {
		deliver(ev)
	}
}

func (c *CallbackRef) Subscribe(obs Observer) Subscription { return c.listeners.add(obs) }

func (c *CallbackRef) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	dispose := c.dispose
	c.mu.Unlock()
	if dispose != nil {
		dispose()
	}
}

func (c *CallbackRef) MarshalJSON() ([]byte, error) { return marshalID(c.id) }

func (c *CallbackRef) Start() {
	send := func(ev machine.Event) {
		c.listeners.notifyNext(ev)
		c.parent.Send(ev.WithOrigin(c.id))
	}
	receive := func(deliver func(machine.Event)) {
		c.mu.Lock()
		c.deliver = deliver
		c.mu.Unlock()
	}
	dispose := c.fn(send, receive)
	c.mu.Lock()
	c.dispose = dispose
	c.mu.Unlock()
}

// Observable is the minimal reactive-stream shape the observable adapter
// consumes: Subscribe registers callbacks and returns an unsubscribe
// function.
type Observable interface {
	Subscribe(next func(any), err func(error), complete func()) (unsubscribe func())
}

// ObservableRef forwards every next-value from the wrapped Observable to
// parent as an event; completion stops forwarding.
type ObservableRef struct {
	id     string
	parent machine.Actor
	source Observable

	listeners   listenerSet
	mu          sync.Mutex
	unsubscribe func()
	stopped     bool
}

var _ Ref = (*ObservableRef)(nil)
var _ Starter = (*ObservableRef)(nil)

// NewObservable builds an ObservableRef. Start subscribes to source.
func NewObservable(id string, parent machine.Actor, source Observable) *ObservableRef {
	return &ObservableRef{id: id, parent: parent, source: source}
}

func (o *ObservableRef) ID() string { return o.id }

func (o *ObservableRef) Send(machine.Event) {
	// an observable source accepts no input; sends to it are dropped.
}

func (o *ObservableRef) Subscribe(obs Observer) Subscription { return o.listeners.add(obs) }

func (o *ObservableRef) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	unsub := o.unsubscribe
	o.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (o *ObservableRef) MarshalJSON() ([]byte, error) { return marshalID(o.id) }

func (o *ObservableRef) Start() {
	unsub := o.source.Subscribe(
		func(v any) {
			o.listeners.notifyNext(v)
			o.parent.Send(machine.NewEvent(o.id).WithData(v).WithOrigin(o.id))
		},
		func(err error) {
			o.listeners.notifyError(err)
			o.parent.Send(machine.NewEvent("error." + o.id).WithData(err).WithOrigin(o.id))
		},
		func() {
			o.listeners.notifyComplete()
			o.parent.Send(machine.NewEvent("done.invoke." + o.id).WithOrigin(o.id))
		},
	)
	o.mu.Lock()
	o.unsubscribe = unsub
	o.mu.Unlock()
}

// InterpreterFactory builds the Ref for a bare machine, deferred until
// first use. Supplied by package interpreter to avoid a machine<->actor
// import cycle (actor must not import interpreter).
type InterpreterFactory func(m machine.Machine) Ref

// MachineRef is the bare-machine adapter: a machine.Machine value used
// directly as a spawn target, instantiated into a real actor lazily, on
// first Send or Subscribe.
type MachineRef struct {
	m       machine.Machine
	factory InterpreterFactory

	mu    sync.Mutex
	inner Ref
}

var _ Ref = (*MachineRef)(nil)
var _ Starter = (*MachineRef)(nil)

// NewMachineRef builds a MachineRef. factory is called at most once, the
// first time the adapter needs a live actor behind it.
func NewMachineRef(m machine.Machine, factory InterpreterFactory) *MachineRef {
	return &MachineRef{m: m, factory: factory}
}

func (r *MachineRef) resolve() Ref {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inner == nil {
		r.inner = r.factory(r.m)
		if s, ok := r.inner.(Starter); ok {
			s.Start()
		}
	}
	return r.inner
}

func (r *MachineRef) ID() string { return r.m.ID() }

func (r *MachineRef) Send(ev machine.Event) { r.resolve().Send(ev) }

func (r *MachineRef) Subscribe(obs Observer) Subscription { return r.resolve().Subscribe(obs) }

func (r *MachineRef) Stop() {
	r.mu.Lock()
	inner := r.inner
	r.mu.Unlock()
	if inner != nil {
		inner.Stop()
	}
}

func (r *MachineRef) MarshalJSON() ([]byte, error) { return marshalID(r.m.ID()) }

// Start eagerly resolves the underlying interpreter rather than waiting
// for first use, matching the "start the child" step for an invoke whose
// descriptor names a bare machine.
func (r *MachineRef) Start() { r.resolve() }
