// Package interpreter is the runtime core: it drives a machine.Machine
// through event-triggered transitions, executes the actions each
// transition emits, supervises spawned child actors, and fans state out
// to observers. It owns everything effectful; machine.Machine stays
// pure.
package interpreter

import (
	"encoding/json"
	"sync"

	"github.com/nocturnelabs/statecraft/actor"
	"github.com/nocturnelabs/statecraft/clock"
	"github.com/nocturnelabs/statecraft/machine"
	"github.com/nocturnelabs/statecraft/registry"
	"github.com/nocturnelabs/statecraft/scheduler"
	"github.com/nocturnelabs/statecraft/scope"
)

// Status is the interpreter's three-valued lifecycle state.
type Status int

const (
	NotStarted Status = iota
	Running
	Stopped
)

func (s Status) String() string {
	switch s {
	case NotStarted:
		return "NotStarted"
	case Running:
		return "Running"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Logger is the sink `log` actions write to.
type Logger interface {
	Log(label string, value any)
}

// DevTools is the optional channel the interpreter reports every
// microstep to. Kept as a narrow interface so a build that never
// attaches one carries no cost.
type DevTools interface {
	Attach(i *Interpreter)
	OnMicrostep(i *Interpreter, state machine.State)
}

// Options configures an Interpreter. Execute and DeferEvents are
// pointers so a zero Options value can still express "default true" for
// both; applyDefaults only fills fields the caller left nil.
type Options struct {
	// Execute disables running the action list when explicitly set
	// false; nil means the default of true.
	Execute *bool

	// DeferEvents controls whether pre-start sends queue instead of
	// failing; nil means the default of true.
	DeferEvents *bool

	Clock    clock.Clock
	Logger   Logger
	Parent   actor.Ref
	ID       string
	DevTools DevTools
}

func boolPtr(b bool) *bool { return &b }

func applyDefaults(opts Options) Options {
	if opts.Execute == nil {
		opts.Execute = boolPtr(true)
	}
	if opts.DeferEvents == nil {
		opts.DeferEvents = boolPtr(true)
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = discardLogger{}
	}
	return opts
}

type discardLogger struct{}

func (discardLogger) Log(string, any) {}

// Interpreter drives one running machine instance.
type Interpreter struct {
	machine   machine.Machine
	id        string
	sessionID string
	opts      Options

	mu sync.Mutex

	status        Status
	current       machine.State
	initialState  machine.State
	initialCached bool

	parent    actor.Ref
	children  map[string]actor.Ref
	forwardTo map[string]struct{}

	delayedEvents map[string]clock.Handle

	scheduler *scheduler.Scheduler

	listeners listenerSets
}

var _ actor.Ref = (*Interpreter)(nil)
var _ actor.Starter = (*Interpreter)(nil)
var _ registry.Handle = (*Interpreter)(nil)

// Interpret constructs an inert Interpreter for m. Nothing runs until
// Start or StartWithState is called.
func Interpret(m machine.Machine, opts Options) *Interpreter {
	opts = applyDefaults(opts)

	id := opts.ID
	if id == "" {
		id = m.ID()
	}

	i := &Interpreter{
		machine:       m,
		id:            id,
		sessionID:     registry.NewSessionID(),
		opts:          opts,
		parent:        opts.Parent,
		children:      make(map[string]actor.Ref),
		forwardTo:     make(map[string]struct{}),
		delayedEvents: make(map[string]clock.Handle),
		scheduler:     scheduler.New(*opts.DeferEvents),
	}
	return i
}

// ID returns the interpreter's id (defaults to the machine's id).
func (i *Interpreter) ID() string { return i.id }

// SessionID returns the process-unique registry key this interpreter is
// (or was) registered under.
func (i *Interpreter) SessionID() string { return i.sessionID }

// Status reports the current lifecycle state.
func (i *Interpreter) Status() Status {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status
}

// Current returns the last stored snapshot, or nil before Start.
func (i *Interpreter) Current() machine.State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.current
}

// InitialState memoizes and returns the machine's initial snapshot. The
// machine call runs under service scope, like every Transition call, so
// a Spawn made from inside InitialState attaches to this interpreter —
// and it runs outside i.mu, because that Spawn re-enters the child
// bookkeeping.
func (i *Interpreter) InitialState() machine.State {
	i.mu.Lock()
	if i.initialCached {
		s := i.initialState
		i.mu.Unlock()
		return s
	}
	i.mu.Unlock()

	pop := scope.Enter(i)
	defer pop()
	s := i.machine.InitialState()

	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.initialCached {
		i.initialState = s
		i.initialCached = true
	}
	return i.initialState
}

// Sender returns a zero-argument function that sends ev and resolves to
// the snapshot current right after that send's microstep is drained.
func (i *Interpreter) Sender(ev machine.Event) func() machine.State {
	return func() machine.State {
		i.Send(ev)
		return i.Current()
	}
}

// MarshalJSON renders the interpreter as its actor identity, matching
// every other Ref variant's toJSON shape.
func (i *Interpreter) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}{ID: i.id, Status: i.Status().String()})
}
