// Package machine declares the collaborator interfaces the interpreter
// drives but does not itself implement: the static statechart definition
// ("machine"), its transition function, and the state snapshots it
// produces. The machine compiler that resolves a (state, event) pair into
// a concrete transition, and the state-value data structure's own
// equality semantics, live behind these interfaces; this package only
// names the shape the interpreter needs. Machine.Transition is the pure
// half, interpreter owns everything effectful.
package machine

import "time"

// Event is the normalized unit of input the interpreter and machine
// exchange. Every entry point normalizes into this shape: a literal
// type string becomes Event{Name: s}.
type Event struct {
	Name   string
	Data   any
	Origin string
}

// NewEvent builds a plain named event with no payload.
func NewEvent(name string) Event { return Event{Name: name} }

// WithData returns a copy of e carrying data.
func (e Event) WithData(data any) Event {
	e.Data = data
	return e
}

// WithOrigin returns a copy of e tagged with the sending actor's id.
func (e Event) WithOrigin(origin string) Event {
	e.Origin = origin
	return e
}

// IsZero reports whether e carries no event name at all.
func (e Event) IsZero() bool { return e.Name == "" }

// ActionType discriminates the built-in action kinds the executor
// understands natively. Any other string is a user-defined type resolved
// through the implementation map or the action's own Exec.
type ActionType string

const (
	ActionSend   ActionType = "send"
	ActionCancel ActionType = "cancel"
	ActionStart  ActionType = "start"
	ActionStop   ActionType = "stop"
	ActionLog    ActionType = "log"
	ActionAssign ActionType = "assign"
)

// ActionContext is what an ActionFn is invoked with: the live context,
// the triggering event, the action descriptor itself, and the state it
// was produced from.
type ActionContext struct {
	Context any
	Event   Event
	Action  Action
	State   State
}

// ActionFn is a user- or machine-supplied action implementation.
type ActionFn func(actx ActionContext) error

// Action is a tagged record describing one effect to run. Fields not
// relevant to Type are left zero.
type Action struct {
	Type ActionType

	// ID names the action for later cancellation (send) or identifies the
	// invoked/stopped child (start, stop).
	ID string

	// Event and Delay apply to ActionSend: the event to dispatch, and how
	// long to wait before dispatching it. Delay == 0 means immediate.
	Event Event
	Delay time.Duration

	// To names the send target for ActionSend: "parent", an actor id, or
	// empty for self.
	To string

	// Src names the service factory to look up in Options.Services for
	// ActionStart.
	Src string

	// Data is extra payload: the invoke's construction data for
	// ActionStart, or the value to log for ActionLog.
	Data any

	// Label is the optional log label for ActionLog.
	Label string

	// AutoForward marks an ActionStart invoke as wanting every event the
	// parent receives auto-forwarded to it.
	AutoForward bool

	// Exec is an inline executable attached directly to the action,
	// consulted after the implementation map and before built-in
	// dispatch.
	Exec ActionFn
}

// ChildRef is the minimal surface a snapshot's children mirror needs:
// enough to identify an entry. actor.Ref satisfies this without either
// package importing the other's concrete types.
type ChildRef interface {
	ID() string
}

// Actor is the minimal surface a service factory needs to hand back: an
// addressable, sendable entity. actor.Ref satisfies this too.
type Actor interface {
	ID() string
	Send(Event)
}

// InvokeContext carries everything a ServiceFactory needs to construct a
// child actor for an ActionStart descriptor.
type InvokeContext struct {
	Parent Actor
	ID     string
	Data   any
	Event  Event
}

// ServiceFactory constructs a child actor for an invoke action.
type ServiceFactory func(InvokeContext) (Actor, error)

// NodeType classifies one entry in a State's Configuration.
type NodeType string

const (
	NodeAtomic   NodeType = "atomic"
	NodeCompound NodeType = "compound"
	NodeParallel NodeType = "parallel"
	NodeHistory  NodeType = "history"
	NodeFinal    NodeType = "final"
)

// StateNode describes one active leaf state in a snapshot's
// configuration.
type StateNode struct {
	ID     string
	Type   NodeType
	Parent string // parent state id; empty if this node's parent is the root machine.

	// Data resolves a final state's output expression against the final
	// context and triggering event. Nil if the descriptor has none.
	Data func(context any, event Event) any
}

// State is one immutable snapshot of machine state. Machines produce
// these; the interpreter only reads them and, for Children, writes
// through the map it's handed (maps are reference types, so no setter is
// needed).
type State interface {
	Value() any
	Context() any
	Event() Event
	Configuration() []StateNode
	Actions() []Action
	Changed() bool
	History() State

	// Children mirrors the interpreter's child set for observability.
	// The returned map is shared, not copied; interpreter writes are
	// visible to anyone holding the same State value.
	Children() map[string]ChildRef
}

// Options carries the machine-level action-implementation and
// service-factory maps the action executor consults before falling back
// to built-in dispatch.
type Options struct {
	Actions  map[string]ActionFn
	Services map[string]ServiceFactory
}

// Machine is the static chart definition: it produces an initial state
// and advances existing ones, both purely.
type Machine interface {
	ID() string
	InitialState() State
	Transition(state State, event Event) State
	Options() Options
}
