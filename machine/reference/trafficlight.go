// Package reference is a minimal, hand-written machine.Machine
// implementation: a traffic light that cycles red/green/yellow on a
// delayed TIMER it sends itself, runs a counter service while green, and
// settles into a final state after a fixed number of cycles. It exists
// only to exercise the interpreter in tests — it is not a general
// statechart compiler, which stays out of scope.
package reference

import (
	"sync/atomic"
	"time"

	"github.com/nocturnelabs/statecraft/actor"
	"github.com/nocturnelabs/statecraft/machine"
)

// Context is the traffic light's extended state.
type Context struct {
	Cycles int
}

const (
	Red    = "red"
	Green  = "green"
	Yellow = "yellow"
	Done   = "done"

	EventTimer = "TIMER"
	EventReset = "RESET"
)

// MaxCycles is how many red→green→yellow cycles run before the chart
// settles into Done.
const MaxCycles = 3

var actionSeq uint64

func nextActionID() string {
	n := atomic.AddUint64(&actionSeq, 1)
	return "reference-action-" + itoa(n)
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// TrafficLight is a three-state cycle with a counting service and a
// terminal state, satisfying machine.Machine.
type TrafficLight struct {
	id       string
	services map[string]machine.ServiceFactory
	actions  map[string]machine.ActionFn
}

// New builds a TrafficLight identified by id, with a "counter" service
// factory wired for the green state's invoke.
func New(id string) *TrafficLight {
	return &TrafficLight{
		id: id,
		services: map[string]machine.ServiceFactory{
			"counter": counterService,
		},
	}
}

var _ machine.Machine = (*TrafficLight)(nil)
var _ machine.State = (*state)(nil)

func (m *TrafficLight) ID() string { return m.id }

func (m *TrafficLight) Options() machine.Options {
	return machine.Options{Actions: m.actions, Services: m.services}
}

func (m *TrafficLight) InitialState() machine.State {
	return &state{
		value:   Red,
		ctx:     Context{},
		event:   machine.NewEvent("statecraft.init"),
		changed: true,
		actions: []machine.Action{timerAction(2 * time.Second)},
	}
}

// Transition is the pure (state, event) -> state step. Unrecognized
// events, including platform-error events, leave the snapshot unchanged
// (Changed() == false) so the interpreter's escalation path has
// something real to exercise.
func (m *TrafficLight) Transition(prev machine.State, ev machine.Event) machine.State {
	cur, _ := prev.(*state)
	if cur == nil {
		cur = m.InitialState().(*state)
	}

	if ev.Name == EventReset {
		return &state{value: Red, ctx: Context{}, event: ev, changed: true,
			actions: []machine.Action{timerAction(2 * time.Second)}, history: cur}
	}

	if ev.Name != EventTimer {
		return &state{value: cur.value, ctx: cur.ctx, event: ev, changed: false, history: cur}
	}

	switch cur.value {
	case Red:
		ctx := Context{Cycles: cur.ctx.Cycles}
		return &state{
			value: Green, ctx: ctx, event: ev, changed: true, history: cur,
			actions: []machine.Action{
				timerAction(2 * time.Second),
				{Type: machine.ActionStart, ID: "counter", Src: "counter", Data: ctx.Cycles},
				{Type: machine.ActionLog, Label: "entered", Data: Green},
			},
		}
	case Green:
		return &state{
			value: Yellow, ctx: cur.ctx, event: ev, changed: true, history: cur,
			actions: []machine.Action{
				timerAction(1 * time.Second),
				{Type: machine.ActionStop, ID: "counter"},
			},
		}
	case Yellow:
		ctx := Context{Cycles: cur.ctx.Cycles + 1}
		if ctx.Cycles >= MaxCycles {
			return &state{
				value: Done, ctx: ctx, event: ev, changed: true, history: cur,
				final: true,
			}
		}
		return &state{
			value: Red, ctx: ctx, event: ev, changed: true, history: cur,
			actions: []machine.Action{timerAction(2 * time.Second)},
		}
	default:
		return &state{value: cur.value, ctx: cur.ctx, event: ev, changed: false, history: cur}
	}
}

func timerAction(delay time.Duration) machine.Action {
	return machine.Action{
		Type:  machine.ActionSend,
		ID:    nextActionID(),
		Event: machine.NewEvent(EventTimer),
		Delay: delay,
	}
}

// counterService is a callback-shaped factory; the adapter it returns
// counts every event delivered to it, giving the
// `start`/`stop` action pair a real target to exercise end to end.
func counterService(ictx machine.InvokeContext) (machine.Actor, error) {
	return actor.NewCallback(ictx.ID, ictx.Parent, func(_ actor.Send, receive actor.Receive) func() {
		var ticks uint64
		receive(func(machine.Event) { atomic.AddUint64(&ticks, 1) })
		return func() {}
	}), nil
}

// state is the immutable snapshot TrafficLight produces: a single
// top-level node per snapshot, actions attached at the point of
// transition rather than recomputed afterward.
type state struct {
	value   string
	ctx     Context
	event   machine.Event
	actions []machine.Action
	changed bool
	history machine.State
	final   bool
	kids    map[string]machine.ChildRef
}

func (s *state) Value() any                { return s.value }
func (s *state) Context() any              { return s.ctx }
func (s *state) Event() machine.Event      { return s.event }
func (s *state) Actions() []machine.Action { return s.actions }
func (s *state) Changed() bool             { return s.changed }
func (s *state) History() machine.State    { return s.history }

func (s *state) Children() map[string]machine.ChildRef {
	if s.kids == nil {
		s.kids = make(map[string]machine.ChildRef)
	}
	return s.kids
}

func (s *state) Configuration() []machine.StateNode {
	typ := machine.NodeAtomic
	var data func(any, machine.Event) any
	if s.final {
		typ = machine.NodeFinal
		data = func(ctx any, _ machine.Event) any { return ctx }
	}
	return []machine.StateNode{{ID: s.value, Type: typ, Parent: "", Data: data}}
}
