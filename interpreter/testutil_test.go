package interpreter

import (
	"sync"

	"github.com/nocturnelabs/statecraft/actor"
	"github.com/nocturnelabs/statecraft/machine"
)

// testState is a bare machine.State implementation tests build by hand,
// giving full control over Actions/Changed/Configuration without needing
// a real chart.
type testState struct {
	value   any
	ctx     any
	event   machine.Event
	actions []machine.Action
	changed bool
	hist    machine.State
	final   bool
	kids    map[string]machine.ChildRef
}

func (s *testState) Value() any                { return s.value }
func (s *testState) Context() any              { return s.ctx }
func (s *testState) Event() machine.Event      { return s.event }
func (s *testState) Actions() []machine.Action { return s.actions }
func (s *testState) Changed() bool             { return s.changed }
func (s *testState) History() machine.State    { return s.hist }

func (s *testState) Children() map[string]machine.ChildRef {
	if s.kids == nil {
		s.kids = make(map[string]machine.ChildRef)
	}
	return s.kids
}

func (s *testState) Configuration() []machine.StateNode {
	typ := machine.NodeAtomic
	var data func(any, machine.Event) any
	if s.final {
		typ = machine.NodeFinal
		data = func(ctx any, _ machine.Event) any { return ctx }
	}
	return []machine.StateNode{{ID: "s", Type: typ, Parent: "", Data: data}}
}

var _ machine.State = (*testState)(nil)

// scriptedMachine is a machine.Machine whose Transition is whatever step
// the test supplies.
type scriptedMachine struct {
	id      string
	initial machine.State
	step    func(prev machine.State, ev machine.Event) machine.State
	opts    machine.Options
}

func (m *scriptedMachine) ID() string                   { return m.id }
func (m *scriptedMachine) InitialState() machine.State   { return m.initial }
func (m *scriptedMachine) Options() machine.Options      { return m.opts }
func (m *scriptedMachine) Transition(prev machine.State, ev machine.Event) machine.State {
	return m.step(prev, ev)
}

var _ machine.Machine = (*scriptedMachine)(nil)

// captureRef is an actor.Ref test double recording every event it's sent.
type captureRef struct {
	mu       sync.Mutex
	id       string
	received []machine.Event
	stopped  bool
}

func (c *captureRef) ID() string { return c.id }

func (c *captureRef) Send(ev machine.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, ev)
}

func (c *captureRef) events() []machine.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]machine.Event, len(c.received))
	copy(out, c.received)
	return out
}

func (c *captureRef) Subscribe(actor.Observer) actor.Subscription { return noopSubscription{} }

func (c *captureRef) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
}

func (c *captureRef) MarshalJSON() ([]byte, error) { return []byte(`{"id":"` + c.id + `"}`), nil }

type noopSubscription struct{}

func (noopSubscription) Unsubscribe() {}

var _ actor.Ref = (*captureRef)(nil)
