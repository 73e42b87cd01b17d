package tracing

import (
	"testing"

	"github.com/nocturnelabs/statecraft/interpreter"
	"github.com/nocturnelabs/statecraft/machine"
)

type traceState struct {
	value   string
	changed bool
	event   machine.Event
	final   bool
	hist    machine.State
}

func (s *traceState) Value() any                             { return s.value }
func (s *traceState) Context() any                           { return nil }
func (s *traceState) Event() machine.Event                   { return s.event }
func (s *traceState) Actions() []machine.Action              { return nil }
func (s *traceState) Changed() bool                          { return s.changed }
func (s *traceState) History() machine.State                 { return s.hist }
func (s *traceState) Children() map[string]machine.ChildRef { return nil }
func (s *traceState) Configuration() []machine.StateNode {
	typ := machine.NodeAtomic
	if s.final {
		typ = machine.NodeFinal
	}
	return []machine.StateNode{{ID: s.value, Type: typ, Parent: ""}}
}

var _ machine.State = (*traceState)(nil)

type traceMachine struct {
	id      string
	initial machine.State
	step    func(prev machine.State, ev machine.Event) machine.State
}

func (m *traceMachine) ID() string                 { return m.id }
func (m *traceMachine) InitialState() machine.State { return m.initial }
func (m *traceMachine) Options() machine.Options    { return machine.Options{} }
func (m *traceMachine) Transition(prev machine.State, ev machine.Event) machine.State {
	return m.step(prev, ev)
}

var _ machine.Machine = (*traceMachine)(nil)

func countingTraceMachine() *traceMachine {
	return &traceMachine{
		id:      "trace-counter",
		initial: &traceState{value: "a", changed: true},
		step: func(prev machine.State, ev machine.Event) machine.State {
			p := prev.(*traceState)
			if ev.Name != "NEXT" {
				return &traceState{value: p.value, changed: false, event: ev, hist: p}
			}
			return &traceState{value: p.value + "a", changed: true, event: ev, hist: p}
		},
	}
}

func finalTraceMachine() *traceMachine {
	return &traceMachine{
		id:      "trace-final",
		initial: &traceState{value: "running", changed: true},
		step: func(prev machine.State, ev machine.Event) machine.State {
			p := prev.(*traceState)
			if ev.Name != "FINISH" {
				return &traceState{value: p.value, changed: false, event: ev, hist: p}
			}
			return &traceState{value: "done", changed: true, event: ev, hist: p, final: true}
		},
	}
}

func interpret(t *testing.T, m machine.Machine, d *DevTools) *interpreter.Interpreter {
	t.Helper()
	i := interpreter.Interpret(m, interpreter.Options{DevTools: d})
	i.Start()
	t.Cleanup(i.Stop)
	return i
}

func newTracedInterpreter(t *testing.T, d *DevTools) *interpreter.Interpreter {
	return interpret(t, countingTraceMachine(), d)
}
