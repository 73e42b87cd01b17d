package chartfile

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nocturnelabs/statecraft/machine"
)

const orderChart = `
id: order
initial: pending
context:
  attempts: 0
states:
  pending:
    on:
      SUBMIT:
        target: processing
        actions:
          - log: "order submitted"
  processing:
    entry:
      - send: { event: TIMEOUT, delay: 5s, id: timeout }
    on:
      DONE:
        target: shipped
        actions:
          - cancel: timeout
      TIMEOUT:
        target: failed
  shipped:
    final: true
  failed: {}
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(orderChart))
	if err != nil {
		t.Fatal(err)
	}
	if c.ID() != "order" {
		t.Errorf("ID = %q, want order", c.ID())
	}

	init := c.InitialState()
	if init.Value() != "pending" {
		t.Errorf("initial value = %v, want pending", init.Value())
	}
	if !init.Changed() {
		t.Error("initial snapshot should report changed")
	}

	wantPending := StateDef{
		On: map[string]TransitionDef{
			"SUBMIT": {
				Target:  "processing",
				Actions: []ActionDef{{Log: "order submitted"}},
			},
		},
	}
	if diff := cmp.Diff(wantPending, c.File().States["pending"]); diff != "" {
		t.Errorf("pending state mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"missing id", "initial: a\nstates:\n  a: {}\n"},
		{"undefined initial", "id: x\ninitial: nope\nstates:\n  a: {}\n"},
		{"undefined target", "id: x\ninitial: a\nstates:\n  a:\n    on:\n      GO: {target: nope}\n"},
		{"bad delay", "id: x\ninitial: a\nstates:\n  a:\n    entry:\n      - send: {event: T, delay: xyz}\n"},
		{"empty action", "id: x\ninitial: a\nstates:\n  a:\n    entry:\n      - {}\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.doc)); err == nil {
				t.Errorf("expected error for %s", tc.name)
			}
		})
	}
}

func TestTransition(t *testing.T) {
	c, err := Parse([]byte(orderChart))
	if err != nil {
		t.Fatal(err)
	}

	s := c.Transition(c.InitialState(), machine.NewEvent("SUBMIT"))
	if s.Value() != "processing" {
		t.Fatalf("value = %v, want processing", s.Value())
	}
	if !s.Changed() {
		t.Error("matched transition should report changed")
	}

	// transition actions first (log), then the target's entry (delayed send).
	acts := s.Actions()
	if len(acts) != 2 {
		t.Fatalf("got %d actions, want 2", len(acts))
	}
	if acts[0].Type != machine.ActionLog {
		t.Errorf("first action = %s, want log", acts[0].Type)
	}
	if acts[1].Type != machine.ActionSend || acts[1].ID != "timeout" {
		t.Errorf("second action = %+v, want delayed send id=timeout", acts[1])
	}
	if acts[1].Delay != 5*time.Second {
		t.Errorf("delay = %s, want 5s", acts[1].Delay)
	}
}

func TestTransition_Unmatched(t *testing.T) {
	c, err := Parse([]byte(orderChart))
	if err != nil {
		t.Fatal(err)
	}
	init := c.InitialState()
	s := c.Transition(init, machine.NewEvent("NOPE"))
	if s.Changed() {
		t.Error("unmatched event must not report changed")
	}
	if s.Value() != init.Value() {
		t.Errorf("value = %v, want %v", s.Value(), init.Value())
	}
	if s.History() != init {
		t.Error("unmatched transition should keep history back-pointer")
	}
}

func TestFinalState(t *testing.T) {
	c, err := Parse([]byte(orderChart))
	if err != nil {
		t.Fatal(err)
	}
	s := c.Transition(c.InitialState(), machine.NewEvent("SUBMIT"))
	s = c.Transition(s, machine.NewEvent("DONE"))
	if s.Value() != "shipped" {
		t.Fatalf("value = %v, want shipped", s.Value())
	}

	cfg := s.Configuration()
	if len(cfg) != 1 || cfg[0].Type != machine.NodeFinal {
		t.Fatalf("configuration = %+v, want one final node", cfg)
	}
	if cfg[0].Data == nil {
		t.Fatal("final node should resolve data")
	}

	// cancel for the pending timeout is emitted by the DONE transition.
	var sawCancel bool
	for _, a := range s.Actions() {
		if a.Type == machine.ActionCancel && a.ID == "timeout" {
			sawCancel = true
		}
	}
	if !sawCancel {
		t.Error("DONE transition should carry cancel(timeout)")
	}
}

func TestDoActionResolvesThroughBoundOptions(t *testing.T) {
	doc := `
id: x
initial: a
states:
  a:
    on:
      GO:
        target: b
        actions:
          - do: notify
  b: {}
`
	c, err := Parse([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}

	called := false
	c.Bind(machine.Options{Actions: map[string]machine.ActionFn{
		"notify": func(machine.ActionContext) error { called = true; return nil },
	}})

	s := c.Transition(c.InitialState(), machine.NewEvent("GO"))
	acts := s.Actions()
	if len(acts) != 1 || acts[0].Type != machine.ActionType("notify") {
		t.Fatalf("actions = %+v, want one notify action", acts)
	}

	fn := c.Options().Actions[string(acts[0].Type)]
	if fn == nil {
		t.Fatal("bound options must resolve the do action")
	}
	if err := fn(machine.ActionContext{}); err != nil || !called {
		t.Fatalf("bound implementation did not run (err=%v called=%v)", err, called)
	}
}
