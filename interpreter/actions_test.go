package interpreter

import (
	"errors"
	"sync"
	"testing"

	"github.com/nocturnelabs/statecraft/machine"
)

// recordingLogger captures every Log call for assertions.
type recordingLogger struct {
	mu      sync.Mutex
	entries []struct {
		label string
		value any
	}
}

func (l *recordingLogger) Log(label string, value any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, struct {
		label string
		value any
	}{label, value})
}

func (l *recordingLogger) has(label string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.label == label {
			return true
		}
	}
	return false
}

func TestLogActionReachesTheConfiguredLogger(t *testing.T) {
	logger := &recordingLogger{}
	m := &scriptedMachine{
		id: "log",
		initial: &testState{value: "a", changed: true, actions: []machine.Action{
			{Type: machine.ActionLog, Label: "greeting", Data: "hello"},
		}},
	}
	i := Interpret(m, Options{Logger: logger})
	i.Start()

	if !logger.has("greeting") {
		t.Fatal("log action never reached the logger")
	}
}

func TestUnknownActionTypeWarnsAndContinues(t *testing.T) {
	logger := &recordingLogger{}
	m := &scriptedMachine{
		id: "unknown",
		initial: &testState{value: "a", changed: true, actions: []machine.Action{
			{Type: "fireTheMissiles"},
			{Type: machine.ActionLog, Label: "after", Data: true},
		}},
	}
	i := Interpret(m, Options{Logger: logger})
	i.Start()

	if !logger.has("warn") {
		t.Fatal("unknown action type should warn")
	}
	if !logger.has("after") {
		t.Fatal("actions after an unknown type must still run")
	}
}

func TestImplementationMapWinsOverBuiltinDispatch(t *testing.T) {
	var got machine.ActionContext
	m := &scriptedMachine{
		id: "impl",
		initial: &testState{value: "a", ctx: 42, changed: true, actions: []machine.Action{
			{Type: machine.ActionLog, Label: "x", Data: "y"},
		}},
		opts: machine.Options{Actions: map[string]machine.ActionFn{
			string(machine.ActionLog): func(actx machine.ActionContext) error {
				got = actx
				return nil
			},
		}},
	}
	logger := &recordingLogger{}
	i := Interpret(m, Options{Logger: logger})
	i.Start()

	if got.Action.Type != machine.ActionLog {
		t.Fatal("implementation-map entry was not invoked")
	}
	if got.Context != 42 {
		t.Fatalf("ActionContext.Context = %v, want 42", got.Context)
	}
	if logger.has("x") {
		t.Fatal("built-in log dispatch must not also run")
	}
}

func TestThrowingActionForwardsToParentAndRethrows(t *testing.T) {
	parent := &captureRef{id: "parent"}
	boom := errors.New("boom")
	m := &scriptedMachine{
		id: "throw",
		initial: &testState{value: "a", changed: true, actions: []machine.Action{
			{Type: "custom", Exec: func(machine.ActionContext) error { return boom }},
		}},
	}
	i := Interpret(m, Options{Parent: parent})

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("failed action must rethrow to the caller")
		}
		evs := parent.events()
		if len(evs) != 1 || evs[0].Name != "statecraft.error" {
			t.Fatalf("parent received %+v, want one statecraft.error event", evs)
		}
		var ae *actionError
		if !errors.As(evs[0].Data.(error), &ae) || !errors.Is(ae, boom) {
			t.Fatalf("forwarded data = %+v, want wrapped cause", evs[0].Data)
		}
	}()
	i.Start()
}

func TestStartActionConstructsRegistersAndStartsTheChild(t *testing.T) {
	child := &startableRef{captureRef: captureRef{id: "worker"}}
	m := &scriptedMachine{
		id: "invoke",
		initial: &testState{value: "a", changed: true, actions: []machine.Action{
			{Type: machine.ActionStart, ID: "worker", Src: "workerSrc", AutoForward: true},
		}},
		opts: machine.Options{Services: map[string]machine.ServiceFactory{
			"workerSrc": func(ictx machine.InvokeContext) (machine.Actor, error) {
				if ictx.ID != "worker" {
					t.Errorf("InvokeContext.ID = %q, want worker", ictx.ID)
				}
				return child, nil
			},
		}},
	}
	i := Interpret(m, Options{})
	i.Start()

	if !child.started {
		t.Fatal("child must be started before the producing action returns")
	}
	i.mu.Lock()
	_, inChildren := i.children["worker"]
	_, inForward := i.forwardTo["worker"]
	i.mu.Unlock()
	if !inChildren || !inForward {
		t.Fatalf("children=%v forwardTo=%v, want both to contain worker", inChildren, inForward)
	}
	if _, ok := i.Current().Children()["worker"]; !ok {
		t.Fatal("snapshot children mirror missing the new child")
	}
}

func TestStartActionFactoryErrorBecomesSelfErrorEvent(t *testing.T) {
	var seen []string
	m := &scriptedMachine{
		id: "invokefail",
		initial: &testState{value: "a", changed: true, actions: []machine.Action{
			{Type: machine.ActionStart, ID: "w", Src: "failing"},
		}},
		opts: machine.Options{Services: map[string]machine.ServiceFactory{
			"failing": func(machine.InvokeContext) (machine.Actor, error) {
				return nil, errors.New("nope")
			},
		}},
	}
	m.step = func(prev machine.State, ev machine.Event) machine.State {
		seen = append(seen, ev.Name)
		return &testState{value: "a", changed: false, event: ev, hist: prev}
	}
	i := Interpret(m, Options{})
	i.Start()

	found := false
	for _, name := range seen {
		if name == "error.w" {
			found = true
		}
	}
	if !found {
		t.Fatalf("transition saw %v, want an error.w event", seen)
	}
}

func TestMissingServiceFactoryIsASoftWarning(t *testing.T) {
	logger := &recordingLogger{}
	m := &scriptedMachine{
		id: "noservice",
		initial: &testState{value: "a", changed: true, actions: []machine.Action{
			{Type: machine.ActionStart, ID: "w", Src: "ghost"},
		}},
	}
	i := Interpret(m, Options{Logger: logger})
	i.Start()

	if !logger.has("warn") {
		t.Fatal("missing service factory should warn, not fail")
	}
	if i.Status() != Running {
		t.Fatal("interpreter must keep running after a soft misconfiguration")
	}
}

func TestStopActionStopsTheNamedChild(t *testing.T) {
	child := &startableRef{captureRef: captureRef{id: "w"}}
	steps := 0
	m := &scriptedMachine{
		id: "stopchild",
		initial: &testState{value: "a", changed: true, actions: []machine.Action{
			{Type: machine.ActionStart, ID: "w", Src: "src"},
		}},
		opts: machine.Options{Services: map[string]machine.ServiceFactory{
			"src": func(machine.InvokeContext) (machine.Actor, error) { return child, nil },
		}},
	}
	m.step = func(prev machine.State, ev machine.Event) machine.State {
		steps++
		return &testState{value: "b", changed: true, event: ev, hist: prev,
			actions: []machine.Action{{Type: machine.ActionStop, ID: "w"}}}
	}
	i := Interpret(m, Options{})
	i.Start()
	i.Send(machine.NewEvent("GO"))

	if !child.stopped {
		t.Fatal("stop action did not stop the child")
	}
	i.mu.Lock()
	_, still := i.children["w"]
	i.mu.Unlock()
	if still {
		t.Fatal("stopped child must leave the child set")
	}
}

func TestExecuteFalseSkipsActions(t *testing.T) {
	logger := &recordingLogger{}
	f := false
	m := &scriptedMachine{
		id: "noexec",
		initial: &testState{value: "a", changed: true, actions: []machine.Action{
			{Type: machine.ActionLog, Label: "skipped", Data: 1},
		}},
	}
	i := Interpret(m, Options{Execute: &f, Logger: logger})
	i.Start()

	if logger.has("skipped") {
		t.Fatal("Execute=false must leave actions unexecuted")
	}
	if len(i.Current().Actions()) != 1 {
		t.Fatal("actions must stay attached to the snapshot")
	}
}

// startableRef is a captureRef that also records Start calls.
type startableRef struct {
	captureRef
	started bool
}

func (s *startableRef) Start() { s.started = true }
