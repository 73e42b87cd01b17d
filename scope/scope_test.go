package scope

import (
	"testing"

	"github.com/nocturnelabs/statecraft/actor"
	"github.com/nocturnelabs/statecraft/machine"
)

type fakeInterpreter struct{ id string }

func (f *fakeInterpreter) ID() string          { return f.id }
func (f *fakeInterpreter) Send(machine.Event)  {}
func (f *fakeInterpreter) Spawn(entity any, name string, opts actor.SpawnOptions) (actor.Ref, error) {
	return actor.NewNull(name), nil
}

func TestCurrentEmptyByDefault(t *testing.T) {
	if _, ok := Current(); ok {
		t.Fatal("expected no current interpreter on a fresh stack")
	}
}

func TestEnterPushesAndPopRestores(t *testing.T) {
	a := &fakeInterpreter{id: "a"}
	b := &fakeInterpreter{id: "b"}

	popA := Enter(a)
	if got, ok := Current(); !ok || got != a {
		t.Fatalf("Current() = %v, %v; want a, true", got, ok)
	}

	popB := Enter(b)
	if got, _ := Current(); got != b {
		t.Fatalf("Current() = %v; want b", got)
	}
	if Depth() != 2 {
		t.Fatalf("Depth() = %d, want 2", Depth())
	}

	popB()
	if got, ok := Current(); !ok || got != a {
		t.Fatalf("after popB, Current() = %v, %v; want a, true", got, ok)
	}

	popA()
	if _, ok := Current(); ok {
		t.Fatal("expected empty stack after popping everything")
	}
}

func TestEnterPopSurvivesPanic(t *testing.T) {
	a := &fakeInterpreter{id: "a"}

	func() {
		pop := Enter(a)
		defer pop()
		defer func() { recover() }()
		panic("boom")
	}()

	if _, ok := Current(); ok {
		t.Fatal("expected stack to be empty after deferred pop ran past a panic")
	}
}
