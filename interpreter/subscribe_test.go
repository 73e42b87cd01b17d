package interpreter

import (
	"errors"
	"testing"

	"github.com/nocturnelabs/statecraft/actor"
	"github.com/nocturnelabs/statecraft/machine"
)

func TestSubscribeDeliversTheCurrentSnapshotSynchronously(t *testing.T) {
	i := Interpret(countingMachine(), Options{})
	i.Start()

	var got machine.State
	sub := i.Subscribe(actor.Observer{Next: func(v any) { got = v.(machine.State) }})
	defer sub.Unsubscribe()

	if got == nil || got.Value() != "a" {
		t.Fatalf("Subscribe did not deliver the current snapshot synchronously: %v", got)
	}
}

func TestSubscribeNextFiresOnLaterTransitions(t *testing.T) {
	i := Interpret(countingMachine(), Options{})
	i.Start()

	var values []any
	sub := i.Subscribe(actor.Observer{Next: func(v any) { values = append(values, v.(machine.State).Value()) }})
	defer sub.Unsubscribe()

	i.Send(machine.NewEvent("NEXT"))

	if len(values) < 2 || values[len(values)-1] != "aa" {
		t.Fatalf("values = %v, want the synchronous delivery followed by the NEXT transition", values)
	}
}

func TestSubscribeCompleteFiresOnStop(t *testing.T) {
	i := Interpret(countingMachine(), Options{})
	i.Start()

	completed := false
	sub := i.Subscribe(actor.Observer{Complete: func() { completed = true }})
	defer sub.Unsubscribe()

	i.Stop()
	if !completed {
		t.Fatal("expected Complete to fire when the interpreter stops")
	}
}

func TestSubscribeUnsubscribeIsIdempotent(t *testing.T) {
	i := Interpret(countingMachine(), Options{})
	i.Start()

	calls := 0
	sub := i.Subscribe(actor.Observer{Next: func(any) { calls++ }})
	sub.Unsubscribe()
	sub.Unsubscribe() // must not panic or double-remove anything

	before := calls
	i.Send(machine.NewEvent("NEXT"))
	if calls != before {
		t.Fatalf("listener still fired %d times after Unsubscribe", calls-before)
	}
}

func TestSubscribeErrorReceivesTheUnderlyingError(t *testing.T) {
	i := Interpret(countingMachine(), Options{})
	i.Start()

	var got error
	sub := i.Subscribe(actor.Observer{Error: func(err error) { got = err }})
	defer sub.Unsubscribe()

	i.listeners.errorSet.notify(machine.NewEvent("statecraft.error").WithData(errors.New("boom")))

	if got == nil || got.Error() != "boom" {
		t.Fatalf("Observer.Error got %v, want boom", got)
	}
}

func TestSubscribeCompleteFiresOnceAcrossDoneAndStop(t *testing.T) {
	m := &scriptedMachine{
		id:      "complete-once",
		initial: &testState{value: "a", changed: true},
		step: func(prev machine.State, ev machine.Event) machine.State {
			return &testState{value: "end", changed: true, event: ev, hist: prev, final: true}
		},
	}
	i := Interpret(m, Options{})
	i.Start()

	completes := 0
	i.Subscribe(actor.Observer{Complete: func() { completes++ }})

	// reaching the final configuration fires done listeners and then
	// cascades into Stop; the observer must still complete exactly once.
	i.Send(machine.NewEvent("FINISH"))

	if completes != 1 {
		t.Fatalf("Complete fired %d times, want exactly 1", completes)
	}
}
