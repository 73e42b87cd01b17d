package interpreter

import (
	"sync"

	"github.com/nocturnelabs/statecraft/actor"
	"github.com/nocturnelabs/statecraft/machine"
)

// Subscribe implements actor.Ref's observer protocol: next fires on
// every stored snapshot, complete fires once when the interpreter
// reaches a terminal configuration or stops, and — if the interpreter is
// already Running — the current snapshot is delivered synchronously
// before Subscribe returns, so a late subscriber never misses the state
// it would otherwise have to poll for.
func (i *Interpreter) Subscribe(obs actor.Observer) actor.Subscription {
	var handles []ListenerHandle

	if obs.Next != nil {
		handles = append(handles, i.listeners.transition.add(func(s machine.State) { obs.Next(s) }))
	}
	if obs.Complete != nil {
		// a terminal configuration cascades done → stop; complete must
		// still fire only once.
		var once sync.Once
		complete := func() { once.Do(obs.Complete) }
		handles = append(handles, i.listeners.done.add(func(machine.Event) { complete() }))
		handles = append(handles, i.listeners.stop.add(func(struct{}) { complete() }))
	}
	if obs.Error != nil {
		handles = append(handles, i.listeners.errorSet.add(func(ev machine.Event) {
			if err, ok := ev.Data.(error); ok {
				obs.Error(err)
				return
			}
			obs.Error(&PlatformErrorUnhandled{EventName: ev.Name})
		}))
	}

	if obs.Next != nil {
		if current := i.Current(); current != nil {
			obs.Next(current)
		}
	}

	return &subscriptionGroup{handles: handles}
}

type subscriptionGroup struct{ handles []ListenerHandle }

func (g *subscriptionGroup) Unsubscribe() {
	for _, h := range g.handles {
		h()
	}
}
