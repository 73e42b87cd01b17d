package interpreter

import "github.com/nocturnelabs/statecraft/machine"

// DoneInvokePrefix names the event the interpreter sends to its parent
// (and, with the same full name, to its own done-listeners) when a
// terminal configuration is reached.
const DoneInvokePrefix = "done.invoke."

// update is the heart of the microstep: store the snapshot, run its
// actions, notify dev-tools, fan out to listeners in the order actions →
// event → transition → context → done/stop, and detect terminality.
//
// Session-id stamping is intentionally not performed here: it would
// require a setter on the State collaborator, and State's own shape is
// this package's out-of-scope dependency. Callers that need the session
// id on a snapshot read it from the owning Interpreter instead
// (SessionID()).
func (i *Interpreter) update(next machine.State, ev machine.Event) {
	i.mu.Lock()
	i.current = next
	execute := *i.opts.Execute
	i.mu.Unlock()

	if execute {
		i.runActions(next)
	}

	if i.opts.DevTools != nil {
		i.opts.DevTools.OnMicrostep(i, next)
	}

	if nextEv := next.Event(); !nextEv.IsZero() {
		i.listeners.event.notify(nextEv)
	}

	i.listeners.transition.notify(next)

	var prevCtx any
	if hist := next.History(); hist != nil {
		prevCtx = hist.Context()
	}
	i.listeners.context.notify(contextChange{Context: next.Context(), PrevContext: prevCtx})

	if done, final := isInFinalState(next.Configuration()); done {
		i.finish(next, ev, final)
	}
}

// isInFinalState reports whether every active node whose parent is the
// root machine (Parent == "") has type Final, and if so returns the
// first such node.
func isInFinalState(nodes []machine.StateNode) (bool, *machine.StateNode) {
	var topLevel []machine.StateNode
	for _, n := range nodes {
		if n.Parent == "" {
			topLevel = append(topLevel, n)
		}
	}
	if len(topLevel) == 0 {
		return false, nil
	}
	for i := range topLevel {
		if topLevel[i].Type != machine.NodeFinal {
			return false, nil
		}
	}
	final := topLevel[0]
	return true, &final
}

func (i *Interpreter) finish(final machine.State, ev machine.Event, node *machine.StateNode) {
	var data any
	if node.Data != nil {
		data = node.Data(final.Context(), ev)
	}

	doneEvent := machine.NewEvent(DoneInvokePrefix + i.id).WithData(data).WithOrigin(i.id)
	i.listeners.done.notify(doneEvent)

	i.Stop()

	i.mu.Lock()
	parent := i.parent
	i.mu.Unlock()
	if parent != nil {
		parent.Send(doneEvent)
	}
}
