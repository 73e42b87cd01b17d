package interpreter

import (
	"github.com/nocturnelabs/statecraft/actor"
	"github.com/nocturnelabs/statecraft/machine"
)

// runActions executes every action state.Actions() carries, in order:
// consult the implementation map first, fall back to built-in dispatch by
// Action.Type. A batch snapshot carries per-action producing states so
// each action observes the context it was emitted under, not the final
// fold result.
func (i *Interpreter) runActions(state machine.State) {
	opts := i.machine.Options()
	if b, ok := state.(*batchState); ok {
		for idx, act := range b.actions {
			i.runAction(b.bound[idx], act, opts)
		}
		return
	}
	for _, act := range state.Actions() {
		i.runAction(state, act, opts)
	}
}

func (i *Interpreter) runAction(state machine.State, act machine.Action, opts machine.Options) {
	exec := opts.Actions[string(act.Type)]
	if exec == nil {
		exec = act.Exec
	}
	if exec != nil {
		i.invokeGuarded(state, act, exec)
		return
	}

	switch act.Type {
	case machine.ActionSend:
		i.execSend(act)
	case machine.ActionCancel:
		i.execCancel(act)
	case machine.ActionStart:
		i.execStart(state, act)
	case machine.ActionStop:
		i.execStop(act)
	case machine.ActionLog:
		i.execLog(act)
	case machine.ActionAssign:
		// assignment was already applied by the machine collaborator
		// during transition computation; nothing to do here.
	default:
		i.opts.Logger.Log("warn", "unknown action type: "+string(act.Type))
	}
}

// invokeGuarded runs exec, catching both a returned error and a panic.
// Either is forwarded to parent as a bare "statecraft.error" platform
// event and then rethrown so the enclosing microtask fails visibly.
func (i *Interpreter) invokeGuarded(state machine.State, act machine.Action, exec machine.ActionFn) {
	actx := machine.ActionContext{
		Context: state.Context(),
		Event:   state.Event(),
		Action:  act,
		State:   state,
	}

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = asError(r)
			}
		}()
		return exec(actx)
	}()

	if err == nil {
		return
	}

	wrapped := &actionError{ActionType: string(act.Type), Cause: err}

	i.mu.Lock()
	parent := i.parent
	i.mu.Unlock()
	if parent != nil {
		parent.Send(machine.NewEvent("statecraft.error").WithData(wrapped).WithOrigin(i.id))
	}

	panic(wrapped)
}

func (i *Interpreter) execSend(act machine.Action) {
	if act.Delay > 0 {
		handle := i.opts.Clock.After(act.Delay, func() { i.fireDelayed(act) })
		i.mu.Lock()
		i.delayedEvents[act.ID] = handle
		i.mu.Unlock()
		return
	}
	i.dispatchSend(act)
}

func (i *Interpreter) fireDelayed(act machine.Action) {
	i.mu.Lock()
	delete(i.delayedEvents, act.ID)
	i.mu.Unlock()
	i.dispatchSend(act)
}

func (i *Interpreter) dispatchSend(act machine.Action) {
	i.listeners.send.notify(act.Event)
	if act.To != "" {
		i.sendTo(act.Event, act.To)
		return
	}
	_ = i.TrySend(act.Event)
}

func (i *Interpreter) execCancel(act machine.Action) {
	i.mu.Lock()
	handle, ok := i.delayedEvents[act.ID]
	if ok {
		delete(i.delayedEvents, act.ID)
	}
	i.mu.Unlock()
	if ok {
		handle.Cancel()
	}
}

func (i *Interpreter) execStart(state machine.State, act machine.Action) {
	factory, ok := i.machine.Options().Services[act.Src]
	if !ok {
		i.opts.Logger.Log("warn", "no service factory registered for invoke src: "+act.Src)
		return
	}

	child, err := i.invokeFactory(factory, act)
	if err != nil {
		_ = i.TrySend(machine.NewEvent("error." + act.ID).WithData(err).WithOrigin(act.ID))
		return
	}

	ref, ok := child.(actor.Ref)
	if !ok {
		i.opts.Logger.Log("warn", "invoke src "+act.Src+" did not return a supervisable actor")
		return
	}

	i.mu.Lock()
	i.children[act.ID] = ref
	if act.AutoForward {
		i.forwardTo[act.ID] = struct{}{}
	}
	i.mu.Unlock()

	if kids := state.Children(); kids != nil {
		kids[act.ID] = ref
	}

	if s, ok := ref.(actor.Starter); ok {
		s.Start()
	}
}

func (i *Interpreter) invokeFactory(factory machine.ServiceFactory, act machine.Action) (child machine.Actor, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = asError(r)
		}
	}()
	return factory(machine.InvokeContext{Parent: i, ID: act.ID, Data: act.Data, Event: act.Event})
}

func (i *Interpreter) execStop(act machine.Action) {
	i.stopChild(act.ID)
}

func (i *Interpreter) execLog(act machine.Action) {
	i.opts.Logger.Log(act.Label, act.Data)
}
