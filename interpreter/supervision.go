package interpreter

import (
	"fmt"
	"log/slog"

	"github.com/nocturnelabs/statecraft/actor"
	"github.com/nocturnelabs/statecraft/machine"
	"github.com/nocturnelabs/statecraft/registry"
	"github.com/nocturnelabs/statecraft/scope"
)

var _ scope.Interpreter = (*Interpreter)(nil)

// Spawn dispatches on the runtime shape of entity: a machine.Machine
// becomes a nested interpreter, a pre-built actor.Ref is adopted
// verbatim, actor.Future/CallbackFn/Observable each get their dedicated
// adapter, anything else is ErrCannotSpawn. Unlike the action executor's
// `start` handling, this method is never invoked as part of running an
// invoke descriptor, so it always starts the child itself.
func (i *Interpreter) Spawn(entity any, name string, opts actor.SpawnOptions) (actor.Ref, error) {
	if name == "" {
		name = registry.NewSessionID()
	}

	switch v := entity.(type) {
	case machine.Machine:
		return i.register(name, actor.FromInterpreter(Interpret(v, Options{Parent: i})), opts), nil
	case actor.Ref:
		return i.register(name, v, opts), nil
	case actor.Future:
		return i.register(name, actor.NewFuture(name, i, v), opts), nil
	case actor.CallbackFn:
		return i.register(name, actor.NewCallback(name, i, v), opts), nil
	case func(actor.Send, actor.Receive) func():
		return i.register(name, actor.NewCallback(name, i, actor.CallbackFn(v)), opts), nil
	case actor.Observable:
		return i.register(name, actor.NewObservable(name, i, v), opts), nil
	default:
		return nil, &ErrCannotSpawn{Kind: fmt.Sprintf("%T", entity)}
	}
}

// Spawn is the free entry point: it attaches to whatever interpreter is
// currently executing a transition, via the scope stack, so user machine
// code never needs to thread a parent handle through by hand. Called
// with an empty stack, it returns a Null actor and warns.
func Spawn(entity any, name string, opts actor.SpawnOptions) (actor.Ref, error) {
	cur, ok := scope.Current()
	if !ok {
		slog.Warn("spawn called with no running interpreter in scope", "name", name)
		return actor.NewNull(name), nil
	}
	return cur.Spawn(entity, name, opts)
}

// register attaches ref under name. A name already in use is a sibling
// collision: the prior entry is stopped and replaced, so an id only ever
// names one live actor.
func (i *Interpreter) register(name string, ref actor.Ref, opts actor.SpawnOptions) actor.Ref {
	i.mu.Lock()
	if prior, ok := i.children[name]; ok {
		i.mu.Unlock()
		prior.Stop()
		i.mu.Lock()
	}
	i.children[name] = ref
	if opts.AutoForward {
		i.forwardTo[name] = struct{}{}
	}
	current := i.current
	i.mu.Unlock()

	if current != nil {
		if kids := current.Children(); kids != nil {
			kids[name] = ref
		}
	}

	if s, ok := ref.(actor.Starter); ok {
		s.Start()
	}
	return ref
}

// removeChild deletes id from the child set, the auto-forward set, and
// the current snapshot's children mirror, without stopping it.
func (i *Interpreter) removeChild(id string) {
	i.mu.Lock()
	delete(i.children, id)
	delete(i.forwardTo, id)
	current := i.current
	i.mu.Unlock()

	if current != nil {
		if kids := current.Children(); kids != nil {
			delete(kids, id)
		}
	}
}

// stopChild removes and stops the child named id; a no-op if absent.
func (i *Interpreter) stopChild(id string) {
	i.mu.Lock()
	ref, ok := i.children[id]
	i.mu.Unlock()
	if !ok {
		return
	}
	i.removeChild(id)
	ref.Stop()
}

// Forward sends ev to every child in the auto-forward set. A forwardTo
// entry whose child has gone missing is a fatal bug: forwardTo
// membership implies children membership, so this should never fire
// outside a programming error in this package itself.
func (i *Interpreter) Forward(ev machine.Event) error {
	type target struct {
		id  string
		ref actor.Ref
	}

	i.mu.Lock()
	targets := make([]target, 0, len(i.forwardTo))
	var missing string
	for id := range i.forwardTo {
		ref, ok := i.children[id]
		if !ok {
			missing = id
			break
		}
		targets = append(targets, target{id, ref})
	}
	i.mu.Unlock()

	if missing != "" {
		return &ErrForwardToMissing{ChildID: missing}
	}
	for _, t := range targets {
		t.ref.Send(ev)
	}
	return nil
}

// sendTo resolves target in order: the literal "parent", then a known
// child, then the process registry — rewriting
// the event's origin and substituting the bare platform-error token for
// an id-qualified one along the way. A target that can't be resolved is
// a fatal bug, except sending to a nonexistent parent, which only warns.
func (i *Interpreter) sendTo(ev machine.Event, target string) {
	rewritten := ev.WithOrigin(i.id)
	if ev.Name == registry.PlatformErrorToken {
		rewritten = machine.NewEvent("error." + i.id).WithData(ev.Data).WithOrigin(i.id)
	}

	if target == "parent" {
		i.mu.Lock()
		parent := i.parent
		i.mu.Unlock()
		if parent == nil {
			i.opts.Logger.Log("warn", "sendTo(\"parent\") with no parent actor: no-op")
			return
		}
		parent.Send(rewritten)
		return
	}

	i.mu.Lock()
	child, ok := i.children[target]
	i.mu.Unlock()
	if ok {
		child.Send(rewritten)
		return
	}

	if h, ok := registry.Default().Lookup(target); ok {
		h.Send(rewritten)
		return
	}

	panic(&ErrSendToMissing{Target: target})
}
