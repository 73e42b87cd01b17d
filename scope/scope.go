// Package scope implements the service-scope ambient: a stack of
// "currently executing interpreter" that lets the free Spawn entry point
// attach new actors to the right parent without explicit threading
// through machine.Transition. Push on entering a transition call, pop on
// return (including on panic, via defer).
package scope

import (
	"sync"

	"github.com/nocturnelabs/statecraft/actor"
	"github.com/nocturnelabs/statecraft/machine"
)

// Interpreter is the minimal surface scope needs from whatever is
// currently executing: enough to act as the parent for a spawned actor.
// interpreter.Interpreter satisfies this without either package
// importing the other's concrete type.
type Interpreter interface {
	machine.Actor
	Spawn(entity any, name string, opts actor.SpawnOptions) (actor.Ref, error)
}

var (
	mu    sync.Mutex
	stack []Interpreter
)

// Enter pushes i as the currently executing interpreter and returns a
// function that pops it. Callers must defer the returned function so the
// pop happens even on a panicking transition.
func Enter(i Interpreter) func() {
	mu.Lock()
	stack = append(stack, i)
	mu.Unlock()

	return func() {
		mu.Lock()
		if n := len(stack); n > 0 && stack[n-1] == i {
			stack = stack[:n-1]
		}
		mu.Unlock()
	}
}

// Current returns the currently executing interpreter, if any.
func Current() (Interpreter, bool) {
	mu.Lock()
	defer mu.Unlock()
	if len(stack) == 0 {
		return nil, false
	}
	return stack[len(stack)-1], true
}

// Depth reports how many interpreters are currently nested on the stack.
// Exposed for tests.
func Depth() int {
	mu.Lock()
	defer mu.Unlock()
	return len(stack)
}
