// Package registry provides the process-local mapping from session id to
// actor handle, plus a process-unique id allocator for session ids
// (NewSessionID) and delayed-send ids (NewSendID).
package registry

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/nocturnelabs/statecraft/machine"
)

// Handle is the minimal surface the registry needs from an actor: enough
// to look it up by id and deliver an event to it, so send-target
// resolution can go through the registry alone. Concrete actor refs
// (see package actor) satisfy this trivially.
type Handle interface {
	ID() string
	Send(machine.Event)
}

// processNonce is fixed once per process so ids generated by concurrent
// interpreters in the same binary never collide with ids from a previous
// run whose registry state leaked in (e.g. via a log replay).
var processNonce = uuid.New().String()[:8]

var idCounter uint64

// NewSessionID returns a process-unique identifier: a monotonic counter
// combined with the process-start nonce.
func NewSessionID() string {
	n := atomic.AddUint64(&idCounter, 1)
	return fmt.Sprintf("x_%s_%d", processNonce, n)
}

// NewSendID returns a process-unique identifier for a delayed send,
// distinguishable at a glance from a session id.
func NewSendID() string {
	n := atomic.AddUint64(&idCounter, 1)
	return fmt.Sprintf("send_%s_%d", processNonce, n)
}

// Registry is the global session-id → actor handle map. The zero value is
// not usable; use New.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]Handle
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{byID: make(map[string]Handle)}
}

// ErrCollision is returned by Register when sessionID is already bound to
// a different handle.
type ErrCollision struct {
	SessionID string
}

func (e *ErrCollision) Error() string {
	return fmt.Sprintf("registry: session id %q already registered", e.SessionID)
}

// Register binds sessionID to h. Re-registering the same (sessionID, h)
// pair is idempotent; registering a different handle under an id already
// in use is a collision and is rejected.
func (r *Registry) Register(sessionID string, h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byID[sessionID]; ok {
		if existing == h {
			return nil
		}
		return &ErrCollision{SessionID: sessionID}
	}
	r.byID[sessionID] = h
	return nil
}

// Unregister removes sessionID, if present. Unregistering an absent id is
// a no-op.
func (r *Registry) Unregister(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, sessionID)
}

// Lookup returns the handle bound to sessionID, if any.
func (r *Registry) Lookup(sessionID string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byID[sessionID]
	return h, ok
}

// Len reports how many sessions are currently registered. Exposed for
// tests and diagnostics only.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// global is the default process-wide registry the public Interpret/Spawn
// entry points use.
var global = New()

// Default returns the process-wide Registry.
func Default() *Registry { return global }

// IsPlatformErrorName reports whether name begins with the reserved
// platform-error token.
func IsPlatformErrorName(name string) bool {
	return strings.HasPrefix(name, PlatformErrorToken)
}

// PlatformErrorToken is the reserved event-name prefix for platform
// errors: the bare token itself ("statecraft.error") is the generic
// action-execution-error event; more specific names extend it with a
// dot, e.g. "statecraft.error.actor.42".
const PlatformErrorToken = "statecraft.error"
