// Package chartfile loads a flat statechart description from a YAML
// document and exposes it as a machine.Machine. It covers the shapes the
// CLI demo needs — named states, event transitions, entry/transition
// actions, delayed sends, final states — not the full statechart
// formalism; anything richer is expected to implement machine.Machine
// directly.
package chartfile

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nocturnelabs/statecraft/machine"
)

// File is the YAML document root.
type File struct {
	ID      string              `yaml:"id"`
	Initial string              `yaml:"initial"`
	Context map[string]any      `yaml:"context"`
	States  map[string]StateDef `yaml:"states"`
}

// StateDef describes one named state.
type StateDef struct {
	Final bool `yaml:"final"`

	// Entry actions run when the state is entered, after the
	// transition's own actions.
	Entry []ActionDef `yaml:"entry"`

	// On maps event names to transitions.
	On map[string]TransitionDef `yaml:"on"`
}

// TransitionDef describes one event-triggered transition.
type TransitionDef struct {
	Target  string      `yaml:"target"`
	Actions []ActionDef `yaml:"actions"`
}

// ActionDef is one YAML-described action. Exactly one field should be
// set; when several are, the first non-zero of send, cancel, log, do wins.
type ActionDef struct {
	Log    string   `yaml:"log"`
	Send   *SendDef `yaml:"send"`
	Cancel string   `yaml:"cancel"`

	// Do names an action implementation the host supplies through Bind
	// (an in-process function or a WASM plugin export).
	Do string `yaml:"do"`
}

// SendDef describes a send action.
type SendDef struct {
	Event string `yaml:"event"`
	Delay string `yaml:"delay"` // time.ParseDuration format; empty = immediate
	ID    string `yaml:"id"`
	To    string `yaml:"to"`
}

// Load reads and validates a chart file from path.
func Load(path string) (*Chart, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chart: %w", err)
	}
	return Parse(data)
}

// Parse validates a YAML chart document.
func Parse(data []byte) (*Chart, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal chart: %w", err)
	}

	if f.ID == "" {
		return nil, fmt.Errorf("chart: missing id")
	}
	if _, ok := f.States[f.Initial]; !ok {
		return nil, fmt.Errorf("chart %s: initial state %q is not defined", f.ID, f.Initial)
	}
	for name, st := range f.States {
		for ev, tr := range st.On {
			if _, ok := f.States[tr.Target]; !ok {
				return nil, fmt.Errorf("chart %s: state %q event %q targets undefined state %q",
					f.ID, name, ev, tr.Target)
			}
			for _, a := range tr.Actions {
				if err := validateAction(a); err != nil {
					return nil, fmt.Errorf("chart %s: state %q event %q: %w", f.ID, name, ev, err)
				}
			}
		}
		for _, a := range st.Entry {
			if err := validateAction(a); err != nil {
				return nil, fmt.Errorf("chart %s: state %q entry: %w", f.ID, name, err)
			}
		}
	}

	return &Chart{file: f}, nil
}

func validateAction(a ActionDef) error {
	if a.Send != nil {
		if a.Send.Event == "" {
			return fmt.Errorf("send action missing event")
		}
		if a.Send.Delay != "" {
			if _, err := time.ParseDuration(a.Send.Delay); err != nil {
				return fmt.Errorf("send action delay: %w", err)
			}
		}
		return nil
	}
	if a.Cancel != "" || a.Log != "" || a.Do != "" {
		return nil
	}
	return fmt.Errorf("empty action")
}

// Chart is a validated chart document satisfying machine.Machine.
type Chart struct {
	file File
	opts machine.Options
}

var _ machine.Machine = (*Chart)(nil)
var _ machine.State = (*snapshot)(nil)

func (c *Chart) ID() string { return c.file.ID }

func (c *Chart) Options() machine.Options { return c.opts }

// Bind supplies the implementation and service maps `do:` actions
// resolve against. Later calls replace earlier ones wholesale.
func (c *Chart) Bind(opts machine.Options) { c.opts = opts }

// File returns the parsed document, for describe-style rendering.
func (c *Chart) File() File { return c.file }

func (c *Chart) InitialState() machine.State {
	st := c.file.States[c.file.Initial]
	return &snapshot{
		value:   c.file.Initial,
		ctx:     c.file.Context,
		event:   machine.NewEvent("statecraft.init"),
		changed: true,
		final:   st.Final,
		actions: buildActions(st.Entry, nil),
	}
}

// Transition advances the snapshot. An event the current state has no
// transition for leaves the snapshot unchanged (Changed() == false).
func (c *Chart) Transition(prev machine.State, ev machine.Event) machine.State {
	cur, _ := prev.(*snapshot)
	if cur == nil {
		cur = c.InitialState().(*snapshot)
	}

	st := c.file.States[cur.value]
	tr, ok := st.On[ev.Name]
	if !ok {
		return &snapshot{value: cur.value, ctx: cur.ctx, event: ev, changed: false, final: cur.final, history: cur}
	}

	target := c.file.States[tr.Target]
	return &snapshot{
		value:   tr.Target,
		ctx:     cur.ctx,
		event:   ev,
		changed: true,
		final:   target.Final,
		history: cur,
		actions: buildActions(target.Entry, tr.Actions),
	}
}

// buildActions lowers YAML action definitions into machine.Actions, with
// the target state's entry actions ordered after the transition's own.
func buildActions(entry, transition []ActionDef) []machine.Action {
	defs := make([]ActionDef, 0, len(entry)+len(transition))
	defs = append(defs, transition...)
	defs = append(defs, entry...)

	var out []machine.Action
	for _, d := range defs {
		switch {
		case d.Send != nil:
			act := machine.Action{
				Type:  machine.ActionSend,
				ID:    d.Send.ID,
				Event: machine.NewEvent(d.Send.Event),
				To:    d.Send.To,
			}
			if act.ID == "" {
				act.ID = d.Send.Event
			}
			if d.Send.Delay != "" {
				act.Delay, _ = time.ParseDuration(d.Send.Delay)
			}
			out = append(out, act)
		case d.Cancel != "":
			out = append(out, machine.Action{Type: machine.ActionCancel, ID: d.Cancel})
		case d.Log != "":
			out = append(out, machine.Action{Type: machine.ActionLog, Label: "chart", Data: d.Log})
		case d.Do != "":
			out = append(out, machine.Action{Type: machine.ActionType(d.Do)})
		}
	}
	return out
}

// snapshot is the immutable state value Chart produces.
type snapshot struct {
	value   string
	ctx     map[string]any
	event   machine.Event
	actions []machine.Action
	changed bool
	final   bool
	history machine.State
	kids    map[string]machine.ChildRef
}

func (s *snapshot) Value() any                { return s.value }
func (s *snapshot) Context() any              { return s.ctx }
func (s *snapshot) Event() machine.Event      { return s.event }
func (s *snapshot) Actions() []machine.Action { return s.actions }
func (s *snapshot) Changed() bool             { return s.changed }
func (s *snapshot) History() machine.State    { return s.history }

func (s *snapshot) Children() map[string]machine.ChildRef {
	if s.kids == nil {
		s.kids = make(map[string]machine.ChildRef)
	}
	return s.kids
}

func (s *snapshot) Configuration() []machine.StateNode {
	typ := machine.NodeAtomic
	var data func(any, machine.Event) any
	if s.final {
		typ = machine.NodeFinal
		data = func(ctx any, _ machine.Event) any { return ctx }
	}
	return []machine.StateNode{{ID: s.value, Type: typ, Parent: "", Data: data}}
}
