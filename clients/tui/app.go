package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nocturnelabs/statecraft/interpreter"
	"github.com/nocturnelabs/statecraft/machine"
)

// StateMsg carries a stored snapshot into the TUI.
type StateMsg struct{ State machine.State }

// DoneMsg signals the interpreter reached a terminal configuration.
type DoneMsg struct{ Event machine.Event }

// maxHistory bounds the event log so a long-running chart doesn't grow
// the model without limit.
const maxHistory = 200

// App is the TUI application model.
// Architecture: STATE PANEL | EVENT LOG | INPUT
type App struct {
	itp   *interpreter.Interpreter
	msgs  chan tea.Msg
	input textinput.Model

	width   int
	height  int
	value   string
	context string
	history []string
	done    bool
}

// NewApp wires a TUI to itp. The interpreter must not be started yet:
// App subscribes first so the initial state lands in the event log.
func NewApp(itp *interpreter.Interpreter) *App {
	ti := textinput.New()
	ti.Placeholder = "event name (enter to send, ctrl+c to quit)"
	ti.CharLimit = 64

	a := &App{
		itp:   itp,
		msgs:  make(chan tea.Msg, 64),
		input: ti,
	}

	itp.OnTransition(func(s machine.State) {
		select {
		case a.msgs <- StateMsg{State: s}:
		default:
		}
	})
	itp.OnDone(func(ev machine.Event) {
		select {
		case a.msgs <- DoneMsg{Event: ev}:
		default:
		}
	})

	return a
}

// Init starts the interpreter and begins pumping its notifications.
func (a *App) Init() tea.Cmd {
	a.itp.Start()
	return tea.Batch(textinput.Blink, a.input.Focus(), a.waitForMsg())
}

// waitForMsg relays one interpreter notification into the program.
func (a *App) waitForMsg() tea.Cmd {
	return func() tea.Msg { return <-a.msgs }
}

// Update handles messages and updates state.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = max(20, a.width-6)
		return a, nil

	case StateMsg:
		a.value = fmt.Sprint(msg.State.Value())
		a.context = fmt.Sprint(msg.State.Context())
		entry := EventStyle.Render(msg.State.Event().Name) + " " + MutedStyle.Render("→") + " " + a.value
		a.history = append(a.history, entry)
		if len(a.history) > maxHistory {
			a.history = a.history[len(a.history)-maxHistory:]
		}
		return a, a.waitForMsg()

	case DoneMsg:
		a.done = true
		a.history = append(a.history, DoneStyle.Render(fmt.Sprintf("done: %v", msg.Event.Data)))
		return a, a.waitForMsg()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			a.itp.Stop()
			return a, tea.Quit
		case "enter":
			name := strings.TrimSpace(a.input.Value())
			a.input.Reset()
			if name == "" || a.done {
				return a, nil
			}
			if err := a.itp.TrySend(machine.NewEvent(name)); err != nil {
				a.history = append(a.history, ErrorStyle.Render(err.Error()))
			}
			return a, nil
		}
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// View renders the three panels.
func (a *App) View() string {
	status := StateStyle.Render(a.value)
	if a.done {
		status += "  " + DoneStyle.Render("(finished)")
	}
	header := PanelStyle.Render(fmt.Sprintf("%s  %s", status, MutedStyle.Render(a.context)))

	logHeight := max(3, a.height-8)
	visible := a.history
	if len(visible) > logHeight {
		visible = visible[len(visible)-logHeight:]
	}
	log := PanelStyle.Render(strings.Join(visible, "\n"))

	return lipgloss.JoinVertical(lipgloss.Left, header, log, a.input.View())
}
