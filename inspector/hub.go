package inspector

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/nocturnelabs/statecraft/interpreter"
	"github.com/nocturnelabs/statecraft/machine"
)

// Client is a connected WebSocket inspector client.
type Client struct {
	conn          *websocket.Conn
	send          chan []byte
	hub           *Hub
	interpreterID string
}

// Hub tracks every interpreter that has attached devtools, bridging
// microsteps out to WS clients and events in from them. One Hub
// satisfies interpreter.DevTools for every interpreter that shares it;
// OnMicrostep is the bridge between the two.
type Hub struct {
	mu           sync.RWMutex
	clients      map[*Client]struct{}
	interpreters map[string]*interpreter.Interpreter
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients:      make(map[*Client]struct{}),
		interpreters: make(map[string]*interpreter.Interpreter),
	}
}

var _ interpreter.DevTools = (*Hub)(nil)

// Attach registers i so clients can attach to its id and send it events.
func (h *Hub) Attach(i *interpreter.Interpreter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.interpreters[i.ID()] = i
}

// OnMicrostep broadcasts state to every client attached to i's id.
func (h *Hub) OnMicrostep(i *interpreter.Interpreter, state machine.State) {
	actionNames := make([]string, 0, len(state.Actions()))
	for _, a := range state.Actions() {
		actionNames = append(actionNames, string(a.Type))
	}

	frame, err := NewEventFrame("microstep", i.ID(), MicrostepPayload{
		Value:   state.Value(),
		Context: state.Context(),
		Event:   state.Event().Name,
		Actions: actionNames,
	})
	if err != nil {
		slog.Error("inspector: marshal microstep frame", "error", err)
		return
	}
	data, err := MarshalFrame(frame)
	if err != nil {
		slog.Error("inspector: marshal frame", "error", err)
		return
	}
	h.sendToInterpreter(i.ID(), data)
}

func (h *Hub) sendToInterpreter(id string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.interpreterID == id {
			select {
			case c.send <- data:
			default:
			}
		}
	}
}

func (h *Hub) lookup(id string) (*interpreter.Interpreter, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	i, ok := h.interpreters[id]
	return i, ok
}

func (h *Hub) ids() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.interpreters))
	for id := range h.interpreters {
		out = append(out, id)
	}
	return out
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	slog.Info("inspector client connected", "clients", len(h.clients))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	slog.Info("inspector client disconnected", "clients", len(h.clients))
}

// ServeWS handles a WS upgrade and drives the client's read/write pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		slog.Error("inspector: ws accept", "error", err)
		return
	}

	c := &Client{conn: conn, send: make(chan []byte, 256), hub: h}
	h.register(c)

	ctx := r.Context()
	go c.writePump(ctx)
	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		frame, err := UnmarshalFrame(data)
		if err != nil {
			slog.Error("inspector: unmarshal frame", "error", err)
			continue
		}
		c.handleFrame(frame)
	}
}

func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) handleFrame(frame Frame) {
	if frame.Type != FrameTypeRequest {
		slog.Debug("inspector: unexpected frame type", "type", frame.Type)
		return
	}

	switch Method(frame.Method) {
	case MethodAttach:
		var params struct {
			InterpreterID string `json:"interpreter_id"`
		}
		if err := json.Unmarshal(frame.Params, &params); err != nil {
			c.sendError(frame.ID, "invalid params")
			return
		}
		if _, ok := c.hub.lookup(params.InterpreterID); !ok {
			c.sendError(frame.ID, "unknown interpreter: "+params.InterpreterID)
			return
		}
		c.interpreterID = params.InterpreterID
		c.sendOK(frame.ID, map[string]string{"status": "attached"})

	case MethodSendEvent:
		var params struct {
			Name string `json:"name"`
			Data any    `json:"data"`
		}
		if err := json.Unmarshal(frame.Params, &params); err != nil {
			c.sendError(frame.ID, "invalid params")
			return
		}
		i, ok := c.hub.lookup(c.interpreterID)
		if !ok {
			c.sendError(frame.ID, "not attached to an interpreter")
			return
		}
		if err := i.TrySend(machine.NewEvent(params.Name).WithData(params.Data)); err != nil {
			c.sendError(frame.ID, err.Error())
			return
		}
		c.sendOK(frame.ID, map[string]string{"status": "sent"})

	case MethodListInterpreters:
		c.sendOK(frame.ID, c.hub.ids())

	default:
		c.sendError(frame.ID, "unknown method: "+frame.Method)
	}
}

func (c *Client) sendOK(id string, payload any) {
	f, err := NewResponseFrame(id, true, payload, "")
	if err != nil {
		return
	}
	data, err := MarshalFrame(f)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) sendError(id string, errMsg string) {
	f, err := NewResponseFrame(id, false, nil, errMsg)
	if err != nil {
		return
	}
	data, err := MarshalFrame(f)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close(websocket.StatusGoingAway, "inspector shutdown")
		delete(h.clients, c)
	}
}
