// Package inspector is the optional HTTP+WS devtools bridge: it
// implements interpreter.DevTools so a browser-based (or any WS) client
// can watch every microstep of every running interpreter in the process,
// and push events back in.
package inspector

import "encoding/json"

// FrameType discriminates the three kinds of frame exchanged over the
// inspector WebSocket connection.
type FrameType string

const (
	FrameTypeRequest  FrameType = "req"
	FrameTypeResponse FrameType = "res"
	FrameTypeEvent    FrameType = "event"
)

// Method names a request frame's operation.
type Method string

const (
	MethodAttach           Method = "attach"
	MethodSendEvent        Method = "send_event"
	MethodListInterpreters Method = "list_interpreters"
)

// Frame is the WebSocket protocol envelope.
type Frame struct {
	Type      FrameType       `json:"type"`
	ID        string          `json:"id,omitempty"`
	Method    string          `json:"method,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	OK        *bool           `json:"ok,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     string          `json:"error,omitempty"`
	Event     string          `json:"event,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
}

func MarshalFrame(f Frame) ([]byte, error) { return json.Marshal(f) }

func UnmarshalFrame(data []byte) (Frame, error) {
	var f Frame
	err := json.Unmarshal(data, &f)
	return f, err
}

// MicrostepPayload is the body of every "microstep" event frame this
// package broadcasts — one per interpreter update.
type MicrostepPayload struct {
	Value   any      `json:"value"`
	Context any      `json:"context"`
	Event   string   `json:"event"`
	Actions []string `json:"actions,omitempty"`
}

// NewEventFrame builds an event frame scoped to sessionID (the
// interpreter's id), with payload marshaled into the frame's Payload
// field.
func NewEventFrame(event string, sessionID string, payload any) (Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameTypeEvent, Event: event, SessionID: sessionID, Payload: data}, nil
}

// NewResponseFrame builds a response frame for the request named id.
func NewResponseFrame(id string, ok bool, payload any, errMsg string) (Frame, error) {
	f := Frame{Type: FrameTypeResponse, ID: id, OK: &ok, Error: errMsg}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Frame{}, err
		}
		f.Payload = data
	}
	return f, nil
}
