package inspector

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv := NewServer("localhost", 0)
	t.Cleanup(func() { srv.hub.Close() })
	return srv
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("status field = %q, want ok", body["status"])
	}
}

func TestHandleInterpretersListsAttached(t *testing.T) {
	srv := newTestServer(t)
	_ = newAttachedInterpreter(t, srv.hub)

	req := httptest.NewRequest(http.MethodGet, "/interpreters", nil)
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var ids []string
	if err := json.NewDecoder(w.Body).Decode(&ids); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("ids = %v, want exactly 1", ids)
	}
}

func TestHandleFrameAttachSucceedsForKnownInterpreter(t *testing.T) {
	hub := NewHub()
	i := newAttachedInterpreter(t, hub)

	c := &Client{hub: hub, send: make(chan []byte, 4)}
	params, _ := json.Marshal(map[string]string{"interpreter_id": i.ID()})
	c.handleFrame(Frame{Type: FrameTypeRequest, ID: "r1", Method: string(MethodAttach), Params: params})

	if c.interpreterID != i.ID() {
		t.Fatalf("interpreterID = %q, want %q", c.interpreterID, i.ID())
	}

	resp := drainFrame(t, c)
	if resp.Type != FrameTypeResponse || resp.OK == nil || !*resp.OK {
		t.Fatalf("got %+v, want an ok response", resp)
	}
}

func TestHandleFrameAttachFailsForUnknownInterpreter(t *testing.T) {
	hub := NewHub()
	c := &Client{hub: hub, send: make(chan []byte, 4)}
	params, _ := json.Marshal(map[string]string{"interpreter_id": "nope"})
	c.handleFrame(Frame{Type: FrameTypeRequest, ID: "r1", Method: string(MethodAttach), Params: params})

	resp := drainFrame(t, c)
	if resp.OK == nil || *resp.OK {
		t.Fatalf("got %+v, want a failing response", resp)
	}
}

func TestHandleFrameSendEventRequiresAnAttachedInterpreter(t *testing.T) {
	hub := NewHub()
	c := &Client{hub: hub, send: make(chan []byte, 4)}
	params, _ := json.Marshal(map[string]string{"name": "TIMER"})
	c.handleFrame(Frame{Type: FrameTypeRequest, ID: "r2", Method: string(MethodSendEvent), Params: params})

	resp := drainFrame(t, c)
	if resp.OK == nil || *resp.OK {
		t.Fatalf("got %+v, want a failing response without an attach", resp)
	}
}

func TestHandleFrameSendEventDeliversToTheAttachedInterpreter(t *testing.T) {
	hub := NewHub()
	i := newAttachedInterpreter(t, hub)

	c := &Client{hub: hub, send: make(chan []byte, 4), interpreterID: i.ID()}
	params, _ := json.Marshal(map[string]string{"name": "TIMER"})
	c.handleFrame(Frame{Type: FrameTypeRequest, ID: "r3", Method: string(MethodSendEvent), Params: params})

	resp := drainFrame(t, c)
	if resp.OK == nil || !*resp.OK {
		t.Fatalf("got %+v, want an ok response", resp)
	}
}

func TestHandleFrameListInterpreters(t *testing.T) {
	hub := NewHub()
	i := newAttachedInterpreter(t, hub)

	c := &Client{hub: hub, send: make(chan []byte, 4)}
	c.handleFrame(Frame{Type: FrameTypeRequest, ID: "r4", Method: string(MethodListInterpreters)})

	resp := drainFrame(t, c)
	var ids []string
	if err := json.Unmarshal(resp.Payload, &ids); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(ids) != 1 || ids[0] != i.ID() {
		t.Fatalf("ids = %v, want [%s]", ids, i.ID())
	}
}

func drainFrame(t *testing.T, c *Client) Frame {
	t.Helper()
	select {
	case data := <-c.send:
		f, err := UnmarshalFrame(data)
		if err != nil {
			t.Fatalf("UnmarshalFrame: %v", err)
		}
		return f
	default:
		t.Fatal("expected a frame on the client's send channel")
		return Frame{}
	}
}
