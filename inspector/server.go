package inspector

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the statecraft inspector's devtools HTTP server: a health
// endpoint, an interpreter listing, and the WS upgrade route the CLI's
// `inspect` command and any browser client connect to.
type Server struct {
	httpServer *http.Server
	hub        *Hub
	host       string
	port       int
}

// NewServer builds a Server with its own Hub. Pass the returned Hub as
// interpreter.Options.DevTools for every interpreter the server should
// expose.
func NewServer(host string, port int) *Server {
	hub := NewHub()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	s := &Server{hub: hub, host: host, port: port}

	r.Get("/health", s.handleHealth)
	r.Get("/ws", hub.ServeWS)
	r.Get("/interpreters", s.handleInterpreters)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: r,
	}

	return s
}

// Hub returns the server's Hub, for wiring into interpreter.Options.
func (s *Server) Hub() *Hub { return s.hub }

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.Info("statecraft inspector listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server and disconnects every client.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleInterpreters(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.hub.ids())
}
