// internal/handlers/server.go
package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/duelmatch/duelmatch/internal/hub"
	"github.com/duelmatch/duelmatch/internal/lobby"
	"github.com/duelmatch/duelmatch/internal/matchmaking"
)

// Server bundles the singleton services behind the HTTP surface. Handlers do
// no locking of their own; every mutation goes through the registry or queue.
type Server struct {
	Registry *lobby.Registry
	Queue    *matchmaking.Queue
	Hub      *hub.Hub
	Logger   *logrus.Logger
}

// NewServer wires the handler set.
func NewServer(registry *lobby.Registry, queue *matchmaking.Queue, h *hub.Hub, logger *logrus.Logger) *Server {
	return &Server{
		Registry: registry,
		Queue:    queue,
		Hub:      h,
		Logger:   logger,
	}
}

// Routes returns the full route table.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /lobby/create", s.CreateLobbyHandler)
	mux.HandleFunc("POST /lobby/join", s.JoinLobbyHandler)
	mux.HandleFunc("POST /lobby/leave", s.LeaveLobbyHandler)
	mux.HandleFunc("POST /lobby/ready", s.ReadyHandler)
	mux.HandleFunc("GET /lobby/status", s.LobbyStatusHandler)
	mux.HandleFunc("POST /lobby/find_match", s.FindMatchHandler)
	mux.HandleFunc("POST /lobby/leave_queue", s.LeaveQueueHandler)
	mux.HandleFunc("GET /lobby/queue_status", s.QueueStatusHandler)
	mux.HandleFunc("GET /ws/lobby/{code}", s.LobbyWSHandler)
	mux.HandleFunc("GET /health", s.HealthHandler)
	return mux
}

// deviceID pulls the caller identity from the X-Device-ID header.
func deviceID(r *http.Request) (string, error) {
	id := r.Header.Get("X-Device-ID")
	if id == "" {
		return "", lobby.NewError(lobby.KindUnauthenticated, "missing X-Device-ID header")
	}
	return id, nil
}
