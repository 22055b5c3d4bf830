// internal/handlers/lobby.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/duelmatch/duelmatch/internal/lobby"
	"github.com/duelmatch/duelmatch/internal/models"
)

// CreateLobbyHandler makes a new private lobby with the caller seated.
func (s *Server) CreateLobbyHandler(w http.ResponseWriter, r *http.Request) {
	device, err := deviceID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	snap, err := s.Registry.Create(r.Context(), device)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, models.LobbyResponse{
		Success: true,
		Lobby:   &snap,
		Message: "lobby created",
	})
}

// JoinLobbyHandler seats the caller in the lobby named by the invite code.
func (s *Server) JoinLobbyHandler(w http.ResponseWriter, r *http.Request) {
	device, err := deviceID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req models.JoinLobbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, lobby.NewError(lobby.KindNotFound, "invalid request body"))
		return
	}
	snap, err := s.Registry.Join(r.Context(), device, req.Code)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, models.LobbyResponse{
		Success: true,
		Lobby:   &snap,
		Message: "joined lobby",
	})
}

// LeaveLobbyHandler removes the caller from its lobby.
func (s *Server) LeaveLobbyHandler(w http.ResponseWriter, r *http.Request) {
	device, err := deviceID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	left, err := s.Registry.Leave(r.Context(), device, false)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !left {
		s.writeError(w, lobby.NewError(lobby.KindNotInLobby, "player is not in any lobby"))
		return
	}
	s.writeJSON(w, http.StatusOK, models.LobbyResponse{
		Success: true,
		Message: "left lobby",
	})
}

// ReadyHandler toggles the caller's ready flag.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	device, err := deviceID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req models.ReadyToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, lobby.NewError(lobby.KindInvalidState, "invalid request body"))
		return
	}
	snap, err := s.Registry.SetReady(r.Context(), device, req.IsReady)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, models.LobbyResponse{
		Success: true,
		Lobby:   &snap,
	})
}

// LobbyStatusHandler reports the caller's current lobby, if any. Not being in
// a lobby is a successful empty answer, not an error.
func (s *Server) LobbyStatusHandler(w http.ResponseWriter, r *http.Request) {
	device, err := deviceID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	snap := s.Registry.Status(device)
	s.writeJSON(w, http.StatusOK, models.LobbyResponse{
		Success: true,
		Lobby:   snap,
	})
}

// FindMatchHandler enters the caller into matchmaking, pairing immediately
// when someone is already waiting.
func (s *Server) FindMatchHandler(w http.ResponseWriter, r *http.Request) {
	device, err := deviceID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp, err := s.Queue.FindMatch(r.Context(), device)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// LeaveQueueHandler withdraws the caller from matchmaking.
func (s *Server) LeaveQueueHandler(w http.ResponseWriter, r *http.Request) {
	device, err := deviceID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.Queue.LeaveQueue(device))
}

// QueueStatusHandler reports the caller's queue position.
func (s *Server) QueueStatusHandler(w http.ResponseWriter, r *http.Request) {
	device, err := deviceID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.Queue.Status(device))
}
