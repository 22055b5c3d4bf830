// internal/handlers/errors.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/duelmatch/duelmatch/internal/lobby"
)

// errorBody is the uniform failure response shape.
type errorBody struct {
	Success    bool        `json:"success"`
	Error      errorDetail `json:"error"`
	StatusCode int         `json:"status_code"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func statusForKind(kind lobby.ErrorKind) int {
	switch kind {
	case lobby.KindUnauthenticated:
		return http.StatusUnauthorized
	case lobby.KindNotFound:
		return http.StatusNotFound
	case lobby.KindAlreadyInLobby, lobby.KindNotInLobby, lobby.KindFull,
		lobby.KindNotJoinable, lobby.KindInvalidState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.Logger.Warnf("failed to encode response: %v", err)
	}
}

// writeError maps a typed lobby error onto the wire; anything untyped is
// logged and masked as a generic internal failure.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var le *lobby.Error
	if !errors.As(err, &le) {
		s.Logger.Errorf("unexpected handler error: %v", err)
		le = lobby.NewError(lobby.KindInternal, "internal server error")
	}
	status := statusForKind(le.Kind)
	s.writeJSON(w, status, errorBody{
		Success:    false,
		Error:      errorDetail{Kind: string(le.Kind), Message: le.Message},
		StatusCode: status,
	})
}
