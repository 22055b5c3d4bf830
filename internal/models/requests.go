// internal/models/requests.go
package models

// JoinLobbyRequest is the body of POST /lobby/join.
type JoinLobbyRequest struct {
	Code string `json:"code"`
}

// ReadyToggleRequest is the body of POST /lobby/ready.
type ReadyToggleRequest struct {
	IsReady bool `json:"is_ready"`
}

// LobbyResponse is the success body for the lobby endpoints.
type LobbyResponse struct {
	Success bool       `json:"success"`
	Lobby   *LobbyInfo `json:"lobby,omitempty"`
	Message string     `json:"message,omitempty"`
}

// MatchmakingResponse is the success body for the matchmaking endpoints.
// Lobby is set when find_match paired the caller; the queue fields are set
// when the caller is (still) waiting.
type MatchmakingResponse struct {
	Success           bool       `json:"success"`
	InQueue           bool       `json:"in_queue"`
	QueuePosition     *int       `json:"queue_position,omitempty"`
	EstimatedWaitTime *int       `json:"estimated_wait_time,omitempty"`
	Message           string     `json:"message,omitempty"`
	Lobby             *LobbyInfo `json:"lobby,omitempty"`
}
