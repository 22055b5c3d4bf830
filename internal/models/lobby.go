// internal/models/lobby.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// LobbyStatus is the lifecycle phase of a lobby.
type LobbyStatus string

const (
	StatusWaiting     LobbyStatus = "waiting"
	StatusReadyCheck  LobbyStatus = "ready_check"
	StatusCountdown   LobbyStatus = "countdown"
	StatusGameStarted LobbyStatus = "game_started"
)

// PlayerInfo is a seated member as exposed on the wire.
type PlayerInfo struct {
	DeviceID string    `json:"device_id"`
	UserName string    `json:"user_name"`
	IsReady  bool      `json:"is_ready"`
	JoinedAt time.Time `json:"joined_at"`
}

// LobbyInfo is the full lobby snapshot as exposed on the wire. Every broadcast
// event that embeds a lobby carries one of these, built while the lobby lock
// is held so the snapshot always matches the registry's state at publish time.
type LobbyInfo struct {
	ID                 uuid.UUID    `json:"id"`
	Code               string       `json:"code"`
	Status             LobbyStatus  `json:"status"`
	MaxPlayers         int          `json:"max_players"`
	CurrentPlayers     int          `json:"current_players"`
	Players            []PlayerInfo `json:"players"`
	CountdownStartTime *time.Time   `json:"countdown_start_time"`
	CreatedAt          time.Time    `json:"created_at"`
}
