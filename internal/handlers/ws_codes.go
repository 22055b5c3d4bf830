// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the lobby socket handler. These give
// clients a more specific reason for closure than the standard codes.
const (
	BadSubprotocolError = 3000 // Client connected with an unsupported subprotocol.
	InvalidCodeError    = 3001 // Lobby code in the WS URL is malformed or unknown.
	NotAMemberError     = 3002 // Device is not seated in the target lobby.
)
