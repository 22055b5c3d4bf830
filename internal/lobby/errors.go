// internal/lobby/errors.go
package lobby

// ErrorKind classifies the surface-visible failures of registry and queue
// operations. Handlers map kinds to HTTP status codes.
type ErrorKind string

const (
	KindUnauthenticated ErrorKind = "unauthenticated"
	KindNotFound        ErrorKind = "not_found"
	KindAlreadyInLobby  ErrorKind = "already_in_lobby"
	KindNotInLobby      ErrorKind = "not_in_lobby"
	KindFull            ErrorKind = "lobby_full"
	KindNotJoinable     ErrorKind = "not_joinable"
	KindInvalidState    ErrorKind = "invalid_state"
	KindInternal        ErrorKind = "internal"
)

// Error is a typed operation failure carrying one of the kinds above.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// NewError builds a typed Error.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}
