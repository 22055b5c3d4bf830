// internal/events/sink.go
package events

import (
	"github.com/sirupsen/logrus"
)

// Sink is an append-only log of lobby events. Implementations must be
// best-effort: a failing sink never fails the operation that produced the
// event, and Log must not block the caller on network round-trips.
type Sink interface {
	Log(kind string, fields logrus.Fields)
}

// Event kinds recorded by the registry and the matchmaking queue.
const (
	KindLobbyCreated          = "lobby_created"
	KindLobbyJoined           = "lobby_joined"
	KindLobbyLeft             = "lobby_left"
	KindLobbyLeftOnDisconnect = "lobby_left_on_disconnect"
	KindReadyToggle           = "ready_toggle"
	KindCountdownStarted      = "countdown_started"
	KindCountdownAborted      = "countdown_aborted"
	KindGameStarted           = "game_started"
	KindLobbyDeleted          = "lobby_deleted"
	KindQueueJoin             = "matchmaking_queue_join"
	KindQueueLeave            = "matchmaking_queue_leave"
	KindMatchFound            = "matchmaking_match_found"
)

// LogSink writes events as structured logrus entries.
type LogSink struct {
	logger *logrus.Logger
}

// NewLogSink returns a Sink backed by the given logger.
func NewLogSink(logger *logrus.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Log(kind string, fields logrus.Fields) {
	s.logger.WithFields(fields).WithField("event", kind).Info("lobby event")
}

// MultiSink fans each event out to every wrapped sink.
type MultiSink []Sink

func (m MultiSink) Log(kind string, fields logrus.Fields) {
	for _, s := range m {
		s.Log(kind, fields)
	}
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Log(string, logrus.Fields) {}
