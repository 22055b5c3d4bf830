// internal/lobby/broadcast.go
package lobby

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Event types published on lobby topics.
const (
	EventPlayerJoined       = "player_joined"
	EventPlayerLeft         = "player_left"
	EventReadyStatusChanged = "ready_status_changed"
	EventCountdownStarted   = "countdown_started"
	EventCountdownTick      = "countdown_tick"
	EventCountdownAborted   = "countdown_aborted"
	EventGameStarted        = "game_started"
	EventLobbyDeleted       = "lobby_deleted"
	EventError              = "error"
)

// Event is the wire shape of every message fanned out to lobby sockets.
type Event struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewEvent stamps an event with the current time.
func NewEvent(typ string, data map[string]interface{}) Event {
	return Event{Type: typ, Data: data, Timestamp: time.Now()}
}

// Subscriber receives events for one lobby topic. Deliver must not block;
// returning false means the subscriber could not accept the event and will be
// dropped from the topic.
type Subscriber interface {
	Deliver(ev Event) bool
}

// Broadcaster fans events out to the subscribers of a per-lobby topic, keyed
// by lobby code. It holds only subscriber handles; the ConnectionHub owns the
// sockets behind them. Delivery order per subscriber matches publish order.
type Broadcaster struct {
	mu     sync.Mutex
	topics map[string]map[Subscriber]struct{}
	logger *logrus.Logger
}

// NewBroadcaster returns an empty Broadcaster.
func NewBroadcaster(logger *logrus.Logger) *Broadcaster {
	return &Broadcaster{
		topics: make(map[string]map[Subscriber]struct{}),
		logger: logger,
	}
}

// Subscribe registers sub on the topic for code, creating the topic if needed.
func (b *Broadcaster) Subscribe(code string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[code]
	if !ok {
		subs = make(map[Subscriber]struct{})
		b.topics[code] = subs
	}
	subs[sub] = struct{}{}
}

// Unsubscribe removes sub from the topic for code. Empty topics are pruned.
func (b *Broadcaster) Unsubscribe(code string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[code]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.topics, code)
	}
}

// Publish delivers ev to every current subscriber of the topic. A subscriber
// that cannot accept the event is dropped; the remaining deliveries are
// unaffected.
func (b *Broadcaster) Publish(code string, ev Event) {
	b.mu.Lock()
	subs, ok := b.topics[code]
	if !ok {
		b.mu.Unlock()
		return
	}
	targets := make([]Subscriber, 0, len(subs))
	for sub := range subs {
		targets = append(targets, sub)
	}
	b.mu.Unlock()

	var failed []Subscriber
	for _, sub := range targets {
		if !sub.Deliver(ev) {
			failed = append(failed, sub)
		}
	}
	for _, sub := range failed {
		b.logger.WithFields(logrus.Fields{
			"lobby_code": code,
			"event":      ev.Type,
		}).Warn("dropping slow lobby subscriber")
		b.Unsubscribe(code, sub)
	}
}

// DropTopic removes the whole topic, releasing every subscription. Used when
// a lobby is deleted.
func (b *Broadcaster) DropTopic(code string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.topics, code)
}

// SubscriberCount reports the current number of subscribers on a topic.
func (b *Broadcaster) SubscriberCount(code string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[code])
}
