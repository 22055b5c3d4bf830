// internal/lobby/broadcast_test.go
package lobby

import (
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSub records delivered events; accept controls the Deliver result.
type captureSub struct {
	mu     sync.Mutex
	events []Event
	accept bool
}

func newCaptureSub() *captureSub {
	return &captureSub{accept: true}
}

func (s *captureSub) Deliver(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.accept {
		return false
	}
	s.events = append(s.events, ev)
	return true
}

func (s *captureSub) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Type
	}
	return out
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestPublishDeliversInOrder(t *testing.T) {
	b := NewBroadcaster(testLogger())
	sub := newCaptureSub()
	b.Subscribe("ABCD", sub)

	b.Publish("ABCD", NewEvent(EventPlayerJoined, nil))
	b.Publish("ABCD", NewEvent(EventReadyStatusChanged, nil))
	b.Publish("ABCD", NewEvent(EventCountdownStarted, nil))

	require.Equal(t, []string{EventPlayerJoined, EventReadyStatusChanged, EventCountdownStarted}, sub.types())
}

func TestPublishSkipsOtherTopics(t *testing.T) {
	b := NewBroadcaster(testLogger())
	sub := newCaptureSub()
	b.Subscribe("ABCD", sub)

	b.Publish("WXYZ", NewEvent(EventPlayerJoined, nil))
	assert.Empty(t, sub.types())
}

func TestFailingSubscriberIsDropped(t *testing.T) {
	b := NewBroadcaster(testLogger())
	good := newCaptureSub()
	bad := newCaptureSub()
	bad.accept = false
	b.Subscribe("ABCD", good)
	b.Subscribe("ABCD", bad)

	b.Publish("ABCD", NewEvent(EventPlayerJoined, nil))

	require.Equal(t, []string{EventPlayerJoined}, good.types(), "healthy subscriber must still receive the event")
	assert.Equal(t, 1, b.SubscriberCount("ABCD"), "failing subscriber should be removed from the topic")

	b.Publish("ABCD", NewEvent(EventPlayerLeft, nil))
	assert.Equal(t, []string{EventPlayerJoined, EventPlayerLeft}, good.types())
}

func TestUnsubscribePrunesEmptyTopic(t *testing.T) {
	b := NewBroadcaster(testLogger())
	sub := newCaptureSub()
	b.Subscribe("ABCD", sub)
	b.Unsubscribe("ABCD", sub)
	assert.Equal(t, 0, b.SubscriberCount("ABCD"))

	b.Publish("ABCD", NewEvent(EventPlayerJoined, nil))
	assert.Empty(t, sub.types())
}

func TestDropTopicReleasesAllSubscribers(t *testing.T) {
	b := NewBroadcaster(testLogger())
	a := newCaptureSub()
	c := newCaptureSub()
	b.Subscribe("ABCD", a)
	b.Subscribe("ABCD", c)

	b.DropTopic("ABCD")
	b.Publish("ABCD", NewEvent(EventLobbyDeleted, nil))

	assert.Empty(t, a.types())
	assert.Empty(t, c.types())
}
