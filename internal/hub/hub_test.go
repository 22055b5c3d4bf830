// internal/hub/hub_test.go
package hub

import (
	"context"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duelmatch/duelmatch/internal/lobby"
)

// fakeLeaver records Leave calls and answers membership from a fixed set.
type fakeLeaver struct {
	mu      sync.Mutex
	members map[string]string // device -> code
	leaves  []string
}

func newFakeLeaver() *fakeLeaver {
	return &fakeLeaver{members: make(map[string]string)}
}

func (f *fakeLeaver) Leave(_ context.Context, deviceID string, _ bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves = append(f.leaves, deviceID)
	_, ok := f.members[deviceID]
	delete(f.members, deviceID)
	return ok, nil
}

func (f *fakeLeaver) IsMember(code, deviceID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[deviceID] == code
}

func (f *fakeLeaver) leaveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.leaves)
}

func newTestHub() (*Hub, *fakeLeaver, *lobby.Broadcaster) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	b := lobby.NewBroadcaster(logger)
	leaver := newFakeLeaver()
	return NewHub(b, leaver, logger), leaver, b
}

func TestRegisterRequiresMembership(t *testing.T) {
	h, _, _ := newTestHub()
	_, err := h.Register("ABCD", "dev-a", nil)
	var le *lobby.Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, lobby.KindNotInLobby, le.Kind)
}

func TestRegisterSubscribesToTopic(t *testing.T) {
	h, leaver, b := newTestHub()
	leaver.members["dev-a"] = "ABCD"

	conn, err := h.Register("ABCD", "dev-a", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, b.SubscriberCount("ABCD"))
	assert.Equal(t, 1, h.ConnCount())

	b.Publish("ABCD", lobby.NewEvent(lobby.EventPlayerJoined, nil))
	ev := <-conn.Events()
	assert.Equal(t, lobby.EventPlayerJoined, ev.Type)
}

func TestDeliverNeverBlocks(t *testing.T) {
	h, leaver, _ := newTestHub()
	leaver.members["dev-a"] = "ABCD"
	conn, err := h.Register("ABCD", "dev-a", nil)
	require.NoError(t, err)

	for i := 0; i < 16; i++ {
		require.True(t, conn.Deliver(lobby.NewEvent(lobby.EventCountdownTick, nil)))
	}
	assert.False(t, conn.Deliver(lobby.NewEvent(lobby.EventCountdownTick, nil)), "a full buffer must report failure, not block")
}

func TestDropWithDisconnectLeavesLobby(t *testing.T) {
	h, leaver, b := newTestHub()
	leaver.members["dev-a"] = "ABCD"
	conn, err := h.Register("ABCD", "dev-a", nil)
	require.NoError(t, err)

	h.Drop(context.Background(), conn, true)
	assert.Equal(t, 1, leaver.leaveCount())
	assert.Equal(t, 0, b.SubscriberCount("ABCD"))
	assert.Equal(t, 0, h.ConnCount())

	_, open := <-conn.Events()
	assert.False(t, open, "event stream must close on drop")
}

func TestDropWithoutDisconnectKeepsMembership(t *testing.T) {
	h, leaver, _ := newTestHub()
	leaver.members["dev-a"] = "ABCD"
	conn, err := h.Register("ABCD", "dev-a", nil)
	require.NoError(t, err)

	h.Drop(context.Background(), conn, false)
	assert.Equal(t, 0, leaver.leaveCount())
}

func TestReconnectReplacesWithoutLeave(t *testing.T) {
	h, leaver, b := newTestHub()
	leaver.members["dev-a"] = "ABCD"

	old, err := h.Register("ABCD", "dev-a", nil)
	require.NoError(t, err)
	fresh, err := h.Register("ABCD", "dev-a", nil)
	require.NoError(t, err)

	_, open := <-old.Events()
	assert.False(t, open, "replaced connection must be closed")
	assert.Equal(t, 1, b.SubscriberCount("ABCD"))
	assert.Equal(t, 1, h.ConnCount())

	// The old pump noticing its dead socket must not evict the new conn or
	// trigger a leave.
	h.Drop(context.Background(), old, true)
	assert.Equal(t, 0, leaver.leaveCount())
	assert.Equal(t, 1, h.ConnCount())

	b.Publish("ABCD", lobby.NewEvent(lobby.EventPlayerLeft, nil))
	ev := <-fresh.Events()
	assert.Equal(t, lobby.EventPlayerLeft, ev.Type)
}
