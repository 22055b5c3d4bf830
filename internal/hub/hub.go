// internal/hub/hub.go
package hub

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/duelmatch/duelmatch/internal/lobby"
)

// Conn is one live websocket subscription to a lobby topic. It satisfies
// lobby.Subscriber: events are queued on a buffered channel so a slow client
// never blocks a publisher.
type Conn struct {
	Code     string
	DeviceID string

	out    chan lobby.Event
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// Events is the outgoing stream consumed by the connection's write pump. It
// closes when the connection is dropped from the hub.
func (c *Conn) Events() <-chan lobby.Event {
	return c.out
}

// Deliver queues an event without blocking. A full buffer reports failure and
// the broadcaster drops the subscriber.
func (c *Conn) Deliver(ev lobby.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.out <- ev:
		return true
	default:
		return false
	}
}

func (c *Conn) closeOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.out)
	if c.cancel != nil {
		c.cancel()
	}
}

type key struct {
	code     string
	deviceID string
}

// Leaver is the slice of the registry the hub needs on disconnect.
type Leaver interface {
	Leave(ctx context.Context, deviceID string, disconnected bool) (bool, error)
	IsMember(code, deviceID string) bool
}

// Hub tracks at most one websocket connection per (lobby, device) pair and
// bridges connections into the broadcaster.
type Hub struct {
	mu    sync.Mutex
	conns map[key]*Conn

	broadcaster *lobby.Broadcaster
	registry    Leaver
	logger      *logrus.Logger
	bufferSize  int
}

// NewHub builds a hub over the given broadcaster and registry.
func NewHub(b *lobby.Broadcaster, registry Leaver, logger *logrus.Logger) *Hub {
	return &Hub{
		conns:       make(map[key]*Conn),
		broadcaster: b,
		registry:    registry,
		logger:      logger,
		bufferSize:  16,
	}
}

// Register attaches a connection for deviceID on the lobby's topic. The
// caller must have verified membership already; Register re-checks it to
// close the race with a concurrent leave. A reconnect for the same pair
// silently replaces the previous connection without triggering a leave.
func (h *Hub) Register(code, deviceID string, cancel context.CancelFunc) (*Conn, error) {
	if !h.registry.IsMember(code, deviceID) {
		return nil, lobby.NewError(lobby.KindNotInLobby, "device is not a member of this lobby")
	}

	c := &Conn{
		Code:     code,
		DeviceID: deviceID,
		out:      make(chan lobby.Event, h.bufferSize),
		cancel:   cancel,
	}
	k := key{code: code, deviceID: deviceID}

	h.mu.Lock()
	old := h.conns[k]
	h.conns[k] = c
	h.mu.Unlock()

	if old != nil {
		h.logger.Infof("hub: replacing existing connection for %s in lobby %s", deviceID, code)
		h.broadcaster.Unsubscribe(code, old)
		old.closeOut()
	}
	h.broadcaster.Subscribe(code, c)
	return c, nil
}

// Drop detaches the connection. When disconnected is true the device is also
// removed from its lobby, mirroring an explicit leave. A connection that was
// already replaced by a reconnect is detached without the leave side effect.
func (h *Hub) Drop(ctx context.Context, c *Conn, disconnected bool) {
	k := key{code: c.Code, deviceID: c.DeviceID}

	h.mu.Lock()
	replaced := h.conns[k] != c
	if !replaced {
		delete(h.conns, k)
	}
	h.mu.Unlock()

	h.broadcaster.Unsubscribe(c.Code, c)
	c.closeOut()

	if replaced || !disconnected {
		return
	}
	left, err := h.registry.Leave(ctx, c.DeviceID, true)
	if err != nil {
		h.logger.Warnf("hub: disconnect leave failed for %s: %v", c.DeviceID, err)
		return
	}
	if left {
		h.logger.Infof("hub: removed %s from lobby %s after disconnect", c.DeviceID, c.Code)
	}
}

// ConnCount reports live connections, for the health endpoint.
func (h *Hub) ConnCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
