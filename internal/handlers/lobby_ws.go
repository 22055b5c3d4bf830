// internal/handlers/lobby_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/duelmatch/duelmatch/internal/hub"
	"github.com/duelmatch/duelmatch/internal/lobby"
)

// LobbyWSHandler upgrades GET /ws/lobby/{code}?device_id={id} and streams the
// lobby's event feed. The server is send-only in the normal path; the read
// pump exists to detect disconnects, which count as leaving the lobby.
func (s *Server) LobbyWSHandler(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(strings.TrimSpace(r.PathValue("code")))
	device := r.URL.Query().Get("device_id")
	if device == "" {
		http.Error(w, "missing device_id", http.StatusUnauthorized)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{"lobby"},
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.Logger.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != "lobby" {
		c.Close(BadSubprotocolError, "client must speak the lobby subprotocol")
		return
	}

	snap, ok := s.Registry.SnapshotByCode(code)
	if !ok {
		c.Close(InvalidCodeError, "lobby does not exist")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn, err := s.Hub.Register(code, device, cancel)
	if err != nil {
		c.Close(NotAMemberError, "device is not a member of this lobby")
		return
	}

	s.Logger.Infof("device %s (%s) connected to lobby %s", device, r.RemoteAddr, code)

	// Push the current snapshot first so the client renders without waiting
	// for the next membership change.
	initial := lobby.NewEvent(lobby.EventPlayerJoined, map[string]interface{}{
		"device_id": device,
		"lobby":     snap,
	})
	if err := writeEvent(ctx, c, initial); err != nil {
		s.Hub.Drop(context.Background(), conn, false)
		return
	}

	go s.writePump(ctx, c, conn)

	// Read pump: drain client frames until the socket dies.
	disconnected := s.readPump(ctx, c, code, device)

	dropCtx, dropCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dropCancel()
	s.Hub.Drop(dropCtx, conn, disconnected)
	s.Logger.Infof("device %s disconnected from lobby %s", device, code)
}

// readPump consumes inbound frames. Clients have nothing to say on this
// socket, so frames are discarded; the return value reports whether the exit
// should count as a disconnect-leave.
func (s *Server) readPump(ctx context.Context, c *websocket.Conn, code, device string) bool {
	for {
		typ, _, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				s.Logger.Infof("lobby %s: websocket closed normally for %s", code, device)
			} else if ctx.Err() != nil {
				// Replaced by a reconnect or server shutdown; not a leave.
				return false
			} else {
				s.Logger.Debugf("lobby %s: read error for %s: %v", code, device, err)
			}
			return true
		}
		if typ != websocket.MessageText {
			continue
		}
	}
}

// writePump forwards queued events onto the socket and pings periodically.
func (s *Server) writePump(ctx context.Context, c *websocket.Conn, conn *hub.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-conn.Events():
			if !ok {
				c.Close(websocket.StatusGoingAway, "subscription ended")
				return
			}
			if err := writeEvent(ctx, c, ev); err != nil {
				s.Logger.Debugf("lobby %s: write failed for %s: %v", conn.Code, conn.DeviceID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				s.Logger.Debugf("lobby %s: ping failed for %s: %v", conn.Code, conn.DeviceID, err)
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, c *websocket.Conn, ev lobby.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.Write(writeCtx, websocket.MessageText, data)
}
