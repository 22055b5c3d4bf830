// internal/handlers/lobby_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/duelmatch/duelmatch/internal/hub"
	"github.com/duelmatch/duelmatch/internal/lobby"
	"github.com/duelmatch/duelmatch/internal/matchmaking"
	"github.com/duelmatch/duelmatch/internal/models"
)

// newTestServer wires a fully in-memory stack with an effectively frozen
// countdown so HTTP tests observe stable state.
func newTestServer() *Server {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	b := lobby.NewBroadcaster(logger)
	reg := lobby.NewRegistry(lobby.Config{
		TickInterval: time.Hour,
		GracePeriod:  time.Hour,
	}, b, nil, nil, nil, logger)
	queue := matchmaking.NewQueue(reg, nil, nil, 20, logger)
	reg.SetQueueDrop(func(deviceID string) { queue.Remove(deviceID) })
	h := hub.NewHub(b, reg, logger)
	return NewServer(reg, queue, h, logger)
}

func doRequest(s *Server, method, path, device string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	} else {
		buf.WriteString("{}")
	}
	req := httptest.NewRequest(method, path, &buf)
	if device != "" {
		req.Header.Set("X-Device-ID", device)
	}
	w := httptest.NewRecorder()
	s.Routes().ServeHTTP(w, req)
	return w
}

func decodeLobby(t *testing.T, w *httptest.ResponseRecorder) models.LobbyResponse {
	t.Helper()
	var resp models.LobbyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestMissingDeviceHeader(t *testing.T) {
	s := newTestServer()
	w := doRequest(s, "POST", "/lobby/create", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Kind string `json:"kind"`
		} `json:"error"`
		StatusCode int `json:"status_code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if body.Success || body.Error.Kind != "unauthenticated" || body.StatusCode != 401 {
		t.Fatalf("unexpected error body: %s", w.Body.String())
	}
}

func TestCreateJoinReadyFlow(t *testing.T) {
	s := newTestServer()

	w := doRequest(s, "POST", "/lobby/create", "dev-a", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("create: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	created := decodeLobby(t, w)
	if !created.Success || created.Lobby == nil || created.Lobby.Code == "" {
		t.Fatalf("create: bad response: %s", w.Body.String())
	}
	code := created.Lobby.Code

	w = doRequest(s, "POST", "/lobby/join", "dev-b", models.JoinLobbyRequest{Code: code})
	if w.Code != http.StatusOK {
		t.Fatalf("join: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	joined := decodeLobby(t, w)
	if joined.Lobby.CurrentPlayers != 2 {
		t.Fatalf("join: expected 2 players, got %d", joined.Lobby.CurrentPlayers)
	}

	w = doRequest(s, "POST", "/lobby/ready", "dev-a", models.ReadyToggleRequest{IsReady: true})
	if w.Code != http.StatusOK {
		t.Fatalf("ready A: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = doRequest(s, "POST", "/lobby/ready", "dev-b", models.ReadyToggleRequest{IsReady: true})
	if w.Code != http.StatusOK {
		t.Fatalf("ready B: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	readied := decodeLobby(t, w)
	if readied.Lobby.Status != models.StatusCountdown {
		t.Fatalf("expected countdown status, got %s", readied.Lobby.Status)
	}
	if readied.Lobby.CountdownStartTime == nil {
		t.Fatalf("countdown status without a start time")
	}

	w = doRequest(s, "GET", "/lobby/status", "dev-a", nil)
	status := decodeLobby(t, w)
	if status.Lobby == nil || status.Lobby.Status != models.StatusCountdown {
		t.Fatalf("status: expected countdown, got %s", w.Body.String())
	}
}

func TestStatusWhenNotSeated(t *testing.T) {
	s := newTestServer()
	w := doRequest(s, "GET", "/lobby/status", "dev-a", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decodeLobby(t, w)
	if !resp.Success || resp.Lobby != nil {
		t.Fatalf("expected empty success, got %s", w.Body.String())
	}
}

func TestJoinUnknownCode(t *testing.T) {
	s := newTestServer()
	w := doRequest(s, "POST", "/lobby/join", "dev-a", models.JoinLobbyRequest{Code: "ZZZZ"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestLeaveWithoutLobby(t *testing.T) {
	s := newTestServer()
	w := doRequest(s, "POST", "/lobby/leave", "dev-a", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDoubleCreateConflicts(t *testing.T) {
	s := newTestServer()
	doRequest(s, "POST", "/lobby/create", "dev-a", nil)
	w := doRequest(s, "POST", "/lobby/create", "dev-a", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestMatchmakingEndpoints(t *testing.T) {
	s := newTestServer()

	w := doRequest(s, "POST", "/lobby/find_match", "dev-a", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("find_match: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var first models.MatchmakingResponse
	if err := json.Unmarshal(w.Body.Bytes(), &first); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if !first.InQueue || first.QueuePosition == nil || *first.QueuePosition != 1 {
		t.Fatalf("expected queued at position 1, got %s", w.Body.String())
	}

	w = doRequest(s, "GET", "/lobby/queue_status", "dev-a", nil)
	var status models.MatchmakingResponse
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if !status.InQueue {
		t.Fatalf("queue_status: expected in_queue, got %s", w.Body.String())
	}

	w = doRequest(s, "POST", "/lobby/find_match", "dev-b", nil)
	var second models.MatchmakingResponse
	if err := json.Unmarshal(w.Body.Bytes(), &second); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if second.InQueue || second.Lobby == nil {
		t.Fatalf("expected a paired lobby, got %s", w.Body.String())
	}
	if second.Lobby.Players[0].DeviceID != "dev-a" {
		t.Fatalf("seat one should hold the earlier queuer, got %s", second.Lobby.Players[0].DeviceID)
	}

	w = doRequest(s, "POST", "/lobby/leave_queue", "dev-c", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("leave_queue: expected 200, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer()
	w := doRequest(s, "GET", "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected health body: %s", w.Body.String())
	}
}
