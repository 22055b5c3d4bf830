// internal/lobby/registry.go
package lobby

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/duelmatch/duelmatch/internal/directory"
	"github.com/duelmatch/duelmatch/internal/events"
	"github.com/duelmatch/duelmatch/internal/models"
	"github.com/duelmatch/duelmatch/internal/persistence"
)

// Member is one seated player. Membership order is insertion order.
type Member struct {
	DeviceID string
	UserName string
	IsReady  bool
	JoinedAt time.Time
}

// Lobby is the in-memory state of one two-seat lobby. All access goes through
// the owning Registry; mu serializes every read and mutation of one lobby.
type Lobby struct {
	mu sync.Mutex

	ID                 uuid.UUID
	Code               string
	Status             models.LobbyStatus
	MaxPlayers         int
	CountdownStartTime *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Members            []*Member

	// countdownGen invalidates in-flight countdown ticks: every cancel bumps
	// it, and a tick re-reads it under mu before publishing.
	countdownGen uint64
	deleted      bool
}

func (l *Lobby) snapshotLocked() models.LobbyInfo {
	players := make([]models.PlayerInfo, 0, len(l.Members))
	for _, m := range l.Members {
		players = append(players, models.PlayerInfo{
			DeviceID: m.DeviceID,
			UserName: m.UserName,
			IsReady:  m.IsReady,
			JoinedAt: m.JoinedAt,
		})
	}
	return models.LobbyInfo{
		ID:                 l.ID,
		Code:               l.Code,
		Status:             l.Status,
		MaxPlayers:         l.MaxPlayers,
		CurrentPlayers:     len(l.Members),
		Players:            players,
		CountdownStartTime: l.CountdownStartTime,
		CreatedAt:          l.CreatedAt,
	}
}

func (l *Lobby) memberLocked(deviceID string) *Member {
	for _, m := range l.Members {
		if m.DeviceID == deviceID {
			return m
		}
	}
	return nil
}

func (l *Lobby) allReadyLocked() bool {
	for _, m := range l.Members {
		if !m.IsReady {
			return false
		}
	}
	return len(l.Members) > 0
}

func (l *Lobby) resetReadiesLocked() {
	for _, m := range l.Members {
		m.IsReady = false
	}
}

// Config tunes the registry. Zero values fall back to the defaults of the
// HTTP surface (3s countdown, 2s grace, 4-char codes, 2 seats). TickInterval
// and GracePeriod exist so tests can run the countdown fast.
type Config struct {
	CountdownSeconds     int
	PostGameGraceSeconds int
	CodeLength           int
	MaxPlayers           int
	TickInterval         time.Duration
	GracePeriod          time.Duration
}

func (c Config) withDefaults() Config {
	if c.CountdownSeconds <= 0 {
		c.CountdownSeconds = 3
	}
	if c.PostGameGraceSeconds <= 0 {
		c.PostGameGraceSeconds = 2
	}
	if c.CodeLength <= 0 {
		c.CodeLength = 4
	}
	if c.MaxPlayers <= 0 {
		c.MaxPlayers = 2
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = time.Duration(c.PostGameGraceSeconds) * time.Second
	}
	return c
}

// Registry is the authoritative in-memory map of lobbies and membership. Its
// own mutex guards the code and device indices and is always acquired before
// any per-lobby mutex.
type Registry struct {
	mu       sync.Mutex
	lobbies  map[uuid.UUID]*Lobby
	byCode   map[string]uuid.UUID
	byDevice map[string]uuid.UUID

	cfg         Config
	mint        *CodeMint
	broadcaster *Broadcaster
	sink        events.Sink
	directory   directory.PlayerDirectory
	store       persistence.Store
	logger      *logrus.Logger

	// dropFromQueue removes a device from the matchmaking queue; assigned
	// after construction to avoid a package cycle with the queue.
	dropFromQueue func(deviceID string)
}

// NewRegistry builds a Registry. store may be nil, in which case the registry
// is fully in-memory.
func NewRegistry(cfg Config, b *Broadcaster, sink events.Sink, dir directory.PlayerDirectory, store persistence.Store, logger *logrus.Logger) *Registry {
	cfg = cfg.withDefaults()
	if sink == nil {
		sink = events.NopSink{}
	}
	if dir == nil {
		dir = directory.StaticDirectory{}
	}
	return &Registry{
		lobbies:     make(map[uuid.UUID]*Lobby),
		byCode:      make(map[string]uuid.UUID),
		byDevice:    make(map[string]uuid.UUID),
		cfg:         cfg,
		mint:        NewCodeMint(cfg.CodeLength),
		broadcaster: b,
		sink:        sink,
		directory:   dir,
		store:       store,
		logger:      logger,
	}
}

// SetQueueDrop wires the matchmaking queue's removal hook. Called once at
// startup before the registry serves requests.
func (r *Registry) SetQueueDrop(fn func(deviceID string)) {
	r.dropFromQueue = fn
}

// Create makes a new waiting lobby with deviceID as its first member.
func (r *Registry) Create(ctx context.Context, deviceID string) (models.LobbyInfo, error) {
	name := r.resolveName(ctx, deviceID)
	r.removeFromQueue(deviceID)

	r.mu.Lock()
	if _, ok := r.byDevice[deviceID]; ok {
		r.mu.Unlock()
		return models.LobbyInfo{}, NewError(KindAlreadyInLobby, "player is already in a lobby")
	}
	l := r.newLobbyLocked()
	l.Members = append(l.Members, &Member{
		DeviceID: deviceID,
		UserName: name,
		JoinedAt: time.Now(),
	})
	r.byDevice[deviceID] = l.ID

	l.mu.Lock()
	snap := l.snapshotLocked()
	l.mu.Unlock()
	r.mu.Unlock()

	r.sink.Log(events.KindLobbyCreated, logrus.Fields{
		"lobby_code": snap.Code,
		"device_id":  deviceID,
	})
	r.mirrorSave(snap)
	return snap, nil
}

// Join seats deviceID in the lobby identified by code.
func (r *Registry) Join(ctx context.Context, deviceID, code string) (models.LobbyInfo, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !ValidCode(code, r.cfg.CodeLength) {
		return models.LobbyInfo{}, NewError(KindNotFound, "invalid lobby code format")
	}
	name := r.resolveName(ctx, deviceID)
	r.removeFromQueue(deviceID)

	r.mu.Lock()
	id, ok := r.byCode[code]
	if !ok {
		r.mu.Unlock()
		return models.LobbyInfo{}, NewError(KindNotFound, "lobby not found")
	}
	l := r.lobbies[id]
	if existing, ok := r.byDevice[deviceID]; ok {
		r.mu.Unlock()
		if existing == id {
			return models.LobbyInfo{}, NewError(KindAlreadyInLobby, "you are already in this lobby")
		}
		return models.LobbyInfo{}, NewError(KindAlreadyInLobby, "you must leave your current lobby before joining another")
	}

	l.mu.Lock()
	if len(l.Members) >= l.MaxPlayers {
		l.mu.Unlock()
		r.mu.Unlock()
		return models.LobbyInfo{}, NewError(KindFull, "lobby is full")
	}
	if l.Status != models.StatusWaiting {
		l.mu.Unlock()
		r.mu.Unlock()
		return models.LobbyInfo{}, NewError(KindNotJoinable, "cannot join lobby in current state")
	}

	l.Members = append(l.Members, &Member{
		DeviceID: deviceID,
		UserName: name,
		JoinedAt: time.Now(),
	})
	// Any membership change clears readiness for everyone.
	l.resetReadiesLocked()
	l.UpdatedAt = time.Now()
	r.byDevice[deviceID] = id

	snap := l.snapshotLocked()
	r.publish(code, EventPlayerJoined, map[string]interface{}{
		"device_id": deviceID,
		"lobby":     snap,
	})
	l.mu.Unlock()
	r.mu.Unlock()

	r.sink.Log(events.KindLobbyJoined, logrus.Fields{
		"lobby_code":      code,
		"device_id":       deviceID,
		"current_players": snap.CurrentPlayers,
	})
	r.mirrorSave(snap)
	return snap, nil
}

// Leave removes deviceID from its lobby, if any, and applies the departure
// recomputation: cancel a running countdown, clear everyone's readiness, and
// delete the lobby if it emptied. Returns false when the device was not
// seated anywhere. disconnected marks a leave driven by a socket close.
func (r *Registry) Leave(ctx context.Context, deviceID string, disconnected bool) (bool, error) {
	r.mu.Lock()
	id, ok := r.byDevice[deviceID]
	if !ok {
		r.mu.Unlock()
		return false, nil
	}
	l := r.lobbies[id]

	l.mu.Lock()
	if l.Status == models.StatusGameStarted {
		// Lobby is already scheduled for deletion; nothing left to mutate.
		l.mu.Unlock()
		r.mu.Unlock()
		return false, nil
	}
	delete(r.byDevice, deviceID)
	for i, m := range l.Members {
		if m.DeviceID == deviceID {
			l.Members = append(l.Members[:i], l.Members[i+1:]...)
			break
		}
	}
	wasCountdown := l.cancelCountdownLocked()
	l.resetReadiesLocked()
	l.UpdatedAt = time.Now()
	code := l.Code

	kind := events.KindLobbyLeft
	if disconnected {
		kind = events.KindLobbyLeftOnDisconnect
	}

	if len(l.Members) == 0 {
		l.deleted = true
		delete(r.lobbies, id)
		delete(r.byCode, code)
		r.publish(code, EventLobbyDeleted, map[string]interface{}{"reason": "empty"})
		l.mu.Unlock()
		r.mu.Unlock()

		r.broadcaster.DropTopic(code)
		r.sink.Log(kind, logrus.Fields{
			"lobby_code": code,
			"device_id":  deviceID,
		})
		r.sink.Log(events.KindLobbyDeleted, logrus.Fields{
			"lobby_code": code,
			"reason":     "empty",
		})
		r.mirrorDelete(id)
		return true, nil
	}

	l.Status = models.StatusWaiting
	snap := l.snapshotLocked()
	if wasCountdown {
		r.publish(code, EventCountdownAborted, map[string]interface{}{"lobby": snap})
	}
	r.publish(code, EventPlayerLeft, map[string]interface{}{
		"device_id": deviceID,
		"lobby":     snap,
	})
	l.mu.Unlock()
	r.mu.Unlock()

	r.sink.Log(kind, logrus.Fields{
		"lobby_code":        code,
		"device_id":         deviceID,
		"remaining_players": snap.CurrentPlayers,
	})
	if wasCountdown {
		r.sink.Log(events.KindCountdownAborted, logrus.Fields{
			"lobby_code":     code,
			"trigger_player": deviceID,
		})
	}
	r.mirrorSave(snap)
	return true, nil
}

// SetReady updates the member's ready flag and recomputes the lobby status.
// Reaching two ready members starts the countdown; flipping unready during a
// countdown aborts it.
func (r *Registry) SetReady(ctx context.Context, deviceID string, isReady bool) (models.LobbyInfo, error) {
	r.mu.Lock()
	id, ok := r.byDevice[deviceID]
	if !ok {
		r.mu.Unlock()
		return models.LobbyInfo{}, NewError(KindNotInLobby, "player is not in any lobby")
	}
	l := r.lobbies[id]
	r.mu.Unlock()

	l.mu.Lock()
	if l.deleted {
		l.mu.Unlock()
		return models.LobbyInfo{}, NewError(KindNotInLobby, "player is not in any lobby")
	}
	switch l.Status {
	case models.StatusGameStarted:
		l.mu.Unlock()
		return models.LobbyInfo{}, NewError(KindInvalidState, "game already started")
	case models.StatusCountdown:
		if isReady {
			l.mu.Unlock()
			return models.LobbyInfo{}, NewError(KindInvalidState, "countdown already running")
		}
	}
	m := l.memberLocked(deviceID)
	if m == nil {
		l.mu.Unlock()
		return models.LobbyInfo{}, NewError(KindNotInLobby, "player is not in any lobby")
	}

	code := l.Code
	m.IsReady = isReady
	l.UpdatedAt = time.Now()

	var snap models.LobbyInfo
	aborted := false
	started := false
	switch {
	case l.Status == models.StatusCountdown && !isReady:
		l.cancelCountdownLocked()
		l.resetReadiesLocked()
		l.Status = models.StatusWaiting
		snap = l.snapshotLocked()
		r.publish(code, EventReadyStatusChanged, map[string]interface{}{
			"device_id": deviceID,
			"is_ready":  false,
			"lobby":     snap,
		})
		r.publish(code, EventCountdownAborted, map[string]interface{}{"lobby": snap})
		aborted = true

	case len(l.Members) == l.MaxPlayers && l.allReadyLocked():
		snap = l.snapshotLocked()
		r.publish(code, EventReadyStatusChanged, map[string]interface{}{
			"device_id": deviceID,
			"is_ready":  isReady,
			"lobby":     snap,
		})
		// ready_check is ephemeral: it exists only inside this critical
		// section, between the last ready flip and the timer start.
		l.Status = models.StatusReadyCheck
		snap = r.startCountdownLocked(l)
		started = true

	default:
		l.Status = models.StatusWaiting
		snap = l.snapshotLocked()
		r.publish(code, EventReadyStatusChanged, map[string]interface{}{
			"device_id": deviceID,
			"is_ready":  isReady,
			"lobby":     snap,
		})
	}
	l.mu.Unlock()

	r.sink.Log(events.KindReadyToggle, logrus.Fields{
		"lobby_code":   code,
		"device_id":    deviceID,
		"is_ready":     isReady,
		"lobby_status": snap.Status,
	})
	if started {
		r.sink.Log(events.KindCountdownStarted, logrus.Fields{"lobby_code": code})
	}
	if aborted {
		r.sink.Log(events.KindCountdownAborted, logrus.Fields{
			"lobby_code":     code,
			"trigger_player": deviceID,
		})
	}
	r.mirrorSave(snap)
	return snap, nil
}

// Status returns the snapshot of the lobby deviceID is seated in, or nil.
func (r *Registry) Status(deviceID string) *models.LobbyInfo {
	r.mu.Lock()
	id, ok := r.byDevice[deviceID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	l := r.lobbies[id]
	r.mu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.deleted {
		return nil
	}
	snap := l.snapshotLocked()
	return &snap
}

// Pair creates a new waiting lobby seating first and second, in that order.
// first is the earlier queuer and takes seat one. Called by the matchmaking
// queue; it re-verifies that neither device is already seated.
func (r *Registry) Pair(ctx context.Context, first, second string) (models.LobbyInfo, error) {
	nameA := r.resolveName(ctx, first)
	nameB := r.resolveName(ctx, second)

	r.mu.Lock()
	if _, ok := r.byDevice[first]; ok {
		r.mu.Unlock()
		return models.LobbyInfo{}, NewError(KindAlreadyInLobby, fmt.Sprintf("device %s is already in a lobby", first))
	}
	if _, ok := r.byDevice[second]; ok {
		r.mu.Unlock()
		return models.LobbyInfo{}, NewError(KindAlreadyInLobby, fmt.Sprintf("device %s is already in a lobby", second))
	}
	l := r.newLobbyLocked()
	now := time.Now()
	l.Members = append(l.Members,
		&Member{DeviceID: first, UserName: nameA, JoinedAt: now},
		&Member{DeviceID: second, UserName: nameB, JoinedAt: now},
	)
	r.byDevice[first] = l.ID
	r.byDevice[second] = l.ID

	l.mu.Lock()
	snap := l.snapshotLocked()
	r.publish(l.Code, EventPlayerJoined, map[string]interface{}{
		"device_id": first,
		"lobby":     snap,
	})
	r.publish(l.Code, EventPlayerJoined, map[string]interface{}{
		"device_id": second,
		"lobby":     snap,
	})
	l.mu.Unlock()
	r.mu.Unlock()

	r.sink.Log(events.KindMatchFound, logrus.Fields{
		"lobby_code": snap.Code,
		"player1":    first,
		"player2":    second,
	})
	r.mirrorSave(snap)
	return snap, nil
}

// DeviceInLobby reports whether deviceID currently holds a seat anywhere.
func (r *Registry) DeviceInLobby(deviceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byDevice[deviceID]
	return ok
}

// IsMember reports whether deviceID is seated in the lobby with the given code.
func (r *Registry) IsMember(code, deviceID string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byCode[code]
	if !ok {
		return false
	}
	return r.byDevice[deviceID] == id
}

// SnapshotByCode returns the snapshot of a live lobby by code.
func (r *Registry) SnapshotByCode(code string) (models.LobbyInfo, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	r.mu.Lock()
	id, ok := r.byCode[code]
	if !ok {
		r.mu.Unlock()
		return models.LobbyInfo{}, false
	}
	l := r.lobbies[id]
	r.mu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.deleted {
		return models.LobbyInfo{}, false
	}
	return l.snapshotLocked(), true
}

// newLobbyLocked mints a code, indexes and returns a fresh waiting lobby.
// Assumes r.mu is held; the uniqueness check runs against the live code index.
func (r *Registry) newLobbyLocked() *Lobby {
	var code string
	for {
		code = r.mint.Mint(func(c string) bool {
			_, taken := r.byCode[c]
			return taken
		})
		if _, taken := r.byCode[code]; !taken {
			break
		}
	}
	now := time.Now()
	l := &Lobby{
		ID:         uuid.New(),
		Code:       code,
		Status:     models.StatusWaiting,
		MaxPlayers: r.cfg.MaxPlayers,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.lobbies[l.ID] = l
	r.byCode[code] = l.ID
	return l
}

func (r *Registry) publish(code, typ string, data map[string]interface{}) {
	r.broadcaster.Publish(code, NewEvent(typ, data))
}

// resolveName asks the player directory for a display name, falling back to a
// deterministic placeholder. Runs before any lock is taken.
func (r *Registry) resolveName(ctx context.Context, deviceID string) string {
	lookupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	name, err := r.directory.Resolve(lookupCtx, deviceID)
	if err != nil || name == "" {
		return directory.FallbackName(deviceID)
	}
	return name
}

func (r *Registry) removeFromQueue(deviceID string) {
	if r.dropFromQueue != nil {
		r.dropFromQueue(deviceID)
	}
}

// mirrorSave pushes a snapshot to the persistence store on a background
// goroutine. Failures are logged and otherwise ignored; in-memory state stays
// authoritative.
func (r *Registry) mirrorSave(snap models.LobbyInfo) {
	if r.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.store.SaveLobby(ctx, snap); err != nil {
			r.logger.Warnf("persistence: failed to mirror lobby %s: %v", snap.Code, err)
		}
	}()
}

func (r *Registry) mirrorDelete(id uuid.UUID) {
	if r.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.store.DeleteLobby(ctx, id); err != nil {
			r.logger.Warnf("persistence: failed to delete mirrored lobby %s: %v", id, err)
		}
	}()
}
