// internal/matchmaking/queue.go
package matchmaking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/duelmatch/duelmatch/internal/events"
	"github.com/duelmatch/duelmatch/internal/lobby"
	"github.com/duelmatch/duelmatch/internal/models"
	"github.com/duelmatch/duelmatch/internal/persistence"
)

type waiter struct {
	ID        uuid.UUID
	DeviceID  string
	QueueTime time.Time
}

// Pairer is the slice of the lobby registry the queue needs: seat two devices
// together and answer whether a device is already seated.
type Pairer interface {
	Pair(ctx context.Context, first, second string) (models.LobbyInfo, error)
	DeviceInLobby(deviceID string) bool
}

// Queue is the FIFO matchmaking line. One mutex guards the slice; pairing
// happens with the mutex released so the registry can take its own locks.
type Queue struct {
	mu      sync.Mutex
	waiters []*waiter

	registry   Pairer
	sink       events.Sink
	store      persistence.Store
	logger     *logrus.Logger
	etaSeconds int
}

// NewQueue builds a queue. store may be nil. etaSeconds is the per-pair wait
// estimate used by the position heuristic.
func NewQueue(registry Pairer, sink events.Sink, store persistence.Store, etaSeconds int, logger *logrus.Logger) *Queue {
	if sink == nil {
		sink = events.NopSink{}
	}
	if etaSeconds <= 0 {
		etaSeconds = 20
	}
	return &Queue{
		registry:   registry,
		sink:       sink,
		store:      store,
		logger:     logger,
		etaSeconds: etaSeconds,
	}
}

// FindMatch pairs the caller with the earliest waiter, or enqueues the caller
// when nobody is waiting. The earlier queuer always takes seat one.
func (q *Queue) FindMatch(ctx context.Context, deviceID string) (models.MatchmakingResponse, error) {
	if q.registry.DeviceInLobby(deviceID) {
		return models.MatchmakingResponse{}, lobby.NewError(lobby.KindAlreadyInLobby, "player is already in a lobby")
	}

	for {
		q.mu.Lock()
		if idx := q.indexLocked(deviceID); idx >= 0 {
			pos := idx + 1
			eta := q.estimateWait(pos)
			q.mu.Unlock()
			return models.MatchmakingResponse{
				Success:           true,
				InQueue:           true,
				QueuePosition:     &pos,
				EstimatedWaitTime: &eta,
				Message:           "already in queue",
			}, nil
		}
		if len(q.waiters) == 0 {
			w := &waiter{ID: uuid.New(), DeviceID: deviceID, QueueTime: time.Now()}
			q.waiters = append(q.waiters, w)
			pos := 1
			eta := q.estimateWait(pos)
			q.mu.Unlock()

			q.sink.Log(events.KindQueueJoin, logrus.Fields{
				"device_id":      deviceID,
				"queue_position": pos,
			})
			q.mirrorEnqueue(w)
			return models.MatchmakingResponse{
				Success:           true,
				InQueue:           true,
				QueuePosition:     &pos,
				EstimatedWaitTime: &eta,
				Message:           "added to matchmaking queue",
			}, nil
		}

		head := q.waiters[0]
		q.waiters = q.waiters[1:]
		q.mu.Unlock()

		q.mirrorDequeue(head.DeviceID)
		snap, err := q.registry.Pair(ctx, head.DeviceID, deviceID)
		if err != nil {
			if q.registry.DeviceInLobby(deviceID) {
				// The caller got seated concurrently; put the head back.
				q.requeueFront(head)
				return models.MatchmakingResponse{}, lobby.NewError(lobby.KindAlreadyInLobby, "player is already in a lobby")
			}
			// Stale waiter already seated elsewhere: drop it and try the next.
			q.logger.Debugf("matchmaking: dropping stale waiter %s: %v", head.DeviceID, err)
			continue
		}
		return models.MatchmakingResponse{
			Success: true,
			InQueue: false,
			Message: "match found",
			Lobby:   &snap,
		}, nil
	}
}

// LeaveQueue removes the caller from the line. Leaving when not queued is not
// an error.
func (q *Queue) LeaveQueue(deviceID string) models.MatchmakingResponse {
	removed := q.Remove(deviceID)
	msg := "not in queue"
	if removed {
		msg = "removed from matchmaking queue"
		q.sink.Log(events.KindQueueLeave, logrus.Fields{"device_id": deviceID})
	}
	return models.MatchmakingResponse{
		Success: true,
		InQueue: false,
		Message: msg,
	}
}

// Status reports the caller's current position, if queued.
func (q *Queue) Status(deviceID string) models.MatchmakingResponse {
	q.mu.Lock()
	idx := q.indexLocked(deviceID)
	q.mu.Unlock()
	if idx < 0 {
		return models.MatchmakingResponse{Success: true, InQueue: false}
	}
	pos := idx + 1
	eta := q.estimateWait(pos)
	return models.MatchmakingResponse{
		Success:           true,
		InQueue:           true,
		QueuePosition:     &pos,
		EstimatedWaitTime: &eta,
	}
}

// Remove drops deviceID from the line if present. Wired into the registry so
// creating or joining a lobby implicitly dequeues.
func (q *Queue) Remove(deviceID string) bool {
	q.mu.Lock()
	idx := q.indexLocked(deviceID)
	if idx < 0 {
		q.mu.Unlock()
		return false
	}
	q.waiters = append(q.waiters[:idx], q.waiters[idx+1:]...)
	q.mu.Unlock()
	q.mirrorDequeue(deviceID)
	return true
}

// Len reports the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiters)
}

func (q *Queue) indexLocked(deviceID string) int {
	for i, w := range q.waiters {
		if w.DeviceID == deviceID {
			return i
		}
	}
	return -1
}

// estimateWait maps a queue position to a wait estimate in seconds: each
// pair ahead of you costs one match interval, floored at five seconds.
func (q *Queue) estimateWait(position int) int {
	pairsAhead := position / 2
	eta := pairsAhead * q.etaSeconds
	if eta < 5 {
		eta = 5
	}
	return eta
}

func (q *Queue) requeueFront(w *waiter) {
	q.mu.Lock()
	q.waiters = append([]*waiter{w}, q.waiters...)
	q.mu.Unlock()
	q.mirrorEnqueue(w)
}

func (q *Queue) mirrorEnqueue(w *waiter) {
	if q.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		entry := persistence.QueueEntry{ID: w.ID, DeviceID: w.DeviceID, QueueTime: w.QueueTime}
		if err := q.store.SaveQueueEntry(ctx, entry); err != nil {
			q.logger.Warnf("persistence: failed to mirror queue entry for %s: %v", w.DeviceID, err)
		}
	}()
}

func (q *Queue) mirrorDequeue(deviceID string) {
	if q.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := q.store.DeleteQueueEntry(ctx, deviceID); err != nil {
			q.logger.Warnf("persistence: failed to delete queue entry for %s: %v", deviceID, err)
		}
	}()
}
