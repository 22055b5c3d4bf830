// internal/lobby/countdown.go
package lobby

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/duelmatch/duelmatch/internal/events"
	"github.com/duelmatch/duelmatch/internal/models"
)

// startCountdownLocked flips the lobby into countdown and spawns the ticker
// goroutine. Caller holds l.mu. The goroutine captures the current generation;
// any later cancel bumps it and orphans the goroutine.
func (r *Registry) startCountdownLocked(l *Lobby) models.LobbyInfo {
	now := time.Now()
	l.Status = models.StatusCountdown
	l.CountdownStartTime = &now
	l.UpdatedAt = now
	gen := l.countdownGen

	snap := l.snapshotLocked()
	r.publish(l.Code, EventCountdownStarted, map[string]interface{}{
		"countdown_seconds": r.cfg.CountdownSeconds,
		"lobby":             snap,
	})
	go r.runCountdown(l, gen)
	return snap
}

// cancelCountdownLocked invalidates a running countdown, if any. Caller holds
// l.mu. Returns whether a countdown was actually running.
func (l *Lobby) cancelCountdownLocked() bool {
	if l.Status != models.StatusCountdown {
		return false
	}
	l.countdownGen++
	l.CountdownStartTime = nil
	return true
}

// runCountdown emits one tick per interval, counting seconds_remaining down
// to zero, then hands off to finishCountdown. Every wakeup re-checks the
// generation under l.mu: a stale goroutine publishes nothing and exits.
func (r *Registry) runCountdown(l *Lobby, gen uint64) {
	for remaining := r.cfg.CountdownSeconds - 1; remaining >= 0; remaining-- {
		time.Sleep(r.cfg.TickInterval)

		l.mu.Lock()
		if l.deleted || l.countdownGen != gen || l.Status != models.StatusCountdown {
			l.mu.Unlock()
			return
		}
		r.publish(l.Code, EventCountdownTick, map[string]interface{}{
			"seconds_remaining": remaining,
		})
		l.mu.Unlock()
	}
	r.finishCountdown(l, gen)
}

// finishCountdown transitions countdown -> game_started, then deletes the
// lobby after the grace period so late subscribers can still observe the
// result.
func (r *Registry) finishCountdown(l *Lobby, gen uint64) {
	l.mu.Lock()
	if l.deleted || l.countdownGen != gen || l.Status != models.StatusCountdown {
		l.mu.Unlock()
		return
	}
	l.Status = models.StatusGameStarted
	l.CountdownStartTime = nil
	l.UpdatedAt = time.Now()
	code := l.Code
	snap := l.snapshotLocked()
	r.publish(code, EventGameStarted, map[string]interface{}{
		"lobby_code": code,
		"lobby":      snap,
	})
	l.mu.Unlock()

	r.sink.Log(events.KindGameStarted, logrus.Fields{
		"lobby_code":   code,
		"player_count": snap.CurrentPlayers,
	})
	r.mirrorSave(snap)

	time.Sleep(r.cfg.GracePeriod)
	r.deleteAfterGame(l, gen)
}

// deleteAfterGame tears the lobby down once the post-game grace elapses. Lock
// order matches the rest of the registry: r.mu before l.mu.
func (r *Registry) deleteAfterGame(l *Lobby, gen uint64) {
	r.mu.Lock()
	l.mu.Lock()
	if l.deleted || l.countdownGen != gen || l.Status != models.StatusGameStarted {
		l.mu.Unlock()
		r.mu.Unlock()
		return
	}
	l.deleted = true
	code := l.Code
	id := l.ID
	for _, m := range l.Members {
		if r.byDevice[m.DeviceID] == id {
			delete(r.byDevice, m.DeviceID)
		}
	}
	delete(r.lobbies, id)
	delete(r.byCode, code)
	r.publish(code, EventLobbyDeleted, map[string]interface{}{"reason": "game_started"})
	l.mu.Unlock()
	r.mu.Unlock()

	r.broadcaster.DropTopic(code)
	r.sink.Log(events.KindLobbyDeleted, logrus.Fields{
		"lobby_code": code,
		"reason":     "game_started",
	})
	r.mirrorDelete(id)
}
