// internal/persistence/store.go
package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/duelmatch/duelmatch/internal/models"
)

// QueueEntry mirrors one matchmaking waiter.
type QueueEntry struct {
	ID        uuid.UUID
	DeviceID  string
	QueueTime time.Time
}

// Store mirrors the in-memory lobby and queue state to a durable backend for
// observability. In-memory state stays authoritative while a lobby is alive:
// mirror writes are best-effort and never roll anything back.
type Store interface {
	SaveLobby(ctx context.Context, snap models.LobbyInfo) error
	DeleteLobby(ctx context.Context, id uuid.UUID) error
	SaveQueueEntry(ctx context.Context, entry QueueEntry) error
	DeleteQueueEntry(ctx context.Context, deviceID string) error
}
