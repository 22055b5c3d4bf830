// internal/persistence/postgres.go
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duelmatch/duelmatch/internal/models"
)

// Postgres mirrors lobby state into the lobbies, lobby_members and
// matchmaking_queue tables.
type Postgres struct {
	Pool *pgxpool.Pool
}

// Connect opens a pgx pool against connString and verifies it with a ping.
func Connect(ctx context.Context, connString string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return &Postgres{Pool: pool}, nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.Pool.Close()
}

// SaveLobby upserts the lobby row and rewrites its member rows in one
// transaction.
func (p *Postgres) SaveLobby(ctx context.Context, snap models.LobbyInfo) error {
	return pgx.BeginTxFunc(ctx, p.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
		INSERT INTO lobbies (id, code, status, max_players, current_players, countdown_start_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_players = EXCLUDED.current_players,
			countdown_start_time = EXCLUDED.countdown_start_time,
			updated_at = now()
		`
		_, err := tx.Exec(ctx, q,
			snap.ID, snap.Code, snap.Status, snap.MaxPlayers,
			snap.CurrentPlayers, snap.CountdownStartTime, snap.CreatedAt,
		)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM lobby_members WHERE lobby_id = $1`, snap.ID); err != nil {
			return err
		}
		for _, player := range snap.Players {
			_, err := tx.Exec(ctx,
				`INSERT INTO lobby_members (lobby_id, device_id, is_ready, joined_at) VALUES ($1, $2, $3, $4)`,
				snap.ID, player.DeviceID, player.IsReady, player.JoinedAt,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteLobby removes the lobby row and its members.
func (p *Postgres) DeleteLobby(ctx context.Context, id uuid.UUID) error {
	return pgx.BeginTxFunc(ctx, p.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM lobby_members WHERE lobby_id = $1`, id); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM lobbies WHERE id = $1`, id)
		return err
	})
}

// SaveQueueEntry mirrors one waiter row.
func (p *Postgres) SaveQueueEntry(ctx context.Context, entry QueueEntry) error {
	q := `
	INSERT INTO matchmaking_queue (id, device_id, queue_time)
	VALUES ($1, $2, $3)
	ON CONFLICT (device_id) DO NOTHING
	`
	_, err := p.Pool.Exec(ctx, q, entry.ID, entry.DeviceID, entry.QueueTime)
	return err
}

// DeleteQueueEntry removes a waiter row.
func (p *Postgres) DeleteQueueEntry(ctx context.Context, deviceID string) error {
	_, err := p.Pool.Exec(ctx, `DELETE FROM matchmaking_queue WHERE device_id = $1`, deviceID)
	return err
}
