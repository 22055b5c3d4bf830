// internal/directory/directory.go
package directory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PlayerDirectory resolves a device id to a display name. The lobby core only
// depends on this contract; the concrete implementation is injected at startup.
type PlayerDirectory interface {
	Resolve(ctx context.Context, deviceID string) (string, error)
}

// FallbackName is the deterministic display name used when a device has no
// directory entry or the lookup fails.
func FallbackName(deviceID string) string {
	short := deviceID
	if len(short) > 4 {
		short = short[:4]
	}
	return fmt.Sprintf("Player_%s", short)
}

// PostgresDirectory resolves names from the players table.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgres returns a directory backed by the given pool.
func NewPostgres(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

// Resolve fetches the player's user_name. A registered player with no name
// set resolves to the fallback.
func (d *PostgresDirectory) Resolve(ctx context.Context, deviceID string) (string, error) {
	var name *string
	q := `SELECT user_name FROM players WHERE device_id = $1`
	if err := d.pool.QueryRow(ctx, q, deviceID).Scan(&name); err != nil {
		return "", err
	}
	if name == nil || *name == "" {
		return FallbackName(deviceID), nil
	}
	return *name, nil
}

// StaticDirectory needs no backing store and always answers with the fallback
// name. Used when the service runs without Postgres.
type StaticDirectory struct{}

func (StaticDirectory) Resolve(_ context.Context, deviceID string) (string, error) {
	return FallbackName(deviceID), nil
}
