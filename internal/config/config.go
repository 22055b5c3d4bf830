// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all tunables read from the environment at startup.
// Persistence and the Redis event queue are optional: an empty PostgresURL
// or RedisAddr disables the corresponding component.
type Config struct {
	Port string

	CountdownSeconds     int
	PostGameGraceSeconds int
	CodeLength           int
	MaxPlayers           int
	QueueETASeconds      int

	PostgresURL    string
	RedisAddr      string
	RedisDB        int
	EventQueueName string
}

// Load reads the configuration from environment variables, applying defaults
// for anything unset.
func Load() Config {
	return Config{
		Port:                 getEnv("PORT", "8080"),
		CountdownSeconds:     getEnvInt("COUNTDOWN_SECONDS", 3),
		PostGameGraceSeconds: getEnvInt("POST_GAME_GRACE_SECONDS", 2),
		CodeLength:           getEnvInt("CODE_LENGTH", 4),
		MaxPlayers:           getEnvInt("MAX_PLAYERS", 2),
		QueueETASeconds:      getEnvInt("QUEUE_ETA_SECONDS", 30),
		PostgresURL:          postgresURL(),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		EventQueueName:       getEnv("EVENT_QUEUE_NAME", "lobby_events"),
	}
}

// postgresURL composes a connection string from the POSTGRES_*/PG_* variables.
// Returns empty if PG_HOST is unset, which disables persistence entirely.
func postgresURL() string {
	host := getEnv("PG_HOST", "")
	if host == "" {
		return ""
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		host,
		getEnv("PG_PORT", "5432"),
		os.Getenv("PG_DATABASE"),
	)
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
