// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/duelmatch/duelmatch/internal/config"
	"github.com/duelmatch/duelmatch/internal/directory"
	"github.com/duelmatch/duelmatch/internal/events"
	"github.com/duelmatch/duelmatch/internal/handlers"
	"github.com/duelmatch/duelmatch/internal/hub"
	"github.com/duelmatch/duelmatch/internal/lobby"
	"github.com/duelmatch/duelmatch/internal/matchmaking"
	"github.com/duelmatch/duelmatch/internal/middleware"
	"github.com/duelmatch/duelmatch/internal/persistence"
)

func main() {
	cfg := config.Load()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	ctx := context.Background()

	// Optional Postgres mirror and player directory.
	var store persistence.Store
	var dir directory.PlayerDirectory
	if cfg.PostgresURL != "" {
		pg, err := persistence.Connect(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Fatalf("postgres connect failed: %v", err)
		}
		defer pg.Close()
		store = pg
		dir = directory.NewPostgres(pg.Pool)
		logger.Info("Postgres persistence enabled")
	}

	// Event sink: structured logs always, Redis list when configured.
	sink := events.Sink(events.NewLogSink(logger))
	if cfg.RedisAddr != "" {
		client, err := events.ConnectRedis(cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("redis connect failed: %v", err)
		}
		defer client.Close()
		sink = events.MultiSink{sink, events.NewRedisSink(client, cfg.EventQueueName, logger)}
		logger.Infof("Redis event sink enabled on list '%s'", cfg.EventQueueName)
	}

	broadcaster := lobby.NewBroadcaster(logger)
	registry := lobby.NewRegistry(lobby.Config{
		CountdownSeconds:     cfg.CountdownSeconds,
		PostGameGraceSeconds: cfg.PostGameGraceSeconds,
		CodeLength:           cfg.CodeLength,
		MaxPlayers:           cfg.MaxPlayers,
	}, broadcaster, sink, dir, store, logger)

	queue := matchmaking.NewQueue(registry, sink, store, cfg.QueueETASeconds, logger)
	registry.SetQueueDrop(func(deviceID string) { queue.Remove(deviceID) })

	h := hub.NewHub(broadcaster, registry, logger)
	server := handlers.NewServer(registry, queue, h, logger)

	handler := middleware.LogMiddleware(logger)(server.Routes())

	addr := ":" + cfg.Port
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
