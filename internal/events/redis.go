// internal/events/redis.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// eventRecord is the JSON shape pushed onto the Redis list for out-of-process
// consumers (dashboards, audit jobs).
type eventRecord struct {
	EventKind string                 `json:"event_kind"`
	Fields    map[string]interface{} `json:"fields"`
	Timestamp int64                  `json:"timestamp"`
}

// RedisSink appends events to a Redis list. Pushes happen on a background
// goroutine so the caller never waits on the network.
type RedisSink struct {
	client *redis.Client
	queue  string
	logger *logrus.Logger
}

// ConnectRedis opens and pings a Redis client.
func ConnectRedis(addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return client, nil
}

// NewRedisSink returns a Sink pushing onto the named list.
func NewRedisSink(client *redis.Client, queue string, logger *logrus.Logger) *RedisSink {
	return &RedisSink{client: client, queue: queue, logger: logger}
}

func (s *RedisSink) Log(kind string, fields logrus.Fields) {
	rec := eventRecord{
		EventKind: kind,
		Fields:    fields,
		Timestamp: time.Now().UnixMilli(),
	}
	go func() {
		data, err := json.Marshal(rec)
		if err != nil {
			s.logger.Warnf("event sink: failed to marshal %s record: %v", kind, err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.client.RPush(ctx, s.queue, data).Err(); err != nil {
			s.logger.Warnf("event sink: failed to RPush to '%s': %v", s.queue, err)
		}
	}()
}
