package sse

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"mailsorter/internal/logger"
)

// relayMessage carries the user id that Envelope hides from clients.
type relayMessage struct {
	UserID string   `json:"user_id"`
	Event  Envelope `json:"event"`
}

// RedisRelay publishes events on a Redis channel so every instance can reach its own connections.
type RedisRelay struct {
	rdb     *redis.Client
	channel string
	manager *SSEManager
	logger  *logger.Logger
}

func NewRedisRelay(rdb *redis.Client, channel string, manager *SSEManager, logger *logger.Logger) *RedisRelay {
	return &RedisRelay{rdb: rdb, channel: channel, manager: manager, logger: logger}
}

func (r *RedisRelay) Publish(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(relayMessage{UserID: env.UserID, Event: env})
	if err != nil {
		return fmt.Errorf("failed to marshal relay message: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.channel, body).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Run delivers relayed events to local connections until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	r.logger.Info("Relaying SSE events over Redis channel", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *RedisRelay) handle(payload string) {
	var relayed relayMessage
	if err := json.Unmarshal([]byte(payload), &relayed); err != nil {
		r.logger.Warn("Dropping malformed relay message:", err)
		return
	}
	relayed.Event.UserID = relayed.UserID
	r.manager.Deliver(relayed.Event)
}
