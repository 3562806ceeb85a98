package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultRedisChannel = "tournament-events"

// redisMessage is the wire form on the channel. Origin identifies the
// publishing instance so its own relay can skip the message.
type redisMessage struct {
	Origin string `json:"origin"`
	Event
}

// RedisPublisher forwards events to a Redis pub/sub channel. A RedisRelay on
// every other instance hands them to its local hub.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	origin  string
}

func NewRedisPublisher(redisURL, channel string) (*RedisPublisher, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("redis url is required")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisPublisher{rdb: redis.NewClient(opts), channel: channel, origin: uuid.NewString()}, nil
}

// Ping checks connectivity; main calls it once at startup.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	if err := p.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(redisMessage{Origin: p.origin, Event: event})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", event.Type, err)
	}
	return nil
}

// Relay returns a subscriber on the same channel that delivers events
// published by other instances to local.
func (p *RedisPublisher) Relay(local Publisher, logger *slog.Logger) *RedisRelay {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRelay{rdb: p.rdb, channel: p.channel, origin: p.origin, local: local, logger: logger}
}

func (p *RedisPublisher) Close() error {
	if p == nil || p.rdb == nil {
		return nil
	}
	return p.rdb.Close()
}

type RedisRelay struct {
	rdb     *redis.Client
	channel string
	origin  string
	local   Publisher
	logger  *slog.Logger
}

// Run subscribes to the channel and relays messages until ctx is cancelled.
// go-redis reconnects the subscription on its own.
func (r *RedisRelay) Run(ctx context.Context) {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()
	r.logger.Info("redis relay subscribed", slog.String("channel", r.channel))

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("redis relay stopped")
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if err := r.handle(ctx, msg.Payload); err != nil {
				r.logger.Warn("failed to relay event", slog.Any("error", err))
			}
		}
	}
}

func (r *RedisRelay) handle(ctx context.Context, payload string) error {
	var msg redisMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return fmt.Errorf("decode relayed event: %w", err)
	}
	if msg.Origin == r.origin {
		return nil
	}
	return r.local.Publish(ctx, msg.Event)
}
