package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultRelayChannel = "workflow:invalidations"

var errMissingRedisClient = errors.New("notify: redis client is required")

type relayEnvelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// RedisRelay shares invalidations between instances over a Redis pub/sub channel.
// Each instance tags what it publishes so it never redelivers its own events.
type RedisRelay struct {
	client  *redis.Client
	channel string
	origin  string
	logger  *zap.Logger
}

// NewRedisRelay connects to the Redis server behind redisURL.
func NewRedisRelay(ctx context.Context, redisURL, channel string, logger *zap.Logger) (*RedisRelay, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisRelayWithClient(client, channel, logger)
}

// NewRedisRelayWithClient builds a relay from an existing client.
func NewRedisRelayWithClient(client *redis.Client, channel string, logger *zap.Logger) (*RedisRelay, error) {
	if client == nil {
		return nil, errMissingRedisClient
	}
	if channel == "" {
		channel = defaultRelayChannel
	}
	if logger == nil {
		logger = noOpLogger
	}
	return &RedisRelay{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  logger,
	}, nil
}

// Relay publishes the event for the other instances.
func (r *RedisRelay) Relay(ctx context.Context, event Event) error {
	payload, err := json.Marshal(relayEnvelope{Origin: r.origin, Event: event})
	if err != nil {
		return fmt.Errorf("marshal invalidation: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish invalidation: %w", err)
	}
	return nil
}

// Run listens until ctx ends and hands foreign events to deliver.
// ready, when non-nil, is closed once the subscription is confirmed.
func (r *RedisRelay) Run(ctx context.Context, deliver func(Event), ready chan<- struct{}) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe invalidations: %w", err)
	}
	if ready != nil {
		close(ready)
	}
	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case message, ok := <-messages:
			if !ok {
				return nil
			}
			var envelope relayEnvelope
			if err := json.Unmarshal([]byte(message.Payload), &envelope); err != nil {
				r.logger.Warn("invalidation payload rejected", zap.Error(err))
				continue
			}
			if envelope.Origin == r.origin {
				continue
			}
			deliver(envelope.Event)
		}
	}
}

// Close releases the Redis connection.
func (r *RedisRelay) Close() error {
	return r.client.Close()
}
