// Package analytics delivers domain events to the external analytics stream.
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	TopicCombinations = "combinations"
	TopicOrders       = "orders"
)

var ErrDeliveryFailed = errors.New("analytics delivery failed")

// Event is one message for a topic. Key identifies the entity the event is
// about (combination id or order id).
type Event struct {
	Topic   string
	Key     string
	Payload any
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NoopPublisher is used when no analytics backend is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close() error                         { return nil }

// RedisStreamPublisher appends events to one Redis stream per topic.
type RedisStreamPublisher struct {
	client *redis.Client
	prefix string
	maxLen int64
}

func NewRedisStreamPublisher(client *redis.Client, prefix string, maxLen int64) *RedisStreamPublisher {
	return &RedisStreamPublisher{client: client, prefix: prefix, maxLen: maxLen}
}

func (p *RedisStreamPublisher) Stream(topic string) string {
	return p.prefix + topic
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event.Topic, err)
	}

	args := &redis.XAddArgs{
		Stream: p.Stream(event.Topic),
		Values: map[string]any{"key": event.Key, "payload": string(body)},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to append to stream %s: %w", args.Stream, err)
	}
	return nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (p *RedisStreamPublisher) Close() error {
	return nil
}
