package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel external workers subscribe to.
const DefaultChannel = "clinic:updates"

// RedisPublisher pushes events onto a Redis pub/sub channel for consumers
// outside the process (messaging workers, dashboards).
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher builds a publisher for the given channel; an empty
// channel name selects DefaultChannel.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

// Publish serializes the event and publishes it. Delivery is best-effort:
// the caller records failures for observability only.
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	if p == nil || p.client == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}
