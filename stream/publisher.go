package stream

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"taskboard-api/domain"
)

// RedisPublisher pushes board events onto a redis channel so every API
// instance can bridge them to its own connected sessions.
type RedisPublisher struct {
	rc      *redis.Client
	channel string
}

func NewRedisPublisher(rc *redis.Client, channel string) *RedisPublisher {
	if rc == nil {
		panic("stream: redis client is required")
	}
	if channel == "" {
		panic("stream: channel name is required")
	}
	return &RedisPublisher{rc: rc, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev domain.Event) error {
	payload, err := sonic.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rc.Publish(ctx, p.channel, payload).Err()
}

// LocalPublisher feeds the hub directly. Used when redis is not
// configured and a single instance serves all clients.
type LocalPublisher struct {
	hub *Hub
}

func NewLocalPublisher(hub *Hub) *LocalPublisher {
	if hub == nil {
		panic("stream: hub is required")
	}
	return &LocalPublisher{hub: hub}
}

func (p *LocalPublisher) Publish(_ context.Context, ev domain.Event) error {
	p.hub.Broadcast(ev)
	return nil
}
