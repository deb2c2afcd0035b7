// Package pubsub relays update events between processes over Redis PUBLISH/SUBSCRIBE.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"stockfeed/internal/feature/prices/domain/entity"
	"stockfeed/internal/feature/prices/usecase"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the Redis channel update events travel on.
const DefaultChannel = "market"

// RedisPublisher implements usecase.Publisher using Redis PUBLISH.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

var _ usecase.Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher creates a new RedisPublisher instance.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

// Publish encodes ev as JSON and publishes it on the channel.
// Zero subscribers is not an error.
func (p *RedisPublisher) Publish(ctx context.Context, ev entity.UpdateEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal update event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", p.channel, err)
	}
	return nil
}

// Broadcaster is the local fan-out the relay forwards into.
type Broadcaster interface {
	Publish(group, symbol string, payload []byte) int
}

// Relay subscribes to the channel and forwards every event to a local group.
type Relay struct {
	client  *redis.Client
	channel string
	group   string
	target  Broadcaster
	log     *zap.Logger
}

// NewRelay creates a new Relay instance.
func NewRelay(client *redis.Client, channel, group string, target Broadcaster, log *zap.Logger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Relay{client: client, channel: channel, group: group, target: target, log: log}
}

// Run blocks until ctx is cancelled or the subscription fails.
func (r *Relay) Run(ctx context.Context) error {
	ps := r.client.Subscribe(ctx, r.channel)
	defer ps.Close()

	// 購読確立を待つ
	if _, err := ps.Receive(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("redis subscribe %s: %w", r.channel, err)
	}
	r.log.Info("relay subscribed", zap.String("channel", r.channel), zap.String("group", r.group))

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.forward(msg.Payload)
		}
	}
}

func (r *Relay) forward(payload string) {
	var ev entity.UpdateEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil || ev.Symbol == "" {
		r.log.Warn("dropping malformed update event", zap.String("channel", r.channel), zap.Error(err))
		return
	}
	n := r.target.Publish(r.group, ev.Symbol, []byte(payload))
	r.log.Debug("relayed update event", zap.String("symbol", ev.Symbol), zap.Int("delivered", n))
}
