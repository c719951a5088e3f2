// Package redisbus carries lifecycle events between instances over Redis
// pub/sub. Every instance publishes to one channel and relays that channel to
// its own websocket hub, so a client sees events regardless of which instance
// served the write.
package redisbus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"lifeline/internal/notify"
)

// DefaultChannel is used when no channel is configured.
const DefaultChannel = "lifeline:events"

// Bus publishes to and relays from a Redis channel.
type Bus struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// New creates a bus on channel (DefaultChannel when empty).
func New(client *redis.Client, channel string, logger *slog.Logger) *Bus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Bus{client: client, channel: channel, logger: logger}
}

// Publish sends the event to every subscribed instance.
func (b *Bus) Publish(ctx context.Context, event notify.Event) error {
	payload, err := notify.Encode(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.Name, err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", event.Name, err)
	}
	return nil
}

// Relay forwards every message on the channel to dst until ctx is done.
// Malformed messages are logged and skipped.
func (b *Bus) Relay(ctx context.Context, dst notify.Broadcaster) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed so callers can publish
	// right after Relay reports ready.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("relaying events from redis", "channel", b.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			env, err := notify.Decode([]byte(msg.Payload))
			if err != nil {
				b.logger.Warn("skipping malformed event", "channel", msg.Channel, "error", err)
				continue
			}
			dst.Broadcast(env)
		}
	}
}
