package crosstab

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis pub/sub channel used when none is
// configured.
const DefaultChannel = "hud:dashboard"

// RedisBroadcaster carries broadcast messages over a Redis pub/sub
// channel, letting hud instances on different terminals (or machines)
// of the same user share one logical channel. Delivery is at-most-once;
// the timestamp rule absorbs any drops or reordering.
type RedisBroadcaster struct {
	rdb     *redis.Client
	channel string
}

// NewRedisBroadcaster connects a broadcaster to the named channel.
func NewRedisBroadcaster(opts *redis.Options, channel string) (*RedisBroadcaster, error) {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBroadcaster{
		rdb:     redis.NewClient(opts),
		channel: channel,
	}, nil
}

// Ping verifies connectivity. Useful at startup so a dead channel is
// reported once instead of on every publish.
func (r *RedisBroadcaster) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Publish implements Broadcaster.
func (r *RedisBroadcaster) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling broadcast message: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", r.channel, err)
	}
	return nil
}

// Subscribe implements Broadcaster. Messages that fail to decode are
// logged and skipped; a malformed sibling must not take this instance
// down.
func (r *RedisBroadcaster) Subscribe(ctx context.Context, handler func(Message)) (func(), error) {
	pubsub := r.rdb.Subscribe(ctx, r.channel)

	// Confirm the subscription before returning so callers never miss
	// messages published right after Subscribe.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", r.channel, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case raw, ok := <-ch:
				if !ok {
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					log.Printf("crosstab: dropping malformed broadcast: %v", err)
					continue
				}
				handler(msg)
			}
		}
	}()

	return cancel, nil
}

// Close implements Broadcaster.
func (r *RedisBroadcaster) Close() error {
	return r.rdb.Close()
}
