package proseql

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/simonwjackson/proseql/internal/corelog"
)

// redisRelay republishes a collection's ChangeEvents onto a Redis pub/sub
// channel so other processes opening the same file can observe committed
// changes without polling the file system. Grounded on the teacher's
// cache.RedisCache, repurposed from document caching to change-event
// relay — same client library, same connectivity check at construction.
type redisRelay struct {
	client  *redis.Client
	channel string
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewRedisRelay connects to addr and returns a relay that publishes to
// channel. Call AttachTo to wire it onto a collection's Bus.
func NewRedisRelay(addr, channel string) (*redisRelay, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithCancel(context.Background())
	if err := client.Ping(ctx).Err(); err != nil {
		cancel()
		return nil, fmt.Errorf("proseql: failed to connect to redis at %q: %w", addr, err)
	}
	return &redisRelay{client: client, channel: channel, ctx: ctx, cancel: cancel}, nil
}

// AttachTo wires this relay onto col's Bus, so every future commit also
// publishes to Redis.
func (r *redisRelay) AttachTo(col *Collection) {
	col.bus.attachRelay(r)
}

func (r *redisRelay) publish(ev ChangeEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		corelog.Error("redis relay: failed to marshal change event", zap.Error(err))
		return
	}
	if err := r.client.Publish(r.ctx, r.channel, data).Err(); err != nil {
		corelog.Error("redis relay: publish failed", zap.String("channel", r.channel), zap.Error(err))
	}
}

// Subscribe opens a Redis subscription to this relay's channel, decoding
// each message back into a ChangeEvent. The returned function closes the
// subscription.
func (r *redisRelay) Subscribe(handle func(ChangeEvent)) func() {
	pubsub := r.client.Subscribe(r.ctx, r.channel)
	ch := pubsub.Channel()
	done := make(chan struct{})
	go func() {
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					corelog.Error("redis relay: failed to decode change event", zap.Error(err))
					continue
				}
				handle(ev)
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		pubsub.Close()
	}
}

// Close releases the relay's Redis client.
func (r *redisRelay) Close() error {
	r.cancel()
	return r.client.Close()
}
