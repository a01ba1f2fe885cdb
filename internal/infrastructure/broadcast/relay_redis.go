package broadcast

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisSubscription is the part of *redis.PubSub the relay reads from
type redisSubscription interface {
	Channel(opts ...redis.ChannelOption) <-chan *redis.Message
	Close() error
}

type redisTransport interface {
	publish(ctx context.Context, channel string, payload []byte) error
	subscribe(ctx context.Context, channel string) (redisSubscription, error)
}

type goRedisTransport struct {
	client redis.UniversalClient
}

func (t goRedisTransport) publish(ctx context.Context, channel string, payload []byte) error {
	return t.client.Publish(ctx, channel, payload).Err()
}

func (t goRedisTransport) subscribe(ctx context.Context, channel string) (redisSubscription, error) {
	ps := t.client.Subscribe(ctx, channel)
	// wait for the subscribe confirmation so nothing published after Start is lost
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	return ps, nil
}

// RedisRelay fans messages out through a Redis Pub/Sub channel. go-redis
// re-subscribes on its own after a dropped connection.
type RedisRelay struct {
	transport redisTransport
	channel   string
	logger    *zap.Logger

	mu     sync.Mutex
	sub    redisSubscription
	done   chan struct{}
	closed bool
}

// NewRedisRelay creates a relay on the given Pub/Sub channel
func NewRedisRelay(client redis.UniversalClient, channel string, logger *zap.Logger) *RedisRelay {
	return newRedisRelay(goRedisTransport{client: client}, channel, logger)
}

func newRedisRelay(transport redisTransport, channel string, logger *zap.Logger) *RedisRelay {
	return &RedisRelay{
		transport: transport,
		channel:   channel,
		logger:    logger.With(zap.String("relay", "redis"), zap.String("channel", channel)),
	}
}

// Start subscribes and forwards every message to deliver
func (r *RedisRelay) Start(ctx context.Context, deliver DeliverFunc) error {
	sub, err := r.transport.subscribe(ctx, r.channel)
	if err != nil {
		return fmt.Errorf("redis subscribe %s: %w", r.channel, err)
	}

	r.mu.Lock()
	r.sub = sub
	r.done = make(chan struct{})
	r.mu.Unlock()

	go func() {
		defer close(r.done)
		for msg := range sub.Channel() {
			deliver([]byte(msg.Payload))
		}
		r.logger.Debug("redis subscription ended")
	}()

	r.logger.Info("redis relay started")
	return nil
}

// Publish sends the payload to every subscribed instance
func (r *RedisRelay) Publish(ctx context.Context, payload []byte) error {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return ErrRelayClosed
	}
	if err := r.transport.publish(ctx, r.channel, payload); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Close unsubscribes and waits for the forwarding goroutine
func (r *RedisRelay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	sub, done := r.sub, r.done
	r.mu.Unlock()

	if sub == nil {
		return nil
	}
	err := sub.Close()
	<-done
	return err
}

var _ Relay = (*RedisRelay)(nil)
