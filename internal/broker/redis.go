package broker

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// ErrBrokerClosed is returned by operations on a closed broker.
	ErrBrokerClosed = errors.New("broker is closed")
	// ErrSendTimeout is returned when the outbound queue stays full.
	ErrSendTimeout = errors.New("broker send queue timeout")
)

// Redis bridges topics onto Redis Pub/Sub channels. Each subscription runs
// its own receive goroutine that forwards payloads to the registered handler.
type Redis struct {
	client *redis.Client
	logger *zap.Logger

	mu     sync.Mutex
	subs   map[string]*redisSub
	closed bool
}

type redisSub struct {
	pubsub *redis.PubSub
	cancel context.CancelFunc
}

// NewRedis creates a broker on top of an already-connected Redis client.
func NewRedis(client *redis.Client, logger *zap.Logger) *Redis {
	return &Redis{
		client: client,
		logger: logger,
		subs:   make(map[string]*redisSub),
	}
}

func (r *Redis) Publish(ctx context.Context, topic string, payload []byte) error {
	return r.client.Publish(ctx, topic, payload).Err()
}

func (r *Redis) Subscribe(ctx context.Context, topic string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrBrokerClosed
	}
	if prev, ok := r.subs[topic]; ok {
		prev.cancel()
		_ = prev.pubsub.Close()
		delete(r.subs, topic)
	}

	pubsub := r.client.Subscribe(ctx, topic)

	// Make sure the subscription is established before we report success,
	// otherwise a publish racing this call could be lost silently.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}

	recvCtx, cancel := context.WithCancel(context.Background())
	r.subs[topic] = &redisSub{pubsub: pubsub, cancel: cancel}

	go r.receive(recvCtx, topic, pubsub, h)
	return nil
}

func (r *Redis) receive(ctx context.Context, topic string, pubsub *redis.PubSub, h Handler) {
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				r.logger.Warn("redis subscription channel closed", zap.String("topic", topic))
				return
			}
			h(topic, []byte(msg.Payload))
		}
	}
}

func (r *Redis) Unsubscribe(ctx context.Context, topic string) error {
	r.mu.Lock()
	sub, ok := r.subs[topic]
	if ok {
		delete(r.subs, topic)
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}
	sub.cancel()
	if err := sub.pubsub.Unsubscribe(ctx, topic); err != nil {
		r.logger.Warn("redis unsubscribe failed", zap.String("topic", topic), zap.Error(err))
	}
	return sub.pubsub.Close()
}

func (r *Redis) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	for topic, sub := range r.subs {
		sub.cancel()
		if err := sub.pubsub.Close(); err != nil {
			r.logger.Warn("closing redis subscription failed", zap.String("topic", topic), zap.Error(err))
		}
	}
	r.subs = make(map[string]*redisSub)
	return nil
}
