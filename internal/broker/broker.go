package broker

import "context"

// Handler receives the raw payload delivered on a topic. It is invoked on the
// broker's delivery goroutine and must not block for longer than dispatch.
type Handler func(topic string, payload []byte)

// Broker is the topic-based publish/subscribe transport boundary. The
// subsystem never assumes more than at-least-once delivery and per-topic
// publish ordering from an implementation.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe registers h for topic. Subscribing to the same topic twice
	// replaces the previous handler.
	Subscribe(ctx context.Context, topic string, h Handler) error
	Unsubscribe(ctx context.Context, topic string) error
	Close() error
}
