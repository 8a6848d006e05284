package broker

import (
	"context"
	"sync"
)

// Memory is an in-process broker for single-process deployments and tests.
// Delivery is synchronous: Publish invokes every matching handler before it
// returns, which keeps test assertions deterministic.
type Memory struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	closed   bool
}

// NewMemory creates an in-process broker.
func NewMemory() *Memory {
	return &Memory{handlers: make(map[string]Handler)}
}

func (m *Memory) Publish(_ context.Context, topic string, payload []byte) error {
	m.mu.RLock()
	h, ok := m.handlers[topic]
	closed := m.closed
	m.mu.RUnlock()

	if closed {
		return ErrBrokerClosed
	}
	if ok {
		h(topic, payload)
	}
	return nil
}

func (m *Memory) Subscribe(_ context.Context, topic string, h Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrBrokerClosed
	}
	m.handlers[topic] = h
	return nil
}

func (m *Memory) Unsubscribe(_ context.Context, topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.handlers = make(map[string]Handler)
	return nil
}
