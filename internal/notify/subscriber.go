package notify

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/eeya7ya/magictech-management-sub002/internal/broker"
	"github.com/eeya7ya/magictech-management-sub002/internal/domain"
)

// Listener receives every notification delivered to this client. Listeners
// are invoked on the broker's delivery goroutine; anything that must run on a
// UI thread is the listener's responsibility to marshal there.
type Listener func(msg *domain.NotificationMessage)

type listenerEntry struct {
	id int
	fn Listener
}

// Subscriber is the per-client inbound side: it subscribes to broker topics,
// decodes payloads and fans them out to registered listeners.
type Subscriber struct {
	broker  broker.Broker
	session *ClientSession
	logger  *zap.Logger

	mu        sync.Mutex
	ready     bool
	topics    map[string]struct{}
	deferred  []string
	listeners []listenerEntry
	nextID    int
}

// NewSubscriber creates a subscriber bound to the client session. Subscribe
// calls made before Start are deferred and replayed once Start runs.
func NewSubscriber(b broker.Broker, session *ClientSession, logger *zap.Logger) *Subscriber {
	return &Subscriber{
		broker:  b,
		session: session,
		logger:  logger,
		topics:  make(map[string]struct{}),
	}
}

// Start completes the startup sequence: it subscribes to this device's own
// direct topic and replays any subscriptions requested before startup.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.ready {
		s.mu.Unlock()
		return nil
	}
	s.ready = true
	deferred := s.deferred
	s.deferred = nil
	s.mu.Unlock()

	if err := s.subscribe(ctx, DeviceTopic(s.session.DeviceID)); err != nil {
		return err
	}
	for _, topic := range deferred {
		if err := s.subscribe(ctx, topic); err != nil {
			s.logger.Error("deferred subscription failed", zap.String("topic", topic), zap.Error(err))
		}
	}
	return nil
}

// IsReady reports whether Start has completed.
func (s *Subscriber) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// SubscribeToModule subscribes to the broadcast topic and the module's own
// topic. Safe to call repeatedly; already-held subscriptions are skipped.
func (s *Subscriber) SubscribeToModule(ctx context.Context, module domain.ModuleType) error {
	return s.subscribeAll(ctx, TopicsForModule(module))
}

// SubscribeToAll subscribes to every known topic. Used by administrative
// clients that must see everything.
func (s *Subscriber) SubscribeToAll(ctx context.Context) error {
	topics := []string{TopicAll}
	for _, m := range KnownModules {
		topics = append(topics, ModuleTopic(m))
	}
	return s.subscribeAll(ctx, topics)
}

func (s *Subscriber) subscribeAll(ctx context.Context, topics []string) error {
	for _, topic := range topics {
		if err := s.subscribe(ctx, topic); err != nil {
			return err
		}
	}
	return nil
}

func (s *Subscriber) subscribe(ctx context.Context, topic string) error {
	s.mu.Lock()
	if !s.ready {
		// Startup has not finished; remember the request instead of dropping it.
		s.deferred = append(s.deferred, topic)
		s.mu.Unlock()
		s.logger.Warn("subscriber not started yet, deferring subscription", zap.String("topic", topic))
		return nil
	}
	if _, ok := s.topics[topic]; ok {
		s.mu.Unlock()
		return nil
	}
	s.topics[topic] = struct{}{}
	s.mu.Unlock()

	if err := s.broker.Subscribe(ctx, topic, s.dispatch); err != nil {
		s.mu.Lock()
		delete(s.topics, topic)
		s.mu.Unlock()
		return err
	}
	s.logger.Info("subscribed", zap.String("topic", topic))
	return nil
}

// Unsubscribe stops delivery for one topic. Messages whose dispatch already
// started are not interrupted.
func (s *Subscriber) Unsubscribe(ctx context.Context, topic string) error {
	s.mu.Lock()
	delete(s.topics, topic)
	s.mu.Unlock()
	return s.broker.Unsubscribe(ctx, topic)
}

// UnsubscribeAll drops every broker-side subscription this client holds.
func (s *Subscriber) UnsubscribeAll(ctx context.Context) {
	s.mu.Lock()
	topics := make([]string, 0, len(s.topics))
	for topic := range s.topics {
		topics = append(topics, topic)
	}
	s.topics = make(map[string]struct{})
	s.mu.Unlock()

	for _, topic := range topics {
		if err := s.broker.Unsubscribe(ctx, topic); err != nil {
			s.logger.Warn("unsubscribe failed", zap.String("topic", topic), zap.Error(err))
		}
	}
}

// AddListener registers a callback and returns a handle for RemoveListener.
func (s *Subscriber) AddListener(l Listener) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.listeners = append(s.listeners, listenerEntry{id: s.nextID, fn: l})
	return s.nextID
}

// RemoveListener unregisters the callback previously returned by AddListener.
// Dispatch already in progress keeps its own snapshot and is unaffected.
func (s *Subscriber) RemoveListener(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, entry := range s.listeners {
		if entry.id == id {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// Close tears the subscriber down: broker-side subscriptions are released so
// they do not leak, and the listener list is cleared.
func (s *Subscriber) Close(ctx context.Context) {
	s.UnsubscribeAll(ctx)
	s.mu.Lock()
	s.listeners = nil
	s.ready = false
	s.mu.Unlock()
}

// dispatch is the broker-facing inbound path. It runs on the broker's
// delivery goroutine and must stay as short as the listener callbacks allow.
func (s *Subscriber) dispatch(topic string, payload []byte) {
	var msg domain.NotificationMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.logger.Warn("malformed notification payload dropped",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return
	}

	if msg.ExcludeSender && msg.SourceDeviceID == s.session.DeviceID {
		return
	}

	// Snapshot under the lock, iterate outside it: listeners registered or
	// removed mid-dispatch never affect the iteration in flight.
	s.mu.Lock()
	snapshot := make([]listenerEntry, len(s.listeners))
	copy(snapshot, s.listeners)
	s.mu.Unlock()

	for _, entry := range snapshot {
		s.invoke(entry, &msg)
	}
}

// invoke shields the dispatch loop from a panicking listener.
func (s *Subscriber) invoke(entry listenerEntry, msg *domain.NotificationMessage) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("notification listener panicked",
				zap.Int("listener_id", entry.id),
				zap.Any("panic", r),
			)
		}
	}()
	entry.fn(msg)
}
