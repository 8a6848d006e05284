package notify

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/eeya7ya/magictech-management-sub002/internal/broker"
	"github.com/eeya7ya/magictech-management-sub002/internal/domain"
)

// Publisher validates and enriches outbound notifications, persists them, and
// fans them out on every topic the router selects. It never propagates a
// failure to the business operation that triggered the notification: every
// error is logged and swallowed.
type Publisher struct {
	store   domain.NotificationStore
	broker  broker.Broker
	session *ClientSession
	logger  *zap.Logger
}

// NewPublisher creates a publisher bound to the client session's identity.
func NewPublisher(store domain.NotificationStore, b broker.Broker, session *ClientSession, logger *zap.Logger) *Publisher {
	return &Publisher{
		store:   store,
		broker:  b,
		session: session,
		logger:  logger,
	}
}

// Publish persists the message and publishes it on every resolved topic.
// Persistence happens before broker publication so a client that queries the
// store right after receiving the broker event will find the record. A store
// failure is logged and the broker publish still goes ahead so live
// subscribers are not starved, at the cost of that message being invisible to
// later catch-up queries.
func (p *Publisher) Publish(ctx context.Context, msg *domain.NotificationMessage) {
	if !p.prepare(msg) {
		return
	}

	if _, err := p.store.Save(ctx, msg); err != nil {
		p.logger.Error("notification not persisted, catch-up will miss it",
			zap.String("title", msg.Title),
			zap.Error(err),
		)
	}

	p.fanOut(ctx, msg)
}

// PublishRefresh broadcasts a UI-refresh-only signal. It is intentionally not
// persisted: the signal carries no durable business meaning, only "re-fetch
// your view", so catch-up queries have nothing to find.
func (p *Publisher) PublishRefresh(ctx context.Context, msg *domain.NotificationMessage) {
	if msg.Type == "" {
		msg.Type = domain.TypeRefresh
	}
	if !p.prepare(msg) {
		return
	}
	p.fanOut(ctx, msg)
}

func (p *Publisher) prepare(msg *domain.NotificationMessage) bool {
	if msg.SourceDeviceID == "" && p.session != nil {
		msg.SourceDeviceID = p.session.DeviceID
	}
	if msg.CreatedBy == "" && p.session != nil {
		msg.CreatedBy = p.session.Username
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if msg.Priority == "" {
		msg.Priority = domain.PriorityNormal
	}

	if err := msg.Validate(); err != nil {
		p.logger.Error("invalid notification dropped",
			zap.String("title", msg.Title),
			zap.Error(err),
		)
		return false
	}
	return true
}

// fanOut publishes to each topic independently: a failure on one topic must
// not block delivery on the others.
func (p *Publisher) fanOut(ctx context.Context, msg *domain.NotificationMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("failed to encode notification", zap.Error(err))
		return
	}

	for _, topic := range TopicsFor(msg) {
		if err := p.broker.Publish(ctx, topic, payload); err != nil {
			p.logger.Error("broker publish failed",
				zap.String("topic", topic),
				zap.String("title", msg.Title),
				zap.Error(err),
			)
		}
	}
}
