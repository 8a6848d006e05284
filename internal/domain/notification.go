package domain

import (
	"context"
	"time"
)

// NotificationType classifies what kind of event a notification carries.
type NotificationType string

const (
	TypeInfo    NotificationType = "INFO"
	TypeSuccess NotificationType = "SUCCESS"
	TypeWarning NotificationType = "WARNING"
	TypeError   NotificationType = "ERROR"
	TypeRefresh NotificationType = "REFRESH"
)

// Valid reports whether t is one of the known notification types.
func (t NotificationType) Valid() bool {
	switch t {
	case TypeInfo, TypeSuccess, TypeWarning, TypeError, TypeRefresh:
		return true
	}
	return false
}

// Priority indicates how urgently a notification should be surfaced.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// NotificationMessage is the wire payload exchanged over the broker.
// Action and EntityType are deliberately open strings: departments add new
// verbs and entity kinds without coordinating with this subsystem.
type NotificationMessage struct {
	Type           NotificationType  `json:"type"`
	Module         ModuleType        `json:"module"`
	Action         string            `json:"action,omitempty"`
	EntityType     string            `json:"entity_type,omitempty"`
	EntityID       string            `json:"entity_id,omitempty"`
	Title          string            `json:"title"`
	Message        string            `json:"message"`
	TargetModule   ModuleType        `json:"target_module,omitempty"`
	TargetDeviceID string            `json:"target_device_id,omitempty"`
	Priority       Priority          `json:"priority"`
	CreatedBy      string            `json:"created_by,omitempty"`
	SourceDeviceID string            `json:"source_device_id,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	ExcludeSender  bool              `json:"exclude_sender,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
}

// Validate checks the required fields of a message before it is published.
func (m *NotificationMessage) Validate() error {
	if m.Title == "" {
		return ErrEmptyTitle
	}
	if m.Message == "" {
		return ErrEmptyMessage
	}
	if !m.Type.Valid() {
		return ErrInvalidType
	}
	if m.Priority != "" && !m.Priority.Valid() {
		return ErrInvalidPriority
	}
	return nil
}

// IsBroadcast reports whether the message is addressed to everyone.
func (m *NotificationMessage) IsBroadcast() bool {
	return m.TargetModule == "" && m.TargetDeviceID == ""
}

// NotificationRecord is the durable form of a message. The store owns these
// records; publishers and subscribers only ever hold copies.
type NotificationRecord struct {
	ID int64 `json:"id"`
	NotificationMessage
	ReadStatus bool       `json:"read_status"`
	Resolved   bool       `json:"resolved"`
	ResolvedBy string     `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// NotificationStore is the persistence boundary for notification records.
type NotificationStore interface {
	Save(ctx context.Context, msg *NotificationMessage) (*NotificationRecord, error)
	GetByID(ctx context.Context, id int64) (*NotificationRecord, error)
	// MissedSince returns records published after since. A non-empty target
	// restricts the result to records addressed to that device or broadcast.
	MissedSince(ctx context.Context, targetDeviceID string, since time.Time) ([]*NotificationRecord, error)
	MissedSinceByModule(ctx context.Context, module ModuleType, since time.Time) ([]*NotificationRecord, error)
	Recent(ctx context.Context, module ModuleType, days int) ([]*NotificationRecord, error)
	MarkRead(ctx context.Context, id int64) error
	MarkResolved(ctx context.Context, id int64, resolvedBy string) error
	Delete(ctx context.Context, id int64) error
	// DeleteRead purges already-read records and returns how many were removed.
	DeleteRead(ctx context.Context) (int64, error)
}
