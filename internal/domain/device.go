package domain

import (
	"context"
	"time"
)

// ModuleType identifies a department client. The set below covers the
// departments deployed today; the type is open because new departments are
// added without a coordinated release of this subsystem.
type ModuleType string

const (
	ModuleSales       ModuleType = "SALES"
	ModuleProjects    ModuleType = "PROJECTS"
	ModulePricing     ModuleType = "PRICING"
	ModuleStorage     ModuleType = "STORAGE"
	ModuleMaintenance ModuleType = "MAINTENANCE"
)

// DeviceStatus is the presence state of a registered device.
type DeviceStatus string

const (
	StatusOnline  DeviceStatus = "ONLINE"
	StatusOffline DeviceStatus = "OFFLINE"
)

// DeviceRegistration is one row of presence state: a single running client
// process identified by its generated device id. LastHeartbeat doubles as the
// per-user last-seen timestamp for catch-up queries.
type DeviceRegistration struct {
	DeviceID      string       `json:"device_id"`
	UserID        string       `json:"user_id"`
	Username      string       `json:"username"`
	Module        ModuleType   `json:"module"`
	Status        DeviceStatus `json:"status"`
	LastHeartbeat time.Time    `json:"last_heartbeat"`
	IPAddress     *string      `json:"ip_address,omitempty"`
	Hostname      *string      `json:"hostname,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// DeviceStore is the persistence boundary for presence records.
type DeviceStore interface {
	// UpsertRegistration creates or replaces the row for reg.DeviceID.
	UpsertRegistration(ctx context.Context, reg *DeviceRegistration) error
	GetDevice(ctx context.Context, deviceID string) (*DeviceRegistration, error)
	// LatestUserSeen returns the most recent heartbeat recorded for the user
	// across every device, or nil if the user has never registered.
	LatestUserSeen(ctx context.Context, userID string) (*time.Time, error)
	UpdateHeartbeat(ctx context.Context, deviceID string, at time.Time) error
	SetStatus(ctx context.Context, deviceID string, status DeviceStatus) error
	// SweepStale flips ONLINE devices whose heartbeat is older than cutoff to
	// OFFLINE and returns how many rows were affected.
	SweepStale(ctx context.Context, cutoff time.Time) (int64, error)
	// Online lists ONLINE devices, optionally restricted to one module.
	Online(ctx context.Context, module ModuleType) ([]*DeviceRegistration, error)
}
