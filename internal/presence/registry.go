package presence

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eeya7ya/magictech-management-sub002/internal/domain"
	"github.com/eeya7ya/magictech-management-sub002/internal/notify"
)

// Registry tracks which client devices are online. The device id is owned by
// the client session; the "last seen" checkpoint used for catch-up queries is
// tracked per user, not per device, so users sharing a workstation never
// inherit each other's checkpoint and a user who switches workstations keeps
// theirs.
//
// Presence is best-effort: persistence failures are logged and swallowed so
// they never abort the caller's primary flow.
type Registry struct {
	store   domain.DeviceStore
	session *notify.ClientSession
	logger  *zap.Logger
}

// NewRegistry creates a registry bound to the client session's device id.
func NewRegistry(store domain.DeviceStore, session *notify.ClientSession, logger *zap.Logger) *Registry {
	return &Registry{
		store:   store,
		session: session,
		logger:  logger,
	}
}

// Register records this device as ONLINE for the given user and returns the
// device id together with the user's previous last-seen timestamp. The
// previous timestamp is captured across all of the user's devices BEFORE this
// registration overwrites anything, and is returned directly rather than
// held as registry state so concurrent registrations cannot cross wires.
//
// A nil previousLastSeen means first login ever: the caller must not issue a
// catch-up query in that case.
func (r *Registry) Register(ctx context.Context, userID, username string, module domain.ModuleType) (deviceID string, previousLastSeen *time.Time) {
	deviceID = r.session.DeviceID

	previousLastSeen, err := r.store.LatestUserSeen(ctx, userID)
	if err != nil {
		r.logger.Error("could not look up previous session, treating as first login",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		previousLastSeen = nil
	}

	hostname, ip := notify.HostInfo()
	reg := &domain.DeviceRegistration{
		DeviceID:      deviceID,
		UserID:        userID,
		Username:      username,
		Module:        module,
		Status:        domain.StatusOnline,
		LastHeartbeat: time.Now().UTC(),
		Hostname:      hostname,
		IPAddress:     ip,
	}
	if err := r.store.UpsertRegistration(ctx, reg); err != nil {
		r.logger.Error("device registration not persisted",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}

	return deviceID, previousLastSeen
}

// Heartbeat refreshes the device's heartbeat and forces it ONLINE. A
// heartbeat for a device the store does not know is logged and ignored.
func (r *Registry) Heartbeat(ctx context.Context) {
	err := r.store.UpdateHeartbeat(ctx, r.session.DeviceID, time.Now().UTC())
	if err == domain.ErrDeviceNotFound {
		r.logger.Warn("heartbeat for unknown device", zap.String("device_id", r.session.DeviceID))
		return
	}
	if err != nil {
		r.logger.Warn("heartbeat not persisted", zap.String("device_id", r.session.DeviceID), zap.Error(err))
	}
}

// SetOffline is the explicit logout path: the device goes OFFLINE immediately
// instead of waiting for the sweep.
func (r *Registry) SetOffline(ctx context.Context) {
	err := r.store.SetStatus(ctx, r.session.DeviceID, domain.StatusOffline)
	if err == domain.ErrDeviceNotFound {
		r.logger.Warn("offline for unknown device", zap.String("device_id", r.session.DeviceID))
		return
	}
	if err != nil {
		r.logger.Warn("offline status not persisted", zap.String("device_id", r.session.DeviceID), zap.Error(err))
	}
}

// SweepStale flips every ONLINE device with no heartbeat within timeout to
// OFFLINE. The store performs this as a row-level mutation, so the sweep is
// idempotent and safe to run alongside registrations and heartbeats for
// other devices.
func (r *Registry) SweepStale(ctx context.Context, timeout time.Duration) {
	cutoff := time.Now().UTC().Add(-timeout)
	n, err := r.store.SweepStale(ctx, cutoff)
	if err != nil {
		r.logger.Warn("presence sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		r.logger.Info("swept stale devices offline", zap.Int64("count", n))
	}
}

// OnlineDevices lists devices currently considered connected, optionally
// filtered by department module (empty module means all).
func (r *Registry) OnlineDevices(ctx context.Context, module domain.ModuleType) ([]*domain.DeviceRegistration, error) {
	return r.store.Online(ctx, module)
}

// RunSweeper runs the periodic presence sweep until ctx is cancelled.
func (r *Registry) RunSweeper(ctx context.Context, interval, timeout time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.SweepStale(ctx, timeout)
			}
		}
	}()
}
