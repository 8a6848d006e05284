package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/eeya7ya/magictech-management-sub002/internal/domain"
)

// MemoryRepository is an in-process implementation of both store interfaces.
// Used by tests and by clients running without a database (offline/dev mode).
// Query semantics mirror the PostgreSQL implementation.
type MemoryRepository struct {
	mu      sync.RWMutex
	nextID  int64
	records []*domain.NotificationRecord
	devices map[string]*domain.DeviceRegistration
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{devices: make(map[string]*domain.DeviceRegistration)}
}

func (r *MemoryRepository) Save(_ context.Context, msg *domain.NotificationMessage) (*domain.NotificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	rec := &domain.NotificationRecord{
		ID:                  r.nextID,
		NotificationMessage: *msg,
	}
	r.records = append(r.records, rec)

	copy := *rec
	return &copy, nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id int64) (*domain.NotificationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.records {
		if rec.ID == id {
			copy := *rec
			return &copy, nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

func (r *MemoryRepository) MissedSince(_ context.Context, targetDeviceID string, since time.Time) ([]*domain.NotificationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.filter(func(rec *domain.NotificationRecord) bool {
		if !rec.Timestamp.After(since) {
			return false
		}
		if targetDeviceID == "" {
			return true
		}
		return rec.TargetDeviceID == targetDeviceID || rec.IsBroadcast()
	}), nil
}

func (r *MemoryRepository) MissedSinceByModule(_ context.Context, module domain.ModuleType, since time.Time) ([]*domain.NotificationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.filter(func(rec *domain.NotificationRecord) bool {
		if !rec.Timestamp.After(since) {
			return false
		}
		return rec.TargetModule == module || rec.IsBroadcast()
	}), nil
}

func (r *MemoryRepository) Recent(_ context.Context, module domain.ModuleType, days int) ([]*domain.NotificationRecord, error) {
	if days <= 0 {
		days = 7
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := r.filter(func(rec *domain.NotificationRecord) bool {
		if !rec.Timestamp.After(cutoff) {
			return false
		}
		return module == "" || rec.Module == module || rec.TargetModule == module
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// filter must be called with the lock held. Results are copies in
// (timestamp, id) order.
func (r *MemoryRepository) filter(keep func(*domain.NotificationRecord) bool) []*domain.NotificationRecord {
	var out []*domain.NotificationRecord
	for _, rec := range r.records {
		if keep(rec) {
			copy := *rec
			out = append(out, &copy)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func (r *MemoryRepository) MarkRead(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.records {
		if rec.ID == id {
			rec.ReadStatus = true
			return nil
		}
	}
	return domain.ErrRecordNotFound
}

func (r *MemoryRepository) MarkResolved(_ context.Context, id int64, resolvedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.records {
		if rec.ID == id {
			now := time.Now().UTC()
			rec.Resolved = true
			rec.ResolvedBy = resolvedBy
			rec.ResolvedAt = &now
			return nil
		}
	}
	return domain.ErrRecordNotFound
}

func (r *MemoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, rec := range r.records {
		if rec.ID == id {
			r.records = append(r.records[:i], r.records[i+1:]...)
			return nil
		}
	}
	return domain.ErrRecordNotFound
}

func (r *MemoryRepository) DeleteRead(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var kept []*domain.NotificationRecord
	var removed int64
	for _, rec := range r.records {
		if rec.ReadStatus {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	r.records = kept
	return removed, nil
}

func (r *MemoryRepository) UpsertRegistration(_ context.Context, reg *domain.DeviceRegistration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	copy := *reg
	if prev, ok := r.devices[reg.DeviceID]; ok {
		copy.CreatedAt = prev.CreatedAt
	} else {
		copy.CreatedAt = now
	}
	copy.UpdatedAt = now
	r.devices[reg.DeviceID] = &copy
	return nil
}

func (r *MemoryRepository) GetDevice(_ context.Context, deviceID string) (*domain.DeviceRegistration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if d, ok := r.devices[deviceID]; ok {
		copy := *d
		return &copy, nil
	}
	return nil, domain.ErrDeviceNotFound
}

func (r *MemoryRepository) LatestUserSeen(_ context.Context, userID string) (*time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *time.Time
	for _, d := range r.devices {
		if d.UserID != userID {
			continue
		}
		if latest == nil || d.LastHeartbeat.After(*latest) {
			hb := d.LastHeartbeat
			latest = &hb
		}
	}
	return latest, nil
}

func (r *MemoryRepository) UpdateHeartbeat(_ context.Context, deviceID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[deviceID]
	if !ok {
		return domain.ErrDeviceNotFound
	}
	d.LastHeartbeat = at
	d.Status = domain.StatusOnline
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepository) SetStatus(_ context.Context, deviceID string, status domain.DeviceStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[deviceID]
	if !ok {
		return domain.ErrDeviceNotFound
	}
	d.Status = status
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepository) SweepStale(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var flipped int64
	for _, d := range r.devices {
		if d.Status == domain.StatusOnline && d.LastHeartbeat.Before(cutoff) {
			d.Status = domain.StatusOffline
			d.UpdatedAt = time.Now().UTC()
			flipped++
		}
	}
	return flipped, nil
}

func (r *MemoryRepository) Online(_ context.Context, module domain.ModuleType) ([]*domain.DeviceRegistration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.DeviceRegistration
	for _, d := range r.devices {
		if d.Status != domain.StatusOnline {
			continue
		}
		if module != "" && d.Module != module {
			continue
		}
		copy := *d
		out = append(out, &copy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastHeartbeat.After(out[j].LastHeartbeat) })
	return out, nil
}
