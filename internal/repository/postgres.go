package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eeya7ya/magictech-management-sub002/internal/domain"
)

const recordColumns = `id, type, module, action, entity_type, entity_id, title, message,
	target_module, target_device_id, priority, created_by, source_device_id,
	metadata, exclude_sender, created_at, read_status, resolved, resolved_by, resolved_at`

const deviceColumns = `device_id, user_id, username, module, status, last_heartbeat,
	ip_address, hostname, created_at, updated_at`

// PostgresRepository implements domain.NotificationStore and
// domain.DeviceStore using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Save persists a message as a new notification record and returns the
// record with its store-assigned id.
func (r *PostgresRepository) Save(ctx context.Context, msg *domain.NotificationMessage) (*domain.NotificationRecord, error) {
	query := `
		INSERT INTO notifications (type, module, action, entity_type, entity_id, title, message,
			target_module, target_device_id, priority, created_by, source_device_id,
			metadata, exclude_sender, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING ` + recordColumns

	row := r.db.QueryRow(ctx, query,
		msg.Type,
		msg.Module,
		msg.Action,
		msg.EntityType,
		msg.EntityID,
		msg.Title,
		msg.Message,
		msg.TargetModule,
		msg.TargetDeviceID,
		msg.Priority,
		msg.CreatedBy,
		msg.SourceDeviceID,
		msg.Metadata,
		msg.ExcludeSender,
		msg.Timestamp,
	)
	return scanRecord(row)
}

// GetByID retrieves a notification record by ID
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*domain.NotificationRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM notifications WHERE id = $1`
	row := r.db.QueryRow(ctx, query, id)
	return scanRecord(row)
}

// MissedSince returns records published after since. With a target device id
// the result is restricted to records addressed to that device directly or
// broadcast to everyone; with an empty target every record after since is
// returned (administrative catch-up).
func (r *PostgresRepository) MissedSince(ctx context.Context, targetDeviceID string, since time.Time) ([]*domain.NotificationRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM notifications
		WHERE created_at > $1
		  AND ($2 = '' OR target_device_id = $2 OR (target_device_id = '' AND target_module = ''))
		ORDER BY created_at, id
	`
	rows, err := r.db.Query(ctx, query, since, targetDeviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// MissedSinceByModule is the department-scoped catch-up: records addressed to
// the module plus broadcasts, published after since.
func (r *PostgresRepository) MissedSinceByModule(ctx context.Context, module domain.ModuleType, since time.Time) ([]*domain.NotificationRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM notifications
		WHERE created_at > $1
		  AND (target_module = $2 OR (target_device_id = '' AND target_module = ''))
		ORDER BY created_at, id
	`
	rows, err := r.db.Query(ctx, query, since, module)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// Recent returns records from the last N days, optionally restricted to one
// module (matching the record's origin or target module).
func (r *PostgresRepository) Recent(ctx context.Context, module domain.ModuleType, days int) ([]*domain.NotificationRecord, error) {
	if days <= 0 {
		days = 7
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	query := `
		SELECT ` + recordColumns + `
		FROM notifications
		WHERE created_at > $1
		  AND ($2 = '' OR module = $2 OR target_module = $2)
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.Query(ctx, query, cutoff, module)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// MarkRead marks a notification record as read
func (r *PostgresRepository) MarkRead(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET read_status = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// MarkResolved marks a record resolved and stamps who resolved it and when.
func (r *PostgresRepository) MarkResolved(ctx context.Context, id int64, resolvedBy string) error {
	query := `
		UPDATE notifications
		SET resolved = TRUE, resolved_by = $2, resolved_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, resolvedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// Delete removes a single notification record
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// DeleteRead purges already-read records (administrative cleanup).
func (r *PostgresRepository) DeleteRead(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE read_status = TRUE`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UpsertRegistration creates the device row on first registration and
// replaces it in place on every later registration from the same device.
func (r *PostgresRepository) UpsertRegistration(ctx context.Context, reg *domain.DeviceRegistration) error {
	query := `
		INSERT INTO devices (device_id, user_id, username, module, status, last_heartbeat, ip_address, hostname)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (device_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			username = EXCLUDED.username,
			module = EXCLUDED.module,
			status = EXCLUDED.status,
			last_heartbeat = EXCLUDED.last_heartbeat,
			ip_address = EXCLUDED.ip_address,
			hostname = EXCLUDED.hostname,
			updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query,
		reg.DeviceID,
		reg.UserID,
		reg.Username,
		reg.Module,
		reg.Status,
		reg.LastHeartbeat,
		reg.IPAddress,
		reg.Hostname,
	)
	return err
}

// GetDevice retrieves a device registration by device ID
func (r *PostgresRepository) GetDevice(ctx context.Context, deviceID string) (*domain.DeviceRegistration, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE device_id = $1`
	row := r.db.QueryRow(ctx, query, deviceID)
	return scanDevice(row)
}

// LatestUserSeen returns the user's most recent heartbeat across every
// device, or nil if the user has never registered anywhere.
func (r *PostgresRepository) LatestUserSeen(ctx context.Context, userID string) (*time.Time, error) {
	query := `SELECT MAX(last_heartbeat) FROM devices WHERE user_id = $1`
	var seen *time.Time
	if err := r.db.QueryRow(ctx, query, userID).Scan(&seen); err != nil {
		return nil, err
	}
	return seen, nil
}

// UpdateHeartbeat refreshes the heartbeat and forces the device ONLINE.
func (r *PostgresRepository) UpdateHeartbeat(ctx context.Context, deviceID string, at time.Time) error {
	query := `
		UPDATE devices
		SET last_heartbeat = $2, status = $3, updated_at = NOW()
		WHERE device_id = $1
	`
	tag, err := r.db.Exec(ctx, query, deviceID, at, domain.StatusOnline)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDeviceNotFound
	}
	return nil
}

// SetStatus updates a device's presence status
func (r *PostgresRepository) SetStatus(ctx context.Context, deviceID string, status domain.DeviceStatus) error {
	query := `UPDATE devices SET status = $2, updated_at = NOW() WHERE device_id = $1`
	tag, err := r.db.Exec(ctx, query, deviceID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDeviceNotFound
	}
	return nil
}

// SweepStale flips ONLINE devices whose heartbeat predates cutoff to OFFLINE.
// Row-level: registrations and heartbeats for other devices are untouched.
func (r *PostgresRepository) SweepStale(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE devices
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND last_heartbeat < $3
	`
	tag, err := r.db.Exec(ctx, query, domain.StatusOffline, domain.StatusOnline, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Online lists ONLINE devices, optionally filtered by module.
func (r *PostgresRepository) Online(ctx context.Context, module domain.ModuleType) ([]*domain.DeviceRegistration, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM devices
		WHERE status = $1 AND ($2 = '' OR module = $2)
		ORDER BY last_heartbeat DESC
	`
	rows, err := r.db.Query(ctx, query, domain.StatusOnline, module)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []*domain.DeviceRegistration
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// Helper functions for scanning rows

func scanRecord(row pgx.Row) (*domain.NotificationRecord, error) {
	var rec domain.NotificationRecord
	err := row.Scan(
		&rec.ID,
		&rec.Type,
		&rec.Module,
		&rec.Action,
		&rec.EntityType,
		&rec.EntityID,
		&rec.Title,
		&rec.Message,
		&rec.TargetModule,
		&rec.TargetDeviceID,
		&rec.Priority,
		&rec.CreatedBy,
		&rec.SourceDeviceID,
		&rec.Metadata,
		&rec.ExcludeSender,
		&rec.Timestamp,
		&rec.ReadStatus,
		&rec.Resolved,
		&rec.ResolvedBy,
		&rec.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func collectRecords(rows pgx.Rows) ([]*domain.NotificationRecord, error) {
	var records []*domain.NotificationRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanDevice(row pgx.Row) (*domain.DeviceRegistration, error) {
	var d domain.DeviceRegistration
	err := row.Scan(
		&d.DeviceID,
		&d.UserID,
		&d.Username,
		&d.Module,
		&d.Status,
		&d.LastHeartbeat,
		&d.IPAddress,
		&d.Hostname,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDeviceNotFound
		}
		return nil, err
	}
	return &d, nil
}
