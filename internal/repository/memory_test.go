package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eeya7ya/magictech-management-sub002/internal/domain"
)

func save(t *testing.T, r *MemoryRepository, msg domain.NotificationMessage) *domain.NotificationRecord {
	t.Helper()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	rec, err := r.Save(context.Background(), &msg)
	require.NoError(t, err)
	return rec
}

func TestSaveAssignsMonotonicIDs(t *testing.T) {
	r := NewMemoryRepository()

	a := save(t, r, domain.NotificationMessage{Type: domain.TypeInfo, Title: "a", Message: "m"})
	b := save(t, r, domain.NotificationMessage{Type: domain.TypeInfo, Title: "b", Message: "m"})

	assert.Greater(t, b.ID, a.ID)
	assert.False(t, a.ReadStatus)
	assert.False(t, a.Resolved)
}

func TestMissedSinceIsIdempotent(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	since := time.Now().UTC().Add(-time.Hour)

	save(t, r, domain.NotificationMessage{Type: domain.TypeInfo, Title: "a", Message: "m"})
	save(t, r, domain.NotificationMessage{Type: domain.TypeInfo, Title: "b", Message: "m"})

	first, err := r.MissedSince(ctx, "", since)
	require.NoError(t, err)
	second, err := r.MissedSince(ctx, "", since)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 2)
}

func TestMissedSinceTargetFilter(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	since := time.Now().UTC().Add(-time.Hour)

	save(t, r, domain.NotificationMessage{Type: domain.TypeInfo, Title: "broadcast", Message: "m"})
	save(t, r, domain.NotificationMessage{Type: domain.TypeInfo, Title: "mine", Message: "m", TargetDeviceID: "d1"})
	save(t, r, domain.NotificationMessage{Type: domain.TypeInfo, Title: "theirs", Message: "m", TargetDeviceID: "d2"})
	save(t, r, domain.NotificationMessage{Type: domain.TypeInfo, Title: "module", Message: "m", TargetModule: domain.ModuleSales})

	got, err := r.MissedSince(ctx, "d1", since)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "broadcast", got[0].Title)
	assert.Equal(t, "mine", got[1].Title)

	// Empty target: administrative catch-up sees everything.
	all, err := r.MissedSince(ctx, "", since)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestMissedSinceByModuleIncludesBroadcasts(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	since := time.Now().UTC().Add(-time.Hour)

	save(t, r, domain.NotificationMessage{Type: domain.TypeInfo, Title: "broadcast", Message: "m"})
	save(t, r, domain.NotificationMessage{Type: domain.TypeInfo, Title: "sales", Message: "m", TargetModule: domain.ModuleSales})
	save(t, r, domain.NotificationMessage{Type: domain.TypeInfo, Title: "pricing", Message: "m", TargetModule: domain.ModulePricing})

	got, err := r.MissedSinceByModule(ctx, domain.ModuleSales, since)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "broadcast", got[0].Title)
	assert.Equal(t, "sales", got[1].Title)
}

func TestMissedSinceExcludesRecordsAtOrBeforeCheckpoint(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	checkpoint := time.Now().UTC().Add(-time.Hour)

	save(t, r, domain.NotificationMessage{Type: domain.TypeInfo, Title: "before", Message: "m", Timestamp: checkpoint.Add(-time.Minute)})
	save(t, r, domain.NotificationMessage{Type: domain.TypeInfo, Title: "exactly", Message: "m", Timestamp: checkpoint})
	save(t, r, domain.NotificationMessage{Type: domain.TypeInfo, Title: "after", Message: "m", Timestamp: checkpoint.Add(time.Minute)})

	got, err := r.MissedSince(ctx, "", checkpoint)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "after", got[0].Title)
}

func TestMarkReadAndPurge(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	a := save(t, r, domain.NotificationMessage{Type: domain.TypeInfo, Title: "a", Message: "m"})
	save(t, r, domain.NotificationMessage{Type: domain.TypeInfo, Title: "b", Message: "m"})

	require.NoError(t, r.MarkRead(ctx, a.ID))

	got, err := r.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.ReadStatus)

	removed, err := r.DeleteRead(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	_, err = r.GetByID(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestMarkResolvedStampsResolver(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	rec := save(t, r, domain.NotificationMessage{Type: domain.TypeWarning, Title: "a", Message: "m"})
	require.NoError(t, r.MarkResolved(ctx, rec.ID, "alice"))

	got, err := r.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, got.Resolved)
	assert.Equal(t, "alice", got.ResolvedBy)
	require.NotNil(t, got.ResolvedAt)

	assert.ErrorIs(t, r.MarkResolved(ctx, 9999, "alice"), domain.ErrRecordNotFound)
}

func TestRecentBoundedLookback(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	save(t, r, domain.NotificationMessage{Type: domain.TypeInfo, Title: "ancient", Message: "m", Timestamp: now.AddDate(0, 0, -10)})
	save(t, r, domain.NotificationMessage{Type: domain.TypeInfo, Title: "recent", Message: "m", Timestamp: now.Add(-time.Hour), Module: domain.ModuleSales})

	got, err := r.Recent(ctx, "", 7)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "recent", got[0].Title)

	bySales, err := r.Recent(ctx, domain.ModuleSales, 7)
	require.NoError(t, err)
	assert.Len(t, bySales, 1)

	byPricing, err := r.Recent(ctx, domain.ModulePricing, 7)
	require.NoError(t, err)
	assert.Empty(t, byPricing)
}

func TestLatestUserSeenAcrossDevices(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	none, err := r.LatestUserSeen(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, r.UpsertRegistration(ctx, &domain.DeviceRegistration{
		DeviceID: "d1", UserID: "alice", Module: domain.ModuleSales,
		Status: domain.StatusOffline, LastHeartbeat: now.Add(-2 * time.Hour),
	}))
	require.NoError(t, r.UpsertRegistration(ctx, &domain.DeviceRegistration{
		DeviceID: "d2", UserID: "alice", Module: domain.ModuleSales,
		Status: domain.StatusOffline, LastHeartbeat: now.Add(-time.Hour),
	}))

	seen, err := r.LatestUserSeen(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.WithinDuration(t, now.Add(-time.Hour), *seen, time.Second)
}
