package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eeya7ya/magictech-management-sub002/internal/broker"
	"github.com/eeya7ya/magictech-management-sub002/internal/domain"
	"github.com/eeya7ya/magictech-management-sub002/internal/notify"
	"github.com/eeya7ya/magictech-management-sub002/internal/presence"
	"github.com/eeya7ya/magictech-management-sub002/internal/repository"
)

func newTestServer(t *testing.T) (*httptest.Server, *repository.MemoryRepository) {
	t.Helper()

	logger := zap.NewNop()
	repo := repository.NewMemoryRepository()
	session := notify.NewClientSession("system", "notifyd", "")
	publisher := notify.NewPublisher(repo, broker.NewMemory(), session, logger)
	registry := presence.NewRegistry(repo, session, logger)

	router := NewRouter(
		NewNotificationHandler(repo, publisher, logger),
		NewPresenceHandler(registry, logger),
		NewHealthHandler(),
		logger,
	)
	srv := httptest.NewServer(router.Setup())
	t.Cleanup(srv.Close)
	return srv, repo
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.True(t, env.Success)
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
}

func seed(t *testing.T, repo *repository.MemoryRepository, msg domain.NotificationMessage) *domain.NotificationRecord {
	t.Helper()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	rec, err := repo.Save(context.Background(), &msg)
	require.NoError(t, err)
	return rec
}

func TestListNotifications(t *testing.T) {
	srv, repo := newTestServer(t)
	seed(t, repo, domain.NotificationMessage{Type: domain.TypeInfo, Title: "a", Message: "m", Module: domain.ModuleSales})
	seed(t, repo, domain.NotificationMessage{Type: domain.TypeInfo, Title: "b", Message: "m", Module: domain.ModulePricing})

	resp, err := http.Get(srv.URL + "/api/v1/notifications?module=SALES")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var records []domain.NotificationRecord
	decode(t, resp, &records)
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].Title)
}

func TestMissedRequiresTimestamp(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/notifications/missed")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMissedByModule(t *testing.T) {
	srv, repo := newTestServer(t)
	since := time.Now().UTC().Add(-time.Hour)
	seed(t, repo, domain.NotificationMessage{Type: domain.TypeInfo, Title: "for projects", Message: "m", TargetModule: domain.ModuleProjects})
	seed(t, repo, domain.NotificationMessage{Type: domain.TypeInfo, Title: "for sales", Message: "m", TargetModule: domain.ModuleSales})

	resp, err := http.Get(srv.URL + "/api/v1/notifications/missed?module=PROJECTS&since=" + since.Format(time.RFC3339))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var records []domain.NotificationRecord
	decode(t, resp, &records)
	require.Len(t, records, 1)
	assert.Equal(t, "for projects", records[0].Title)
}

func TestMarkReadEndpoint(t *testing.T) {
	srv, repo := newTestServer(t)
	rec := seed(t, repo, domain.NotificationMessage{Type: domain.TypeInfo, Title: "a", Message: "m"})

	resp, err := http.Post(srv.URL+"/api/v1/notifications/"+itoa(rec.ID)+"/read", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	got, err := repo.GetByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.True(t, got.ReadStatus)
}

func TestMarkReadUnknownID(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/notifications/424242/read", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResolveEndpoint(t *testing.T) {
	srv, repo := newTestServer(t)
	rec := seed(t, repo, domain.NotificationMessage{Type: domain.TypeWarning, Title: "a", Message: "m"})

	body := bytes.NewBufferString(`{"resolved_by":"alice"}`)
	resp, err := http.Post(srv.URL+"/api/v1/notifications/"+itoa(rec.ID)+"/resolve", "application/json", body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	got, err := repo.GetByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.True(t, got.Resolved)
	assert.Equal(t, "alice", got.ResolvedBy)
}

func TestTriggerPublishesAndPersists(t *testing.T) {
	srv, repo := newTestServer(t)

	payload, _ := json.Marshal(domain.NotificationMessage{
		Type:    domain.TypeInfo,
		Module:  domain.ModuleSales,
		Title:   "manual",
		Message: "triggered from the control surface",
	})
	resp, err := http.Post(srv.URL+"/api/v1/notifications/test", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	records, err := repo.MissedSince(context.Background(), "", time.Time{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "manual", records[0].Title)
}

func TestTriggerRejectsInvalidMessage(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/notifications/test", "application/json",
		bytes.NewBufferString(`{"type":"INFO","message":"no title"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPurgeReadEndpoint(t *testing.T) {
	srv, repo := newTestServer(t)
	rec := seed(t, repo, domain.NotificationMessage{Type: domain.TypeInfo, Title: "a", Message: "m"})
	seed(t, repo, domain.NotificationMessage{Type: domain.TypeInfo, Title: "b", Message: "m"})
	require.NoError(t, repo.MarkRead(context.Background(), rec.ID))

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/notifications/read", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]int64
	decode(t, resp, &result)
	assert.EqualValues(t, 1, result["deleted"])
}

func TestOnlineDevicesEndpoint(t *testing.T) {
	srv, repo := newTestServer(t)
	require.NoError(t, repo.UpsertRegistration(context.Background(), &domain.DeviceRegistration{
		DeviceID: "d1", UserID: "alice", Module: domain.ModuleSales,
		Status: domain.StatusOnline, LastHeartbeat: time.Now().UTC(),
	}))

	resp, err := http.Get(srv.URL + "/api/v1/devices?module=SALES")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var devices []domain.DeviceRegistration
	decode(t, resp, &devices)
	require.Len(t, devices, 1)
	assert.Equal(t, "d1", devices[0].DeviceID)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
