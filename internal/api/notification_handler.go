package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/eeya7ya/magictech-management-sub002/internal/domain"
	"github.com/eeya7ya/magictech-management-sub002/internal/notify"
	"github.com/eeya7ya/magictech-management-sub002/pkg/response"
)

// NotificationHandler is the thin control surface over the store and the
// publisher: list, catch-up, read/resolve state and a manual test trigger.
type NotificationHandler struct {
	store     domain.NotificationStore
	publisher *notify.Publisher
	logger    *zap.Logger
}

func NewNotificationHandler(store domain.NotificationStore, publisher *notify.Publisher, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// List returns recent notifications, optionally filtered by module.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	module := domain.ModuleType(r.URL.Query().Get("module"))
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))

	records, err := h.store.Recent(r.Context(), module, days)
	if err != nil {
		h.logger.Error("failed to list notifications", zap.Error(err))
		response.InternalError(w, "failed to fetch notifications")
		return
	}

	response.OK(w, records)
}

// Missed is the catch-up query: records published after the given timestamp,
// scoped by device id or module.
func (h *NotificationHandler) Missed(w http.ResponseWriter, r *http.Request) {
	sinceStr := r.URL.Query().Get("since")
	since, err := time.Parse(time.RFC3339, sinceStr)
	if err != nil {
		response.BadRequest(w, "since must be an RFC3339 timestamp")
		return
	}

	var records []*domain.NotificationRecord
	if module := r.URL.Query().Get("module"); module != "" {
		records, err = h.store.MissedSinceByModule(r.Context(), domain.ModuleType(module), since)
	} else {
		records, err = h.store.MissedSince(r.Context(), r.URL.Query().Get("device"), since)
	}
	if err != nil {
		h.logger.Error("catch-up query failed", zap.Error(err))
		response.InternalError(w, "failed to fetch missed notifications")
		return
	}

	response.OK(w, records)
}

// MarkRead marks one notification record as read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "invalid notification id")
		return
	}

	if err := h.store.MarkRead(r.Context(), id); err != nil {
		if err == domain.ErrRecordNotFound {
			response.NotFound(w, "notification not found")
			return
		}
		h.logger.Error("failed to mark notification read", zap.Int64("id", id), zap.Error(err))
		response.InternalError(w, "failed to update notification")
		return
	}

	response.OK(w, map[string]string{"status": "success"})
}

// MarkResolved marks one notification record as resolved.
func (h *NotificationHandler) MarkResolved(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "invalid notification id")
		return
	}

	var req struct {
		ResolvedBy string `json:"resolved_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request")
		return
	}

	if err := h.store.MarkResolved(r.Context(), id, req.ResolvedBy); err != nil {
		if err == domain.ErrRecordNotFound {
			response.NotFound(w, "notification not found")
			return
		}
		h.logger.Error("failed to resolve notification", zap.Int64("id", id), zap.Error(err))
		response.InternalError(w, "failed to update notification")
		return
	}

	response.OK(w, map[string]string{"status": "success"})
}

// Delete removes one notification record.
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "invalid notification id")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if err == domain.ErrRecordNotFound {
			response.NotFound(w, "notification not found")
			return
		}
		h.logger.Error("failed to delete notification", zap.Int64("id", id), zap.Error(err))
		response.InternalError(w, "failed to delete notification")
		return
	}

	response.NoContent(w)
}

// PurgeRead deletes every already-read record.
func (h *NotificationHandler) PurgeRead(w http.ResponseWriter, r *http.Request) {
	removed, err := h.store.DeleteRead(r.Context())
	if err != nil {
		h.logger.Error("failed to purge read notifications", zap.Error(err))
		response.InternalError(w, "failed to purge notifications")
		return
	}

	response.OK(w, map[string]int64{"deleted": removed})
}

// Trigger publishes a notification from the request body. Used to exercise
// the delivery path manually; REFRESH messages take the non-persisted path.
func (h *NotificationHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var msg domain.NotificationMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		response.BadRequest(w, "invalid notification payload")
		return
	}
	if err := msg.Validate(); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	if msg.Type == domain.TypeRefresh {
		h.publisher.PublishRefresh(r.Context(), &msg)
	} else {
		h.publisher.Publish(r.Context(), &msg)
	}

	response.Created(w, map[string]string{"status": "published"})
}
