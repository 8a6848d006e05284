package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/eeya7ya/magictech-management-sub002/internal/domain"
	"github.com/eeya7ya/magictech-management-sub002/internal/presence"
	"github.com/eeya7ya/magictech-management-sub002/pkg/response"
)

// PresenceHandler exposes read-only presence queries.
type PresenceHandler struct {
	registry *presence.Registry
	logger   *zap.Logger
}

func NewPresenceHandler(registry *presence.Registry, logger *zap.Logger) *PresenceHandler {
	return &PresenceHandler{
		registry: registry,
		logger:   logger,
	}
}

// OnlineDevices lists currently connected devices, optionally one module's.
func (h *PresenceHandler) OnlineDevices(w http.ResponseWriter, r *http.Request) {
	module := domain.ModuleType(r.URL.Query().Get("module"))

	devices, err := h.registry.OnlineDevices(r.Context(), module)
	if err != nil {
		h.logger.Error("failed to list online devices", zap.Error(err))
		response.InternalError(w, "failed to fetch devices")
		return
	}

	response.OK(w, devices)
}
