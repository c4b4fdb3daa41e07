package handler

import (
	"log/slog"
	"net/http"

	"github.com/organigram-api/internal/dto"
	"github.com/organigram-api/internal/service"
)

// DashboardHandler отдаёт сводку для панели мониторинга
type DashboardHandler struct {
	base
	dashboard service.DashboardService
}

func NewDashboardHandler(dashboard service.DashboardService, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		base:      newBase(logger),
		dashboard: dashboard,
	}
}

func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	data, err := h.dashboard.Stats(r.Context())
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, dto.DashboardResponse{Status: "success", Data: *data})
}
