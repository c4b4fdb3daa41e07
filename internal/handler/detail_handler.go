package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-openapi/inflect"

	"github.com/organigram-api/internal/dto"
	"github.com/organigram-api/internal/service"
)

// DetailHandler обслуживает массовое создание деталей должности;
// вид записей (missions или competences) задаётся при регистрации маршрута
type DetailHandler struct {
	base
	details service.DetailService
}

func NewDetailHandler(details service.DetailService, logger *slog.Logger) *DetailHandler {
	return &DetailHandler{
		base:    newBase(logger),
		details: details,
	}
}

func (h *DetailHandler) BulkCreate(entity string) http.HandlerFunc {
	noun := inflect.Pluralize(entity)
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.DetailBulkRequest
		if err := h.decode(r, &req); err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		var items []string
		switch entity {
		case "mission":
			items = req.Missions
		default:
			items = req.Competences
		}
		if req.Position == 0 || len(items) == 0 {
			h.respondError(w, http.StatusBadRequest, fmt.Sprintf("Position ID and %s list are required", noun))
			return
		}

		rows, err := h.details.BulkCreate(r.Context(), entity, req.Position, items)
		if err != nil {
			h.serviceError(w, err)
			return
		}

		h.respondJSON(w, http.StatusCreated, dto.BulkDataResponse{
			Status:  "success",
			Message: fmt.Sprintf("Successfully created %d %s", len(rows), noun),
			Data:    rows,
		})
	}
}
