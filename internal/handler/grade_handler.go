package handler

import (
	"log/slog"
	"net/http"

	"github.com/organigram-api/internal/service"
)

// GradeHandler обслуживает валидируемую массовую загрузку грейдов:
// тело запроса - голый JSON-список, ошибки накапливаются построчно
type GradeHandler struct {
	base
	grades service.GradeService
}

func NewGradeHandler(grades service.GradeService, logger *slog.Logger) *GradeHandler {
	return &GradeHandler{
		base:   newBase(logger),
		grades: grades,
	}
}

func (h *GradeHandler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	var rows []map[string]any
	if err := h.decode(r, &rows); err != nil {
		h.respondError(w, http.StatusBadRequest, "Expected a list of grade data")
		return
	}

	res, err := h.grades.BulkCreate(r.Context(), rows)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	status := http.StatusCreated
	if len(res.Errors) > 0 {
		status = http.StatusMultiStatus
	}
	h.respondJSON(w, status, res)
}
