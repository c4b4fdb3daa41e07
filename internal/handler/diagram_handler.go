package handler

import (
	"log/slog"
	"net/http"

	"github.com/organigram-api/internal/dto"
	"github.com/organigram-api/internal/service"
)

// DiagramHandler обслуживает кеш координат диаграммы; POST работает как
// upsert по ключу узла и всегда отвечает 201
type DiagramHandler struct {
	base
	diagrams service.DiagramService
}

func NewDiagramHandler(diagrams service.DiagramService, logger *slog.Logger) *DiagramHandler {
	return &DiagramHandler{
		base:     newBase(logger),
		diagrams: diagrams,
	}
}

func (h *DiagramHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := h.decode(r, &payload); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	row, err := h.diagrams.Upsert(r.Context(), payload)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, dto.MutationResponse{
		Status:  "success",
		Message: "Diagram position saved successfully",
		Data:    row,
	})
}
