package handler

import (
	"log/slog"
	"net/http"

	"github.com/organigram-api/internal/dto"
	"github.com/organigram-api/internal/service"
)

// EdgeHandler обслуживает создание и изменение рёбер схемы; оба пути
// проходят проверку правил связей перед записью
type EdgeHandler struct {
	base
	edges service.EdgeService
}

func NewEdgeHandler(edges service.EdgeService, logger *slog.Logger) *EdgeHandler {
	return &EdgeHandler{
		base:  newBase(logger),
		edges: edges,
	}
}

func (h *EdgeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := h.decode(r, &payload); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	row, err := h.edges.Create(r.Context(), payload)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, dto.MutationResponse{
		Status:  "success",
		Message: "Edge created successfully",
		Data:    row,
	})
}

func (h *EdgeHandler) Update(partial bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := h.extractID(r)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid id")
			return
		}

		var payload map[string]any
		if err := h.decode(r, &payload); err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		row, err := h.edges.Update(r.Context(), id, payload, partial)
		if err != nil {
			h.serviceError(w, err)
			return
		}

		h.respondJSON(w, http.StatusOK, dto.MutationResponse{
			Status:  "success",
			Message: "Edge updated successfully",
			Data:    row,
		})
	}
}
