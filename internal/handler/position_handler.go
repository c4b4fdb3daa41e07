package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/organigram-api/internal/dto"
	"github.com/organigram-api/internal/service"
)

// PositionHandler обслуживает операции над должностями, выходящие за
// рамки генерируемого CRUD: создание с автопривязкой к родителю,
// навигацию по иерархии, клонирование и массовое перемещение
type PositionHandler struct {
	base
	positions service.PositionService
}

func NewPositionHandler(positions service.PositionService, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		base:      newBase(logger),
		positions: positions,
	}
}

func (h *PositionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := h.decode(r, &payload); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	row, err := h.positions.Create(r.Context(), payload)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, dto.MutationResponse{
		Status:  "success",
		Message: "Position created successfully",
		Data:    row,
	})
}

func (h *PositionHandler) Parent(w http.ResponseWriter, r *http.Request) {
	id, err := h.extractID(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	row, err := h.positions.Parent(r.Context(), id)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, dto.DetailResponse{Status: "success", Data: row})
}

func (h *PositionHandler) UpdateEdgeSource(w http.ResponseWriter, r *http.Request) {
	id, err := h.extractID(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req dto.UpdateEdgeSourceRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "source_id is required in the request payload")
		return
	}

	row, err := h.positions.UpdateEdgeSource(r.Context(), id, req.SourceID)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, dto.MutationResponse{
		Status:  "success",
		Message: "Edge source updated successfully",
		Data:    row,
	})
}

func (h *PositionHandler) Clone(w http.ResponseWriter, r *http.Request) {
	id, err := h.extractID(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	row, err := h.positions.Clone(r.Context(), id)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, dto.MutationResponse{
		Status:  "success",
		Message: "Position cloned successfully",
		Data:    row,
	})
}

func (h *PositionHandler) BulkCoordinates(w http.ResponseWriter, r *http.Request) {
	var req dto.BulkCoordinatesRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "updates list is required and must not be empty")
		return
	}

	if _, err := h.positions.BulkCoordinates(r.Context(), req.Updates); err != nil {
		h.serviceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, dto.MessageResponse{
		Status:  "success",
		Message: fmt.Sprintf("Successfully updated %d positions", len(req.Updates)),
	})
}
