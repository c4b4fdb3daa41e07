package handler

import (
	"log/slog"
	"net/http"

	"github.com/organigram-api/internal/dto"
	"github.com/organigram-api/internal/service"
)

// StructureHandler обслуживает операции над оргструктурами: обновление
// с защитой от циклов, дерево с должностями и автораскладки
type StructureHandler struct {
	base
	structures service.StructureService
}

func NewStructureHandler(structures service.StructureService, logger *slog.Logger) *StructureHandler {
	return &StructureHandler{
		base:       newBase(logger),
		structures: structures,
	}
}

func (h *StructureHandler) Update(partial bool) http.HandlerFunc {
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

		row, err := h.structures.Update(r.Context(), id, payload, partial)
		if err != nil {
			h.serviceError(w, err)
			return
		}

		h.respondJSON(w, http.StatusOK, dto.MutationResponse{
			Status:  "success",
			Message: "Structure updated successfully",
			Data:    row,
		})
	}
}

func (h *StructureHandler) Tree(w http.ResponseWriter, r *http.Request) {
	id, err := h.extractID(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	node, err := h.structures.Tree(r.Context(), id)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, dto.TreeResponse{Status: "success", Data: node})
}

func (h *StructureHandler) AutoOrganize(w http.ResponseWriter, r *http.Request) {
	id, err := h.extractID(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	res, err := h.structures.AutoOrganize(r.Context(), id, r.URL.Query().Get("strategy"))
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, res)
}

func (h *StructureHandler) AutoOrganizeDiagram(w http.ResponseWriter, r *http.Request) {
	id, err := h.extractID(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.structures.AutoOrganizeDiagram(r.Context(), id); err != nil {
		h.serviceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, dto.StatusResponse{Status: "Diagram auto-organized"})
}
