package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/organigram-api/internal/domain"
	"github.com/organigram-api/internal/dto"
	"github.com/organigram-api/internal/meta"
	"github.com/organigram-api/internal/service"
)

// ResourceHandler обслуживает генерируемые CRUD-маршруты: один набор
// обработчиков на все сущности реестра, сущность фиксируется замыканием
// при регистрации маршрута
type ResourceHandler struct {
	base
	resources service.ResourceService
}

func NewResourceHandler(resources service.ResourceService, logger *slog.Logger) *ResourceHandler {
	return &ResourceHandler{
		base:      newBase(logger),
		resources: resources,
	}
}

func (h *ResourceHandler) List(desc *meta.EntityDescriptor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := h.resources.List(r.Context(), desc.Name, r.URL.Query())
		if err != nil {
			h.serviceError(w, err)
			return
		}

		results := res.Results
		if results == nil {
			results = []map[string]any{}
		}
		var next, previous *string
		if res.HasNext {
			next = pageURL(r, res.CurrentPage+1)
		}
		if res.HasPrev {
			previous = pageURL(r, res.CurrentPage-1)
		}

		h.respondJSON(w, http.StatusOK, dto.ListResponse{
			Status:      "success",
			Count:       res.Count,
			Next:        next,
			Previous:    previous,
			TotalPages:  res.TotalPages,
			CurrentPage: res.CurrentPage,
			Results:     results,
		})
	}
}

func (h *ResourceHandler) Retrieve(desc *meta.EntityDescriptor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := h.extractID(r)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid id")
			return
		}

		row, err := h.resources.Retrieve(r.Context(), desc.Name, id, r.URL.Query().Get("expand"))
		if err != nil {
			h.serviceError(w, err)
			return
		}

		h.respondJSON(w, http.StatusOK, dto.DetailResponse{Status: "success", Data: row})
	}
}

func (h *ResourceHandler) Create(desc *meta.EntityDescriptor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := h.decode(r, &payload); err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		row, err := h.resources.Create(r.Context(), desc.Name, payload)
		if err != nil {
			h.serviceError(w, err)
			return
		}

		h.respondJSON(w, http.StatusCreated, dto.MutationResponse{
			Status:  "success",
			Message: desc.GraphName + " created successfully",
			Data:    row,
		})
	}
}

func (h *ResourceHandler) Update(desc *meta.EntityDescriptor, partial bool) http.HandlerFunc {
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

		row, err := h.resources.Update(r.Context(), desc.Name, id, payload, partial)
		if err != nil {
			h.serviceError(w, err)
			return
		}

		h.respondJSON(w, http.StatusOK, dto.MutationResponse{
			Status:  "success",
			Message: desc.GraphName + " updated successfully",
			Data:    row,
		})
	}
}

func (h *ResourceHandler) Delete(desc *meta.EntityDescriptor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := h.extractID(r)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid id")
			return
		}

		if err := h.resources.Delete(r.Context(), desc.Name, id); err != nil {
			h.serviceError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *ResourceHandler) BulkCreate(desc *meta.EntityDescriptor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.BulkCreateRequest
		if err := h.decode(r, &req); err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := h.validator.Struct(&req); err != nil {
			h.respondError(w, http.StatusBadRequest, "items list is required and must not be empty")
			return
		}

		rows, err := h.resources.BulkCreate(r.Context(), desc.Name, req.Items)
		if err != nil {
			h.serviceError(w, err)
			return
		}

		h.respondJSON(w, http.StatusCreated, dto.BulkDataResponse{
			Status:  "success",
			Message: fmt.Sprintf("Successfully created %d items.", len(rows)),
			Data:    rows,
		})
	}
}

func (h *ResourceHandler) BulkUpdate(desc *meta.EntityDescriptor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.BulkUpdateRequest
		if err := h.decode(r, &req); err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := h.validator.Struct(&req); err != nil {
			h.respondError(w, http.StatusBadRequest, "items list is required and must not be empty")
			return
		}

		rows, err := h.resources.BulkUpdate(r.Context(), desc.Name, req.Items)
		if err != nil {
			h.serviceError(w, err)
			return
		}

		h.respondJSON(w, http.StatusOK, dto.BulkDataResponse{
			Status:  "success",
			Message: fmt.Sprintf("Successfully updated %d items.", len(rows)),
			Data:    rows,
		})
	}
}

func (h *ResourceHandler) BulkDelete(desc *meta.EntityDescriptor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.BulkDeleteRequest
		if err := h.decode(r, &req); err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := h.validator.Struct(&req); err != nil {
			h.respondError(w, http.StatusBadRequest, "ids list is required and must not be empty")
			return
		}

		count, err := h.resources.BulkDelete(r.Context(), desc.Name, req.IDs)
		if err != nil {
			h.serviceError(w, err)
			return
		}
		if count == 0 {
			h.respondError(w, http.StatusNotFound, domain.ErrNoMatchingRows.Error())
			return
		}

		h.respondJSON(w, http.StatusOK, dto.MessageResponse{
			Status:  "success",
			Message: fmt.Sprintf("Successfully deleted %d objects.", count),
		})
	}
}

// pageURL строит абсолютную ссылку на соседнюю страницу текущего запроса;
// параметр page первой страницы опускается
func pageURL(r *http.Request, page int64) *string {
	u := *r.URL
	q := u.Query()
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.FormatInt(page, 10))
	}
	u.RawQuery = q.Encode()

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	link := scheme + "://" + r.Host + u.String()
	return &link
}
