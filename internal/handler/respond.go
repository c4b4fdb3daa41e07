// Package handler содержит HTTP-обработчики поверх сервисного слоя.
// Генерируемые CRUD-маршруты обслуживает ResourceHandler, единый для
// всех сущностей реестра; специализированные операции живут в своих
// обработчиках и регистрируются раньше генерируемых.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/organigram-api/internal/domain"
	"github.com/organigram-api/internal/dto"
)

// base - общая часть всех обработчиков: валидатор входных данных,
// логгер и ответные хелперы
type base struct {
	validator *validator.Validate
	logger    *slog.Logger
}

func newBase(logger *slog.Logger) base {
	return base{
		validator: validator.New(),
		logger:    logger,
	}
}

func (b *base) extractID(r *http.Request) (int64, error) {
	raw, ok := mux.Vars(r)["id"]
	if !ok {
		return 0, errors.New("id is required")
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (b *base) decode(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

func (b *base) respondJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		b.logger.Error("failed to encode response", slog.Any("error", err))
	}
}

func (b *base) respondError(w http.ResponseWriter, status int, message string) {
	b.respondJSON(w, status, dto.ErrorResponse{Status: "error", Message: message})
}

// serviceError сопоставляет доменные ошибки со статусами HTTP;
// текст доменной ошибки уходит клиенту без изменений
func (b *base) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		b.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrReferenceNotFound):
		b.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrConstraintViolation):
		b.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrCycleDetected):
		b.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		b.respondError(w, http.StatusNotFound, err.Error())
	default:
		b.logger.Error("internal error", slog.Any("error", err))
		b.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
