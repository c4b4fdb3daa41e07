package domain

import (
	"errors"
	"fmt"
)

// Базовые виды ошибок; конкретные ошибки оборачивают один из них,
// и хендлеры сопоставляют их со статусами через errors.Is
var (
	ErrNotFound            = errors.New("not found")
	ErrReferenceNotFound   = errors.New("referenced entity not found")
	ErrValidation          = errors.New("validation error")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrCycleDetected       = errors.New("cycle detected")
)

// Ошибки валидации рёбер; текст сообщения уходит клиенту без изменений
var (
	ErrSelfLoop          = &ConstraintError{Message: "Source and target must be different nodes"}
	ErrAlreadyHasParent  = &ConstraintError{Message: "A node can only have one parent"}
	ErrRankOrder         = &ConstraintError{Message: "Parent must have a higher level than child"}
	ErrContainerMismatch = &ConstraintError{Message: "Source, target and edge must belong to the same structure"}
)

// Ошибки структур и раскладки
var (
	ErrStructureSelfParent = &ConstraintError{Message: "A structure cannot be its own parent"}
	ErrStructureCycle      = &CycleError{Message: "Moving this structure would create a cycle"}
	ErrNoRootNodes         = &CycleError{Message: "No root positions found (circular references may exist)"}
)

// ConstraintError - нарушение доменного правила с готовым текстом для клиента
type ConstraintError struct {
	Message string
}

func (e *ConstraintError) Error() string {
	return e.Message
}

// Is позволяет сопоставлять ошибку с ErrConstraintViolation
func (e *ConstraintError) Is(target error) bool {
	return target == ErrConstraintViolation
}

// CycleError - обнаруженный или потенциальный цикл в иерархии
type CycleError struct {
	Message string
}

func (e *CycleError) Error() string {
	return e.Message
}

// Is позволяет сопоставлять ошибку с ErrCycleDetected
func (e *CycleError) Is(target error) bool {
	return target == ErrCycleDetected
}

// Ошибки иерархии должностей; текст сообщения уходит клиенту без изменений
var (
	ErrNoParentPosition = &MissingError{Message: "No parent position found"}
	ErrNoIncomingEdge   = &MissingError{Message: "No edge found for this position"}
	ErrSourceNotInScope = &MissingError{Message: "Source position not found or not in the same structure"}
	ErrNoMatchingRows   = &MissingError{Message: "No matching items found for deletion"}
)

// NotFoundError - отсутствующая запись с указанием сущности и id
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id %d not found", e.Entity, e.ID)
}

// Is позволяет сопоставлять ошибку с ErrNotFound
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// MissingError - отсутствующая запись с готовым текстом для клиента
type MissingError struct {
	Message string
}

func (e *MissingError) Error() string {
	return e.Message
}

// Is позволяет сопоставлять ошибку с ErrNotFound
func (e *MissingError) Is(target error) bool {
	return target == ErrNotFound
}

// ReferenceError - ссылка на несуществующую запись в входных данных
type ReferenceError struct {
	Entity string
	ID     int64
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s with id %d does not exist", e.Entity, e.ID)
}

// Is позволяет сопоставлять ошибку с ErrReferenceNotFound
func (e *ReferenceError) Is(target error) bool {
	return target == ErrReferenceNotFound
}

// ValidationError - ошибка проверки входных данных с человекочитаемым описанием
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is позволяет сопоставлять ошибку с ErrValidation
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError создаёт ValidationError с форматированием
func NewValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
