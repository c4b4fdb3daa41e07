package service

import (
	"context"
	"errors"
	"strings"

	"github.com/organigram-api/internal/domain"
	"github.com/organigram-api/internal/repository"
)

// DetailService реализует массовое добавление деталей должности
// (миссий и компетенций) одним запросом
type DetailService interface {
	BulkCreate(ctx context.Context, entity string, positionID int64, descriptions []string) ([]map[string]any, error)
}

type detailService struct {
	resources ResourceService
	positions repository.PositionRepository
}

// NewDetailService создаёт новый экземпляр сервиса
func NewDetailService(resources ResourceService, positions repository.PositionRepository) DetailService {
	return &detailService{resources: resources, positions: positions}
}

// BulkCreate создаёт записи заданного вида (mission, competence) для одной
// должности; пустые описания пропускаются, не прерывая загрузку
func (s *detailService) BulkCreate(ctx context.Context, entity string, positionID int64, descriptions []string) ([]map[string]any, error) {
	if _, err := s.positions.GetByID(ctx, positionID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.MissingError{Message: "Position not found"}
		}
		return nil, err
	}

	rows := make([]map[string]any, 0, len(descriptions))
	for _, text := range descriptions {
		if text = strings.TrimSpace(text); text == "" {
			continue
		}
		row, err := s.resources.Create(ctx, entity, map[string]any{
			"position":    positionID,
			"description": text,
		})
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
