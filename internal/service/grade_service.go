package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/organigram-api/internal/domain"
	"github.com/organigram-api/internal/dto"
)

// gradeEntity - имя сущности грейда в реестре
const gradeEntity = "grade"

// GradeService реализует массовую загрузку грейдов с построчной проверкой
type GradeService interface {
	BulkCreate(ctx context.Context, rows []map[string]any) (*dto.GradeBulkResponse, error)
}

type gradeService struct {
	resources ResourceService
}

// NewGradeService создаёт новый экземпляр сервиса
func NewGradeService(resources ResourceService) GradeService {
	return &gradeService{resources: resources}
}

// BulkCreate создаёт грейды из списка, накапливая построчные ошибки вместо
// отката всей партии; каждая строка проверяется и сохраняется независимо
func (s *gradeService) BulkCreate(ctx context.Context, rows []map[string]any) (*dto.GradeBulkResponse, error) {
	if len(rows) == 0 {
		return nil, domain.NewValidationError("No grade data provided")
	}

	resp := &dto.GradeBulkResponse{TotalRows: len(rows)}
	for i, row := range rows {
		if err := s.createRow(ctx, row); err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("Row %d: %s", i+1, err))
			continue
		}
		resp.CreatedCount++
	}
	resp.Message = fmt.Sprintf("Successfully created %d of %d grades", resp.CreatedCount, resp.TotalRows)
	return resp, nil
}

func (s *gradeService) createRow(ctx context.Context, row map[string]any) error {
	name, _ := row["name"].(string)
	if strings.TrimSpace(name) == "" {
		return domain.NewValidationError("Name is required")
	}
	if raw, ok := row["level"]; !ok || raw == nil {
		return domain.NewValidationError("Level is required")
	}

	attrs := map[string]any{
		"name":  strings.TrimSpace(name),
		"level": row["level"],
	}
	for _, key := range []string{"color", "category", "description"} {
		if raw, ok := row[key].(string); ok && strings.TrimSpace(raw) != "" {
			attrs[key] = strings.TrimSpace(raw)
		}
	}
	_, err := s.resources.Create(ctx, gradeEntity, attrs)
	return err
}
