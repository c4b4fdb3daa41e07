package service

import (
	"context"

	"github.com/organigram-api/internal/dto"
	"github.com/organigram-api/internal/repository"
)

// DashboardService собирает сводные показатели для панели мониторинга
type DashboardService interface {
	Stats(ctx context.Context) (*dto.DashboardData, error)
}

type dashboardService struct {
	resources  repository.ResourceRepository
	structures repository.StructureRepository
}

// NewDashboardService создаёт новый экземпляр сервиса
func NewDashboardService(resources repository.ResourceRepository, structures repository.StructureRepository) DashboardService {
	return &dashboardService{resources: resources, structures: structures}
}

// Stats возвращает количество записей основных сущностей и пять последних
// главных структур
func (s *dashboardService) Stats(ctx context.Context) (*dto.DashboardData, error) {
	data := &dto.DashboardData{}
	var err error
	if data.TotalStructures, err = s.resources.Count(ctx, structureEntity); err != nil {
		return nil, err
	}
	if data.TotalPositions, err = s.resources.Count(ctx, positionEntity); err != nil {
		return nil, err
	}
	if data.TotalGrades, err = s.resources.Count(ctx, gradeEntity); err != nil {
		return nil, err
	}

	recent, err := s.structures.RecentMain(ctx, 5)
	if err != nil {
		return nil, err
	}
	data.RecentStructures = make([]map[string]any, 0, len(recent))
	for _, st := range recent {
		data.RecentStructures = append(data.RecentStructures, map[string]any{
			"id":         st.ID,
			"name":       st.Name,
			"created_at": st.CreatedAt,
		})
	}
	return data, nil
}
