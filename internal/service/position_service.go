package service

import (
	"context"
	"errors"

	"github.com/organigram-api/internal/domain"
	"github.com/organigram-api/internal/dto"
	"github.com/organigram-api/internal/repository"
)

// positionEntity - имя сущности должности в реестре
const positionEntity = "position"

// PositionService покрывает операции над должностями за пределами
// универсального CRUD: создание с родителем, навигацию по иерархии,
// клонирование и массовое перемещение на схеме
type PositionService interface {
	Create(ctx context.Context, payload map[string]any) (map[string]any, error)
	Parent(ctx context.Context, id int64) (map[string]any, error)
	UpdateEdgeSource(ctx context.Context, id, sourceID int64) (map[string]any, error)
	Clone(ctx context.Context, id int64) (map[string]any, error)
	BulkCoordinates(ctx context.Context, updates []dto.CoordinateItem) (int64, error)
}

type positionService struct {
	resources ResourceService
	positions repository.PositionRepository
	edges     repository.EdgeRepository
}

// NewPositionService создаёт новый экземпляр сервиса
func NewPositionService(resources ResourceService, positions repository.PositionRepository, edges repository.EdgeRepository) PositionService {
	return &positionService{
		resources: resources,
		positions: positions,
		edges:     edges,
	}
}

// Create создаёт должность; необязательный ключ parent задаёт родительскую
// должность, к которой сразу проводится ребро
func (s *positionService) Create(ctx context.Context, payload map[string]any) (map[string]any, error) {
	var parent *domain.Position
	if raw, ok := payload["parent"]; ok {
		delete(payload, "parent")
		if raw != nil {
			parentID, err := toRefID(raw)
			if err != nil {
				return nil, domain.NewValidationError("Invalid parent ID provided.")
			}
			parent, err = s.positions.GetByID(ctx, parentID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return nil, domain.NewValidationError("Invalid parent ID provided.")
				}
				return nil, err
			}
		}
	}

	row, err := s.resources.Create(ctx, positionEntity, payload)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return row, nil
	}

	id, err := toRefID(row["id"])
	if err != nil {
		return nil, err
	}
	structureID, err := toRefID(row["structure"])
	if err != nil {
		return nil, err
	}
	edge := &domain.OrganigramEdge{
		StructureID: structureID,
		SourceType:  domain.NodeKindPosition,
		SourceID:    parent.ID,
		TargetType:  domain.NodeKindPosition,
		TargetID:    id,
	}
	if err := s.edges.Create(ctx, edge); err != nil {
		// Должность и родительское ребро появляются только вместе
		_ = s.resources.Delete(ctx, positionEntity, id)
		return nil, err
	}
	return row, nil
}

// Parent возвращает родительскую должность: источник ребра, целью которого
// является данная должность в пределах её структуры
func (s *positionService) Parent(ctx context.Context, id int64) (map[string]any, error) {
	pos, err := s.positions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	edge, err := s.edges.IncomingEdge(ctx, pos.StructureID, domain.NodeRef{Kind: domain.NodeKindPosition, ID: id})
	if err != nil {
		return nil, err
	}
	if edge == nil || edge.SourceType != domain.NodeKindPosition {
		return nil, domain.ErrNoParentPosition
	}
	return s.resources.Retrieve(ctx, positionEntity, edge.SourceID, "")
}

// UpdateEdgeSource переключает входящее ребро должности на другой источник
// в пределах той же структуры
func (s *positionService) UpdateEdgeSource(ctx context.Context, id, sourceID int64) (map[string]any, error) {
	pos, err := s.positions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	edge, err := s.edges.IncomingEdge(ctx, pos.StructureID, domain.NodeRef{Kind: domain.NodeKindPosition, ID: id})
	if err != nil {
		return nil, err
	}
	if edge == nil {
		return nil, domain.ErrNoIncomingEdge
	}

	source, err := s.positions.GetByID(ctx, sourceID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrSourceNotInScope
		}
		return nil, err
	}
	if source.StructureID != pos.StructureID {
		return nil, domain.ErrSourceNotInScope
	}

	edge.SourceType = domain.NodeKindPosition
	edge.SourceID = source.ID
	if err := s.edges.Update(ctx, edge); err != nil {
		return nil, err
	}
	return s.resources.Retrieve(ctx, edgeEntity, edge.ID, "")
}

// Clone создаёт глубокую копию должности вместе с деталями и входящим ребром
func (s *positionService) Clone(ctx context.Context, id int64) (map[string]any, error) {
	pos, err := s.positions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	details, err := s.positions.ListDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	incoming, err := s.edges.IncomingEdge(ctx, pos.StructureID, domain.NodeRef{Kind: domain.NodeKindPosition, ID: id})
	if err != nil {
		return nil, err
	}
	clone, err := s.positions.Clone(ctx, pos, details, incoming)
	if err != nil {
		return nil, err
	}
	return s.resources.Retrieve(ctx, positionEntity, clone.ID, "")
}

// BulkCoordinates массово обновляет координаты должностей на схеме
func (s *positionService) BulkCoordinates(ctx context.Context, updates []dto.CoordinateItem) (int64, error) {
	if len(updates) == 0 {
		return 0, domain.NewValidationError("No updates provided.")
	}
	rows := make([]repository.CoordinateUpdate, 0, len(updates))
	for _, u := range updates {
		rows = append(rows, repository.CoordinateUpdate{ID: u.ID, X: u.X, Y: u.Y})
	}
	return s.positions.BulkUpdateCoordinates(ctx, rows)
}
