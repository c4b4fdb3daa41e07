package service

import (
	"context"
	"errors"
	"strings"

	"github.com/organigram-api/internal/domain"
	"github.com/organigram-api/internal/repository"
)

// diagramEntity - имя сущности координат диаграммы в реестре
const diagramEntity = "diagram_position"

// DiagramService управляет кешем координат узлов: создание записи работает
// как upsert по ключу (узел, главная структура), поэтому повторная отправка
// тех же узлов лишь двигает их
type DiagramService interface {
	Upsert(ctx context.Context, payload map[string]any) (map[string]any, error)
}

type diagramService struct {
	resources  ResourceService
	structures repository.StructureRepository
	diagrams   repository.DiagramRepository
}

// NewDiagramService создаёт новый экземпляр сервиса
func NewDiagramService(resources ResourceService, structures repository.StructureRepository, diagrams repository.DiagramRepository) DiagramService {
	return &diagramService{resources: resources, structures: structures, diagrams: diagrams}
}

// Upsert записывает координаты узла в диаграмме главной структуры, создавая
// либо обновляя существующую запись
func (s *diagramService) Upsert(ctx context.Context, payload map[string]any) (map[string]any, error) {
	rawKind, kindOK := payload["node_type"].(string)
	rawID := payload["node_id"]
	rawMain := payload["main_structure"]
	if !kindOK || rawKind == "" || rawID == nil || rawMain == nil {
		return nil, domain.NewValidationError("node_type, node_id, and main_structure are required and cannot be null")
	}

	kind := domain.NodeKind(strings.ToLower(rawKind))
	if !kind.Valid() {
		return nil, domain.NewValidationError("Invalid node_type: %s", rawKind)
	}
	nodeID, err := toRefID(rawID)
	if err != nil {
		return nil, domain.NewValidationError("node_id must be a valid integer")
	}
	mainID, err := toRefID(rawMain)
	if err != nil {
		return nil, domain.NewValidationError("main_structure must be a valid integer")
	}

	// Узел обязан существовать в своей таблице
	if _, err := s.resources.Retrieve(ctx, string(kind), nodeID, ""); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.ReferenceError{Entity: string(kind), ID: nodeID}
		}
		return nil, err
	}

	main, err := s.structures.GetByID(ctx, mainID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if main == nil || !main.IsMain {
		return nil, domain.NewValidationError("Main structure with id %d not found or not marked as main", mainID)
	}

	row := &domain.DiagramPosition{
		NodeType:        kind,
		NodeID:          nodeID,
		MainStructureID: mainID,
		PositionX:       toCoord(payload["position_x"]),
		PositionY:       toCoord(payload["position_y"]),
	}
	if _, err := s.diagrams.Upsert(ctx, row); err != nil {
		return nil, err
	}
	return s.resources.Retrieve(ctx, diagramEntity, row.ID, "")
}

// toCoord приводит координату из JSON к float64; отсутствие значения
// трактуется как ноль
func toCoord(raw any) float64 {
	switch v := raw.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}
