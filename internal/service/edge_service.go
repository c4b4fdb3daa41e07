package service

import (
	"context"
	"errors"

	"github.com/organigram-api/internal/domain"
	"github.com/organigram-api/internal/meta"
	"github.com/organigram-api/internal/repository"
)

// edgeEntity - имя сущности ребра в реестре
const edgeEntity = "organigram_edge"

// EdgeService применяет доменные правила рёбер поверх универсального CRUD:
// запрет петель, единственный родитель, порядок рангов и принадлежность
// обоих концов структуре ребра
type EdgeService interface {
	Create(ctx context.Context, payload map[string]any) (map[string]any, error)
	Update(ctx context.Context, id int64, payload map[string]any, partial bool) (map[string]any, error)
}

type edgeService struct {
	resources  ResourceService
	edges      repository.EdgeRepository
	positions  repository.PositionRepository
	structures repository.StructureRepository
}

// NewEdgeService создаёт новый экземпляр сервиса
func NewEdgeService(resources ResourceService, edges repository.EdgeRepository, positions repository.PositionRepository, structures repository.StructureRepository) EdgeService {
	return &edgeService{
		resources:  resources,
		edges:      edges,
		positions:  positions,
		structures: structures,
	}
}

func (s *edgeService) Create(ctx context.Context, payload map[string]any) (map[string]any, error) {
	st, err := edgeStateFrom(payload, nil)
	if err != nil {
		return nil, err
	}
	if err := s.checkRules(ctx, st, 0); err != nil {
		return nil, err
	}
	return s.resources.Create(ctx, edgeEntity, payload)
}

func (s *edgeService) Update(ctx context.Context, id int64, payload map[string]any, partial bool) (map[string]any, error) {
	current, err := s.edges.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	st, err := edgeStateFrom(payload, current)
	if err != nil {
		return nil, err
	}
	// Текущее ребро не считается родительским при проверке единственности
	if err := s.checkRules(ctx, st, id); err != nil {
		return nil, err
	}
	return s.resources.Update(ctx, edgeEntity, id, payload, partial)
}

// edgeState - эффективные значения ребра после наложения входных данных
// на текущую запись (при обновлении)
type edgeState struct {
	structureID int64
	source      domain.NodeRef
	target      domain.NodeRef
}

func edgeStateFrom(payload map[string]any, current *domain.OrganigramEdge) (edgeState, error) {
	var st edgeState
	if current != nil {
		st = edgeState{
			structureID: current.StructureID,
			source:      current.Source(),
			target:      current.Target(),
		}
	}

	if raw, ok := payload["structure"]; ok && raw != nil {
		id, err := toRefID(raw)
		if err != nil {
			return st, domain.NewValidationError("field structure must be an integer id")
		}
		st.structureID = id
	} else if current == nil {
		return st, domain.NewValidationError("field structure is required")
	}

	var err error
	if st.source, err = nodeRefFrom(payload, "source_type", "source_id", st.source, current == nil); err != nil {
		return st, err
	}
	if st.target, err = nodeRefFrom(payload, "target_type", "target_id", st.target, current == nil); err != nil {
		return st, err
	}
	return st, nil
}

// nodeRefFrom читает пару (тип, id) из входных данных; отсутствующие ключи
// берутся из base, при required отсутствие считается ошибкой
func nodeRefFrom(payload map[string]any, typeKey, idKey string, base domain.NodeRef, required bool) (domain.NodeRef, error) {
	ref := base
	if raw, ok := payload[typeKey]; ok && raw != nil {
		kind, ok := raw.(string)
		if !ok || !domain.NodeKind(kind).Valid() {
			return ref, domain.NewValidationError("field %s must be one of the %s kinds", typeKey, meta.UnionOrgNode)
		}
		ref.Kind = domain.NodeKind(kind)
	} else if required {
		return ref, domain.NewValidationError("field %s is required", typeKey)
	}
	if raw, ok := payload[idKey]; ok && raw != nil {
		id, err := toRefID(raw)
		if err != nil {
			return ref, domain.NewValidationError("field %s must be an integer id", idKey)
		}
		ref.ID = id
	} else if required {
		return ref, domain.NewValidationError("field %s is required", idKey)
	}
	return ref, nil
}

// checkRules последовательно проверяет правила ребра: существование концов
// и структуры, запрет петли, совпадение контейнеров, единственного родителя
// и порядок рангов
func (s *edgeService) checkRules(ctx context.Context, st edgeState, excludeEdgeID int64) error {
	source, err := s.resolveNode(ctx, st.source)
	if err != nil {
		return err
	}
	target, err := s.resolveNode(ctx, st.target)
	if err != nil {
		return err
	}
	if _, err := s.structures.GetByID(ctx, st.structureID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &domain.ReferenceError{Entity: "Structure", ID: st.structureID}
		}
		return err
	}

	if st.source.Equal(st.target) {
		return domain.ErrSelfLoop
	}

	if source.container != st.structureID || target.container != st.structureID {
		return domain.ErrContainerMismatch
	}

	taken, err := s.edges.HasIncomingEdge(ctx, st.structureID, st.target, excludeEdgeID)
	if err != nil {
		return err
	}
	if taken {
		return domain.ErrAlreadyHasParent
	}

	// Ранги сравниваются только когда известны у обоих концов;
	// меньший level означает более высокое место в иерархии
	if source.rank != nil && target.rank != nil && *source.rank >= *target.rank {
		return domain.ErrRankOrder
	}
	return nil
}

// resolvedNode - контейнер и ранг разрешённого конца ребра
type resolvedNode struct {
	container int64
	rank      *int
}

// resolveNode находит узел по ссылке (вид, id). Контейнером должности служит
// её структура, рангом level либо level грейда; структура является
// контейнером сама для себя и ранга не имеет.
func (s *edgeService) resolveNode(ctx context.Context, ref domain.NodeRef) (resolvedNode, error) {
	switch ref.Kind {
	case domain.NodeKindPosition:
		pos, err := s.positions.GetByIDWithGrade(ctx, ref.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return resolvedNode{}, &domain.ReferenceError{Entity: "Position", ID: ref.ID}
			}
			return resolvedNode{}, err
		}
		return resolvedNode{container: pos.StructureID, rank: positionRank(pos)}, nil
	case domain.NodeKindStructure:
		if _, err := s.structures.GetByID(ctx, ref.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return resolvedNode{}, &domain.ReferenceError{Entity: "Structure", ID: ref.ID}
			}
			return resolvedNode{}, err
		}
		return resolvedNode{container: ref.ID}, nil
	default:
		return resolvedNode{}, domain.NewValidationError("unknown node kind %q", ref.Kind)
	}
}

// positionRank возвращает ранг должности: собственный level либо level грейда
func positionRank(pos *domain.Position) *int {
	if pos.Level != nil {
		return pos.Level
	}
	if pos.Grade != nil {
		return &pos.Grade.Level
	}
	return nil
}
