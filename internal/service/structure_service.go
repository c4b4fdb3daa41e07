package service

import (
	"context"

	"github.com/organigram-api/internal/domain"
	"github.com/organigram-api/internal/dto"
	"github.com/organigram-api/internal/layout"
	"github.com/organigram-api/internal/repository"
)

// structureEntity - имя сущности структуры в реестре
const structureEntity = "structure"

// Стратегии автоматической раскладки должностей
const (
	StrategySubtree = "subtree"
	StrategyLayered = "layered"
)

// StructureService покрывает операции над структурами за пределами
// универсального CRUD: защиту иерархии от циклов, выдачу дерева и
// автоматическую раскладку должностей и диаграммы
type StructureService interface {
	Update(ctx context.Context, id int64, payload map[string]any, partial bool) (map[string]any, error)
	Tree(ctx context.Context, id int64) (*dto.StructureTreeNode, error)
	AutoOrganize(ctx context.Context, id int64, strategy string) (*dto.AutoOrganizeResponse, error)
	AutoOrganizeDiagram(ctx context.Context, id int64) error
}

type structureService struct {
	resources  ResourceService
	structures repository.StructureRepository
	positions  repository.PositionRepository
	edges      repository.EdgeRepository
	diagrams   repository.DiagramRepository
}

// NewStructureService создаёт новый экземпляр сервиса
func NewStructureService(resources ResourceService, structures repository.StructureRepository, positions repository.PositionRepository, edges repository.EdgeRepository, diagrams repository.DiagramRepository) StructureService {
	return &structureService{
		resources:  resources,
		structures: structures,
		positions:  positions,
		edges:      edges,
		diagrams:   diagrams,
	}
}

// Update обновляет структуру, не позволяя смене родителя замкнуть цикл
func (s *structureService) Update(ctx context.Context, id int64, payload map[string]any, partial bool) (map[string]any, error) {
	if raw, ok := payload["parent"]; ok && raw != nil {
		parentID, err := toRefID(raw)
		if err != nil {
			return nil, domain.NewValidationError("field parent must be an integer id")
		}
		if parentID == id {
			return nil, domain.ErrStructureSelfParent
		}
		// Перенос под собственного потомка замкнул бы цикл
		descendant, err := s.structures.IsDescendant(ctx, id, parentID)
		if err != nil {
			return nil, err
		}
		if descendant {
			return nil, domain.ErrStructureCycle
		}
	}
	return s.resources.Update(ctx, structureEntity, id, payload, partial)
}

// Tree возвращает структуру с рекурсивно вложенными детьми и должностями
func (s *structureService) Tree(ctx context.Context, id int64) (*dto.StructureTreeNode, error) {
	root, err := s.structures.GetTree(ctx, id)
	if err != nil {
		return nil, err
	}
	return treeNode(root), nil
}

func treeNode(st *domain.Structure) *dto.StructureTreeNode {
	node := &dto.StructureTreeNode{
		ID:          st.ID,
		Name:        st.Name,
		ParentID:    st.ParentID,
		IsMain:      st.IsMain,
		InitialNode: st.InitialNode,
		Positions:   make([]dto.TreePosition, 0, len(st.Positions)),
		Children:    make([]dto.StructureTreeNode, 0, len(st.Children)),
	}
	if st.Type != nil {
		node.Type = &dto.StructureTypeInfo{ID: st.Type.ID, Name: st.Type.Name}
	}
	for i := range st.Positions {
		node.Positions = append(node.Positions, treePosition(&st.Positions[i]))
	}
	for i := range st.Children {
		node.Children = append(node.Children, *treeNode(&st.Children[i]))
	}
	return node
}

func treePosition(p *domain.Position) dto.TreePosition {
	tp := dto.TreePosition{
		ID:        p.ID,
		Title:     p.Title,
		Level:     p.Level,
		IsManager: p.IsManager,
		Color:     p.Color,
		PositionX: p.PositionX,
		PositionY: p.PositionY,
	}
	if p.Grade != nil {
		tp.Grade = &dto.GradeInfo{ID: p.Grade.ID, Name: p.Grade.Name, Level: p.Grade.Level, Color: p.Grade.Color}
	}
	return tp
}

// AutoOrganize раскладывает должности структуры деревом: дети под родителями,
// родитель по центру над детьми. Координаты сохраняются массово.
func (s *structureService) AutoOrganize(ctx context.Context, id int64, strategy string) (*dto.AutoOrganizeResponse, error) {
	if _, err := s.structures.GetByID(ctx, id); err != nil {
		return nil, err
	}
	positions, err := s.positions.ListByStructure(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return &dto.AutoOrganizeResponse{Message: "No positions to organize"}, nil
	}

	edges, err := s.edges.PositionEdges(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(positions))
	for _, p := range positions {
		ids = append(ids, p.ID)
	}
	links := make([]layout.Edge, 0, len(edges))
	for _, e := range edges {
		links = append(links, layout.Edge{Source: e.SourceID, Target: e.TargetID})
	}

	points, err := layoutPoints(ids, links, strategy, layout.PositionOptions())
	if err != nil {
		return nil, err
	}

	updates := make([]repository.CoordinateUpdate, 0, len(ids))
	coords := make([]dto.PositionCoordinate, 0, len(ids))
	for _, pid := range ids {
		pt := points[pid]
		updates = append(updates, repository.CoordinateUpdate{ID: pid, X: pt.X, Y: pt.Y})
		coords = append(coords, dto.PositionCoordinate{ID: pid, PositionX: pt.X, PositionY: pt.Y})
	}
	if _, err := s.positions.BulkUpdateCoordinates(ctx, updates); err != nil {
		return nil, err
	}
	return &dto.AutoOrganizeResponse{
		Message: "Chart organized as hierarchical tree with children under parents",
		Updates: coords,
	}, nil
}

// layoutPoints выбирает алгоритм раскладки по имени стратегии
func layoutPoints(ids []int64, links []layout.Edge, strategy string, opts layout.Options) (map[int64]layout.Point, error) {
	switch strategy {
	case "", StrategySubtree:
		return layout.Subtree(ids, links, opts)
	case StrategyLayered:
		return layout.Layered(ids, links, opts)
	default:
		return nil, domain.NewValidationError("unknown layout strategy %q", strategy)
	}
}

// AutoOrganizeDiagram раскладывает поддерево структур по связям parent
// и сохраняет координаты в кеш диаграммы главной структуры
func (s *structureService) AutoOrganizeDiagram(ctx context.Context, id int64) error {
	if _, err := s.structures.GetByID(ctx, id); err != nil {
		return err
	}
	nodes, err := s.structures.Subtree(ctx, id)
	if err != nil {
		return err
	}

	ids := make([]int64, 0, len(nodes))
	links := make([]layout.Edge, 0, len(nodes))
	for _, st := range nodes {
		ids = append(ids, st.ID)
		if st.ParentID != nil {
			links = append(links, layout.Edge{Source: *st.ParentID, Target: st.ID})
		}
	}

	points, err := layout.Subtree(ids, links, layout.DiagramOptions())
	if err != nil {
		return err
	}

	rows := make([]domain.DiagramPosition, 0, len(ids))
	for _, nodeID := range ids {
		pt := points[nodeID]
		rows = append(rows, domain.DiagramPosition{
			NodeType:        domain.NodeKindStructure,
			NodeID:          nodeID,
			MainStructureID: id,
			PositionX:       pt.X,
			PositionY:       pt.Y,
		})
	}
	return s.diagrams.UpsertMany(ctx, rows)
}
