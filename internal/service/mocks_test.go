package service_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/organigram-api/internal/domain"
	"github.com/organigram-api/internal/filter"
	"github.com/organigram-api/internal/meta"
	"github.com/organigram-api/internal/repository"
	"github.com/organigram-api/internal/service"
)

// mockResourceRepo хранит строки всех сущностей в памяти; фильтры
// применяются через filter.Eval, страница вырезается по Offset и Limit.
// lastExpand запоминает пути раскрытия последнего чтения
type mockResourceRepo struct {
	rows       map[string]map[int64]map[string]any
	nextID     int64
	lastExpand []string
}

func newMockResourceRepo() *mockResourceRepo {
	return &mockResourceRepo{
		rows:   make(map[string]map[int64]map[string]any),
		nextID: 1,
	}
}

func (m *mockResourceRepo) table(entity string) map[int64]map[string]any {
	t, ok := m.rows[entity]
	if !ok {
		t = make(map[int64]map[string]any)
		m.rows[entity] = t
	}
	return t
}

func copyRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// seed кладёт строку с заранее известным id, синхронизируя счётчик
func (m *mockResourceRepo) seed(entity string, id int64, row map[string]any) {
	row = copyRow(row)
	row["id"] = id
	m.table(entity)[id] = row
	if id >= m.nextID {
		m.nextID = id + 1
	}
}

func (m *mockResourceRepo) sorted(entity string) []map[string]any {
	t := m.table(entity)
	ids := make([]int64, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyRow(t[id]))
	}
	return out
}

func (m *mockResourceRepo) List(ctx context.Context, q repository.ListQuery) ([]map[string]any, int64, error) {
	m.lastExpand = q.Expand
	var matched []map[string]any
	for _, row := range m.sorted(q.Spec.Entity) {
		if q.Filter != nil && !filter.Eval(q.Filter, row) {
			continue
		}
		matched = append(matched, row)
	}
	total := int64(len(matched))
	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[q.Offset:]
		}
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, total, nil
}

func (m *mockResourceRepo) Get(ctx context.Context, entity string, id int64, expand []string) (map[string]any, error) {
	m.lastExpand = expand
	row, ok := m.table(entity)[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: entity, ID: id}
	}
	return copyRow(row), nil
}

func (m *mockResourceRepo) Create(ctx context.Context, entity string, attrs map[string]any) (map[string]any, error) {
	row := copyRow(attrs)
	row["id"] = m.nextID
	m.table(entity)[m.nextID] = row
	m.nextID++
	return copyRow(row), nil
}

func (m *mockResourceRepo) Update(ctx context.Context, entity string, id int64, attrs map[string]any) (map[string]any, error) {
	row, ok := m.table(entity)[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: entity, ID: id}
	}
	for k, v := range attrs {
		row[k] = v
	}
	return copyRow(row), nil
}

func (m *mockResourceRepo) Delete(ctx context.Context, entity string, id int64) error {
	t := m.table(entity)
	if _, ok := t[id]; !ok {
		return &domain.NotFoundError{Entity: entity, ID: id}
	}
	delete(t, id)
	return nil
}

func (m *mockResourceRepo) BulkCreate(ctx context.Context, entity string, items []map[string]any) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(items))
	for _, attrs := range items {
		row, err := m.Create(ctx, entity, attrs)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func (m *mockResourceRepo) BulkUpdate(ctx context.Context, entity string, items []repository.BulkItem) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		row, err := m.Update(ctx, entity, item.ID, item.Attrs)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func (m *mockResourceRepo) BulkDelete(ctx context.Context, entity string, ids []int64) (int64, error) {
	t := m.table(entity)
	var deleted int64
	for _, id := range ids {
		if _, ok := t[id]; ok {
			delete(t, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *mockResourceRepo) Exists(ctx context.Context, entity string, id int64) (bool, error) {
	_, ok := m.table(entity)[id]
	return ok, nil
}

func (m *mockResourceRepo) Count(ctx context.Context, entity string) (int64, error) {
	return int64(len(m.table(entity))), nil
}

// mockStructureRepo хранит структуры в памяти; связи parent разворачиваются
// обходом в том же порядке, что и рекурсивный CTE настоящего репозитория
type mockStructureRepo struct {
	structures map[int64]*domain.Structure
}

func newMockStructureRepo(items ...*domain.Structure) *mockStructureRepo {
	m := &mockStructureRepo{structures: make(map[int64]*domain.Structure)}
	for _, s := range items {
		m.structures[s.ID] = s
	}
	return m
}

func (m *mockStructureRepo) GetByID(ctx context.Context, id int64) (*domain.Structure, error) {
	s, ok := m.structures[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "Structure", ID: id}
	}
	c := *s
	return &c, nil
}

func (m *mockStructureRepo) childIDs(id int64) []int64 {
	var out []int64
	for _, s := range m.structures {
		if s.ParentID != nil && *s.ParentID == id {
			out = append(out, s.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *mockStructureRepo) GetTree(ctx context.Context, id int64) (*domain.Structure, error) {
	if _, ok := m.structures[id]; !ok {
		return nil, &domain.NotFoundError{Entity: "Structure", ID: id}
	}
	return m.tree(id), nil
}

func (m *mockStructureRepo) tree(id int64) *domain.Structure {
	node := *m.structures[id]
	node.Children = nil
	for _, childID := range m.childIDs(id) {
		node.Children = append(node.Children, *m.tree(childID))
	}
	return &node
}

func (m *mockStructureRepo) DescendantIDs(ctx context.Context, id int64) ([]int64, error) {
	var out []int64
	queue := m.childIDs(id)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		out = append(out, next)
		queue = append(queue, m.childIDs(next)...)
	}
	return out, nil
}

func (m *mockStructureRepo) IsDescendant(ctx context.Context, ancestorID, descendantID int64) (bool, error) {
	ids, _ := m.DescendantIDs(ctx, ancestorID)
	for _, id := range ids {
		if id == descendantID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStructureRepo) Subtree(ctx context.Context, rootID int64) ([]domain.Structure, error) {
	root, ok := m.structures[rootID]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "Structure", ID: rootID}
	}
	out := []domain.Structure{*root}
	ids, _ := m.DescendantIDs(ctx, rootID)
	for _, id := range ids {
		out = append(out, *m.structures[id])
	}
	return out, nil
}

func (m *mockStructureRepo) RecentMain(ctx context.Context, limit int) ([]domain.Structure, error) {
	var main []domain.Structure
	for _, s := range m.structures {
		if s.IsMain {
			main = append(main, *s)
		}
	}
	sort.Slice(main, func(i, j int) bool { return main[i].CreatedAt.After(main[j].CreatedAt) })
	if len(main) > limit {
		main = main[:limit]
	}
	return main, nil
}

// mockPositionRepo хранит должности, их детали и грейды в памяти.
// Если задано generic, Clone дублирует строку и в универсальное хранилище,
// как это происходит с общей базой в настоящих репозиториях
type mockPositionRepo struct {
	positions map[int64]*domain.Position
	grades    map[int64]*domain.Grade
	details   []domain.PositionDetail
	edges     *mockEdgeRepo
	generic   *mockResourceRepo
	nextID    int64
}

func newMockPositionRepo(edges *mockEdgeRepo, items ...*domain.Position) *mockPositionRepo {
	m := &mockPositionRepo{
		positions: make(map[int64]*domain.Position),
		grades:    make(map[int64]*domain.Grade),
		edges:     edges,
		nextID:    1,
	}
	for _, p := range items {
		m.positions[p.ID] = p
		if p.ID >= m.nextID {
			m.nextID = p.ID + 1
		}
	}
	return m
}

func (m *mockPositionRepo) addGrade(g *domain.Grade) {
	m.grades[g.ID] = g
}

func (m *mockPositionRepo) add(p *domain.Position) {
	m.positions[p.ID] = p
	if p.ID >= m.nextID {
		m.nextID = p.ID + 1
	}
}

func (m *mockPositionRepo) GetByID(ctx context.Context, id int64) (*domain.Position, error) {
	p, ok := m.positions[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "Position", ID: id}
	}
	c := *p
	return &c, nil
}

func (m *mockPositionRepo) GetByIDWithGrade(ctx context.Context, id int64) (*domain.Position, error) {
	p, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.GradeID != nil {
		p.Grade = m.grades[*p.GradeID]
	}
	return p, nil
}

func (m *mockPositionRepo) ListByStructure(ctx context.Context, structureID int64) ([]domain.Position, error) {
	var out []domain.Position
	for _, p := range m.positions {
		if p.StructureID == structureID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockPositionRepo) ListDetails(ctx context.Context, positionID int64) ([]domain.PositionDetail, error) {
	var out []domain.PositionDetail
	for _, d := range m.details {
		if d.PositionID == positionID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockPositionRepo) BulkUpdateCoordinates(ctx context.Context, updates []repository.CoordinateUpdate) (int64, error) {
	var affected int64
	for _, u := range updates {
		p, ok := m.positions[u.ID]
		if !ok {
			continue
		}
		p.PositionX = u.X
		p.PositionY = u.Y
		affected++
	}
	return affected, nil
}

func (m *mockPositionRepo) Clone(ctx context.Context, source *domain.Position, details []domain.PositionDetail, incoming *domain.OrganigramEdge) (*domain.Position, error) {
	clone := *source
	clone.ID = m.nextID
	m.nextID++
	clone.Title = source.Title + " (Copie)"
	clone.CreatedAt = time.Now()
	m.positions[clone.ID] = &clone
	for _, d := range details {
		d.ID = 0
		d.PositionID = clone.ID
		m.details = append(m.details, d)
	}
	if incoming != nil && m.edges != nil {
		copyEdge := *incoming
		copyEdge.ID = 0
		copyEdge.TargetID = clone.ID
		if err := m.edges.Create(ctx, &copyEdge); err != nil {
			return nil, err
		}
	}
	if m.generic != nil {
		m.generic.seed("position", clone.ID, positionRow(&clone))
	}
	c := clone
	return &c, nil
}

// positionRow переводит должность в строку универсального хранилища
func positionRow(p *domain.Position) map[string]any {
	row := map[string]any{
		"structure":  p.StructureID,
		"title":      p.Title,
		"is_manager": p.IsManager,
		"color":      p.Color,
		"position_x": p.PositionX,
		"position_y": p.PositionY,
	}
	if p.GradeID != nil {
		row["grade"] = *p.GradeID
	}
	if p.Level != nil {
		row["level"] = *p.Level
	}
	return row
}

// mockEdgeRepo хранит рёбра в памяти
type mockEdgeRepo struct {
	edges  map[int64]*domain.OrganigramEdge
	nextID int64
}

func newMockEdgeRepo(items ...*domain.OrganigramEdge) *mockEdgeRepo {
	m := &mockEdgeRepo{edges: make(map[int64]*domain.OrganigramEdge), nextID: 1}
	for _, e := range items {
		m.edges[e.ID] = e
		if e.ID >= m.nextID {
			m.nextID = e.ID + 1
		}
	}
	return m
}

func (m *mockEdgeRepo) GetByID(ctx context.Context, id int64) (*domain.OrganigramEdge, error) {
	e, ok := m.edges[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "OrganigramEdge", ID: id}
	}
	c := *e
	return &c, nil
}

func (m *mockEdgeRepo) Create(ctx context.Context, edge *domain.OrganigramEdge) error {
	edge.ID = m.nextID
	m.nextID++
	if edge.EdgeType == "" {
		edge.EdgeType = "smoothstep"
	}
	edge.CreatedAt = time.Now()
	c := *edge
	m.edges[edge.ID] = &c
	return nil
}

func (m *mockEdgeRepo) Update(ctx context.Context, edge *domain.OrganigramEdge) error {
	if _, ok := m.edges[edge.ID]; !ok {
		return &domain.NotFoundError{Entity: "OrganigramEdge", ID: edge.ID}
	}
	c := *edge
	m.edges[edge.ID] = &c
	return nil
}

func (m *mockEdgeRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.edges[id]; !ok {
		return &domain.NotFoundError{Entity: "OrganigramEdge", ID: id}
	}
	delete(m.edges, id)
	return nil
}

func (m *mockEdgeRepo) sorted() []*domain.OrganigramEdge {
	ids := make([]int64, 0, len(m.edges))
	for id := range m.edges {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*domain.OrganigramEdge, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.edges[id])
	}
	return out
}

func (m *mockEdgeRepo) ListByStructure(ctx context.Context, structureID int64) ([]domain.OrganigramEdge, error) {
	var out []domain.OrganigramEdge
	for _, e := range m.sorted() {
		if e.StructureID == structureID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *mockEdgeRepo) PositionEdges(ctx context.Context, structureID int64) ([]domain.OrganigramEdge, error) {
	var out []domain.OrganigramEdge
	for _, e := range m.sorted() {
		if e.StructureID == structureID &&
			e.SourceType == domain.NodeKindPosition && e.TargetType == domain.NodeKindPosition {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *mockEdgeRepo) IncomingEdge(ctx context.Context, structureID int64, target domain.NodeRef) (*domain.OrganigramEdge, error) {
	for _, e := range m.sorted() {
		if e.StructureID == structureID && e.Target().Equal(target) {
			c := *e
			return &c, nil
		}
	}
	return nil, nil
}

func (m *mockEdgeRepo) HasIncomingEdge(ctx context.Context, structureID int64, target domain.NodeRef, excludeEdgeID int64) (bool, error) {
	for _, e := range m.edges {
		if e.ID == excludeEdgeID {
			continue
		}
		if e.StructureID == structureID && e.Target().Equal(target) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockEdgeRepo) DeleteForNode(ctx context.Context, node domain.NodeRef) (int64, error) {
	var deleted int64
	for id, e := range m.edges {
		if e.Source().Equal(node) || e.Target().Equal(node) {
			delete(m.edges, id)
			deleted++
		}
	}
	return deleted, nil
}

// mockDiagramRepo хранит координаты диаграмм в памяти; generic, если задан,
// получает копию каждой строки, как с общей базой в настоящих репозиториях
type mockDiagramRepo struct {
	rows    map[int64]*domain.DiagramPosition
	generic *mockResourceRepo
	nextID  int64
}

func newMockDiagramRepo() *mockDiagramRepo {
	return &mockDiagramRepo{rows: make(map[int64]*domain.DiagramPosition), nextID: 1}
}

func (m *mockDiagramRepo) Find(ctx context.Context, node domain.NodeRef, mainStructureID int64) (*domain.DiagramPosition, error) {
	for _, row := range m.rows {
		if row.NodeType == node.Kind && row.NodeID == node.ID && row.MainStructureID == mainStructureID {
			c := *row
			return &c, nil
		}
	}
	return nil, nil
}

func (m *mockDiagramRepo) Upsert(ctx context.Context, row *domain.DiagramPosition) (bool, error) {
	existing, _ := m.Find(ctx, domain.NodeRef{Kind: row.NodeType, ID: row.NodeID}, row.MainStructureID)
	if existing != nil {
		existing.PositionX = row.PositionX
		existing.PositionY = row.PositionY
		m.rows[existing.ID] = existing
		*row = *existing
		m.sync(existing)
		return false, nil
	}
	row.ID = m.nextID
	m.nextID++
	c := *row
	m.rows[row.ID] = &c
	m.sync(row)
	return true, nil
}

func (m *mockDiagramRepo) sync(row *domain.DiagramPosition) {
	if m.generic == nil {
		return
	}
	m.generic.seed("diagram_position", row.ID, map[string]any{
		"node_type":      string(row.NodeType),
		"node_id":        row.NodeID,
		"main_structure": row.MainStructureID,
		"position_x":     row.PositionX,
		"position_y":     row.PositionY,
	})
}

func (m *mockDiagramRepo) UpsertMany(ctx context.Context, rows []domain.DiagramPosition) error {
	for i := range rows {
		if _, err := m.Upsert(ctx, &rows[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockDiagramRepo) DeleteForNode(ctx context.Context, node domain.NodeRef) (int64, error) {
	var deleted int64
	for id, row := range m.rows {
		if row.NodeType == node.Kind && row.NodeID == node.ID {
			delete(m.rows, id)
			deleted++
		}
	}
	return deleted, nil
}

// newTestResources собирает универсальный сервис на настоящем реестре
// и спецификациях фильтров поверх репозитория в памяти
func newTestResources(t *testing.T, repo repository.ResourceRepository) service.ResourceService {
	t.Helper()
	reg, err := meta.BuildRegistry()
	if err != nil {
		t.Fatalf("BuildRegistry: %v", err)
	}
	specs := make(map[string]*filter.Spec)
	for _, desc := range reg.Entities() {
		spec, err := filter.BuildSpec(reg, desc.Name, 3)
		if err != nil {
			t.Fatalf("BuildSpec(%s): %v", desc.Name, err)
		}
		specs[desc.Name] = spec
	}
	return service.NewResourceService(repo, reg, specs)
}

func int64ptr(v int64) *int64 { return &v }

func intptr(v int) *int { return &v }
