package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/graphql-go/graphql"

	"github.com/organigram-api/internal/domain"
	"github.com/organigram-api/internal/filter"
	"github.com/organigram-api/internal/meta"
)

// mockStore - хранилище в памяти для тестов схемы. Строки лежат по таблицам,
// как в базе: варианты полиморфной сущности делят таблицу с базой и
// отличаются значением дискриминатора. Фильтры применяются интерпретатором
// filter.Eval, вычисляемые поля - резолверами дескриптора.
type mockStore struct {
	reg    *meta.Registry
	tables map[string]map[int64]map[string]any
	nextID int64
}

func newMockStore(reg *meta.Registry) *mockStore {
	m := &mockStore{reg: reg, tables: make(map[string]map[int64]map[string]any)}
	for _, desc := range reg.Entities() {
		if _, ok := m.tables[desc.Table]; !ok {
			m.tables[desc.Table] = make(map[int64]map[string]any)
		}
	}
	return m
}

func (m *mockStore) seed(entity string, id int64, row map[string]any) {
	desc := m.reg.MustDescribe(entity)
	clone := cloneRow(row)
	clone["id"] = id
	if desc.Scope != nil {
		clone[desc.Scope.Field] = desc.Scope.Value
	}
	m.tables[desc.Table][id] = clone
	if id > m.nextID {
		m.nextID = id
	}
}

func (m *mockStore) count(entity string) int {
	desc := m.reg.MustDescribe(entity)
	n := 0
	for _, row := range m.tables[desc.Table] {
		if desc.Scope != nil && row[desc.Scope.Field] != desc.Scope.Value {
			continue
		}
		n++
	}
	return n
}

func (m *mockStore) ListFiltered(_ context.Context, entity string, req *filter.Request, search string) ([]map[string]any, error) {
	desc := m.reg.MustDescribe(entity)
	needle := strings.ToLower(strings.TrimSpace(search))
	rows := make([]map[string]any, 0)
	for _, row := range m.rowsOf(desc) {
		if !filter.Eval(req, row) {
			continue
		}
		if needle != "" && !matchesSearch(desc, row, needle) {
			continue
		}
		rows = append(rows, row)
	}
	m.decorate(desc, rows)
	return rows, nil
}

func (m *mockStore) Retrieve(_ context.Context, entity string, id int64, _ string) (map[string]any, error) {
	return m.get(entity, id)
}

func (m *mockStore) Create(_ context.Context, entity string, payload map[string]any) (map[string]any, error) {
	desc := m.reg.MustDescribe(entity)
	if err := m.checkRefs(desc, payload); err != nil {
		return nil, err
	}
	m.nextID++
	row := map[string]any{"id": m.nextID}
	for _, fd := range desc.Fields {
		if fd.PrimaryKey || fd.AutoManaged {
			continue
		}
		if v, ok := payload[fd.Name]; ok {
			row[fd.Name] = v
		}
	}
	if desc.Scope != nil {
		row[desc.Scope.Field] = desc.Scope.Value
	}
	m.tables[desc.Table][m.nextID] = row
	return m.get(entity, m.nextID)
}

func (m *mockStore) Update(_ context.Context, entity string, id int64, payload map[string]any, _ bool) (map[string]any, error) {
	desc := m.reg.MustDescribe(entity)
	row, ok := m.lookup(desc, id)
	if !ok {
		return nil, &domain.NotFoundError{Entity: desc.GraphName, ID: id}
	}
	if err := m.checkRefs(desc, payload); err != nil {
		return nil, err
	}
	for _, fd := range desc.Fields {
		if fd.PrimaryKey || fd.AutoManaged {
			continue
		}
		if v, ok := payload[fd.Name]; ok {
			row[fd.Name] = v
		}
	}
	return m.get(entity, id)
}

func (m *mockStore) Delete(_ context.Context, entity string, id int64) error {
	desc := m.reg.MustDescribe(entity)
	if _, ok := m.lookup(desc, id); !ok {
		return &domain.NotFoundError{Entity: desc.GraphName, ID: id}
	}
	delete(m.tables[desc.Table], id)
	return nil
}

// BulkCreate сначала проверяет ссылки всех строк и только потом вставляет,
// поэтому ошибка в любой строке оставляет хранилище нетронутым
func (m *mockStore) BulkCreate(ctx context.Context, entity string, items []map[string]any) ([]map[string]any, error) {
	desc := m.reg.MustDescribe(entity)
	for i, item := range items {
		if err := m.checkRefs(desc, item); err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
	}
	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		row, err := m.Create(ctx, entity, item)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (m *mockStore) BulkDelete(_ context.Context, entity string, ids []int64) (int64, error) {
	desc := m.reg.MustDescribe(entity)
	var count int64
	for _, id := range ids {
		if _, ok := m.lookup(desc, id); !ok {
			continue
		}
		delete(m.tables[desc.Table], id)
		count++
	}
	return count, nil
}

func (m *mockStore) lookup(desc *meta.EntityDescriptor, id int64) (map[string]any, bool) {
	row, ok := m.tables[desc.Table][id]
	if !ok {
		return nil, false
	}
	if desc.Scope != nil && row[desc.Scope.Field] != desc.Scope.Value {
		return nil, false
	}
	return row, true
}

func (m *mockStore) get(entity string, id int64) (map[string]any, error) {
	desc := m.reg.MustDescribe(entity)
	row, ok := m.lookup(desc, id)
	if !ok {
		return nil, &domain.NotFoundError{Entity: desc.GraphName, ID: id}
	}
	out := cloneRow(row)
	m.decorate(desc, []map[string]any{out})
	return out, nil
}

func (m *mockStore) rowsOf(desc *meta.EntityDescriptor) []map[string]any {
	out := make([]map[string]any, 0, len(m.tables[desc.Table]))
	for _, row := range m.tables[desc.Table] {
		if desc.Scope != nil && row[desc.Scope.Field] != desc.Scope.Value {
			continue
		}
		out = append(out, cloneRow(row))
	}
	sort.Slice(out, func(i, j int) bool {
		l, _ := toID(out[i]["id"])
		r, _ := toID(out[j]["id"])
		return l < r
	})
	return out
}

func (m *mockStore) decorate(desc *meta.EntityDescriptor, rows []map[string]any) {
	if len(desc.Computed) == 0 {
		return
	}
	fetch := func(entity string, id int64) (map[string]any, error) {
		return m.get(entity, id)
	}
	for _, row := range rows {
		for _, cf := range desc.Computed {
			if v, err := cf.Resolve(row, fetch); err == nil {
				row[cf.Name] = v
			}
		}
	}
}

func (m *mockStore) checkRefs(desc *meta.EntityDescriptor, payload map[string]any) error {
	for _, fd := range desc.ForeignKeys() {
		v, ok := payload[fd.Name]
		if !ok || v == nil {
			continue
		}
		id, err := toID(v)
		if err != nil {
			return domain.NewValidationError("field %s must be an id", fd.Name)
		}
		target := m.reg.MustDescribe(fd.Target)
		if _, ok := m.lookup(target, id); !ok {
			return &domain.ReferenceError{Entity: target.GraphName, ID: id}
		}
	}
	for _, g := range desc.Generics {
		kindRaw, ok := payload[g.TypeField]
		if !ok || kindRaw == nil {
			continue
		}
		kind, _ := kindRaw.(string)
		member, ok := m.reg.UnionMember(g.Union, kind)
		if !ok {
			return domain.NewValidationError("field %s must be one of the %s kinds", g.TypeField, g.Union)
		}
		idRaw, ok := payload[g.IDField]
		if !ok || idRaw == nil {
			continue
		}
		id, err := toID(idRaw)
		if err != nil {
			return domain.NewValidationError("field %s must be an id", g.IDField)
		}
		if _, ok := m.lookup(member, id); !ok {
			return &domain.ReferenceError{Entity: member.GraphName, ID: id}
		}
	}
	return nil
}

func matchesSearch(desc *meta.EntityDescriptor, row map[string]any, needle string) bool {
	for _, name := range desc.TextFields() {
		if s, ok := row[name].(string); ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

func cloneRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// graphFixture собирает реестр, спецификации фильтров, хранилище и схему
type graphFixture struct {
	store  *mockStore
	schema graphql.Schema
}

func newGraphFixture(t *testing.T) *graphFixture {
	t.Helper()
	reg, err := meta.BuildRegistry()
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	specs := make(map[string]*filter.Spec)
	for _, desc := range reg.Entities() {
		spec, err := filter.BuildSpec(reg, desc.Name, 3)
		if err != nil {
			t.Fatalf("build spec for %s: %v", desc.Name, err)
		}
		specs[desc.Name] = spec
	}
	store := newMockStore(reg)
	schema, err := NewSchema(reg, specs, store)
	if err != nil {
		t.Fatalf("build schema: %v", err)
	}
	return &graphFixture{store: store, schema: schema}
}

// seedOrg наполняет хранилище небольшой организацией: два подразделения,
// четыре должности с грейдами, детали, ребро и закешированная координата
func (f *graphFixture) seedOrg() {
	f.store.seed("grade", 1, map[string]any{"name": "Junior", "level": 1, "color": "#10B981"})
	f.store.seed("grade", 2, map[string]any{"name": "Senior", "level": 3, "color": "#F59E0B"})

	f.store.seed("structure", 1, map[string]any{"name": "Head Office", "is_main": true, "initial_node": false})
	f.store.seed("structure", 2, map[string]any{"name": "Branch", "is_main": false, "parent": int64(1)})

	f.store.seed("position", 10, map[string]any{
		"structure": int64(1), "title": "Director", "grade": int64(2),
		"is_manager": true, "color": "#3B82F6", "position_x": 0.0, "position_y": 0.0,
	})
	f.store.seed("position", 11, map[string]any{
		"structure": int64(1), "title": "Engineer", "grade": int64(1),
		"is_manager": false, "color": "#3B82F6", "position_x": 120.0, "position_y": 80.0,
	})
	f.store.seed("position", 12, map[string]any{
		"structure": int64(1), "title": "Analyst",
		"is_manager": false, "color": "#3B82F6", "position_x": 240.0, "position_y": 80.0,
	})
	f.store.seed("position", 20, map[string]any{
		"structure": int64(2), "title": "Branch Manager", "grade": int64(2),
		"is_manager": true, "color": "#3B82F6", "position_x": 0.0, "position_y": 0.0,
	})

	f.store.seed("task", 30, map[string]any{"position": int64(10), "description": "Approve budgets"})
	f.store.seed("mission", 31, map[string]any{"position": int64(10), "description": "Grow the company"})
	f.store.seed("competence", 32, map[string]any{"position": int64(11), "description": "Systems design"})

	f.store.seed("organigram_edge", 40, map[string]any{
		"structure": int64(1), "source_type": "position", "source_id": int64(10),
		"target_type": "position", "target_id": int64(11), "edge_type": "smoothstep",
	})
	f.store.seed("diagram_position", 50, map[string]any{
		"node_type": "position", "node_id": int64(10), "main_structure": int64(1),
		"position_x": 60.5, "position_y": 40.0,
	})
}

// exec выполняет запрос и требует отсутствия ошибок
func (f *graphFixture) exec(t *testing.T, query string) map[string]any {
	t.Helper()
	res := graphql.Do(graphql.Params{
		Schema:        f.schema,
		RequestString: query,
		Context:       context.Background(),
	})
	if len(res.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	data, ok := res.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected map data, got %T", res.Data)
	}
	return data
}

// execErr выполняет запрос и возвращает текст первой ошибки
func (f *graphFixture) execErr(t *testing.T, query string) string {
	t.Helper()
	res := graphql.Do(graphql.Params{
		Schema:        f.schema,
		RequestString: query,
		Context:       context.Background(),
	})
	if len(res.Errors) == 0 {
		t.Fatalf("expected an error, got data %v", res.Data)
	}
	return res.Errors[0].Message
}

func mapAt(t *testing.T, v any, key string) map[string]any {
	t.Helper()
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("expected map at %s, got %T", key, v)
	}
	inner, ok := m[key]
	if !ok {
		t.Fatalf("missing key %s in %v", key, m)
	}
	out, ok := inner.(map[string]any)
	if !ok {
		t.Fatalf("expected map under %s, got %T", key, inner)
	}
	return out
}

func listAt(t *testing.T, v any, key string) []any {
	t.Helper()
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("expected map at %s, got %T", key, v)
	}
	inner, ok := m[key].([]any)
	if !ok {
		t.Fatalf("expected list under %s, got %T", key, m[key])
	}
	return inner
}
