package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/organigram-api/internal/domain"
	"github.com/organigram-api/internal/dto"
	"github.com/organigram-api/internal/filter"
	"github.com/organigram-api/internal/meta"
	"github.com/organigram-api/internal/repository"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	expandDepth     = 3
)

// ResourceService - универсальная бизнес-логика зарегистрированных сущностей:
// списки с фильтрацией и пагинацией, CRUD и массовые операции. Конкретная
// сущность задаётся именем из реестра.
type ResourceService interface {
	Describe(entity string) (*meta.EntityDescriptor, error)
	Spec(entity string) (*filter.Spec, error)
	List(ctx context.Context, entity string, params url.Values) (*dto.ListResult, error)
	ListFiltered(ctx context.Context, entity string, req *filter.Request, search string) ([]map[string]any, error)
	Retrieve(ctx context.Context, entity string, id int64, expand string) (map[string]any, error)
	Create(ctx context.Context, entity string, payload map[string]any) (map[string]any, error)
	Update(ctx context.Context, entity string, id int64, payload map[string]any, partial bool) (map[string]any, error)
	Delete(ctx context.Context, entity string, id int64) error
	BulkCreate(ctx context.Context, entity string, items []map[string]any) ([]map[string]any, error)
	BulkUpdate(ctx context.Context, entity string, items []map[string]any) ([]map[string]any, error)
	BulkDelete(ctx context.Context, entity string, ids []int64) (int64, error)
}

type resourceService struct {
	repo  repository.ResourceRepository
	reg   *meta.Registry
	specs map[string]*filter.Spec
}

// NewResourceService создаёт новый экземпляр сервиса
func NewResourceService(repo repository.ResourceRepository, reg *meta.Registry, specs map[string]*filter.Spec) ResourceService {
	return &resourceService{repo: repo, reg: reg, specs: specs}
}

func (s *resourceService) Describe(entity string) (*meta.EntityDescriptor, error) {
	return s.reg.Describe(entity)
}

func (s *resourceService) Spec(entity string) (*filter.Spec, error) {
	spec, ok := s.specs[entity]
	if !ok {
		return nil, fmt.Errorf("no filter spec registered for entity %s", entity)
	}
	return spec, nil
}

func (s *resourceService) List(ctx context.Context, entity string, params url.Values) (*dto.ListResult, error) {
	spec, err := s.Spec(entity)
	if err != nil {
		return nil, err
	}
	req, err := filter.ParseQuery(spec, params)
	if err != nil {
		return nil, err
	}
	page, err := parsePage(params)
	if err != nil {
		return nil, err
	}

	q := repository.ListQuery{
		Spec:   spec,
		Filter: req,
		Search: strings.TrimSpace(params.Get("search")),
		Expand: s.expandPaths(entity, params.Get("expand")),
	}
	for _, key := range strings.Split(params.Get("ordering"), ",") {
		if key = strings.TrimSpace(key); key != "" {
			q.Ordering = append(q.Ordering, key)
		}
	}
	if !page.All {
		q.Offset = int((page.Page - 1) * page.PageSize)
		q.Limit = int(page.PageSize)
	}

	rows, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := s.decorate(ctx, entity, rows); err != nil {
		return nil, err
	}

	res := &dto.ListResult{Count: total, Results: rows, CurrentPage: 1, TotalPages: 1}
	if page.All {
		return res, nil
	}
	res.CurrentPage = page.Page
	res.TotalPages = (total + page.PageSize - 1) / page.PageSize
	if res.TotalPages == 0 {
		res.TotalPages = 1
	}
	res.HasNext = page.Page < res.TotalPages
	res.HasPrev = page.Page > 1
	return res, nil
}

// ListFiltered возвращает все строки, удовлетворяющие готовому запросу
// фильтрации, без пагинации; используется слоем GraphQL
func (s *resourceService) ListFiltered(ctx context.Context, entity string, req *filter.Request, search string) ([]map[string]any, error) {
	spec, err := s.Spec(entity)
	if err != nil {
		return nil, err
	}
	rows, _, err := s.repo.List(ctx, repository.ListQuery{Spec: spec, Filter: req, Search: search})
	if err != nil {
		return nil, err
	}
	if err := s.decorate(ctx, entity, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *resourceService) Retrieve(ctx context.Context, entity string, id int64, expand string) (map[string]any, error) {
	row, err := s.repo.Get(ctx, entity, id, s.expandPaths(entity, expand))
	if err != nil {
		return nil, err
	}
	if err := s.decorate(ctx, entity, []map[string]any{row}); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *resourceService) Create(ctx context.Context, entity string, payload map[string]any) (map[string]any, error) {
	desc, err := s.reg.Describe(entity)
	if err != nil {
		return nil, err
	}
	if err := checkRequired(desc, payload); err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, desc, payload); err != nil {
		return nil, err
	}
	row, err := s.repo.Create(ctx, entity, payload)
	if err != nil {
		return nil, err
	}
	if err := s.decorate(ctx, entity, []map[string]any{row}); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *resourceService) Update(ctx context.Context, entity string, id int64, payload map[string]any, partial bool) (map[string]any, error) {
	desc, err := s.reg.Describe(entity)
	if err != nil {
		return nil, err
	}
	if !partial {
		if err := checkRequired(desc, payload); err != nil {
			return nil, err
		}
	}
	if err := s.checkReferences(ctx, desc, payload); err != nil {
		return nil, err
	}
	row, err := s.repo.Update(ctx, entity, id, payload)
	if err != nil {
		return nil, err
	}
	if err := s.decorate(ctx, entity, []map[string]any{row}); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *resourceService) Delete(ctx context.Context, entity string, id int64) error {
	return s.repo.Delete(ctx, entity, id)
}

func (s *resourceService) BulkCreate(ctx context.Context, entity string, items []map[string]any) ([]map[string]any, error) {
	desc, err := s.reg.Describe(entity)
	if err != nil {
		return nil, err
	}
	for i, item := range items {
		if err := checkRequired(desc, item); err != nil {
			return nil, domain.NewValidationError("item %d: %v", i+1, err)
		}
		if err := s.checkReferences(ctx, desc, item); err != nil {
			return nil, err
		}
	}
	rows, err := s.repo.BulkCreate(ctx, entity, items)
	if err != nil {
		return nil, err
	}
	if err := s.decorate(ctx, entity, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *resourceService) BulkUpdate(ctx context.Context, entity string, items []map[string]any) ([]map[string]any, error) {
	desc, err := s.reg.Describe(entity)
	if err != nil {
		return nil, err
	}
	updates := make([]repository.BulkItem, 0, len(items))
	for i, item := range items {
		raw, ok := item["id"]
		if !ok {
			return nil, domain.NewValidationError("item %d: id is required", i+1)
		}
		id, err := toRefID(raw)
		if err != nil {
			return nil, domain.NewValidationError("item %d: id must be an integer", i+1)
		}
		attrs := make(map[string]any, len(item))
		for k, v := range item {
			if k != "id" {
				attrs[k] = v
			}
		}
		if err := s.checkReferences(ctx, desc, attrs); err != nil {
			return nil, err
		}
		updates = append(updates, repository.BulkItem{ID: id, Attrs: attrs})
	}
	rows, err := s.repo.BulkUpdate(ctx, entity, updates)
	if err != nil {
		return nil, err
	}
	if err := s.decorate(ctx, entity, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *resourceService) BulkDelete(ctx context.Context, entity string, ids []int64) (int64, error) {
	return s.repo.BulkDelete(ctx, entity, ids)
}

// decorate добавляет строкам вычисляемые поля сущности
func (s *resourceService) decorate(ctx context.Context, entity string, rows []map[string]any) error {
	desc, err := s.reg.Describe(entity)
	if err != nil {
		return err
	}
	if len(desc.Computed) == 0 {
		return nil
	}
	fetch := func(name string, id int64) (map[string]any, error) {
		return s.repo.Get(ctx, name, id, nil)
	}
	for _, row := range rows {
		for _, cf := range desc.Computed {
			v, err := cf.Resolve(row, fetch)
			if err != nil {
				return err
			}
			row[cf.Name] = v
		}
	}
	return nil
}

// expandPaths сверяет запрошенные пути раскрытия с известными путями
// внешних ключей; непригодные пути молча отбрасываются
func (s *resourceService) expandPaths(entity, expand string) []string {
	if strings.TrimSpace(expand) == "" {
		return nil
	}
	known := make(map[string]bool)
	for _, p := range s.reg.ForeignKeyPaths(entity, expandDepth) {
		known[p] = true
	}
	var paths []string
	for _, p := range strings.Split(expand, ",") {
		if p = strings.TrimSpace(p); known[p] {
			paths = append(paths, p)
		}
	}
	return paths
}

// checkReferences проверяет, что все переданные внешние ключи и обобщённые
// ссылки указывают на существующие записи
func (s *resourceService) checkReferences(ctx context.Context, desc *meta.EntityDescriptor, payload map[string]any) error {
	for _, f := range desc.ForeignKeys() {
		raw, ok := payload[f.Name]
		if !ok || raw == nil {
			continue
		}
		id, err := toRefID(raw)
		if err != nil {
			return domain.NewValidationError("field %s must be an id", f.Name)
		}
		target, err := s.reg.Describe(f.Target)
		if err != nil {
			return err
		}
		exists, err := s.repo.Exists(ctx, f.Target, id)
		if err != nil {
			return err
		}
		if !exists {
			return &domain.ReferenceError{Entity: target.GraphName, ID: id}
		}
	}
	for _, g := range desc.Generics {
		rawKind, hasKind := payload[g.TypeField]
		rawID, hasID := payload[g.IDField]
		if !hasKind || !hasID || rawKind == nil || rawID == nil {
			continue
		}
		kind, _ := rawKind.(string)
		member, ok := s.reg.UnionMember(g.Union, kind)
		if !ok {
			return domain.NewValidationError("field %s must be one of the %s kinds", g.TypeField, g.Union)
		}
		id, err := toRefID(rawID)
		if err != nil {
			return domain.NewValidationError("field %s must be an id", g.IDField)
		}
		exists, err := s.repo.Exists(ctx, member.Name, id)
		if err != nil {
			return err
		}
		if !exists {
			return &domain.ReferenceError{Entity: member.GraphName, ID: id}
		}
	}
	return nil
}

// checkRequired проверяет наличие и непустоту обязательных полей
func checkRequired(desc *meta.EntityDescriptor, payload map[string]any) error {
	for _, f := range desc.Fields {
		if !f.Required {
			continue
		}
		v, ok := payload[f.Name]
		if !ok || v == nil {
			return domain.NewValidationError("field %s is required", f.Name)
		}
		if str, isStr := v.(string); isStr && strings.TrimSpace(str) == "" {
			return domain.NewValidationError("field %s may not be blank", f.Name)
		}
	}
	return nil
}

// toRefID приводит значение внешнего ключа из JSON к числовому id
func toRefID(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("not an integer: %v", v)
		}
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported id type %T", raw)
	}
}

// parsePage разбирает параметры пагинации списка
func parsePage(params url.Values) (dto.PageQuery, error) {
	q := dto.PageQuery{Page: 1, PageSize: defaultPageSize}
	if v := params.Get("all"); v != "" {
		q.All = v == "true" || v == "1"
	}
	if v := params.Get("page"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			return q, domain.NewValidationError("page must be a positive integer")
		}
		q.Page = n
	}
	if v := params.Get("page_size"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			return q, domain.NewValidationError("page_size must be a positive integer")
		}
		if n > maxPageSize {
			n = maxPageSize
		}
		q.PageSize = n
	}
	return q, nil
}
