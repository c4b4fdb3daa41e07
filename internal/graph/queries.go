package graph

import (
	"errors"

	"github.com/go-openapi/inflect"
	"github.com/graphql-go/graphql"

	"github.com/organigram-api/internal/domain"
	"github.com/organigram-api/internal/filter"
	"github.com/organigram-api/internal/meta"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// queryFields собирает корневые запросы: для каждой сущности поле списка
// <entity>List и поле одной записи <entity>(id)
func (b *Builder) queryFields() graphql.Fields {
	fields := graphql.Fields{}
	for _, desc := range b.reg.Entities() {
		base := inflect.CamelizeDownFirst(desc.Name)
		fields[base] = b.detailField(desc)
		fields[base+"List"] = b.listField(desc)
	}
	return fields
}

// detailField возвращает запрос одной записи по id. Отсутствующая запись
// даёт null; для полиморфной базы строка разрешается в конкретный вариант.
func (b *Builder) detailField(desc *meta.EntityDescriptor) *graphql.Field {
	return &graphql.Field{
		Type: b.outputType(desc.Name),
		Args: graphql.FieldConfigArgument{
			"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
		},
		Resolve: func(p graphql.ResolveParams) (any, error) {
			id, ok := p.Args["id"].(int)
			if !ok {
				return nil, nil
			}
			row, err := b.store.Retrieve(p.Context, desc.Name, int64(id), "")
			if errors.Is(err, domain.ErrNotFound) {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			return row, nil
		},
	}
}

// listField возвращает запрос списка: фильтр, поиск, сортировка и страница.
// Фильтр и поиск выполняются хранилищем, сортировка и пагинация - поверх
// выбранных строк, потому что порядок может опираться на вычисляемые поля.
func (b *Builder) listField(desc *meta.EntityDescriptor) *graphql.Field {
	return &graphql.Field{
		Type: graphql.NewNonNull(b.pageType(desc)),
		Args: graphql.FieldConfigArgument{
			"filter":    &graphql.ArgumentConfig{Type: b.filterInput(desc)},
			"search":    &graphql.ArgumentConfig{Type: graphql.String},
			"order_by":  &graphql.ArgumentConfig{Type: graphql.NewList(graphql.NewNonNull(b.orderByInput()))},
			"page":      &graphql.ArgumentConfig{Type: graphql.Int},
			"page_size": &graphql.ArgumentConfig{Type: graphql.Int},
			"all":       &graphql.ArgumentConfig{Type: graphql.Boolean},
		},
		Resolve: b.resolveList(desc),
	}
}

func (b *Builder) resolveList(desc *meta.EntityDescriptor) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		req := &filter.Request{}
		if raw, ok := p.Args["filter"].(map[string]any); ok {
			parsed, err := filter.ParseMap(b.specs[desc.Name], raw)
			if err != nil {
				return nil, err
			}
			req = parsed
		}
		search, _ := p.Args["search"].(string)
		rows, err := b.store.ListFiltered(p.Context, desc.Name, req, search)
		if err != nil {
			return nil, err
		}
		keys, err := orderKeys(p.Args["order_by"])
		if err != nil {
			return nil, err
		}
		sortRows(rows, keys)
		return paginate(rows, p.Args), nil
	}
}

// paginate режет строки на запрошенную страницу и собирает конверт со
// сводкой. all=true отключает пагинацию и возвращает всё одной страницей.
func paginate(rows []map[string]any, args map[string]any) map[string]any {
	total := len(rows)
	info := map[string]any{
		"total_count":       total,
		"page_size":         total,
		"current_page":      1,
		"total_pages":       1,
		"has_next_page":     false,
		"has_previous_page": false,
	}
	if all, _ := args["all"].(bool); all {
		return map[string]any{"page_info": info, "results": rows}
	}

	page := 1
	if v, ok := args["page"].(int); ok && v > 0 {
		page = v
	}
	size := defaultPageSize
	if v, ok := args["page_size"].(int); ok && v > 0 {
		size = v
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	totalPages := (total + size - 1) / size
	if totalPages == 0 {
		totalPages = 1
	}
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	info["page_size"] = size
	info["current_page"] = page
	info["total_pages"] = totalPages
	info["has_next_page"] = page < totalPages
	info["has_previous_page"] = page > 1
	return map[string]any{"page_info": info, "results": rows[start:end]}
}
