package graph

import (
	"github.com/graphql-go/graphql"

	"github.com/organigram-api/internal/filter"
	"github.com/organigram-api/internal/meta"
)

// createInput возвращает входной тип создания: все изменяемые поля,
// обязательные помечены NonNull
func (b *Builder) createInput(desc *meta.EntityDescriptor) *graphql.InputObject {
	if in, ok := b.creates[desc.Name]; ok {
		return in
	}
	in := graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   desc.GraphName + "CreateInput",
		Fields: writableFields(desc, true),
	})
	b.creates[desc.Name] = in
	return in
}

// updateInput возвращает входной тип обновления: те же поля, но все
// необязательные, потому что мутации обновления частичные
func (b *Builder) updateInput(desc *meta.EntityDescriptor) *graphql.InputObject {
	if in, ok := b.updates[desc.Name]; ok {
		return in
	}
	in := graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   desc.GraphName + "UpdateInput",
		Fields: writableFields(desc, false),
	})
	b.updates[desc.Name] = in
	return in
}

// writableFields собирает входные поля по дескриптору. Автоматические поля
// и первичный ключ клиенту недоступны; внешние ключи принимаются как id.
func writableFields(desc *meta.EntityDescriptor, markRequired bool) graphql.InputObjectConfigFieldMap {
	fields := graphql.InputObjectConfigFieldMap{}
	for _, fd := range desc.Fields {
		if fd.PrimaryKey || fd.AutoManaged {
			continue
		}
		var t graphql.Input = inputScalarFor(fd.Kind)
		if markRequired && fd.Required {
			t = graphql.NewNonNull(t)
		}
		fields[fd.Name] = &graphql.InputObjectFieldConfig{Type: t}
	}
	return fields
}

// filterInput возвращает входной тип фильтра сущности. Поля генерируются из
// спецификации фильтрации в компактной форме: точное сравнение без суффикса,
// остальные операторы с суффиксом (title_icontains, grade_id_in). Ключи,
// проигравшие коллизию компактных имён, пропускаются: их канонической формой
// всё равно владеет более длинный путь. Поля AND, OR и NOT ссылаются на сам
// тип фильтра, поэтому набор полей вычисляется отложенно.
func (b *Builder) filterInput(desc *meta.EntityDescriptor) *graphql.InputObject {
	if in, ok := b.filters[desc.Name]; ok {
		return in
	}
	spec := b.specs[desc.Name]
	var in *graphql.InputObject
	in = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: desc.GraphName + "Filter",
		Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
			fields := graphql.InputObjectConfigFieldMap{}
			for _, key := range spec.Keys {
				f := spec.Fields[key]
				flat := filter.CompactKey(key, filter.OpExact)
				if winner, _, err := spec.LookupCompact(flat); err != nil || winner.Key != key {
					continue
				}
				for _, op := range f.Ops {
					fields[filter.CompactKey(key, op)] = &graphql.InputObjectFieldConfig{
						Type: filterArgType(f, op),
					}
				}
			}
			fields["AND"] = &graphql.InputObjectFieldConfig{Type: graphql.NewList(in)}
			fields["OR"] = &graphql.InputObjectFieldConfig{Type: graphql.NewList(in)}
			fields["NOT"] = &graphql.InputObjectFieldConfig{Type: in}
			return fields
		}),
	})
	b.filters[desc.Name] = in
	return in
}

// filterArgType возвращает тип значения фильтра для пары поле-оператор
func filterArgType(f *filter.Field, op string) graphql.Input {
	switch op {
	case filter.OpIsNull:
		return graphql.Boolean
	case filter.OpIn:
		return graphql.NewList(inputScalarFor(f.Kind))
	case filter.OpYear, filter.OpYearGt, filter.OpYearLt, filter.OpYearGte, filter.OpYearLte:
		return graphql.Int
	case filter.OpDate:
		return graphql.String
	default:
		return inputScalarFor(f.Kind)
	}
}

// inputScalarFor сопоставляет вид поля входному скаляру. Дата и время
// принимаются строками и разбираются при применении фильтра или записи.
func inputScalarFor(kind meta.FieldKind) *graphql.Scalar {
	switch kind {
	case meta.KindInteger, meta.KindForeignKey:
		return graphql.Int
	case meta.KindFloat:
		return graphql.Float
	case meta.KindBool:
		return graphql.Boolean
	default:
		return graphql.String
	}
}

// orderByInput возвращает общий входной тип ключа сортировки
func (b *Builder) orderByInput() *graphql.InputObject {
	if b.orderBy == nil {
		b.orderBy = graphql.NewInputObject(graphql.InputObjectConfig{
			Name: "OrderByInput",
			Fields: graphql.InputObjectConfigFieldMap{
				"field":     &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
				"direction": &graphql.InputObjectFieldConfig{Type: graphql.String, DefaultValue: "asc"},
			},
		})
	}
	return b.orderBy
}

// bulkUpdateInput возвращает входной тип элемента пакетного обновления
func (b *Builder) bulkUpdateInput(desc *meta.EntityDescriptor) *graphql.InputObject {
	if in, ok := b.bulkInputs[desc.Name]; ok {
		return in
	}
	in := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: desc.GraphName + "BulkUpdateInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"id":    &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Int)},
			"input": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(b.updateInput(desc))},
		},
	})
	b.bulkInputs[desc.Name] = in
	return in
}
