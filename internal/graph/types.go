package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-openapi/inflect"
	"github.com/graphql-go/graphql"

	"github.com/organigram-api/internal/domain"
	"github.com/organigram-api/internal/filter"
	"github.com/organigram-api/internal/meta"
)

// entityKey - служебный ключ строки, по которому объединение узнаёт, к какой
// сущности относится загруженная запись. Ключ выставляется только на строках,
// которые резолвер обобщённой ссылки загрузил сам, и наружу не сериализуется,
// потому что полей с таким именем в типах нет.
const entityKey = "__entity"

// outputType возвращает выходной тип сущности: интерфейс для полиморфной
// базы, объект для всех остальных
func (b *Builder) outputType(entity string) graphql.Output {
	if desc := b.reg.MustDescribe(entity); desc.Polymorphic != nil {
		return b.interfaceFor(entity)
	}
	return b.objectFor(entity)
}

// objectFor возвращает (создавая при первом обращении) объектный тип
// сущности. Тип кэшируется до вычисления полей, поэтому взаимные ссылки
// сущностей друг на друга не зацикливают построение.
func (b *Builder) objectFor(entity string) *graphql.Object {
	if obj, ok := b.objects[entity]; ok {
		return obj
	}
	desc := b.reg.MustDescribe(entity)
	cfg := graphql.ObjectConfig{
		Name: desc.GraphName,
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return b.outputFields(desc)
		}),
	}
	if base, ok := b.variantOf[entity]; ok {
		cfg.Interfaces = []*graphql.Interface{b.interfaceFor(base)}
	}
	obj := graphql.NewObject(cfg)
	b.objects[entity] = obj
	return obj
}

// interfaceFor возвращает интерфейсный тип полиморфной базы. Конкретный
// вариант выбирается по значению дискриминатора в строке, так что запрос по
// базовой сущности всегда разрешается в наиболее специфичный тип.
func (b *Builder) interfaceFor(entity string) *graphql.Interface {
	if it, ok := b.interfaces[entity]; ok {
		return it
	}
	desc := b.reg.MustDescribe(entity)
	poly := desc.Polymorphic
	it := graphql.NewInterface(graphql.InterfaceConfig{
		Name: desc.GraphName,
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return b.outputFields(desc)
		}),
		ResolveType: func(p graphql.ResolveTypeParams) *graphql.Object {
			row, ok := p.Value.(map[string]any)
			if !ok {
				return nil
			}
			value, _ := row[poly.Discriminator].(string)
			if variant, ok := poly.VariantFor(value); ok {
				return b.objectFor(variant)
			}
			return nil
		},
	})
	b.interfaces[entity] = it
	return it
}

// unionFor возвращает тип-объединение для обобщённых ссылок. Принадлежность
// строки к члену объединения определяется по служебному ключу, который
// резолвер ссылки выставил при загрузке.
func (b *Builder) unionFor(name string) *graphql.Union {
	if u, ok := b.unions[name]; ok {
		return u
	}
	un, ok := b.reg.Union(name)
	if !ok {
		panic(fmt.Sprintf("graph: unknown union %s", name))
	}
	members := make([]*graphql.Object, 0, len(un.Members))
	for _, m := range un.Members {
		members = append(members, b.objectFor(m))
	}
	u := graphql.NewUnion(graphql.UnionConfig{
		Name:  inflect.Camelize(name),
		Types: members,
		ResolveType: func(p graphql.ResolveTypeParams) *graphql.Object {
			row, ok := p.Value.(map[string]any)
			if !ok {
				return nil
			}
			entity, _ := row[entityKey].(string)
			if obj, ok := b.objects[entity]; ok {
				return obj
			}
			return nil
		},
	})
	b.unions[name] = u
	return u
}

// outputFields собирает поля выходного типа: хранимые поля по дескриптору,
// связанные объекты вместо сырых id внешних ключей, вычисляемые поля,
// обобщённые ссылки и обратные связи
func (b *Builder) outputFields(desc *meta.EntityDescriptor) graphql.Fields {
	fields := graphql.Fields{}
	for _, fd := range desc.Fields {
		switch {
		case fd.PrimaryKey:
			fields[fd.Name] = &graphql.Field{Type: graphql.NewNonNull(graphql.Int)}
		case fd.Kind == meta.KindForeignKey:
			fields[fd.Name] = &graphql.Field{
				Type:    b.outputType(fd.Target),
				Resolve: b.resolveRelated(fd),
			}
		default:
			fields[fd.Name] = &graphql.Field{Type: scalarFor(fd.Kind)}
		}
	}
	for _, cf := range desc.Computed {
		fields[cf.Name] = &graphql.Field{Type: graphql.String}
	}
	for _, g := range desc.Generics {
		fields[g.Name] = &graphql.Field{
			Type:    b.unionFor(g.Union),
			Resolve: b.resolveGeneric(g),
		}
	}
	pk := desc.PrimaryKey()
	for _, rev := range desc.Reverse {
		fields[rev.Name] = &graphql.Field{
			Type:    graphql.NewList(b.outputType(rev.Target)),
			Resolve: b.resolveReverse(pk.Name, rev),
		}
	}
	return fields
}

// resolveRelated разворачивает значение внешнего ключа в строку целевой
// сущности. Если связь уже была предзагружена, строка используется как есть;
// отсутствующая запись даёт null, а не ошибку.
func (b *Builder) resolveRelated(fd *meta.FieldDescriptor) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		row, ok := p.Source.(map[string]any)
		if !ok {
			return nil, nil
		}
		switch v := row[fd.Name].(type) {
		case nil:
			return nil, nil
		case map[string]any:
			return v, nil
		default:
			id, err := toID(v)
			if err != nil {
				return nil, nil
			}
			return b.fetchRow(p.Context, fd.Target, id)
		}
	}
}

// resolveGeneric загружает запись по паре (тип, id) и помечает её служебным
// ключом, чтобы объединение могло выбрать конкретный тип
func (b *Builder) resolveGeneric(g *meta.GenericRelation) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		row, ok := p.Source.(map[string]any)
		if !ok {
			return nil, nil
		}
		kind, _ := row[g.TypeField].(string)
		member, ok := b.reg.UnionMember(g.Union, kind)
		if !ok {
			return nil, nil
		}
		id, err := toID(row[g.IDField])
		if err != nil {
			return nil, nil
		}
		fetched, err := b.fetchRow(p.Context, member.Name, id)
		if err != nil || fetched == nil {
			return nil, err
		}
		loaded := fetched.(map[string]any)
		loaded[entityKey] = member.Name
		return loaded, nil
	}
}

// resolveReverse загружает строки целевой сущности, у которых внешний ключ
// указывает на текущую запись. Фильтр собирается по спецификации целевой
// сущности, поэтому запрос проходит тем же путём, что и обычный список.
func (b *Builder) resolveReverse(pkName string, rev *meta.ReverseRelation) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		row, ok := p.Source.(map[string]any)
		if !ok {
			return nil, nil
		}
		id, err := toID(row[pkName])
		if err != nil {
			return nil, nil
		}
		spec, ok := b.specs[rev.Target]
		if !ok {
			return nil, fmt.Errorf("no filter spec registered for entity %s", rev.Target)
		}
		f, _, err := spec.Lookup(rev.TargetFK)
		if err != nil {
			return nil, err
		}
		req := &filter.Request{Leaves: []filter.Leaf{{Field: f, Op: filter.OpExact, Value: id}}}
		return b.store.ListFiltered(p.Context, rev.Target, req, "")
	}
}

// fetchRow загружает строку сущности, превращая "не найдено" в null
func (b *Builder) fetchRow(ctx context.Context, entity string, id int64) (any, error) {
	row, err := b.store.Retrieve(ctx, entity, id, "")
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

// pageType возвращает тип страницы списка: сводка пагинации плюс строки
func (b *Builder) pageType(desc *meta.EntityDescriptor) *graphql.Object {
	if obj, ok := b.pages[desc.Name]; ok {
		return obj
	}
	obj := graphql.NewObject(graphql.ObjectConfig{
		Name: desc.GraphName + "Page",
		Fields: graphql.Fields{
			"page_info": &graphql.Field{Type: graphql.NewNonNull(b.pageInfoType())},
			"results":   &graphql.Field{Type: graphql.NewList(b.outputType(desc.Name))},
		},
	})
	b.pages[desc.Name] = obj
	return obj
}

// pageInfoType возвращает общий для всех списков тип сводки пагинации
func (b *Builder) pageInfoType() *graphql.Object {
	if b.pageInfo == nil {
		b.pageInfo = graphql.NewObject(graphql.ObjectConfig{
			Name: "PageInfo",
			Fields: graphql.Fields{
				"total_count":       &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
				"page_size":         &graphql.Field{Type: graphql.Int},
				"current_page":      &graphql.Field{Type: graphql.Int},
				"total_pages":       &graphql.Field{Type: graphql.Int},
				"has_next_page":     &graphql.Field{Type: graphql.Boolean},
				"has_previous_page": &graphql.Field{Type: graphql.Boolean},
			},
		})
	}
	return b.pageInfo
}

// scalarFor сопоставляет вид поля скалярному типу GraphQL
func scalarFor(kind meta.FieldKind) *graphql.Scalar {
	switch kind {
	case meta.KindInteger, meta.KindForeignKey:
		return graphql.Int
	case meta.KindFloat:
		return graphql.Float
	case meta.KindBool:
		return graphql.Boolean
	case meta.KindDate, meta.KindDateTime:
		return graphql.DateTime
	default:
		return graphql.String
	}
}

// toID приводит значение первичного или внешнего ключа к int64
func toID(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("value %v is not an id", v)
	}
}
