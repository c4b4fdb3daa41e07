// Package graph синтезирует GraphQL-схему по реестру сущностей: для каждого
// дескриптора генерируются выходной тип, входные типы создания/обновления,
// тип фильтра с компактными ключами и полный набор запросов и мутаций.
// Схема строится один раз при старте и далее только читается.
package graph

import (
	"context"

	"github.com/graphql-go/graphql"

	"github.com/organigram-api/internal/filter"
	"github.com/organigram-api/internal/meta"
)

// Store - операции над данными, которые нужны резолверам схемы.
// Им удовлетворяет service.ResourceService.
type Store interface {
	ListFiltered(ctx context.Context, entity string, req *filter.Request, search string) ([]map[string]any, error)
	Retrieve(ctx context.Context, entity string, id int64, expand string) (map[string]any, error)
	Create(ctx context.Context, entity string, payload map[string]any) (map[string]any, error)
	Update(ctx context.Context, entity string, id int64, payload map[string]any, partial bool) (map[string]any, error)
	Delete(ctx context.Context, entity string, id int64) error
	BulkCreate(ctx context.Context, entity string, items []map[string]any) ([]map[string]any, error)
	BulkDelete(ctx context.Context, entity string, ids []int64) (int64, error)
}

// Builder собирает GraphQL-типы по метаданным реестра. Типы создаются в два
// прохода: сначала для каждой сущности регистрируется именованный тип с
// отложенным (thunk) набором полей, затем graphql-go вычисляет поля, когда
// все типы уже существуют. Так разрешаются циклические ссылки между
// сущностями без заглушек в самих дескрипторах.
type Builder struct {
	reg   *meta.Registry
	specs map[string]*filter.Spec
	store Store

	objects    map[string]*graphql.Object
	interfaces map[string]*graphql.Interface
	unions     map[string]*graphql.Union
	pages      map[string]*graphql.Object
	payloads   map[string]*graphql.Object
	bulks      map[string]*graphql.Object
	creates    map[string]*graphql.InputObject
	updates    map[string]*graphql.InputObject
	filters    map[string]*graphql.InputObject
	bulkInputs map[string]*graphql.InputObject

	// variantOf сопоставляет сущности-варианту её полиморфную базу
	variantOf map[string]string

	pageInfo *graphql.Object
	orderBy  *graphql.InputObject
}

// NewBuilder создаёт построитель схемы поверх реестра, спецификаций фильтров
// и хранилища
func NewBuilder(reg *meta.Registry, specs map[string]*filter.Spec, store Store) *Builder {
	b := &Builder{
		reg:        reg,
		specs:      specs,
		store:      store,
		objects:    make(map[string]*graphql.Object),
		interfaces: make(map[string]*graphql.Interface),
		unions:     make(map[string]*graphql.Union),
		pages:      make(map[string]*graphql.Object),
		payloads:   make(map[string]*graphql.Object),
		bulks:      make(map[string]*graphql.Object),
		creates:    make(map[string]*graphql.InputObject),
		updates:    make(map[string]*graphql.InputObject),
		filters:    make(map[string]*graphql.InputObject),
		bulkInputs: make(map[string]*graphql.InputObject),
		variantOf:  make(map[string]string),
	}
	for _, desc := range reg.Entities() {
		if desc.Polymorphic == nil {
			continue
		}
		for _, v := range desc.Polymorphic.Variants {
			b.variantOf[v.Entity] = desc.Name
		}
	}
	return b
}

// Schema строит итоговую схему: корневые Query и Mutation плюс явный список
// типов, чтобы варианты полиморфных сущностей попали в схему даже там, где на
// них никто не ссылается напрямую
func (b *Builder) Schema() (graphql.Schema, error) {
	for _, desc := range b.reg.Entities() {
		b.outputType(desc.Name)
	}

	query := graphql.NewObject(graphql.ObjectConfig{
		Name:   "Query",
		Fields: b.queryFields(),
	})
	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name:   "Mutation",
		Fields: b.mutationFields(),
	})

	types := make([]graphql.Type, 0, len(b.objects))
	for _, obj := range b.objects {
		types = append(types, obj)
	}
	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    query,
		Mutation: mutation,
		Types:    types,
	})
}

// NewSchema строит схему одним вызовом
func NewSchema(reg *meta.Registry, specs map[string]*filter.Spec, store Store) (graphql.Schema, error) {
	return NewBuilder(reg, specs, store).Schema()
}
