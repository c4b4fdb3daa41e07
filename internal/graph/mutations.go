package graph

import (
	"errors"
	"fmt"

	"github.com/graphql-go/graphql"

	"github.com/organigram-api/internal/domain"
	"github.com/organigram-api/internal/meta"
)

// mutationFields собирает корневые мутации: создание, обновление и удаление
// одной записи плюс пакетные варианты для каждой сущности
func (b *Builder) mutationFields() graphql.Fields {
	fields := graphql.Fields{}
	for _, desc := range b.reg.Entities() {
		n := desc.GraphName
		fields["create"+n] = b.createField(desc)
		fields["update"+n] = b.updateField(desc)
		fields["delete"+n] = b.deleteField(desc)
		fields["bulkCreate"+n] = b.bulkCreateField(desc)
		fields["bulkUpdate"+n] = b.bulkUpdateField(desc)
		fields["bulkDelete"+n] = b.bulkDeleteField(desc)
	}
	return fields
}

// payloadType возвращает тип результата одиночной мутации
func (b *Builder) payloadType(desc *meta.EntityDescriptor) *graphql.Object {
	if obj, ok := b.payloads[desc.Name]; ok {
		return obj
	}
	obj := graphql.NewObject(graphql.ObjectConfig{
		Name: desc.GraphName + "Payload",
		Fields: graphql.Fields{
			"success":  &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"instance": &graphql.Field{Type: b.outputType(desc.Name)},
		},
	})
	b.payloads[desc.Name] = obj
	return obj
}

// bulkPayloadType возвращает тип результата пакетной мутации
func (b *Builder) bulkPayloadType(desc *meta.EntityDescriptor) *graphql.Object {
	if obj, ok := b.bulks[desc.Name]; ok {
		return obj
	}
	obj := graphql.NewObject(graphql.ObjectConfig{
		Name: desc.GraphName + "BulkPayload",
		Fields: graphql.Fields{
			"success":   &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"count":     &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"instances": &graphql.Field{Type: graphql.NewList(b.outputType(desc.Name))},
		},
	})
	b.bulks[desc.Name] = obj
	return obj
}

func (b *Builder) createField(desc *meta.EntityDescriptor) *graphql.Field {
	return &graphql.Field{
		Type: b.payloadType(desc),
		Args: graphql.FieldConfigArgument{
			"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(b.createInput(desc))},
		},
		Resolve: func(p graphql.ResolveParams) (any, error) {
			payload, _ := p.Args["input"].(map[string]any)
			row, err := b.store.Create(p.Context, desc.Name, payload)
			if err != nil {
				return nil, err
			}
			return map[string]any{"success": true, "instance": row}, nil
		},
	}
}

func (b *Builder) updateField(desc *meta.EntityDescriptor) *graphql.Field {
	return &graphql.Field{
		Type: b.payloadType(desc),
		Args: graphql.FieldConfigArgument{
			"id":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
			"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(b.updateInput(desc))},
		},
		Resolve: func(p graphql.ResolveParams) (any, error) {
			id, _ := p.Args["id"].(int)
			payload, _ := p.Args["input"].(map[string]any)
			row, err := b.store.Update(p.Context, desc.Name, int64(id), payload, true)
			if err != nil {
				return nil, err
			}
			return map[string]any{"success": true, "instance": row}, nil
		},
	}
}

// deleteField возвращает мутацию удаления. Для сущностей с мягким удалением
// запись по умолчанию только помечается; hard=true стирает строку физически.
func (b *Builder) deleteField(desc *meta.EntityDescriptor) *graphql.Field {
	return &graphql.Field{
		Type: b.payloadType(desc),
		Args: graphql.FieldConfigArgument{
			"id":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
			"hard": &graphql.ArgumentConfig{Type: graphql.Boolean, DefaultValue: false},
		},
		Resolve: func(p graphql.ResolveParams) (any, error) {
			id, _ := p.Args["id"].(int)
			hard, _ := p.Args["hard"].(bool)
			if desc.SoftDelete && !hard {
				if _, err := b.store.Update(p.Context, desc.Name, int64(id), map[string]any{"is_deleted": true}, true); err != nil {
					return nil, err
				}
				return map[string]any{"success": true}, nil
			}
			if err := b.store.Delete(p.Context, desc.Name, int64(id)); err != nil {
				return nil, err
			}
			return map[string]any{"success": true}, nil
		},
	}
}

// bulkCreateField возвращает пакетное создание. Пакет атомарен: любая
// неразрешённая ссылка или невалидная строка отменяет весь список.
func (b *Builder) bulkCreateField(desc *meta.EntityDescriptor) *graphql.Field {
	return &graphql.Field{
		Type: b.bulkPayloadType(desc),
		Args: graphql.FieldConfigArgument{
			"inputs": &graphql.ArgumentConfig{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(b.createInput(desc)))),
			},
		},
		Resolve: func(p graphql.ResolveParams) (any, error) {
			raw, _ := p.Args["inputs"].([]any)
			items := make([]map[string]any, 0, len(raw))
			for _, item := range raw {
				payload, _ := item.(map[string]any)
				items = append(items, payload)
			}
			rows, err := b.store.BulkCreate(p.Context, desc.Name, items)
			if err != nil {
				return nil, err
			}
			return map[string]any{"success": true, "count": len(rows), "instances": rows}, nil
		},
	}
}

// bulkUpdateField возвращает пакетное обновление. Отсутствующие id
// пропускаются и в счётчик не входят; любая другая ошибка отменяет мутацию.
func (b *Builder) bulkUpdateField(desc *meta.EntityDescriptor) *graphql.Field {
	return &graphql.Field{
		Type: b.bulkPayloadType(desc),
		Args: graphql.FieldConfigArgument{
			"updates": &graphql.ArgumentConfig{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(b.bulkUpdateInput(desc)))),
			},
		},
		Resolve: func(p graphql.ResolveParams) (any, error) {
			raw, _ := p.Args["updates"].([]any)
			count := 0
			for i, item := range raw {
				u, _ := item.(map[string]any)
				id, ok := u["id"].(int)
				if !ok {
					return nil, domain.NewValidationError("item %d: id must be an integer", i+1)
				}
				payload, _ := u["input"].(map[string]any)
				if _, err := b.store.Update(p.Context, desc.Name, int64(id), payload, true); err != nil {
					if errors.Is(err, domain.ErrNotFound) {
						continue
					}
					return nil, fmt.Errorf("item %d: %w", i+1, err)
				}
				count++
			}
			return map[string]any{"success": true, "count": count}, nil
		},
	}
}

// bulkDeleteField возвращает пакетное удаление по списку id; отсутствующие
// id пропускаются, счётчик отражает реально удалённые строки
func (b *Builder) bulkDeleteField(desc *meta.EntityDescriptor) *graphql.Field {
	return &graphql.Field{
		Type: b.bulkPayloadType(desc),
		Args: graphql.FieldConfigArgument{
			"ids": &graphql.ArgumentConfig{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.Int))),
			},
		},
		Resolve: func(p graphql.ResolveParams) (any, error) {
			raw, _ := p.Args["ids"].([]any)
			ids := make([]int64, 0, len(raw))
			for _, v := range raw {
				if id, ok := v.(int); ok {
					ids = append(ids, int64(id))
				}
			}
			count, err := b.store.BulkDelete(p.Context, desc.Name, ids)
			if err != nil {
				return nil, err
			}
			return map[string]any{"success": true, "count": count}, nil
		},
	}
}
