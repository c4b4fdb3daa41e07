package meta

import (
	"fmt"

	"github.com/organigram-api/internal/domain"
)

// UnionOrgNode - объединение сущностей, на которые могут указывать концы рёбер
const UnionOrgNode = "org_node"

// BuildRegistry регистрирует все доменные сущности и возвращает готовый реестр.
// Вызывается один раз при старте приложения.
func BuildRegistry() (*Registry, error) {
	r := NewRegistry()
	r.AddUnion(UnionOrgNode, "structure", "position")

	registrations := []struct {
		model any
		opts  []RegisterOption
	}{
		{&domain.Grade{}, []RegisterOption{
			WithComputed("display_name", gradeDisplayName),
			WithDefaultOrder("level ASC, name ASC"),
		}},
		{&domain.StructureType{}, nil},
		{&domain.Structure{}, nil},
		{&domain.Position{}, []RegisterOption{
			WithComputed("display_name", positionDisplayName),
			WithDefaultOrder("level ASC, title ASC"),
		}},
		{&domain.PositionDetail{}, []RegisterOption{
			WithPolymorphic("kind",
				PolymorphicVariant{Value: domain.DetailKindTask, Entity: "task"},
				PolymorphicVariant{Value: domain.DetailKindMission, Entity: "mission"},
				PolymorphicVariant{Value: domain.DetailKindCompetence, Entity: "competence"},
			),
			WithDefaultOrder("created_at ASC, id ASC"),
		}},
		{&domain.PositionDetail{}, []RegisterOption{
			WithName("task"),
			WithScope("kind", domain.DetailKindTask),
			WithDefaultOrder("created_at ASC, id ASC"),
		}},
		{&domain.PositionDetail{}, []RegisterOption{
			WithName("mission"),
			WithScope("kind", domain.DetailKindMission),
			WithDefaultOrder("created_at ASC, id ASC"),
		}},
		{&domain.PositionDetail{}, []RegisterOption{
			WithName("competence"),
			WithScope("kind", domain.DetailKindCompetence),
			WithDefaultOrder("created_at ASC, id ASC"),
		}},
		{&domain.OrganigramEdge{}, []RegisterOption{
			WithRoute("edges"),
			WithGeneric(GenericRelation{Name: "source", TypeField: "source_type", IDField: "source_id", Union: UnionOrgNode}),
			WithGeneric(GenericRelation{Name: "target", TypeField: "target_type", IDField: "target_id", Union: UnionOrgNode}),
		}},
		{&domain.DiagramPosition{}, []RegisterOption{
			WithGeneric(GenericRelation{Name: "node", TypeField: "node_type", IDField: "node_id", Union: UnionOrgNode}),
		}},
	}

	for _, reg := range registrations {
		if err := r.Register(reg.model, reg.opts...); err != nil {
			return nil, err
		}
	}
	if err := r.Finalize(); err != nil {
		return nil, err
	}
	return r, nil
}

func gradeLabel(row map[string]any) string {
	name, _ := row["name"].(string)
	return fmt.Sprintf("%s (Level %v)", name, row["level"])
}

func gradeDisplayName(row map[string]any, _ RowFetcher) (any, error) {
	return gradeLabel(row), nil
}

func positionDisplayName(row map[string]any, fetch RowFetcher) (any, error) {
	title, _ := row["title"].(string)
	label := "no grade"
	switch g := row["grade"].(type) {
	case map[string]any:
		label = gradeLabel(g)
	case int64:
		if fetch != nil {
			if grade, err := fetch("grade", g); err == nil && grade != nil {
				label = gradeLabel(grade)
			}
		}
	}
	return fmt.Sprintf("%s (%s)", title, label), nil
}
