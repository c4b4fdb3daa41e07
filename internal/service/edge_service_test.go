package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/organigram-api/internal/domain"
	"github.com/organigram-api/internal/service"
)

type edgeFixture struct {
	repo      *mockResourceRepo
	edges     *mockEdgeRepo
	positions *mockPositionRepo
	svc       service.EdgeService
}

// setupEdgeFixture собирает две структуры: в первой директор с грейдом
// уровня 1 и подчинённые с грейдом уровня 2, во второй отдельный менеджер
func setupEdgeFixture(t *testing.T) *edgeFixture {
	repo := newMockResourceRepo()
	edges := newMockEdgeRepo()
	positions := newMockPositionRepo(edges,
		&domain.Position{ID: 10, StructureID: 1, Title: "Director", GradeID: int64ptr(1)},
		&domain.Position{ID: 11, StructureID: 1, Title: "Engineer", GradeID: int64ptr(2)},
		&domain.Position{ID: 12, StructureID: 1, Title: "Analyst", GradeID: int64ptr(2)},
		&domain.Position{ID: 13, StructureID: 1, Title: "Lead", Level: intptr(1), GradeID: int64ptr(2)},
		&domain.Position{ID: 14, StructureID: 1, Title: "Intern"},
		&domain.Position{ID: 20, StructureID: 2, Title: "Manager", GradeID: int64ptr(2)},
	)
	positions.addGrade(&domain.Grade{ID: 1, Name: "G1", Level: 1})
	positions.addGrade(&domain.Grade{ID: 2, Name: "G2", Level: 2})
	structures := newMockStructureRepo(
		&domain.Structure{ID: 1, Name: "Head Office", IsMain: true},
		&domain.Structure{ID: 2, Name: "Branch"},
	)

	repo.seed("structure", 1, map[string]any{"name": "Head Office"})
	repo.seed("structure", 2, map[string]any{"name": "Branch"})
	for id, structure := range map[int64]int64{10: 1, 11: 1, 12: 1, 13: 1, 14: 1, 20: 2} {
		repo.seed("position", id, map[string]any{"structure": structure})
	}

	resources := newTestResources(t, repo)
	return &edgeFixture{
		repo:      repo,
		edges:     edges,
		positions: positions,
		svc:       service.NewEdgeService(resources, edges, positions, structures),
	}
}

func edgePayload(structure, source, target int64) map[string]any {
	return map[string]any{
		"structure":   structure,
		"source_type": "position",
		"source_id":   source,
		"target_type": "position",
		"target_id":   target,
	}
}

func TestCreateEdge_Success(t *testing.T) {
	f := setupEdgeFixture(t)

	row, err := f.svc.Create(context.Background(), edgePayload(1, 10, 11))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if row["id"] == nil {
		t.Error("expected created edge to have an id")
	}
	if row["source_id"] != int64(10) || row["target_id"] != int64(11) {
		t.Errorf("expected edge 10 -> 11, got %v -> %v", row["source_id"], row["target_id"])
	}
}

func TestCreateEdge_SelfLoop(t *testing.T) {
	f := setupEdgeFixture(t)

	_, err := f.svc.Create(context.Background(), edgePayload(1, 10, 10))
	if !errors.Is(err, domain.ErrConstraintViolation) {
		t.Fatalf("expected constraint violation, got %v", err)
	}
	if err.Error() != "Source and target must be different nodes" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestCreateEdge_SecondParent(t *testing.T) {
	f := setupEdgeFixture(t)
	f.edges.Create(context.Background(), &domain.OrganigramEdge{
		StructureID: 1,
		SourceType:  domain.NodeKindPosition, SourceID: 10,
		TargetType: domain.NodeKindPosition, TargetID: 11,
	})

	_, err := f.svc.Create(context.Background(), edgePayload(1, 13, 11))
	if !errors.Is(err, domain.ErrConstraintViolation) {
		t.Fatalf("expected constraint violation, got %v", err)
	}
	if err.Error() != "A node can only have one parent" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestCreateEdge_LowerRankSource(t *testing.T) {
	f := setupEdgeFixture(t)

	// Источник с грейдом уровня 2 не может быть родителем уровня 1
	_, err := f.svc.Create(context.Background(), edgePayload(1, 11, 10))
	if !errors.Is(err, domain.ErrConstraintViolation) {
		t.Fatalf("expected constraint violation, got %v", err)
	}
	if err.Error() != "Parent must have a higher level than child" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestCreateEdge_EqualRank(t *testing.T) {
	f := setupEdgeFixture(t)

	_, err := f.svc.Create(context.Background(), edgePayload(1, 11, 12))
	if !errors.Is(err, domain.ErrConstraintViolation) {
		t.Fatalf("expected constraint violation for equal ranks, got %v", err)
	}
}

func TestCreateEdge_OwnLevelBeatsGrade(t *testing.T) {
	f := setupEdgeFixture(t)

	// Должность 13 имеет собственный level 1, хотя её грейд уровня 2
	if _, err := f.svc.Create(context.Background(), edgePayload(1, 13, 11)); err != nil {
		t.Fatalf("expected own level to take precedence, got %v", err)
	}
}

func TestCreateEdge_UnrankedEndpointSkipsRankRule(t *testing.T) {
	f := setupEdgeFixture(t)

	// У должности 14 нет ни level, ни грейда, правило рангов не применяется
	if _, err := f.svc.Create(context.Background(), edgePayload(1, 14, 11)); err != nil {
		t.Fatalf("expected rank rule to be skipped, got %v", err)
	}
}

func TestCreateEdge_CrossStructure(t *testing.T) {
	f := setupEdgeFixture(t)

	_, err := f.svc.Create(context.Background(), edgePayload(1, 10, 20))
	if !errors.Is(err, domain.ErrConstraintViolation) {
		t.Fatalf("expected constraint violation, got %v", err)
	}
	if err.Error() != "Source, target and edge must belong to the same structure" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestCreateEdge_UnknownTarget(t *testing.T) {
	f := setupEdgeFixture(t)

	_, err := f.svc.Create(context.Background(), edgePayload(1, 10, 999))
	if !errors.Is(err, domain.ErrReferenceNotFound) {
		t.Fatalf("expected reference error, got %v", err)
	}
	if err.Error() != "Position with id 999 does not exist" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestCreateEdge_MissingStructure(t *testing.T) {
	f := setupEdgeFixture(t)

	payload := edgePayload(1, 10, 11)
	delete(payload, "structure")
	_, err := f.svc.Create(context.Background(), payload)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err.Error() != "field structure is required" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestCreateEdge_InvalidKind(t *testing.T) {
	f := setupEdgeFixture(t)

	payload := edgePayload(1, 10, 11)
	payload["source_type"] = "team"
	_, err := f.svc.Create(context.Background(), payload)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err.Error() != "field source_type must be one of the org_node kinds" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestCreateEdge_StructureAnchor(t *testing.T) {
	f := setupEdgeFixture(t)

	// Ребро от самой структуры к её корневой должности
	payload := map[string]any{
		"structure":   int64(1),
		"source_type": "structure",
		"source_id":   int64(1),
		"target_type": "position",
		"target_id":   int64(10),
	}
	if _, err := f.svc.Create(context.Background(), payload); err != nil {
		t.Fatalf("expected structure anchor edge to pass, got %v", err)
	}
}

func TestUpdateEdge_KeepsOwnTarget(t *testing.T) {
	f := setupEdgeFixture(t)
	f.edges.Create(context.Background(), &domain.OrganigramEdge{
		StructureID: 1,
		SourceType:  domain.NodeKindPosition, SourceID: 10,
		TargetType: domain.NodeKindPosition, TargetID: 11,
	})
	f.repo.seed("organigram_edge", 1, map[string]any{
		"structure": int64(1), "source_type": "position", "source_id": int64(10),
		"target_type": "position", "target_id": int64(11), "edge_type": "smoothstep",
	})

	// Частичное обновление не должно спотыкаться о собственное ребро
	row, err := f.svc.Update(context.Background(), 1, map[string]any{"edge_type": "step"}, true)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if row["edge_type"] != "step" {
		t.Errorf("expected edge_type step, got %v", row["edge_type"])
	}
}

func TestUpdateEdge_RetargetTaken(t *testing.T) {
	f := setupEdgeFixture(t)
	ctx := context.Background()
	f.edges.Create(ctx, &domain.OrganigramEdge{
		StructureID: 1,
		SourceType:  domain.NodeKindPosition, SourceID: 10,
		TargetType: domain.NodeKindPosition, TargetID: 11,
	})
	f.edges.Create(ctx, &domain.OrganigramEdge{
		StructureID: 1,
		SourceType:  domain.NodeKindPosition, SourceID: 10,
		TargetType: domain.NodeKindPosition, TargetID: 12,
	})

	_, err := f.svc.Update(ctx, 2, map[string]any{"target_id": int64(11)}, true)
	if !errors.Is(err, domain.ErrConstraintViolation) {
		t.Fatalf("expected constraint violation, got %v", err)
	}
	if err.Error() != "A node can only have one parent" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}
