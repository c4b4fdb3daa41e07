package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/organigram-api/internal/domain"
	"github.com/organigram-api/internal/dto"
	"github.com/organigram-api/internal/service"
)

type positionFixture struct {
	svc       service.PositionService
	repo      *mockResourceRepo
	positions *mockPositionRepo
	edges     *mockEdgeRepo
}

func setupPositionFixture(t *testing.T) *positionFixture {
	t.Helper()
	repo := newMockResourceRepo()
	edges := newMockEdgeRepo()
	positions := newMockPositionRepo(edges,
		&domain.Position{ID: 10, StructureID: 1, Title: "Director"},
		&domain.Position{ID: 11, StructureID: 1, Title: "Engineer"},
		&domain.Position{ID: 12, StructureID: 1, Title: "Analyst"},
		&domain.Position{ID: 20, StructureID: 2, Title: "Branch Manager"},
	)
	positions.generic = repo

	repo.seed("structure", 1, map[string]any{"name": "Head Office", "is_main": true})
	repo.seed("structure", 2, map[string]any{"name": "Branch", "is_main": false})
	for id, p := range positions.positions {
		repo.seed("position", id, positionRow(p))
	}

	resources := newTestResources(t, repo)
	return &positionFixture{
		svc:       service.NewPositionService(resources, positions, edges),
		repo:      repo,
		positions: positions,
		edges:     edges,
	}
}

// seedEdge заводит ребро и в типизированном, и в универсальном хранилище
func (f *positionFixture) seedEdge(t *testing.T, source domain.NodeRef, targetID int64) *domain.OrganigramEdge {
	t.Helper()
	edge := &domain.OrganigramEdge{
		StructureID: 1,
		SourceType:  source.Kind,
		SourceID:    source.ID,
		TargetType:  domain.NodeKindPosition,
		TargetID:    targetID,
	}
	if err := f.edges.Create(context.Background(), edge); err != nil {
		t.Fatalf("seed edge: %v", err)
	}
	f.repo.seed("organigram_edge", edge.ID, map[string]any{
		"structure":   edge.StructureID,
		"source_type": string(edge.SourceType),
		"source_id":   edge.SourceID,
		"target_type": string(edge.TargetType),
		"target_id":   edge.TargetID,
		"edge_type":   edge.EdgeType,
	})
	return edge
}

func positionNode(id int64) domain.NodeRef {
	return domain.NodeRef{Kind: domain.NodeKindPosition, ID: id}
}

func TestCreatePosition_WithParent(t *testing.T) {
	f := setupPositionFixture(t)
	ctx := context.Background()

	row, err := f.svc.Create(ctx, map[string]any{
		"structure": int64(1),
		"title":     "Developer",
		"parent":    int64(10),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, ok := row["parent"]; ok {
		t.Error("parent key should not be stored on the position row")
	}

	id, ok := row["id"].(int64)
	if !ok {
		t.Fatalf("expected int64 id, got %T", row["id"])
	}
	edge, err := f.edges.IncomingEdge(ctx, 1, positionNode(id))
	if err != nil {
		t.Fatalf("IncomingEdge: %v", err)
	}
	if edge == nil {
		t.Fatal("expected an incoming edge for the created position")
	}
	if edge.SourceType != domain.NodeKindPosition || edge.SourceID != 10 {
		t.Errorf("expected edge source position 10, got %s %d", edge.SourceType, edge.SourceID)
	}
	if edge.EdgeType != "smoothstep" {
		t.Errorf("expected default edge type smoothstep, got %q", edge.EdgeType)
	}
}

func TestCreatePosition_UnknownParent(t *testing.T) {
	f := setupPositionFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, map[string]any{
		"structure": int64(1),
		"title":     "Developer",
		"parent":    int64(999),
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err.Error() != "Invalid parent ID provided." {
		t.Errorf("unexpected message: %q", err.Error())
	}
	if n, _ := f.repo.Count(ctx, "position"); n != 4 {
		t.Errorf("expected no new position, count %d", n)
	}
}

func TestCreatePosition_NilParent(t *testing.T) {
	f := setupPositionFixture(t)
	ctx := context.Background()

	row, err := f.svc.Create(ctx, map[string]any{
		"structure": int64(1),
		"title":     "Developer",
		"parent":    nil,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id, _ := row["id"].(int64)
	edge, err := f.edges.IncomingEdge(ctx, 1, positionNode(id))
	if err != nil {
		t.Fatalf("IncomingEdge: %v", err)
	}
	if edge != nil {
		t.Errorf("expected no edge for a root position, got %+v", edge)
	}
}

func TestParent_ReturnsEdgeSource(t *testing.T) {
	f := setupPositionFixture(t)
	ctx := context.Background()
	f.seedEdge(t, positionNode(10), 11)

	row, err := f.svc.Parent(ctx, 11)
	if err != nil {
		t.Fatalf("Parent: %v", err)
	}
	if row["id"] != int64(10) {
		t.Errorf("expected parent id 10, got %v", row["id"])
	}
	if row["title"] != "Director" {
		t.Errorf("expected parent title Director, got %v", row["title"])
	}
}

func TestParent_NoEdge(t *testing.T) {
	f := setupPositionFixture(t)

	_, err := f.svc.Parent(context.Background(), 10)
	if !errors.Is(err, domain.ErrNoParentPosition) {
		t.Fatalf("expected ErrNoParentPosition, got %v", err)
	}
	if err.Error() != "No parent position found" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestParent_StructureSourceDoesNotCount(t *testing.T) {
	f := setupPositionFixture(t)
	f.seedEdge(t, domain.NodeRef{Kind: domain.NodeKindStructure, ID: 1}, 11)

	_, err := f.svc.Parent(context.Background(), 11)
	if !errors.Is(err, domain.ErrNoParentPosition) {
		t.Fatalf("expected ErrNoParentPosition, got %v", err)
	}
}

func TestUpdateEdgeSource_MovesEdge(t *testing.T) {
	f := setupPositionFixture(t)
	ctx := context.Background()
	seeded := f.seedEdge(t, positionNode(10), 11)

	row, err := f.svc.UpdateEdgeSource(ctx, 11, 12)
	if err != nil {
		t.Fatalf("UpdateEdgeSource: %v", err)
	}
	if row["id"] != seeded.ID {
		t.Errorf("expected edge row id %d, got %v", seeded.ID, row["id"])
	}

	edge, err := f.edges.GetByID(ctx, seeded.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if edge.SourceType != domain.NodeKindPosition || edge.SourceID != 12 {
		t.Errorf("expected edge source position 12, got %s %d", edge.SourceType, edge.SourceID)
	}
	if edge.TargetID != 11 {
		t.Errorf("edge target must stay 11, got %d", edge.TargetID)
	}
}

func TestUpdateEdgeSource_NoEdge(t *testing.T) {
	f := setupPositionFixture(t)

	_, err := f.svc.UpdateEdgeSource(context.Background(), 10, 11)
	if !errors.Is(err, domain.ErrNoIncomingEdge) {
		t.Fatalf("expected ErrNoIncomingEdge, got %v", err)
	}
	if err.Error() != "No edge found for this position" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestUpdateEdgeSource_CrossStructureSource(t *testing.T) {
	f := setupPositionFixture(t)
	f.seedEdge(t, positionNode(10), 11)

	_, err := f.svc.UpdateEdgeSource(context.Background(), 11, 20)
	if !errors.Is(err, domain.ErrSourceNotInScope) {
		t.Fatalf("expected ErrSourceNotInScope, got %v", err)
	}
	if err.Error() != "Source position not found or not in the same structure" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestUpdateEdgeSource_UnknownSource(t *testing.T) {
	f := setupPositionFixture(t)
	f.seedEdge(t, positionNode(10), 11)

	_, err := f.svc.UpdateEdgeSource(context.Background(), 11, 999)
	if !errors.Is(err, domain.ErrSourceNotInScope) {
		t.Fatalf("expected ErrSourceNotInScope, got %v", err)
	}
}

func TestClone_CopiesDetailsAndEdge(t *testing.T) {
	f := setupPositionFixture(t)
	ctx := context.Background()
	f.seedEdge(t, positionNode(10), 11)
	f.positions.details = append(f.positions.details,
		domain.PositionDetail{ID: 1, PositionID: 11, Kind: domain.DetailKindMission, Description: "Deliver the roadmap"},
		domain.PositionDetail{ID: 2, PositionID: 11, Kind: domain.DetailKindTask, Description: "Weekly reporting"},
	)

	row, err := f.svc.Clone(ctx, 11)
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if row["title"] != "Engineer (Copie)" {
		t.Errorf("expected cloned title with suffix, got %v", row["title"])
	}

	cloneID, ok := row["id"].(int64)
	if !ok {
		t.Fatalf("expected int64 id, got %T", row["id"])
	}
	details, err := f.positions.ListDetails(ctx, cloneID)
	if err != nil {
		t.Fatalf("ListDetails: %v", err)
	}
	if len(details) != 2 {
		t.Fatalf("expected 2 cloned details, got %d", len(details))
	}
	for _, d := range details {
		if d.PositionID != cloneID {
			t.Errorf("detail must point at the clone, got %d", d.PositionID)
		}
	}

	edge, err := f.edges.IncomingEdge(ctx, 1, positionNode(cloneID))
	if err != nil {
		t.Fatalf("IncomingEdge: %v", err)
	}
	if edge == nil {
		t.Fatal("expected the clone to inherit an incoming edge")
	}
	if edge.SourceID != 10 {
		t.Errorf("expected cloned edge source 10, got %d", edge.SourceID)
	}

	original, err := f.edges.IncomingEdge(ctx, 1, positionNode(11))
	if err != nil {
		t.Fatalf("IncomingEdge: %v", err)
	}
	if original == nil || original.ID == edge.ID {
		t.Error("original edge must stay in place")
	}
}

func TestClone_MissingPosition(t *testing.T) {
	f := setupPositionFixture(t)

	_, err := f.svc.Clone(context.Background(), 999)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBulkCoordinates_Empty(t *testing.T) {
	f := setupPositionFixture(t)

	_, err := f.svc.BulkCoordinates(context.Background(), nil)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err.Error() != "No updates provided." {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestBulkCoordinates_SkipsUnknownIDs(t *testing.T) {
	f := setupPositionFixture(t)
	ctx := context.Background()

	n, err := f.svc.BulkCoordinates(ctx, []dto.CoordinateItem{
		{ID: 10, X: 120, Y: 40},
		{ID: 999, X: 1, Y: 1},
	})
	if err != nil {
		t.Fatalf("BulkCoordinates: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 affected row, got %d", n)
	}
	moved, err := f.positions.GetByID(ctx, 10)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if moved.PositionX != 120 || moved.PositionY != 40 {
		t.Errorf("expected position 10 at (120, 40), got (%v, %v)", moved.PositionX, moved.PositionY)
	}
}
