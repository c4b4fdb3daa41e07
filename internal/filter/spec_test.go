package filter

import (
	"testing"

	"github.com/organigram-api/internal/meta"
)

func buildTestSpec(t *testing.T, entity string) *Spec {
	t.Helper()
	reg, err := meta.BuildRegistry()
	if err != nil {
		t.Fatalf("BuildRegistry: %v", err)
	}
	s, err := BuildSpec(reg, entity, 3)
	if err != nil {
		t.Fatalf("BuildSpec(%s): %v", entity, err)
	}
	return s
}

func TestBuildSpecPositionKeys(t *testing.T) {
	s := buildTestSpec(t, "position")

	tests := []struct {
		key      string
		allowed  []string
		rejected []string
	}{
		{"title", []string{OpExact, OpIContains, OpStartsWith, OpIn}, []string{OpGt, OpIsNull}},
		{"level", []string{OpExact, OpGt, OpLte, OpIn, OpIsNull}, []string{OpIContains}},
		{"grade", []string{OpExact, OpIn, OpIsNull}, []string{OpIContains, OpGt}},
		{"grade__id", []string{OpExact, OpIn, OpGt}, []string{OpIContains}},
		{"grade__name", []string{OpIContains, OpIExact}, []string{OpGt}},
		{"is_manager", []string{OpExact}, []string{OpIn, OpIsNull}},
		{"position_x", []string{OpGt, OpLte}, []string{OpIContains}},
		{"created_at", []string{OpExact, OpDate, OpYear, OpYearGte}, []string{OpIContains, OpIsNull}},
		{"structure__type__name", []string{OpIContains}, nil},
		{"structure__manager", []string{OpExact, OpIn}, []string{OpIContains}},
	}
	for _, tt := range tests {
		f, ok := s.Fields[tt.key]
		if !ok {
			t.Errorf("expected field %s in spec", tt.key)
			continue
		}
		for _, op := range tt.allowed {
			if !f.Allows(op) {
				t.Errorf("field %s: expected operator %s to be allowed", tt.key, op)
			}
		}
		for _, op := range tt.rejected {
			if f.Allows(op) {
				t.Errorf("field %s: expected operator %s to be rejected", tt.key, op)
			}
		}
	}
}

func TestBuildSpecRelationChains(t *testing.T) {
	s := buildTestSpec(t, "position")

	f, ok := s.Fields["grade__name"]
	if !ok {
		t.Fatal("expected field grade__name")
	}
	if len(f.Relations) != 1 {
		t.Fatalf("expected 1 relation, got %d", len(f.Relations))
	}
	rel := f.Relations[0]
	if rel.Name != "grade" || rel.Table != "grades" || rel.Column != "grade_id" || rel.TargetPK != "id" {
		t.Errorf("unexpected relation: %+v", rel)
	}
	if f.Column != "name" {
		t.Errorf("expected column name, got %s", f.Column)
	}

	deep, ok := s.Fields["structure__type__name"]
	if !ok {
		t.Fatal("expected field structure__type__name")
	}
	if len(deep.Relations) != 2 {
		t.Fatalf("expected 2 relations, got %d", len(deep.Relations))
	}
	if deep.Relations[0].Table != "structures" || deep.Relations[1].Table != "structure_types" {
		t.Errorf("unexpected relation chain: %+v", deep.Relations)
	}
}

func TestBuildSpecSelfReferenceBounded(t *testing.T) {
	s := buildTestSpec(t, "structure")

	if _, ok := s.Fields["parent"]; !ok {
		t.Error("expected terminal field parent for self reference")
	}
	if _, ok := s.Fields["parent__name"]; ok {
		t.Error("did not expect descent into a self-referential relation")
	}
	if _, ok := s.Fields["type__name"]; !ok {
		t.Error("expected field type__name")
	}
	if _, ok := s.Fields["manager__title"]; !ok {
		t.Error("expected field manager__title")
	}
	if _, ok := s.Fields["manager__structure__name"]; ok {
		t.Error("did not expect descent back into structure via manager")
	}
}

func TestBuildSpecGenericComponents(t *testing.T) {
	s := buildTestSpec(t, "organigram_edge")

	for _, key := range []string{"source_type", "source_id", "target_type", "target_id"} {
		f, ok := s.Fields[key]
		if !ok {
			t.Errorf("expected field %s", key)
			continue
		}
		if !f.Generic {
			t.Errorf("expected %s to be marked generic", key)
		}
		if !f.Allows(OpExact) || !f.Allows(OpIn) {
			t.Errorf("expected %s to allow exact and in", key)
		}
		if f.Allows(OpIContains) || f.Allows(OpGt) {
			t.Errorf("generic component %s must only allow exact and in", key)
		}
	}
	if _, ok := s.Fields["structure__name"]; !ok {
		t.Error("expected descent into the owning structure")
	}
	if f, ok := s.Fields["edge_type"]; !ok || !f.Allows(OpIContains) {
		t.Error("expected edge_type to be a regular text field")
	}
}

func TestLookup(t *testing.T) {
	s := buildTestSpec(t, "position")

	tests := []struct {
		raw     string
		wantKey string
		wantOp  string
		wantErr bool
	}{
		{raw: "title", wantKey: "title", wantOp: OpExact},
		{raw: "title__icontains", wantKey: "title", wantOp: OpIContains},
		{raw: "title__exact", wantKey: "title", wantOp: OpExact},
		{raw: "grade__id__in", wantKey: "grade__id", wantOp: OpIn},
		{raw: "grade__name__icontains", wantKey: "grade__name", wantOp: OpIContains},
		{raw: "level__gt", wantKey: "level", wantOp: OpGt},
		{raw: "level__isnull", wantKey: "level", wantOp: OpIsNull},
		{raw: "created_at__year__gte", wantKey: "created_at", wantOp: OpYearGte},
		{raw: "grade_id", wantKey: "grade", wantOp: OpExact},
		{raw: "grade_id__in", wantKey: "grade", wantOp: OpIn},
		{raw: "structure_id", wantKey: "structure", wantOp: OpExact},
		{raw: "title__gt", wantErr: true},
		{raw: "is_manager__in", wantErr: true},
		{raw: "bogus", wantErr: true},
		{raw: "bogus__icontains", wantErr: true},
	}
	for _, tt := range tests {
		f, op, err := s.Lookup(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Lookup(%q): expected error, got field %s", tt.raw, f.Key)
			}
			continue
		}
		if err != nil {
			t.Errorf("Lookup(%q): unexpected error %v", tt.raw, err)
			continue
		}
		if f.Key != tt.wantKey || op != tt.wantOp {
			t.Errorf("Lookup(%q): expected (%s, %s), got (%s, %s)", tt.raw, tt.wantKey, tt.wantOp, f.Key, op)
		}
	}
}
