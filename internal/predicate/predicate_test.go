package predicate

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"inspectmetrics/internal/domain"
)

func TestCompileSameRelationSharesOneExists(t *testing.T) {
	n := And(
		In("model.ml_model_id", int64(3)),
		In("file_set.use_case_id", int64(1)),
		Range("model.confidence", 0.5, nil),
	)
	sql, args, err := Compile(n)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if got := strings.Count(sql, "EXISTS"); got != 1 {
		t.Fatalf("expected one EXISTS for model constraints, got %d in %s", got, sql)
	}
	want := "(EXISTS (SELECT 1 FROM model_annotations mx WHERE mx.file_id = f.id AND mx.ml_model_id IN (?) AND (mx.confidence >= ?)) AND fs.use_case_id IN (?))"
	if sql != want {
		t.Fatalf("unexpected sql:\n got %s\nwant %s", sql, want)
	}
	if diff := cmp.Diff([]any{int64(3), 0.5, int64(1)}, args); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileNestedAndStillMerges(t *testing.T) {
	n := And(
		In("gt.defect_id", int64(1)),
		And(In("gt.defect_id", int64(2))),
	)
	sql, _, err := Compile(n)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if strings.Count(sql, "EXISTS") != 1 {
		t.Fatalf("expected nested And leaves to merge, got %s", sql)
	}
}

func TestCompileOrKeepsSeparateExists(t *testing.T) {
	n := Or(In("gt.defect_id", int64(1)), In("gt.defect_id", int64(2)))
	sql, args, err := Compile(n)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if strings.Count(sql, "EXISTS") != 2 {
		t.Fatalf("expected one EXISTS per Or branch, got %s", sql)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %v", args)
	}
}

func TestCompileDifferentRelationsGetOwnExists(t *testing.T) {
	n := And(In("gt.defect_id", int64(1)), In("model.defect_id", int64(1)))
	sql, _, err := Compile(n)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if !strings.Contains(sql, "gt_annotations gx") || !strings.Contains(sql, "model_annotations mx") {
		t.Fatalf("expected both relations in sql: %s", sql)
	}
}

func TestCompileInEdgeCases(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want string
		args int
	}{
		{"nil node", nil, "1=1", 0},
		{"empty in", In("file.id"), "1=0", 0},
		{"null only", In("file_set.wafer_id", nil), "fs.wafer_id IS NULL", 0},
		{"null and values", In("file_set.wafer_id", int64(4), nil), "(fs.wafer_id IN (?) OR fs.wafer_id IS NULL)", 1},
		{"open range", Range("file.created_ts", nil, nil), "1=1", 0},
		{"not", Not(In("wafer.status", "on_hold")), "NOT (w.status IN (?))", 1},
		{"empty or", Or(), "1=0", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := Compile(tt.node)
			if err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			if sql != tt.want {
				t.Fatalf("sql = %q, want %q", sql, tt.want)
			}
			if len(args) != tt.args {
				t.Fatalf("args = %v, want %d entries", args, tt.args)
			}
		})
	}
}

func TestCompileRejectsUnknownAndNonRangeFields(t *testing.T) {
	if _, _, err := Compile(In("file.owner", "x")); !errors.Is(err, domain.ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
	if _, _, err := Compile(And(In("gt.nope", 1))); !errors.Is(err, domain.ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField inside And, got %v", err)
	}
	if _, _, err := Compile(Range("file.name", "a", "b")); err == nil {
		t.Fatal("expected range on non-rangeable field to fail")
	}
}

func TestFromFilters(t *testing.T) {
	n, err := FromFilters(map[string][]any{
		"model.ml_model_id":           {int64(2)},
		"model.confidence" + RangeSuffix: {0.2, 0.9},
		"file_set.use_case_id":        {int64(1), int64(5)},
	})
	if err != nil {
		t.Fatalf("FromFilters failed: %v", err)
	}
	sql, args, err := Compile(n)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if strings.Count(sql, "EXISTS") != 1 {
		t.Fatalf("expected filters on model relation to merge: %s", sql)
	}
	if diff := cmp.Diff([]any{int64(1), int64(5), 0.2, 0.9, int64(2)}, args); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestFromFiltersValidation(t *testing.T) {
	if n, err := FromFilters(nil); err != nil || n != nil {
		t.Fatalf("expected nil node for empty filters, got %v %v", n, err)
	}
	if _, err := FromFilters(map[string][]any{"bogus.field": {1}}); !errors.Is(err, domain.ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
	if _, err := FromFilters(map[string][]any{"file.created_ts" + RangeSuffix: {1}}); err == nil {
		t.Fatal("expected range with one bound to fail")
	}
	if _, err := FromFilters(map[string][]any{"file.id" + RangeSuffix: {1, 2}}); err == nil {
		t.Fatal("expected range on non-rangeable field to fail")
	}
}

func TestRelations(t *testing.T) {
	n := And(
		In("gt.defect_id", int64(1)),
		Or(In("wafer.status", "on_hold"), Not(In("file.id", int64(2)))),
		In("not.registered", 1),
	)
	want := []string{"file", "gt", "wafer"}
	if diff := cmp.Diff(want, Relations(n)); diff != "" {
		t.Fatalf("relations mismatch (-want +got):\n%s", diff)
	}
	if got := Relations(nil); len(got) != 0 {
		t.Fatalf("expected no relations for nil node, got %v", got)
	}
}

func TestPathsAreSortedAndResolvable(t *testing.T) {
	paths := Paths()
	if len(paths) == 0 {
		t.Fatal("expected registered paths")
	}
	for i, p := range paths {
		if i > 0 && paths[i-1] >= p {
			t.Fatalf("paths not sorted at %d: %q >= %q", i, paths[i-1], p)
		}
		if _, err := Lookup(p); err != nil {
			t.Fatalf("Lookup(%q) failed: %v", p, err)
		}
	}
}
