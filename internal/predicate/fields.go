package predicate

import (
	"fmt"
	"sort"

	"inspectmetrics/internal/domain"
)

// Relation is a table reachable from a file. To-one relations are joined once
// by the projector; to-many relations are filtered through EXISTS subqueries.
type Relation struct {
	Name  string
	Alias string
	Many  bool

	// Only set for Many relations.
	Table       string
	ExistsAlias string
	Link        string // join condition against the outer file row
}

var (
	RelFile          = Relation{Name: "file", Alias: "f"}
	RelFileSet       = Relation{Name: "file_set", Alias: "fs"}
	RelUseCase       = Relation{Name: "use_case", Alias: "uc"}
	RelUploadSession = Relation{Name: "upload_session", Alias: "us"}
	RelWafer         = Relation{Name: "wafer", Alias: "w"}
	RelMLModel       = Relation{Name: "ml_model", Alias: "mm"}
	RelGT            = Relation{
		Name: "gt", Alias: "g", Many: true,
		Table: "gt_annotations", ExistsAlias: "gx", Link: "gx.file_id = f.id",
	}
	RelModel = Relation{
		Name: "model", Alias: "ma", Many: true,
		Table: "model_annotations", ExistsAlias: "mx", Link: "mx.file_id = f.id",
	}
)

type Field struct {
	Path      string
	Relation  Relation
	Column    string
	Rangeable bool
}

// column renders the field for the given context. Fields of a to-many
// relation are only valid inside that relation's EXISTS subquery.
func (f Field) column() string {
	if f.Relation.Many {
		return f.Relation.ExistsAlias + "." + f.Column
	}
	return f.Relation.Alias + "." + f.Column
}

var fields = map[string]Field{}

func register(rel Relation, column string, rangeable bool) {
	path := rel.Name + "." + column
	fields[path] = Field{Path: path, Relation: rel, Column: column, Rangeable: rangeable}
}

func init() {
	register(RelFile, "id", false)
	register(RelFile, "name", false)
	register(RelFile, "created_ts", true)

	register(RelFileSet, "id", false)
	register(RelFileSet, "use_case_id", false)
	register(RelFileSet, "upload_session_id", false)
	register(RelFileSet, "wafer_id", false)

	register(RelUseCase, "id", false)
	register(RelUseCase, "name", false)
	register(RelUseCase, "classification_type", false)

	register(RelUploadSession, "id", false)
	register(RelUploadSession, "name", false)

	register(RelWafer, "id", false)
	register(RelWafer, "name", false)
	register(RelWafer, "status", false)

	register(RelMLModel, "id", false)
	register(RelMLModel, "name", false)

	register(RelGT, "defect_id", false)

	register(RelModel, "ml_model_id", false)
	register(RelModel, "defect_id", false)
	register(RelModel, "confidence", true)
}

// Lookup returns the registered field for a dotted path.
func Lookup(path string) (Field, error) {
	f, ok := fields[path]
	if !ok {
		return Field{}, fmt.Errorf("%w: %q", domain.ErrUnknownField, path)
	}
	return f, nil
}

// Paths lists every registered field path in sorted order.
func Paths() []string {
	out := make([]string, 0, len(fields))
	for p := range fields {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
