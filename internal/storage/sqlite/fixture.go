package sqlite

import (
	"database/sql"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"inspectmetrics/internal/domain"
)

// Fixture is a YAML snapshot of the collaborator entities, used to seed a
// local store for the CLI and tests.
type Fixture struct {
	UseCases         []domain.UseCase         `yaml:"use_cases"`
	Defects          []domain.Defect          `yaml:"defects"`
	UploadSessions   []domain.UploadSession   `yaml:"upload_sessions"`
	Wafers           []domain.Wafer           `yaml:"wafers"`
	FileSets         []domain.FileSet         `yaml:"file_sets"`
	Files            []domain.File            `yaml:"files"`
	MLModels         []domain.MLModel         `yaml:"ml_models"`
	GTAnnotations    []domain.GTAnnotation    `yaml:"gt_annotations"`
	ModelAnnotations []domain.ModelAnnotation `yaml:"model_annotations"`
}

func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture yaml: %w", err)
	}
	return &f, nil
}

// ApplyFixture inserts every entity of f in one transaction and returns the
// number of rows written.
func ApplyFixture(db *sql.DB, f *Fixture) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	inserted := 0
	step := func(kind string, n int, insert func(i int) error) error {
		for i := 0; i < n; i++ {
			if err := insert(i); err != nil {
				return fmt.Errorf("insert %s #%d: %w", kind, i, err)
			}
			inserted++
		}
		return nil
	}

	steps := []struct {
		kind   string
		n      int
		insert func(i int) error
	}{
		{"use_case", len(f.UseCases), func(i int) error { return InsertUseCase(tx, f.UseCases[i]) }},
		{"defect", len(f.Defects), func(i int) error { return InsertDefect(tx, f.Defects[i]) }},
		{"upload_session", len(f.UploadSessions), func(i int) error { return InsertUploadSession(tx, f.UploadSessions[i]) }},
		{"wafer", len(f.Wafers), func(i int) error { return InsertWafer(tx, f.Wafers[i]) }},
		{"file_set", len(f.FileSets), func(i int) error { return InsertFileSet(tx, f.FileSets[i]) }},
		{"file", len(f.Files), func(i int) error { return InsertFile(tx, f.Files[i]) }},
		{"ml_model", len(f.MLModels), func(i int) error { return InsertMLModel(tx, f.MLModels[i]) }},
		{"gt_annotation", len(f.GTAnnotations), func(i int) error { return InsertGTAnnotation(tx, f.GTAnnotations[i]) }},
		{"model_annotation", len(f.ModelAnnotations), func(i int) error { return InsertModelAnnotation(tx, f.ModelAnnotations[i]) }},
	}
	for _, s := range steps {
		if err := step(s.kind, s.n, s.insert); err != nil {
			return 0, err
		}
	}
	return inserted, tx.Commit()
}
