package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"inspectmetrics/internal/domain"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func InsertUseCase(db execer, uc domain.UseCase) error {
	ctype := uc.ClassificationType
	if ctype == "" {
		ctype = domain.SingleLabel
	}
	_, err := db.Exec(
		`INSERT INTO use_cases (id, name, classification_type, wafer_threshold) VALUES (?, ?, ?, ?)`,
		uc.ID, uc.Name, string(ctype), uc.WaferThreshold,
	)
	return err
}

func InsertDefect(db execer, d domain.Defect) error {
	_, err := db.Exec(`INSERT INTO defects (id, name, use_case_id) VALUES (?, ?, ?)`, d.ID, d.Name, d.UseCaseID)
	return err
}

func InsertUploadSession(db execer, s domain.UploadSession) error {
	_, err := db.Exec(`INSERT INTO upload_sessions (id, name, use_case_id) VALUES (?, ?, ?)`, s.ID, s.Name, s.UseCaseID)
	return err
}

func InsertWafer(db execer, w domain.Wafer) error {
	_, err := db.Exec(`INSERT INTO wafers (id, name, status) VALUES (?, ?, ?)`, w.ID, w.Name, w.Status)
	return err
}

func InsertFileSet(db execer, fs domain.FileSet) error {
	_, err := db.Exec(
		`INSERT INTO file_sets (id, upload_session_id, use_case_id, wafer_id) VALUES (?, ?, ?, ?)`,
		fs.ID, fs.UploadSessionID, fs.UseCaseID, fs.WaferID,
	)
	return err
}

func InsertFile(db execer, f domain.File) error {
	_, err := db.Exec(
		`INSERT INTO files (id, name, file_set_id, created_ts) VALUES (?, ?, ?, ?)`,
		f.ID, f.Name, f.FileSetID, f.CreatedTS.UTC(),
	)
	return err
}

func InsertMLModel(db execer, m domain.MLModel) error {
	_, err := db.Exec(
		`INSERT INTO ml_models (id, name, use_case_id, confidence_threshold) VALUES (?, ?, ?, ?)`,
		m.ID, m.Name, m.UseCaseID, m.ConfidenceThreshold,
	)
	return err
}

func InsertGTAnnotation(db execer, a domain.GTAnnotation) error {
	_, err := db.Exec(`INSERT INTO gt_annotations (file_id, defect_id) VALUES (?, ?)`, a.FileID, a.DefectID)
	return err
}

func InsertModelAnnotation(db execer, a domain.ModelAnnotation) error {
	_, err := db.Exec(
		`INSERT INTO model_annotations (file_id, ml_model_id, defect_id, confidence) VALUES (?, ?, ?, ?)`,
		a.FileID, a.MLModelID, a.DefectID, a.Confidence,
	)
	return err
}

func GetUseCase(ctx context.Context, db *sql.DB, id int64) (domain.UseCase, error) {
	var uc domain.UseCase
	var ctype string
	var threshold sql.NullFloat64
	err := db.QueryRowContext(ctx,
		`SELECT id, name, classification_type, wafer_threshold FROM use_cases WHERE id = ?`, id,
	).Scan(&uc.ID, &uc.Name, &ctype, &threshold)
	if errors.Is(err, sql.ErrNoRows) {
		return uc, fmt.Errorf("%w: id=%d", domain.ErrUndefinedUseCase, id)
	}
	if err != nil {
		return uc, err
	}
	uc.ClassificationType = domain.ClassificationType(ctype)
	if threshold.Valid {
		uc.WaferThreshold = &threshold.Float64
	}
	return uc, nil
}

func ListUseCases(ctx context.Context, db *sql.DB) ([]domain.UseCase, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, classification_type, wafer_threshold FROM use_cases ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.UseCase
	for rows.Next() {
		var uc domain.UseCase
		var ctype string
		var threshold sql.NullFloat64
		if err := rows.Scan(&uc.ID, &uc.Name, &ctype, &threshold); err != nil {
			return nil, err
		}
		uc.ClassificationType = domain.ClassificationType(ctype)
		if threshold.Valid {
			v := threshold.Float64
			uc.WaferThreshold = &v
		}
		out = append(out, uc)
	}
	return out, rows.Err()
}
