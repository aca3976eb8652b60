// Package projector flattens the file / file set / annotation graph into
// AnnotatedRecord rows.
package projector

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"

	"inspectmetrics/internal/domain"
	"inspectmetrics/internal/predicate"
)

type Query struct {
	// Entity selects files. It may reference every relation except ml_model.
	Entity predicate.Node
	// Model selects the participating models. Only ml_model fields are allowed.
	// Nil means every model of the file's use case.
	Model predicate.Node

	Unit         domain.Unit
	TimeFunction domain.TimeFunction
	Location     *time.Location
}

const baseJoins = `
	FROM files f
	JOIN file_sets fs ON fs.id = f.file_set_id
	JOIN use_cases uc ON uc.id = fs.use_case_id
	JOIN upload_sessions us ON us.id = fs.upload_session_id
	LEFT JOIN wafers w ON w.id = fs.wafer_id`

const recordColumns = `
	SELECT DISTINCT
		f.id, f.name, f.created_ts,
		fs.use_case_id, uc.name, fs.upload_session_id, us.name,
		fs.wafer_id, COALESCE(w.name, ''), COALESCE(w.status, ''), uc.wafer_threshold,
		CASE WHEN g.file_id IS NULL THEN 0 ELSE 1 END, g.defect_id, COALESCE(gd.name, ''),
		mm.id, mm.confidence_threshold,
		CASE WHEN ma.file_id IS NULL THEN 0 ELSE 1 END, ma.defect_id, COALESCE(md.name, ''), ma.confidence`

type compiled struct {
	entitySQL  string
	entityArgs []any
	modelSQL   string
	modelArgs  []any
	unitSQL    string
}

func compile(q Query) (compiled, error) {
	var c compiled
	switch q.Unit {
	case domain.UnitFile, "":
		c.unitSQL = "1=1"
	case domain.UnitWafer:
		c.unitSQL = "fs.wafer_id IS NOT NULL"
	default:
		return c, fmt.Errorf("%w: %q", domain.ErrInvalidUnit, q.Unit)
	}

	if slices.Contains(predicate.Relations(q.Entity), predicate.RelMLModel.Name) {
		return c, fmt.Errorf("%w: entity filters cannot reference ml_model fields", domain.ErrInvalidRequest)
	}
	for _, rel := range predicate.Relations(q.Model) {
		if rel != predicate.RelMLModel.Name {
			return c, fmt.Errorf("%w: model filters may only reference ml_model fields, got %s", domain.ErrInvalidRequest, rel)
		}
	}

	var err error
	if c.entitySQL, c.entityArgs, err = predicate.Compile(q.Entity); err != nil {
		return c, err
	}
	if c.modelSQL, c.modelArgs, err = predicate.Compile(q.Model); err != nil {
		return c, err
	}
	return c, nil
}

// checkThresholds fails with ErrMissingConfidenceThreshold when any model
// that would participate in the query has no confidence threshold configured.
func checkThresholds(ctx context.Context, db *sql.DB, c compiled) error {
	query := `SELECT DISTINCT mm.id, mm.name FROM ml_models mm
		WHERE mm.confidence_threshold IS NULL AND ` + c.modelSQL + `
		AND mm.use_case_id IN (SELECT fs.use_case_id` + baseJoins + `
			WHERE ` + c.entitySQL + ` AND ` + c.unitSQL + `)
		ORDER BY mm.id`
	args := append(slices.Clone(c.modelArgs), c.entityArgs...)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("check model thresholds: %w", err)
	}
	defer rows.Close()

	var missing []string
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return err
		}
		missing = append(missing, fmt.Sprintf("%s (id=%d)", name, id))
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrMissingConfidenceThreshold, strings.Join(missing, ", "))
	}
	return nil
}

// Stream yields the deduplicated records selected by q. The threshold check
// runs before the first row; any error is yielded once and ends the stream.
func Stream(ctx context.Context, db *sql.DB, q Query) iter.Seq2[domain.AnnotatedRecord, error] {
	return func(yield func(domain.AnnotatedRecord, error) bool) {
		c, err := compile(q)
		if err != nil {
			yield(domain.AnnotatedRecord{}, err)
			return
		}
		if err := checkThresholds(ctx, db, c); err != nil {
			yield(domain.AnnotatedRecord{}, err)
			return
		}

		query := recordColumns + baseJoins + `
			LEFT JOIN gt_annotations g ON g.file_id = f.id
			LEFT JOIN defects gd ON gd.id = g.defect_id
			LEFT JOIN ml_models mm ON mm.use_case_id = fs.use_case_id AND ` + c.modelSQL + `
			LEFT JOIN model_annotations ma ON ma.file_id = f.id AND ma.ml_model_id = mm.id
			LEFT JOIN defects md ON md.id = ma.defect_id
			WHERE ` + c.entitySQL + ` AND ` + c.unitSQL + `
			ORDER BY f.id, g.defect_id, mm.id, ma.defect_id`
		args := append(slices.Clone(c.modelArgs), c.entityArgs...)

		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(domain.AnnotatedRecord{}, fmt.Errorf("project records: %w", err))
			return
		}
		defer rows.Close()

		loc := q.Location
		if loc == nil {
			loc = time.UTC
		}
		for rows.Next() {
			r, err := scanRecord(rows, q.TimeFunction, loc)
			if err == nil && r.Confidence != nil && r.ConfidenceThreshold == nil {
				err = fmt.Errorf("%w: model %d on file %d", domain.ErrMissingConfidenceThreshold, *r.MLModelID, r.FileID)
			}
			if err != nil {
				yield(domain.AnnotatedRecord{}, err)
				return
			}
			if !yield(r, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(domain.AnnotatedRecord{}, err)
		}
	}
}

// Collect materializes Stream. Nothing is returned on error.
func Collect(ctx context.Context, db *sql.DB, q Query) ([]domain.AnnotatedRecord, error) {
	var out []domain.AnnotatedRecord
	for r, err := range Stream(ctx, db, q) {
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func scanRecord(rows *sql.Rows, fn domain.TimeFunction, loc *time.Location) (domain.AnnotatedRecord, error) {
	var (
		r                         domain.AnnotatedRecord
		createdTS                 time.Time
		waferID, gtDefect         sql.NullInt64
		modelID, modelDefect      sql.NullInt64
		waferThreshold, threshold sql.NullFloat64
		confidence                sql.NullFloat64
		gtPresent, modelPresent   int
	)
	err := rows.Scan(
		&r.FileID, &r.FileName, &createdTS,
		&r.UseCaseID, &r.UseCaseName, &r.UploadSessionID, &r.UploadSessionName,
		&waferID, &r.WaferName, &r.WaferStatus, &waferThreshold,
		&gtPresent, &gtDefect, &r.GTDefectName,
		&modelID, &threshold,
		&modelPresent, &modelDefect, &r.ModelDefectName, &confidence,
	)
	if err != nil {
		return r, err
	}
	r.GTPresent = gtPresent == 1
	r.ModelPresent = modelPresent == 1
	r.WaferID = nullInt(waferID)
	r.GTDefectID = nullInt(gtDefect)
	r.MLModelID = nullInt(modelID)
	r.ModelDefectID = nullInt(modelDefect)
	r.WaferThreshold = nullFloat(waferThreshold)
	r.ConfidenceThreshold = nullFloat(threshold)
	r.Confidence = nullFloat(confidence)
	r.EffectiveDate = fn.Truncate(createdTS.In(loc))
	return r, nil
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}
