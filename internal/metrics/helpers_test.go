package metrics

import (
	"math"
	"testing"
	"time"

	"inspectmetrics/internal/domain"
)

var (
	day1 = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
)

const (
	scratch  int64 = 10
	particle int64 = 11
	residue  int64 = 12
)

var defectNames = map[int64]string{scratch: "scratch", particle: "particle", residue: "residue"}

func defectPtr(d int64) *int64 {
	if d == domain.UnknownDefectID {
		return nil
	}
	return domain.Int64(d)
}

// reviewed builds a ground-truthed row with one model prediction. Pass
// domain.UnknownDefectID for a "no defect" verdict.
func reviewed(file, gt, model int64, confidence float64) domain.AnnotatedRecord {
	return domain.AnnotatedRecord{
		FileID:              file,
		GTPresent:           true,
		GTDefectID:          defectPtr(gt),
		GTDefectName:        defectNames[gt],
		ModelPresent:        true,
		MLModelID:           domain.Int64(1),
		ModelDefectID:       defectPtr(model),
		ModelDefectName:     defectNames[model],
		Confidence:          domain.Float64(confidence),
		ConfidenceThreshold: domain.Float64(0.5),
		UseCaseID:           1,
		UseCaseName:         "Etch",
		UploadSessionID:     5,
		UploadSessionName:   "folder-a",
		EffectiveDate:       day1,
	}
}

// unreviewed builds a row with a model prediction but no ground truth.
func unreviewed(file, model int64, confidence float64) domain.AnnotatedRecord {
	r := reviewed(file, domain.UnknownDefectID, model, confidence)
	r.GTPresent = false
	r.GTDefectName = ""
	return r
}

func onWafer(r domain.AnnotatedRecord, wafer int64, threshold *float64, status string) domain.AnnotatedRecord {
	r.WaferID = domain.Int64(wafer)
	r.WaferName = "W" + string(rune('0'+wafer))
	r.WaferThreshold = threshold
	r.WaferStatus = status
	return r
}

func assertPct(t *testing.T, name string, got *float64, want float64) {
	t.Helper()
	if got == nil {
		t.Fatalf("%s: expected %.4f, got nil", name, want)
	}
	if math.Abs(*got-want) > 1e-6 {
		t.Fatalf("%s: expected %.4f, got %.4f", name, want, *got)
	}
}

func assertNil(t *testing.T, name string, got *float64) {
	t.Helper()
	if got != nil {
		t.Fatalf("%s: expected nil, got %v", name, *got)
	}
}
