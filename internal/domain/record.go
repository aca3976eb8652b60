package domain

import "time"

// AnnotatedRecord is one (file, ground truth defect, model defect) combination
// flattened out of the entity graph. Nil pointers mean "absent": a nil
// GTDefectID with GTPresent set is a reviewer's "no defect" verdict, while
// GTPresent=false means the file was never reviewed.
type AnnotatedRecord struct {
	FileID   int64
	FileName string

	GTPresent    bool
	GTDefectID   *int64
	GTDefectName string

	ModelPresent    bool
	MLModelID       *int64
	ModelDefectID   *int64
	ModelDefectName string
	Confidence      *float64

	ConfidenceThreshold *float64

	WaferID        *int64
	WaferName      string
	WaferThreshold *float64 // percentage, 0-100
	WaferStatus    string

	UseCaseID         int64
	UseCaseName       string
	UploadSessionID   int64
	UploadSessionName string

	EffectiveDate time.Time
}

// AutoClassified reports whether the model's prediction on this row clears
// the model's confidence threshold.
func (r AnnotatedRecord) AutoClassified() bool {
	if r.Confidence == nil || r.ConfidenceThreshold == nil {
		return false
	}
	return *r.Confidence >= *r.ConfidenceThreshold
}

// Accurate reports whether the row is auto-classified and the model agrees
// with the ground truth. Two "no defect" verdicts agree.
func (r AnnotatedRecord) Accurate() bool {
	if !r.GTPresent || !r.AutoClassified() {
		return false
	}
	return sameDefect(r.GTDefectID, r.ModelDefectID)
}

func sameDefect(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// UnknownDefectID is the sentinel id used for unlabeled defects in
// classwise and confusion matrix results.
const (
	UnknownDefectID   int64 = -1
	UnknownDefectName       = "Unknown"
)

// GTKey returns the ground truth defect id, or UnknownDefectID.
func (r AnnotatedRecord) GTKey() int64 {
	if r.GTDefectID == nil {
		return UnknownDefectID
	}
	return *r.GTDefectID
}

// ModelKey returns the model defect id, or UnknownDefectID.
func (r AnnotatedRecord) ModelKey() int64 {
	if r.ModelDefectID == nil {
		return UnknownDefectID
	}
	return *r.ModelDefectID
}

func (r AnnotatedRecord) GTName() string {
	if r.GTDefectID == nil {
		return UnknownDefectName
	}
	return r.GTDefectName
}

func (r AnnotatedRecord) ModelName() string {
	if r.ModelDefectID == nil {
		return UnknownDefectName
	}
	return r.ModelDefectName
}

// Int64 and Float64 return pointers to copies of v. Handy for fixtures.
func Int64(v int64) *int64       { return &v }
func Float64(v float64) *float64 { return &v }
