package domain

import "time"

type ClassificationType string

const (
	SingleLabel ClassificationType = "SINGLE_LABEL"
	MultiLabel  ClassificationType = "MULTI_LABEL"
)

type UseCase struct {
	ID                 int64              `yaml:"id"`
	Name               string             `yaml:"name"`
	ClassificationType ClassificationType `yaml:"classification_type"`
	WaferThreshold     *float64           `yaml:"wafer_threshold"` // percentage, 0-100
}

type Defect struct {
	ID        int64  `yaml:"id"`
	Name      string `yaml:"name"`
	UseCaseID int64  `yaml:"use_case_id"`
}

type UploadSession struct {
	ID        int64  `yaml:"id"`
	Name      string `yaml:"name"`
	UseCaseID int64  `yaml:"use_case_id"`
}

const (
	WaferStatusAutoClassified = "auto_classified"
	WaferStatusManual         = "manual_classification_pending"
	WaferStatusOnHold         = "on_hold"
)

type Wafer struct {
	ID     int64  `yaml:"id"`
	Name   string `yaml:"name"`
	Status string `yaml:"status"`
}

type FileSet struct {
	ID              int64  `yaml:"id"`
	UploadSessionID int64  `yaml:"upload_session_id"`
	UseCaseID       int64  `yaml:"use_case_id"`
	WaferID         *int64 `yaml:"wafer_id"`
}

type File struct {
	ID        int64     `yaml:"id"`
	Name      string    `yaml:"name"`
	FileSetID int64     `yaml:"file_set_id"`
	CreatedTS time.Time `yaml:"created_ts"`
}

type MLModel struct {
	ID                  int64    `yaml:"id"`
	Name                string   `yaml:"name"`
	UseCaseID           int64    `yaml:"use_case_id"`
	ConfidenceThreshold *float64 `yaml:"confidence_threshold"`
}

// GTAnnotation is a reviewer label. A nil DefectID records "no defect".
type GTAnnotation struct {
	FileID   int64  `yaml:"file_id"`
	DefectID *int64 `yaml:"defect_id"`
}

type ModelAnnotation struct {
	FileID     int64   `yaml:"file_id"`
	MLModelID  int64   `yaml:"ml_model_id"`
	DefectID   *int64  `yaml:"defect_id"`
	Confidence float64 `yaml:"confidence"`
}
