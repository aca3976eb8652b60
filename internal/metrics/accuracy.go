package metrics

import (
	"fmt"
	"time"

	"inspectmetrics/internal/domain"
)

type AccuracyResponse struct {
	Total      int      `json:"total"`
	Accurate   int      `json:"accurate"`
	Percentage *float64 `json:"percentage"`
}

type AccuracyTimeSeriesResponse struct {
	EffectiveDate time.Time `json:"effective_date"`
	AccuracyResponse
}

type fileDefect struct {
	file   int64
	defect int64
}

// DefectAccuracy counts (file, defect) pairs: total over reviewed,
// auto-classified rows keyed by the ground truth defect, accurate over
// accurate rows keyed by the model defect.
func DefectAccuracy(records []domain.AnnotatedRecord) AccuracyResponse {
	total := map[fileDefect]struct{}{}
	accurate := map[fileDefect]struct{}{}
	for _, r := range records {
		if !r.GTPresent || !r.AutoClassified() {
			continue
		}
		total[fileDefect{r.FileID, r.GTKey()}] = struct{}{}
		if r.Accurate() {
			accurate[fileDefect{r.FileID, r.ModelKey()}] = struct{}{}
		}
	}
	return AccuracyResponse{
		Total:      len(total),
		Accurate:   len(accurate),
		Percentage: Percentage(len(accurate), len(total)),
	}
}

// FileAccuracy counts reviewed, auto-classified files; a file is accurate
// when at least one of its rows is.
func FileAccuracy(records []domain.AnnotatedRecord) AccuracyResponse {
	var resp AccuracyResponse
	for _, fs := range FileStats(records) {
		if !fs.GroundTruthed || !fs.AutoClassified {
			continue
		}
		resp.Total++
		if fs.Accurate {
			resp.Accurate++
		}
	}
	resp.Percentage = Percentage(resp.Accurate, resp.Total)
	return resp
}

// WaferAccuracy rolls up the reviewed files of every wafer whose accuracy
// reaches its use case's wafer threshold.
func WaferAccuracy(records []domain.AnnotatedRecord) AccuracyResponse {
	var resp AccuracyResponse
	for _, w := range WaferStats(records) {
		if !w.PassesAccuracy() {
			continue
		}
		resp.Total += w.GroundTruthed
		resp.Accurate += w.Matched
	}
	resp.Percentage = Percentage(resp.Accurate, resp.Total)
	return resp
}

// AccuracyLevel selects how unit=file accuracy counts: per (file, defect)
// pair or per file.
type AccuracyLevel string

const (
	AccuracyByDefect AccuracyLevel = "defect"
	AccuracyByFile   AccuracyLevel = "file"
)

func ParseAccuracyLevel(s string) (AccuracyLevel, error) {
	switch l := AccuracyLevel(s); l {
	case "":
		return AccuracyByDefect, nil
	case AccuracyByDefect, AccuracyByFile:
		return l, nil
	}
	return "", fmt.Errorf("%w: unknown accuracy level %q", domain.ErrInvalidRequest, s)
}

// Accuracy dispatches on unit: defect- or file-level for files, two-stage for
// wafers. Wafer accuracy always counts files, so level only applies to files.
func Accuracy(records []domain.AnnotatedRecord, unit domain.Unit, level AccuracyLevel) (AccuracyResponse, error) {
	switch unit {
	case domain.UnitFile:
		if level == AccuracyByFile {
			return FileAccuracy(records), nil
		}
		return DefectAccuracy(records), nil
	case domain.UnitWafer:
		return WaferAccuracy(records), nil
	default:
		return AccuracyResponse{}, fmt.Errorf("%w: %q", domain.ErrInvalidUnit, unit)
	}
}

func AccuracyTimeSeries(records []domain.AnnotatedRecord, unit domain.Unit, level AccuracyLevel) ([]AccuracyTimeSeriesResponse, error) {
	dates, groups := byDate(records)
	out := make([]AccuracyTimeSeriesResponse, 0, len(dates))
	for _, d := range dates {
		resp, err := Accuracy(groups[d], unit, level)
		if err != nil {
			return nil, err
		}
		out = append(out, AccuracyTimeSeriesResponse{EffectiveDate: d, AccuracyResponse: resp})
	}
	return out, nil
}
