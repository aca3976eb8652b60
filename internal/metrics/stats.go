package metrics

import (
	"sort"
	"time"

	"inspectmetrics/internal/domain"
)

// FileStat folds every row of one file into the two atoms.
type FileStat struct {
	FileID            int64
	UseCaseID         int64
	UseCaseName       string
	UploadSessionID   int64
	UploadSessionName string
	WaferID           *int64
	EffectiveDate     time.Time

	GroundTruthed  bool
	ModelEvaluated bool
	AutoClassified bool // at least one row clears the threshold
	Accurate       bool // at least one row is accurate
}

// FileStats returns one entry per file, ordered by file id.
func FileStats(records []domain.AnnotatedRecord) []FileStat {
	byFile := map[int64]*FileStat{}
	var order []int64
	for _, r := range records {
		fs, ok := byFile[r.FileID]
		if !ok {
			fs = &FileStat{
				FileID:            r.FileID,
				UseCaseID:         r.UseCaseID,
				UseCaseName:       r.UseCaseName,
				UploadSessionID:   r.UploadSessionID,
				UploadSessionName: r.UploadSessionName,
				WaferID:           r.WaferID,
				EffectiveDate:     r.EffectiveDate,
			}
			byFile[r.FileID] = fs
			order = append(order, r.FileID)
		}
		fs.GroundTruthed = fs.GroundTruthed || r.GTPresent
		fs.ModelEvaluated = fs.ModelEvaluated || r.ModelPresent
		fs.AutoClassified = fs.AutoClassified || r.AutoClassified()
		fs.Accurate = fs.Accurate || r.Accurate()
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	out := make([]FileStat, 0, len(order))
	for _, id := range order {
		out = append(out, *byFile[id])
	}
	return out
}

// WaferStat is the first pass of every wafer-level roll-up.
type WaferStat struct {
	WaferID     int64
	WaferName   string
	WaferStatus string
	UseCaseID   int64
	UseCaseName string
	Threshold   *float64

	Files          int
	GroundTruthed  int
	AutoClassified int
	Matched        int

	AccuracyPercentage       *float64 // Matched / GroundTruthed
	AutoClassifiedPercentage *float64 // AutoClassified / Files
}

// PassesAccuracy reports whether the wafer's accuracy clears its threshold.
// Wafers without a threshold are not gated; wafers without reviewed files
// never pass.
func (w WaferStat) PassesAccuracy() bool {
	if w.AccuracyPercentage == nil {
		return false
	}
	if w.Threshold == nil {
		return true
	}
	return *w.AccuracyPercentage >= *w.Threshold
}

// PassesAutoClassification reports whether enough of the wafer's files were
// auto-classified. Without a threshold every file must be.
func (w WaferStat) PassesAutoClassification() bool {
	if w.AutoClassifiedPercentage == nil {
		return false
	}
	threshold := 100.0
	if w.Threshold != nil {
		threshold = *w.Threshold
	}
	return *w.AutoClassifiedPercentage >= threshold
}

func (w WaferStat) OnHold() bool { return w.WaferStatus == domain.WaferStatusOnHold }

// WaferStats computes the per-wafer pass over records, ordered by wafer id.
// Rows without a wafer are ignored. The result is fully materialized so the
// roll-up pass never sees a partial wafer.
func WaferStats(records []domain.AnnotatedRecord) []WaferStat {
	byWafer := map[int64]*WaferStat{}
	var order []int64
	for _, r := range records {
		if r.WaferID == nil {
			continue
		}
		if _, ok := byWafer[*r.WaferID]; !ok {
			byWafer[*r.WaferID] = &WaferStat{
				WaferID:     *r.WaferID,
				WaferName:   r.WaferName,
				WaferStatus: r.WaferStatus,
				UseCaseID:   r.UseCaseID,
				UseCaseName: r.UseCaseName,
				Threshold:   r.WaferThreshold,
			}
			order = append(order, *r.WaferID)
		}
	}
	for _, fs := range FileStats(records) {
		if fs.WaferID == nil {
			continue
		}
		w := byWafer[*fs.WaferID]
		w.Files++
		if fs.GroundTruthed {
			w.GroundTruthed++
		}
		if fs.AutoClassified {
			w.AutoClassified++
		}
		if fs.GroundTruthed && fs.Accurate {
			w.Matched++
		}
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	out := make([]WaferStat, 0, len(order))
	for _, id := range order {
		w := byWafer[id]
		w.AccuracyPercentage = Percentage(w.Matched, w.GroundTruthed)
		w.AutoClassifiedPercentage = Percentage(w.AutoClassified, w.Files)
		out = append(out, *w)
	}
	return out
}

// byDate splits records by effective date, in ascending date order.
func byDate(records []domain.AnnotatedRecord) ([]time.Time, map[time.Time][]domain.AnnotatedRecord) {
	groups := map[time.Time][]domain.AnnotatedRecord{}
	var dates []time.Time
	for _, r := range records {
		if _, ok := groups[r.EffectiveDate]; !ok {
			dates = append(dates, r.EffectiveDate)
		}
		groups[r.EffectiveDate] = append(groups[r.EffectiveDate], r)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, groups
}
