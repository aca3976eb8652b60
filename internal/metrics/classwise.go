package metrics

import (
	"sort"

	"inspectmetrics/internal/domain"
)

type ClasswiseMetricsDefectLevelResponse struct {
	DefectID   int64  `json:"defect_id"`
	DefectName string `json:"defect_name"`

	Total             int `json:"total"`
	AutoClassified    int `json:"auto_classified"`
	Accurate          int `json:"accurate"`
	Missed            int `json:"missed"`
	Extra             int `json:"extra"`
	TotalGTDefects    int `json:"total_gt_defects"`
	TotalModelDefects int `json:"total_model_defects"`

	AutoClassifiedPercentage *float64 `json:"auto_classified_percentage"`
	AccuracyPercentage       *float64 `json:"accuracy_percentage"`
	Recall                   *float64 `json:"recall"`
	Precision                *float64 `json:"precision"`
	ExtraPercentage          *float64 `json:"extra_percentage"`
}

type defectSet map[int64]struct{}

func (s defectSet) has(d int64) bool { _, ok := s[d]; return ok }

type classwiseFile struct {
	groundTruthed  bool
	modelEvaluated bool
	auto           bool
	gt             defectSet
	confident      defectSet
}

// Classwise computes one row per defect seen on either side, ordered by
// defect id. Unlabeled defects are reported under UnknownDefectID.
func Classwise(records []domain.AnnotatedRecord) []ClasswiseMetricsDefectLevelResponse {
	files := map[int64]*classwiseFile{}
	names := map[int64]string{}
	for _, r := range records {
		f := files[r.FileID]
		if f == nil {
			f = &classwiseFile{gt: defectSet{}, confident: defectSet{}}
			files[r.FileID] = f
		}
		f.modelEvaluated = f.modelEvaluated || r.ModelPresent
		if r.GTPresent {
			f.groundTruthed = true
			f.gt[r.GTKey()] = struct{}{}
			names[r.GTKey()] = r.GTName()
		}
		if r.ModelPresent {
			names[r.ModelKey()] = r.ModelName()
		}
		if r.AutoClassified() {
			f.auto = true
			f.confident[r.ModelKey()] = struct{}{}
		}
	}

	rows := map[int64]*ClasswiseMetricsDefectLevelResponse{}
	row := func(d int64) *ClasswiseMetricsDefectLevelResponse {
		if rows[d] == nil {
			rows[d] = &ClasswiseMetricsDefectLevelResponse{DefectID: d, DefectName: names[d]}
		}
		return rows[d]
	}
	for _, f := range files {
		for d := range f.gt {
			r := row(d)
			r.TotalGTDefects++
			if !f.modelEvaluated {
				continue
			}
			r.Total++
			if f.auto {
				r.AutoClassified++
			}
			if f.confident.has(d) {
				r.Accurate++
			}
		}
		// The model side only counts files a reviewer has checked.
		if !f.groundTruthed {
			continue
		}
		for d := range f.confident {
			r := row(d)
			r.TotalModelDefects++
			if !f.gt.has(d) {
				r.Extra++
			}
		}
	}
	for d := range names {
		row(d)
	}

	out := make([]ClasswiseMetricsDefectLevelResponse, 0, len(rows))
	for _, r := range rows {
		r.Missed = r.AutoClassified - r.Accurate
		r.AutoClassifiedPercentage = Percentage(r.AutoClassified, r.Total)
		r.AccuracyPercentage = Percentage(r.Accurate, r.AutoClassified)
		r.Recall = Percentage(r.Accurate, r.TotalGTDefects)
		r.Precision = Percentage(r.Accurate, r.TotalModelDefects)
		r.ExtraPercentage = Percentage(r.Extra, r.Extra+r.Accurate)
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DefectID < out[j].DefectID })
	return out
}
