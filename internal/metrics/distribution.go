package metrics

import (
	"fmt"
	"sort"

	"inspectmetrics/internal/domain"
)

type GroupBy string

const (
	GroupByUseCase GroupBy = "use_case"
	GroupByWafer   GroupBy = "wafer"
	GroupByDefect  GroupBy = "defect"
	GroupByFolder  GroupBy = "folder"
)

func ParseGroupBy(s string) (GroupBy, error) {
	switch g := GroupBy(s); g {
	case GroupByUseCase, GroupByWafer, GroupByDefect, GroupByFolder:
		return g, nil
	case "":
		return GroupByUseCase, nil
	}
	return "", fmt.Errorf("%w: unknown group_by %q", domain.ErrInvalidRequest, s)
}

// Entity is the plural key the cohort output lists row ids under.
func (g GroupBy) Entity() string {
	switch g {
	case GroupByFolder:
		return "folders"
	default:
		return string(g) + "s"
	}
}

type DistributionRow struct {
	ID                       int64    `json:"id"`
	Name                     string   `json:"name"`
	Total                    int      `json:"total"`
	AutoClassified           int      `json:"auto_classified"`
	Accurate                 int      `json:"accurate"`
	AutoClassifiedPercentage *float64 `json:"auto_classified_percentage"`
	AccuracyPercentage       *float64 `json:"accuracy_percentage"`
}

// Value returns a numeric field of the row by its JSON name.
func (r DistributionRow) Value(field string) (*float64, error) {
	count := func(n int) *float64 { v := float64(n); return &v }
	switch field {
	case "total":
		return count(r.Total), nil
	case "auto_classified":
		return count(r.AutoClassified), nil
	case "accurate":
		return count(r.Accurate), nil
	case "auto_classified_percentage":
		return r.AutoClassifiedPercentage, nil
	case "accuracy_percentage":
		return r.AccuracyPercentage, nil
	}
	return nil, fmt.Errorf("%w: distribution field %q", domain.ErrUnknownField, field)
}

func (r DistributionRow) RowID() int64 { return r.ID }

func (r *DistributionRow) finish() {
	r.AutoClassifiedPercentage = Percentage(r.AutoClassified, r.Total)
	r.AccuracyPercentage = Percentage(r.Accurate, r.AutoClassified)
}

type distKey struct {
	id   int64
	name string
}

// Distribution groups records and counts files per group, ordered by group id.
// With unit wafer, use case groups count wafers and wafer groups count files;
// every other wafer combination is rejected.
func Distribution(records []domain.AnnotatedRecord, group GroupBy, unit domain.Unit) ([]DistributionRow, error) {
	switch unit {
	case domain.UnitFile:
	case domain.UnitWafer:
		if group == GroupByUseCase {
			return waferDistribution(records), nil
		}
		if group != GroupByWafer {
			return nil, fmt.Errorf("%w: unit wafer cannot be grouped by %s", domain.ErrInvalidRequest, group)
		}
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidUnit, unit)
	}
	if group == GroupByDefect {
		return defectDistribution(records), nil
	}

	var keyOf func(FileStat) (distKey, bool)
	names := map[int64]string{}
	switch group {
	case GroupByUseCase:
		keyOf = func(fs FileStat) (distKey, bool) { return distKey{fs.UseCaseID, fs.UseCaseName}, true }
	case GroupByFolder:
		keyOf = func(fs FileStat) (distKey, bool) {
			return distKey{fs.UploadSessionID, fs.UploadSessionName}, true
		}
	case GroupByWafer:
		for _, r := range records {
			if r.WaferID != nil {
				names[*r.WaferID] = r.WaferName
			}
		}
		keyOf = func(fs FileStat) (distKey, bool) {
			if fs.WaferID == nil {
				return distKey{}, false
			}
			return distKey{*fs.WaferID, names[*fs.WaferID]}, true
		}
	default:
		return nil, fmt.Errorf("%w: unknown group_by %q", domain.ErrInvalidRequest, group)
	}

	groups := map[int64]*DistributionRow{}
	for _, fs := range FileStats(records) {
		k, ok := keyOf(fs)
		if !ok {
			continue
		}
		row := groups[k.id]
		if row == nil {
			row = &DistributionRow{ID: k.id, Name: k.name}
			groups[k.id] = row
		}
		row.Total++
		if fs.AutoClassified {
			row.AutoClassified++
		}
		if fs.Accurate {
			row.Accurate++
		}
	}
	return sortedRows(groups), nil
}

// waferDistribution counts wafers per use case: a wafer is auto-classified
// when it passes its auto-classification threshold and accurate when it also
// passes its accuracy threshold.
func waferDistribution(records []domain.AnnotatedRecord) []DistributionRow {
	groups := map[int64]*DistributionRow{}
	for _, w := range WaferStats(records) {
		row := groups[w.UseCaseID]
		if row == nil {
			row = &DistributionRow{ID: w.UseCaseID, Name: w.UseCaseName}
			groups[w.UseCaseID] = row
		}
		row.Total++
		if w.PassesAutoClassification() {
			row.AutoClassified++
			if w.PassesAccuracy() {
				row.Accurate++
			}
		}
	}
	return sortedRows(groups)
}

// defectDistribution groups reviewed files by their ground truth defects. A
// file with several defects counts once in each group.
func defectDistribution(records []domain.AnnotatedRecord) []DistributionRow {
	type state struct{ auto, accurate bool }
	perFile := map[fileDefect]*state{}
	fileAuto := map[int64]bool{}
	names := map[int64]string{}
	for _, r := range records {
		fileAuto[r.FileID] = fileAuto[r.FileID] || r.AutoClassified()
		if !r.GTPresent {
			continue
		}
		k := fileDefect{r.FileID, r.GTKey()}
		names[k.defect] = r.GTName()
		s := perFile[k]
		if s == nil {
			s = &state{}
			perFile[k] = s
		}
		s.accurate = s.accurate || r.Accurate()
	}

	groups := map[int64]*DistributionRow{}
	for k, s := range perFile {
		row := groups[k.defect]
		if row == nil {
			row = &DistributionRow{ID: k.defect, Name: names[k.defect]}
			groups[k.defect] = row
		}
		row.Total++
		if fileAuto[k.file] {
			row.AutoClassified++
		}
		if s.accurate {
			row.Accurate++
		}
	}
	return sortedRows(groups)
}

func sortedRows(groups map[int64]*DistributionRow) []DistributionRow {
	out := make([]DistributionRow, 0, len(groups))
	for _, row := range groups {
		row.finish()
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
