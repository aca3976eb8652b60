package metrics

import (
	"fmt"
	"sort"
	"time"

	"inspectmetrics/internal/domain"
)

type AutoClassificationResponse struct {
	Total          int      `json:"total"`
	AutoClassified int      `json:"auto_classified"`
	Percentage     *float64 `json:"percentage"`
	Manual         *int     `json:"manual"`
	OnHold         *int     `json:"on_hold"`
}

type AutoClassificationTimeSeriesResponse struct {
	EffectiveDate time.Time `json:"effective_date"`
	AutoClassificationResponse
}

// FileAutoClassification counts a file as auto-classified when any one of
// its defects clears the model threshold.
func FileAutoClassification(records []domain.AnnotatedRecord) AutoClassificationResponse {
	var resp AutoClassificationResponse
	for _, fs := range FileStats(records) {
		resp.Total++
		if fs.AutoClassified {
			resp.AutoClassified++
		}
	}
	manual := resp.Total - resp.AutoClassified
	resp.Manual = &manual
	resp.Percentage = Percentage(resp.AutoClassified, resp.Total)
	return resp
}

// WaferAutoClassification counts wafers. On-hold wafers are reported apart
// from both auto-classified and manual ones.
func WaferAutoClassification(records []domain.AnnotatedRecord) AutoClassificationResponse {
	var resp AutoClassificationResponse
	onHold := 0
	for _, w := range WaferStats(records) {
		resp.Total++
		switch {
		case w.OnHold():
			onHold++
		case w.PassesAutoClassification():
			resp.AutoClassified++
		}
	}
	manual := max(resp.Total-resp.AutoClassified-onHold, 0)
	resp.Manual = &manual
	resp.OnHold = &onHold
	resp.Percentage = Percentage(resp.AutoClassified, resp.Total)
	return resp
}

func AutoClassification(records []domain.AnnotatedRecord, unit domain.Unit) (AutoClassificationResponse, error) {
	switch unit {
	case domain.UnitFile:
		return FileAutoClassification(records), nil
	case domain.UnitWafer:
		return WaferAutoClassification(records), nil
	default:
		return AutoClassificationResponse{}, fmt.Errorf("%w: %q", domain.ErrInvalidUnit, unit)
	}
}

func AutoClassificationTimeSeries(records []domain.AnnotatedRecord, unit domain.Unit) ([]AutoClassificationTimeSeriesResponse, error) {
	dates, groups := byDate(records)
	out := make([]AutoClassificationTimeSeriesResponse, 0, len(dates))
	for _, d := range dates {
		resp, err := AutoClassification(groups[d], unit)
		if err != nil {
			return nil, err
		}
		out = append(out, AutoClassificationTimeSeriesResponse{EffectiveDate: d, AutoClassificationResponse: resp})
	}
	return out, nil
}

// UseCaseAutoClassificationRow is one (use case, date) point, ready for
// nesting by the response assembler.
type UseCaseAutoClassificationRow struct {
	UseCaseID   int64
	UseCaseName string
	AutoClassificationTimeSeriesResponse
}

// UseCaseAutoClassificationTimeSeries returns rows sorted by use case id, then date.
func UseCaseAutoClassificationTimeSeries(records []domain.AnnotatedRecord, unit domain.Unit) ([]UseCaseAutoClassificationRow, error) {
	byUseCase := map[int64][]domain.AnnotatedRecord{}
	names := map[int64]string{}
	var ids []int64
	for _, r := range records {
		if _, ok := byUseCase[r.UseCaseID]; !ok {
			ids = append(ids, r.UseCaseID)
			names[r.UseCaseID] = r.UseCaseName
		}
		byUseCase[r.UseCaseID] = append(byUseCase[r.UseCaseID], r)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []UseCaseAutoClassificationRow
	for _, id := range ids {
		series, err := AutoClassificationTimeSeries(byUseCase[id], unit)
		if err != nil {
			return nil, err
		}
		for _, point := range series {
			out = append(out, UseCaseAutoClassificationRow{
				UseCaseID:                            id,
				UseCaseName:                          names[id],
				AutoClassificationTimeSeriesResponse: point,
			})
		}
	}
	return out, nil
}
