// Package response reshapes flat metric rows into the nested shapes callers
// consume.
package response

import "inspectmetrics/internal/metrics"

type UseCaseAutoClassificationTimeSeriesResponse struct {
	UseCaseID      int64                                          `json:"use_case_id"`
	UseCaseName    string                                         `json:"use_case_name"`
	TimeSeriesData []metrics.AutoClassificationTimeSeriesResponse `json:"time_series_data"`
}

// NestByUseCase merges consecutive rows that share a use case into one entry.
// Rows must already be sorted by use case, then date; a use case that shows
// up again after another one starts a new entry.
func NestByUseCase(rows []metrics.UseCaseAutoClassificationRow) []UseCaseAutoClassificationTimeSeriesResponse {
	out := []UseCaseAutoClassificationTimeSeriesResponse{}
	var current *UseCaseAutoClassificationTimeSeriesResponse
	flush := func() {
		if current != nil {
			out = append(out, *current)
			current = nil
		}
	}
	for _, row := range rows {
		if current != nil && current.UseCaseID != row.UseCaseID {
			flush()
		}
		if current == nil {
			current = &UseCaseAutoClassificationTimeSeriesResponse{
				UseCaseID:   row.UseCaseID,
				UseCaseName: row.UseCaseName,
			}
		}
		current.TimeSeriesData = append(current.TimeSeriesData, row.AutoClassificationTimeSeriesResponse)
	}
	flush()
	return out
}
