package metrics

import (
	"sort"

	"inspectmetrics/internal/domain"
)

// DefaultRankBreakpoints splits misclassifications into the pairs covering
// the first 50%, the next slice up to 70%, and the remainder.
var DefaultRankBreakpoints = []float64{0.5, 0.7, 1.0}

const shareEpsilon = 1e-9

type Defect struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type ConfusionCell struct {
	Defect         Defect   `json:"defect"`
	MatchedCount   int      `json:"matched_count"`
	Rank           *int     `json:"rank"`
	RankPercentile *float64 `json:"rank_percentile"`
}

type ConfusionRow struct {
	Defect       Defect                  `json:"defect"`
	GTCount      int                     `json:"gt_count"`
	ModelCount   int                     `json:"model_count"`
	Recall       *float64                `json:"recall"`
	Precision    *float64                `json:"precision"`
	ModelDefects map[int64]ConfusionCell `json:"model_defects"`
}

// ConfusionMatrix is keyed by ground truth defect id.
type ConfusionMatrix map[int64]ConfusionRow

type pair struct{ gt, model int64 }

// Confusion counts distinct (file, gt, model) triples over reviewed,
// auto-classified rows. Off-diagonal cells are ranked by their cumulative
// share of all misclassifications against breakpoints; nil breakpoints use
// DefaultRankBreakpoints.
func Confusion(records []domain.AnnotatedRecord, breakpoints []float64) ConfusionMatrix {
	if breakpoints == nil {
		breakpoints = DefaultRankBreakpoints
	}

	type triple struct {
		file int64
		pair
	}
	seen := map[triple]struct{}{}
	counts := map[pair]int{}
	names := map[int64]string{}
	for _, r := range records {
		if !r.GTPresent || !r.ModelPresent || !r.AutoClassified() {
			continue
		}
		p := pair{r.GTKey(), r.ModelKey()}
		names[p.gt] = r.GTName()
		names[p.model] = r.ModelName()
		t := triple{r.FileID, p}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		counts[p]++
	}

	gtCount := map[int64]int{}
	modelCount := map[int64]int{}
	var offDiagonal []pair
	offTotal := 0
	for p, n := range counts {
		gtCount[p.gt] += n
		modelCount[p.model] += n
		if p.gt != p.model {
			offDiagonal = append(offDiagonal, p)
			offTotal += n
		}
	}

	matrix := ConfusionMatrix{}
	for d, name := range names {
		matrix[d] = ConfusionRow{
			Defect:       Defect{ID: d, Name: name},
			GTCount:      gtCount[d],
			ModelCount:   modelCount[d],
			Recall:       Percentage(counts[pair{d, d}], gtCount[d]),
			Precision:    Percentage(counts[pair{d, d}], modelCount[d]),
			ModelDefects: map[int64]ConfusionCell{},
		}
	}
	for p, n := range counts {
		if p.gt == p.model {
			matrix[p.gt].ModelDefects[p.model] = ConfusionCell{
				Defect:       Defect{ID: p.model, Name: names[p.model]},
				MatchedCount: n,
			}
		}
	}

	sort.Slice(offDiagonal, func(i, j int) bool {
		a, b := offDiagonal[i], offDiagonal[j]
		if counts[a] != counts[b] {
			return counts[a] > counts[b]
		}
		if a.gt != b.gt {
			return a.gt < b.gt
		}
		return a.model < b.model
	})
	idx, cumulative := 0, 0
	for _, p := range offDiagonal {
		cumulative += counts[p]
		share := float64(cumulative) / float64(offTotal)
		rank := idx
		percentile := 100 * share
		matrix[p.gt].ModelDefects[p.model] = ConfusionCell{
			Defect:         Defect{ID: p.model, Name: names[p.model]},
			MatchedCount:   counts[p],
			Rank:           &rank,
			RankPercentile: &percentile,
		}
		for idx < len(breakpoints)-1 && share >= breakpoints[idx]-shareEpsilon {
			idx++
		}
	}
	return matrix
}
