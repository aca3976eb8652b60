package cohort

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"inspectmetrics/internal/domain"
)

type fakeRow struct {
	id     int64
	values map[string]*float64
}

func (r fakeRow) RowID() int64 { return r.id }

func (r fakeRow) Value(field string) (*float64, error) {
	v, ok := r.values[field]
	if !ok {
		return nil, domain.ErrUnknownField
	}
	return v, nil
}

func row(id int64, accuracy *float64) fakeRow {
	return fakeRow{id: id, values: map[string]*float64{"accuracy_percentage": accuracy}}
}

type summary struct {
	Label string
	Total int
	IDs   []int64
}

func summarize(cohorts []Cohort) []summary {
	var out []summary
	for _, c := range cohorts {
		out = append(out, summary{c.Label, c.Total, c.IDs})
	}
	return out
}

func TestBucketizeBoundaries(t *testing.T) {
	rows := []fakeRow{
		row(1, domain.Float64(50)),
		row(2, domain.Float64(49.999)),
		row(3, nil),
		row(4, domain.Float64(100)),
		row(5, domain.Float64(0)),
		row(6, domain.Float64(120)),
	}
	got, err := Bucketize(rows, "wafers", Ranges{Primary: []float64{0, 50, 100}}, []string{"accuracy_percentage"})
	if err != nil {
		t.Fatalf("Bucketize failed: %v", err)
	}
	want := []summary{
		{"50-100", 2, []int64{1, 4}},
		{"0-50", 2, []int64{2, 5}},
		{NotApplicable, 2, []int64{3, 6}},
	}
	if diff := cmp.Diff(want, summarize(got)); diff != "" {
		t.Fatalf("unexpected cohorts (-want +got):\n%s", diff)
	}
	if got[0].Percentage != 100.0*2/6 {
		t.Fatalf("unexpected percentage: %v", got[0].Percentage)
	}
}

func TestBucketizeTwoDimensions(t *testing.T) {
	rows := []fakeRow{
		{id: 1, values: map[string]*float64{"total": domain.Float64(5), "accuracy_percentage": domain.Float64(90)}},
		{id: 2, values: map[string]*float64{"total": domain.Float64(15), "accuracy_percentage": domain.Float64(10)}},
		{id: 3, values: map[string]*float64{"total": domain.Float64(15), "accuracy_percentage": nil}},
	}
	ranges := Ranges{Primary: []float64{0, 10, 20}, Secondary: []float64{0, 50, 100}}
	got, err := Bucketize(rows, "use_cases", ranges, []string{"total", "accuracy_percentage"})
	if err != nil {
		t.Fatalf("Bucketize failed: %v", err)
	}
	var labels []string
	for _, c := range got {
		labels = append(labels, c.Label)
	}
	wantLabels := []string{"10-20,50-100", "10-20,0-50", "0-10,50-100", "0-10,0-50", NotApplicable}
	if diff := cmp.Diff(wantLabels, labels); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
	if got[1].Total != 1 || got[2].Total != 1 || got[4].Total != 1 {
		t.Fatalf("unexpected totals: %+v", summarize(got))
	}
}

func TestBucketizeEmptyUsesZeroPercentage(t *testing.T) {
	got, err := Bucketize([]fakeRow{}, "wafers", Ranges{Primary: []float64{0, 0.5, 1}}, []string{"accuracy_percentage"})
	if err != nil {
		t.Fatalf("Bucketize failed: %v", err)
	}
	if len(got) != 3 || got[0].Label != "0.5-1" {
		t.Fatalf("unexpected cohorts: %+v", summarize(got))
	}
	for _, c := range got {
		if c.Percentage != 0 {
			t.Fatalf("expected 0 percentage on empty input, got %v", c.Percentage)
		}
	}
}

func TestBucketizeErrors(t *testing.T) {
	rows := []fakeRow{row(1, domain.Float64(1))}
	cases := []struct {
		name   string
		ranges Ranges
		fields []string
		want   error
	}{
		{"no ranges", Ranges{}, []string{"accuracy_percentage"}, domain.ErrMissingFilterContext},
		{"single boundary", Ranges{Primary: []float64{5}}, []string{"accuracy_percentage"}, domain.ErrInvalidRequest},
		{"descending", Ranges{Primary: []float64{5, 1}}, []string{"accuracy_percentage"}, domain.ErrInvalidRequest},
		{"missing field", Ranges{Primary: []float64{0, 1}, Secondary: []float64{0, 1}}, []string{"accuracy_percentage"}, domain.ErrInvalidRequest},
		{"unknown field", Ranges{Primary: []float64{0, 1}}, []string{"bogus"}, domain.ErrUnknownField},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Bucketize(rows, "wafers", tc.ranges, tc.fields)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCohortJSONUsesEntityKey(t *testing.T) {
	raw, err := json.Marshal(Cohort{Label: "0-50", Total: 1, Percentage: 50, Entity: "wafers", IDs: []int64{7}})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	want := map[string]any{"cohort": "0-50", "total": 1.0, "percentage": 50.0, "wafers": []any{7.0}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected JSON (-want +got):\n%s", diff)
	}

	raw, _ = json.Marshal(Cohort{Label: NotApplicable, Entity: "wafers"})
	if string(raw) != `{"cohort":"N/A","percentage":0,"total":0,"wafers":[]}` {
		t.Fatalf("unexpected empty cohort JSON: %s", raw)
	}
}
