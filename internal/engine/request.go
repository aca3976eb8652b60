package engine

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"inspectmetrics/internal/cohort"
	"inspectmetrics/internal/domain"
	"inspectmetrics/internal/predicate"
)

var validate = validator.New()

// Request is the logical request shape shared by every metric family.
type Request struct {
	EntityFilters map[string][]any `json:"entity_filters,omitempty" yaml:"entity_filters"`
	ModelFilters  map[string][]any `json:"model_filters,omitempty" yaml:"model_filters"`

	Unit         string `json:"unit" yaml:"unit" validate:"required,oneof=wafer file"`
	TimeFunction string `json:"time_function,omitempty" yaml:"time_function" validate:"omitempty,oneof=day week month"`
	// AccuracyLevel is "defect" (default) or "file" for unit=file accuracy.
	AccuracyLevel string `json:"accuracy_level,omitempty" yaml:"accuracy_level" validate:"omitempty,oneof=defect file"`

	CohortRanges *cohort.Ranges `json:"cohort_ranges,omitempty" yaml:"cohort_ranges"`
	CohortFields []string       `json:"cohort_fields,omitempty" yaml:"cohort_fields" validate:"max=2,dive,oneof=total auto_classified accurate auto_classified_percentage accuracy_percentage"`
	GroupBy      string         `json:"group_by,omitempty" yaml:"group_by" validate:"omitempty,oneof=use_case wafer defect folder"`
	UseCaseIDs   []int64        `json:"use_case_ids,omitempty" yaml:"use_case_ids" validate:"dive,gt=0"`
}

// DefaultCohortFields bucket by accuracy first, then auto-classification.
var DefaultCohortFields = []string{"accuracy_percentage", "auto_classified_percentage"}

// Validate checks the struct tags. A bad unit wraps ErrInvalidUnit, every
// other failure wraps ErrInvalidRequest.
func (r *Request) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	var msgs []string
	for _, fe := range verrs {
		if fe.Field() == "Unit" {
			return fmt.Errorf("%w: %q (want wafer or file)", domain.ErrInvalidUnit, r.Unit)
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, strings.Join(msgs, "; "))
}

var useCaseFields = []string{"file_set.use_case_id", "use_case.id"}

// SelectedUseCases lists the use case ids the request pins down, either
// through UseCaseIDs or through a use case id filter, deduplicated and sorted.
func (r *Request) SelectedUseCases() ([]int64, error) {
	ids := slices.Clone(r.UseCaseIDs)
	for _, path := range useCaseFields {
		for _, v := range r.EntityFilters[path] {
			id, ok := toInt64(v)
			if !ok {
				return nil, fmt.Errorf("%w: %s value %v is not an id", domain.ErrInvalidRequest, path, v)
			}
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

// entityNode builds the entity predicate: the declarative filters And the
// use case restriction.
func (r *Request) entityNode(loc *time.Location) (predicate.Node, error) {
	filters, err := normalizeTimes(r.EntityFilters, loc)
	if err != nil {
		return nil, err
	}
	node, err := predicate.FromFilters(filters)
	if err != nil {
		return nil, err
	}
	if len(r.UseCaseIDs) == 0 {
		return node, nil
	}
	ids := make([]any, 0, len(r.UseCaseIDs))
	for _, id := range r.UseCaseIDs {
		ids = append(ids, id)
	}
	return predicate.And(node, predicate.In("file_set.use_case_id", ids...)), nil
}

const dateLayout = "2006-01-02"

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", dateLayout}

// normalizeTimes parses string bounds of file.created_ts ranges in loc and
// converts them to UTC, matching how timestamps are stored. A date-only upper
// bound covers that whole day.
func normalizeTimes(filters map[string][]any, loc *time.Location) (map[string][]any, error) {
	key := "file.created_ts" + predicate.RangeSuffix
	values, ok := filters[key]
	if !ok {
		return filters, nil
	}
	out := make(map[string][]any, len(filters))
	for k, v := range filters {
		out[k] = v
	}
	parsed := make([]any, len(values))
	for i, v := range values {
		switch t := v.(type) {
		case string:
			ts, dateOnly, err := parseTime(t, loc)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidRequest, key, err)
			}
			if dateOnly && i == 1 {
				ts = ts.AddDate(0, 0, 1).Add(-time.Nanosecond)
			}
			parsed[i] = ts.UTC()
		case time.Time:
			parsed[i] = t.UTC()
		default:
			parsed[i] = v
		}
	}
	out[key] = parsed
	return out, nil
}

func parseTime(s string, loc *time.Location) (t time.Time, dateOnly bool, err error) {
	for _, layout := range timeLayouts {
		t, err = time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, layout == dateLayout, nil
		}
	}
	return time.Time{}, false, err
}
