// Package cohort partitions distribution rows into one- or two-dimensional
// numeric range buckets.
package cohort

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"inspectmetrics/internal/domain"
)

// NotApplicable collects rows whose metric is missing or outside every range.
const NotApplicable = "N/A"

// Row is anything that can be bucketed: an id and named numeric fields.
type Row interface {
	RowID() int64
	Value(field string) (*float64, error)
}

type Ranges struct {
	Primary   []float64 `json:"primary" yaml:"primary"`
	Secondary []float64 `json:"secondary,omitempty" yaml:"secondary,omitempty"`
}

type Cohort struct {
	Label      string
	Total      int
	Percentage float64
	// Entity names the id list in JSON, e.g. "wafers".
	Entity string
	IDs    []int64
}

func (c Cohort) MarshalJSON() ([]byte, error) {
	ids := c.IDs
	if ids == nil {
		ids = []int64{}
	}
	entity := c.Entity
	if entity == "" {
		entity = "ids"
	}
	return json.Marshal(map[string]any{
		"cohort":     c.Label,
		"total":      c.Total,
		"percentage": c.Percentage,
		entity:       ids,
	})
}

type interval struct {
	lo, hi float64
	closed bool
}

func (iv interval) contains(v float64) bool {
	if v < iv.lo {
		return false
	}
	if iv.closed {
		return v <= iv.hi
	}
	return v < iv.hi
}

func (iv interval) label() string {
	return strconv.FormatFloat(iv.lo, 'f', -1, 64) + "-" + strconv.FormatFloat(iv.hi, 'f', -1, 64)
}

type dimension struct {
	field     string
	intervals []interval
}

func (d dimension) index(row Row) (int, error) {
	v, err := row.Value(d.field)
	if err != nil || v == nil {
		return -1, err
	}
	for i, iv := range d.intervals {
		if iv.contains(*v) {
			return i, nil
		}
	}
	return -1, nil
}

func newDimension(field string, bounds []float64) (dimension, error) {
	if len(bounds) < 2 {
		return dimension{}, fmt.Errorf("%w: range list for %q needs at least 2 boundaries", domain.ErrInvalidRequest, field)
	}
	d := dimension{field: field}
	for i := 0; i+1 < len(bounds); i++ {
		if bounds[i] >= bounds[i+1] {
			return dimension{}, fmt.Errorf("%w: range boundaries for %q must be strictly ascending", domain.ErrInvalidRequest, field)
		}
		d.intervals = append(d.intervals, interval{lo: bounds[i], hi: bounds[i+1], closed: i+2 == len(bounds)})
	}
	return d, nil
}

// Bucketize assigns every row to exactly one cohort. fields[0] is bucketed
// by ranges.Primary and fields[1] by ranges.Secondary. Cohorts are returned
// in reverse construction order with N/A last.
func Bucketize[R Row](rows []R, entity string, ranges Ranges, fields []string) ([]Cohort, error) {
	lists := [][]float64{ranges.Primary, ranges.Secondary}
	var dims []dimension
	for i, bounds := range lists {
		if len(bounds) == 0 {
			continue
		}
		if i >= len(fields) || fields[i] == "" {
			return nil, fmt.Errorf("%w: no cohort field for range list %d", domain.ErrInvalidRequest, i+1)
		}
		d, err := newDimension(fields[i], bounds)
		if err != nil {
			return nil, err
		}
		dims = append(dims, d)
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("%w: cohort ranges are empty", domain.ErrMissingFilterContext)
	}

	// Construction order: primary outer, secondary inner.
	var cohorts []*Cohort
	index := map[string]*Cohort{}
	var build func(depth int, labels []string)
	build = func(depth int, labels []string) {
		if depth == len(dims) {
			c := &Cohort{Label: strings.Join(labels, ","), Entity: entity}
			cohorts = append(cohorts, c)
			index[c.Label] = c
			return
		}
		for _, iv := range dims[depth].intervals {
			build(depth+1, append(slices.Clone(labels), iv.label()))
		}
	}
	build(0, nil)
	na := &Cohort{Label: NotApplicable, Entity: entity}

	for _, row := range rows {
		target := na
		labels := make([]string, 0, len(dims))
		for _, d := range dims {
			i, err := d.index(row)
			if err != nil {
				return nil, err
			}
			if i < 0 {
				labels = nil
				break
			}
			labels = append(labels, d.intervals[i].label())
		}
		if labels != nil {
			target = index[strings.Join(labels, ",")]
		}
		target.Total++
		target.IDs = append(target.IDs, row.RowID())
	}

	out := make([]Cohort, 0, len(cohorts)+1)
	for i := len(cohorts) - 1; i >= 0; i-- {
		out = append(out, *cohorts[i])
	}
	out = append(out, *na)
	for i := range out {
		if len(rows) > 0 {
			out[i].Percentage = 100 * float64(out[i].Total) / float64(len(rows))
		}
	}
	return out, nil
}
