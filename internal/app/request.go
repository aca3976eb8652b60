package app

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"inspectmetrics/internal/cohort"
	"inspectmetrics/internal/engine"
)

// requestFlags are shared by every metric command. A --request file is read
// first; explicit flags override its fields.
type requestFlags struct {
	requestFile     string
	unit            string
	timeFunction    string
	useCases        []int64
	groupBy         string
	filters         []string
	modelFilters    []string
	ranges          []float64
	secondaryRanges []float64
	cohortFields    []string
}

func (rf *requestFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&rf.requestFile, "request", "", "JSON request file")
	f.StringVar(&rf.unit, "unit", "", "Unit of analysis: file or wafer (default file)")
	f.StringVar(&rf.timeFunction, "time-function", "", "Time series bucket: day, week or month")
	f.Int64SliceVar(&rf.useCases, "use-case", nil, "Use case id (repeatable)")
	f.StringArrayVar(&rf.filters, "filter", nil, "Entity filter path=v1,v2 (use path__range=lo,hi for ranges; see 'inspectmetrics fields')")
	f.StringArrayVar(&rf.modelFilters, "model-filter", nil, "Model filter path=v1,v2 on ml_model fields")
}

func (rf *requestFlags) registerGrouping(cmd *cobra.Command) {
	cmd.Flags().StringVar(&rf.groupBy, "group-by", "", "Grouping: use_case, wafer, defect or folder")
}

func (rf *requestFlags) registerCohorts(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64SliceVar(&rf.ranges, "ranges", nil, "Primary cohort boundaries in percent, ascending")
	f.Float64SliceVar(&rf.secondaryRanges, "secondary-ranges", nil, "Secondary cohort boundaries in percent, ascending")
	f.StringSliceVar(&rf.cohortFields, "cohort-field", nil, "Cohort metric field (up to 2)")
}

func (rf *requestFlags) build() (engine.Request, error) {
	var req engine.Request
	if rf.requestFile != "" {
		data, err := os.ReadFile(rf.requestFile)
		if err != nil {
			return req, fmt.Errorf("read request: %w", err)
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return req, fmt.Errorf("parse request %s: %w", rf.requestFile, err)
		}
	}

	if rf.unit != "" {
		req.Unit = rf.unit
	}
	if req.Unit == "" {
		req.Unit = "file"
	}
	if rf.timeFunction != "" {
		req.TimeFunction = rf.timeFunction
	}
	if rf.groupBy != "" {
		req.GroupBy = rf.groupBy
	}
	req.UseCaseIDs = append(req.UseCaseIDs, rf.useCases...)
	if len(rf.cohortFields) > 0 {
		req.CohortFields = rf.cohortFields
	}
	if len(rf.ranges) > 0 || len(rf.secondaryRanges) > 0 {
		req.CohortRanges = &cohort.Ranges{Primary: rf.ranges, Secondary: rf.secondaryRanges}
	}

	var err error
	if req.EntityFilters, err = mergeFilters(req.EntityFilters, rf.filters); err != nil {
		return req, err
	}
	if req.ModelFilters, err = mergeFilters(req.ModelFilters, rf.modelFilters); err != nil {
		return req, err
	}
	return req, nil
}

func mergeFilters(into map[string][]any, pairs []string) (map[string][]any, error) {
	for _, pair := range pairs {
		path, raw, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("invalid filter %q, want path=v1,v2", pair)
		}
		if into == nil {
			into = map[string][]any{}
		}
		var values []any
		for _, v := range strings.Split(raw, ",") {
			values = append(values, parseFilterValue(strings.TrimSpace(v)))
		}
		into[strings.TrimSpace(path)] = values
	}
	return into, nil
}

// parseFilterValue types a command line value: "null" is NULL, integers and
// floats are numbers, anything else stays a string.
func parseFilterValue(s string) any {
	if s == "null" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
