// Package engine wires request validation, the record projector and the
// metric families together.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"inspectmetrics/internal/cohort"
	"inspectmetrics/internal/domain"
	"inspectmetrics/internal/metrics"
	"inspectmetrics/internal/predicate"
	"inspectmetrics/internal/projector"
	"inspectmetrics/internal/response"
	"inspectmetrics/internal/storage/sqlite"
)

type Options struct {
	RankBreakpoints []float64
	Location        *time.Location
}

// Engine is safe for concurrent use: it holds only the database handle and
// immutable options.
type Engine struct {
	db          *sql.DB
	breakpoints []float64
	location    *time.Location
}

func New(db *sql.DB, opts Options) *Engine {
	bp := opts.RankBreakpoints
	if len(bp) == 0 {
		bp = metrics.DefaultRankBreakpoints
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{db: db, breakpoints: append([]float64(nil), bp...), location: loc}
}

type prepared struct {
	unit    domain.Unit
	records []domain.AnnotatedRecord
}

func (e *Engine) prepare(ctx context.Context, req Request) (prepared, error) {
	var p prepared
	if err := req.Validate(); err != nil {
		return p, err
	}
	unit, err := domain.ParseUnit(req.Unit)
	if err != nil {
		return p, err
	}
	tf, err := domain.ParseTimeFunction(req.TimeFunction)
	if err != nil {
		return p, err
	}
	ids, err := req.SelectedUseCases()
	if err != nil {
		return p, err
	}
	for _, id := range ids {
		if _, err := sqlite.GetUseCase(ctx, e.db, id); err != nil {
			return p, err
		}
	}
	entity, err := req.entityNode(e.location)
	if err != nil {
		return p, err
	}
	model, err := predicate.FromFilters(req.ModelFilters)
	if err != nil {
		return p, err
	}

	start := time.Now()
	records, err := projector.Collect(ctx, e.db, projector.Query{
		Entity:       entity,
		Model:        model,
		Unit:         unit,
		TimeFunction: tf,
		Location:     e.location,
	})
	if err != nil {
		return p, err
	}
	log.Printf("engine projected records=%d unit=%s elapsed=%s", len(records), unit, time.Since(start).Round(time.Millisecond))
	return prepared{unit: unit, records: records}, nil
}

func (e *Engine) Accuracy(ctx context.Context, req Request) (metrics.AccuracyResponse, error) {
	p, err := e.prepare(ctx, req)
	if err != nil {
		return metrics.AccuracyResponse{}, err
	}
	level, err := metrics.ParseAccuracyLevel(req.AccuracyLevel)
	if err != nil {
		return metrics.AccuracyResponse{}, err
	}
	return metrics.Accuracy(p.records, p.unit, level)
}

func (e *Engine) AccuracyTimeSeries(ctx context.Context, req Request) ([]metrics.AccuracyTimeSeriesResponse, error) {
	p, err := e.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	level, err := metrics.ParseAccuracyLevel(req.AccuracyLevel)
	if err != nil {
		return nil, err
	}
	return metrics.AccuracyTimeSeries(p.records, p.unit, level)
}

func (e *Engine) AutoClassification(ctx context.Context, req Request) (metrics.AutoClassificationResponse, error) {
	p, err := e.prepare(ctx, req)
	if err != nil {
		return metrics.AutoClassificationResponse{}, err
	}
	return metrics.AutoClassification(p.records, p.unit)
}

func (e *Engine) AutoClassificationTimeSeries(ctx context.Context, req Request) ([]metrics.AutoClassificationTimeSeriesResponse, error) {
	p, err := e.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return metrics.AutoClassificationTimeSeries(p.records, p.unit)
}

func (e *Engine) UseCaseAutoClassificationTimeSeries(ctx context.Context, req Request) ([]response.UseCaseAutoClassificationTimeSeriesResponse, error) {
	p, err := e.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	rows, err := metrics.UseCaseAutoClassificationTimeSeries(p.records, p.unit)
	if err != nil {
		return nil, err
	}
	return response.NestByUseCase(rows), nil
}

func (e *Engine) Distribution(ctx context.Context, req Request) ([]metrics.DistributionRow, error) {
	group, err := metrics.ParseGroupBy(req.GroupBy)
	if err != nil {
		return nil, err
	}
	p, err := e.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return metrics.Distribution(p.records, group, p.unit)
}

// Cohorts buckets the distribution rows of req by its cohort ranges.
func (e *Engine) Cohorts(ctx context.Context, req Request) ([]cohort.Cohort, error) {
	if req.CohortRanges == nil {
		return nil, fmt.Errorf("%w: cohort ranges are required", domain.ErrMissingFilterContext)
	}
	group, err := metrics.ParseGroupBy(req.GroupBy)
	if err != nil {
		return nil, err
	}
	rows, err := e.Distribution(ctx, req)
	if err != nil {
		return nil, err
	}
	fields := req.CohortFields
	if len(fields) == 0 {
		fields = DefaultCohortFields
	}
	return cohort.Bucketize(rows, group.Entity(), *req.CohortRanges, fields)
}

func (e *Engine) Classwise(ctx context.Context, req Request) ([]metrics.ClasswiseMetricsDefectLevelResponse, error) {
	p, err := e.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return metrics.Classwise(p.records), nil
}

// ConfusionMatrix requires the request to select exactly one single-label
// use case.
func (e *Engine) ConfusionMatrix(ctx context.Context, req Request) (metrics.ConfusionMatrix, error) {
	ids, err := req.SelectedUseCases()
	if err != nil {
		return nil, err
	}
	if len(ids) != 1 {
		return nil, fmt.Errorf("%w: confusion matrix needs exactly one use case, got %d", domain.ErrMissingFilterContext, len(ids))
	}
	uc, err := sqlite.GetUseCase(ctx, e.db, ids[0])
	if err != nil {
		return nil, err
	}
	if uc.ClassificationType != domain.SingleLabel {
		return nil, fmt.Errorf("%w: use case %q is %s, confusion matrix needs %s",
			domain.ErrMissingFilterContext, uc.Name, uc.ClassificationType, domain.SingleLabel)
	}
	p, err := e.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return metrics.Confusion(p.records, e.breakpoints), nil
}

// UseCases lists every configured use case.
func (e *Engine) UseCases(ctx context.Context) ([]domain.UseCase, error) {
	return sqlite.ListUseCases(ctx, e.db)
}
