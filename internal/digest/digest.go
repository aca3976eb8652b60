// Package digest computes a periodic quality digest per use case, renders it
// as Markdown and publishes it.
package digest

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"inspectmetrics/internal/config"
	"inspectmetrics/internal/domain"
	"inspectmetrics/internal/engine"
	"inspectmetrics/internal/format"
	"inspectmetrics/internal/metrics"
)

const topMissesPerUseCase = 3

// Source is the slice of the engine the digest reads from.
type Source interface {
	UseCases(ctx context.Context) ([]domain.UseCase, error)
	AutoClassification(ctx context.Context, req engine.Request) (metrics.AutoClassificationResponse, error)
	Accuracy(ctx context.Context, req engine.Request) (metrics.AccuracyResponse, error)
	Classwise(ctx context.Context, req engine.Request) ([]metrics.ClasswiseMetricsDefectLevelResponse, error)
}

type UseCaseSummary struct {
	UseCase            domain.UseCase
	AutoClassification metrics.AutoClassificationResponse
	Accuracy           metrics.AccuracyResponse
	TopMisses          []metrics.ClasswiseMetricsDefectLevelResponse
}

type Digest struct {
	From, To  time.Time
	Unit      domain.Unit
	UseCases  []UseCaseSummary
	Narrative string
}

// Build computes the digest for the window ending at now. Use cases are
// computed concurrently; each one is an independent read.
func Build(ctx context.Context, src Source, cfg config.Config, now time.Time) (*Digest, error) {
	unit, err := domain.ParseUnit(cfg.DigestUnit)
	if err != nil {
		return nil, err
	}
	useCases, err := selectUseCases(ctx, src, cfg.DigestUseCaseIDs)
	if err != nil {
		return nil, err
	}

	d := &Digest{
		From:     now.AddDate(0, 0, -cfg.DigestLookbackDays),
		To:       now,
		Unit:     unit,
		UseCases: make([]UseCaseSummary, len(useCases)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, uc := range useCases {
		g.Go(func() error {
			req := engine.Request{
				Unit:         string(unit),
				TimeFunction: cfg.DigestTimeFunction,
				UseCaseIDs:   []int64{uc.ID},
				EntityFilters: map[string][]any{
					"file.created_ts__range": {d.From, d.To},
				},
			}
			s := UseCaseSummary{UseCase: uc}
			var err error
			if s.AutoClassification, err = src.AutoClassification(gctx, req); err != nil {
				return fmt.Errorf("use case %s: auto-classification: %w", uc.Name, err)
			}
			if s.Accuracy, err = src.Accuracy(gctx, req); err != nil {
				return fmt.Errorf("use case %s: accuracy: %w", uc.Name, err)
			}
			rows, err := src.Classwise(gctx, req)
			if err != nil {
				return fmt.Errorf("use case %s: classwise: %w", uc.Name, err)
			}
			s.TopMisses = topMisses(rows, topMissesPerUseCase)
			d.UseCases[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

// selectUseCases returns the configured use cases in id order, or every use
// case when none are configured.
func selectUseCases(ctx context.Context, src Source, ids []int64) ([]domain.UseCase, error) {
	all, err := src.UseCases(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if len(ids) == 0 {
		return all, nil
	}
	byID := make(map[int64]domain.UseCase, len(all))
	for _, uc := range all {
		byID[uc.ID] = uc
	}
	wanted := slices.Clone(ids)
	slices.Sort(wanted)
	wanted = slices.Compact(wanted)
	out := make([]domain.UseCase, 0, len(wanted))
	for _, id := range wanted {
		uc, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: id=%d", domain.ErrUndefinedUseCase, id)
		}
		out = append(out, uc)
	}
	return out, nil
}

// topMisses returns up to n defects with the most missed files, most first.
func topMisses(rows []metrics.ClasswiseMetricsDefectLevelResponse, n int) []metrics.ClasswiseMetricsDefectLevelResponse {
	var out []metrics.ClasswiseMetricsDefectLevelResponse
	for _, r := range rows {
		if r.Missed > 0 {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Missed != out[j].Missed {
			return out[i].Missed > out[j].Missed
		}
		return out[i].DefectID < out[j].DefectID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func (d *Digest) Title() string {
	return fmt.Sprintf("Inspection quality digest %s", d.To.Format("2006-01-02"))
}

// Markdown renders the digest with one table row per use case.
func (d *Digest) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", d.Title())
	fmt.Fprintf(&b, "_Window: %s to %s, unit: %s_\n\n", d.From.Format("2006-01-02"), d.To.Format("2006-01-02"), d.Unit)
	if d.Narrative != "" {
		b.WriteString(d.Narrative)
		b.WriteString("\n\n")
	}
	if len(d.UseCases) == 0 {
		b.WriteString("No use cases configured.\n")
		return b.String()
	}

	tb := format.NewTable(format.Markdown)
	tb.Header("Use case", "Auto-classified", "Automation", "Accurate", "Accuracy", "Top missed defects")
	for _, s := range d.UseCases {
		tb.Row(
			s.UseCase.Name,
			format.Ratio(s.AutoClassification.AutoClassified, s.AutoClassification.Total),
			format.Percent(s.AutoClassification.Percentage),
			format.Ratio(s.Accuracy.Accurate, s.Accuracy.Total),
			format.Percent(s.Accuracy.Percentage),
			format.Join(missLabels(s.TopMisses)),
		)
	}
	tb.AlignRight(2, 3, 4, 5)
	b.WriteString(tb.String())
	b.WriteString("\n")
	return b.String()
}

// Lines renders one Slack mrkdwn line per use case.
func (d *Digest) Lines() []string {
	lines := make([]string, 0, len(d.UseCases))
	for _, s := range d.UseCases {
		line := fmt.Sprintf("*%s*: automation %s (%s), accuracy %s (%s)",
			s.UseCase.Name,
			format.Percent(s.AutoClassification.Percentage),
			format.Ratio(s.AutoClassification.AutoClassified, s.AutoClassification.Total),
			format.Percent(s.Accuracy.Percentage),
			format.Ratio(s.Accuracy.Accurate, s.Accuracy.Total),
		)
		if misses := missLabels(s.TopMisses); len(misses) > 0 {
			line += ", most missed: " + strings.Join(misses, ", ")
		}
		lines = append(lines, line)
	}
	return lines
}

func missLabels(rows []metrics.ClasswiseMetricsDefectLevelResponse) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, fmt.Sprintf("%s (%d)", r.DefectName, r.Missed))
	}
	return out
}
