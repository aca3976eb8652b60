package app

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"inspectmetrics/internal/cohort"
	"inspectmetrics/internal/format"
	"inspectmetrics/internal/metrics"
	"inspectmetrics/internal/predicate"
	"inspectmetrics/internal/response"
)

const dateLayout = "2006-01-02"

// metricCmd wires the shared request flags, opens the runtime and hands the
// built request to run.
func metricCmd(use, short string, rf *requestFlags, run func(ctx context.Context, rt *runtime, w io.Writer, rf *requestFlags) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			return run(cmd.Context(), rt, cmd.OutOrStdout(), rf)
		},
	}
	rf.register(cmd)
	return cmd
}

func newUseCasesCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "use-cases",
		Short: "List configured use cases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			ucs, err := rt.engine.UseCases(cmd.Context())
			if err != nil {
				return err
			}
			if g.format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), ucs)
			}
			tb := format.NewTable(format.ASCII)
			tb.Header("ID", "Name", "Type", "Wafer threshold")
			for _, uc := range ucs {
				tb.Row(uc.ID, uc.Name, uc.ClassificationType, format.Percent(uc.WaferThreshold))
			}
			tb.AlignRight(1)
			fmt.Fprintln(cmd.OutOrStdout(), tb.String())
			return nil
		},
	}
}

func newFieldsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "fields",
		Short: "List filterable field paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			type fieldInfo struct {
				Path      string `json:"path"`
				Relation  string `json:"relation"`
				Rangeable bool   `json:"rangeable"`
			}
			var infos []fieldInfo
			for _, path := range predicate.Paths() {
				f, err := predicate.Lookup(path)
				if err != nil {
					return err
				}
				infos = append(infos, fieldInfo{Path: f.Path, Relation: f.Relation.Name, Rangeable: f.Rangeable})
			}
			if g.format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), infos)
			}
			tb := format.NewTable(format.ASCII)
			tb.Header("Path", "Relation", "Range")
			for _, f := range infos {
				rng := ""
				if f.Rangeable {
					rng = f.Path + predicate.RangeSuffix
				}
				tb.Row(f.Path, f.Relation, rng)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tb.String())
			return nil
		},
	}
}

func newAccuracyCmd(g *globalFlags) *cobra.Command {
	rf := &requestFlags{}
	var series bool
	var level string
	cmd := metricCmd("accuracy", "Accuracy of auto-classified items", rf,
		func(ctx context.Context, rt *runtime, w io.Writer, rf *requestFlags) error {
			req, err := rf.build()
			if err != nil {
				return err
			}
			if level != "" {
				req.AccuracyLevel = level
			}
			if series {
				rows, err := rt.engine.AccuracyTimeSeries(ctx, req)
				if err != nil {
					return err
				}
				if g.format == formatJSON {
					return writeJSON(w, rows)
				}
				tb := format.NewTable(format.ASCII)
				tb.Header("Date", "Accurate", "Total", "Accuracy")
				for _, r := range rows {
					tb.Row(r.EffectiveDate.Format(dateLayout), r.Accurate, r.Total, format.Percent(r.Percentage))
				}
				tb.AlignRight(2, 3, 4)
				fmt.Fprintln(w, tb.String())
				return nil
			}
			resp, err := rt.engine.Accuracy(ctx, req)
			if err != nil {
				return err
			}
			if g.format == formatJSON {
				return writeJSON(w, resp)
			}
			fmt.Fprintf(w, "Accuracy: %s (%s)\n", format.Percent(resp.Percentage), format.Ratio(resp.Accurate, resp.Total))
			return nil
		})
	cmd.Flags().BoolVar(&series, "series", false, "Emit a time series bucketed by --time-function")
	cmd.Flags().StringVar(&level, "level", "", "File unit accuracy counting: defect (default) or file")
	return cmd
}

func newAutoClassCmd(g *globalFlags) *cobra.Command {
	rf := &requestFlags{}
	var series, byUseCase bool
	cmd := metricCmd("autoclass", "Share of items the model classified on its own", rf,
		func(ctx context.Context, rt *runtime, w io.Writer, rf *requestFlags) error {
			req, err := rf.build()
			if err != nil {
				return err
			}
			switch {
			case byUseCase:
				rows, err := rt.engine.UseCaseAutoClassificationTimeSeries(ctx, req)
				if err != nil {
					return err
				}
				if g.format == formatJSON {
					return writeJSON(w, rows)
				}
				renderUseCaseSeries(w, rows)
				return nil
			case series:
				rows, err := rt.engine.AutoClassificationTimeSeries(ctx, req)
				if err != nil {
					return err
				}
				if g.format == formatJSON {
					return writeJSON(w, rows)
				}
				tb := format.NewTable(format.ASCII)
				tb.Header("Date", "Auto", "Total", "Automation", "Manual", "On hold")
				for _, r := range rows {
					tb.Row(r.EffectiveDate.Format(dateLayout), r.AutoClassified, r.Total, format.Percent(r.Percentage),
						format.OptionalInt(r.Manual), format.OptionalInt(r.OnHold))
				}
				tb.AlignRight(2, 3, 4, 5, 6)
				fmt.Fprintln(w, tb.String())
				return nil
			}
			resp, err := rt.engine.AutoClassification(ctx, req)
			if err != nil {
				return err
			}
			if g.format == formatJSON {
				return writeJSON(w, resp)
			}
			fmt.Fprintf(w, "Automation: %s (%s)\n", format.Percent(resp.Percentage), format.Ratio(resp.AutoClassified, resp.Total))
			if resp.Manual != nil {
				fmt.Fprintf(w, "Manual: %d  On hold: %s\n", *resp.Manual, format.OptionalInt(resp.OnHold))
			}
			return nil
		})
	cmd.Flags().BoolVar(&series, "series", false, "Emit a time series bucketed by --time-function")
	cmd.Flags().BoolVar(&byUseCase, "by-use-case", false, "Emit one time series per use case")
	cmd.MarkFlagsMutuallyExclusive("series", "by-use-case")
	return cmd
}

func renderUseCaseSeries(w io.Writer, rows []response.UseCaseAutoClassificationTimeSeriesResponse) {
	tb := format.NewTable(format.ASCII)
	tb.Header("Use case", "Date", "Auto", "Total", "Automation")
	for _, uc := range rows {
		for _, p := range uc.TimeSeriesData {
			tb.Row(uc.UseCaseName, p.EffectiveDate.Format(dateLayout), p.AutoClassified, p.Total, format.Percent(p.Percentage))
		}
	}
	tb.AlignRight(3, 4, 5)
	fmt.Fprintln(w, tb.String())
}

func newDistributionCmd(g *globalFlags) *cobra.Command {
	rf := &requestFlags{}
	cmd := metricCmd("distribution", "Per-group totals and percentages", rf,
		func(ctx context.Context, rt *runtime, w io.Writer, rf *requestFlags) error {
			req, err := rf.build()
			if err != nil {
				return err
			}
			rows, err := rt.engine.Distribution(ctx, req)
			if err != nil {
				return err
			}
			if g.format == formatJSON {
				return writeJSON(w, rows)
			}
			renderDistribution(w, rows)
			return nil
		})
	rf.registerGrouping(cmd)
	return cmd
}

func renderDistribution(w io.Writer, rows []metrics.DistributionRow) {
	tb := format.NewTable(format.ASCII)
	tb.Header("ID", "Name", "Total", "Auto", "Accurate", "Automation", "Accuracy")
	for _, r := range rows {
		tb.Row(r.ID, r.Name, r.Total, r.AutoClassified, r.Accurate,
			format.Percent(r.AutoClassifiedPercentage), format.Percent(r.AccuracyPercentage))
	}
	tb.AlignRight(1, 3, 4, 5, 6, 7)
	fmt.Fprintln(w, tb.String())
}

func newCohortCmd(g *globalFlags) *cobra.Command {
	rf := &requestFlags{}
	cmd := metricCmd("cohort", "Bucket distribution rows into percentage cohorts", rf,
		func(ctx context.Context, rt *runtime, w io.Writer, rf *requestFlags) error {
			req, err := rf.build()
			if err != nil {
				return err
			}
			cohorts, err := rt.engine.Cohorts(ctx, req)
			if err != nil {
				return err
			}
			if g.format == formatJSON {
				return writeJSON(w, cohorts)
			}
			renderCohorts(w, cohorts)
			return nil
		})
	rf.registerGrouping(cmd)
	rf.registerCohorts(cmd)
	return cmd
}

func renderCohorts(w io.Writer, cohorts []cohort.Cohort) {
	tb := format.NewTable(format.ASCII)
	entity := "IDs"
	if len(cohorts) > 0 && cohorts[0].Entity != "" {
		entity = cohorts[0].Entity
	}
	tb.Header("Cohort", "Total", "Share", entity)
	for _, c := range cohorts {
		ids := make([]string, 0, len(c.IDs))
		for _, id := range c.IDs {
			ids = append(ids, fmt.Sprint(id))
		}
		share := c.Percentage
		tb.Row(c.Label, c.Total, format.Percent(&share), format.Join(ids))
	}
	tb.AlignRight(2, 3)
	fmt.Fprintln(w, tb.String())
}

func newClasswiseCmd(g *globalFlags) *cobra.Command {
	rf := &requestFlags{}
	return metricCmd("classwise", "Per-defect recall, precision and miss counts", rf,
		func(ctx context.Context, rt *runtime, w io.Writer, rf *requestFlags) error {
			req, err := rf.build()
			if err != nil {
				return err
			}
			rows, err := rt.engine.Classwise(ctx, req)
			if err != nil {
				return err
			}
			if g.format == formatJSON {
				return writeJSON(w, rows)
			}
			tb := format.NewTable(format.ASCII)
			tb.Header("Defect", "Total", "Auto", "Accurate", "Missed", "Extra", "Recall", "Precision", "Accuracy")
			for _, r := range rows {
				tb.Row(r.DefectName, r.Total, r.AutoClassified, r.Accurate, r.Missed, r.Extra,
					format.Percent(r.Recall), format.Percent(r.Precision), format.Percent(r.AccuracyPercentage))
			}
			tb.AlignRight(2, 3, 4, 5, 6, 7, 8, 9)
			fmt.Fprintln(w, tb.String())
			return nil
		})
}

func newConfusionCmd(g *globalFlags) *cobra.Command {
	rf := &requestFlags{}
	return metricCmd("confusion", "Ground truth vs model confusion matrix for one single-label use case", rf,
		func(ctx context.Context, rt *runtime, w io.Writer, rf *requestFlags) error {
			req, err := rf.build()
			if err != nil {
				return err
			}
			m, err := rt.engine.ConfusionMatrix(ctx, req)
			if err != nil {
				return err
			}
			if g.format == formatJSON {
				return writeJSON(w, m)
			}
			renderConfusion(w, m)
			return nil
		})
}

// renderConfusion prints one line per non-empty cell, ground truth rows in
// defect id order.
func renderConfusion(w io.Writer, m metrics.ConfusionMatrix) {
	gtIDs := make([]int64, 0, len(m))
	for id := range m {
		gtIDs = append(gtIDs, id)
	}
	slices.Sort(gtIDs)

	tb := format.NewTable(format.ASCII)
	tb.Header("Ground truth", "Model", "Count", "Rank", "Share", "Recall", "Precision")
	for _, gt := range gtIDs {
		row := m[gt]
		modelIDs := make([]int64, 0, len(row.ModelDefects))
		for id := range row.ModelDefects {
			modelIDs = append(modelIDs, id)
		}
		slices.Sort(modelIDs)
		for _, id := range modelIDs {
			cell := row.ModelDefects[id]
			if cell.MatchedCount == 0 {
				continue
			}
			tb.Row(row.Defect.Name, cell.Defect.Name, cell.MatchedCount, format.OptionalInt(cell.Rank),
				format.Percent(cell.RankPercentile), format.Percent(row.Recall), format.Percent(row.Precision))
		}
	}
	tb.AlignRight(3, 4, 5, 6, 7)
	fmt.Fprintln(w, tb.String())
}
