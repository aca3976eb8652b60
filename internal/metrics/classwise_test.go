package metrics

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"inspectmetrics/internal/domain"
)

type classwiseCounts struct {
	Total, Auto, Accurate, Missed, Extra, GT, Model int
}

func countsOf(r ClasswiseMetricsDefectLevelResponse) classwiseCounts {
	return classwiseCounts{r.Total, r.AutoClassified, r.Accurate, r.Missed, r.Extra, r.TotalGTDefects, r.TotalModelDefects}
}

func TestClasswise(t *testing.T) {
	records := []domain.AnnotatedRecord{
		reviewed(1, scratch, scratch, 0.9),  // accurate
		reviewed(2, scratch, particle, 0.9), // missed scratch, extra particle
		reviewed(3, scratch, scratch, 0.3),  // not auto-classified
		reviewed(4, particle, scratch, 0.9), // missed particle, extra scratch
		unreviewed(5, scratch, 0.9),         // ignored on both sides
	}
	got := Classwise(records)
	if len(got) != 2 || got[0].DefectID != scratch || got[1].DefectID != particle {
		t.Fatalf("expected rows for scratch and particle in id order, got %+v", got)
	}

	scratchRow, particleRow := got[0], got[1]
	if diff := cmp.Diff(classwiseCounts{Total: 3, Auto: 2, Accurate: 1, Missed: 1, Extra: 1, GT: 3, Model: 2}, countsOf(scratchRow)); diff != "" {
		t.Fatalf("scratch counts (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(classwiseCounts{Total: 1, Auto: 1, Accurate: 0, Missed: 1, Extra: 1, GT: 1, Model: 1}, countsOf(particleRow)); diff != "" {
		t.Fatalf("particle counts (-want +got):\n%s", diff)
	}
	if scratchRow.DefectName != "scratch" {
		t.Fatalf("expected defect name, got %q", scratchRow.DefectName)
	}

	assertPct(t, "scratch auto", scratchRow.AutoClassifiedPercentage, 200.0/3)
	assertPct(t, "scratch accuracy", scratchRow.AccuracyPercentage, 50)
	assertPct(t, "scratch recall", scratchRow.Recall, 100.0/3)
	assertPct(t, "scratch precision", scratchRow.Precision, 50)
	assertPct(t, "particle precision", particleRow.Precision, 0)
	assertPct(t, "particle extra", particleRow.ExtraPercentage, 100)
}

func TestClasswiseExtraPercentageDenominator(t *testing.T) {
	got := Classwise([]domain.AnnotatedRecord{
		reviewed(1, scratch, scratch, 0.9),
		reviewed(2, scratch, particle, 0.9),
		reviewed(3, scratch, scratch, 0.3),
		reviewed(4, particle, scratch, 0.9),
	})
	row := got[0]
	if row.Missed == 0 {
		t.Fatal("dataset must have missed > 0")
	}
	// extra/(extra+accurate) = 1/2, while auto_classified/total = 2/3.
	assertPct(t, "extra", row.ExtraPercentage, 50)
	if *row.ExtraPercentage == *row.AutoClassifiedPercentage {
		t.Fatalf("extra percentage should not share the auto-classification denominator")
	}
}

func TestClasswiseUnknownAndNilPercentages(t *testing.T) {
	noModel := reviewed(2, particle, domain.UnknownDefectID, 0)
	noModel.ModelPresent = false
	noModel.MLModelID = nil
	noModel.Confidence = nil
	noModel.ModelDefectName = ""

	got := Classwise([]domain.AnnotatedRecord{
		reviewed(1, domain.UnknownDefectID, domain.UnknownDefectID, 0.9),
		noModel,
	})
	if len(got) != 2 || got[0].DefectID != domain.UnknownDefectID || got[0].DefectName != domain.UnknownDefectName {
		t.Fatalf("expected Unknown row first, got %+v", got)
	}
	assertPct(t, "unknown recall", got[0].Recall, 100)

	// particle was reviewed but never evaluated by a model.
	particleRow := got[1]
	if particleRow.TotalGTDefects != 1 || particleRow.Total != 0 {
		t.Fatalf("unexpected particle counts: %+v", particleRow)
	}
	assertNil(t, "auto", particleRow.AutoClassifiedPercentage)
	assertNil(t, "accuracy", particleRow.AccuracyPercentage)
	assertNil(t, "precision", particleRow.Precision)
	assertNil(t, "extra", particleRow.ExtraPercentage)
	assertPct(t, "recall", particleRow.Recall, 0)
}

func TestClasswiseModelSideSkipsUnreviewedFiles(t *testing.T) {
	got := Classwise([]domain.AnnotatedRecord{
		reviewed(1, scratch, scratch, 0.9),
		unreviewed(2, scratch, 0.9),
		unreviewed(3, particle, 0.9),
	})
	for _, row := range got {
		switch row.DefectID {
		case scratch:
			if row.TotalModelDefects != 1 || row.Extra != 0 {
				t.Fatalf("unreviewed scratch prediction leaked into model side: %+v", row)
			}
			assertPct(t, "scratch precision", row.Precision, 100)
		case particle:
			if row.TotalModelDefects != 0 || row.Extra != 0 {
				t.Fatalf("unreviewed particle prediction leaked into model side: %+v", row)
			}
			assertNil(t, "particle precision", row.Precision)
		}
	}
}
