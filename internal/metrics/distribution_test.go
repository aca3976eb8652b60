package metrics

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"inspectmetrics/internal/domain"
)

func distributionRecords() []domain.AnnotatedRecord {
	litho := reviewed(4, scratch, scratch, 0.1)
	litho.UseCaseID, litho.UseCaseName = 2, "Litho"
	litho.UploadSessionID, litho.UploadSessionName = 6, "folder-b"
	return []domain.AnnotatedRecord{
		reviewed(1, scratch, scratch, 0.9),
		reviewed(2, particle, scratch, 0.9),
		unreviewed(3, particle, 0.2),
		litho,
	}
}

type distCounts struct {
	ID                     int64
	Name                   string
	Total, Auto, Accurate int
}

func distCountsOf(rows []DistributionRow) []distCounts {
	var out []distCounts
	for _, r := range rows {
		out = append(out, distCounts{r.ID, r.Name, r.Total, r.AutoClassified, r.Accurate})
	}
	return out
}

func TestDistributionByUseCase(t *testing.T) {
	rows, err := Distribution(distributionRecords(), GroupByUseCase, domain.UnitFile)
	if err != nil {
		t.Fatalf("Distribution failed: %v", err)
	}
	want := []distCounts{{1, "Etch", 3, 2, 1}, {2, "Litho", 1, 0, 0}}
	if diff := cmp.Diff(want, distCountsOf(rows)); diff != "" {
		t.Fatalf("unexpected rows (-want +got):\n%s", diff)
	}
	assertPct(t, "etch auto", rows[0].AutoClassifiedPercentage, 200.0/3)
	assertPct(t, "etch accuracy", rows[0].AccuracyPercentage, 50)
	assertPct(t, "litho auto", rows[1].AutoClassifiedPercentage, 0)
	assertNil(t, "litho accuracy", rows[1].AccuracyPercentage)
}

func TestDistributionByDefectAndFolder(t *testing.T) {
	rows, err := Distribution(distributionRecords(), GroupByDefect, domain.UnitFile)
	if err != nil {
		t.Fatalf("Distribution failed: %v", err)
	}
	want := []distCounts{{scratch, "scratch", 2, 1, 1}, {particle, "particle", 1, 1, 0}}
	if diff := cmp.Diff(want, distCountsOf(rows)); diff != "" {
		t.Fatalf("unexpected defect rows (-want +got):\n%s", diff)
	}

	rows, err = Distribution(distributionRecords(), GroupByFolder, domain.UnitFile)
	if err != nil {
		t.Fatalf("Distribution failed: %v", err)
	}
	want = []distCounts{{5, "folder-a", 3, 2, 1}, {6, "folder-b", 1, 0, 0}}
	if diff := cmp.Diff(want, distCountsOf(rows)); diff != "" {
		t.Fatalf("unexpected folder rows (-want +got):\n%s", diff)
	}
}

func TestDistributionWaferUnit(t *testing.T) {
	rows, err := Distribution(twoWafers(), GroupByUseCase, domain.UnitWafer)
	if err != nil {
		t.Fatalf("Distribution failed: %v", err)
	}
	want := []distCounts{{1, "Etch", 2, 2, 1}}
	if diff := cmp.Diff(want, distCountsOf(rows)); diff != "" {
		t.Fatalf("unexpected wafer rows (-want +got):\n%s", diff)
	}

	rows, err = Distribution(twoWafers(), GroupByWafer, domain.UnitWafer)
	if err != nil {
		t.Fatalf("Distribution failed: %v", err)
	}
	if len(rows) != 2 || rows[1].Total != 10 || rows[1].Accurate != 6 {
		t.Fatalf("unexpected per-wafer rows: %+v", rows)
	}

	if _, err := Distribution(twoWafers(), GroupByDefect, domain.UnitWafer); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestDistributionRowValue(t *testing.T) {
	row := DistributionRow{Total: 4, AutoClassified: 2}
	row.finish()
	v, err := row.Value("total")
	if err != nil || *v != 4 {
		t.Fatalf("expected total 4, got %v, %v", v, err)
	}
	v, err = row.Value("accuracy_percentage")
	if err != nil || v == nil || *v != 0 {
		t.Fatalf("expected 0 accuracy percentage, got %v, %v", v, err)
	}

	empty := DistributionRow{Total: 3}
	empty.finish()
	v, err = empty.Value("accuracy_percentage")
	if err != nil || v != nil {
		t.Fatalf("expected nil accuracy percentage without auto-classified items, got %v, %v", v, err)
	}
	if _, err := row.Value("bogus"); !errors.Is(err, domain.ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
	if _, err := ParseGroupBy("lot"); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
