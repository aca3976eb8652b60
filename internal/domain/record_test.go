package domain

import "testing"

func TestAutoClassified(t *testing.T) {
	tests := []struct {
		name       string
		confidence *float64
		threshold  *float64
		want       bool
	}{
		{"above threshold", Float64(0.9), Float64(0.8), true},
		{"equal to threshold", Float64(0.8), Float64(0.8), true},
		{"below threshold", Float64(0.79), Float64(0.8), false},
		{"no confidence", nil, Float64(0.8), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := AnnotatedRecord{Confidence: tt.confidence, ConfidenceThreshold: tt.threshold}
			if got := r.AutoClassified(); got != tt.want {
				t.Fatalf("AutoClassified() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccurate(t *testing.T) {
	base := AnnotatedRecord{
		GTPresent:           true,
		ModelPresent:        true,
		Confidence:          Float64(0.95),
		ConfidenceThreshold: Float64(0.5),
	}

	match := base
	match.GTDefectID, match.ModelDefectID = Int64(1), Int64(1)
	if !match.Accurate() {
		t.Fatal("expected matching defects to be accurate")
	}

	mismatch := base
	mismatch.GTDefectID, mismatch.ModelDefectID = Int64(1), Int64(2)
	if mismatch.Accurate() {
		t.Fatal("expected mismatched defects to be inaccurate")
	}

	noDefect := base
	if !noDefect.Accurate() {
		t.Fatal("expected two no-defect verdicts to agree")
	}

	half := base
	half.GTDefectID = Int64(1)
	if half.Accurate() {
		t.Fatal("expected defect vs no-defect to disagree")
	}

	unreviewed := match
	unreviewed.GTPresent = false
	if unreviewed.Accurate() {
		t.Fatal("expected unreviewed file to never be accurate")
	}

	lowConfidence := match
	lowConfidence.Confidence = Float64(0.1)
	if lowConfidence.Accurate() {
		t.Fatal("expected low-confidence match to be inaccurate")
	}
}

func TestDefectKeysUseUnknownSentinel(t *testing.T) {
	r := AnnotatedRecord{ModelDefectID: Int64(7), ModelDefectName: "scratch"}
	if r.GTKey() != UnknownDefectID || r.GTName() != UnknownDefectName {
		t.Fatalf("unexpected gt key/name: %d %q", r.GTKey(), r.GTName())
	}
	if r.ModelKey() != 7 || r.ModelName() != "scratch" {
		t.Fatalf("unexpected model key/name: %d %q", r.ModelKey(), r.ModelName())
	}
}
