package textscore

import "testing"

func TestScoreSaturatesAtSix(t *testing.T) {
	res := Score("accident injury emergency collapsed fire",
		"exposed wire flooding main road dangerous deep overflow")
	if res.BaseScore != 6 {
		t.Fatalf("expected saturated base score of 6, got %v", res.BaseScore)
	}
}

func TestScoreCountsPerGroup(t *testing.T) {
	res := Score("Huge pothole", "Deep pothole on main road, damaged.")
	if res.NormalCount != 2 {
		t.Fatalf("expected 2 normal matches (pothole, damaged), got %d: %v", res.NormalCount, res.MatchedNorm)
	}
	if res.MediumCount != 1 {
		t.Fatalf("expected 1 medium match (deep), got %d: %v", res.MediumCount, res.MatchedMed)
	}
	if res.HighCount != 0 {
		t.Fatalf("expected 0 high matches, got %d", res.HighCount)
	}
	want := float64(2*res.MediumCount + res.NormalCount)
	if res.BaseScore != want {
		t.Fatalf("expected base score %v, got %v", want, res.BaseScore)
	}
}

func TestScoreNoKeywords(t *testing.T) {
	res := Score("", "")
	if res.BaseScore != 0 {
		t.Fatalf("expected 0 for empty text, got %v", res.BaseScore)
	}
}

func TestScoreWordBoundary(t *testing.T) {
	// The bare word "leak" matches the "leak" keyword as a whole word and is
	// counted once in the normal group.
	res := Score("", "water leak reported near the building")
	if res.NormalCount != 1 {
		t.Fatalf("expected leak to match as a normal keyword, got %d", res.NormalCount)
	}
}
