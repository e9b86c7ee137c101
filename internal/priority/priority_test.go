package priority

import (
	"math"
	"testing"

	"github.com/civicsignal/complaint-ai-core/internal/model"
)

func TestComputeLevelBoundaries(t *testing.T) {
	cases := []struct {
		name  string
		base  float64
		geo   float64
		want  model.Level
	}{
		{"low", 0.5, 1.0, model.LevelLow},
		{"medium", 3, 1.0, model.LevelMedium},
		{"high", 6, 1.5, model.LevelHigh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Compute(tc.base, tc.geo, "none", 0, 0, 0)
			if res.Level != tc.want {
				t.Fatalf("score %.2f -> level %s, want %s", res.FinalScore, res.Level, tc.want)
			}
		})
	}
}

func TestTimeScoreSaturates(t *testing.T) {
	res := Compute(0, 1.0, "none", 0, 0, 100000)
	if res.Components.TimeScore != 3.0 {
		t.Fatalf("expected time score to saturate at 3.0, got %v", res.Components.TimeScore)
	}
}

func TestTimeScoreZeroDays(t *testing.T) {
	res := Compute(0, 1.0, "none", 0, 0, 0)
	if res.Components.TimeScore != 0 {
		t.Fatalf("expected 0 time score for 0 days pending, got %v", res.Components.TimeScore)
	}
}

func TestNegativeDaysClampToZero(t *testing.T) {
	res := Compute(0, 1.0, "none", 0, 0, -5)
	if res.Components.DaysPending != 0 {
		t.Fatalf("expected negative days pending clamped to 0, got %v", res.Components.DaysPending)
	}
}

func TestForceLowPreservesComponents(t *testing.T) {
	res := Compute(6, 1.5, "school", 1.0, 3, 1)
	low := ForceLow(res, "Duplicate complaint")
	if low.FinalScore != 0 || low.Level != model.LevelLow {
		t.Fatalf("expected forced low result, got %+v", low)
	}
	if low.Components.GeoMatchedAs != "school" {
		t.Fatalf("expected components preserved, got %+v", low.Components)
	}
	if low.Reason != "Duplicate complaint" || low.ReasonSentence != "Duplicate complaint" {
		t.Fatalf("expected reason override, got %q / %q", low.Reason, low.ReasonSentence)
	}
}

func TestFinalScoreRounding(t *testing.T) {
	res := Compute(1, 1, "none", 0, 0, 1)
	expected := math.Round((1 + 2*math.Log(2)) * 100) / 100
	if res.FinalScore != expected {
		t.Fatalf("expected %.2f, got %.2f", expected, res.FinalScore)
	}
}
