package aiprocessor

import (
	"testing"

	"github.com/civicsignal/complaint-ai-core/internal/inference"
	"github.com/civicsignal/complaint-ai-core/internal/model"
	"github.com/civicsignal/complaint-ai-core/internal/priority"
	"github.com/civicsignal/complaint-ai-core/internal/validator"
)

func boolPtr(b bool) *bool { return &b }

func TestApplyRuleDuplicateForcesLowAndDone(t *testing.T) {
	base := priority.Result{FinalScore: 8.5, Level: model.LevelHigh, Reason: "hot spot"}
	dup := validator.DuplicateResult{IsDuplicate: true, Method: "ann"}

	result, reviewRequired := applyRule(base, dup, validator.SemanticResult{})

	if reviewRequired {
		t.Fatal("expected a confirmed duplicate to not require review")
	}
	if result.Level != model.LevelLow || result.FinalScore != 0 {
		t.Fatalf("expected duplicate to force low/0, got level=%v score=%v", result.Level, result.FinalScore)
	}
	if result.Reason != "Duplicate complaint" {
		t.Fatalf("expected duplicate reason to replace the base reason, got %q", result.Reason)
	}
}

func TestApplyRuleSemanticMismatchFlagsReview(t *testing.T) {
	base := priority.Result{FinalScore: 5.0, Level: model.LevelMedium, Reason: "base reason", ReasonSentence: "Base reason sentence."}
	semantic := validator.SemanticResult{Match: boolPtr(false)}

	result, reviewRequired := applyRule(base, validator.DuplicateResult{}, semantic)

	if !reviewRequired {
		t.Fatal("expected a semantic mismatch to require review")
	}
	if result.FinalScore != 5.0 || result.Level != model.LevelMedium {
		t.Fatalf("expected the base score/level to survive a semantic mismatch, got score=%v level=%v", result.FinalScore, result.Level)
	}
	if result.Reason != "base reason; Image semantic mismatch fallback applied" {
		t.Fatalf("expected appended reason, got %q", result.Reason)
	}
}

func TestApplyRuleOtherwisePassesThrough(t *testing.T) {
	base := priority.Result{FinalScore: 4.0, Level: model.LevelMedium, Reason: "base reason"}

	result, reviewRequired := applyRule(base, validator.DuplicateResult{}, validator.SemanticResult{Match: boolPtr(true)})

	if reviewRequired {
		t.Fatal("expected a semantic match to complete without review")
	}
	if result != base {
		t.Fatalf("expected base result to pass through unchanged, got %+v", result)
	}
}

func TestApplyRuleDuplicateTakesPrecedenceOverSemanticMismatch(t *testing.T) {
	base := priority.Result{FinalScore: 9.0, Level: model.LevelHigh}
	dup := validator.DuplicateResult{IsDuplicate: true}
	semantic := validator.SemanticResult{Match: boolPtr(false)}

	result, reviewRequired := applyRule(base, dup, semantic)

	if reviewRequired {
		t.Fatal("expected duplicate branch to win over semantic mismatch, so no review flag")
	}
	if result.Level != model.LevelLow {
		t.Fatalf("expected duplicate branch to win, got level=%v", result.Level)
	}
}

func TestAppendReason(t *testing.T) {
	if got := appendReason("", "first"); got != "first" {
		t.Fatalf("expected empty base to yield bare addition, got %q", got)
	}
	if got := appendReason("first", "second"); got != "first; second" {
		t.Fatalf("expected semicolon-joined reasons, got %q", got)
	}
}

func TestDuplicateOutcome(t *testing.T) {
	cases := []struct {
		name string
		dup  validator.DuplicateResult
		want string
	}{
		{"duplicate", validator.DuplicateResult{IsDuplicate: true, Method: "ann"}, "duplicate"},
		{"no candidates", validator.DuplicateResult{}, "no_candidates"},
		{"unique", validator.DuplicateResult{Method: "haversine"}, "unique"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := duplicateOutcome(tc.dup); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestTopDetectionsTruncatesAndMaps(t *testing.T) {
	dets := []inference.Detection{
		{Label: "pothole", Confidence: 0.9, AreaPercent: 12.5},
		{Label: "trash", Confidence: 0.8, AreaPercent: 5.0},
		{Label: "graffiti", Confidence: 0.7, AreaPercent: 2.0},
		{Label: "dropped", Confidence: 0.1, AreaPercent: 0.1},
	}

	got := topDetections(dets, 3)

	if len(got) != 3 {
		t.Fatalf("expected exactly 3 results, got %d", len(got))
	}
	want := model.TopDetection{Label: "pothole", Confidence: 0.9, AreaPercent: 12.5}
	if got[0] != want {
		t.Fatalf("expected first detection mapped verbatim, got %+v", got[0])
	}
}

func TestTopDetectionsHandlesFewerThanN(t *testing.T) {
	dets := []inference.Detection{{Label: "pothole", Confidence: 0.9}}
	got := topDetections(dets, 3)
	if len(got) != 1 {
		t.Fatalf("expected 1 result when fewer than n detections exist, got %d", len(got))
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "", "third"); got != "third" {
		t.Fatalf("expected first non-empty value, got %q", got)
	}
	if got := firstNonEmpty("", ""); got != "" {
		t.Fatalf("expected empty string when all inputs are empty, got %q", got)
	}
}
