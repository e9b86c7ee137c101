package validator

import (
	"context"
	"testing"
	"time"

	"github.com/civicsignal/complaint-ai-core/internal/inference"
	"github.com/civicsignal/complaint-ai-core/internal/model"
)

type fakeStore struct {
	candidates []model.CandidateProjection
}

func (f *fakeStore) FindRecentCandidates(_ context.Context, _ string, _ time.Time, _ int) ([]model.CandidateProjection, error) {
	return f.candidates, nil
}

func TestFindDuplicateExactFingerprintMatch(t *testing.T) {
	pt := model.Point{Type: "Point", Coordinates: []float64{77.59, 12.97}}
	near := model.Point{Type: "Point", Coordinates: []float64{77.5905, 12.9705}}

	st := &fakeStore{candidates: []model.CandidateProjection{
		{CID: "other-1", Category: "pothole", Location: &near, CreatedAt: time.Now().Add(-2 * time.Hour), Fingerprint: 0xABCD, HasFingerprint: true},
	}}
	cache := NewCandidateCache(16, time.Minute)
	cfg := DuplicateConfig{SimilarityThreshold: 0.92, LookbackDays: 7, CompareLimit: 50}
	current := CandidateInput{CID: "cur", Category: "pothole", Location: &pt, Fingerprint: 0xABCD, HasFingerprint: true}

	res, err := FindDuplicate(context.Background(), st, nil, cache, cfg, time.Now(), current)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsDuplicate || res.Method != MethodDHash64 || res.Similarity != 1.0 {
		t.Fatalf("expected exact duplicate, got %+v", res)
	}
}

func TestFindDuplicateCategoryMismatchGates(t *testing.T) {
	pt := model.Point{Type: "Point", Coordinates: []float64{77.59, 12.97}}
	near := model.Point{Type: "Point", Coordinates: []float64{77.5905, 12.9705}}

	st := &fakeStore{candidates: []model.CandidateProjection{
		{CID: "other-1", Category: "garbage", Location: &near, CreatedAt: time.Now(), Fingerprint: 0xABCD, HasFingerprint: true},
	}}
	cache := NewCandidateCache(16, time.Minute)
	cfg := DuplicateConfig{SimilarityThreshold: 0.92, LookbackDays: 7, CompareLimit: 50}
	current := CandidateInput{CID: "cur", Category: "pothole", Location: &pt, Fingerprint: 0xABCD, HasFingerprint: true}

	res, err := FindDuplicate(context.Background(), st, nil, cache, cfg, time.Now(), current)
	if err != nil {
		t.Fatal(err)
	}
	if res.IsDuplicate {
		t.Fatalf("expected category mismatch to prevent duplicate, got %+v", res)
	}
}

func TestFindDuplicateDistanceGates(t *testing.T) {
	pt := model.Point{Type: "Point", Coordinates: []float64{77.59, 12.97}}
	far := model.Point{Type: "Point", Coordinates: []float64{78.0, 13.0}}

	st := &fakeStore{candidates: []model.CandidateProjection{
		{CID: "other-1", Category: "pothole", Location: &far, CreatedAt: time.Now(), Fingerprint: 0xABCD, HasFingerprint: true},
	}}
	cache := NewCandidateCache(16, time.Minute)
	cfg := DuplicateConfig{SimilarityThreshold: 0.92, LookbackDays: 7, CompareLimit: 50}
	current := CandidateInput{CID: "cur", Category: "pothole", Location: &pt, Fingerprint: 0xABCD, HasFingerprint: true}

	res, err := FindDuplicate(context.Background(), st, nil, cache, cfg, time.Now(), current)
	if err != nil {
		t.Fatal(err)
	}
	if res.IsDuplicate {
		t.Fatalf("expected far-away candidate to not be a duplicate, got %+v", res)
	}
}

func TestFindDuplicateNoCandidates(t *testing.T) {
	st := &fakeStore{}
	cache := NewCandidateCache(16, time.Minute)
	cfg := DuplicateConfig{SimilarityThreshold: 0.92, LookbackDays: 7, CompareLimit: 50}
	res, err := FindDuplicate(context.Background(), st, nil, cache, cfg, time.Now(), CandidateInput{CID: "cur"})
	if err != nil {
		t.Fatal(err)
	}
	if res.IsDuplicate {
		t.Fatalf("expected no duplicate with no candidates, got %+v", res)
	}
}

func TestCheckSemanticPositiveMatch(t *testing.T) {
	dets := []inference.Detection{{Label: "road", Confidence: 0.8}}
	res := CheckSemantic("pothole", dets, inference.ClassifierResult{}, false, 0.4)
	if res.Match == nil || !*res.Match {
		t.Fatalf("expected positive match, got %+v", res)
	}
}

func TestCheckSemanticMismatch(t *testing.T) {
	cls := inference.ClassifierResult{Label: "bedroom", TopLabels: []string{"bedroom", "kitchen"}}
	res := CheckSemantic("pothole", nil, cls, true, 0.4)
	if res.Match == nil || *res.Match {
		t.Fatalf("expected semantic mismatch, got %+v", res)
	}
}

func TestCheckSemanticGenericOnly(t *testing.T) {
	dets := []inference.Detection{{Label: "car", Confidence: 0.9}, {Label: "person", Confidence: 0.9}}
	res := CheckSemantic("pothole", dets, inference.ClassifierResult{}, false, 0.4)
	if res.Match != nil {
		t.Fatalf("expected inconclusive for generic-only phrases, got %+v", res)
	}
}

func TestCheckSemanticUnknownCategory(t *testing.T) {
	res := CheckSemantic("not_a_category", nil, inference.ClassifierResult{}, false, 0.4)
	if res.Match != nil || res.Note != "unknown_category" {
		t.Fatalf("expected unknown_category note, got %+v", res)
	}
}

func TestFingerprintDeterministicAndSimilar(t *testing.T) {
	img1 := solidImage(64, 64, 10)
	img2 := solidImage(64, 64, 10)
	if Fingerprint(img1) != Fingerprint(img2) {
		t.Fatal("expected identical images to produce identical fingerprints")
	}
}
