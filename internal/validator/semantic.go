package validator

import (
	"fmt"
	"strings"

	"github.com/civicsignal/complaint-ai-core/internal/inference"
	"github.com/civicsignal/complaint-ai-core/internal/model"
)

// categoryProfile lists the positive and negative visual-label phrases
// consulted for a category's semantic check.
type categoryProfile struct {
	positive []string
	negative []string
}

var categoryProfiles = map[model.Category]categoryProfile{
	model.CategoryPothole: {
		positive: []string{"pothole", "road", "asphalt", "pavement", "crack"},
		negative: []string{"bedroom", "kitchen", "indoor", "furniture", "bathroom"},
	},
	model.CategoryGarbage: {
		positive: []string{"garbage", "trash", "bin", "waste", "litter"},
		negative: []string{"bedroom", "kitchen", "indoor", "furniture"},
	},
	model.CategoryDrainage: {
		positive: []string{"drain", "drainage", "water", "ditch", "sewage"},
		negative: []string{"bedroom", "kitchen", "indoor"},
	},
	model.CategoryStreetlight: {
		positive: []string{"streetlight", "pole", "lamp", "light"},
		negative: []string{"bedroom", "kitchen", "indoor"},
	},
	model.CategoryWaterLeak: {
		positive: []string{"water", "leak", "pipe", "puddle", "flood"},
		negative: []string{"bedroom", "kitchen", "indoor"},
	},
	model.CategoryRoadDamage: {
		positive: []string{"road", "asphalt", "damage", "crack", "pavement"},
		negative: []string{"bedroom", "kitchen", "indoor", "furniture"},
	},
}

// genericTerms are traffic-scene labels considered too generic to confirm
// or refute any category.
var genericTerms = map[string]struct{}{
	"person": {}, "car": {}, "truck": {}, "bus": {}, "motorcycle": {},
	"bicycle": {}, "scooter": {}, "vehicle": {}, "traffic": {}, "street": {},
	"road": {},
}

// SemanticResult is the ternary category<->visual-label judgment.
type SemanticResult struct {
	Match *bool
	Note  string
}

func boolPtr(b bool) *bool { return &b }

// CheckSemantic judges whether the image's detected/classified visual
// content is consistent with category: true on any positive-term hit, false
// when only negative terms hit with enough phrases to judge, nil when the
// evidence is missing or too generic.
func CheckSemantic(category string, detections []inference.Detection, classifier inference.ClassifierResult, hasClassifier bool, minConfidence float64) SemanticResult {
	cat := model.NormalizeCategory(category)
	profile, known := categoryProfiles[cat]
	if !known {
		return SemanticResult{Match: nil, Note: "unknown_category"}
	}

	phrases := make([]string, 0, len(detections)+3)
	for _, d := range detections {
		if d.Confidence >= minConfidence {
			phrases = append(phrases, strings.ToLower(d.Label))
		}
	}
	if hasClassifier {
		for _, l := range classifier.TopLabels {
			phrases = append(phrases, strings.ToLower(l))
		}
		if classifier.Label != "" {
			phrases = append(phrases, strings.ToLower(classifier.Label))
		}
	}

	if len(phrases) == 0 {
		return SemanticResult{Match: nil, Note: "no_phrases"}
	}

	if allGeneric(phrases) {
		return SemanticResult{Match: nil, Note: "generic_only:" + strings.Join(dedupe(phrases), ",")}
	}

	var positiveHits, negativeHits []string
	for _, phrase := range phrases {
		for _, pos := range profile.positive {
			if strings.Contains(phrase, pos) {
				positiveHits = append(positiveHits, pos)
			}
		}
	}
	if len(positiveHits) > 0 {
		return SemanticResult{Match: boolPtr(true), Note: "positive:" + strings.Join(dedupe(positiveHits), ",")}
	}

	for _, phrase := range phrases {
		for _, neg := range profile.negative {
			if strings.Contains(phrase, neg) {
				negativeHits = append(negativeHits, neg)
			}
		}
	}
	if len(negativeHits) > 0 && len(phrases) >= 2 {
		return SemanticResult{Match: boolPtr(false), Note: "negative:" + strings.Join(dedupe(negativeHits), ",")}
	}

	return SemanticResult{Match: nil, Note: fmt.Sprintf("inconclusive:%s", strings.Join(dedupe(phrases), ","))}
}

func allGeneric(phrases []string) bool {
	for _, p := range phrases {
		if _, generic := genericTerms[p]; !generic {
			return false
		}
	}
	return true
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
