// Package priority implements the priority engine: it combines the
// text-scoring base score, the geo multiplier, the cluster boost, and a
// time-decay term into a final score, level, and human-readable reason.
package priority

import (
	"fmt"
	"math"
	"strings"

	"github.com/civicsignal/complaint-ai-core/internal/model"
)

// Components records every intermediate signal that fed the final score, so
// callers (the AI processor, tests) can inspect how a result was derived.
type Components struct {
	BaseScore     float64
	GeoMultiplier float64
	GeoMatchedAs  string
	ClusterBoost  float64
	NearbyCount   int
	TimeScore     float64
	DaysPending   float64
}

// Result is what the priority engine returns: the components plus the final
// score, level, and reasons.
type Result struct {
	Components     Components
	FinalScore     float64
	Level          model.Level
	Reason         string
	ReasonSentence string
}

// Compute combines the signals:
//
//	time_score  = min(3.0, 2.0 * log(days_pending + 1))
//	final_score = round(base_score * geo_multiplier + time_score + cluster_boost, 2)
//	level       = low < 3 <= medium <= 6 < high
func Compute(baseScore, geoMultiplier float64, geoMatchedAs string, clusterBoost float64, nearbyCount int, daysPending float64) Result {
	if daysPending < 0 {
		daysPending = 0
	}
	timeScore := 2.0 * math.Log(daysPending+1)
	if timeScore > 3.0 {
		timeScore = 3.0
	}

	final := baseScore*geoMultiplier + timeScore + clusterBoost
	final = math.Round(final*100) / 100

	comp := Components{
		BaseScore:     baseScore,
		GeoMultiplier: geoMultiplier,
		GeoMatchedAs:  geoMatchedAs,
		ClusterBoost:  clusterBoost,
		NearbyCount:   nearbyCount,
		TimeScore:     timeScore,
		DaysPending:   daysPending,
	}

	level := levelFor(final)
	reason, sentence := describe(comp, final, level)

	return Result{
		Components:     comp,
		FinalScore:     final,
		Level:          level,
		Reason:         reason,
		ReasonSentence: sentence,
	}
}

func levelFor(score float64) model.Level {
	switch {
	case score < 3:
		return model.LevelLow
	case score <= 6:
		return model.LevelMedium
	default:
		return model.LevelHigh
	}
}

func describe(c Components, final float64, level model.Level) (reason, sentence string) {
	parts := []string{fmt.Sprintf("base=%.2f", c.BaseScore)}
	if c.GeoMatchedAs != "" && c.GeoMatchedAs != "none" {
		parts = append(parts, fmt.Sprintf("near %s (x%.2f)", c.GeoMatchedAs, c.GeoMultiplier))
	}
	if c.ClusterBoost > 0 {
		parts = append(parts, fmt.Sprintf("cluster of %d nearby reports", c.NearbyCount))
	}
	if c.TimeScore > 0 {
		parts = append(parts, fmt.Sprintf("pending %.1f days", c.DaysPending))
	}
	reason = strings.Join(parts, "; ")

	sentence = fmt.Sprintf("Priority scored %.2f (%s) from %s.", final, level, reason)
	return reason, sentence
}

// ForceLow yields a Result with score=0, level=low, and the given reason,
// preserving every other field of the original result. Used by the
// duplicate rule in the AI processor.
func ForceLow(r Result, reason string) Result {
	r.FinalScore = 0
	r.Level = model.LevelLow
	r.Reason = reason
	r.ReasonSentence = reason
	return r
}
