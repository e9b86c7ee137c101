// Package geocontext implements the geo multiplier and cluster detector:
// both consult the document store's geo lookups, which already choose
// between the indexed and fallback-scan paths (internal/store), so this
// package is a thin rule table plus a nearby-count threshold on top of that
// shared lookup.
package geocontext

import (
	"context"
	"fmt"
	"time"

	"github.com/civicsignal/complaint-ai-core/internal/model"
)

// Store is the narrow slice of internal/store.Store this package consumes.
type Store interface {
	NearSensitiveLocation(ctx context.Context, pt model.Point, radiusMeters float64, keywordPattern string) ([]model.SensitiveLocation, error)
	CountNearbyComplaints(ctx context.Context, pt model.Point, radiusMeters float64, since time.Time, excludeCID string, stopAt int) (int, error)
}

// rule is one entry in the ordered geo-multiplier rule table; first match
// wins.
type rule struct {
	pattern    string
	multiplier float64
	matchedAs  string
}

var rules = []rule{
	{pattern: "school", multiplier: 1.5, matchedAs: "school"},
	{pattern: "hospital|clinic|medical", multiplier: 1.4, matchedAs: "hospital"},
	{pattern: "metro|subway|station", multiplier: 1.2, matchedAs: "metro"},
}

// MultiplierResult is the geo-multiplier outcome.
type MultiplierResult struct {
	Multiplier  float64
	MatchedType string
}

// Multiplier evaluates the ordered rule table against pt, returning the
// first matching rule's multiplier or {1.0, "none"} if nothing is within
// radiusMeters.
func Multiplier(ctx context.Context, st Store, pt model.Point, radiusMeters float64) (MultiplierResult, error) {
	if !pt.Valid() {
		return MultiplierResult{Multiplier: 1.0, MatchedType: "none"}, nil
	}
	for _, r := range rules {
		locs, err := st.NearSensitiveLocation(ctx, pt, radiusMeters, r.pattern)
		if err != nil {
			return MultiplierResult{}, fmt.Errorf("geocontext: near sensitive location (%s): %w", r.matchedAs, err)
		}
		if len(locs) > 0 {
			return MultiplierResult{Multiplier: r.multiplier, MatchedType: r.matchedAs}, nil
		}
	}
	return MultiplierResult{Multiplier: 1.0, MatchedType: "none"}, nil
}

const (
	clusterRadiusMeters = 500.0
	clusterLookbackDays = 3
	clusterThreshold     = 3
)

// ClusterResult is the nearby-complaint cluster outcome.
type ClusterResult struct {
	NearbyCount  int
	ClusterBoost float64
}

// Cluster counts complaints within 500m created in the last 3 days
// (excluding cid), stopping at the threshold.
func Cluster(ctx context.Context, st Store, pt model.Point, cid string, now time.Time) (ClusterResult, error) {
	if !pt.Valid() {
		return ClusterResult{}, nil
	}
	since := now.Add(-clusterLookbackDays * 24 * time.Hour)
	n, err := st.CountNearbyComplaints(ctx, pt, clusterRadiusMeters, since, cid, clusterThreshold)
	if err != nil {
		return ClusterResult{}, fmt.Errorf("geocontext: count nearby complaints: %w", err)
	}
	boost := 0.0
	if n >= clusterThreshold {
		boost = 1.0
	}
	return ClusterResult{NearbyCount: n, ClusterBoost: boost}, nil
}
