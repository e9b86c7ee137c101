// Package validator implements the duplicate & semantic validator:
// perceptual-hash/embedding similarity gated by geo distance and category
// equality, plus an independent category<->visual-label semantic check.
// Fingerprint comparison is preferred over embedding comparison whenever
// both sides carry one.
package validator

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/civicsignal/complaint-ai-core/internal/geomath"
	"github.com/civicsignal/complaint-ai-core/internal/model"
)

const (
	// MethodDHash64 is recorded when fingerprint comparison produced the
	// winning similarity.
	MethodDHash64 = "dhash64"
	// MethodEmbeddingCosine is recorded when embedding comparison produced
	// the winning similarity. The value is preserved verbatim for on-disk
	// compatibility with documents written by the earlier generation of the
	// pipeline.
	MethodEmbeddingCosine = "mobilenet_cosine_legacy"

	duplicateDistanceMeters = 300.0
)

// CandidateInput is the current complaint's half of a duplicate comparison.
type CandidateInput struct {
	CID            string
	Category       string
	Location       *model.Point
	Embedding      []float32
	Fingerprint    uint64
	HasFingerprint bool
}

// DuplicateConfig configures the candidate scan.
type DuplicateConfig struct {
	SimilarityThreshold float64
	LookbackDays        int
	CompareLimit        int
}

// Store is the narrow slice of internal/store.Store the validator consumes.
type Store interface {
	FindRecentCandidates(ctx context.Context, excludeCID string, since time.Time, limit int) ([]model.CandidateProjection, error)
}

// ANNPrefilter narrows the store's candidate set to those also returned by
// an approximate nearest-neighbor search; candidates outside its top-K are
// dropped before scoring, so the best-scoring candidate can differ from an
// unnarrowed scan. A nil ANNPrefilter, one that errors, or one whose result
// overlaps no candidate leaves the full store scan unnarrowed.
type ANNPrefilter interface {
	SearchSimilar(ctx context.Context, embedding []float32, topK int) (cids []string, err error)
}

// DuplicateResult is the duplicate-detection outcome for one complaint.
type DuplicateResult struct {
	IsDuplicate    bool
	Similarity     float64
	ComplaintID    string
	DistanceMeters float64
	CategoryMatch  bool
	Method         string
}

// CandidateCache bounds how often the store is re-scanned for the same
// recency window by caching recent FindRecentCandidates results in a small
// TTL'd LRU.
type CandidateCache struct {
	cache *lru.Cache[string, []model.CandidateProjection]
	ttl   time.Duration
	stamp map[string]time.Time
}

// NewCandidateCache builds a cache holding up to size recency-window
// results, each valid for ttl.
func NewCandidateCache(size int, ttl time.Duration) *CandidateCache {
	if size <= 0 {
		size = 64
	}
	c, _ := lru.New[string, []model.CandidateProjection](size)
	return &CandidateCache{cache: c, ttl: ttl, stamp: make(map[string]time.Time)}
}

func (c *CandidateCache) get(key string, now time.Time) ([]model.CandidateProjection, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	if ts, ok := c.stamp[key]; ok && now.Sub(ts) > c.ttl {
		return nil, false
	}
	return v, true
}

func (c *CandidateCache) set(key string, now time.Time, v []model.CandidateProjection) {
	if c == nil {
		return
	}
	c.cache.Add(key, v)
	c.stamp[key] = now
}

// FindDuplicate scans candidate "others" from the recency window and
// returns the single best match, gated by similarity/distance/category
// equality.
func FindDuplicate(ctx context.Context, st Store, ann ANNPrefilter, cache *CandidateCache, cfg DuplicateConfig, now time.Time, current CandidateInput) (DuplicateResult, error) {
	since := now.Add(-time.Duration(cfg.LookbackDays) * 24 * time.Hour)

	candidates, err := candidatesFor(ctx, st, cache, current.CID, since, cfg.CompareLimit, now)
	if err != nil {
		return DuplicateResult{}, fmt.Errorf("validator: find recent candidates: %w", err)
	}

	if ann != nil && len(current.Embedding) > 0 {
		if narrowed, ok := narrowByANN(ctx, ann, current.Embedding, candidates, cfg.CompareLimit); ok {
			candidates = narrowed
		}
	}

	var (
		best       DuplicateResult
		bestSim    = -1.0
	)
	for _, cand := range candidates {
		sim, method, ok := similarity(current, cand)
		if !ok {
			continue
		}
		if sim > bestSim {
			bestSim = sim
			dist := -1.0
			if current.Location.Valid() && cand.Location.Valid() {
				dist = geomath.Haversine(current.Location.Lng(), current.Location.Lat(), cand.Location.Lng(), cand.Location.Lat())
			}
			best = DuplicateResult{
				Similarity:     sim,
				ComplaintID:    cand.CID,
				DistanceMeters: dist,
				CategoryMatch:  categoriesEqual(current.Category, cand.Category),
				Method:         method,
			}
		}
	}

	if bestSim < 0 {
		return DuplicateResult{}, nil
	}

	best.IsDuplicate = best.Similarity > cfg.SimilarityThreshold &&
		best.DistanceMeters >= 0 && best.DistanceMeters <= duplicateDistanceMeters &&
		best.CategoryMatch

	return best, nil
}

func candidatesFor(ctx context.Context, st Store, cache *CandidateCache, excludeCID string, since time.Time, limit int, now time.Time) ([]model.CandidateProjection, error) {
	key := fmt.Sprintf("%d:%d", since.Truncate(time.Minute).Unix(), limit)
	if cached, ok := cache.get(key, now); ok {
		out := make([]model.CandidateProjection, 0, len(cached))
		for _, c := range cached {
			if c.CID != excludeCID {
				out = append(out, c)
			}
		}
		return out, nil
	}

	all, err := st.FindRecentCandidates(ctx, "", since, limit)
	if err != nil {
		return nil, err
	}
	cache.set(key, now, all)

	out := make([]model.CandidateProjection, 0, len(all))
	for _, c := range all {
		if c.CID != excludeCID {
			out = append(out, c)
		}
	}
	return out, nil
}

func narrowByANN(ctx context.Context, ann ANNPrefilter, embedding []float32, candidates []model.CandidateProjection, topK int) ([]model.CandidateProjection, bool) {
	ids, err := ann.SearchSimilar(ctx, embedding, topK)
	if err != nil || len(ids) == 0 {
		return nil, false
	}
	allow := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		allow[id] = struct{}{}
	}
	narrowed := make([]model.CandidateProjection, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := allow[c.CID]; ok {
			narrowed = append(narrowed, c)
		}
	}
	if len(narrowed) == 0 {
		return nil, false
	}
	return narrowed, true
}

// similarity prefers fingerprint<->fingerprint comparison, falling back to
// embedding<->embedding when either side lacks a fingerprint.
func similarity(current CandidateInput, cand model.CandidateProjection) (float64, string, bool) {
	if current.HasFingerprint && cand.HasFingerprint {
		return geomath.FingerprintSimilarity(current.Fingerprint, cand.Fingerprint), MethodDHash64, true
	}
	if len(current.Embedding) > 0 && len(cand.Embedding) > 0 {
		return geomath.Cosine(current.Embedding, cand.Embedding), MethodEmbeddingCosine, true
	}
	return 0, "", false
}

func categoriesEqual(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	return a != "" && b != "" && a == b
}
