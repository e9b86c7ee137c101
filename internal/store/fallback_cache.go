package store

import (
	"context"
	"encoding/json"
	"fmt"

	h3 "github.com/uber/h3-go/v4"

	"github.com/civicsignal/complaint-ai-core/internal/model"
)

// fallbackCacheGet and fallbackCacheSet accelerate the no-geo-index scan
// paths: results are cached in Redis for a short TTL keyed by (collection,
// rule, H3 cell of the query point). A cache miss or disabled Redis is not
// an error — callers always have the full-scan path as ground truth.
func (s *MongoStore) fallbackCacheGet(ctx context.Context, collection, rule string, pt model.Point) ([]byte, bool) {
	if s.redis == nil {
		return nil, false
	}
	key, ok := fallbackCacheKey(collection, rule, pt, s.cfg.H3FallbackResolution)
	if !ok {
		return nil, false
	}
	val, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

func (s *MongoStore) fallbackCacheSet(ctx context.Context, collection, rule string, pt model.Point, result any) {
	if s.redis == nil {
		return
	}
	key, ok := fallbackCacheKey(collection, rule, pt, s.cfg.H3FallbackResolution)
	if !ok {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	_ = s.redis.Set(ctx, key, payload, s.cfg.RedisCacheTTL).Err()
}

func fallbackCacheKey(collection, rule string, pt model.Point, res int) (string, bool) {
	if !pt.Valid() {
		return "", false
	}
	cell, err := h3.LatLngToCell(h3.NewLatLng(pt.Lat(), pt.Lng()), res)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("fallbackscan:%s:%s:%s", collection, rule, cell.String()), true
}

// h3RingCells returns the origin cell and its k-ring neighbors for pt at
// res, used to narrow a full scan's candidate set before the exact
// haversine filter runs. It never changes the boolean/count outcome versus
// scanning every document — it only skips cells that cannot contain a point
// within the query radius for a reasonably small radius relative to the
// cell size.
func h3RingCells(pt model.Point, res, k int) (map[h3.Cell]struct{}, error) {
	origin, err := h3.LatLngToCell(h3.NewLatLng(pt.Lat(), pt.Lng()), res)
	if err != nil {
		return nil, fmt.Errorf("h3 cell for point: %w", err)
	}
	ring, err := h3.GridDisk(origin, k)
	if err != nil {
		return nil, fmt.Errorf("h3 grid disk: %w", err)
	}
	out := make(map[h3.Cell]struct{}, len(ring))
	for _, c := range ring {
		out[c] = struct{}{}
	}
	return out, nil
}

// approxEdgeLengthMeters by H3 resolution (average hexagon edge length, res
// 0 through 15), used to size the ring so it comfortably covers radiusMeters.
var approxEdgeLengthMeters = [16]float64{
	1107712.6, 418676.0, 158244.7, 59810.9, 22606.4, 8544.4, 3229.5,
	1220.6, 461.4, 174.4, 65.9, 24.9, 9.4, 3.6, 1.3, 0.5,
}

// ringKForRadius returns the smallest k such that a k-ring of cells at
// h3Res is guaranteed to cover a circle of radiusMeters around its origin,
// plus one extra ring as margin for cells whose center falls outside the
// ring but whose area still overlaps the query circle.
func ringKForRadius(radiusMeters float64, h3Res int) int {
	if h3Res < 0 || h3Res > 15 {
		return 2
	}
	edge := approxEdgeLengthMeters[h3Res]
	if edge <= 0 {
		return 2
	}
	k := int(radiusMeters/edge) + 2
	if k < 1 {
		k = 1
	}
	return k
}

// cellInRing reports whether the H3 cell at res containing (lng, lat) is a
// member of ring. Used as a cheap pre-filter before the exact haversine
// check; a false result means the candidate is definitely outside the ring
// and can be skipped without affecting correctness within the configured
// margin.
func cellInRing(lng, lat float64, res int, ring map[h3.Cell]struct{}) bool {
	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lng), res)
	if err != nil {
		return true
	}
	_, ok := ring[cell]
	return ok
}
