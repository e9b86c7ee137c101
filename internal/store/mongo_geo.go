package store

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/civicsignal/complaint-ai-core/internal/geomath"
	"github.com/civicsignal/complaint-ai-core/internal/model"
)

// NearSensitiveLocation returns sensitive locations matching keywordPattern
// (matched case-insensitively against type, name, and category) within
// radiusMeters of pt. Uses the geo index via $nearSphere when present,
// otherwise a haversine-filtered full scan bucketed by H3 cell.
func (s *MongoStore) NearSensitiveLocation(ctx context.Context, pt model.Point, radiusMeters float64, keywordPattern string) ([]model.SensitiveLocation, error) {
	if s.cap.SensitiveLocationGeoIndex {
		return s.nearSensitiveLocationIndexed(ctx, pt, radiusMeters, keywordPattern)
	}
	return s.nearSensitiveLocationFallback(ctx, pt, radiusMeters, keywordPattern)
}

func (s *MongoStore) nearSensitiveLocationIndexed(ctx context.Context, pt model.Point, radiusMeters float64, keywordPattern string) ([]model.SensitiveLocation, error) {
	var out []model.SensitiveLocation
	err := s.withBreaker(ctx, "near sensitive location (indexed)", func(ctx context.Context) error {
		filter := bson.D{
			{Key: "location", Value: bson.D{{Key: "$nearSphere", Value: bson.D{
				{Key: "$geometry", Value: bson.D{{Key: "type", Value: "Point"}, {Key: "coordinates", Value: []float64{pt.Lng(), pt.Lat()}}}},
				{Key: "$maxDistance", Value: radiusMeters},
			}}}},
			{Key: "$or", Value: []bson.D{
				{{Key: "type", Value: bson.D{{Key: "$regex", Value: keywordPattern}, {Key: "$options", Value: "i"}}}},
				{{Key: "name", Value: bson.D{{Key: "$regex", Value: keywordPattern}, {Key: "$options", Value: "i"}}}},
				{{Key: "category", Value: bson.D{{Key: "$regex", Value: keywordPattern}, {Key: "$options", Value: "i"}}}},
			}},
		}
		cur, err := s.sensitive.Find(ctx, filter)
		if err != nil {
			return err
		}
		defer cur.Close(ctx)
		return cur.All(ctx, &out)
	})
	return out, err
}

func (s *MongoStore) nearSensitiveLocationFallback(ctx context.Context, pt model.Point, radiusMeters float64, keywordPattern string) ([]model.SensitiveLocation, error) {
	s.warnOnceFor(collSensitiveLocations, "no geo index on sensitive_locations.location, falling back to full scan")

	if cached, ok := s.fallbackCacheGet(ctx, collSensitiveLocations, keywordPattern, pt); ok {
		var out []model.SensitiveLocation
		if err := json.Unmarshal(cached, &out); err == nil {
			return out, nil
		}
	}

	re, err := regexp.Compile("(?i)" + keywordPattern)
	if err != nil {
		return nil, fmt.Errorf("compile keyword pattern: %w", err)
	}

	ring, ringErr := h3RingCells(pt, s.cfg.H3FallbackResolution, ringKForRadius(radiusMeters, s.cfg.H3FallbackResolution))

	var out []model.SensitiveLocation
	err = s.withBreaker(ctx, "near sensitive location (fallback)", func(ctx context.Context) error {
		cur, err := s.sensitive.Find(ctx, bson.D{})
		if err != nil {
			return err
		}
		defer cur.Close(ctx)

		for cur.Next(ctx) {
			var loc model.SensitiveLocation
			if err := cur.Decode(&loc); err != nil {
				return err
			}
			if !re.MatchString(loc.Type) && !re.MatchString(loc.Name) && !re.MatchString(loc.Category) {
				continue
			}
			if !loc.Location.Valid() {
				continue
			}
			if ringErr == nil && !cellInRing(loc.Location.Lng(), loc.Location.Lat(), s.cfg.H3FallbackResolution, ring) {
				continue
			}
			if geomath.Haversine(pt.Lng(), pt.Lat(), loc.Location.Lng(), loc.Location.Lat()) <= radiusMeters {
				out = append(out, loc)
			}
		}
		return cur.Err()
	})
	if err != nil {
		return nil, err
	}

	s.fallbackCacheSet(ctx, collSensitiveLocations, keywordPattern, pt, out)
	return out, nil
}

// CountNearbyComplaints counts complaints within radiusMeters of pt created
// at or after since, excluding excludeCID, stopping once stopAt is reached.
func (s *MongoStore) CountNearbyComplaints(ctx context.Context, pt model.Point, radiusMeters float64, since time.Time, excludeCID string, stopAt int) (int, error) {
	if s.cap.ComplaintsGeoIndex {
		return s.countNearbyIndexed(ctx, pt, radiusMeters, since, excludeCID, stopAt)
	}
	return s.countNearbyFallback(ctx, pt, radiusMeters, since, excludeCID, stopAt)
}

func (s *MongoStore) countNearbyIndexed(ctx context.Context, pt model.Point, radiusMeters float64, since time.Time, excludeCID string, stopAt int) (int, error) {
	var n int
	err := s.withBreaker(ctx, "count nearby complaints (indexed)", func(ctx context.Context) error {
		filter := bson.D{
			{Key: "_id", Value: bson.D{{Key: "$ne", Value: excludeCID}}},
			{Key: "createdAt", Value: bson.D{{Key: "$gte", Value: since.UTC()}}},
			{Key: "location", Value: bson.D{{Key: "$nearSphere", Value: bson.D{
				{Key: "$geometry", Value: bson.D{{Key: "type", Value: "Point"}, {Key: "coordinates", Value: []float64{pt.Lng(), pt.Lat()}}}},
				{Key: "$maxDistance", Value: radiusMeters},
			}}}},
		}
		opts := options.Find().SetLimit(int64(stopAt)).SetProjection(bson.D{{Key: "_id", Value: 1}})
		cur, err := s.complaints.Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		defer cur.Close(ctx)
		for cur.Next(ctx) && n < stopAt {
			n++
		}
		return cur.Err()
	})
	return n, err
}

func (s *MongoStore) countNearbyFallback(ctx context.Context, pt model.Point, radiusMeters float64, since time.Time, excludeCID string, stopAt int) (int, error) {
	s.warnOnceFor(collComplaints, "no geo index on complaints.location, falling back to full scan")

	cacheKey := fmt.Sprintf("count:%s", excludeCID)
	if cached, ok := s.fallbackCacheGet(ctx, collComplaints, cacheKey, pt); ok {
		var n int
		if err := json.Unmarshal(cached, &n); err == nil {
			return n, nil
		}
	}

	ring, ringErr := h3RingCells(pt, s.cfg.H3FallbackResolution, ringKForRadius(radiusMeters, s.cfg.H3FallbackResolution))

	n := 0
	err := s.withBreaker(ctx, "count nearby complaints (fallback)", func(ctx context.Context) error {
		filter := bson.D{
			{Key: "_id", Value: bson.D{{Key: "$ne", Value: excludeCID}}},
			{Key: "createdAt", Value: bson.D{{Key: "$gte", Value: since.UTC()}}},
		}
		opts := options.Find().SetProjection(bson.D{{Key: "location", Value: 1}, {Key: "createdAt", Value: 1}})
		cur, err := s.complaints.Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		defer cur.Close(ctx)

		for cur.Next(ctx) {
			var doc struct {
				Location *model.Point `bson:"location,omitempty"`
			}
			if err := cur.Decode(&doc); err != nil {
				return err
			}
			if !doc.Location.Valid() {
				continue
			}
			if ringErr == nil && !cellInRing(doc.Location.Lng(), doc.Location.Lat(), s.cfg.H3FallbackResolution, ring) {
				continue
			}
			if geomath.Haversine(pt.Lng(), pt.Lat(), doc.Location.Lng(), doc.Location.Lat()) <= radiusMeters {
				n++
				if n >= stopAt {
					break
				}
			}
		}
		return cur.Err()
	})
	if err != nil {
		return 0, err
	}

	s.fallbackCacheSet(ctx, collComplaints, cacheKey, pt, n)
	return n, nil
}
