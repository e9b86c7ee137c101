package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/civicsignal/complaint-ai-core/internal/model"
)

func (s *MongoStore) FindRecentCandidates(ctx context.Context, excludeCID string, since time.Time, limit int) ([]model.CandidateProjection, error) {
	var out []model.CandidateProjection
	err := s.withBreaker(ctx, "find recent candidates", func(ctx context.Context) error {
		filter := bson.D{
			{Key: "_id", Value: bson.D{{Key: "$ne", Value: excludeCID}}},
			{Key: "createdAt", Value: bson.D{{Key: "$gte", Value: since.UTC()}}},
		}
		opts := options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}}).
			SetLimit(int64(limit)).
			SetProjection(bson.D{
				{Key: "category", Value: 1},
				{Key: "location", Value: 1},
				{Key: "createdAt", Value: 1},
				{Key: "aiMeta.embedding", Value: 1},
				{Key: "aiMeta.imageFingerprint", Value: 1},
			})
		cur, err := s.complaints.Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		defer cur.Close(ctx)

		for cur.Next(ctx) {
			var raw struct {
				CID      string     `bson:"_id"`
				Category string     `bson:"category"`
				Location *model.Point `bson:"location,omitempty"`
				Created  time.Time  `bson:"createdAt"`
				AIMeta   struct {
					Embedding   []float32 `bson:"embedding,omitempty"`
					Fingerprint *uint64   `bson:"imageFingerprint,omitempty"`
				} `bson:"aiMeta"`
			}
			if err := cur.Decode(&raw); err != nil {
				return err
			}
			cp := model.CandidateProjection{
				CID:       raw.CID,
				Category:  raw.Category,
				Location:  raw.Location,
				CreatedAt: raw.Created,
				Embedding: raw.AIMeta.Embedding,
			}
			if raw.AIMeta.Fingerprint != nil {
				cp.Fingerprint = *raw.AIMeta.Fingerprint
				cp.HasFingerprint = true
			}
			out = append(out, cp)
		}
		return cur.Err()
	})
	return out, err
}
