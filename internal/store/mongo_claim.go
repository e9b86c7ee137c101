package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/civicsignal/complaint-ai-core/internal/breaker"
	"github.com/civicsignal/complaint-ai-core/internal/model"
)

func (s *MongoStore) withBreaker(ctx context.Context, op string, f func(context.Context) error) error {
	err := s.breaker.Call(ctx, f)
	if errors.Is(err, breaker.ErrOpen) {
		return fmt.Errorf("%s: %w", op, ErrStoreUnavailable)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *MongoStore) ClaimPending(ctx context.Context, cid string) (*model.Complaint, error) {
	var doc model.Complaint
	found := false
	err := s.withBreaker(ctx, "claim pending", func(ctx context.Context) error {
		filter := bson.D{
			{Key: "_id", Value: cid},
			{Key: "priority.aiProcessingStatus", Value: model.StatusPending},
			{Key: "priority.aiProcessed", Value: false},
		}
		update := bson.D{{Key: "$set", Value: bson.D{
			{Key: "priority.aiProcessingStatus", Value: model.StatusProcessing},
		}}}
		res := s.complaints.FindOneAndUpdate(ctx, filter, update,
			options.FindOneAndUpdate().SetReturnDocument(options.After))
		if err := res.Decode(&doc); err != nil {
			if err == mongo.ErrNoDocuments {
				return nil
			}
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &doc, nil
}

func (s *MongoStore) CountPending(ctx context.Context) (int, error) {
	var n int64
	err := s.withBreaker(ctx, "count pending", func(ctx context.Context) error {
		filter := bson.D{
			{Key: "priority.aiProcessingStatus", Value: model.StatusPending},
			{Key: "priority.aiProcessed", Value: false},
		}
		count, err := s.complaints.CountDocuments(ctx, filter)
		n = count
		return err
	})
	return int(n), err
}

func (s *MongoStore) SweepPending(ctx context.Context, limit int) ([]string, error) {
	return s.sweepByStatus(ctx, model.StatusPending, limit)
}

func (s *MongoStore) SweepFailed(ctx context.Context, limit int) ([]string, error) {
	return s.sweepByStatus(ctx, model.StatusFailed, limit)
}

func (s *MongoStore) sweepByStatus(ctx context.Context, status model.ProcessingStatus, limit int) ([]string, error) {
	var ids []string
	err := s.withBreaker(ctx, fmt.Sprintf("sweep %s", status), func(ctx context.Context) error {
		filter := bson.D{
			{Key: "priority.aiProcessingStatus", Value: status},
			{Key: "priority.aiProcessed", Value: false},
		}
		opts := options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: 1}}).
			SetLimit(int64(limit)).
			SetProjection(bson.D{{Key: "_id", Value: 1}})
		cur, err := s.complaints.Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		defer cur.Close(ctx)

		for cur.Next(ctx) {
			var doc struct {
				CID string `bson:"_id"`
			}
			if err := cur.Decode(&doc); err != nil {
				return err
			}
			ids = append(ids, doc.CID)
		}
		return cur.Err()
	})
	return ids, err
}

func (s *MongoStore) FlipFailedToPending(ctx context.Context, cid string) (bool, error) {
	flipped := false
	err := s.withBreaker(ctx, "flip failed to pending", func(ctx context.Context) error {
		filter := bson.D{
			{Key: "_id", Value: cid},
			{Key: "priority.aiProcessingStatus", Value: model.StatusFailed},
		}
		update := bson.D{{Key: "$set", Value: bson.D{
			{Key: "priority.aiProcessingStatus", Value: model.StatusPending},
		}}}
		res, err := s.complaints.UpdateOne(ctx, filter, update)
		if err != nil {
			return err
		}
		flipped = res.ModifiedCount == 1
		return nil
	})
	return flipped, err
}

func (s *MongoStore) MarkSuccess(ctx context.Context, cid string, reviewRequired bool, up SuccessUpdate) error {
	return s.withBreaker(ctx, "mark success", func(ctx context.Context) error {
		status := model.StatusDone
		if reviewRequired {
			status = model.StatusReviewRequired
		}
		up.AIMeta.ProcessedAt = s.now().UTC()
		set := bson.D{
			{Key: "severityScore", Value: up.SeverityScore},
			{Key: "priority.score", Value: up.Priority.Score},
			{Key: "priority.level", Value: up.Priority.Level},
			{Key: "priority.reason", Value: up.Priority.Reason},
			{Key: "priority.reasonSentence", Value: up.Priority.ReasonSentence},
			{Key: "priority.aiProcessed", Value: true},
			{Key: "priority.aiProcessingStatus", Value: status},
			{Key: "aiMeta", Value: up.AIMeta},
		}
		_, err := s.complaints.UpdateOne(ctx, bson.D{{Key: "_id", Value: cid}}, bson.D{{Key: "$set", Value: set}})
		return err
	})
}

func (s *MongoStore) MarkFailed(ctx context.Context, cid string, msg string) error {
	return s.withBreaker(ctx, "mark failed", func(ctx context.Context) error {
		meta := model.AIMeta{
			ProcessedAt: s.now().UTC(),
			Error:       truncateError(msg),
		}
		set := bson.D{
			{Key: "priority.aiProcessed", Value: false},
			{Key: "priority.aiProcessingStatus", Value: model.StatusFailed},
			{Key: "aiMeta", Value: meta},
		}
		_, err := s.complaints.UpdateOne(ctx, bson.D{{Key: "_id", Value: cid}}, bson.D{{Key: "$set", Value: set}})
		return err
	})
}

// truncateError trims, flattens newlines, and caps an error message at 240
// characters before it is persisted to aiMeta.error.
func truncateError(msg string) string {
	msg = strings.TrimSpace(msg)
	msg = strings.ReplaceAll(msg, "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	if len(msg) > 240 {
		msg = msg[:240]
	}
	return msg
}

func (s *MongoStore) RecordBlacklistMismatch(ctx context.Context, userID string) error {
	if !s.cfg.BlacklistWritesEnabled || userID == "" {
		return nil
	}
	return s.withBreaker(ctx, "record blacklist mismatch", func(ctx context.Context) error {
		filter := bson.D{{Key: "userId", Value: userID}}
		update := bson.D{
			{Key: "$inc", Value: bson.D{{Key: "mismatchCount", Value: 1}}},
			{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: s.now().UTC()}}},
			{Key: "$setOnInsert", Value: bson.D{{Key: "blacklisted", Value: false}}},
		}
		_, err := s.blacklist.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
		return err
	})
}
