package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ProbeCapabilities returns the capability probe cached at connect time.
func (s *MongoStore) ProbeCapabilities(_ context.Context) (Capabilities, error) {
	return s.cap, nil
}

// WatchPendingInserts opens a change stream over the complaints collection
// filtered to inserts of claimable documents (aiProcessed=false, status
// pending) and streams their cids until the stream errors or ctx is
// cancelled, at which point the returned channel is closed. Returns
// ErrNoReplicaSet when the store was probed as standalone — change streams
// require an oplog, so the caller falls back to the reconciler sweep.
func (s *MongoStore) WatchPendingInserts(ctx context.Context) (<-chan string, error) {
	if !s.cap.ReplicaSet {
		return nil, ErrNoReplicaSet
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "operationType", Value: "insert"},
			{Key: "fullDocument.priority.aiProcessed", Value: false},
			{Key: "fullDocument.priority.aiProcessingStatus", Value: "pending"},
		}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	stream, err := s.complaints.Watch(ctx, pipeline, opts)
	if err != nil {
		return nil, fmt.Errorf("watch pending inserts: %w", err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer stream.Close(context.Background())

		for stream.Next(ctx) {
			var ev struct {
				DocumentKey struct {
					ID string `bson:"_id"`
				} `bson:"documentKey"`
			}
			if err := stream.Decode(&ev); err != nil {
				s.log.Warn().Err(err).Msg("decode change stream event")
				continue
			}
			if ev.DocumentKey.ID == "" {
				continue
			}
			select {
			case out <- ev.DocumentKey.ID:
			case <-ctx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			s.log.Warn().Err(err).Msg("change stream ended with error")
		}
	}()

	return out, nil
}
