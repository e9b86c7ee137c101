package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// probeCapabilities detects replica-set mode via a hello-equivalent command
// and checks each geo-query-consuming collection for a 2dsphere/2d index on
// location. usedFallback (already known from dial) short-circuits the
// replica-set check: a standalone connection is never a replica set.
func (s *MongoStore) probeCapabilities(ctx context.Context, usedFallback bool) (Capabilities, error) {
	var caps Capabilities

	if !usedFallback {
		isReplica, err := s.probeReplicaSet(ctx)
		if err != nil {
			return caps, err
		}
		caps.ReplicaSet = isReplica
	}

	hasIdx, err := hasGeoIndex(ctx, s.complaints)
	if err != nil {
		return caps, fmt.Errorf("probe complaints geo index: %w", err)
	}
	caps.ComplaintsGeoIndex = hasIdx

	hasIdx, err = hasGeoIndex(ctx, s.sensitive)
	if err != nil {
		return caps, fmt.Errorf("probe sensitive_locations geo index: %w", err)
	}
	caps.SensitiveLocationGeoIndex = hasIdx

	return caps, nil
}

func (s *MongoStore) probeReplicaSet(ctx context.Context) (bool, error) {
	var reply bson.M
	if err := s.db.RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&reply); err != nil {
		return false, fmt.Errorf("run hello: %w", err)
	}
	_, hasSetName := reply["setName"]
	return hasSetName, nil
}

func hasGeoIndex(ctx context.Context, coll *mongo.Collection) (bool, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return false, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var spec bson.M
		if err := cur.Decode(&spec); err != nil {
			return false, err
		}
		key, ok := spec["key"].(bson.M)
		if !ok {
			continue
		}
		switch key["location"] {
		case "2dsphere", "2d":
			return true, nil
		}
	}
	return false, cur.Err()
}
