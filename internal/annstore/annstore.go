// Package annstore implements the optional Qdrant-backed ANN pre-filter for
// the duplicate validator: one point per complaint embedding, searched to
// narrow the candidate scan before the exact similarity/geo/category gates
// run.
package annstore

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Store is the sole owner of Qdrant operations for complaint embeddings.
type Store struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

// New dials Qdrant at addr, targeting collection for complaint embeddings.
func New(addr, collection string) (*Store, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("annstore: dial qdrant %s: %w", addr, err)
	}
	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

func (s *Store) Close() error { return s.conn.Close() }

// EnsureCollection creates the collection (cosine distance) if absent.
func (s *Store) EnsureCollection(ctx context.Context, dims int) error {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("annstore: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			return nil
		}
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("annstore: create collection %s: %w", s.collection, err)
	}
	return nil
}

// Upsert stores one point per complaint, payload {cid, category}, called by
// the AI processor's write-back path.
func (s *Store) Upsert(ctx context.Context, cid, category string, embedding []float32) error {
	if len(embedding) == 0 {
		return nil
	}
	point := &pb.PointStruct{
		Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: cid}},
		Vectors: &pb.Vectors{
			VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: embedding}},
		},
		Payload: map[string]*pb.Value{
			"cid":      {Kind: &pb.Value_StringValue{StringValue: cid}},
			"category": {Kind: &pb.Value_StringValue{StringValue: category}},
		},
	}
	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         []*pb.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("annstore: upsert %s: %w", cid, err)
	}
	return nil
}

// SearchSimilar implements internal/validator.ANNPrefilter: returns the cids
// of the topK nearest points to embedding.
func (s *Store) SearchSimilar(ctx context.Context, embedding []float32, topK int) ([]string, error) {
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         embedding,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("annstore: search: %w", err)
	}
	out := make([]string, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		if cid := r.GetPayload()["cid"].GetStringValue(); cid != "" {
			out = append(out, cid)
		}
	}
	return out, nil
}
