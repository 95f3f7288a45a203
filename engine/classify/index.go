// Package classify maps review chunks onto the product feature taxonomy by
// vector similarity.
package classify

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// FeaturePoint is one taxonomy entry as stored in the vector index.
type FeaturePoint struct {
	FeatureID int64
	Code      string
	Name      string
	Vector    []float32
}

// FeatureMatch is one ranked hit from the index. Distance is cosine distance:
// zero is identical, larger is farther apart.
type FeatureMatch struct {
	FeatureID int64
	Code      string
	Name      string
	Distance  float64
}

// FeatureIndex owns all Qdrant operations over the feature collection.
type FeatureIndex struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

// NewFeatureIndex connects to Qdrant at the given gRPC address.
func NewFeatureIndex(addr, collection string) (*FeatureIndex, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("classify: dial qdrant %s: %w", addr, err)
	}
	return &FeatureIndex{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// Close closes the underlying gRPC connection.
func (x *FeatureIndex) Close() error {
	return x.conn.Close()
}

// EnsureCollection creates the cosine collection if it does not exist.
func (x *FeatureIndex) EnsureCollection(ctx context.Context, dims int) error {
	list, err := x.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("classify: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == x.collection {
			return nil
		}
	}

	_, err = x.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: x.collection,
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
		return fmt.Errorf("classify: create collection %s: %w", x.collection, err)
	}
	return nil
}

// UpsertFeatures loads taxonomy vectors into the index. Point ids are the
// relational feature ids so matches resolve back without a payload lookup.
func (x *FeatureIndex) UpsertFeatures(ctx context.Context, features []FeaturePoint) error {
	if len(features) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(features))
	for i, f := range features {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Num{Num: uint64(f.FeatureID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: f.Vector},
				},
			},
			Payload: map[string]*pb.Value{
				"feature_id": {Kind: &pb.Value_IntegerValue{IntegerValue: f.FeatureID}},
				"code":       {Kind: &pb.Value_StringValue{StringValue: f.Code}},
				"name":       {Kind: &pb.Value_StringValue{StringValue: f.Name}},
			},
		}
	}

	wait := true
	_, err := x.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: x.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("classify: upsert %d features: %w", len(features), err)
	}
	return nil
}

// Nearest runs k-NN search and returns matches ordered best-first. Qdrant
// reports cosine similarity; it is converted to distance here so callers
// compare against one threshold convention.
func (x *FeatureIndex) Nearest(ctx context.Context, vector []float32, topK int) ([]FeatureMatch, error) {
	resp, err := x.points.Search(ctx, &pb.SearchPoints{
		CollectionName: x.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("classify: search: %w", err)
	}

	matches := make([]FeatureMatch, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		m := FeatureMatch{
			FeatureID: int64(r.GetId().GetNum()),
			Distance:  1 - float64(r.GetScore()),
		}
		if p := r.GetPayload(); p != nil {
			m.Code = p["code"].GetStringValue()
			m.Name = p["name"].GetStringValue()
			if id := p["feature_id"].GetIntegerValue(); id != 0 {
				m.FeatureID = id
			}
		}
		matches[i] = m
	}
	return matches, nil
}
