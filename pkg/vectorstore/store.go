// Package vectorstore adapts the Qdrant vector database to the
// embedding-store contract in spec.md §4.2: store embedding records,
// read-through get by reference, and approximate nearest-neighbour
// query returning distances. Embedding generation is not done here;
// callers pass vectors produced by pkg/embedclient.
package vectorstore

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/google/uuid"

	"github.com/loopwire/feedback-pipeline/pkg/model"
)

// referenceNamespace is a fixed namespace UUID used to derive stable
// per-reference Qdrant point ids. Qdrant point ids must be a UUID or
// an unsigned integer; submission references ("LW-001") are neither,
// so the reference travels in the point payload instead and is
// recovered from there on read.
var referenceNamespace = uuid.MustParse("8f14e45f-ceea-467e-b0c7-9e96f5b5a0f0")

func pointID(reference string) string {
	return uuid.NewSHA1(referenceNamespace, []byte(reference)).String()
}

// pointsAPI is the subset of pb.PointsClient this package calls,
// narrowed so tests can fake it without tracking every RPC Qdrant adds.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Get(ctx context.Context, in *pb.GetPoints, opts ...grpc.CallOption) (*pb.GetResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

// collectionsAPI is the subset of pb.CollectionsClient this package calls.
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Store is the sole owner of all Qdrant operations for the embedding
// store adapter.
type Store struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
}

// New creates a Store connected to Qdrant at the given gRPC address.
// The connection is lazy: no RPC is made until the first operation,
// matching spec.md §4.2's "lazily constructed once per process".
func New(addr, collection string) (*Store, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("vectorstore: dial qdrant %s: %w", addr, err)
	}
	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// NewWithClients builds a Store around already-constructed Qdrant
// clients, bypassing the dial step. Used by tests to exercise Store's
// logic against fakes of pointsAPI/collectionsAPI.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string) *Store {
	return &Store{points: points, collections: collections, collection: collection}
}

func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// EnsureCollection creates the collection if it doesn't already
// exist, configured for Euclidean distance: spec.md §4.2 requires "L2
// distance, smaller is more similar", and Qdrant only reports a raw
// distance (rather than a similarity score) for the Euclidean metric.
func (s *Store) EnsureCollection(ctx context.Context, dims int) error {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("vectorstore: list collections: %w", err)
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
					Distance: pb.Distance_Euclid,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("vectorstore: create collection %s: %w", s.collection, err)
	}
	return nil
}

// Upsert stores embedding records, keyed by the stable id derived
// from each record's reference. Idempotent: upserting the same
// reference again replaces the point in place.
func (s *Store) Upsert(ctx context.Context, records []model.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: pointID(r.ID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: r.Vector},
				},
			},
			Payload: map[string]*pb.Value{
				"reference": {Kind: &pb.Value_StringValue{StringValue: r.ID}},
				"content":   {Kind: &pb.Value_StringValue{StringValue: r.Document}},
			},
		}
	}

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("vectorstore: upsert %d points: %w", len(records), err)
	}
	return nil
}

// Get reads back records by reference. Missing references are simply
// absent from the result's aligned slices.
func (s *Store) Get(ctx context.Context, references []string) (model.EmbeddingBatch, error) {
	if len(references) == 0 {
		return model.EmbeddingBatch{}, nil
	}

	ids := make([]*pb.PointId, len(references))
	for i, ref := range references {
		ids[i] = &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: pointID(ref)}}
	}

	withVectors := true
	resp, err := s.points.Get(ctx, &pb.GetPoints{
		CollectionName: s.collection,
		Ids:            ids,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		WithVectors:    &pb.WithVectorsSelector{SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: withVectors}},
	})
	if err != nil {
		return model.EmbeddingBatch{}, fmt.Errorf("vectorstore: get %d points: %w", len(references), err)
	}

	var out model.EmbeddingBatch
	for _, p := range resp.GetResult() {
		payload := p.GetPayload()
		ref := payload["reference"].GetStringValue()
		doc := payload["content"].GetStringValue()
		vec := p.GetVectors().GetVector().GetData()
		out.IDs = append(out.IDs, ref)
		out.Embeddings = append(out.Embeddings, vec)
		out.Documents = append(out.Documents, doc)
	}
	return out, nil
}

// Query performs approximate nearest-neighbour search, returning
// results ordered ascending by distance (smaller is more similar).
func (s *Store) Query(ctx context.Context, vector []float32, n int) (model.QueryResult, error) {
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(n),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return model.QueryResult{}, fmt.Errorf("vectorstore: query: %w", err)
	}

	var out model.QueryResult
	for _, r := range resp.GetResult() {
		payload := r.GetPayload()
		out.IDs = append(out.IDs, payload["reference"].GetStringValue())
		out.Documents = append(out.Documents, payload["content"].GetStringValue())
		out.Distances = append(out.Distances, r.GetScore())
	}
	return out, nil
}
