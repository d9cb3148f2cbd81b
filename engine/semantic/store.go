// Package semantic owns all Qdrant operations: the trial vector collection,
// point upserts during ingestion, and filtered k-NN search at query time.
package semantic

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/TrialScopeAI/trialscope-mvp/engine/domain"
)

// EmbeddingDims is the vector size of the embedding model.
const EmbeddingDims = 768

// pointsAPI is the subset of Qdrant's points service the store uses.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

// collectionsAPI is the subset of Qdrant's collections service the store uses.
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// VectorStore is the sole owner of all Qdrant operations.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
}

// New creates a VectorStore connected to Qdrant at the given gRPC address.
func New(addr string, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// NewWithClients creates a VectorStore over pre-built clients.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string) *VectorStore {
	return &VectorStore{points: points, collections: collections, collection: collection}
}

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist.
func (v *VectorStore) EnsureCollection(ctx context.Context, dims int) error {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return nil
		}
	}

	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
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
		return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
	}
	return nil
}

// DeleteCollection deletes the collection.
func (v *VectorStore) DeleteCollection(ctx context.Context) error {
	_, err := v.collections.Delete(ctx, &pb.DeleteCollection{
		CollectionName: v.collection,
	})
	if err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", v.collection, err)
	}
	return nil
}

// Upsert stores trial records with their embeddings. Called by engine/ingest.
// Trials without an embedding are skipped.
func (v *VectorStore) Upsert(ctx context.Context, trials []domain.TrialRecord) error {
	points := make([]*pb.PointStruct, 0, len(trials))
	for _, t := range trials {
		if len(t.Embedding) == 0 {
			continue
		}
		points = append(points, &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Num{Num: pointID(t.NCTID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: t.Embedding},
				},
			},
			Payload: trialPayload(t),
		})
	}
	if len(points) == 0 {
		return nil
	}

	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(points), err)
	}
	return nil
}

// DeleteTrial removes a trial's point. Used for re-ingestion.
func (v *VectorStore) DeleteTrial(ctx context.Context, nctID string) error {
	wait := true
	_, err := v.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{
					Ids: []*pb.PointId{{PointIdOptions: &pb.PointId_Num{Num: pointID(nctID)}}},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: delete trial %s: %w", nctID, err)
	}
	return nil
}

// Search performs k-NN similarity search. Candidates scoring below floor
// are cut server-side; analysis fields that resolved become payload filters.
func (v *VectorStore) Search(ctx context.Context, embedding []float32, limit int, floor float64, analysis domain.QueryAnalysis) ([]Hit, error) {
	threshold := float32(floor)
	req := &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         embedding,
		Limit:          uint64(limit),
		ScoreThreshold: &threshold,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if f := analysisFilter(analysis); f != nil {
		req.Filter = f
	}

	resp, err := v.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	hits := make([]Hit, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		score := float64(r.GetScore())
		if score < floor {
			continue
		}
		hits = append(hits, Hit{
			Trial: trialFromPayload(r.GetPayload()),
			Score: score,
		})
	}
	return hits, nil
}

// analysisFilter maps resolved analysis fields onto payload conditions.
func analysisFilter(a domain.QueryAnalysis) *pb.Filter {
	var must []*pb.Condition
	if a.Phase != domain.PhaseNone {
		must = append(must, fieldMatch("phase", string(a.Phase)))
	}
	if a.Status != domain.StatusUnspecified {
		must = append(must, fieldMatch("status", string(a.Status)))
	}
	if a.Condition != "" {
		must = append(must, fieldMatch("conditions", a.Condition))
	}
	if len(must) == 0 {
		return nil
	}
	return &pb.Filter{Must: must}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

// pointID derives a stable numeric point id from a registry identifier.
// Standard identifiers are "NCT" plus digits; anything else hashes.
func pointID(nctID string) uint64 {
	digits := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(nctID)), "NCT")
	if n, err := strconv.ParseUint(digits, 10, 64); err == nil {
		return n
	}
	h := fnv.New64a()
	h.Write([]byte(nctID))
	return h.Sum64()
}
