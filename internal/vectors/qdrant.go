// Package vectors keeps executor profile embeddings in Qdrant so scoring
// does not re-embed every executor on every selection pass.
package vectors

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// CollectionExecutors holds one point per registered executor
const CollectionExecutors = "executor_profiles"

// Index wraps the Qdrant client for executor profile operations
type Index struct {
	client *qdrant.Client
}

// Config for the profile index
type Config struct {
	Host   string // Qdrant host, default "localhost"
	Port   int    // Qdrant gRPC port, default 6334
	UseTLS bool   // Use TLS
}

// NewIndex connects to Qdrant
func NewIndex(cfg Config) (*Index, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}

	return &Index{client: client}, nil
}

// Close closes the Qdrant connection
func (x *Index) Close() error {
	return x.client.Close()
}

// EnsureCollection creates the executor profile collection if missing
func (x *Index) EnsureCollection(ctx context.Context, dimension uint64) error {
	exists, err := x.client.CollectionExists(ctx, CollectionExecutors)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", CollectionExecutors, err)
	}
	if exists {
		return nil
	}

	err = x.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: CollectionExecutors,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", CollectionExecutors, err)
	}
	return nil
}

// pointID derives a stable UUID from the executor ID; executor IDs are
// caller-chosen strings, not UUIDs
func pointID(executorID string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(executorID)).String())
}

// UpsertProfile stores an executor's profile embedding
func (x *Index) UpsertProfile(ctx context.Context, executorID, name string, vector []float32) error {
	_, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: CollectionExecutors,
		Points: []*qdrant.PointStruct{
			{
				Id:      pointID(executorID),
				Vectors: qdrant.NewVectors(vector...),
				Payload: map[string]*qdrant.Value{
					"executor_id": qdrant.NewValueString(executorID),
					"name":        qdrant.NewValueString(name),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert executor profile: %w", err)
	}
	return nil
}

// Vector fetches the stored embedding for an executor. Returns nil with no
// error if no profile is stored.
func (x *Index) Vector(ctx context.Context, executorID string) ([]float32, error) {
	points, err := x.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: CollectionExecutors,
		Ids:            []*qdrant.PointId{pointID(executorID)},
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch executor profile: %w", err)
	}
	if len(points) == 0 {
		return nil, nil
	}

	out := points[0].GetVectors().GetVector()
	if out == nil {
		return nil, nil
	}
	return out.GetData(), nil
}

// Similar is one semantic search hit
type Similar struct {
	ExecutorID string
	Name       string
	Score      float32
}

// Search returns the executors whose profiles are closest to the vector
func (x *Index) Search(ctx context.Context, vector []float32, limit uint64) ([]Similar, error) {
	results, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: CollectionExecutors,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Similar, len(results))
	for i, r := range results {
		hits[i] = Similar{
			ExecutorID: r.Payload["executor_id"].GetStringValue(),
			Name:       r.Payload["name"].GetStringValue(),
			Score:      r.Score,
		}
	}
	return hits, nil
}

// Delete removes an executor's profile
func (x *Index) Delete(ctx context.Context, executorID string) error {
	_, err := x.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: CollectionExecutors,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{
					Ids: []*qdrant.PointId{pointID(executorID)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	return nil
}
