package vectordb

import (
	"context"
	"errors"
	"fmt"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/autoversio/ragcore/config"
	"github.com/autoversio/ragcore/schema"
)

const (
	denseVectorName  = "dense"
	sparseVectorName = "sparse"
)

// Qdrant keeps one named dense vector and one named sparse vector per
// point. Sparse weights are term frequencies; the collection applies IDF
// at query time.
type Qdrant struct {
	client *qdrant.Client
	log    *zap.Logger
}

func NewQdrant(cfg config.QdrantConfig, log *zap.Logger) (*Qdrant, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant client: %w", err)
	}
	return &Qdrant{client: client, log: log}, nil
}

func (q *Qdrant) Capabilities() Capabilities { return Capabilities{Sparse: true} }

func (q *Qdrant) Close() error { return q.client.Close() }

func (q *Qdrant) EnsureWorkspace(ctx context.Context, workspaceID string, denseDim int) error {
	name := collectionName(workspaceID)
	var exists bool
	err := q.withRetry(ctx, func() error {
		var err error
		exists, err = q.client.CollectionExists(ctx, name)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %v", schema.ErrIndexUnavailable, err)
	}
	if exists {
		return nil
	}
	err = q.withRetry(ctx, func() error {
		return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
				denseVectorName: {
					Size:     uint64(denseDim),
					Distance: qdrant.Distance_Cosine,
				},
			}),
			SparseVectorsConfig: qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
				sparseVectorName: {
					Modifier: qdrant.Modifier_Idf.Enum(),
				},
			}),
		})
	})
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", schema.ErrIndexUnavailable, name, err)
	}
	q.log.Info("created collection", zap.String("collection", name), zap.Int("dim", denseDim))
	return nil
}

func (q *Qdrant) Upsert(ctx context.Context, workspaceID string, chunks []schema.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, c := range chunks {
		vectors := map[string]*qdrant.Vector{
			denseVectorName: qdrant.NewVectorDense(c.Dense),
		}
		if c.Sparse != nil {
			vectors[sparseVectorName] = qdrant.NewVectorSparse(c.Sparse.Indices, c.Sparse.Values)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(c.ID),
			Vectors: qdrant.NewVectorsMap(vectors),
			Payload: chunkPayload(c),
		})
	}
	err := q.withRetry(ctx, func() error {
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collectionName(workspaceID),
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: upsert: %v", schema.ErrIndexUnavailable, err)
	}
	return nil
}

func (q *Qdrant) DeleteDocument(ctx context.Context, workspaceID, documentID string) error {
	err := q.withRetry(ctx, func() error {
		_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: collectionName(workspaceID),
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
					Filter: &qdrant.Filter{
						Must: []*qdrant.Condition{
							qdrant.NewMatch("document_id", documentID),
						},
					},
				},
			},
			Wait: qdrant.PtrOf(true),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: delete document %s: %v", schema.ErrIndexUnavailable, documentID, err)
	}
	return nil
}

func (q *Qdrant) DropWorkspace(ctx context.Context, workspaceID string) error {
	err := q.withRetry(ctx, func() error {
		return q.client.DeleteCollection(ctx, collectionName(workspaceID))
	})
	if err != nil {
		return fmt.Errorf("%w: drop workspace %s: %v", schema.ErrIndexUnavailable, workspaceID, err)
	}
	return nil
}

func (q *Qdrant) SearchDense(ctx context.Context, workspaceID string, vector []float32, opts schema.SearchOptions) ([]schema.SearchResult, error) {
	return q.query(ctx, workspaceID, &qdrant.QueryPoints{
		CollectionName: collectionName(workspaceID),
		Query:          qdrant.NewQuery(vector...),
		Using:          qdrant.PtrOf(denseVectorName),
		Limit:          qdrant.PtrOf(uint64(opts.TopK)),
		WithPayload:    qdrant.NewWithPayload(true),
		ScoreThreshold: scoreThreshold(opts.Threshold),
	}, schema.OriginDense)
}

func (q *Qdrant) SearchSparse(ctx context.Context, workspaceID string, vector *schema.SparseVector, opts schema.SearchOptions) ([]schema.SearchResult, error) {
	if vector == nil {
		return nil, nil
	}
	return q.query(ctx, workspaceID, &qdrant.QueryPoints{
		CollectionName: collectionName(workspaceID),
		Query:          qdrant.NewQuerySparse(vector.Indices, vector.Values),
		Using:          qdrant.PtrOf(sparseVectorName),
		Limit:          qdrant.PtrOf(uint64(opts.TopK)),
		WithPayload:    qdrant.NewWithPayload(true),
	}, schema.OriginSparse)
}

func (q *Qdrant) query(ctx context.Context, workspaceID string, req *qdrant.QueryPoints, origin schema.Origin) ([]schema.SearchResult, error) {
	var points []*qdrant.ScoredPoint
	err := q.withRetry(ctx, func() error {
		var err error
		points, err = q.client.Query(ctx, req)
		return err
	})
	if err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
			return nil, schema.ErrCollectionNotFound
		}
		return nil, fmt.Errorf("%w: query: %v", schema.ErrIndexUnavailable, err)
	}
	results := make([]schema.SearchResult, 0, len(points))
	for _, p := range points {
		results = append(results, schema.SearchResult{
			Chunk:  chunkFromPoint(p),
			Score:  float64(p.Score),
			Origin: origin,
		})
	}
	return results, nil
}

func scoreThreshold(v float64) *float32 {
	if v <= 0 {
		return nil
	}
	return qdrant.PtrOf(float32(v))
}

func chunkPayload(c schema.Chunk) map[string]*qdrant.Value {
	return qdrant.NewValueMap(map[string]any{
		"document_id":   c.DocumentID,
		"ordinal":       int64(c.Ordinal),
		"text":          c.Text,
		"content_type":  string(c.Metadata.ContentType),
		"section_title": c.Metadata.SectionTitle,
		"has_table":     c.Metadata.HasTable,
		"has_code":      c.Metadata.HasCode,
		"filename":      c.Metadata.Filename,
	})
}

func chunkFromPoint(p *qdrant.ScoredPoint) schema.Chunk {
	pl := p.Payload
	c := schema.Chunk{
		ID:         p.Id.GetUuid(),
		DocumentID: pl["document_id"].GetStringValue(),
		Ordinal:    int(pl["ordinal"].GetIntegerValue()),
		Text:       pl["text"].GetStringValue(),
		Metadata: schema.ChunkMetadata{
			ContentType:  schema.ContentType(pl["content_type"].GetStringValue()),
			SectionTitle: pl["section_title"].GetStringValue(),
			HasTable:     pl["has_table"].GetBoolValue(),
			HasCode:      pl["has_code"].GetBoolValue(),
			Filename:     pl["filename"].GetStringValue(),
		},
	}
	return c
}

// withRetry retries transient gRPC failures with capped backoff.
func (q *Qdrant) withRetry(ctx context.Context, op func() error) error {
	return retry.Do(op,
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
		retry.MaxDelay(2*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransient),
		retry.OnRetry(func(n uint, err error) {
			q.log.Warn("qdrant retry", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted:
		return true
	}
	return false
}
