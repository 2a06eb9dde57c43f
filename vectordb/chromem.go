package vectordb

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/autoversio/ragcore/config"
	"github.com/autoversio/ragcore/schema"
)

// Chromem is the embedded backend. Vectors are computed upstream and
// handed in, so the store never calls an embedding model itself. Sparse
// search is not available; callers fall back to dense-only retrieval.
type Chromem struct {
	db  *chromem.DB
	log *zap.Logger
}

func NewChromem(cfg config.ChromemConfig, log *zap.Logger) (*Chromem, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var db *chromem.DB
	var err error
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("chromem open %s: %w", cfg.Path, err)
		}
	}
	return &Chromem{db: db, log: log}, nil
}

// externalOnly guards against accidental use of chromem's built-in
// embedding path; all vectors arrive precomputed.
func externalOnly(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("embeddings are computed externally")
}

func (c *Chromem) Capabilities() Capabilities { return Capabilities{Sparse: false} }

func (c *Chromem) Close() error { return nil }

func (c *Chromem) EnsureWorkspace(_ context.Context, workspaceID string, _ int) error {
	_, err := c.db.GetOrCreateCollection(collectionName(workspaceID), nil, externalOnly)
	if err != nil {
		return fmt.Errorf("%w: %v", schema.ErrIndexUnavailable, err)
	}
	return nil
}

func (c *Chromem) collection(workspaceID string) (*chromem.Collection, error) {
	col := c.db.GetCollection(collectionName(workspaceID), externalOnly)
	if col == nil {
		return nil, schema.ErrCollectionNotFound
	}
	return col, nil
}

func (c *Chromem) Upsert(ctx context.Context, workspaceID string, chunks []schema.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	col, err := c.db.GetOrCreateCollection(collectionName(workspaceID), nil, externalOnly)
	if err != nil {
		return fmt.Errorf("%w: %v", schema.ErrIndexUnavailable, err)
	}
	docs := make([]chromem.Document, 0, len(chunks))
	for _, ch := range chunks {
		docs = append(docs, chromem.Document{
			ID:        ch.ID,
			Content:   ch.Text,
			Embedding: ch.Dense,
			Metadata: map[string]string{
				"document_id":   ch.DocumentID,
				"ordinal":       strconv.Itoa(ch.Ordinal),
				"content_type":  string(ch.Metadata.ContentType),
				"section_title": ch.Metadata.SectionTitle,
				"has_table":     strconv.FormatBool(ch.Metadata.HasTable),
				"has_code":      strconv.FormatBool(ch.Metadata.HasCode),
				"filename":      ch.Metadata.Filename,
			},
		})
	}
	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		// documents are added one at a time, so a mid-batch error can
		// leave a partial chunk set behind; roll it back so a failed
		// document is never queryable
		for docID := range documentIDs(chunks) {
			if derr := col.Delete(context.WithoutCancel(ctx), map[string]string{"document_id": docID}, nil); derr != nil {
				c.log.Warn("rollback after failed upsert", zap.String("document_id", docID), zap.Error(derr))
			}
		}
		return fmt.Errorf("%w: upsert: %v", schema.ErrIndexUnavailable, err)
	}
	return nil
}

func documentIDs(chunks []schema.Chunk) map[string]struct{} {
	ids := make(map[string]struct{}, 1)
	for _, ch := range chunks {
		ids[ch.DocumentID] = struct{}{}
	}
	return ids
}

func (c *Chromem) DeleteDocument(ctx context.Context, workspaceID, documentID string) error {
	col, err := c.collection(workspaceID)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, map[string]string{"document_id": documentID}, nil); err != nil {
		return fmt.Errorf("%w: delete document %s: %v", schema.ErrIndexUnavailable, documentID, err)
	}
	return nil
}

func (c *Chromem) DropWorkspace(_ context.Context, workspaceID string) error {
	if err := c.db.DeleteCollection(collectionName(workspaceID)); err != nil {
		return fmt.Errorf("%w: drop workspace %s: %v", schema.ErrIndexUnavailable, workspaceID, err)
	}
	return nil
}

func (c *Chromem) SearchDense(ctx context.Context, workspaceID string, vector []float32, opts schema.SearchOptions) ([]schema.SearchResult, error) {
	col, err := c.collection(workspaceID)
	if err != nil {
		return nil, err
	}
	k := opts.TopK
	if n := col.Count(); k > n {
		k = n
	}
	if k == 0 {
		return nil, nil
	}
	hits, err := col.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", schema.ErrIndexUnavailable, err)
	}
	results := make([]schema.SearchResult, 0, len(hits))
	for _, h := range hits {
		if opts.Threshold > 0 && float64(h.Similarity) < opts.Threshold {
			continue
		}
		results = append(results, schema.SearchResult{
			Chunk:  chunkFromResult(h),
			Score:  float64(h.Similarity),
			Origin: schema.OriginDense,
		})
	}
	return results, nil
}

func (c *Chromem) SearchSparse(context.Context, string, *schema.SparseVector, schema.SearchOptions) ([]schema.SearchResult, error) {
	return nil, schema.ErrSparseUnsupported
}

func chunkFromResult(r chromem.Result) schema.Chunk {
	ordinal, _ := strconv.Atoi(r.Metadata["ordinal"])
	return schema.Chunk{
		ID:         r.ID,
		DocumentID: r.Metadata["document_id"],
		Ordinal:    ordinal,
		Text:       r.Content,
		Metadata: schema.ChunkMetadata{
			ContentType:  schema.ContentType(r.Metadata["content_type"]),
			SectionTitle: r.Metadata["section_title"],
			HasTable:     r.Metadata["has_table"] == "true",
			HasCode:      r.Metadata["has_code"] == "true",
			Filename:     r.Metadata["filename"],
		},
	}
}
