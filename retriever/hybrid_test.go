package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/autoversio/ragcore/schema"
	"github.com/autoversio/ragcore/vectordb"
)

type stubEmbedder struct{}

func (stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, []*schema.SparseVector, error) {
	dense := make([][]float32, len(texts))
	sparse := make([]*schema.SparseVector, len(texts))
	for i := range texts {
		dense[i] = []float32{1, 0}
		sparse[i] = &schema.SparseVector{Indices: []uint32{1}, Values: []float32{1}}
	}
	return dense, sparse, nil
}

type stubIndex struct {
	sparse      bool
	denseRes    []schema.SearchResult
	sparseRes   []schema.SearchResult
	denseErr    error
	sparseErr   error
	denseCalls  int
	sparseCalls int
}

func (s *stubIndex) EnsureWorkspace(context.Context, string, int) error        { return nil }
func (s *stubIndex) Upsert(context.Context, string, []schema.Chunk) error      { return nil }
func (s *stubIndex) DeleteDocument(context.Context, string, string) error      { return nil }
func (s *stubIndex) DropWorkspace(context.Context, string) error               { return nil }
func (s *stubIndex) Capabilities() vectordb.Capabilities                       { return vectordb.Capabilities{Sparse: s.sparse} }
func (s *stubIndex) Close() error                                              { return nil }

func (s *stubIndex) SearchDense(context.Context, string, []float32, schema.SearchOptions) ([]schema.SearchResult, error) {
	s.denseCalls++
	return s.denseRes, s.denseErr
}

func (s *stubIndex) SearchSparse(context.Context, string, *schema.SparseVector, schema.SearchOptions) ([]schema.SearchResult, error) {
	s.sparseCalls++
	return s.sparseRes, s.sparseErr
}

func hit(id string, ordinal int, score float64, origin schema.Origin) schema.SearchResult {
	return schema.SearchResult{Chunk: schema.Chunk{ID: id, Ordinal: ordinal, Text: id}, Score: score, Origin: origin}
}

func TestHybrid_FusesBothOrigins(t *testing.T) {
	idx := &stubIndex{
		sparse:    true,
		denseRes:  []schema.SearchResult{hit("chunk3", 2, 0.8, schema.OriginDense)},
		sparseRes: []schema.SearchResult{hit("chunk2", 1, 4.0, schema.OriginSparse)},
	}
	h := NewHybrid(stubEmbedder{}, idx, 60, nil)
	out, err := h.Retrieve(context.Background(), []string{"q"}, Params{WorkspaceID: "ws", TopK: 5, Hybrid: true})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected both single-origin hits, got %+v", out)
	}
	if idx.sparseCalls != 1 {
		t.Fatalf("sparse not queried")
	}
}

func TestHybrid_DenseOnlyWhenHybridOff(t *testing.T) {
	idx := &stubIndex{
		sparse:   true,
		denseRes: []schema.SearchResult{hit("chunk3", 2, 0.8, schema.OriginDense)},
	}
	h := NewHybrid(stubEmbedder{}, idx, 60, nil)
	out, err := h.Retrieve(context.Background(), []string{"q"}, Params{WorkspaceID: "ws", TopK: 5, Hybrid: false})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(out) != 1 || out[0].Chunk.ID != "chunk3" {
		t.Fatalf("expected chunk3 only, got %+v", out)
	}
	if idx.sparseCalls != 0 {
		t.Fatalf("sparse queried with hybrid disabled")
	}
}

func TestHybrid_SparseBackendWithoutCapability(t *testing.T) {
	idx := &stubIndex{
		sparse:   false,
		denseRes: []schema.SearchResult{hit("a", 0, 0.9, schema.OriginDense)},
	}
	h := NewHybrid(stubEmbedder{}, idx, 60, nil)
	out, err := h.Retrieve(context.Background(), []string{"q"}, Params{WorkspaceID: "ws", TopK: 5, Hybrid: true})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(out) != 1 || idx.sparseCalls != 0 {
		t.Fatalf("expected dense-only fallback, got %+v (sparse calls %d)", out, idx.sparseCalls)
	}
}

func TestHybrid_SparseFailureIsSoft(t *testing.T) {
	idx := &stubIndex{
		sparse:    true,
		denseRes:  []schema.SearchResult{hit("a", 0, 0.9, schema.OriginDense)},
		sparseErr: errors.New("sparse backend down"),
	}
	h := NewHybrid(stubEmbedder{}, idx, 60, nil)
	out, err := h.Retrieve(context.Background(), []string{"q"}, Params{WorkspaceID: "ws", TopK: 5, Hybrid: true})
	if err != nil {
		t.Fatalf("sparse failure must not fail retrieval: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("dense results lost: %+v", out)
	}
}

func TestHybrid_MissingCollectionIsEmpty(t *testing.T) {
	idx := &stubIndex{denseErr: schema.ErrCollectionNotFound}
	h := NewHybrid(stubEmbedder{}, idx, 60, nil)
	out, err := h.Retrieve(context.Background(), []string{"q"}, Params{WorkspaceID: "ws", TopK: 5})
	if err != nil || len(out) != 0 {
		t.Fatalf("expected empty result, got %+v err %v", out, err)
	}
}

func TestHybrid_VariantsUnionKeepsBestScore(t *testing.T) {
	idx := &stubIndex{
		denseRes: []schema.SearchResult{hit("a", 0, 0.7, schema.OriginDense)},
	}
	h := NewHybrid(stubEmbedder{}, idx, 60, nil)
	out, err := h.Retrieve(context.Background(), []string{"q1", "q2", "q3"}, Params{WorkspaceID: "ws", TopK: 5})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("variant union duplicated a chunk: %+v", out)
	}
	if idx.denseCalls != 3 {
		t.Fatalf("expected one dense search per variant, got %d", idx.denseCalls)
	}
}

func TestHybrid_TopKCut(t *testing.T) {
	idx := &stubIndex{denseRes: []schema.SearchResult{
		hit("a", 0, 0.9, schema.OriginDense),
		hit("b", 1, 0.8, schema.OriginDense),
		hit("c", 2, 0.7, schema.OriginDense),
	}}
	h := NewHybrid(stubEmbedder{}, idx, 60, nil)
	out, err := h.Retrieve(context.Background(), []string{"q"}, Params{WorkspaceID: "ws", TopK: 2})
	if err != nil || len(out) != 2 {
		t.Fatalf("topK cut failed: %+v err %v", out, err)
	}
}
