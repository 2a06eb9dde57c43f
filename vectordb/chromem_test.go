package vectordb

import (
	"context"
	"errors"
	"testing"

	"github.com/autoversio/ragcore/config"
	"github.com/autoversio/ragcore/schema"
)

func testChunk(id, docID string, ordinal int, text string, vec []float32) schema.Chunk {
	return schema.Chunk{
		ID: id, DocumentID: docID, Ordinal: ordinal, Text: text,
		Metadata: schema.ChunkMetadata{ContentType: schema.ContentText, Filename: "f.md"},
		Dense:    vec,
	}
}

func newMem(t *testing.T) *Chromem {
	t.Helper()
	c, err := NewChromem(config.ChromemConfig{}, nil)
	if err != nil {
		t.Fatalf("new chromem: %v", err)
	}
	return c
}

func TestChromem_UpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	c := newMem(t)
	if err := c.EnsureWorkspace(ctx, "ws1", 3); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	chunks := []schema.Chunk{
		testChunk("11111111-1111-1111-1111-111111111111", "d1", 0, "alpha", []float32{1, 0, 0}),
		testChunk("22222222-2222-2222-2222-222222222222", "d1", 1, "beta", []float32{0, 1, 0}),
	}
	if err := c.Upsert(ctx, "ws1", chunks); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	res, err := c.SearchDense(ctx, "ws1", []float32{1, 0, 0}, schema.SearchOptions{TopK: 5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res) != 2 || res[0].Chunk.Text != "alpha" {
		t.Fatalf("unexpected results: %+v", res)
	}
	if res[0].Origin != schema.OriginDense {
		t.Fatalf("origin = %q", res[0].Origin)
	}
	if res[0].Chunk.DocumentID != "d1" || res[0].Chunk.Ordinal != 0 {
		t.Fatalf("metadata lost: %+v", res[0].Chunk)
	}
}

func TestChromem_ThresholdFilters(t *testing.T) {
	ctx := context.Background()
	c := newMem(t)
	_ = c.EnsureWorkspace(ctx, "ws1", 3)
	_ = c.Upsert(ctx, "ws1", []schema.Chunk{
		testChunk("11111111-1111-1111-1111-111111111111", "d1", 0, "near", []float32{1, 0, 0}),
		testChunk("22222222-2222-2222-2222-222222222222", "d1", 1, "far", []float32{-1, 0, 0}),
	})
	res, err := c.SearchDense(ctx, "ws1", []float32{1, 0, 0}, schema.SearchOptions{TopK: 5, Threshold: 0.5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res) != 1 || res[0].Chunk.Text != "near" {
		t.Fatalf("threshold did not filter: %+v", res)
	}
}

func TestChromem_FailedUpsertRollsBack(t *testing.T) {
	ctx := context.Background()
	c := newMem(t)
	if err := c.EnsureWorkspace(ctx, "ws1", 3); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	// the final chunk is invalid, so the batch fails after earlier
	// chunks may already be in the store
	chunks := []schema.Chunk{
		testChunk("11111111-1111-1111-1111-111111111111", "d1", 0, "alpha", []float32{1, 0, 0}),
		testChunk("22222222-2222-2222-2222-222222222222", "d1", 1, "beta", []float32{0, 1, 0}),
		{DocumentID: "d1", Ordinal: 2},
	}
	if err := c.Upsert(ctx, "ws1", chunks); err == nil {
		t.Fatalf("expected upsert error")
	}
	res, err := c.SearchDense(ctx, "ws1", []float32{1, 0, 0}, schema.SearchOptions{TopK: 5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res) != 0 {
		t.Fatalf("failed document must not be queryable: %+v", res)
	}
}

func TestChromem_DeleteDocumentCascades(t *testing.T) {
	ctx := context.Background()
	c := newMem(t)
	_ = c.EnsureWorkspace(ctx, "ws1", 3)
	_ = c.Upsert(ctx, "ws1", []schema.Chunk{
		testChunk("11111111-1111-1111-1111-111111111111", "keep", 0, "keep me", []float32{1, 0, 0}),
		testChunk("22222222-2222-2222-2222-222222222222", "gone", 0, "drop me", []float32{0, 1, 0}),
		testChunk("33333333-3333-3333-3333-333333333333", "gone", 1, "drop me too", []float32{0, 0, 1}),
	})
	if err := c.DeleteDocument(ctx, "ws1", "gone"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	res, err := c.SearchDense(ctx, "ws1", []float32{1, 0, 0}, schema.SearchOptions{TopK: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res) != 1 || res[0].Chunk.DocumentID != "keep" {
		t.Fatalf("cascade failed: %+v", res)
	}
}

func TestChromem_DropWorkspace(t *testing.T) {
	ctx := context.Background()
	c := newMem(t)
	_ = c.EnsureWorkspace(ctx, "ws1", 3)
	if err := c.DropWorkspace(ctx, "ws1"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	_, err := c.SearchDense(ctx, "ws1", []float32{1, 0, 0}, schema.SearchOptions{TopK: 1})
	if !errors.Is(err, schema.ErrCollectionNotFound) {
		t.Fatalf("expected ErrCollectionNotFound, got %v", err)
	}
}

func TestChromem_SparseUnsupported(t *testing.T) {
	c := newMem(t)
	if c.Capabilities().Sparse {
		t.Fatalf("chromem should not report sparse capability")
	}
	_, err := c.SearchSparse(context.Background(), "ws1", &schema.SparseVector{Indices: []uint32{1}, Values: []float32{1}}, schema.SearchOptions{TopK: 1})
	if !errors.Is(err, schema.ErrSparseUnsupported) {
		t.Fatalf("expected ErrSparseUnsupported, got %v", err)
	}
}

func TestChromem_SearchEmptyWorkspace(t *testing.T) {
	ctx := context.Background()
	c := newMem(t)
	_ = c.EnsureWorkspace(ctx, "ws1", 3)
	res, err := c.SearchDense(ctx, "ws1", []float32{1, 0, 0}, schema.SearchOptions{TopK: 5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res) != 0 {
		t.Fatalf("expected no results, got %d", len(res))
	}
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(config.VectorDBConfig{Provider: "chromem"}, nil)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if p.Capabilities().Sparse {
		t.Fatalf("wrong backend from factory")
	}
	if _, err := NewProvider(config.VectorDBConfig{Provider: "bogus"}, nil); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}
