// Package retriever runs dense and sparse similarity search against the
// vector index and fuses the two ranked lists. With several query
// variants the per-origin lists are unioned first, keeping each chunk's
// best native score, so fusion always sees at most one dense and one
// sparse list.
package retriever

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/autoversio/ragcore/embedding"
	"github.com/autoversio/ragcore/fusion"
	"github.com/autoversio/ragcore/schema"
	"github.com/autoversio/ragcore/vectordb"
)

// overFetchFactor widens each per-origin query so fusion has enough
// candidates to reorder before the final cut.
const overFetchFactor = 2

type Params struct {
	WorkspaceID string
	TopK        int
	Threshold   float64
	Hybrid      bool
}

type Hybrid struct {
	embedder embedding.Embedder
	index    vectordb.Provider
	rrfK     int
	log      *zap.Logger
}

func NewHybrid(embedder embedding.Embedder, index vectordb.Provider, rrfK int, log *zap.Logger) *Hybrid {
	if rrfK <= 0 {
		rrfK = fusion.DefaultK
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Hybrid{embedder: embedder, index: index, rrfK: rrfK, log: log}
}

// Retrieve embeds every query variant in one batch, searches dense and
// (when the workspace and backend allow it) sparse concurrently, and
// returns the fused top K. The similarity floor applies to each native
// list before fusion; fused scores are never compared to it. A missing
// workspace collection yields an empty result, not an error.
func (h *Hybrid) Retrieve(ctx context.Context, queries []string, p Params) ([]schema.SearchResult, error) {
	if len(queries) == 0 || p.TopK <= 0 {
		return nil, nil
	}
	dense, sparse, err := h.embedder.EmbedBatch(ctx, queries)
	if err != nil {
		return nil, err
	}

	useSparse := p.Hybrid && h.index.Capabilities().Sparse
	fetch := schema.SearchOptions{TopK: p.TopK * overFetchFactor, Threshold: p.Threshold}

	var mu sync.Mutex
	var denseHits, sparseHits []schema.SearchResult
	eg, gctx := errgroup.WithContext(ctx)

	for i := range queries {
		vec := dense[i]
		eg.Go(func() error {
			res, err := h.index.SearchDense(gctx, p.WorkspaceID, vec, fetch)
			if err != nil {
				if errors.Is(err, schema.ErrCollectionNotFound) {
					return nil
				}
				return err
			}
			mu.Lock()
			denseHits = append(denseHits, res...)
			mu.Unlock()
			return nil
		})
		if useSparse && sparse[i] != nil {
			sv := sparse[i]
			eg.Go(func() error {
				res, err := h.index.SearchSparse(gctx, p.WorkspaceID, sv, fetch)
				if err != nil {
					// sparse is best-effort; dense results still stand
					if !errors.Is(err, schema.ErrCollectionNotFound) {
						h.log.Warn("sparse search failed", zap.String("workspace", p.WorkspaceID), zap.Error(err))
					}
					return nil
				}
				mu.Lock()
				sparseHits = append(sparseHits, res...)
				mu.Unlock()
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	lists := [][]schema.SearchResult{unionBest(denseHits)}
	if s := unionBest(sparseHits); len(s) > 0 {
		lists = append(lists, s)
	}
	fused := fusion.RRF(lists, h.rrfK)
	if len(fused) > p.TopK {
		fused = fused[:p.TopK]
	}
	return fused, nil
}

// unionBest merges hits from multiple query variants into one ranked
// list, keeping each chunk's best native score.
func unionBest(hits []schema.SearchResult) []schema.SearchResult {
	best := map[string]schema.SearchResult{}
	for _, h := range hits {
		cur, ok := best[h.Chunk.ID]
		if !ok || h.Score > cur.Score {
			best[h.Chunk.ID] = h
		}
	}
	out := make([]schema.SearchResult, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Chunk.Ordinal != out[j].Chunk.Ordinal {
			return out[i].Chunk.Ordinal < out[j].Chunk.Ordinal
		}
		return out[i].Chunk.ID < out[j].Chunk.ID
	})
	return out
}
