// Package embedding produces dense and sparse vector representations for
// text. The same gateway is used at index time and query time so both
// sides of a similarity search live in the same vector space.
package embedding

import (
	"context"
	"fmt"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/autoversio/ragcore/config"
	"github.com/autoversio/ragcore/schema"
)

// Embedder is the contract the write and read paths depend on. Sparse
// vectors are always returned; backends that cannot use them ignore them.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, []*schema.SparseVector, error)
}

// Gateway batches texts against an OpenAI-compatible embeddings endpoint
// and derives sparse term vectors locally. A failed sub-batch fails the
// whole call after retries are exhausted; there is no partial result.
type Gateway struct {
	client    openai.Client
	model     string
	batchSize int
	inFlight  int
	retries   int
	sparse    *SparseEncoder
	log       *zap.Logger
}

func NewGateway(cfg config.EmbeddingConfig, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 64
	}
	inFlight := cfg.MaxInFlight
	if inFlight <= 0 {
		inFlight = 4
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = 3
	}
	return &Gateway{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		batchSize: batch,
		inFlight:  inFlight,
		retries:   retries,
		sparse:    NewSparseEncoder(),
		log:       log,
	}
}

func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, []*schema.SparseVector, error) {
	if len(texts) == 0 {
		return nil, nil, nil
	}

	dense := make([][]float32, len(texts))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.inFlight)

	for start := 0; start < len(texts); start += g.batchSize {
		end := start + g.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		start, end := start, end
		eg.Go(func() error {
			vecs, err := g.embedOnce(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(dense[start:], vecs)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", schema.ErrEmbeddingFailure, err)
	}

	sparse := make([]*schema.SparseVector, len(texts))
	for i, t := range texts {
		sparse[i] = g.sparse.Encode(t)
	}
	return dense, sparse, nil
}

func (g *Gateway) embedOnce(ctx context.Context, batch []string) ([][]float32, error) {
	var out [][]float32
	err := retry.Do(func() error {
		resp, err := g.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Model: g.model,
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: batch},
		})
		if err != nil {
			return err
		}
		if len(resp.Data) != len(batch) {
			return fmt.Errorf("embedding count mismatch: sent %d got %d", len(batch), len(resp.Data))
		}
		out = make([][]float32, len(resp.Data))
		for i, d := range resp.Data {
			vec := make([]float32, len(d.Embedding))
			for j, v := range d.Embedding {
				vec[j] = float32(v)
			}
			out[i] = vec
		}
		return nil
	},
		retry.Attempts(uint(g.retries)),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			g.log.Warn("embedding batch retry", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	return out, err
}
