// Package post reorders retrieval candidates after fusion. The reranker
// calls an external cross-encoder service; when the service is absent or
// failing, candidates pass through in fused order so answers keep
// flowing.
package post

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/autoversio/ragcore/common/httpx"
	"github.com/autoversio/ragcore/config"
	"github.com/autoversio/ragcore/schema"
)

type Reranker interface {
	Rerank(ctx context.Context, query string, in []schema.SearchResult, topN int) schema.StageResult[[]schema.SearchResult]
}

// HTTPReranker posts a JSON payload to a cross-encoder service.
// Request body:  {"query":"...","candidates":[{"id":"","text":""}],"top_n":5}
// Response body: {"ranking":[{"id":"","score":0.9}]}
type HTTPReranker struct {
	endpoint string
	client   *httpx.Client
	timeout  time.Duration
	log      *zap.Logger
}

func NewHTTPReranker(cfg config.RerankConfig, client *httpx.Client, log *zap.Logger) *HTTPReranker {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if client == nil {
		client = httpx.NewFromConfig(nil, log)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPReranker{endpoint: cfg.Endpoint, client: client, timeout: timeout, log: log}
}

type rerankReq struct {
	Query      string            `json:"query"`
	Candidates []rerankCandidate `json:"candidates"`
	TopN       int               `json:"top_n,omitempty"`
}

type rerankCandidate struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type rerankResp struct {
	Ranking []struct {
		ID    string  `json:"id"`
		Score float64 `json:"score"`
	} `json:"ranking"`
}

// Rerank reorders candidates by cross-encoder relevance. Ids missing from
// the service ranking are dropped; ids the service invents are ignored.
// Any failure degrades to the fused order cut to topN.
func (h *HTTPReranker) Rerank(ctx context.Context, query string, in []schema.SearchResult, topN int) schema.StageResult[[]schema.SearchResult] {
	if h.endpoint == "" {
		return skippedCut(in, topN, "no reranker configured")
	}
	if len(in) == 0 {
		return schema.Applied([]schema.SearchResult{})
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req := rerankReq{Query: query, TopN: topN}
	byID := make(map[string]schema.SearchResult, len(in))
	for _, c := range in {
		byID[c.Chunk.ID] = c
		req.Candidates = append(req.Candidates, rerankCandidate{ID: c.Chunk.ID, Text: c.Chunk.Text})
	}
	body, _ := json.Marshal(req)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return h.degrade(in, topN, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return h.degrade(in, topN, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return h.degrade(in, topN, fmt.Errorf("reranker returned status %d", resp.StatusCode))
	}

	var rr rerankResp
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return h.degrade(in, topN, err)
	}
	if len(rr.Ranking) == 0 {
		return h.degrade(in, topN, fmt.Errorf("reranker returned empty ranking"))
	}

	out := make([]schema.SearchResult, 0, len(rr.Ranking))
	for _, r := range rr.Ranking {
		c, ok := byID[r.ID]
		if !ok {
			continue
		}
		c.Score = r.Score
		c.Origin = schema.OriginReranked
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return schema.Applied(out)
}

func (h *HTTPReranker) degrade(in []schema.SearchResult, topN int, err error) schema.StageResult[[]schema.SearchResult] {
	h.log.Warn("rerank skipped", zap.Error(err))
	return skippedCut(in, topN, err.Error())
}

func skippedCut(in []schema.SearchResult, topN int, reason string) schema.StageResult[[]schema.SearchResult] {
	out := append([]schema.SearchResult(nil), in...)
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	r := schema.Skipped[[]schema.SearchResult](reason)
	r.Value = out
	return r
}
