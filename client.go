// Package ragcore assembles the retrieval pipeline: document ingest into
// the vector index on the write path, and retrieval, budgeting and the
// streamed answer on the read path.
package ragcore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/autoversio/ragcore/budget"
	"github.com/autoversio/ragcore/cache"
	"github.com/autoversio/ragcore/common/httpx"
	"github.com/autoversio/ragcore/common/logger"
	"github.com/autoversio/ragcore/config"
	"github.com/autoversio/ragcore/embedding"
	"github.com/autoversio/ragcore/llm"
	"github.com/autoversio/ragcore/orchestrator"
	"github.com/autoversio/ragcore/post"
	"github.com/autoversio/ragcore/preretrieve"
	"github.com/autoversio/ragcore/retriever"
	"github.com/autoversio/ragcore/schema"
	"github.com/autoversio/ragcore/textsplitter"
	"github.com/autoversio/ragcore/vectordb"
	"github.com/autoversio/ragcore/websearch"
)

// Client is the entry point for embedding applications. One Client serves
// every workspace; per-workspace behavior comes from the Workspace passed
// to each call.
type Client struct {
	cfg      *config.Config
	log      *zap.Logger
	splitter Splitter
	embedder embedding.Embedder
	index    vectordb.Provider
	hybrid   *retriever.Hybrid
	orch     *orchestrator.Orchestrator
	results  *cache.LRU[[]schema.SearchResult]

	mu   sync.RWMutex
	docs map[string]schema.Document
}

// Splitter is satisfied by textsplitter.Splitter.
type Splitter interface {
	Split(docID, filename, text string) ([]schema.Chunk, error)
}

func New(cfg *config.Config) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	index, err := vectordb.NewProvider(cfg.VectorDB, log.Named("vectordb"))
	if err != nil {
		return nil, err
	}

	embedder := embedding.NewGateway(cfg.Embedding, log.Named("embedding"))
	provider := llm.NewOpenAI(cfg.LLM)
	httpClient := httpx.NewFromConfig(cfg.HTTP, log.Named("httpx"))

	var expander *preretrieve.Expander
	if cfg.Expansion.Enable {
		expander = preretrieve.NewExpander(provider, cfg.Expansion, log.Named("expander"))
	}
	var reranker post.Reranker
	if cfg.Rerank.Enable && cfg.Rerank.Endpoint != "" {
		reranker = post.NewHTTPReranker(cfg.Rerank, httpClient, log.Named("rerank"))
	}
	var webAgent *websearch.Agent
	if cfg.WebSearch.WebhookURL != "" {
		webAgent = websearch.NewAgent(cfg.WebSearch, httpClient, log.Named("websearch"))
	}

	results := cache.NewLRU[[]schema.SearchResult](cfg.Cache.MaxEntries, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
	hybrid := retriever.NewHybrid(embedder, index, cfg.Retrieval.RRFK, log.Named("retriever"))

	orch := orchestrator.New(cfg.Context, cfg.Expansion, orchestrator.Deps{
		Expander:  expander,
		Retriever: hybrid,
		Reranker:  reranker,
		Web:       webAgent,
		Provider:  provider,
		Counter:   budget.NewCounter(),
		Results:   results,
		Log:       log.Named("orchestrator"),
	})

	return &Client{
		cfg:      cfg,
		log:      log,
		splitter: textsplitter.New(cfg.Splitter),
		embedder: embedder,
		index:    index,
		hybrid:   hybrid,
		orch:     orch,
		results:  results,
		docs:     map[string]schema.Document{},
	}, nil
}

// Answer streams the answer for one user turn. See orchestrator.Event
// for the event protocol.
func (c *Client) Answer(ctx context.Context, req orchestrator.Request) <-chan orchestrator.Event {
	return c.orch.Answer(ctx, req)
}

// Search runs retrieval only, without generation. Useful for debugging a
// workspace's corpus and for API surfaces that expose raw passages.
func (c *Client) Search(ctx context.Context, ws config.Workspace, query string) ([]schema.SearchResult, error) {
	return c.hybrid.Retrieve(ctx, []string{query}, retriever.Params{
		WorkspaceID: ws.ID,
		TopK:        ws.TopN,
		Threshold:   ws.SimilarityThreshold,
		Hybrid:      ws.UseHybridSearch,
	})
}

// Document returns the tracked state of an ingested document.
func (c *Client) Document(id string) (schema.Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.docs[id]
	return d, ok
}

// Documents lists tracked documents for a workspace.
func (c *Client) Documents(workspaceID string) []schema.Document {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []schema.Document
	for _, d := range c.docs {
		if d.WorkspaceID == workspaceID {
			out = append(out, d)
		}
	}
	return out
}

func (c *Client) Close() error {
	_ = c.log.Sync()
	return c.index.Close()
}
