// Package websearch queries an external search agent over a webhook. Web
// results supplement retrieved passages when a workspace opts in; the
// agent being down never fails an answer.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/autoversio/ragcore/common/httpx"
	"github.com/autoversio/ragcore/config"
)

type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type Agent struct {
	webhook    string
	maxResults int
	timeout    time.Duration
	client     *httpx.Client
	log        *zap.Logger
}

func NewAgent(cfg config.WebSearchConfig, client *httpx.Client, log *zap.Logger) *Agent {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 3
	}
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if client == nil {
		client = httpx.NewFromConfig(nil, log)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Agent{webhook: cfg.WebhookURL, maxResults: maxResults, timeout: timeout, client: client, log: log}
}

type searchReq struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type searchResp struct {
	Results []Result `json:"results"`
}

// Search posts the query to the agent webhook. Errors are returned so
// the caller can record the skip; the caller treats them as soft.
func (a *Agent) Search(ctx context.Context, query string) ([]Result, error) {
	if a.webhook == "" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	body, _ := json.Marshal(searchReq{Query: query, MaxResults: a.maxResults})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhook, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search agent: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web search agent: status %d", resp.StatusCode)
	}
	var sr searchResp
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("web search agent: decode: %w", err)
	}
	results := sr.Results
	if len(results) > a.maxResults {
		results = results[:a.maxResults]
	}
	return results, nil
}
