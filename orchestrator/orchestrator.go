// Package orchestrator runs the read path end to end: query expansion,
// hybrid retrieval, reranking, web search, context budgeting, prompt
// assembly and the streamed answer with its citation list.
package orchestrator

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/autoversio/ragcore/budget"
	"github.com/autoversio/ragcore/cache"
	"github.com/autoversio/ragcore/config"
	"github.com/autoversio/ragcore/llm"
	"github.com/autoversio/ragcore/metrics"
	"github.com/autoversio/ragcore/post"
	"github.com/autoversio/ragcore/preretrieve"
	"github.com/autoversio/ragcore/retriever"
	"github.com/autoversio/ragcore/schema"
	"github.com/autoversio/ragcore/websearch"
)

// Attachment is file content pasted into the current turn. It shares the
// user pool with the query text and is truncated before the query is.
type Attachment struct {
	Filename string
	Text     string
}

type Request struct {
	Workspace   config.Workspace
	Query       string
	History     []llm.Message
	Attachments []Attachment
}

// Retriever is satisfied by retriever.Hybrid; tests substitute stubs.
type Retriever interface {
	Retrieve(ctx context.Context, queries []string, p retriever.Params) ([]schema.SearchResult, error)
}

type Orchestrator struct {
	cfg       config.ContextConfig
	expansion config.ExpansionConfig
	expander  *preretrieve.Expander
	retriever Retriever
	reranker  post.Reranker
	web       *websearch.Agent
	provider  llm.Provider
	counter   *budget.Counter
	results   *cache.LRU[[]schema.SearchResult]
	log       *zap.Logger
}

type Deps struct {
	Expander  *preretrieve.Expander
	Retriever Retriever
	Reranker  post.Reranker
	Web       *websearch.Agent
	Provider  llm.Provider
	Counter   *budget.Counter
	Results   *cache.LRU[[]schema.SearchResult]
	Log       *zap.Logger
}

func New(cfg config.ContextConfig, expansion config.ExpansionConfig, deps Deps) *Orchestrator {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	counter := deps.Counter
	if counter == nil {
		counter = budget.NewCounter()
	}
	return &Orchestrator{
		cfg:       cfg,
		expansion: expansion,
		expander:  deps.Expander,
		retriever: deps.Retriever,
		reranker:  deps.Reranker,
		web:       deps.Web,
		provider:  deps.Provider,
		counter:   counter,
		results:   deps.Results,
		log:       log,
	}
}

// Answer runs the pipeline and streams events on the returned channel.
// The channel closes after EventDone or EventError; callers should
// receive until it closes. Cancelling the context stops the token
// stream and still delivers the citation list for whatever had been
// assembled, as long as the caller keeps draining; trailing events are
// dropped rather than leaking the pipeline goroutine when the caller
// stops reading.
func (o *Orchestrator) Answer(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		o.run(ctx, req, events)
	}()
	return events
}

func (o *Orchestrator) run(ctx context.Context, req Request, events chan<- Event) {
	ws := req.Workspace
	start := time.Now()

	queries := []string{req.Query}
	if o.expansion.Enable && o.expander != nil {
		res := o.expander.Expand(ctx, req.Query)
		queries = res.Value
		if !res.Applied {
			metrics.IncStageSkip("expansion")
		}
	}

	candidates, err := o.retrieve(ctx, ws, queries, req.Query)
	if err != nil {
		emit(ctx, events, Event{Type: EventError, Err: err})
		return
	}

	var webResults []websearch.Result
	if ws.UseWebSearch && o.web != nil {
		webResults, err = o.web.Search(ctx, req.Query)
		if err != nil {
			o.log.Warn("web search skipped", zap.Error(err))
			metrics.IncStageSkip("websearch")
			webResults = nil
		}
	}

	// budget the three pools, then fit each one independently
	ceiling := ws.ContextTokens
	if ceiling <= 0 {
		ceiling = o.cfg.MaxTokens
	}
	alloc := budget.Allocate(ceiling, ws.HistoryRatio, ws.SystemRatio, ws.UserRatio)

	// passages and web snippets are fitted against the rendered system
	// message as it grows, so labels, headers and the scaffold (mode
	// instructions plus workspace prompt) are all charged to the pool
	docOrdinal := map[string]int{}
	nextOrd := 0
	passages, prompt := budget.FitPassages(o.counter, candidates, contextScaffold(ws), alloc.System, func(p schema.SearchResult) string {
		ord, seen := docOrdinal[p.Chunk.DocumentID]
		if !seen {
			nextOrd++
			ord = nextOrd
			docOrdinal[p.Chunk.DocumentID] = ord
		}
		return passageLine(ord, p)
	})
	webResults = fitWeb(o.counter, webResults, prompt, alloc.System, distinctDocs(passages))

	system, citations := buildSystem(ws, passages, webResults)
	metrics.ObserveBudget("system", o.counter.Count(system), alloc.System)

	history := budget.FitHistory(o.counter, req.History, alloc.History)

	user := req.Query
	for _, a := range req.Attachments {
		user += "\n\n--- " + a.Filename + " ---\n" + a.Text
	}
	user = budget.FitText(o.counter, user, alloc.User)
	metrics.ObserveBudget("user", o.counter.Count(user), alloc.User)

	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: system})
	msgs = append(msgs, history...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: user})

	first := true
	streamErr := o.provider.Stream(ctx, msgs, llm.Options{}, func(delta string) error {
		if first {
			metrics.ObserveFirstDelta(start)
			first = false
		}
		select {
		case events <- Event{Type: EventDelta, Delta: delta}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if streamErr != nil && !errors.Is(streamErr, context.Canceled) && ctx.Err() == nil {
		emit(ctx, events, Event{Type: EventError, Err: streamErr})
		return
	}

	// citations always follow the stream, also after cancellation
	emit(ctx, events, Event{Type: EventCitations, Citations: citations})
	if streamErr == nil {
		emit(ctx, events, Event{Type: EventDone})
	}
}

// emit delivers ev, giving up only when the context is cancelled and the
// buffer is full. A cancelled caller that keeps draining still receives
// the trailing events through the buffer; a caller that walked away does
// not wedge the pipeline goroutine.
func emit(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
		select {
		case events <- ev:
		default:
		}
	}
}

// retrieve runs expansion variants through hybrid retrieval and the
// reranker, memoizing the final candidate list per workspace, query and
// retrieval settings.
func (o *Orchestrator) retrieve(ctx context.Context, ws config.Workspace, queries []string, original string) ([]schema.SearchResult, error) {
	var key string
	if o.results != nil {
		key = cache.Key(ws.ID,
			original,
			strconv.Itoa(ws.TopN),
			strconv.FormatFloat(ws.SimilarityThreshold, 'g', -1, 64),
			strconv.FormatBool(ws.UseHybridSearch),
			strings.Join(queries, "\n"),
		)
		if hit, ok := o.results.Get(key); ok {
			return hit, nil
		}
	}

	start := time.Now()
	fused, err := o.retriever.Retrieve(ctx, queries, retriever.Params{
		WorkspaceID: ws.ID,
		TopK:        ws.TopN,
		Threshold:   ws.SimilarityThreshold,
		Hybrid:      ws.UseHybridSearch,
	})
	if err != nil {
		return nil, err
	}
	metrics.ObserveRetrieval("fused", start, len(fused))

	out := fused
	if o.reranker != nil {
		res := o.reranker.Rerank(ctx, original, fused, ws.TopN)
		if !res.Applied {
			metrics.IncStageSkip("rerank")
		}
		out = res.Value
	}

	if o.results != nil {
		o.results.Set(key, out)
	}
	return out, nil
}

// fitWeb continues the prompt-growing walk for web results, charging the
// block header once and each rendered line with its real ordinal.
func fitWeb(c *budget.Counter, results []websearch.Result, prompt string, allot, startOrd int) []websearch.Result {
	var out []websearch.Result
	for _, r := range results {
		next := prompt
		if len(out) == 0 {
			next += webHeader
		}
		next += webLine(startOrd+len(out)+1, r)
		if c.Count(next) > allot {
			break
		}
		prompt = next
		out = append(out, r)
	}
	return out
}

func distinctDocs(passages []schema.SearchResult) int {
	seen := map[string]struct{}{}
	for _, p := range passages {
		seen[p.Chunk.DocumentID] = struct{}{}
	}
	return len(seen)
}
