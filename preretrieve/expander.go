// Package preretrieve rewrites the user query before retrieval. The
// expander asks the LLM for a small number of restatements; the original
// query is always kept and searched alongside the variants.
package preretrieve

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/autoversio/ragcore/config"
	"github.com/autoversio/ragcore/llm"
	"github.com/autoversio/ragcore/schema"
)

const expandPrompt = `Rewrite the search query below into %d alternative phrasings that could surface relevant passages the original wording would miss. Keep the language of the original query. Return one phrasing per line with no numbering and no commentary.

Query: %s`

type Expander struct {
	provider llm.Provider
	variants int
	timeout  time.Duration
	log      *zap.Logger
}

func NewExpander(provider llm.Provider, cfg config.ExpansionConfig, log *zap.Logger) *Expander {
	variants := cfg.MaxVariants
	if variants <= 0 {
		variants = 2
	}
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Expander{provider: provider, variants: variants, timeout: timeout, log: log}
}

// Expand returns the query list to retrieve with: the original first,
// then up to the configured number of LLM restatements. Expansion is
// best-effort: on timeout or model failure the result is skipped and
// retrieval proceeds with the original query alone.
func (e *Expander) Expand(ctx context.Context, query string) schema.StageResult[[]string] {
	base := []string{query}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	temp := 0.0
	raw, err := e.provider.Complete(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: fmt.Sprintf(expandPrompt, e.variants, query)},
	}, llm.Options{Temperature: &temp})
	if err != nil {
		e.log.Warn("query expansion skipped", zap.Error(err))
		r := schema.Skipped[[]string](err.Error())
		r.Value = base
		return r
	}

	out := base
	for _, line := range strings.Split(raw, "\n") {
		v := stripListMarker(strings.TrimSpace(line))
		if v == "" || strings.EqualFold(v, query) {
			continue
		}
		out = append(out, v)
		if len(out) > e.variants {
			break
		}
	}
	if len(out) == 1 {
		r := schema.Skipped[[]string]("model returned no usable variants")
		r.Value = base
		return r
	}
	return schema.Applied(out)
}

// stripListMarker removes a leading bullet ("- ", "* ") or enumeration
// ("1. ", "2) ") the model may prepend despite instructions. Only
// recognized marker shapes are stripped, so a query that genuinely
// starts with a number keeps it.
func stripListMarker(s string) string {
	if len(s) > 2 && (s[0] == '-' || s[0] == '*') && s[1] == ' ' {
		return strings.TrimSpace(s[2:])
	}
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > 0 && i+1 < len(s) && (s[i] == '.' || s[i] == ')') && s[i+1] == ' ' {
		return strings.TrimSpace(s[i+2:])
	}
	return s
}
