package orchestrator

import (
	"fmt"
	"strings"

	"github.com/autoversio/ragcore/config"
	"github.com/autoversio/ragcore/schema"
	"github.com/autoversio/ragcore/websearch"
)

const chatModeInstructions = `Use the context passages below when they are relevant. You may also draw on your own knowledge. Cite context passages by their bracketed number, like [2].`

const queryModeInstructions = `Answer strictly from the context passages below. Cite every claim with the bracketed passage number, like [2]. If the context does not contain the answer, say so plainly and do not guess.`

const queryModeNoContext = `No relevant context is available for this question. Tell the user you cannot answer from the workspace documents and suggest rephrasing or uploading relevant material. Do not answer from general knowledge.`

const (
	contextHeader = "\n\nContext:\n"
	webHeader     = "\nWeb results:\n"
)

// passageLine renders one context passage exactly as it appears in the
// system message, so fitting can charge the rendered cost to the pool.
func passageLine(ordinal int, p schema.SearchResult) string {
	label := p.Chunk.Metadata.Filename
	if p.Chunk.Metadata.SectionTitle != "" {
		label += " / " + p.Chunk.Metadata.SectionTitle
	}
	return fmt.Sprintf("[%d] (%s) %s\n", ordinal, label, p.Chunk.Text)
}

func webLine(ordinal int, w websearch.Result) string {
	return fmt.Sprintf("[%d] %s (%s): %s\n", ordinal, w.Title, w.URL, w.Snippet)
}

// contextScaffold is the head of the system message once passages
// survive budgeting: the mode instructions that accompany context, the
// workspace prompt and the context header. Fitting measures against this
// so passages only spend what the scaffold leaves over.
func contextScaffold(ws config.Workspace) string {
	var b strings.Builder
	if ws.ChatMode == config.ModeQuery {
		b.WriteString(queryModeInstructions)
	} else {
		b.WriteString(chatModeInstructions)
	}
	if ws.SystemPrompt != "" {
		b.WriteString("\n\n")
		b.WriteString(strings.TrimSpace(ws.SystemPrompt))
	}
	b.WriteString(contextHeader)
	return b.String()
}

// buildSystem layers the mode instructions, the workspace's own system
// prompt, and the citation-tagged context block. Ordinals run 1..n over
// retrieved passages first, then web results, contiguous with no gaps.
func buildSystem(ws config.Workspace, passages []schema.SearchResult, web []websearch.Result) (string, []schema.Citation) {
	var b strings.Builder

	switch {
	case ws.ChatMode == config.ModeQuery && len(passages) == 0 && len(web) == 0:
		b.WriteString(queryModeNoContext)
	case ws.ChatMode == config.ModeQuery:
		b.WriteString(queryModeInstructions)
	default:
		b.WriteString(chatModeInstructions)
	}

	if ws.SystemPrompt != "" {
		b.WriteString("\n\n")
		b.WriteString(strings.TrimSpace(ws.SystemPrompt))
	}

	var citations []schema.Citation
	ordinal := 0

	if len(passages) > 0 {
		b.WriteString(contextHeader)
		docOrdinal := map[string]int{}
		for _, p := range passages {
			ord, seen := docOrdinal[p.Chunk.DocumentID]
			if !seen {
				ordinal++
				ord = ordinal
				docOrdinal[p.Chunk.DocumentID] = ord
				citations = append(citations, schema.Citation{
					Ordinal:  ord,
					Type:     schema.SourceRAG,
					SourceID: p.Chunk.DocumentID,
					Title:    p.Chunk.Metadata.Filename,
				})
			}
			b.WriteString(passageLine(ord, p))
		}
	}

	if len(web) > 0 {
		b.WriteString(webHeader)
		for _, w := range web {
			ordinal++
			b.WriteString(webLine(ordinal, w))
			citations = append(citations, schema.Citation{
				Ordinal:  ordinal,
				Type:     schema.SourceWeb,
				SourceID: w.URL,
				Title:    w.Title,
			})
		}
	}

	return b.String(), citations
}
