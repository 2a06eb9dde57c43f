package budget

import (
	"strings"
	"testing"

	"github.com/autoversio/ragcore/llm"
	"github.com/autoversio/ragcore/schema"
)

// heuristic counter keeps the tests independent of the BPE data files
func heuristic() *Counter { return &Counter{} }

func TestAllocate_ExactSplit(t *testing.T) {
	a := Allocate(1000, 0.7, 0.15, 0.15)
	if a.History != 700 || a.System != 150 || a.User != 150 {
		t.Fatalf("unexpected allocation: %+v", a)
	}
}

func TestAllocate_SumIsExact(t *testing.T) {
	cases := []struct {
		ceiling int
		h, s, u float64
	}{
		{101, 1.0 / 3, 1.0 / 3, 1.0 / 3},
		{128000, 0.7, 0.15, 0.15},
		{7, 0.5, 0.25, 0.25},
		{1, 0.7, 0.15, 0.15},
	}
	for _, c := range cases {
		a := Allocate(c.ceiling, c.h, c.s, c.u)
		if got := a.History + a.System + a.User; got != c.ceiling {
			t.Fatalf("ceiling %d: allotments sum to %d (%+v)", c.ceiling, got, a)
		}
	}
}

func TestAllocate_Deterministic(t *testing.T) {
	first := Allocate(101, 1.0/3, 1.0/3, 1.0/3)
	for i := 0; i < 10; i++ {
		if Allocate(101, 1.0/3, 1.0/3, 1.0/3) != first {
			t.Fatalf("allocation not deterministic")
		}
	}
}

func msg(role llm.Role, size int) llm.Message {
	return llm.Message{Role: role, Content: strings.Repeat("x", size)}
}

func TestFitHistory_KeepsAllWhenItFits(t *testing.T) {
	c := heuristic()
	msgs := []llm.Message{msg(llm.RoleUser, 40), msg(llm.RoleAssistant, 40)}
	out := FitHistory(c, msgs, 100)
	if len(out) != 2 || out[0].Content != msgs[0].Content {
		t.Fatalf("history altered without need: %+v", out)
	}
}

func TestFitHistory_DropsOldestFirst(t *testing.T) {
	c := heuristic()
	msgs := []llm.Message{
		{Role: llm.RoleUser, Content: strings.Repeat("a", 200)},
		{Role: llm.RoleAssistant, Content: strings.Repeat("b", 200)},
		{Role: llm.RoleUser, Content: strings.Repeat("c", 200)},
	}
	// each message is 50 tokens, indicator is 13; allotment fits two plus indicator
	out := FitHistory(c, msgs, 115)
	if len(out) != 3 {
		t.Fatalf("expected indicator plus two messages, got %d", len(out))
	}
	if out[0].Content != TruncationIndicator {
		t.Fatalf("missing truncation indicator: %+v", out[0])
	}
	if out[1].Content[0] != 'b' || out[2].Content[0] != 'c' {
		t.Fatalf("wrong survivors or order: %q %q", out[1].Content[:1], out[2].Content[:1])
	}

	used := 0
	for _, m := range out {
		used += c.Count(m.Content)
	}
	if used > 115 {
		t.Fatalf("history exceeds allotment: %d", used)
	}
}

func TestFitHistory_NoIndicatorForSingleSurvivor(t *testing.T) {
	c := heuristic()
	msgs := []llm.Message{
		{Role: llm.RoleUser, Content: strings.Repeat("a", 200)},
		{Role: llm.RoleAssistant, Content: strings.Repeat("b", 200)},
		{Role: llm.RoleUser, Content: strings.Repeat("c", 200)},
	}
	// each message is 50 tokens; room for one plus the indicator only
	out := FitHistory(c, msgs, 65)
	if len(out) != 1 {
		t.Fatalf("expected the newest message alone, got %d", len(out))
	}
	if out[0].Content != msgs[2].Content {
		t.Fatalf("wrong survivor: %q", out[0].Content[:1])
	}
}

func TestFitHistory_AllotmentBelowIndicator(t *testing.T) {
	c := heuristic()
	msgs := []llm.Message{msg(llm.RoleUser, 400)}
	out := FitHistory(c, msgs, 5)
	if len(out) != 0 {
		t.Fatalf("expected empty history, got %+v", out)
	}
}

func chunkText(r schema.SearchResult) string { return r.Chunk.Text }

func TestFitPassages_RankOrderGreedy(t *testing.T) {
	c := heuristic()
	res := []schema.SearchResult{
		{Chunk: schema.Chunk{ID: "r1", Text: strings.Repeat("a", 120)}}, // 30 tokens
		{Chunk: schema.Chunk{ID: "r2", Text: strings.Repeat("b", 120)}},
		{Chunk: schema.Chunk{ID: "r3", Text: strings.Repeat("c", 4)}}, // 1 token
	}
	out, _ := FitPassages(c, res, "", 40, chunkText)
	if len(out) != 1 || out[0].Chunk.ID != "r1" {
		t.Fatalf("greedy walk must stop at first non-fitting passage: %+v", out)
	}
}

func TestFitPassages_AllFit(t *testing.T) {
	c := heuristic()
	res := []schema.SearchResult{
		{Chunk: schema.Chunk{ID: "r1", Text: "abcd"}},
		{Chunk: schema.Chunk{ID: "r2", Text: "efgh"}},
	}
	out, prompt := FitPassages(c, res, "", 10, chunkText)
	if len(out) != 2 {
		t.Fatalf("expected all passages, got %+v", out)
	}
	if prompt != "abcdefgh" {
		t.Fatalf("grown prompt mismatch: %q", prompt)
	}
}

func TestFitPassages_ChargesRenderedCost(t *testing.T) {
	c := heuristic()
	res := []schema.SearchResult{
		{Chunk: schema.Chunk{ID: "r1", Text: strings.Repeat("a", 20)}}, // 5 tokens bare
	}
	label := strings.Repeat("l", 100)
	render := func(r schema.SearchResult) string { return "[" + label + "] " + r.Chunk.Text }
	out, _ := FitPassages(c, res, "", 10, render)
	if len(out) != 0 {
		t.Fatalf("rendered line over allotment must be excluded: %+v", out)
	}
}

func TestFitPassages_ScaffoldSpendsFirst(t *testing.T) {
	c := heuristic()
	scaffold := strings.Repeat("s", 36) // 9 tokens
	res := []schema.SearchResult{
		{Chunk: schema.Chunk{ID: "r1", Text: strings.Repeat("a", 20)}}, // 5 tokens
	}
	out, prompt := FitPassages(c, res, scaffold, 10, chunkText)
	if len(out) != 0 {
		t.Fatalf("scaffold leaves no room, got %+v", out)
	}
	if prompt != scaffold {
		t.Fatalf("prompt must stay at the scaffold: %q", prompt)
	}
}

func TestFitText_TruncatesTail(t *testing.T) {
	c := heuristic()
	text := strings.Repeat("z", 100)
	out := FitText(c, text, 10)
	if c.Count(out) > 10 {
		t.Fatalf("truncated text still over allotment: %d", c.Count(out))
	}
	if !strings.HasPrefix(text, out) {
		t.Fatalf("truncation must cut from the tail")
	}
	if FitText(c, "short", 10) != "short" {
		t.Fatalf("fitting text must pass through")
	}
}

func TestFitText_RuneBoundary(t *testing.T) {
	c := heuristic()
	text := strings.Repeat("é", 50)
	out := FitText(c, text, 5)
	for _, r := range out {
		if r == '�' {
			t.Fatalf("truncation split a rune")
		}
	}
}
