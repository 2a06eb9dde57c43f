package budget

import (
	"math"
	"sort"
	"unicode/utf8"

	"github.com/autoversio/ragcore/llm"
	"github.com/autoversio/ragcore/schema"
)

// TruncationIndicator replaces dropped history so the model knows the
// transcript is incomplete.
const TruncationIndicator = "[Previous conversation truncated to fit context window]"

// Allocation holds the integer token allotment per pool. The three
// values always sum exactly to the ceiling they were computed from.
type Allocation struct {
	History int
	System  int
	User    int
}

// Allocate splits the ceiling by ratio with largest-remainder rounding.
// Pools never borrow from each other, so a slack pool leaves its surplus
// unused.
func Allocate(ceiling int, historyRatio, systemRatio, userRatio float64) Allocation {
	if ceiling <= 0 {
		return Allocation{}
	}
	ratios := []float64{historyRatio, systemRatio, userRatio}
	exact := make([]float64, 3)
	floors := make([]int, 3)
	assigned := 0
	for i, r := range ratios {
		exact[i] = float64(ceiling) * r
		floors[i] = int(math.Floor(exact[i]))
		assigned += floors[i]
	}
	// hand the leftover tokens to the largest fractional remainders,
	// ties broken by pool order for determinism
	order := []int{0, 1, 2}
	sort.SliceStable(order, func(a, b int) bool {
		ra := exact[order[a]] - float64(floors[order[a]])
		rb := exact[order[b]] - float64(floors[order[b]])
		return ra > rb
	})
	for i := 0; assigned < ceiling; i++ {
		floors[order[i%3]]++
		assigned++
	}
	return Allocation{History: floors[0], System: floors[1], User: floors[2]}
}

// FitHistory keeps the most recent messages that fit the allotment,
// dropping from the oldest end. When messages are dropped and at least
// two survive, a truncation indicator message takes the transcript's
// head; its own tokens are paid out of the same allotment, so the
// returned transcript never exceeds it. With fewer than two survivors
// the indicator is omitted rather than crowding out the conversation.
func FitHistory(c *Counter, messages []llm.Message, allot int) []llm.Message {
	total := 0
	for _, m := range messages {
		total += c.Count(m.Content)
	}
	if total <= allot {
		return messages
	}
	budget := allot - c.Count(TruncationIndicator)
	if budget < 0 {
		budget = 0
	}
	kept := 0
	used := 0
	for i := len(messages) - 1; i >= 0; i-- {
		cost := c.Count(messages[i].Content)
		if used+cost > budget {
			break
		}
		used += cost
		kept++
	}
	if kept < 2 {
		if kept == 0 {
			return nil
		}
		return messages[len(messages)-kept:]
	}
	out := make([]llm.Message, 0, kept+1)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: TruncationIndicator})
	out = append(out, messages[len(messages)-kept:]...)
	return out
}

// FitPassages keeps passages in rank order while the prompt, grown one
// rendered line at a time from the scaffold, stays within the allotment.
// Costs are measured on the growing text rather than per fragment, so
// labels and headers are charged to the pool and tokenizer merges at
// line boundaries stay honest. The first passage that does not fit ends
// the walk; nothing after it is considered, so rank order is never
// violated by a smaller lower-ranked passage slipping in. Returns the
// survivors and the grown prompt text.
func FitPassages(c *Counter, results []schema.SearchResult, scaffold string, allot int, render func(schema.SearchResult) string) ([]schema.SearchResult, string) {
	prompt := scaffold
	var out []schema.SearchResult
	for _, r := range results {
		next := prompt + render(r)
		if c.Count(next) > allot {
			break
		}
		prompt = next
		out = append(out, r)
	}
	return out, prompt
}

// FitText truncates text to the allotment, cutting from the tail.
func FitText(c *Counter, text string, allot int) string {
	if c.Count(text) <= allot {
		return text
	}
	lo, hi := 0, len(text)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if c.Count(text[:mid]) <= allot {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	for lo > 0 && lo < len(text) && !utf8.RuneStart(text[lo]) {
		lo--
	}
	return text[:lo]
}
