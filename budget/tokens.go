// Package budget divides the model context window between conversation
// history, system prompt with retrieved passages, and the current user
// turn, then fits each pool's content to its allotment.
package budget

import (
	"github.com/pkoukk/tiktoken-go"
)

// Counter estimates token counts with the cl100k_base encoding. When the
// encoding cannot be loaded (offline builds without the BPE data) it
// falls back to the rough four-characters-per-token heuristic.
type Counter struct {
	enc *tiktoken.Tiktoken
}

func NewCounter() *Counter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return &Counter{}
	}
	return &Counter{enc: enc}
}

func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.enc != nil {
		return len(c.enc.Encode(text, nil, nil))
	}
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}
