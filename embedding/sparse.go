package embedding

import (
	"hash/fnv"
	"sort"
	"strings"
	"unicode"

	"github.com/autoversio/ragcore/schema"
)

// sparseDim bounds the hashed term space. Collisions merge weights, which
// is acceptable for lexical matching at this dimensionality.
const sparseDim = 1_000_000

// SparseEncoder maps text to a hashed bag-of-words vector with term
// frequency weights. IDF scaling is applied by the index at query time,
// so the client side stays stateless.
type SparseEncoder struct{}

func NewSparseEncoder() *SparseEncoder { return &SparseEncoder{} }

func (e *SparseEncoder) Encode(text string) *schema.SparseVector {
	counts := make(map[uint32]float32)
	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		counts[h.Sum32()%sparseDim]++
	}
	if len(counts) == 0 {
		return nil
	}
	indices := make([]uint32, 0, len(counts))
	for idx := range counts {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	values := make([]float32, len(indices))
	for i, idx := range indices {
		values[i] = counts[idx]
	}
	return &schema.SparseVector{Indices: indices, Values: values}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
