// Package fusion merges ranked retrieval lists with Reciprocal Rank
// Fusion. Ordering is fully deterministic: ties on fused score break by
// the candidate's best rank in the earliest list, then by chunk ordinal,
// then by id.
package fusion

import (
	"sort"

	"github.com/autoversio/ragcore/schema"
)

// DefaultK is the standard RRF dampening constant.
const DefaultK = 60

// RRF computes 1/(k+rank) per list occurrence and sums across lists.
// A candidate absent from every list never appears in the output. The
// fused score replaces the native similarity scores; callers wanting the
// native score must keep their own copy.
func RRF(lists [][]schema.SearchResult, k int) []schema.SearchResult {
	if k <= 0 {
		k = DefaultK
	}
	type agg struct {
		result   schema.SearchResult
		score    float64
		bestList int
		bestRank int
	}
	scores := map[string]*agg{}

	for listIdx, list := range lists {
		for rank, item := range list {
			id := item.Chunk.ID
			if id == "" {
				continue
			}
			a, ok := scores[id]
			if !ok {
				a = &agg{result: item, bestList: listIdx, bestRank: rank}
				scores[id] = a
			}
			a.score += 1.0 / (float64(k) + float64(rank+1))
		}
	}

	out := make([]schema.SearchResult, 0, len(scores))
	for _, a := range scores {
		r := a.result
		r.Score = a.score
		r.Origin = schema.OriginFused
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		ai, aj := scores[out[i].Chunk.ID], scores[out[j].Chunk.ID]
		if ai.bestList != aj.bestList {
			return ai.bestList < aj.bestList
		}
		if ai.bestRank != aj.bestRank {
			return ai.bestRank < aj.bestRank
		}
		if out[i].Chunk.Ordinal != out[j].Chunk.Ordinal {
			return out[i].Chunk.Ordinal < out[j].Chunk.Ordinal
		}
		return out[i].Chunk.ID < out[j].Chunk.ID
	})
	return out
}
