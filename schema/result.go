package schema

// Origin names the ranked list a candidate came from.
type Origin string

const (
	OriginDense    Origin = "dense"
	OriginSparse   Origin = "sparse"
	OriginFused    Origin = "fused"
	OriginReranked Origin = "reranked"
	OriginWeb      Origin = "web"
)

// SearchResult is a chunk plus a query-specific relevance score.
// Results are ephemeral: created per query, never persisted.
type SearchResult struct {
	Chunk  Chunk   `json:"chunk"`
	Score  float64 `json:"score"`
	Origin Origin  `json:"origin"`
}

// SearchOptions bounds a single similarity search.
type SearchOptions struct {
	TopK int
	// Threshold drops candidates whose backend-native score is below it.
	// Zero disables the floor.
	Threshold float64
}

// SourceType distinguishes citation sources.
type SourceType string

const (
	SourceRAG SourceType = "rag"
	SourceWeb SourceType = "web"
)

// Citation is a 1-based ordinal assigned to a distinct source in the order
// it first appears in the assembled prompt. Multiple chunks of one document
// share a single citation.
type Citation struct {
	Ordinal  int        `json:"ordinal"`
	Type     SourceType `json:"type"`
	SourceID string     `json:"source_id"`
	Title    string     `json:"title"`
}
