package schema

import "time"

// DocumentStatus tracks a document through the ingestion lifecycle.
type DocumentStatus string

const (
	StatusUnembedded DocumentStatus = "unembedded"
	StatusEmbedding  DocumentStatus = "embedding"
	StatusEmbedded   DocumentStatus = "embedded"
	StatusFailed     DocumentStatus = "failed"
)

// Document is an uploaded source after conversion to linearized text.
// Persistence of documents belongs to the caller; the core only reads the
// text and reports status transitions during ingestion.
type Document struct {
	ID          string         `json:"id"`
	WorkspaceID string         `json:"workspace_id"`
	Filename    string         `json:"filename"`
	Text        string         `json:"text"`
	Status      DocumentStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ContentType classifies what a chunk mostly contains.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentTable ContentType = "table"
	ContentCode  ContentType = "code"
)

// ChunkMetadata carries the structural annotations preserved from the
// linearized document.
type ChunkMetadata struct {
	ContentType  ContentType `json:"content_type"`
	SectionTitle string      `json:"section_title,omitempty"`
	HasTable     bool        `json:"has_table"`
	HasCode      bool        `json:"has_code"`
	Filename     string      `json:"filename,omitempty"`
}

// Chunk is one contiguous passage of a document. Chunks are immutable once
// created; re-embedding a document deletes and recreates its chunks.
type Chunk struct {
	ID         string        `json:"id"`
	DocumentID string        `json:"document_id"`
	Ordinal    int           `json:"ordinal"`
	Text       string        `json:"text"`
	Metadata   ChunkMetadata `json:"metadata"`

	// Dense is set by the embedding gateway before indexing.
	Dense []float32 `json:"-"`
	// Sparse is set only when the selected backend supports sparse search.
	Sparse *SparseVector `json:"-"`
}

// SparseVector is a term-weight representation for keyword-style matching.
// Indices are sorted ascending; Values align with Indices.
type SparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}
