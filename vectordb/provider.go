// Package vectordb abstracts the chunk index behind a single Provider
// interface with two backends: a Qdrant server with native hybrid search,
// and an embedded chromem store for zero-dependency deployments.
package vectordb

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/autoversio/ragcore/config"
	"github.com/autoversio/ragcore/schema"
)

// Capabilities reports what a backend can do; callers degrade gracefully
// when sparse search is unavailable.
type Capabilities struct {
	Sparse bool
}

type Provider interface {
	// EnsureWorkspace creates the workspace collection if it does not
	// exist. denseDim fixes the dense vector size at creation time.
	EnsureWorkspace(ctx context.Context, workspaceID string, denseDim int) error

	Upsert(ctx context.Context, workspaceID string, chunks []schema.Chunk) error

	// DeleteDocument removes every chunk belonging to the document.
	DeleteDocument(ctx context.Context, workspaceID, documentID string) error

	DropWorkspace(ctx context.Context, workspaceID string) error

	SearchDense(ctx context.Context, workspaceID string, vector []float32, opts schema.SearchOptions) ([]schema.SearchResult, error)

	// SearchSparse returns schema.ErrSparseUnsupported when the backend
	// has no sparse index.
	SearchSparse(ctx context.Context, workspaceID string, vector *schema.SparseVector, opts schema.SearchOptions) ([]schema.SearchResult, error)

	Capabilities() Capabilities
	Close() error
}

// collectionName maps a workspace id onto its backing collection.
func collectionName(workspaceID string) string {
	return "workspace_" + workspaceID
}

// NewProvider builds the backend named in the config.
func NewProvider(cfg config.VectorDBConfig, log *zap.Logger) (Provider, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch cfg.Provider {
	case "qdrant":
		return NewQdrant(cfg.Qdrant, log)
	case "chromem", "":
		return NewChromem(cfg.Chromem, log)
	default:
		return nil, fmt.Errorf("unknown vectordb provider %q", cfg.Provider)
	}
}
