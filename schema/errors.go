package schema

import "errors"

// Error taxonomy for the retrieval pipeline. Callers classify failures with
// errors.Is; user-facing handlers map each class to a single generic
// message while the detailed cause is logged server-side.
var (
	// ErrConversionFailure marks empty, non-text or non-UTF8 conversion
	// output. Upstream and non-retryable here.
	ErrConversionFailure = errors.New("document conversion produced no usable text")

	// ErrEmbeddingFailure marks an embedding call that exhausted its
	// retries. Ingestion of the whole document fails; nothing is committed.
	ErrEmbeddingFailure = errors.New("embedding failed")

	// ErrIndexUnavailable marks an unreachable vector backend. The read
	// path degrades to empty retrieval; the write path fails ingestion.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrSparseUnsupported is returned by backends without sparse vectors.
	// The hybrid retriever degrades to dense-only on it, without error.
	ErrSparseUnsupported = errors.New("sparse search not supported by backend")

	// ErrCollectionNotFound is returned when a workspace collection does
	// not exist yet.
	ErrCollectionNotFound = errors.New("collection not found")
)
