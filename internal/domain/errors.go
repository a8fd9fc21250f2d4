package domain

import "errors"

var (
	// ErrInvalidConfiguration marks caller bugs (bad chunk sizes,
	// non-positive top-k). Never retried.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrEmbeddingService wraps transport or shape failures from the
	// embedding service. Retried with backoff; at ingest a failed chunk
	// is reported and skipped without aborting the batch.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrGenerationUnavailable means the generative service exhausted
	// its retries or returned an empty or malformed completion. Callers
	// surface a degraded message instead of crashing.
	ErrGenerationUnavailable = errors.New("generation service unavailable")

	// ErrModelMismatch means the collection on disk was built with a
	// different embedding model than the one configured. Searching
	// across embedding spaces silently corrupts results, so the index
	// refuses until the collection is cleared or reindexed.
	ErrModelMismatch = errors.New("embedding model mismatch")
)
