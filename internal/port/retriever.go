package port

import (
	"context"

	"sahayak/internal/domain"
)

// Retriever finds chunks relevant to a query.
type Retriever interface {
	// Retrieve embeds the query, searches the index and drops results
	// scoring below minScore. An empty result is a valid outcome, not
	// an error.
	Retrieve(ctx context.Context, query string, topK int, minScore float64) ([]domain.ScoredChunk, error)
}
