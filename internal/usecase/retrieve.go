package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"sahayak/internal/domain"
	"sahayak/internal/port"
)

// RetrieveUseCase embeds a query and searches the vector index for the
// most similar chunks. It satisfies port.Retriever so serving surfaces
// can wrap it with the retrieval cache.
type RetrieveUseCase struct {
	embedder port.Embedder
	index    port.Index
	logger   *slog.Logger
}

// NewRetrieveUseCase creates a new retrieve use case. A nil logger
// falls back to slog.Default.
func NewRetrieveUseCase(embedder port.Embedder, index port.Index, logger *slog.Logger) *RetrieveUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrieveUseCase{
		embedder: embedder,
		index:    index,
		logger:   logger,
	}
}

// Retrieve returns up to topK chunks scoring at or above minScore,
// most similar first. An empty index short-circuits to an empty result
// without calling the embedding service. minScore <= 0 disables the
// score floor.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, query string, topK int, minScore float64) ([]domain.ScoredChunk, error) {
	stats, err := u.index.Stats()
	if err != nil {
		return nil, fmt.Errorf("failed to read index stats: %w", err)
	}
	if stats.TotalChunks == 0 {
		u.logger.Debug("retrieve on empty index", "query_digest", textDigest(query))
		return nil, nil
	}

	vectors, err := u.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 query vector, got %d", domain.ErrEmbeddingService, len(vectors))
	}

	results, err := u.index.Search(vectors[0], topK)
	if err != nil {
		return nil, err
	}

	if minScore > 0 {
		kept := results[:0]
		for _, r := range results {
			if r.Score >= minScore {
				kept = append(kept, r)
			}
		}
		results = kept
	}

	u.logger.Debug("retrieval completed",
		"query_digest", textDigest(query),
		"top_k", topK,
		"min_score", minScore,
		"results", len(results),
	)
	return results, nil
}
