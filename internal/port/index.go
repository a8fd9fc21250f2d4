package port

import "sahayak/internal/domain"

// Index stores one collection's documents, chunks and vectors.
// Implementations serialize writes and serve searches from a stable
// snapshot so a search never observes a partially indexed document.
type Index interface {
	// IndexDocument stores the document, its chunks and their
	// embedding records in one batch. Records must match the
	// collection's vector dimension.
	IndexDocument(doc domain.Document, chunks []domain.Chunk, records []domain.EmbeddingRecord) error

	// Search returns up to topK chunks by descending cosine
	// similarity. Ties break by sequence index ascending, then chunk
	// ID. topK below 1 is a configuration error.
	Search(query []float32, topK int) ([]domain.ScoredChunk, error)

	// Stats reports collection totals.
	Stats() (domain.Stats, error)

	// Documents lists indexed document metadata.
	Documents() ([]domain.DocumentInfo, error)

	// Meta reports how the collection was built.
	Meta() (domain.IndexMeta, error)

	// Generation increases on every successful write or clear. Caches
	// keyed on it drop stale entries.
	Generation() uint64

	// Clear removes every record and rebinds the collection to the
	// currently configured embedding model.
	Clear() error

	Close() error
}
