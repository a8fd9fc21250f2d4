package port

import "sahayak/internal/domain"

type Chunker interface {
	Chunk(doc domain.Document) []domain.Chunk
}
