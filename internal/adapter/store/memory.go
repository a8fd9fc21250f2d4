package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"sahayak/internal/domain"
)

// MemoryIndex keeps a collection entirely in process memory. It mirrors
// BoltIndex's search and ordering semantics but persists nothing, so
// the collection lives and dies with the process. Used for throwaway
// collections and tests.
type MemoryIndex struct {
	opts Options

	mu        sync.RWMutex
	docs      map[string]storedDoc
	chunks    map[string]domain.Chunk
	docChunks map[string][]string
	vectors   map[string]vectorEntry
	meta      domain.IndexMeta
}

// NewMemoryIndex creates an empty collection bound to the given
// embedding model. A memory collection is always fresh, so a model
// mismatch cannot arise.
func NewMemoryIndex(opts Options) (*MemoryIndex, error) {
	if opts.EmbeddingModel == "" || opts.Dimension <= 0 {
		return nil, fmt.Errorf("%w: embedding model and dimension are required", domain.ErrInvalidConfiguration)
	}
	return &MemoryIndex{
		opts:      opts,
		docs:      make(map[string]storedDoc),
		chunks:    make(map[string]domain.Chunk),
		docChunks: make(map[string][]string),
		vectors:   make(map[string]vectorEntry),
		meta: domain.IndexMeta{
			SchemaVersion:  currentSchemaVersion,
			EmbeddingModel: opts.EmbeddingModel,
			Dimension:      opts.Dimension,
			UpdatedAt:      time.Now(),
		},
	}, nil
}

// IndexDocument stores a document, its chunks and their embedding
// records in one locked update. A re-indexed document replaces its
// previous chunks.
func (s *MemoryIndex) IndexDocument(doc domain.Document, chunks []domain.Chunk, records []domain.EmbeddingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if len(rec.Vector) != s.opts.Dimension {
			return fmt.Errorf("vector dimension mismatch for chunk %s: expected %d, got %d",
				rec.ChunkID, s.opts.Dimension, len(rec.Vector))
		}
	}

	for _, id := range s.docChunks[doc.ID] {
		delete(s.chunks, id)
		delete(s.vectors, id)
	}

	chunkChars := 0
	chunkIDs := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		chunkChars += len([]rune(ch.Text))
		chunkIDs = append(chunkIDs, ch.ID)
		s.chunks[ch.ID] = ch
	}
	for _, rec := range records {
		s.vectors[rec.ChunkID] = vectorEntry{vector: rec.Vector, metadata: rec.Metadata}
	}

	s.meta.Generation++
	s.meta.UpdatedAt = time.Now()
	s.docs[doc.ID] = storedDoc{
		SourceFilename:  doc.SourceFilename,
		Characters:      len([]rune(doc.RawText)),
		ChunkCharacters: chunkChars,
		Chunks:          len(chunks),
		IndexedAt:       s.meta.UpdatedAt,
	}
	s.docChunks[doc.ID] = chunkIDs
	return nil
}

// Search returns up to topK chunks by descending cosine similarity,
// with the same tie-breaking as BoltIndex.
func (s *MemoryIndex) Search(query []float32, topK int) ([]domain.ScoredChunk, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top-k must be positive, got %d", domain.ErrInvalidConfiguration, topK)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(query) != s.opts.Dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.opts.Dimension, len(query))
	}
	if len(s.vectors) == 0 {
		return nil, nil
	}

	type scored struct {
		id       string
		score    float64
		metadata domain.RecordMetadata
	}

	scores := make([]scored, 0, len(s.vectors))
	for id, entry := range s.vectors {
		scores = append(scores, scored{
			id:       id,
			score:    cosineSimilarity(query, entry.vector),
			metadata: entry.metadata,
		})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		if scores[i].metadata.SequenceIndex != scores[j].metadata.SequenceIndex {
			return scores[i].metadata.SequenceIndex < scores[j].metadata.SequenceIndex
		}
		return scores[i].id < scores[j].id
	})

	if topK > len(scores) {
		topK = len(scores)
	}
	scores = scores[:topK]

	results := make([]domain.ScoredChunk, 0, topK)
	for _, sc := range scores {
		ch, ok := s.chunks[sc.id]
		if !ok {
			continue
		}
		results = append(results, domain.ScoredChunk{
			Chunk:          ch,
			SourceFilename: sc.metadata.SourceFilename,
			Score:          sc.score,
		})
	}
	return results, nil
}

func (s *MemoryIndex) Stats() (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats domain.Stats
	chunkChars := 0
	for _, info := range s.docs {
		stats.TotalDocuments++
		stats.TotalChunks += info.Chunks
		stats.TotalCharacters += info.Characters
		chunkChars += info.ChunkCharacters
	}
	if stats.TotalChunks > 0 {
		stats.AvgChunkLen = float64(chunkChars) / float64(stats.TotalChunks)
	}
	return stats, nil
}

func (s *MemoryIndex) Documents() ([]domain.DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []domain.DocumentInfo
	for id, info := range s.docs {
		docs = append(docs, domain.DocumentInfo{
			ID:             id,
			SourceFilename: info.SourceFilename,
			Characters:     info.Characters,
			Chunks:         info.Chunks,
			IndexedAt:      info.IndexedAt,
		})
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].SourceFilename != docs[j].SourceFilename {
			return docs[i].SourceFilename < docs[j].SourceFilename
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

func (s *MemoryIndex) Meta() (domain.IndexMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta, nil
}

func (s *MemoryIndex) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta.Generation
}

// Clear removes every record and starts a fresh generation.
func (s *MemoryIndex) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs = make(map[string]storedDoc)
	s.chunks = make(map[string]domain.Chunk)
	s.docChunks = make(map[string][]string)
	s.vectors = make(map[string]vectorEntry)
	s.meta = domain.IndexMeta{
		SchemaVersion:  currentSchemaVersion,
		EmbeddingModel: s.opts.EmbeddingModel,
		Dimension:      s.opts.Dimension,
		Generation:     s.meta.Generation + 1,
		UpdatedAt:      time.Now(),
	}
	return nil
}

// Close is a no-op; nothing outlives the process.
func (s *MemoryIndex) Close() error {
	return nil
}
