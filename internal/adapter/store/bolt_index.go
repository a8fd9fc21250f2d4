package store

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"sahayak/internal/domain"
)

var (
	bucketMeta      = []byte("meta")
	bucketDocs      = []byte("documents")
	bucketChunks    = []byte("chunks")
	bucketDocChunks = []byte("doc_chunks")
	bucketVectors   = []byte("vectors")
)

// Options bind a collection to one embedding space. The model identity
// is persisted on first write and checked on reopen.
type Options struct {
	EmbeddingModel string
	Dimension      int
}

// BoltIndex is a bbolt-backed vector index holding one collection's
// documents, chunks and embeddings in a single database file. Search
// runs brute-force cosine over an in-memory vector cache; fine for the
// document counts a local assistant handles.
type BoltIndex struct {
	db   *bbolt.DB
	path string
	opts Options

	mu      sync.RWMutex
	vectors map[string]vectorEntry
	meta    domain.IndexMeta
}

type vectorEntry struct {
	vector   []float32
	metadata domain.RecordMetadata
}

type storedVector struct {
	Vector   []float32             `json:"v"`
	Metadata domain.RecordMetadata `json:"m"`
}

type storedDoc struct {
	SourceFilename  string    `json:"source_filename"`
	Characters      int       `json:"characters"`
	ChunkCharacters int       `json:"chunk_characters"`
	Chunks          int       `json:"chunks"`
	IndexedAt       time.Time `json:"indexed_at"`
}

// Open opens the collection's database under dir, creating an empty
// one when the collection does not exist yet. Reopening a collection
// built with a different embedding model succeeds, but writes and
// searches refuse until Clear rebinds it.
func Open(dir, collection string, opts Options) (*BoltIndex, error) {
	if opts.EmbeddingModel == "" || opts.Dimension <= 0 {
		return nil, fmt.Errorf("%w: embedding model and dimension are required", domain.ErrInvalidConfiguration)
	}
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	path := filepath.Join(dir, collection+".db")
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	idx := &BoltIndex{
		db:      db,
		path:    path,
		opts:    opts,
		vectors: make(map[string]vectorEntry),
	}

	if err := idx.initMeta(); err != nil {
		db.Close()
		return nil, err
	}
	if err := idx.loadVectors(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}

	return idx, nil
}

// loadVectors fills the in-memory search cache from disk.
func (s *BoltIndex) loadVectors() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var stored storedVector
			if err := json.Unmarshal(v, &stored); err != nil {
				return nil // skip corrupted entries
			}
			s.vectors[string(k)] = vectorEntry{
				vector:   stored.Vector,
				metadata: stored.Metadata,
			}
			return nil
		})
	})
}

// modelGuard refuses operations when the collection on disk belongs to
// a different embedding space than the configured one.
func (s *BoltIndex) modelGuard() error {
	if s.meta.EmbeddingModel != s.opts.EmbeddingModel || s.meta.Dimension != s.opts.Dimension {
		return fmt.Errorf("%w: collection built with %q (%d dims), configured %q (%d dims); clear and reindex",
			domain.ErrModelMismatch,
			s.meta.EmbeddingModel, s.meta.Dimension,
			s.opts.EmbeddingModel, s.opts.Dimension)
	}
	return nil
}

// IndexDocument stores a document, its chunks and their embedding
// records in one transaction. Records must carry vectors of the
// collection's dimension.
func (s *BoltIndex) IndexDocument(doc domain.Document, chunks []domain.Chunk, records []domain.EmbeddingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.modelGuard(); err != nil {
		return err
	}
	for _, rec := range records {
		if len(rec.Vector) != s.opts.Dimension {
			return fmt.Errorf("vector dimension mismatch for chunk %s: expected %d, got %d",
				rec.ChunkID, s.opts.Dimension, len(rec.Vector))
		}
	}

	chunkChars := 0
	for _, ch := range chunks {
		chunkChars += len([]rune(ch.Text))
	}

	newMeta := s.meta
	newMeta.Generation++
	newMeta.UpdatedAt = time.Now()

	newEntries := make(map[string]vectorEntry, len(records))

	err := s.db.Update(func(tx *bbolt.Tx) error {
		info := storedDoc{
			SourceFilename:  doc.SourceFilename,
			Characters:      len([]rune(doc.RawText)),
			ChunkCharacters: chunkChars,
			Chunks:          len(chunks),
			IndexedAt:       newMeta.UpdatedAt,
		}
		data, err := json.Marshal(info)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketDocs).Put([]byte(doc.ID), data); err != nil {
			return err
		}

		chunkIDs := make([]string, 0, len(chunks))
		chunkBucket := tx.Bucket(bucketChunks)
		for _, ch := range chunks {
			data, err := json.Marshal(ch)
			if err != nil {
				return err
			}
			if err := chunkBucket.Put([]byte(ch.ID), data); err != nil {
				return err
			}
			chunkIDs = append(chunkIDs, ch.ID)
		}

		idsData, err := json.Marshal(chunkIDs)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketDocChunks).Put([]byte(doc.ID), idsData); err != nil {
			return err
		}

		vecBucket := tx.Bucket(bucketVectors)
		for _, rec := range records {
			stored := storedVector{Vector: rec.Vector, Metadata: rec.Metadata}
			data, err := json.Marshal(stored)
			if err != nil {
				return err
			}
			if err := vecBucket.Put([]byte(rec.ChunkID), data); err != nil {
				return err
			}
			newEntries[rec.ChunkID] = vectorEntry{vector: rec.Vector, metadata: rec.Metadata}
		}

		return writeMeta(tx, newMeta)
	})
	if err != nil {
		return err
	}

	// The cache only changes after the transaction commits, so a
	// failed write never leaks phantom vectors into searches.
	for id, entry := range newEntries {
		s.vectors[id] = entry
	}
	s.meta = newMeta
	return nil
}

// Search returns up to topK chunks by descending cosine similarity.
// Ties break by sequence index ascending, then chunk ID, so results
// are deterministic for identical inputs.
func (s *BoltIndex) Search(query []float32, topK int) ([]domain.ScoredChunk, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top-k must be positive, got %d", domain.ErrInvalidConfiguration, topK)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.modelGuard(); err != nil {
		return nil, err
	}
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
	err := s.db.View(func(tx *bbolt.Tx) error {
		chunkBucket := tx.Bucket(bucketChunks)
		for _, sc := range scores {
			data := chunkBucket.Get([]byte(sc.id))
			if data == nil {
				continue
			}
			var ch domain.Chunk
			if err := json.Unmarshal(data, &ch); err != nil {
				continue
			}
			results = append(results, domain.ScoredChunk{
				Chunk:          ch,
				SourceFilename: sc.metadata.SourceFilename,
				Score:          sc.score,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *BoltIndex) Stats() (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats domain.Stats
	chunkChars := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocs).ForEach(func(k, v []byte) error {
			var info storedDoc
			if err := json.Unmarshal(v, &info); err != nil {
				return nil
			}
			stats.TotalDocuments++
			stats.TotalChunks += info.Chunks
			stats.TotalCharacters += info.Characters
			chunkChars += info.ChunkCharacters
			return nil
		})
	})
	if err != nil {
		return domain.Stats{}, err
	}
	if stats.TotalChunks > 0 {
		stats.AvgChunkLen = float64(chunkChars) / float64(stats.TotalChunks)
	}
	return stats, nil
}

func (s *BoltIndex) Documents() ([]domain.DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []domain.DocumentInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocs).ForEach(func(k, v []byte) error {
			var info storedDoc
			if err := json.Unmarshal(v, &info); err != nil {
				return nil
			}
			docs = append(docs, domain.DocumentInfo{
				ID:             string(k),
				SourceFilename: info.SourceFilename,
				Characters:     info.Characters,
				Chunks:         info.Chunks,
				IndexedAt:      info.IndexedAt,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].SourceFilename != docs[j].SourceFilename {
			return docs[i].SourceFilename < docs[j].SourceFilename
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

func (s *BoltIndex) Meta() (domain.IndexMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta, nil
}

func (s *BoltIndex) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta.Generation
}

// Clear removes every record and rebinds the collection to the
// configured embedding model, lifting any model mismatch.
func (s *BoltIndex) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	newMeta := domain.IndexMeta{
		SchemaVersion:  currentSchemaVersion,
		EmbeddingModel: s.opts.EmbeddingModel,
		Dimension:      s.opts.Dimension,
		Generation:     s.meta.Generation + 1,
		UpdatedAt:      time.Now(),
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketDocs, bucketChunks, bucketDocChunks, bucketVectors} {
			b := tx.Bucket(name)
			if b == nil {
				continue
			}
			c := b.Cursor()
			for k, _ := c.First(); k != nil; k, _ = c.Next() {
				if err := b.Delete(k); err != nil {
					return err
				}
			}
		}
		return writeMeta(tx, newMeta)
	})
	if err != nil {
		return err
	}

	s.vectors = make(map[string]vectorEntry)
	s.meta = newMeta
	return nil
}

func (s *BoltIndex) Close() error {
	return s.db.Close()
}

// Path returns the collection's database file location.
func (s *BoltIndex) Path() string {
	return s.path
}

// cosineSimilarity calculates the cosine similarity between two
// vectors. A zero vector has similarity 0 with everything, never NaN.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
