package domain

import "time"

type Document struct {
	ID             string
	SourceFilename string
	RawText        string
}

// Chunk offsets are rune offsets into the document's raw text, not byte
// offsets. Hindi text is multi-byte in UTF-8 and the chunk window is
// defined in characters.
type Chunk struct {
	ID            string `json:"id"`
	DocumentID    string `json:"document_id"`
	Text          string `json:"text"`
	StartOffset   int    `json:"start_offset"`
	EndOffset     int    `json:"end_offset"`
	SequenceIndex int    `json:"sequence_index"`
}

type EmbeddingRecord struct {
	ChunkID  string
	Vector   []float32
	Metadata RecordMetadata
}

type RecordMetadata struct {
	DocumentID     string `json:"document_id"`
	SourceFilename string `json:"source_filename"`
	SequenceIndex  int    `json:"sequence_index"`
}

type Query struct {
	Text             string
	DetectedLanguage Language
}

type ScoredChunk struct {
	Chunk          Chunk
	SourceFilename string
	Score          float64
}

type Answer struct {
	Text        string
	Language    Language
	CitedChunks []ScoredChunk
	// Grounded is false when the answer was produced without retrieved
	// context (nothing indexed, or nothing cleared the score floor).
	Grounded bool
}

type DocumentInfo struct {
	ID             string    `json:"id"`
	SourceFilename string    `json:"source_filename"`
	Characters     int       `json:"characters"`
	Chunks         int       `json:"chunks"`
	IndexedAt      time.Time `json:"indexed_at"`
}

type Stats struct {
	TotalDocuments  int     `json:"total_documents"`
	TotalChunks     int     `json:"total_chunks"`
	TotalCharacters int     `json:"total_characters"`
	AvgChunkLen     float64 `json:"avg_chunk_len"`
}

// IndexMeta describes how a collection on disk was built. The
// embedding model identity recorded here guards against searching one
// embedding space with vectors from another.
type IndexMeta struct {
	SchemaVersion  int       `json:"schema_version"`
	EmbeddingModel string    `json:"embedding_model"`
	Dimension      int       `json:"dimension"`
	Generation     uint64    `json:"generation"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type ChunkFailure struct {
	ChunkID       string `json:"chunk_id"`
	SequenceIndex int    `json:"sequence_index"`
	Reason        string `json:"reason"`
}

// IngestReport summarizes one document's trip through the pipeline.
// Failures lists chunks whose embedding failed after retries; they are
// skipped, not fatal.
type IngestReport struct {
	DocumentID     string         `json:"document_id"`
	SourceFilename string         `json:"source_filename"`
	Characters     int            `json:"characters"`
	ChunksTotal    int            `json:"chunks_total"`
	ChunksIndexed  int            `json:"chunks_indexed"`
	Failures       []ChunkFailure `json:"failures,omitempty"`
	Elapsed        time.Duration  `json:"elapsed"`
}
