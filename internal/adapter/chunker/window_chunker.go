package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"unicode"

	"sahayak/internal/domain"
)

// whitespaceLookback bounds how far back from a window end the chunker
// searches for a whitespace break.
const whitespaceLookback = 50

// WindowChunker splits raw text into overlapping character windows.
// Positions are rune offsets, so Devanagari text is measured in
// characters rather than UTF-8 bytes.
type WindowChunker struct {
	chunkSize int
	overlap   int
}

func NewWindowChunker(chunkSize, overlap int) (*WindowChunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfiguration, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", domain.ErrInvalidConfiguration, chunkSize, overlap)
	}
	return &WindowChunker{chunkSize: chunkSize, overlap: overlap}, nil
}

func (c *WindowChunker) Chunk(doc domain.Document) []domain.Chunk {
	runes := []rune(doc.RawText)
	if len(runes) == 0 {
		return nil
	}

	var chunks []domain.Chunk
	start := 0
	seq := 0

	for start < len(runes) {
		end := start + c.chunkSize
		if end >= len(runes) {
			end = len(runes)
		} else if cut := c.whitespaceCut(runes, start, end); cut > 0 {
			end = cut
		}

		chunks = append(chunks, domain.Chunk{
			ID:            generateChunkID(doc.ID, seq, start, end),
			DocumentID:    doc.ID,
			Text:          string(runes[start:end]),
			StartOffset:   start,
			EndOffset:     end,
			SequenceIndex: seq,
		})

		if end == len(runes) {
			break
		}

		next := end - c.overlap
		if next <= start {
			next = start + 1
		}
		start = next
		seq++
	}

	return chunks
}

// whitespaceCut scans back from end for the last whitespace within the
// lookback window and returns the position just after it, keeping words
// whole across the boundary. Returns 0 when no whitespace is found or
// when cutting there would stall the window's forward progress.
func (c *WindowChunker) whitespaceCut(runes []rune, start, end int) int {
	low := end - whitespaceLookback
	if low < start {
		low = start
	}
	for i := end - 1; i >= low; i-- {
		if unicode.IsSpace(runes[i]) {
			cut := i + 1
			if cut-start > c.overlap {
				return cut
			}
			return 0
		}
	}
	return 0
}

func generateChunkID(docID string, seq, start, end int) string {
	data := fmt.Sprintf("%s:%d:%d-%d", docID, seq, start, end)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}
