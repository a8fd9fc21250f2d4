package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"sahayak/internal/adapter/loader"
	"sahayak/internal/domain"
	"sahayak/internal/port"
)

const (
	defaultWorkers   = 4
	defaultBatchSize = 100
)

// IngestUseCase runs documents through the chunk, embed and index
// pipeline. Embedding batches run concurrently; a failed batch is
// reported per chunk and skipped, so one bad batch never discards a
// whole document.
type IngestUseCase struct {
	chunker   port.Chunker
	embedder  port.Embedder
	index     port.Index
	walker    port.FileWalker
	loaders   []port.Loader
	workers   int
	batchSize int
	logger    *slog.Logger
}

// IngestOptions tunes the ingest pipeline.
type IngestOptions struct {
	// Workers caps concurrent embedding batches. Default 4.
	Workers int
	// BatchSize is the number of chunks per embedding request.
	// Default 100.
	BatchSize int
	Logger    *slog.Logger
}

// NewIngestUseCase creates a new ingest use case.
func NewIngestUseCase(
	chunker port.Chunker,
	embedder port.Embedder,
	index port.Index,
	walker port.FileWalker,
	loaders []port.Loader,
	opts IngestOptions,
) *IngestUseCase {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestUseCase{
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		walker:    walker,
		loaders:   loaders,
		workers:   workers,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Ingest chunks and embeds one document and stores it in the index.
// Chunks whose embedding fails after retries are listed in the report
// and skipped. Every chunk failing is an error; context cancellation
// aborts immediately and stores nothing.
func (u *IngestUseCase) Ingest(ctx context.Context, doc domain.Document) (domain.IngestReport, error) {
	start := time.Now()
	report := domain.IngestReport{
		DocumentID:     doc.ID,
		SourceFilename: doc.SourceFilename,
		Characters:     utf8.RuneCountInString(doc.RawText),
	}

	chunks := u.chunker.Chunk(doc)
	report.ChunksTotal = len(chunks)
	if len(chunks) == 0 {
		report.Elapsed = time.Since(start)
		u.logger.Warn("document produced no chunks, nothing to index",
			"document_id", doc.ID, "source", doc.SourceFilename)
		return report, nil
	}

	var (
		mu       sync.Mutex
		records  []domain.EmbeddingRecord
		failures []domain.ChunkFailure
	)

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(u.workers)

	for begin := 0; begin < len(chunks); begin += u.batchSize {
		end := begin + u.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[begin:end]

		eg.Go(func() error {
			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Text
			}

			vectors, err := u.embedder.Embed(gctx, texts)
			if err != nil {
				// Cancellation aborts the whole run; a service
				// failure only loses this batch.
				if gctx.Err() != nil {
					return err
				}
				u.logger.Warn("embedding batch failed, skipping chunks",
					"document_id", doc.ID, "chunks", len(batch), "error", err)
				mu.Lock()
				for _, c := range batch {
					failures = append(failures, domain.ChunkFailure{
						ChunkID:       c.ID,
						SequenceIndex: c.SequenceIndex,
						Reason:        err.Error(),
					})
				}
				mu.Unlock()
				return nil
			}
			if len(vectors) != len(batch) {
				reason := fmt.Sprintf("expected %d vectors, got %d", len(batch), len(vectors))
				mu.Lock()
				for _, c := range batch {
					failures = append(failures, domain.ChunkFailure{
						ChunkID:       c.ID,
						SequenceIndex: c.SequenceIndex,
						Reason:        reason,
					})
				}
				mu.Unlock()
				return nil
			}

			batchRecords := make([]domain.EmbeddingRecord, len(batch))
			for i, c := range batch {
				batchRecords[i] = domain.EmbeddingRecord{
					ChunkID: c.ID,
					Vector:  vectors[i],
					Metadata: domain.RecordMetadata{
						DocumentID:     c.DocumentID,
						SourceFilename: doc.SourceFilename,
						SequenceIndex:  c.SequenceIndex,
					},
				}
			}
			mu.Lock()
			records = append(records, batchRecords...)
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		report.Elapsed = time.Since(start)
		return report, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Metadata.SequenceIndex < records[j].Metadata.SequenceIndex
	})
	sort.Slice(failures, func(i, j int) bool {
		return failures[i].SequenceIndex < failures[j].SequenceIndex
	})
	report.ChunksIndexed = len(records)
	report.Failures = failures

	if len(records) == 0 {
		report.Elapsed = time.Since(start)
		return report, fmt.Errorf("%w: all %d chunks of %s failed to embed",
			domain.ErrEmbeddingService, len(chunks), doc.SourceFilename)
	}

	indexed := chunks
	if len(records) < len(chunks) {
		embedded := make(map[string]bool, len(records))
		for _, rec := range records {
			embedded[rec.ChunkID] = true
		}
		indexed = make([]domain.Chunk, 0, len(records))
		for _, c := range chunks {
			if embedded[c.ID] {
				indexed = append(indexed, c)
			}
		}
	}

	if err := u.index.IndexDocument(doc, indexed, records); err != nil {
		report.Elapsed = time.Since(start)
		return report, fmt.Errorf("failed to index document %s: %w", doc.SourceFilename, err)
	}

	report.Elapsed = time.Since(start)
	u.logger.Info("document indexed",
		"document_id", doc.ID,
		"source", doc.SourceFilename,
		"characters", report.Characters,
		"chunks_total", report.ChunksTotal,
		"chunks_indexed", report.ChunksIndexed,
		"chunks_failed", len(failures),
		"elapsed", report.Elapsed,
	)
	return report, nil
}

// ProgressFunc reports ingest progress. currentFile is empty on the
// final call.
type ProgressFunc func(processed, total int, currentFile string)

// DirectoryReport aggregates one ingest run over a directory tree.
// Errors lists files that could not be loaded or indexed; they do not
// abort the run.
type DirectoryReport struct {
	FilesIndexed  int
	FilesSkipped  int
	ChunksIndexed int
	Characters    int
	Errors        []string
	Reports       []domain.IngestReport
	Elapsed       time.Duration
}

// IngestDirectory walks root, loads every supported file and ingests
// each one. A file that fails to load or index is recorded and the
// walk continues; only context cancellation stops the run early.
// progress may be nil.
func (u *IngestUseCase) IngestDirectory(ctx context.Context, root string, progress ProgressFunc) (*DirectoryReport, error) {
	start := time.Now()

	paths, err := u.walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	report := &DirectoryReport{}
	for i, path := range paths {
		if progress != nil {
			progress(i, len(paths), path)
		}
		if err := ctx.Err(); err != nil {
			report.Elapsed = time.Since(start)
			return report, err
		}

		ld, ok := loader.ForPath(u.loaders, path)
		if !ok {
			report.FilesSkipped++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: unsupported file format", path))
			continue
		}

		doc, err := ld.Load(ctx, path)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", path, err))
			continue
		}

		rep, err := u.Ingest(ctx, doc)
		if err != nil {
			if ctx.Err() != nil {
				report.Elapsed = time.Since(start)
				return report, err
			}
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", path, err))
			continue
		}

		report.FilesIndexed++
		report.ChunksIndexed += rep.ChunksIndexed
		report.Characters += rep.Characters
		report.Reports = append(report.Reports, rep)
	}
	if progress != nil {
		progress(len(paths), len(paths), "")
	}

	report.Elapsed = time.Since(start)
	return report, nil
}
