// Package usecase wires the ports into the ingest, retrieve, answer
// and status flows. Use cases hold no transport or storage logic of
// their own; adapters own retries, rate limits and persistence.
package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"sahayak/internal/adapter/analyzer"
	"sahayak/internal/domain"
	"sahayak/internal/port"
)

const (
	defaultTopK = 3
)

// AskUseCase answers a question over the indexed documents. It detects
// the question's language, retrieves context and generates a grounded
// answer in the response language. Degraded paths (nothing indexed, no
// relevant context, service outage) produce a bilingual message
// instead of an error, so surfaces keep serving.
type AskUseCase struct {
	detector  port.LanguageDetector
	retriever port.Retriever
	index     port.Index
	prompts   port.PromptBuilder
	llm       port.LLM
	topK      int
	minScore  float64
	logger    *slog.Logger
}

// AskOptions tunes retrieval for answering.
type AskOptions struct {
	// TopK is the number of chunks retrieved as context. Default 3.
	TopK int
	// MinScore drops chunks scoring below it. 0 disables the floor.
	MinScore float64
	Logger   *slog.Logger
}

// NewAskUseCase creates a new ask use case.
func NewAskUseCase(
	detector port.LanguageDetector,
	retriever port.Retriever,
	index port.Index,
	prompts port.PromptBuilder,
	llm port.LLM,
	opts AskOptions,
) *AskUseCase {
	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AskUseCase{
		detector:  detector,
		retriever: retriever,
		index:     index,
		prompts:   prompts,
		llm:       llm,
		topK:      topK,
		minScore:  opts.MinScore,
		logger:    logger,
	}
}

// Answer runs the full query pipeline: detect language, retrieve
// context, build the prompt pair and generate. The returned answer is
// always in the question's response language (mixed resolves to
// Hindi). Grounded is true only when retrieved context backed the
// generation.
func (u *AskUseCase) Answer(ctx context.Context, question string) (domain.Answer, error) {
	question = strings.TrimSpace(question)
	lang := u.detector.Detect(question)
	respLang := lang.ResponseLanguage()
	msgs := analyzer.MessagesFor(lang)

	u.logger.Debug("question received",
		"language", lang.String(),
		"chars", utf8.RuneCountInString(question),
		"query_digest", textDigest(question),
	)

	stats, err := u.index.Stats()
	if err != nil {
		return domain.Answer{}, fmt.Errorf("failed to read index stats: %w", err)
	}
	if stats.TotalDocuments == 0 {
		return domain.Answer{Text: msgs.NoDocuments, Language: respLang}, nil
	}

	chunks, err := u.retriever.Retrieve(ctx, question, u.topK, u.minScore)
	if err != nil {
		if errors.Is(err, domain.ErrEmbeddingService) {
			u.logger.Error("retrieval unavailable", "error", err)
			return domain.Answer{Text: msgs.Unavailable, Language: respLang}, nil
		}
		return domain.Answer{}, err
	}
	if len(chunks) == 0 {
		return domain.Answer{Text: msgs.NoAnswer, Language: respLang}, nil
	}

	systemPrompt, userPrompt, err := u.prompts.Build(lang, question, chunks)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("failed to build prompt: %w", err)
	}

	text, err := u.llm.Generate(ctx, systemPrompt, userPrompt)
	if err != nil {
		if errors.Is(err, domain.ErrGenerationUnavailable) {
			u.logger.Error("generation unavailable", "error", err)
			return domain.Answer{Text: msgs.Unavailable, Language: respLang, CitedChunks: chunks}, nil
		}
		return domain.Answer{}, err
	}

	u.logger.Info("question answered",
		"language", respLang.String(),
		"context_chunks", len(chunks),
		"answer_chars", utf8.RuneCountInString(text),
	)
	return domain.Answer{
		Text:        strings.TrimSpace(text),
		Language:    respLang,
		CitedChunks: chunks,
		Grounded:    true,
	}, nil
}

// textDigest returns a short content hash for log lines. Question and
// document text never appear in logs.
func textDigest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:4])
}
