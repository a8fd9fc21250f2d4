package port

import "sahayak/internal/domain"

// PromptBuilder renders the system and user prompt pair for answering
// a question from retrieved chunks, in the response language of lang.
type PromptBuilder interface {
	Build(lang domain.Language, question string, chunks []domain.ScoredChunk) (systemPrompt, userPrompt string, err error)
}
