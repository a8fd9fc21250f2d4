package port

import "context"

// LLM represents a language model for text generation.
type LLM interface {
	// Generate produces a completion for the given system and user
	// prompts. Implementations own retries; exhausted retries and
	// empty or malformed completions surface as
	// domain.ErrGenerationUnavailable.
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// Ping verifies the service is reachable with a minimal request.
	Ping(ctx context.Context) error

	// ModelName returns the name of the model.
	ModelName() string
}
