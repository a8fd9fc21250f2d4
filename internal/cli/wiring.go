package cli

import (
	"fmt"
	"log/slog"
	"time"

	"sahayak/config"
	"sahayak/internal/adapter/analyzer"
	"sahayak/internal/adapter/cache"
	"sahayak/internal/adapter/embedding"
	"sahayak/internal/adapter/llm"
	"sahayak/internal/adapter/prompt"
	"sahayak/internal/adapter/store"
	"sahayak/internal/port"
	"sahayak/internal/usecase"
)

// newEmbedder builds the configured embedding client. onRetry, when
// set, observes every retry.
func newEmbedder(cfg *config.Config, onRetry func(int, error)) (port.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	case "ollama", "openai", "":
		policy := cfg.RetryPolicy()
		policy.OnRetry = onRetry
		return embedding.NewClient(embedding.Config{
			Model:             cfg.Embedding.Model,
			BaseURL:           cfg.Embedding.BaseURL,
			APIKeyEnv:         cfg.Embedding.APIKeyEnv,
			Dimension:         cfg.Embedding.Dimension,
			Timeout:           time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
			RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
			Burst:             cfg.Embedding.Burst,
			Retry:             policy,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
}

func newLLM(cfg *config.Config, onRetry func(int, error)) (port.LLM, error) {
	policy := cfg.RetryPolicy()
	policy.OnRetry = onRetry
	return llm.NewClient(llm.Config{
		Model:             cfg.Generation.Model,
		BaseURL:           cfg.Generation.BaseURL,
		APIKeyEnv:         cfg.Generation.APIKeyEnv,
		Temperature:       cfg.Generation.Temperature,
		MaxTokens:         cfg.Generation.MaxTokens,
		Timeout:           time.Duration(cfg.Generation.TimeoutSeconds) * time.Second,
		RequestsPerSecond: cfg.Generation.RequestsPerSecond,
		Burst:             cfg.Generation.Burst,
		Retry:             policy,
	})
}

// openIndex opens the configured collection bound to the embedder's
// model and dimension.
func openIndex(cfg *config.Config, root string, embedder port.Embedder) (port.Index, error) {
	opts := store.Options{
		EmbeddingModel: embedder.ModelName(),
		Dimension:      embedder.Dimension(),
	}
	switch cfg.Storage.Type {
	case "memory":
		return store.NewMemoryIndex(opts)
	case "", "bolt":
		return store.Open(cfg.StorageDir(root), cfg.Storage.Collection, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

// newRetriever stacks the retrieval cache on top of the semantic
// retriever when enabled.
func newRetriever(cfg *config.Config, embedder port.Embedder, index port.Index, logger *slog.Logger) port.Retriever {
	var ret port.Retriever = usecase.NewRetrieveUseCase(embedder, index, logger)
	if cfg.Cache.Enabled {
		ret = cache.NewCachedRetriever(ret, index, cache.NewRetrievalCache(cfg.Cache.MaxEntries, cfg.CacheTTL()))
	}
	return ret
}

// newAskUseCase assembles the full answering stack.
func newAskUseCase(cfg *config.Config, embedder port.Embedder, index port.Index, generator port.LLM) (*usecase.AskUseCase, error) {
	detector, err := analyzer.NewDetector(cfg.Language.HindiThreshold)
	if err != nil {
		return nil, err
	}
	prompts, err := prompt.NewBuilder()
	if err != nil {
		return nil, err
	}
	retriever := newRetriever(cfg, embedder, index, slog.Default())
	return usecase.NewAskUseCase(detector, retriever, index, prompts, generator, usecase.AskOptions{
		TopK:     cfg.Retrieval.TopK,
		MinScore: cfg.Retrieval.MinScore,
	}), nil
}
