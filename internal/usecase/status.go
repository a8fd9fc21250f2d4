package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"sahayak/internal/domain"
	"sahayak/internal/port"
)

// healthProbeText is what the embedding probe sends. Kept a stable
// literal so probe vectors are comparable across runs.
const healthProbeText = "health check"

// ServiceStatus reports one external service's reachability.
type ServiceStatus struct {
	Model string `json:"model"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// StatusReport is a snapshot of the collection and both external
// services, for the status command and the status endpoint.
type StatusReport struct {
	Stats      domain.Stats          `json:"stats"`
	Meta       domain.IndexMeta      `json:"meta"`
	Documents  []domain.DocumentInfo `json:"documents"`
	Embedding  ServiceStatus         `json:"embedding"`
	Generation ServiceStatus         `json:"generation"`
}

// Healthy reports whether both external services answered their probes.
func (r StatusReport) Healthy() bool {
	return r.Embedding.OK && r.Generation.OK
}

// StatusUseCase probes the embedding and generation services and
// gathers collection statistics.
type StatusUseCase struct {
	embedder port.Embedder
	llm      port.LLM
	index    port.Index
	logger   *slog.Logger
}

// NewStatusUseCase creates a new status use case.
func NewStatusUseCase(embedder port.Embedder, llm port.LLM, index port.Index, logger *slog.Logger) *StatusUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusUseCase{
		embedder: embedder,
		llm:      llm,
		index:    index,
		logger:   logger,
	}
}

// Check gathers index statistics and probes both services. A failed
// probe lands in the report, not in the error; the error covers only
// the local index.
func (u *StatusUseCase) Check(ctx context.Context) (StatusReport, error) {
	var report StatusReport

	stats, err := u.index.Stats()
	if err != nil {
		return report, fmt.Errorf("failed to read index stats: %w", err)
	}
	report.Stats = stats

	meta, err := u.index.Meta()
	if err != nil {
		return report, fmt.Errorf("failed to read index meta: %w", err)
	}
	report.Meta = meta

	docs, err := u.index.Documents()
	if err != nil {
		return report, fmt.Errorf("failed to list documents: %w", err)
	}
	report.Documents = docs

	report.Embedding.Model = u.embedder.ModelName()
	if _, err := u.embedder.Embed(ctx, []string{healthProbeText}); err != nil {
		u.logger.Warn("embedding service probe failed", "error", err)
		report.Embedding.Error = err.Error()
	} else {
		report.Embedding.OK = true
	}

	report.Generation.Model = u.llm.ModelName()
	if err := u.llm.Ping(ctx); err != nil {
		u.logger.Warn("generation service probe failed", "error", err)
		report.Generation.Error = err.Error()
	} else {
		report.Generation.OK = true
	}

	return report, nil
}
