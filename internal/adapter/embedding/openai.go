// Package embedding talks to OpenAI-compatible embedding endpoints.
// The default target is a local Ollama instance, which serves the same
// wire format under /v1.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"sahayak/internal/domain"
	"sahayak/internal/retry"
)

const (
	defaultBaseURL = "http://localhost:11434/v1"
	defaultTimeout = 120 * time.Second

	// Services cap batch sizes; 100 is safe across Ollama and OpenAI.
	maxBatchSize = 100
)

// Config describes one embedding endpoint. APIKeyEnv names the
// environment variable holding the key; leave it empty for services
// that ignore authentication, like a local Ollama.
type Config struct {
	Model             string
	BaseURL           string
	APIKeyEnv         string
	Dimension         int
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Retry             retry.Policy
}

// Client is a retrying, rate-limited embedder over any OpenAI-style
// /embeddings endpoint.
type Client struct {
	apiKey    string
	model     string
	baseURL   string
	dimension int
	http      *http.Client
	limiter   *rate.Limiter
	retry     retry.Policy
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Error *apiError       `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NewClient builds an embedding client from cfg. The model's dimension
// must either be one the client knows or be set explicitly.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: embedding model is required", domain.ErrInvalidConfiguration)
	}

	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = modelDimension(cfg.Model)
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: unknown embedding model %q, set the dimension explicitly",
			domain.ErrInvalidConfiguration, cfg.Model)
	}

	apiKey := "ollama"
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("%w: API key not found in environment variable %s",
				domain.ErrInvalidConfiguration, cfg.APIKeyEnv)
		}
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		apiKey:    apiKey,
		model:     cfg.Model,
		baseURL:   strings.TrimRight(baseURL, "/"),
		dimension: dimension,
		http:      &http.Client{Timeout: timeout},
		limiter:   limiter,
		retry:     cfg.Retry,
	}, nil
}

// modelDimension returns the vector size for models the client knows,
// or 0 for unknown ones.
func modelDimension(model string) int {
	switch model {
	case "nomic-embed-text":
		return 768
	case "mxbai-embed-large":
		return 1024
	case "all-minilm":
		return 384
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	case "text-embedding-3-large":
		return 3072
	}
	return 0
}

// Embed returns one vector per input text, in input order. Large
// inputs are split into batches; a failed batch fails the whole call.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := c.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		all = append(all, vectors...)
	}
	return all, nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		got, err := c.requestEmbeddings(ctx, texts)
		if err != nil {
			return err
		}
		vectors = got
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
	}
	return vectors, nil
}

func (c *Client) requestEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	jsonData, err := json.Marshal(embeddingRequest{Input: texts, Model: c.model})
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(jsonData))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(resp, body)
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response (body: %s): %w", bodyPreview(body), err)
	}
	if embResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", embResp.Error.Message)
	}
	if len(embResp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embResp.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, data := range embResp.Data {
		if data.Index < 0 || data.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		vectors[data.Index] = data.Embedding
	}
	for i, vec := range vectors {
		if vec == nil {
			return nil, fmt.Errorf("missing embedding at index %d", i)
		}
		if len(vec) != c.dimension {
			return nil, retry.Permanent(fmt.Errorf("embedding dimension mismatch: model %s returned %d, expected %d",
				c.model, len(vec), c.dimension))
		}
	}
	return vectors, nil
}

func (c *Client) Dimension() int {
	return c.dimension
}

func (c *Client) ModelName() string {
	return c.model
}

// classifyHTTPError decides whether a failed request is worth
// retrying. Rate limits carry the service's retry-after hint, server
// errors retry on the normal track, everything else is permanent.
func classifyHTTPError(resp *http.Response, body []byte) error {
	msg := apiMessage(body)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &retry.RateLimitError{
			Err:        fmt.Errorf("rate limited (status 429): %s", msg),
			RetryAfter: retryAfterHint(resp.Header),
		}
	case resp.StatusCode >= 500:
		return fmt.Errorf("service error (status %d): %s", resp.StatusCode, msg)
	default:
		return retry.Permanent(fmt.Errorf("request rejected (status %d): %s", resp.StatusCode, msg))
	}
}

// apiMessage extracts the error message from an OpenAI-style error
// body, falling back to a truncated raw body.
func apiMessage(body []byte) string {
	var parsed struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return bodyPreview(body)
}

func bodyPreview(body []byte) string {
	preview := strings.TrimSpace(string(body))
	if len(preview) > 200 {
		preview = preview[:200]
	}
	return preview
}

// retryAfterHint parses the Retry-After header, if any. Both the
// delay-seconds and HTTP-date forms appear in the wild.
func retryAfterHint(header http.Header) time.Duration {
	value := header.Get("Retry-After")
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
