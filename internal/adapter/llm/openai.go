// Package llm wraps OpenAI-compatible chat completion endpoints. The
// default target is Groq's OpenAI-style API, which serves the Llama
// models used for answer generation.
package llm

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
	defaultBaseURL     = "https://api.groq.com/openai/v1"
	defaultTimeout     = 30 * time.Second
	defaultMaxTokens   = 1000
	defaultTemperature = 0.1

	pingMaxTokens = 10
)

// Config describes one chat completion endpoint. APIKeyEnv names the
// environment variable holding the key; leave it empty for local
// services that ignore authentication.
type Config struct {
	Model             string
	BaseURL           string
	APIKeyEnv         string
	Temperature       float64
	MaxTokens         int
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Retry             retry.Policy
}

// Client generates chat completions with retries and rate limiting.
type Client struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	http        *http.Client
	limiter     *rate.Limiter
	retry       retry.Policy
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: generation model is required", domain.ErrInvalidConfiguration)
	}

	apiKey := ""
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
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
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
		apiKey:      apiKey,
		model:       cfg.Model,
		baseURL:     strings.TrimRight(baseURL, "/"),
		temperature: temperature,
		maxTokens:   maxTokens,
		http:        &http.Client{Timeout: timeout},
		limiter:     limiter,
		retry:       cfg.Retry,
	}, nil
}

// Generate returns the completion for a system and user prompt pair.
// Transient failures are retried; an exhausted retry budget surfaces
// as ErrGenerationUnavailable.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}

	var completion string
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		got, err := c.requestCompletion(ctx, messages, c.maxTokens)
		if err != nil {
			return err
		}
		completion = got
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", domain.ErrGenerationUnavailable, err)
	}
	return completion, nil
}

// Ping sends a minimal completion request to verify the service is
// reachable and the configured key works. No retries; health checks
// should report the current state, not a hopeful one.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.requestCompletion(ctx, []chatMessage{{Role: "user", Content: "Hello"}}, pingMaxTokens)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrGenerationUnavailable, err)
	}
	return nil
}

func (c *Client) ModelName() string {
	return c.model
}

func (c *Client) requestCompletion(ctx context.Context, messages []chatMessage, maxTokens int) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	jsonData, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyHTTPError(resp, body)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response (body: %s): %w", bodyPreview(body), err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	completion := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if completion == "" {
		return "", fmt.Errorf("empty completion")
	}
	return completion, nil
}

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
