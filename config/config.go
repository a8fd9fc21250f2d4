package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"sahayak/internal/domain"
	"sahayak/internal/retry"
)

// Config holds all configuration for the assistant.
type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Language   LanguageConfig   `yaml:"language"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Retry      RetryConfig      `yaml:"retry"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Server     ServerConfig     `yaml:"server"`
	Cache      CacheConfig      `yaml:"cache"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// StorageConfig locates the collection databases. A relative dir is
// resolved against the working root. Type "memory" keeps the
// collection in process memory instead, dropping it on exit.
type StorageConfig struct {
	Type       string `yaml:"type"`
	Dir        string `yaml:"dir"`
	Collection string `yaml:"collection"`
}

type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

type LanguageConfig struct {
	HindiThreshold float64 `yaml:"hindi_threshold"`
}

type RetrievalConfig struct {
	TopK     int     `yaml:"top_k"`
	MinScore float64 `yaml:"min_score"` // 0 disables the floor
}

// EmbeddingConfig points at an OpenAI-compatible embeddings endpoint.
// Provider "mock" swaps in the deterministic test embedder.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider"`
	Model             string  `yaml:"model"`
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Dimension         int     `yaml:"dimension"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type GenerationConfig struct {
	Model             string  `yaml:"model"`
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Temperature       float64 `yaml:"temperature"`
	MaxTokens         int     `yaml:"max_tokens"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts"`
	BaseDelayMS      int     `yaml:"base_delay_ms"`
	RateLimitDelayMS int     `yaml:"rate_limit_delay_ms"`
	MaxDelayMS       int     `yaml:"max_delay_ms"`
	Jitter           float64 `yaml:"jitter"`
}

type IngestConfig struct {
	Includes  []string `yaml:"includes"`
	Excludes  []string `yaml:"excludes"`
	Workers   int      `yaml:"workers"`
	BatchSize int      `yaml:"batch_size"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type CacheConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxEntries int  `yaml:"max_entries"`
	TTLSeconds int  `yaml:"ttl_seconds"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration: local Ollama for
// embeddings, Groq for generation.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Type:       "bolt",
			Dir:        ".sahayak",
			Collection: "documents",
		},
		Chunking: ChunkingConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		Language: LanguageConfig{
			HindiThreshold: 0.3,
		},
		Retrieval: RetrievalConfig{
			TopK:     3,
			MinScore: 0,
		},
		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			Model:          "nomic-embed-text",
			BaseURL:        "http://localhost:11434/v1",
			TimeoutSeconds: 120,
		},
		Generation: GenerationConfig{
			Model:          "llama-3.3-70b-versatile",
			BaseURL:        "https://api.groq.com/openai/v1",
			APIKeyEnv:      "GROQ_API_KEY",
			Temperature:    0.1,
			MaxTokens:      1000,
			TimeoutSeconds: 30,
		},
		Retry: RetryConfig{
			MaxAttempts:      3,
			BaseDelayMS:      500,
			RateLimitDelayMS: 2000,
			MaxDelayMS:       8000,
			Jitter:           0.2,
		},
		Ingest: IngestConfig{
			Includes:  []string{"**/*.txt", "**/*.pdf"},
			Excludes:  []string{"**/.sahayak/**", "**/.git/**", "**/node_modules/**"},
			Workers:   4,
			BatchSize: 100,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Cache: CacheConfig{
			Enabled:    true,
			MaxEntries: 100,
			TTLSeconds: 300,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory, trying
// sahayak.yaml and then .sahayak/config.yaml.
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "sahayak.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".sahayak", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d",
			domain.ErrInvalidConfiguration, c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d",
			domain.ErrInvalidConfiguration, c.Chunking.ChunkOverlap)
	}
	if c.Language.HindiThreshold < 0 || c.Language.HindiThreshold > 1 {
		return fmt.Errorf("%w: hindi_threshold must be in [0, 1], got %g",
			domain.ErrInvalidConfiguration, c.Language.HindiThreshold)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d",
			domain.ErrInvalidConfiguration, c.Retrieval.TopK)
	}
	if c.Retrieval.MinScore < 0 {
		return fmt.Errorf("%w: min_score must not be negative, got %g",
			domain.ErrInvalidConfiguration, c.Retrieval.MinScore)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("%w: embedding model is required", domain.ErrInvalidConfiguration)
	}
	if c.Generation.Model == "" {
		return fmt.Errorf("%w: generation model is required", domain.ErrInvalidConfiguration)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("%w: retry max_attempts must be at least 1, got %d",
			domain.ErrInvalidConfiguration, c.Retry.MaxAttempts)
	}
	if c.Storage.Collection == "" {
		return fmt.Errorf("%w: storage collection is required", domain.ErrInvalidConfiguration)
	}
	switch c.Storage.Type {
	case "", "bolt", "memory":
	default:
		return fmt.Errorf("%w: unsupported storage type %q", domain.ErrInvalidConfiguration, c.Storage.Type)
	}
	return nil
}

// RetryPolicy converts the retry section into a policy value.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:    c.Retry.MaxAttempts,
		BaseDelay:      time.Duration(c.Retry.BaseDelayMS) * time.Millisecond,
		RateLimitDelay: time.Duration(c.Retry.RateLimitDelayMS) * time.Millisecond,
		MaxDelay:       time.Duration(c.Retry.MaxDelayMS) * time.Millisecond,
		Jitter:         c.Retry.Jitter,
	}
}

// StorageDir resolves the storage directory against root when the
// configured path is relative.
func (c *Config) StorageDir(root string) string {
	if filepath.IsAbs(c.Storage.Dir) {
		return c.Storage.Dir
	}
	return filepath.Join(root, c.Storage.Dir)
}

// CacheTTL returns the retrieval cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}
