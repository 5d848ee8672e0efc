// Package config provides configuration loading and structs for the molegis pipeline and server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Validation errors returned by Validate.
var (
	ErrInvalidConcurrency = errors.New("pipeline.concurrency must be positive")
	ErrInvalidChunking    = errors.New("chunking.overlap_tokens must be smaller than chunking.target_tokens")
	ErrInvalidProvider    = errors.New("unknown embedding provider")
	ErrInvalidChamber     = errors.New("unknown scraper chamber")
)

// Embedding providers.
const (
	ProviderOpenAI = "openai"
	ProviderONNX   = "onnx"
	ProviderMock   = "mock"
)

// EncodingWords selects whitespace word counting instead of a BPE encoding.
const EncodingWords = "words"

// Chambers a bill source can scrape.
const (
	ChamberHouse  = "house"
	ChamberSenate = "senate"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Scraper   ScraperConfig   `yaml:"scraper"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Search    SearchConfig    `yaml:"search"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database, indices, and downloaded documents.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	BleveIndexPath  string `yaml:"bleve_index_path"`
	VectorIndexPath string `yaml:"vector_index_path"`
	BlobCachePath   string `yaml:"blob_cache_path"`
}

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
	CacheSize  int    `yaml:"cache_size"`
	// ONNX backend only.
	ModelPath string `yaml:"model_path"`
	MaxTokens int    `yaml:"max_tokens"`
}

// ResolvedAPIKey returns APIKey, or the value of the APIKeyEnv environment variable when APIKey is empty.
func (e *EmbeddingConfig) ResolvedAPIKey() string {
	if e.APIKey != "" {
		return e.APIKey
	}
	if e.APIKeyEnv != "" {
		return os.Getenv(e.APIKeyEnv)
	}
	return ""
}

// ChunkingConfig holds chunk sizing.
type ChunkingConfig struct {
	TargetTokens  int    `yaml:"target_tokens"`
	OverlapTokens int    `yaml:"overlap_tokens"`
	Encoding      string `yaml:"encoding"`
}

// ScraperConfig holds browser and source settings.
type ScraperConfig struct {
	UserAgent     string        `yaml:"user_agent"`
	Headless      *bool         `yaml:"headless"`
	PageTimeout   time.Duration `yaml:"page_timeout"`
	HouseBaseURL  string        `yaml:"house_base_url"`
	SenateBaseURL string        `yaml:"senate_base_url"`
	Chamber       string        `yaml:"chamber"`
}

// HeadlessOrDefault returns whether to run the browser headless; defaults to true when unset.
func (s *ScraperConfig) HeadlessOrDefault() bool {
	if s.Headless != nil {
		return *s.Headless
	}
	return true
}

// PipelineConfig holds orchestration settings.
type PipelineConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	DownloadRetries int           `yaml:"download_retries"`
	RetryBaseDelay  time.Duration `yaml:"retry_base_delay"`
}

// SearchConfig holds search settings.
type SearchConfig struct {
	DefaultLimit   int     `yaml:"default_limit"`
	MaxLimit       int     `yaml:"max_limit"`
	TopKCandidates int     `yaml:"top_k_candidates"`
	KeywordWeight  float64 `yaml:"keyword_weight"`
	SemanticWeight float64 `yaml:"semantic_weight"`
	MinScore       float64 `yaml:"min_score"`
	// Rerank boosts named bills and phrase matches after fusion. Defaults to true.
	Rerank *bool `yaml:"rerank"`
}

// RerankOrDefault returns whether fused results are reranked; defaults to true when unset.
func (s *SearchConfig) RerankOrDefault() bool {
	if s.Rerank != nil {
		return *s.Rerank
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	cfg.Storage.BlobCachePath = expandPath(cfg.Storage.BlobCachePath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Pipeline.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.Chunking.OverlapTokens >= c.Chunking.TargetTokens {
		return fmt.Errorf("%w: overlap %d, target %d", ErrInvalidChunking, c.Chunking.OverlapTokens, c.Chunking.TargetTokens)
	}
	switch c.Embedding.Provider {
	case ProviderOpenAI, ProviderONNX, ProviderMock:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidProvider, c.Embedding.Provider)
	}
	switch c.Scraper.Chamber {
	case ChamberHouse, ChamberSenate:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidChamber, c.Scraper.Chamber)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
