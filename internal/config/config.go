// Package config provides configuration loading and structs for the kotae server.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/vector"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the database location.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LLMConfig holds model server settings. When Mock is true the deterministic
// offline embedder and a canned generator are used instead of the HTTP
// clients, which makes local runs and tests independent of a model server.
type LLMConfig struct {
	BaseURL        string `yaml:"base_url"`
	EmbedModel     string `yaml:"embed_model"`
	GenerateModel  string `yaml:"generate_model"`
	Dimensions     int    `yaml:"dimensions"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Mock           bool   `yaml:"mock"`
}

// EmbeddingsURL returns the full embeddings endpoint URL.
func (l *LLMConfig) EmbeddingsURL() string {
	return strings.TrimRight(l.BaseURL, "/") + "/api/embeddings"
}

// GenerateURL returns the full generation endpoint URL.
func (l *LLMConfig) GenerateURL() string {
	return strings.TrimRight(l.BaseURL, "/") + "/api/generate"
}

// RetrievalConfig holds candidate selection settings. DistanceThreshold is a
// pointer so an explicit zero (accept only exact matches) is distinguishable
// from unset.
type RetrievalConfig struct {
	TopK              int      `yaml:"top_k"`
	DistanceThreshold *float64 `yaml:"distance_threshold"`
	Metric            string   `yaml:"metric"`
}

// Threshold returns the configured distance threshold.
func (r *RetrievalConfig) Threshold() float64 {
	if r.DistanceThreshold == nil {
		return defaultDistanceThreshold
	}
	return *r.DistanceThreshold
}

// ChunkingConfig holds text segmentation settings.
type ChunkingConfig struct {
	Size     int    `yaml:"size"`
	Overlap  int    `yaml:"overlap"`
	Boundary string `yaml:"boundary"`
}

// ChunkerConfig converts to the chunker's own config type.
func (c *ChunkingConfig) ChunkerConfig() chunker.Config {
	return chunker.Config{
		Size:     c.Size,
		Overlap:  c.Overlap,
		Boundary: chunker.BoundaryPolicy(c.Boundary),
	}
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Recursive   *bool    `yaml:"recursive"`
	DebounceMS  int      `yaml:"debounce_ms"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, applies
// defaults, and validates. Unknown keys are rejected so a typo fails loudly
// instead of silently falling back to a default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Validate checks cross-field constraints not expressible as defaults.
func (c *Config) Validate() error {
	if err := c.Chunking.ChunkerConfig().Validate(); err != nil {
		return fmt.Errorf("chunking: %w", err)
	}
	switch vector.Metric(c.Retrieval.Metric) {
	case vector.MetricCosine, vector.MetricL2:
	default:
		return fmt.Errorf("retrieval: unknown metric %q", c.Retrieval.Metric)
	}
	if c.Retrieval.TopK < 0 {
		return fmt.Errorf("retrieval: top_k must be non-negative, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.Threshold() < 0 {
		return fmt.Errorf("retrieval: distance_threshold must be non-negative, got %v", c.Retrieval.Threshold())
	}
	if c.LLM.Dimensions <= 0 {
		return fmt.Errorf("llm: dimensions must be positive, got %d", c.LLM.Dimensions)
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
