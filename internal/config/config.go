// Package config provides configuration loading and structs for the Kakunin server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug        bool               `yaml:"debug"`
	Server       ServerConfig       `yaml:"server"`
	Storage      StorageConfig      `yaml:"storage"`
	Imaging      ImagingConfig      `yaml:"imaging"`
	Embedding    EmbeddingConfig    `yaml:"embedding"`
	Manipulation ManipulationConfig `yaml:"manipulation"`
	Semantic     SemanticConfig     `yaml:"semantic"`
	Scoring      ScoringConfig      `yaml:"scoring"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database, media files, and vector indices.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	MediaPath       string `yaml:"media_path"`
	VectorIndexPath string `yaml:"vector_index_path"`
}

// ImagingConfig holds decode, normalization, and chunking settings.
type ImagingConfig struct {
	// MaxEdge is the canonical max edge length after normalization. Images
	// are downsized to it, never upsized.
	MaxEdge          int   `yaml:"max_edge"`
	MaxBytes         int64 `yaml:"max_bytes"`
	MaxPixelEdge     int   `yaml:"max_pixel_edge"`
	GridRows         int   `yaml:"grid_rows"`
	GridCols         int   `yaml:"grid_cols"`
	ThumbnailEdge    int   `yaml:"thumbnail_edge"`
	ThumbnailQuality int   `yaml:"thumbnail_quality"`
}

// EmbeddingConfig holds embedding capability settings.
type EmbeddingConfig struct {
	// Provider is one of "patch" (local, deterministic), "openai"
	// (OpenAI-compatible embeddings endpoint), or "mock" (tests).
	Provider          string  `yaml:"provider"`
	Model             string  `yaml:"model"`
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	Dimensions        int     `yaml:"dimensions"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	CacheTTLSeconds   int     `yaml:"cache_ttl_seconds"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// ManipulationConfig holds tamper detection settings.
type ManipulationConfig struct {
	ELAQuality       int     `yaml:"ela_quality"`
	ELAScale         float64 `yaml:"ela_scale"`
	ELAWeight        float64 `yaml:"ela_weight"`
	ClassifierWeight float64 `yaml:"classifier_weight"`
	Threshold        float64 `yaml:"threshold"`
	ModelPath        string  `yaml:"model_path"`
	TimeoutSeconds   int     `yaml:"timeout_seconds"`
}

// SemanticConfig holds vision-language judge settings.
type SemanticConfig struct {
	Provider       string `yaml:"provider"`
	Model          string `yaml:"model"`
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	MaxTokens      int    `yaml:"max_tokens"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxAttempts    int    `yaml:"max_attempts"`
	BackoffMS      int    `yaml:"backoff_ms"`
}

// ScoringConfig holds the fusion weights and decision thresholds.
// Weights apply to available signals and are renormalized when one is missing.
type ScoringConfig struct {
	PerceptualWeight    float64 `yaml:"perceptual_weight"`
	ChunkWeight         float64 `yaml:"chunk_weight"`
	SemanticWeight      float64 `yaml:"semantic_weight"`
	ManipulationPenalty float64 `yaml:"manipulation_penalty"`
	ManipulationCeiling float64 `yaml:"manipulation_ceiling"`
	ApproveThreshold    float64 `yaml:"approve_threshold"`
	RejectThreshold     float64 `yaml:"reject_threshold"`
	RecycledThreshold   float64 `yaml:"recycled_threshold"`
	// SpatialRadiusM is the maximum distance in meters between the complaint
	// and proof capture coordinates before the proof is rejected outright.
	SpatialRadiusM float64 `yaml:"spatial_radius_m"`
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
	cfg.Storage.MediaPath = expandPath(cfg.Storage.MediaPath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	if cfg.Manipulation.ModelPath != "" {
		cfg.Manipulation.ModelPath = expandPath(cfg.Manipulation.ModelPath, configDir)
	}

	return &cfg, nil
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
