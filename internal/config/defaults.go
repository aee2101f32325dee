package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kakunin/data/db/verification.db"
	}
	if cfg.Storage.MediaPath == "" {
		cfg.Storage.MediaPath = "/usr/local/var/kakunin/data/media"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "/usr/local/var/kakunin/data/indices/proofs"
	}
	if cfg.Imaging.MaxEdge == 0 {
		cfg.Imaging.MaxEdge = 512
	}
	if cfg.Imaging.MaxBytes == 0 {
		cfg.Imaging.MaxBytes = 15 << 20
	}
	if cfg.Imaging.MaxPixelEdge == 0 {
		cfg.Imaging.MaxPixelEdge = 8192
	}
	if cfg.Imaging.GridRows == 0 {
		cfg.Imaging.GridRows = 4
	}
	if cfg.Imaging.GridCols == 0 {
		cfg.Imaging.GridCols = 4
	}
	if cfg.Imaging.ThumbnailEdge == 0 {
		cfg.Imaging.ThumbnailEdge = 320
	}
	if cfg.Imaging.ThumbnailQuality == 0 {
		cfg.Imaging.ThumbnailQuality = 60
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "patch"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 512
	}
	if cfg.Embedding.TimeoutSeconds == 0 {
		cfg.Embedding.TimeoutSeconds = 15
	}
	if cfg.Embedding.CacheTTLSeconds == 0 {
		cfg.Embedding.CacheTTLSeconds = 3600
	}
	if cfg.Embedding.RequestsPerSecond == 0 {
		cfg.Embedding.RequestsPerSecond = 5
	}
	if cfg.Manipulation.ELAQuality == 0 {
		cfg.Manipulation.ELAQuality = 90
	}
	if cfg.Manipulation.ELAScale == 0 {
		cfg.Manipulation.ELAScale = 0.12
	}
	if cfg.Manipulation.ELAWeight == 0 && cfg.Manipulation.ClassifierWeight == 0 {
		cfg.Manipulation.ELAWeight = 0.4
		cfg.Manipulation.ClassifierWeight = 0.6
	}
	if cfg.Manipulation.Threshold == 0 {
		cfg.Manipulation.Threshold = 0.6
	}
	if cfg.Manipulation.TimeoutSeconds == 0 {
		cfg.Manipulation.TimeoutSeconds = 10
	}
	if cfg.Semantic.Provider == "" {
		cfg.Semantic.Provider = "openai"
	}
	if cfg.Semantic.Model == "" {
		cfg.Semantic.Model = "gpt-4o"
	}
	if cfg.Semantic.MaxTokens == 0 {
		cfg.Semantic.MaxTokens = 1000
	}
	if cfg.Semantic.TimeoutSeconds == 0 {
		cfg.Semantic.TimeoutSeconds = 30
	}
	if cfg.Semantic.MaxAttempts == 0 {
		cfg.Semantic.MaxAttempts = 2
	}
	if cfg.Semantic.BackoffMS == 0 {
		cfg.Semantic.BackoffMS = 500
	}
	if cfg.Scoring.PerceptualWeight == 0 && cfg.Scoring.ChunkWeight == 0 && cfg.Scoring.SemanticWeight == 0 {
		cfg.Scoring.PerceptualWeight = 0.25
		cfg.Scoring.ChunkWeight = 0.35
		cfg.Scoring.SemanticWeight = 0.40
	}
	if cfg.Scoring.ManipulationPenalty == 0 {
		cfg.Scoring.ManipulationPenalty = 0.3
	}
	if cfg.Scoring.ManipulationCeiling == 0 {
		cfg.Scoring.ManipulationCeiling = 0.4
	}
	if cfg.Scoring.ApproveThreshold == 0 {
		cfg.Scoring.ApproveThreshold = 0.70
	}
	if cfg.Scoring.RejectThreshold == 0 {
		cfg.Scoring.RejectThreshold = 0.45
	}
	if cfg.Scoring.RecycledThreshold == 0 {
		cfg.Scoring.RecycledThreshold = 0.97
	}
	if cfg.Scoring.SpatialRadiusM == 0 {
		cfg.Scoring.SpatialRadiusM = 50
	}
}
