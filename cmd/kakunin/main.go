// Package main is the Kakunin CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kakunin/internal/config"
	"github.com/hyperjump/kakunin/internal/embedding"
	"github.com/hyperjump/kakunin/internal/manipulation"
	"github.com/hyperjump/kakunin/internal/models"
	"github.com/hyperjump/kakunin/internal/pipeline"
	"github.com/hyperjump/kakunin/internal/semantic"
	"github.com/hyperjump/kakunin/internal/server"
	"github.com/hyperjump/kakunin/internal/storage"
	"github.com/hyperjump/kakunin/internal/vector"
	"github.com/hyperjump/kakunin/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kakunin/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used instead.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "verify":
		runVerify()
	case "version", "--version", "-v":
		fmt.Printf("kakunin version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`Usage: kakunin <command> [flags]

Commands:
  server    Start the verification HTTP server
  verify    Run a single verification from the command line
  version   Print version
  help      Print this help

Use "kakunin <command> -h" for command flags.
`)
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	srv := server.NewServer(components.Pipeline, components.Storage, components.VectorIndex, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if cfg.Storage.VectorIndexPath != "" {
		if err := components.VectorIndex.Save(cfg.Storage.VectorIndexPath); err != nil {
			logger.Warn("vector index save failed",
				zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(err))
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// runVerify ingests a before/after pair from local files and prints the
// verification result, without going through the HTTP surface.
func runVerify() {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	beforePath := fs.String("before", "", "path to the complaint (before) image")
	afterPath := fs.String("after", "", "path to the proof (after) image")
	description := fs.String("description", "", "complaint description")
	lat := fs.Float64("lat", 0, "capture latitude for both images")
	lon := fs.Float64("lon", 0, "capture longitude for both images")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	if *beforePath == "" || *afterPath == "" {
		fmt.Println("both -before and -after image paths are required")
		fs.PrintDefaults()
		os.Exit(1)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || *debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	beforeBytes, err := os.ReadFile(*beforePath)
	if err != nil {
		logger.Fatal("Failed to read before image", zap.Error(err))
	}
	afterBytes, err := os.ReadFile(*afterPath)
	if err != nil {
		logger.Fatal("Failed to read after image", zap.Error(err))
	}

	ctx := context.Background()
	complaint, err := components.Pipeline.IngestComplaint(ctx, beforeBytes, *description, *lat, *lon, nil)
	if err != nil {
		logger.Fatal("Complaint ingest failed", zap.Error(err))
	}
	proof, err := components.Pipeline.IngestProof(ctx, afterBytes, complaint.ID, *lat, *lon)
	if err != nil {
		logger.Fatal("Proof ingest failed", zap.Error(err))
	}
	result, err := components.Pipeline.Verify(ctx, complaint.ID, proof.ID)
	if err != nil {
		logger.Fatal("Verification failed", zap.Error(err))
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logger.Fatal("Failed to render result", zap.Error(err))
	}
	fmt.Println(string(out))
}

// Components holds the wired application components for clean shutdown.
type Components struct {
	Storage     storage.Storage
	Media       *storage.MediaStore
	Embedder    embedding.Embedder
	VectorIndex vector.Index
	Pipeline    *pipeline.Pipeline
	logger      *zap.Logger
}

// Close releases component resources.
func (c *Components) Close() {
	if err := c.Pipeline.Close(); err != nil {
		c.logger.Warn("pipeline close failed", zap.Error(err))
	}
	if err := c.Storage.Close(); err != nil {
		c.logger.Warn("storage close failed", zap.Error(err))
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	media, err := storage.NewMediaStore(cfg.Storage.MediaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize media store: %w", err)
	}

	embedder, err := newEmbedder(cfg, logger)
	if err != nil {
		return nil, err
	}

	index, err := vector.NewMemoryIndex(cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	if cfg.Storage.VectorIndexPath != "" {
		if loadErr := index.Load(cfg.Storage.VectorIndexPath); loadErr != nil {
			logger.Warn("vector index load skipped",
				zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(loadErr))
		}
	}

	detector := manipulation.NewDetector(&cfg.Manipulation, newClassifier(cfg, logger), logger)
	judge, err := newJudge(cfg, logger)
	if err != nil {
		return nil, err
	}

	p := pipeline.New(cfg, embedder, detector, judge, store, media, index, logger)
	return &Components{
		Storage:     store,
		Media:       media,
		Embedder:    embedder,
		VectorIndex: index,
		Pipeline:    p,
		logger:      logger,
	}, nil
}

func newEmbedder(cfg *config.Config, logger *zap.Logger) (embedding.Embedder, error) {
	var inner embedding.Embedder
	switch cfg.Embedding.Provider {
	case "openai":
		e, err := embedding.NewOpenAIEmbedder(&cfg.Embedding)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai embedder: %w", err)
		}
		inner = e
	case "mock":
		inner = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	default:
		inner = embedding.NewPatchEmbedder(cfg.Embedding.Dimensions)
	}
	logger.Info("embedder initialized", zap.String("model", inner.ModelVersion()))
	ttl := time.Duration(cfg.Embedding.CacheTTLSeconds) * time.Second
	return embedding.NewCachedEmbedder(inner, ttl), nil
}

// newClassifier returns nil when no model is configured or the runtime is
// unavailable; the detector then runs in ELA-only degraded mode.
func newClassifier(cfg *config.Config, logger *zap.Logger) manipulation.Classifier {
	if cfg.Manipulation.ModelPath == "" {
		logger.Info("no manipulation model configured, ELA-only detection")
		return nil
	}
	classifier, err := manipulation.NewONNXClassifier(cfg.Manipulation.ModelPath)
	if err != nil {
		logger.Warn("manipulation classifier unavailable, ELA-only detection",
			zap.String("model_path", cfg.Manipulation.ModelPath), zap.Error(err))
		return nil
	}
	return classifier
}

func newJudge(cfg *config.Config, logger *zap.Logger) (semantic.Judge, error) {
	if cfg.Semantic.Provider == "mock" || cfg.Semantic.APIKey == "" {
		logger.Warn("semantic judge disabled, every pair will need human review")
		return &semantic.MockJudge{Judgment: models.SemanticJudgment{
			Outcome:   models.JudgmentAmbiguous,
			Rationale: "semantic judge disabled",
		}}, nil
	}
	judge, err := semantic.NewOpenAIJudge(&cfg.Semantic, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize semantic judge: %w", err)
	}
	return judge, nil
}
