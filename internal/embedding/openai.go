package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/hyperjump/kakunin/internal/config"
	"github.com/hyperjump/kakunin/pkg/utils"
)

const remoteJPEGQuality = 85

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint with the
// base64-encoded JPEG of the image. Intended for CLIP-style services that
// expose the OpenAI embeddings API shape; set base_url accordingly.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	timeout    time.Duration
	limiter    *rate.Limiter
}

// NewOpenAIEmbedder creates a remote embedder from config. API key is required.
func NewOpenAIEmbedder(cfg *config.EmbeddingConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding api key is required")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}, nil
}

// Embed sends the image to the remote capability and returns its
// unit-normalized vector. Deadline overruns map to ErrTimeout, all other
// transport failures to ErrUnavailable.
func (e *OpenAIEmbedder) Embed(ctx context.Context, key string, img image.Image) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: remoteJPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode image for embedding: %w", err)
	}
	payload := base64.StdEncoding.EncodeToString(buf.Bytes())

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(callCtx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{payload},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", ErrUnavailable)
	}

	vec := resp.Data[0].Embedding
	if len(vec) != e.dimensions {
		return nil, fmt.Errorf("%w: capability returned %d dimensions, expected %d",
			ErrDimensionMismatch, len(vec), e.dimensions)
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

// Dimensions returns the declared vector length.
func (e *OpenAIEmbedder) Dimensions() int { return e.dimensions }

// ModelVersion identifies the remote model for cache keying.
func (e *OpenAIEmbedder) ModelVersion() string { return "openai:" + e.model }

// Close is a no-op; the HTTP client holds no resources needing release.
func (e *OpenAIEmbedder) Close() error { return nil }
