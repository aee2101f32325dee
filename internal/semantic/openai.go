package semantic

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/hyperjump/kakunin/internal/config"
	"github.com/hyperjump/kakunin/internal/models"
)

const systemPrompt = "You are an expert verification agent. You compare a BEFORE " +
	"image documenting a complaint with an AFTER image submitted as proof of " +
	"resolution. Return ONLY valid JSON without any markdown formatting or code blocks."

// OpenAIJudge calls an OpenAI-compatible vision chat endpoint with both
// images and the complaint text, requesting structured JSON output.
type OpenAIJudge struct {
	client      *openai.Client
	model       string
	maxTokens   int
	timeout     time.Duration
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger
}

// NewOpenAIJudge creates a judge from config. API key is required.
func NewOpenAIJudge(cfg *config.SemanticConfig, logger *zap.Logger) (*OpenAIJudge, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("semantic api key is required")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &OpenAIJudge{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
		maxAttempts: cfg.MaxAttempts,
		backoff:     time.Duration(cfg.BackoffMS) * time.Millisecond,
		logger:      logger,
	}, nil
}

// Judge sends the pair to the vision model. Bounded retry with exponential
// backoff on transport failure; after the last attempt the judgment is
// FAILED. A response that cannot be validated yields AMBIGUOUS with
// confidence 0 and is not retried (the call itself succeeded).
func (j *OpenAIJudge) Judge(ctx context.Context, req Request) (*models.SemanticJudgment, error) {
	messages := j.buildMessages(req)

	var lastErr error
	backoff := j.backoff
	for attempt := 1; attempt <= j.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return failedJudgment(ctx.Err()), nil
			}
			backoff *= 2
		}

		callCtx, cancel := context.WithTimeout(ctx, j.timeout)
		resp, err := j.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model:       j.model,
			Messages:    messages,
			MaxTokens:   j.maxTokens,
			Temperature: 0.2,
		})
		cancel()
		if err != nil {
			lastErr = err
			j.logger.Warn("vlm call failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", j.maxAttempts),
				zap.Error(err),
			)
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("empty completion response")
			continue
		}

		judgment, parseErr := ParseJudgment(resp.Choices[0].Message.Content)
		if parseErr != nil {
			j.logger.Warn("vlm returned malformed judgment", zap.Error(parseErr))
			return &models.SemanticJudgment{
				Outcome:    models.JudgmentAmbiguous,
				Confidence: 0,
				Rationale:  fmt.Sprintf("model response failed validation: %v", parseErr),
			}, nil
		}
		return judgment, nil
	}

	return failedJudgment(lastErr), nil
}

func failedJudgment(err error) *models.SemanticJudgment {
	return &models.SemanticJudgment{
		Outcome:    models.JudgmentFailed,
		Confidence: 0,
		Rationale:  fmt.Sprintf("vision-language service unreachable: %v", err),
	}
}

func (j *OpenAIJudge) buildMessages(req Request) []openai.ChatCompletionMessage {
	prompt := fmt.Sprintf(`TASK:
Compare the BEFORE image (first) with the AFTER image (second) and decide
whether the complaint described below is plausibly resolved in the AFTER image.

Complaint: %s

Return STRICT JSON (no markdown, no code blocks, just raw JSON):
{
  "outcome": "RESOLVED"|"NOT_RESOLVED"|"AMBIGUOUS",
  "confidence": float (0-1),
  "rationale": "short reasoning referencing visible cues (max 60 words)"
}`, req.ComplaintText)

	return []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		},
		{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: prompt},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(req.BeforeJPEG),
					},
				},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(req.AfterJPEG),
					},
				},
			},
		},
	}
}
