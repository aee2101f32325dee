package semantic

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperjump/kakunin/internal/models"
	"github.com/hyperjump/kakunin/pkg/utils"
)

// vlmResponse is the JSON schema the model is instructed to return.
type vlmResponse struct {
	Outcome    string  `json:"outcome"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// ParseJudgment validates raw model output against the expected schema.
// Model responses wrapped in markdown code fences are unwrapped first.
// Returns an error for unparseable output or an outcome outside the
// enumeration; FAILED is not accepted from the model, it is reserved for
// transport-level failure.
func ParseJudgment(raw string) (*models.SemanticJudgment, error) {
	cleaned := stripCodeFences(strings.TrimSpace(raw))

	var resp vlmResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return nil, fmt.Errorf("parse judgment: %w", err)
	}

	outcome := models.JudgmentOutcome(strings.ToUpper(strings.TrimSpace(resp.Outcome)))
	switch outcome {
	case models.JudgmentResolved, models.JudgmentNotResolved, models.JudgmentAmbiguous:
	default:
		return nil, fmt.Errorf("parse judgment: unexpected outcome %q", resp.Outcome)
	}

	return &models.SemanticJudgment{
		Outcome:    outcome,
		Confidence: utils.Clamp01(resp.Confidence),
		Rationale:  strings.TrimSpace(resp.Rationale),
	}, nil
}

// stripCodeFences removes a surrounding ```json ... ``` block if present.
func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 0 && strings.HasPrefix(lines[0], "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
