package models

// ManipulationStatus describes how trustworthy a manipulation verdict is.
type ManipulationStatus string

const (
	// ManipulationOK means both ELA and the classifier contributed.
	ManipulationOK ManipulationStatus = "ok"
	// ManipulationDegraded means the classifier was unavailable and the
	// verdict is ELA-only (reduced confidence).
	ManipulationDegraded ManipulationStatus = "degraded"
	// ManipulationUnknown means no signal could be computed. Never treated
	// as "not manipulated"; forces human review downstream.
	ManipulationUnknown ManipulationStatus = "unknown"
)

// ManipulationVerdict is the single-image tamper analysis result. Immutable.
type ManipulationVerdict struct {
	Likelihood      float64            `json:"manipulation_likelihood"`
	Manipulated     bool               `json:"is_manipulated"`
	ELAEnergy       float64            `json:"ela_energy"`
	ELAPeak         float64            `json:"ela_peak"`
	ClassifierScore float64            `json:"classifier_score"`
	Status          ManipulationStatus `json:"status"`
}

// JudgmentOutcome is the enumerated semantic verdict for a before/after pair.
type JudgmentOutcome string

const (
	JudgmentResolved    JudgmentOutcome = "RESOLVED"
	JudgmentNotResolved JudgmentOutcome = "NOT_RESOLVED"
	JudgmentAmbiguous   JudgmentOutcome = "AMBIGUOUS"
	// JudgmentFailed means the vision-language service was unreachable or
	// timed out, distinct from the model being genuinely unsure.
	JudgmentFailed JudgmentOutcome = "FAILED"
)

// SemanticJudgment is the structured output of the vision-language judge.
// Produced once per before/after pair per run; never cached across runs.
type SemanticJudgment struct {
	Outcome    JudgmentOutcome `json:"outcome"`
	Confidence float64         `json:"confidence"`
	Rationale  string          `json:"rationale"`
}
