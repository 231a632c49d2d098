package model

import "time"

// PromotionEligibility is the derived gate breakdown for a claim graph; it is recomputed per request
type PromotionEligibility struct {
	GraphID             string    `json:"graph_id"`
	MethodologyScore    float64   `json:"methodology_score"`
	ConsensusScore      float64   `json:"consensus_score"`
	EvidenceQuality     float64   `json:"evidence_quality"`
	ChallengeResolution float64   `json:"challenge_resolution"`
	Overall             float64   `json:"overall"` // min of the four components
	Threshold           float64   `json:"threshold"`
	IsEligible          bool      `json:"is_eligible"`
	Missing             []string  `json:"missing,omitempty"`
	Signals             []Signal  `json:"signals"`
	EvaluatedAt         time.Time `json:"evaluated_at"`
}

// PromotionEvent is the immutable audit record of a level transition
type PromotionEvent struct {
	ID          string               `json:"id"`
	GraphID     string               `json:"graph_id"`
	FromLevel   Level                `json:"from_level"`
	ToLevel     Level                `json:"to_level"`
	RequestedBy string               `json:"requested_by"`
	Eligibility PromotionEligibility `json:"eligibility"`
	CreatedAt   time.Time            `json:"created_at"`
}

// MethodologyStep is one step of the methodology template applied to a graph
type MethodologyStep struct {
	GraphID     string     `json:"graph_id"`
	StepID      string     `json:"step_id"`
	Title       string     `json:"title"`
	Required    bool       `json:"required"`
	CompletedBy string     `json:"completed_by,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Completed reports whether someone finished the step
func (s MethodologyStep) Completed() bool {
	return s.CompletedAt != nil
}
