package model

import "time"

// InquiryStatus is the lifecycle state of an inquiry
type InquiryStatus string

const (
	InquiryActive   InquiryStatus = "active"
	InquiryMerged   InquiryStatus = "merged"
	InquiryArchived InquiryStatus = "archived"
)

// Inquiry is a structured question about a claim
type Inquiry struct {
	ID          string        `json:"id"`
	ClaimID     string        `json:"claim_id,omitempty"`
	ScopeID     string        `json:"scope_id"`
	Category    string        `json:"category"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Embedding   []float32     `json:"-"`
	Status      InquiryStatus `json:"status"`
	MergedInto  string        `json:"merged_into,omitempty"`
	CreatedBy   string        `json:"created_by"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Stance is the direction a position takes on its inquiry
type Stance string

const (
	StanceSupporting Stance = "supporting"
	StanceOpposing   Stance = "opposing"
	StanceNeutral    Stance = "neutral"
)

// Valid reports whether s is a known stance
func (s Stance) Valid() bool {
	switch s {
	case StanceSupporting, StanceOpposing, StanceNeutral:
		return true
	}
	return false
}

// PositionStatus is the evaluation lifecycle of a position
type PositionStatus string

const (
	PositionPending   PositionStatus = "pending_evaluation"
	PositionEvaluated PositionStatus = "evaluated"
	PositionCredible  PositionStatus = "credible"
	PositionWeak      PositionStatus = "weak"
	PositionExcluded  PositionStatus = "excluded"
	PositionFailed    PositionStatus = "evaluation_failed"
)

// positionTransitions lists the forward moves allowed for each status.
// Resetting to pending is only done through manual re-evaluation.
var positionTransitions = map[PositionStatus][]PositionStatus{
	PositionPending:   {PositionEvaluated, PositionFailed},
	PositionEvaluated: {PositionCredible, PositionWeak, PositionExcluded, PositionFailed},
}

// CanTransition reports whether a position may move from one status to another
// without a manual re-evaluation.
func (s PositionStatus) CanTransition(to PositionStatus) bool {
	for _, next := range positionTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status only changes through manual re-evaluation
func (s PositionStatus) Terminal() bool {
	return len(positionTransitions[s]) == 0
}

// Position is a stance submitted against an inquiry
type Position struct {
	ID                 string          `json:"id"`
	InquiryID          string          `json:"inquiry_id"`
	Stance             Stance          `json:"stance"`
	Argument           string          `json:"argument"`
	EvidenceTypeWeight float64         `json:"evidence_type_weight"`
	Status             PositionStatus  `json:"status"`
	Score              float64         `json:"score"`
	ProposedChange     AmendmentChange `json:"-"`
	FailureReason      string          `json:"failure_reason,omitempty"`
	SubmittedBy        string          `json:"submitted_by"`
	CreatedAt          time.Time       `json:"created_at"`
	EvaluatedAt        *time.Time      `json:"evaluated_at,omitempty"`
}
