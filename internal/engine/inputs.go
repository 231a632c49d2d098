package engine

import "github.com/ppiankov/veracity/internal/model"

// EvidenceInput is a new evidence item
type EvidenceInput struct {
	TargetKind model.TargetKind         `validate:"required,oneof=claim position inquiry"`
	TargetID   string                   `validate:"required"`
	Type       model.EvidenceType       `validate:"required,oneof=supporting refuting neutral clarifying"`
	Weight     float64                  `validate:"gte=0"`
	Confidence float64                  `validate:"gte=0,lte=1"`
	Source     string                   `validate:"omitempty,max=2048"`
	Evaluation model.EvidenceEvaluation `validate:"-"`
}

// VoteInput is one consensus vote
type VoteInput struct {
	SubjectType model.SubjectType `validate:"required,oneof=graph_promotion challenge curator_application"`
	SubjectID   string            `validate:"required"`
	Value       float64           `validate:"gte=0,lte=1"`
}

// ChallengeInput disputes a claim
type ChallengeInput struct {
	ClaimID string `validate:"required"`
	Reason  string `validate:"required,min=3,max=4000"`
}

// CuratorApplicationInput asks to join the curators
type CuratorApplicationInput struct {
	Statement string `validate:"required,min=20,max=4000"`
}

// MethodologyStepInput defines one methodology step of a graph
type MethodologyStepInput struct {
	GraphID  string `validate:"required"`
	StepID   string `validate:"required,max=128"`
	Title    string `validate:"required,max=512"`
	Required bool
}

// AmendmentInput proposes a change to a claim
type AmendmentInput struct {
	ClaimID     string                `validate:"required"`
	InquiryID   string                `validate:"omitempty"`
	PositionID  string                `validate:"omitempty"`
	Change      model.AmendmentChange `validate:"required"`
	Explanation string                `validate:"max=4000"`
}

// InquiryInput creates an inquiry. Justification is required when the inquiry duplicates an existing one.
type InquiryInput struct {
	ClaimID       string `validate:"omitempty"`
	ScopeID       string `validate:"required"`
	Category      string `validate:"omitempty,max=64"`
	Title         string `validate:"required,max=512"`
	Description   string `validate:"max=20000"`
	Justification string
}

// PositionInput submits a position on an inquiry
type PositionInput struct {
	InquiryID          string                `validate:"required"`
	Stance             model.Stance          `validate:"required,oneof=supporting opposing neutral"`
	Argument           string                `validate:"required,max=20000"`
	EvidenceTypeWeight float64               `validate:"gte=0,lte=1"`
	ProposedChange     model.AmendmentChange `validate:"-"`
}
