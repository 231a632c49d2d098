package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// EvidenceType classifies the stance of an evidence item toward its target
type EvidenceType string

const (
	EvidenceSupporting EvidenceType = "supporting"
	EvidenceRefuting   EvidenceType = "refuting"
	EvidenceNeutral    EvidenceType = "neutral"
	EvidenceClarifying EvidenceType = "clarifying"
)

// Valid reports whether t is one of the known evidence types
func (t EvidenceType) Valid() bool {
	switch t {
	case EvidenceSupporting, EvidenceRefuting, EvidenceNeutral, EvidenceClarifying:
		return true
	}
	return false
}

// TargetKind identifies what an evidence item is attached to
type TargetKind string

const (
	TargetClaim    TargetKind = "claim"
	TargetPosition TargetKind = "position"
	TargetInquiry  TargetKind = "inquiry"
)

// EvidenceItem links a claim (or position) to supporting or refuting material.
// Items are append-only: they are never updated, only superseded by newer items.
type EvidenceItem struct {
	ID          string             `json:"id"`
	TargetKind  TargetKind         `json:"target_kind"`
	TargetID    string             `json:"target_id"`
	Type        EvidenceType       `json:"type"`
	Weight      float64            `json:"weight"`
	Confidence  float64            `json:"confidence"`
	Source      string             `json:"source,omitempty"`
	Evaluation  EvidenceEvaluation `json:"-"`
	SubmittedBy string             `json:"submitted_by"`
	CreatedAt   time.Time          `json:"created_at"`
}

// EvidenceEvaluation is the reviewer assessment attached to an evidence item.
// Concrete variants: SourceCheck, ExpertReview, Replication.
type EvidenceEvaluation interface {
	EvaluationKind() string
	isEvidenceEvaluation()
}

// SourceCheck records whether the cited source could be verified
type SourceCheck struct {
	SourceURL string `json:"source_url"`
	Reachable bool   `json:"reachable"`
	Primary   bool   `json:"primary"`
}

// ExpertReview records a domain expert's rating of the item
type ExpertReview struct {
	ReviewerID string  `json:"reviewer_id"`
	Rating     float64 `json:"rating"`
	Notes      string  `json:"notes,omitempty"`
}

// Replication records independent reproduction attempts
type Replication struct {
	Attempts  int `json:"attempts"`
	Successes int `json:"successes"`
}

func (SourceCheck) EvaluationKind() string  { return "source_check" }
func (ExpertReview) EvaluationKind() string { return "expert_review" }
func (Replication) EvaluationKind() string  { return "replication" }

func (SourceCheck) isEvidenceEvaluation()  {}
func (ExpertReview) isEvidenceEvaluation() {}
func (Replication) isEvidenceEvaluation()  {}

type taggedPayload struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalEvaluation encodes an evaluation with its kind discriminator. A nil evaluation encodes to nil.
func MarshalEvaluation(e EvidenceEvaluation) ([]byte, error) {
	if e == nil {
		return nil, nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal evaluation: %w", err)
	}
	return json.Marshal(taggedPayload{Kind: e.EvaluationKind(), Data: data})
}

// UnmarshalEvaluation decodes a payload produced by MarshalEvaluation
func UnmarshalEvaluation(raw []byte) (EvidenceEvaluation, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var tagged taggedPayload
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return nil, fmt.Errorf("unmarshal evaluation: %w", err)
	}
	switch tagged.Kind {
	case "source_check":
		var v SourceCheck
		if err := json.Unmarshal(tagged.Data, &v); err != nil {
			return nil, fmt.Errorf("unmarshal source check: %w", err)
		}
		return v, nil
	case "expert_review":
		var v ExpertReview
		if err := json.Unmarshal(tagged.Data, &v); err != nil {
			return nil, fmt.Errorf("unmarshal expert review: %w", err)
		}
		return v, nil
	case "replication":
		var v Replication
		if err := json.Unmarshal(tagged.Data, &v); err != nil {
			return nil, fmt.Errorf("unmarshal replication: %w", err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown evaluation kind %q", tagged.Kind)
	}
}

// ChallengeStatus tracks a challenge from raise to resolution
type ChallengeStatus string

const (
	ChallengeOpen      ChallengeStatus = "open"
	ChallengeUpheld    ChallengeStatus = "upheld"    // Resolved: the challenge was valid
	ChallengeDismissed ChallengeStatus = "dismissed" // Resolved: the challenge was rejected
)

// Challenge disputes a claim; open challenges penalise its credibility
type Challenge struct {
	ID         string          `json:"id"`
	ClaimID    string          `json:"claim_id"`
	RaisedBy   string          `json:"raised_by"`
	Reason     string          `json:"reason"`
	Status     ChallengeStatus `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	ResolvedAt *time.Time      `json:"resolved_at,omitempty"`
}
