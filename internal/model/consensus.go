package model

import "time"

// SubjectType identifies what a consensus vote is about
type SubjectType string

const (
	SubjectGraphPromotion     SubjectType = "graph_promotion"
	SubjectChallenge          SubjectType = "challenge"
	SubjectCuratorApplication SubjectType = "curator_application"
)

// Valid reports whether t is a known subject type
func (t SubjectType) Valid() bool {
	switch t {
	case SubjectGraphPromotion, SubjectChallenge, SubjectCuratorApplication:
		return true
	}
	return false
}

// ConsensusVote is one voter's opinion on one subject. (SubjectType, SubjectID, VoterID) is unique;
// a second vote replaces the first.
type ConsensusVote struct {
	SubjectType SubjectType `json:"subject_type"`
	SubjectID   string      `json:"subject_id"`
	VoterID     string      `json:"voter_id"`
	Value       float64     `json:"value"`
	Reputation  float64     `json:"reputation"` // Snapshot at vote time
	Weight      float64     `json:"weight"`     // max(reputation, minimum voter weight)
	CastAt      time.Time   `json:"cast_at"`
}

// SubjectOutcome is the decided result of a voted subject (1 = accepted, 0 = rejected)
type SubjectOutcome struct {
	SubjectType SubjectType `json:"subject_type"`
	SubjectID   string      `json:"subject_id"`
	Outcome     float64     `json:"outcome"`
	DecidedAt   time.Time   `json:"decided_at"`
}

// ApplicationStatus is the state of a curator application
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// CuratorApplication is a user's request to join the curators, decided by consensus
type CuratorApplication struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Statement string            `json:"statement"`
	Status    ApplicationStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	DecidedAt *time.Time        `json:"decided_at,omitempty"`
}
