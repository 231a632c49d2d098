package model

import "time"

// ReputationStats are the raw contribution counters a reputation score is derived from
type ReputationStats struct {
	UserID                 string  `json:"user_id"`
	EvidenceSubmitted      int     `json:"evidence_submitted"`
	EvidenceVerified       int     `json:"evidence_verified"`
	EvidenceRejected       int     `json:"evidence_rejected"`
	AverageConfidence      float64 `json:"average_confidence"`
	VotesCast              int     `json:"votes_cast"`
	VotesDecided           int     `json:"votes_decided"` // Votes on subjects that have an outcome
	VotesAligned           int     `json:"votes_aligned"`
	MethodologyCompletions int     `json:"methodology_completions"`
	ChallengesRaised       int     `json:"challenges_raised"`
	ChallengesResolved     int     `json:"challenges_resolved"`
}

// VoteAlignment is the fraction of decided votes that matched the outcome
func (s ReputationStats) VoteAlignment() float64 {
	if s.VotesDecided == 0 {
		return 0
	}
	return float64(s.VotesAligned) / float64(s.VotesDecided)
}

// UserReputation is a user's composite trust score with its breakdown
type UserReputation struct {
	UserID              string          `json:"user_id"`
	Score               float64         `json:"score"`
	EvidenceQuality     float64         `json:"evidence_quality"`
	VoteAlignment       float64         `json:"vote_alignment"`
	MethodologyBonus    float64         `json:"methodology_bonus"`
	ChallengeResolution float64         `json:"challenge_resolution"`
	Stats               ReputationStats `json:"stats"`
	Signals             []Signal        `json:"signals"`
	ComputedAt          time.Time       `json:"computed_at"`
}
