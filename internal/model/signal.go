package model

// Signal represents a diagnostic signal with transparent scoring data
type Signal struct {
	Type        SignalType             `json:"type"`           // Signal classification
	Severity    SignalSeverity         `json:"severity"`       // info, warning, critical
	Description string                 `json:"description"`    // Human-readable description
	Data        map[string]interface{} `json:"data,omitempty"` // Transparent scoring data (formulas, inputs)
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalImmutablePin        SignalType = "immutable_pin"        // Score fixed by the verified tier
	SignalEvidenceBalance     SignalType = "evidence_balance"     // Supporting vs refuting weight
	SignalEvidenceVolume      SignalType = "evidence_volume"      // Confidence from evidence count
	SignalTemporalDecay       SignalType = "temporal_decay"       // Age discount on evidence
	SignalChallengePenalty    SignalType = "challenge_penalty"    // Open challenges
	SignalEvidenceQuality     SignalType = "evidence_quality"     // Verified ratio or mean confidence
	SignalVoteAlignment       SignalType = "vote_alignment"       // Votes matching outcomes
	SignalMethodology         SignalType = "methodology"          // Methodology steps
	SignalChallengeResolution SignalType = "challenge_resolution" // Resolved or absent challenges
	SignalConsensus           SignalType = "consensus"            // Weighted vote tally
	SignalPromotionOverall    SignalType = "promotion_overall"    // Minimum of promotion components
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)
