package score

import (
	"fmt"

	"github.com/ppiankov/veracity/internal/model"
)

// Reputation component weights
const (
	evidenceQualityWeight     = 0.4
	voteAlignmentWeight       = 0.3
	methodologyBonus          = 0.2
	challengeResolutionWeight = 0.1
)

// EvidenceVerdict is the derived outcome of an evidence item
type EvidenceVerdict int

const (
	VerdictUndecided EvidenceVerdict = iota
	VerdictVerified
	VerdictRejected
)

// AttributedEvidence is an evidence item together with the current state of its target claim
type AttributedEvidence struct {
	Item             model.EvidenceItem
	ClaimCredibility float64
	ClaimImmutable   bool
}

// Verdict derives whether an evidence item turned out right. The ledger is append-only,
// so the verdict follows the target claim: supporting items are verified once the claim is
// credible or immutable and rejected once it is discredited; refuting items mirror that.
func (s *Scorer) Verdict(e AttributedEvidence) EvidenceVerdict {
	held := e.ClaimImmutable || e.ClaimCredibility >= s.cfg.VerifiedEvidenceMin
	failed := !e.ClaimImmutable && e.ClaimCredibility <= s.cfg.RejectedEvidenceMax

	switch e.Item.Type {
	case model.EvidenceSupporting:
		if held {
			return VerdictVerified
		}
		if failed {
			return VerdictRejected
		}
	case model.EvidenceRefuting:
		if failed {
			return VerdictVerified
		}
		if held {
			return VerdictRejected
		}
	}
	return VerdictUndecided
}

// EvidenceStats fills the evidence counters of stats from a user's attributed evidence
func (s *Scorer) EvidenceStats(stats model.ReputationStats, items []AttributedEvidence) model.ReputationStats {
	stats.EvidenceSubmitted = len(items)
	stats.EvidenceVerified = 0
	stats.EvidenceRejected = 0
	stats.AverageConfidence = 0

	var confSum float64
	for _, it := range items {
		confSum += clamp(it.Item.Confidence)
		switch s.Verdict(it) {
		case VerdictVerified:
			stats.EvidenceVerified++
		case VerdictRejected:
			stats.EvidenceRejected++
		}
	}
	if len(items) > 0 {
		stats.AverageConfidence = confSum / float64(len(items))
	}
	return stats
}

// Reputation computes a user's composite score from their contribution counters
func (s *Scorer) Reputation(stats model.ReputationStats) model.UserReputation {
	var eq float64
	decided := stats.EvidenceVerified + stats.EvidenceRejected
	if decided > 0 {
		eq = clamp(float64(stats.EvidenceVerified) / float64(decided) * clamp(stats.AverageConfidence))
	}

	va := clamp(stats.VoteAlignment())

	var mb float64
	if stats.MethodologyCompletions > 0 {
		mb = methodologyBonus
	}

	var cr float64
	if stats.ChallengesRaised > 0 {
		cr = clamp(float64(stats.ChallengesResolved) / float64(stats.ChallengesRaised))
	}

	total := clamp(evidenceQualityWeight*eq + voteAlignmentWeight*va + mb + challengeResolutionWeight*cr)

	return model.UserReputation{
		UserID:              stats.UserID,
		Score:               total,
		EvidenceQuality:     eq,
		VoteAlignment:       va,
		MethodologyBonus:    mb,
		ChallengeResolution: cr,
		Stats:               stats,
		Signals: []model.Signal{
			{
				Type:        model.SignalEvidenceQuality,
				Severity:    qualitySeverity(eq, decided),
				Description: fmt.Sprintf("%d verified, %d rejected of %d submitted", stats.EvidenceVerified, stats.EvidenceRejected, stats.EvidenceSubmitted),
				Data: map[string]interface{}{
					"verified":           stats.EvidenceVerified,
					"rejected":           stats.EvidenceRejected,
					"average_confidence": stats.AverageConfidence,
					"score":              eq,
					"formula":            "verified / (verified + rejected) * average_confidence",
				},
			},
			{
				Type:        model.SignalVoteAlignment,
				Severity:    model.SeverityInfo,
				Description: fmt.Sprintf("%d of %d decided votes matched the outcome", stats.VotesAligned, stats.VotesDecided),
				Data: map[string]interface{}{
					"cast":    stats.VotesCast,
					"decided": stats.VotesDecided,
					"aligned": stats.VotesAligned,
					"score":   va,
					"formula": "aligned / decided",
				},
			},
			{
				Type:        model.SignalMethodology,
				Severity:    model.SeverityInfo,
				Description: fmt.Sprintf("%d methodology step(s) completed", stats.MethodologyCompletions),
				Data: map[string]interface{}{
					"completions": stats.MethodologyCompletions,
					"bonus":       mb,
				},
			},
			{
				Type:        model.SignalChallengeResolution,
				Severity:    model.SeverityInfo,
				Description: fmt.Sprintf("%d of %d raised challenges resolved", stats.ChallengesResolved, stats.ChallengesRaised),
				Data: map[string]interface{}{
					"raised":   stats.ChallengesRaised,
					"resolved": stats.ChallengesResolved,
					"score":    cr,
					"formula":  "resolved / raised",
				},
			},
		},
	}
}

func qualitySeverity(eq float64, decided int) model.SignalSeverity {
	if decided == 0 {
		return model.SeverityInfo
	}
	if eq < 0.3 {
		return model.SeverityWarning
	}
	return model.SeverityInfo
}
