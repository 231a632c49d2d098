package score

import (
	"fmt"
	"math"
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

// PromotionInputs are the facts the promotion gate is computed from
type PromotionInputs struct {
	GraphID                string
	RequiredSteps          int
	CompletedRequiredSteps int
	Consensus              ConsensusResult
	EvidenceConfidences    []float64 // Every evidence item on every member claim
	OpenChallenges         int
}

// EvaluatePromotion computes the minimum-of-four gate. It has no side effects.
func EvaluatePromotion(in PromotionInputs, threshold float64, now time.Time) model.PromotionEligibility {
	el := model.PromotionEligibility{
		GraphID:     in.GraphID,
		Threshold:   threshold,
		EvaluatedAt: now,
	}

	// Methodology
	el.MethodologyScore = 1.0
	if in.RequiredSteps > 0 {
		el.MethodologyScore = clamp(float64(in.CompletedRequiredSteps) / float64(in.RequiredSteps))
	}
	el.Signals = append(el.Signals, model.Signal{
		Type:        model.SignalMethodology,
		Severity:    severityFor(el.MethodologyScore, threshold),
		Description: fmt.Sprintf("%d/%d required steps completed", in.CompletedRequiredSteps, in.RequiredSteps),
		Data: map[string]interface{}{
			"required":  in.RequiredSteps,
			"completed": in.CompletedRequiredSteps,
			"score":     el.MethodologyScore,
			"formula":   "completed_required / required (1.0 when none required)",
		},
	})
	if el.MethodologyScore < threshold {
		el.Missing = append(el.Missing, fmt.Sprintf("methodology: %d of %d required steps completed", in.CompletedRequiredSteps, in.RequiredSteps))
	}

	// Consensus
	if in.Consensus.HasSufficientVotes {
		el.ConsensusScore = in.Consensus.WeightedScore
	}
	el.Signals = append(el.Signals, in.Consensus.Signal())
	switch {
	case !in.Consensus.HasSufficientVotes:
		el.Missing = append(el.Missing, fmt.Sprintf("consensus: %d of %d required votes cast", in.Consensus.VoteCount, in.Consensus.MinVotes))
	case el.ConsensusScore < threshold:
		el.Missing = append(el.Missing, fmt.Sprintf("consensus: weighted score %.2f below %.2f", el.ConsensusScore, threshold))
	}

	// Evidence quality
	if len(in.EvidenceConfidences) > 0 {
		var sum float64
		for _, c := range in.EvidenceConfidences {
			sum += clamp(c)
		}
		el.EvidenceQuality = clamp(sum / float64(len(in.EvidenceConfidences)))
	}
	el.Signals = append(el.Signals, model.Signal{
		Type:        model.SignalEvidenceQuality,
		Severity:    severityFor(el.EvidenceQuality, threshold),
		Description: fmt.Sprintf("Mean confidence %.2f over %d item(s)", el.EvidenceQuality, len(in.EvidenceConfidences)),
		Data: map[string]interface{}{
			"items":   len(in.EvidenceConfidences),
			"score":   el.EvidenceQuality,
			"formula": "mean(confidence) over all evidence in the graph",
		},
	})
	if len(in.EvidenceConfidences) == 0 {
		el.Missing = append(el.Missing, "evidence: graph has no evidence")
	} else if el.EvidenceQuality < threshold {
		el.Missing = append(el.Missing, fmt.Sprintf("evidence: mean confidence %.2f below %.2f", el.EvidenceQuality, threshold))
	}

	// Challenges
	if in.OpenChallenges == 0 {
		el.ChallengeResolution = 1.0
	}
	el.Signals = append(el.Signals, model.Signal{
		Type:        model.SignalChallengeResolution,
		Severity:    severityFor(el.ChallengeResolution, threshold),
		Description: fmt.Sprintf("%d open challenge(s)", in.OpenChallenges),
		Data: map[string]interface{}{
			"open":    in.OpenChallenges,
			"score":   el.ChallengeResolution,
			"formula": "1 if no open challenges else 0",
		},
	})
	if in.OpenChallenges > 0 {
		el.Missing = append(el.Missing, fmt.Sprintf("challenges: %d open challenge(s) must be resolved", in.OpenChallenges))
	}

	el.Overall = math.Min(math.Min(el.MethodologyScore, el.ConsensusScore), math.Min(el.EvidenceQuality, el.ChallengeResolution))
	el.IsEligible = el.Overall >= threshold
	el.Signals = append(el.Signals, model.Signal{
		Type:        model.SignalPromotionOverall,
		Severity:    severityFor(el.Overall, threshold),
		Description: fmt.Sprintf("Overall %.2f (threshold %.2f)", el.Overall, threshold),
		Data: map[string]interface{}{
			"overall":   el.Overall,
			"threshold": threshold,
			"eligible":  el.IsEligible,
			"formula":   "min(methodology, consensus, evidence_quality, challenge_resolution)",
		},
	})
	return el
}

func severityFor(v, threshold float64) model.SignalSeverity {
	if v >= threshold {
		return model.SeverityInfo
	}
	if v == 0 {
		return model.SeverityCritical
	}
	return model.SeverityWarning
}
