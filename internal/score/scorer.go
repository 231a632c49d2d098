package score

import (
	"fmt"
	"math"
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

// Scorer computes credibility and reputation and explains each result with signals.
// All methods are pure: the same inputs always give the same result.
type Scorer struct {
	cfg model.ScoringConfig
}

// NewScorer creates a new scorer
func NewScorer(cfg model.ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// CredibilityResult is the credibility score of a claim with its breakdown
type CredibilityResult struct {
	Score            float64        `json:"score"`
	Confidence       float64        `json:"confidence"`
	SupportingWeight float64        `json:"supporting_weight"`
	RefutingWeight   float64        `json:"refuting_weight"`
	ChallengeImpact  float64        `json:"challenge_impact"`
	EvidenceCount    int            `json:"evidence_count"`
	Signals          []model.Signal `json:"signals"`
}

// Credibility scores a claim from its evidence and its open challenges
func (s *Scorer) Credibility(claim model.Claim, evidence []model.EvidenceItem, openChallenges int, now time.Time) CredibilityResult {
	if claim.IsImmutable() {
		return CredibilityResult{
			Score:         1.0,
			Confidence:    1.0,
			EvidenceCount: len(evidence),
			Signals: []model.Signal{{
				Type:        model.SignalImmutablePin,
				Severity:    model.SeverityInfo,
				Description: "Claim is verified (level 0); credibility pinned",
				Data:        map[string]interface{}{"level": int(claim.Level), "score": 1.0},
			}},
		}
	}

	var supporting, refuting, decaySum float64
	decayed := 0
	for _, e := range evidence {
		d := s.decay(e.CreatedAt, now)
		decaySum += d
		if d < 1 {
			decayed++
		}
		w := math.Max(e.Weight, 0) * clamp(e.Confidence) * d
		switch e.Type {
		case model.EvidenceSupporting:
			supporting += w
		case model.EvidenceRefuting:
			refuting += w
		}
	}

	var signals []model.Signal

	raw := s.cfg.NeutralScore
	if supporting+refuting > 0 {
		raw = supporting / (supporting + refuting)
	}
	signals = append(signals, s.balanceSignal(supporting, refuting, raw))

	confidence := math.Min(float64(len(evidence))*s.cfg.ConfidencePerItem, s.cfg.MaxConfidence)
	signals = append(signals, s.volumeSignal(len(evidence), confidence))

	if s.cfg.DecayHalfLife > 0 && len(evidence) > 0 {
		signals = append(signals, model.Signal{
			Type:        model.SignalTemporalDecay,
			Severity:    model.SeverityInfo,
			Description: fmt.Sprintf("%d of %d items discounted for age", decayed, len(evidence)),
			Data: map[string]interface{}{
				"half_life_days": s.cfg.DecayHalfLife.Hours() / 24,
				"mean_factor":    decaySum / float64(len(evidence)),
				"formula":        "0.5 ^ (age / half_life)",
			},
		})
	}

	impact := math.Min(float64(max(openChallenges, 0))*s.cfg.ChallengePenalty, s.cfg.MaxChallengePenalty)
	if openChallenges > 0 {
		signals = append(signals, model.Signal{
			Type:        model.SignalChallengePenalty,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("%d open challenge(s) reduce the score by %.2f", openChallenges, impact),
			Data: map[string]interface{}{
				"open_challenges": openChallenges,
				"impact":          impact,
				"formula":         fmt.Sprintf("min(open * %.2f, %.2f)", s.cfg.ChallengePenalty, s.cfg.MaxChallengePenalty),
			},
		})
	}

	return CredibilityResult{
		Score:            clamp(raw - impact),
		Confidence:       clamp(confidence),
		SupportingWeight: supporting,
		RefutingWeight:   refuting,
		ChallengeImpact:  impact,
		EvidenceCount:    len(evidence),
		Signals:          signals,
	}
}

// decay returns the age discount of an item; future-dated items count as fresh
func (s *Scorer) decay(created, now time.Time) float64 {
	if s.cfg.DecayHalfLife <= 0 {
		return 1
	}
	age := now.Sub(created)
	if age <= 0 {
		return 1
	}
	return math.Pow(0.5, float64(age)/float64(s.cfg.DecayHalfLife))
}

func (s *Scorer) balanceSignal(supporting, refuting, raw float64) model.Signal {
	if supporting+refuting == 0 {
		return model.Signal{
			Type:        model.SignalEvidenceBalance,
			Severity:    model.SeverityWarning,
			Description: "No supporting or refuting evidence (neutral default)",
			Data:        map[string]interface{}{"raw": raw, "neutral": s.cfg.NeutralScore},
		}
	}

	severity := model.SeverityInfo
	if raw < 0.3 {
		severity = model.SeverityCritical
	} else if raw < 0.5 {
		severity = model.SeverityWarning
	}
	return model.Signal{
		Type:        model.SignalEvidenceBalance,
		Severity:    severity,
		Description: fmt.Sprintf("Supporting %.2f vs refuting %.2f", supporting, refuting),
		Data: map[string]interface{}{
			"supporting_weight": supporting,
			"refuting_weight":   refuting,
			"raw":               raw,
			"formula":           "S / (S + R), effective weight = weight * confidence * decay",
		},
	}
}

func (s *Scorer) volumeSignal(count int, confidence float64) model.Signal {
	severity := model.SeverityInfo
	if count < 3 {
		severity = model.SeverityWarning
	}
	return model.Signal{
		Type:        model.SignalEvidenceVolume,
		Severity:    severity,
		Description: fmt.Sprintf("%d evidence item(s), confidence %.2f", count, confidence),
		Data: map[string]interface{}{
			"evidence":   count,
			"confidence": confidence,
			"formula":    fmt.Sprintf("min(count * %.2f, %.2f)", s.cfg.ConfidencePerItem, s.cfg.MaxConfidence),
		},
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
