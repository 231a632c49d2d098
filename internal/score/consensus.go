package score

import (
	"fmt"
	"math"

	"github.com/ppiankov/veracity/internal/model"
)

// ConsensusResult is the outcome of a weighted vote tally
type ConsensusResult struct {
	WeightedScore      float64 `json:"weighted_score"`
	UnweightedScore    float64 `json:"unweighted_score"`
	VoteCount          int     `json:"vote_count"`
	TotalWeight        float64 `json:"total_weight"`
	MinVotes           int     `json:"min_votes"`
	Threshold          float64 `json:"threshold"`
	HasSufficientVotes bool    `json:"has_sufficient_votes"`
	ConsensusReached   bool    `json:"consensus_reached"`
}

// VoteWeight floors a voter's reputation so that new voters still count
func VoteWeight(reputation, floor float64) float64 {
	return math.Max(clamp(reputation), floor)
}

// Tally aggregates votes into weighted and unweighted scores.
// Each vote's stored Weight is used when positive, otherwise it is derived from Reputation.
func Tally(votes []model.ConsensusVote, rule model.ConsensusRule, floor float64) ConsensusResult {
	res := ConsensusResult{
		VoteCount: len(votes),
		MinVotes:  rule.MinVotes,
		Threshold: rule.Threshold,
	}
	if len(votes) == 0 {
		return res
	}

	var weighted, plain float64
	for _, v := range votes {
		w := v.Weight
		if w <= 0 {
			w = VoteWeight(v.Reputation, floor)
		}
		value := clamp(v.Value)
		weighted += value * w
		plain += value
		res.TotalWeight += w
	}

	if res.TotalWeight > 0 {
		res.WeightedScore = clamp(weighted / res.TotalWeight)
	}
	res.UnweightedScore = clamp(plain / float64(len(votes)))
	res.HasSufficientVotes = len(votes) >= rule.MinVotes
	res.ConsensusReached = res.HasSufficientVotes && res.WeightedScore >= rule.Threshold
	return res
}

// Signal explains the tally
func (r ConsensusResult) Signal() model.Signal {
	severity := model.SeverityInfo
	if !r.HasSufficientVotes {
		severity = model.SeverityWarning
	}
	return model.Signal{
		Type:        model.SignalConsensus,
		Severity:    severity,
		Description: fmt.Sprintf("%d/%d votes, weighted %.2f (threshold %.2f)", r.VoteCount, r.MinVotes, r.WeightedScore, r.Threshold),
		Data: map[string]interface{}{
			"votes":            r.VoteCount,
			"total_weight":     r.TotalWeight,
			"weighted_score":   r.WeightedScore,
			"unweighted_score": r.UnweightedScore,
			"reached":          r.ConsensusReached,
			"formula":          "sum(value * max(reputation, floor)) / sum(max(reputation, floor))",
		},
	}
}
