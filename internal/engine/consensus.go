package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppiankov/veracity/internal/apperr"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/score"
)

// CastVote records the acting user's vote on an undecided subject. The voter's current
// reputation is snapshotted as the vote weight; voting again replaces the earlier vote.
func (e *Engine) CastVote(ctx context.Context, in VoteInput) (model.ConsensusVote, error) {
	const op = "engine.CastVote"
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("subject_type", string(in.SubjectType)),
		attribute.String("subject_id", in.SubjectID),
	))
	defer span.End()

	who, err := actor(ctx, op)
	if err != nil {
		return model.ConsensusVote{}, err
	}
	if err := e.check(op, in); err != nil {
		return model.ConsensusVote{}, err
	}
	if err := e.ensureUndecided(ctx, op, in.SubjectType, in.SubjectID, who); err != nil {
		return model.ConsensusVote{}, err
	}

	rep, err := e.Reputation(ctx, who)
	if err != nil {
		return model.ConsensusVote{}, err
	}

	vote := model.ConsensusVote{
		SubjectType: in.SubjectType,
		SubjectID:   in.SubjectID,
		VoterID:     who,
		Value:       in.Value,
		Reputation:  rep.Score,
		Weight:      score.VoteWeight(rep.Score, e.cfg.Consensus.MinimumVoterWeight),
		CastAt:      e.now(),
	}
	if err := e.store.UpsertVote(ctx, vote); err != nil {
		return model.ConsensusVote{}, storeErr(op, string(in.SubjectType), in.SubjectID, err)
	}
	votesTotal.WithLabelValues(string(in.SubjectType)).Inc()
	return vote, nil
}

// Tally aggregates the current votes on a subject under its consensus rule
func (e *Engine) Tally(ctx context.Context, subjectType model.SubjectType, subjectID string) (score.ConsensusResult, error) {
	const op = "engine.Tally"
	rule, ok := e.cfg.Consensus.Rule(subjectType)
	if !ok {
		return score.ConsensusResult{}, apperr.Validation(op, "no consensus rule for subject type %q", subjectType)
	}
	votes, err := e.store.ListVotes(ctx, subjectType, subjectID)
	if err != nil {
		return score.ConsensusResult{}, storeErr(op, string(subjectType), subjectID, err)
	}
	return score.Tally(votes, rule, e.cfg.Consensus.MinimumVoterWeight), nil
}

// ensureUndecided checks that the subject exists and still accepts votes
func (e *Engine) ensureUndecided(ctx context.Context, op string, subjectType model.SubjectType, subjectID, voter string) error {
	switch subjectType {
	case model.SubjectGraphPromotion:
		g, err := e.store.GetGraph(ctx, subjectID)
		if err != nil {
			return storeErr(op, "graph", subjectID, err)
		}
		if g.IsImmutable() {
			return apperr.Validation(op, "graph %q is already promoted", subjectID)
		}
	case model.SubjectChallenge:
		c, err := e.store.GetChallenge(ctx, subjectID)
		if err != nil {
			return storeErr(op, "challenge", subjectID, err)
		}
		if c.Status != model.ChallengeOpen {
			return apperr.Validation(op, "challenge %q is already %s", subjectID, c.Status)
		}
	case model.SubjectCuratorApplication:
		a, err := e.store.GetCuratorApplication(ctx, subjectID)
		if err != nil {
			return storeErr(op, "curator application", subjectID, err)
		}
		if a.Status != model.ApplicationPending {
			return apperr.Validation(op, "curator application %q is already %s", subjectID, a.Status)
		}
		if a.UserID == voter {
			return apperr.Validation(op, "applicants cannot vote on their own application")
		}
	default:
		return apperr.Validation(op, "unknown subject type %q", subjectType)
	}
	return nil
}

// Reputation recomputes a user's reputation from the ledger, votes, methodology and challenges
func (e *Engine) Reputation(ctx context.Context, userID string) (model.UserReputation, error) {
	const op = "engine.Reputation"
	if userID == "" {
		return model.UserReputation{}, apperr.Validation(op, "user id is required")
	}

	stats, err := e.store.ReputationCounters(ctx, userID)
	if err != nil {
		return model.UserReputation{}, fmt.Errorf("%s: %w", op, err)
	}
	submitted, err := e.store.ListSubmittedEvidence(ctx, userID)
	if err != nil {
		return model.UserReputation{}, fmt.Errorf("%s: %w", op, err)
	}

	attributed := make([]score.AttributedEvidence, len(submitted))
	for i, s := range submitted {
		attributed[i] = score.AttributedEvidence{
			Item:             s.Item,
			ClaimCredibility: s.ClaimCredibility,
			ClaimImmutable:   s.ClaimImmutable,
		}
	}

	rep := e.scorer.Reputation(e.scorer.EvidenceStats(stats, attributed))
	rep.ComputedAt = e.now()
	return rep, nil
}
