package engine

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppiankov/veracity/internal/apperr"
	"github.com/ppiankov/veracity/internal/events"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/score"
)

// OpenChallenge disputes a mutable claim. Open challenges lower the claim's credibility,
// so the score is recomputed before returning.
func (e *Engine) OpenChallenge(ctx context.Context, in ChallengeInput) (model.Challenge, error) {
	const op = "engine.OpenChallenge"
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attribute.String("claim_id", in.ClaimID)))
	defer span.End()

	who, err := actor(ctx, op)
	if err != nil {
		return model.Challenge{}, err
	}
	in.Reason = strings.TrimSpace(in.Reason)
	if err := e.check(op, in); err != nil {
		return model.Challenge{}, err
	}

	unlock := e.locks.Lock(in.ClaimID)
	defer unlock()

	claim, err := e.store.GetClaim(ctx, in.ClaimID)
	if err != nil {
		return model.Challenge{}, storeErr(op, "claim", in.ClaimID, err)
	}
	if claim.IsImmutable() {
		return model.Challenge{}, apperr.Validation(op, "claim %q is verified and cannot be challenged", claim.ID)
	}

	c := model.Challenge{
		ID:        newID(),
		ClaimID:   claim.ID,
		RaisedBy:  who,
		Reason:    in.Reason,
		Status:    model.ChallengeOpen,
		CreatedAt: e.now(),
	}
	if err := e.store.CreateChallenge(ctx, c); err != nil {
		return model.Challenge{}, storeErr(op, "claim", claim.ID, err)
	}
	if _, err := e.recalculateLocked(ctx, claim.ID, who); err != nil {
		return c, err
	}
	return c, nil
}

// ResolveChallenge decides an open challenge from its votes: upheld when challenge consensus is
// reached, dismissed otherwise. Resolution requires the rule's minimum number of votes.
func (e *Engine) ResolveChallenge(ctx context.Context, challengeID string) (model.Challenge, score.ConsensusResult, error) {
	const op = "engine.ResolveChallenge"
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attribute.String("challenge_id", challengeID)))
	defer span.End()

	who, err := actor(ctx, op)
	if err != nil {
		return model.Challenge{}, score.ConsensusResult{}, err
	}

	c, err := e.store.GetChallenge(ctx, challengeID)
	if err != nil {
		return model.Challenge{}, score.ConsensusResult{}, storeErr(op, "challenge", challengeID, err)
	}
	if c.Status != model.ChallengeOpen {
		return c, score.ConsensusResult{}, apperr.Conflict(op, "challenge %q is already %s", c.ID, c.Status)
	}

	tally, err := e.Tally(ctx, model.SubjectChallenge, c.ID)
	if err != nil {
		return c, score.ConsensusResult{}, err
	}
	if !tally.HasSufficientVotes {
		return c, tally, apperr.Validation(op, "challenge %q has %d of %d required votes", c.ID, tally.VoteCount, tally.MinVotes)
	}

	status := model.ChallengeDismissed
	if tally.ConsensusReached {
		status = model.ChallengeUpheld
	}

	unlock := e.locks.Lock(c.ClaimID)
	defer unlock()

	now := e.now()
	if err := e.store.ResolveChallenge(ctx, c.ID, status, now); err != nil {
		return c, tally, storeErr(op, "challenge", c.ID, err)
	}
	c.Status = status
	c.ResolvedAt = &now

	e.publish(ctx, events.New(events.ChallengeResolved, c.ID, who, events.DecisionPayload{
		Status:        string(status),
		WeightedScore: tally.WeightedScore,
		Votes:         tally.VoteCount,
	}))

	if _, err := e.recalculateLocked(ctx, c.ClaimID, who); err != nil {
		return c, tally, err
	}
	return c, tally, nil
}
