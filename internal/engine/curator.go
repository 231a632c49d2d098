package engine

import (
	"context"
	"strings"

	"github.com/ppiankov/veracity/internal/apperr"
	"github.com/ppiankov/veracity/internal/events"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/score"
)

// ApplyForCurator files a curator application for the acting user.
// Applicants need at least the configured minimum reputation.
func (e *Engine) ApplyForCurator(ctx context.Context, in CuratorApplicationInput) (model.CuratorApplication, error) {
	const op = "engine.ApplyForCurator"
	who, err := actor(ctx, op)
	if err != nil {
		return model.CuratorApplication{}, err
	}
	in.Statement = strings.TrimSpace(in.Statement)
	if err := e.check(op, in); err != nil {
		return model.CuratorApplication{}, err
	}

	rep, err := e.Reputation(ctx, who)
	if err != nil {
		return model.CuratorApplication{}, err
	}
	if rep.Score < e.cfg.Curator.MinReputation {
		return model.CuratorApplication{}, apperr.Validation(op, "reputation %.2f is below the curator minimum %.2f",
			rep.Score, e.cfg.Curator.MinReputation)
	}

	app := model.CuratorApplication{
		ID:        newID(),
		UserID:    who,
		Statement: in.Statement,
		Status:    model.ApplicationPending,
		CreatedAt: e.now(),
	}
	if err := e.store.CreateCuratorApplication(ctx, app); err != nil {
		return model.CuratorApplication{}, storeErr(op, "curator application", app.ID, err)
	}
	return app, nil
}

// EvaluateCuratorApplication decides a pending application from its votes
func (e *Engine) EvaluateCuratorApplication(ctx context.Context, applicationID string) (model.CuratorApplication, score.ConsensusResult, error) {
	const op = "engine.EvaluateCuratorApplication"
	ctx, span := tracer.Start(ctx, op)
	defer span.End()

	who, err := actor(ctx, op)
	if err != nil {
		return model.CuratorApplication{}, score.ConsensusResult{}, err
	}

	app, err := e.store.GetCuratorApplication(ctx, applicationID)
	if err != nil {
		return model.CuratorApplication{}, score.ConsensusResult{}, storeErr(op, "curator application", applicationID, err)
	}
	if app.Status != model.ApplicationPending {
		return app, score.ConsensusResult{}, apperr.Conflict(op, "curator application %q is already %s", app.ID, app.Status)
	}

	tally, err := e.Tally(ctx, model.SubjectCuratorApplication, app.ID)
	if err != nil {
		return app, score.ConsensusResult{}, err
	}
	if !tally.HasSufficientVotes {
		return app, tally, apperr.Validation(op, "curator application %q has %d of %d required votes",
			app.ID, tally.VoteCount, tally.MinVotes)
	}

	status := model.ApplicationRejected
	if tally.ConsensusReached {
		status = model.ApplicationApproved
	}
	now := e.now()
	if err := e.store.DecideCuratorApplication(ctx, app.ID, status, now); err != nil {
		return app, tally, storeErr(op, "curator application", app.ID, err)
	}
	app.Status = status
	app.DecidedAt = &now

	e.publish(ctx, events.New(events.CuratorDecided, app.ID, who, events.DecisionPayload{
		Status:        string(status),
		WeightedScore: tally.WeightedScore,
		Votes:         tally.VoteCount,
	}))
	return app, tally, nil
}
