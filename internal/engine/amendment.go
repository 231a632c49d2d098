package engine

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppiankov/veracity/internal/apperr"
	"github.com/ppiankov/veracity/internal/events"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/score"
)

// AmendmentResult is an applied amendment with the claim and score it produced
type AmendmentResult struct {
	Amendment   model.Amendment         `json:"amendment"`
	Claim       model.Claim             `json:"claim"`
	Credibility score.CredibilityResult `json:"credibility"`
}

// ProposeAmendment records a manual change proposal against a mutable claim.
// The claim's current value at the change path is captured so a later apply can detect drift.
func (e *Engine) ProposeAmendment(ctx context.Context, in AmendmentInput) (model.Amendment, error) {
	const op = "engine.ProposeAmendment"
	who, err := actor(ctx, op)
	if err != nil {
		return model.Amendment{}, err
	}
	return e.propose(ctx, op, in, model.TriggerManual, who)
}

func (e *Engine) propose(ctx context.Context, op string, in AmendmentInput, trigger model.AmendmentTrigger, who string) (model.Amendment, error) {
	if err := e.check(op, in); err != nil {
		return model.Amendment{}, err
	}
	if err := model.ValidateChange(in.Change); err != nil {
		return model.Amendment{}, apperr.Validation(op, "%v", err)
	}

	claim, err := e.store.GetClaim(ctx, in.ClaimID)
	if err != nil {
		return model.Amendment{}, storeErr(op, "claim", in.ClaimID, err)
	}
	if claim.IsImmutable() {
		return model.Amendment{}, apperr.Validation(op, "claim %q is verified and cannot be amended", claim.ID)
	}

	a := model.Amendment{
		ID:          newID(),
		ClaimID:     claim.ID,
		InquiryID:   in.InquiryID,
		PositionID:  in.PositionID,
		Change:      model.CaptureIncumbent(claim, in.Change),
		Explanation: strings.TrimSpace(in.Explanation),
		Status:      model.AmendmentProposed,
		Trigger:     trigger,
		ProposedBy:  who,
		CreatedAt:   e.now(),
	}
	if err := e.store.CreateAmendment(ctx, a); err != nil {
		return model.Amendment{}, storeErr(op, "claim", claim.ID, err)
	}
	amendmentsTotal.WithLabelValues("proposed").Inc()
	return a, nil
}

// ApplyAmendment applies a proposed amendment to its claim and recomputes the claim's score.
// A rejected amendment cannot be revived (propose a new one); an applied one cannot be applied twice.
func (e *Engine) ApplyAmendment(ctx context.Context, amendmentID string) (AmendmentResult, error) {
	const op = "engine.ApplyAmendment"
	who, err := actor(ctx, op)
	if err != nil {
		return AmendmentResult{}, err
	}
	return e.apply(ctx, op, amendmentID, who)
}

func (e *Engine) apply(ctx context.Context, op, amendmentID, who string) (AmendmentResult, error) {
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attribute.String("amendment_id", amendmentID)))
	defer span.End()

	a, err := e.store.GetAmendment(ctx, amendmentID)
	if err != nil {
		return AmendmentResult{}, storeErr(op, "amendment", amendmentID, err)
	}
	switch a.Status {
	case model.AmendmentRejected:
		return AmendmentResult{}, apperr.Validation(op, "amendment %q was rejected; propose a new amendment", a.ID)
	case model.AmendmentApplied:
		return AmendmentResult{}, apperr.Conflict(op, "amendment %q is already applied", a.ID)
	}

	unlock := e.locks.Lock(a.ClaimID)
	defer unlock()

	claim, err := e.store.GetClaim(ctx, a.ClaimID)
	if err != nil {
		return AmendmentResult{}, storeErr(op, "claim", a.ClaimID, err)
	}
	if claim.IsImmutable() {
		return AmendmentResult{}, apperr.Validation(op, "claim %q is verified and cannot be amended", claim.ID)
	}

	updated, err := model.ApplyChange(claim, a.Change)
	if errors.Is(err, model.ErrIncumbentMismatch) {
		amendmentsTotal.WithLabelValues("conflict").Inc()
		return AmendmentResult{}, apperr.Conflict(op, "claim %q changed at %s since amendment %q was proposed",
			claim.ID, a.Change.Path(), a.ID)
	}
	if err != nil {
		return AmendmentResult{}, apperr.Validation(op, "%v", err)
	}

	now := e.now()
	if err := e.store.ApplyAmendment(ctx, a.ID, updated, now); err != nil {
		amendmentsTotal.WithLabelValues("conflict").Inc()
		return AmendmentResult{}, storeErr(op, "amendment", a.ID, err)
	}
	amendmentsTotal.WithLabelValues("applied").Inc()

	a.Status = model.AmendmentApplied
	a.DecidedAt = &now
	updated.Version++

	e.publish(ctx, events.New(events.AmendmentApplied, a.ID, who, events.AmendmentPayload{
		AmendmentID: a.ID,
		ClaimID:     a.ClaimID,
		Path:        a.Change.Path(),
		Trigger:     string(a.Trigger),
	}))

	result, err := e.recalculateLocked(ctx, a.ClaimID, who)
	if err != nil {
		return AmendmentResult{Amendment: a, Claim: updated}, err
	}
	updated.Credibility = result.Score
	return AmendmentResult{Amendment: a, Claim: updated, Credibility: result}, nil
}

// RejectAmendment closes a proposed amendment. A non-blank reason is required.
func (e *Engine) RejectAmendment(ctx context.Context, amendmentID, reason string) (model.Amendment, error) {
	const op = "engine.RejectAmendment"
	if _, err := actor(ctx, op); err != nil {
		return model.Amendment{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return model.Amendment{}, apperr.Validation(op, "a rejection reason is required")
	}

	a, err := e.store.GetAmendment(ctx, amendmentID)
	if err != nil {
		return model.Amendment{}, storeErr(op, "amendment", amendmentID, err)
	}
	if a.Status != model.AmendmentProposed {
		return a, apperr.Conflict(op, "amendment %q is already %s", a.ID, a.Status)
	}

	now := e.now()
	if err := e.store.RejectAmendment(ctx, a.ID, reason, now); err != nil {
		return a, storeErr(op, "amendment", a.ID, err)
	}
	amendmentsTotal.WithLabelValues("rejected").Inc()
	a.Status = model.AmendmentRejected
	a.RejectionReason = reason
	a.DecidedAt = &now
	return a, nil
}

// ListAmendments returns a claim's amendments
func (e *Engine) ListAmendments(ctx context.Context, claimID string) ([]model.Amendment, error) {
	out, err := e.store.ListAmendments(ctx, claimID)
	if err != nil {
		return nil, storeErr("engine.ListAmendments", "claim", claimID, err)
	}
	return out, nil
}

// autoAmend proposes and applies the change carried by a strong opposing position.
// Failures are logged and swallowed; they never fail the position's evaluation.
func (e *Engine) autoAmend(ctx context.Context, p model.Position, q model.Inquiry) {
	const op = "engine.autoAmend"
	if p.Stance != model.StanceOpposing || p.ProposedChange == nil || q.ClaimID == "" {
		return
	}
	if p.Score < e.cfg.Amendment.AutoApplyThreshold {
		return
	}

	a, err := e.propose(ctx, op, AmendmentInput{
		ClaimID:     q.ClaimID,
		InquiryID:   q.ID,
		PositionID:  p.ID,
		Change:      p.ProposedChange,
		Explanation: "applied automatically from position " + p.ID,
	}, model.TriggerAutomatic, p.SubmittedBy)
	if err != nil {
		e.logger.Warn("automatic amendment not proposed", "position", p.ID, "claim", q.ClaimID, "error", err)
		return
	}
	if _, err := e.apply(ctx, op, a.ID, p.SubmittedBy); err != nil {
		e.logger.Warn("automatic amendment not applied", "amendment", a.ID, "claim", q.ClaimID, "error", err)
		return
	}
	e.logger.Info("automatic amendment applied", "amendment", a.ID, "claim", q.ClaimID, "score", p.Score)
}
