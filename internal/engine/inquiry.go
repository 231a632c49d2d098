package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/veracity/internal/apperr"
	"github.com/ppiankov/veracity/internal/dedupe"
	"github.com/ppiankov/veracity/internal/events"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/score"
	"github.com/ppiankov/veracity/internal/store"
)

// InquiryResult is a created inquiry with the duplicate check that preceded it
type InquiryResult struct {
	Inquiry    model.Inquiry `json:"inquiry"`
	Duplicates dedupe.Report `json:"duplicates"`
}

// FindDuplicates ranks the active inquiries of a scope and category by similarity.
// A slow or unavailable embedding provider yields a degraded report instead of an error.
func (e *Engine) FindDuplicates(ctx context.Context, title, description, scopeID, category string) (dedupe.Report, error) {
	ctx, span := tracer.Start(ctx, "engine.FindDuplicates", trace.WithAttributes(attribute.String("scope_id", scopeID)))
	defer span.End()

	report, err := e.detector.FindDuplicates(ctx, title, description, scopeID, categoryOrDefault(category))
	if err != nil {
		return report, err
	}
	switch {
	case report.Degraded:
		duplicateChecksTotal.WithLabelValues("degraded").Inc()
	case len(report.Blocking()) > 0:
		duplicateChecksTotal.WithLabelValues("match").Inc()
	default:
		duplicateChecksTotal.WithLabelValues("clear").Inc()
	}
	span.SetAttributes(attribute.Bool("degraded", report.Degraded), attribute.Int("matches", len(report.Matches)))
	return report, nil
}

// CreateInquiry stores a new inquiry. When an active inquiry in the same scope is more similar
// than the duplicate threshold, creation requires a justification of the configured minimum length.
func (e *Engine) CreateInquiry(ctx context.Context, in InquiryInput) (InquiryResult, error) {
	const op = "engine.CreateInquiry"
	who, err := actor(ctx, op)
	if err != nil {
		return InquiryResult{}, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Category = categoryOrDefault(in.Category)
	if err := e.check(op, in); err != nil {
		return InquiryResult{}, err
	}
	if in.ClaimID != "" {
		if _, err := e.store.GetClaim(ctx, in.ClaimID); err != nil {
			return InquiryResult{}, storeErr(op, "claim", in.ClaimID, err)
		}
	}

	report, err := e.FindDuplicates(ctx, in.Title, in.Description, in.ScopeID, in.Category)
	if err != nil {
		return InquiryResult{}, err
	}
	if blocking := report.Blocking(); len(blocking) > 0 {
		if err := dedupe.CheckJustification(op, in.Justification, e.cfg.Duplicates.MinJustification); err != nil {
			verr := apperr.Validation(op, "inquiry duplicates %q (similarity %.2f); a justification of at least %d characters is required",
				blocking[0].ExistingID, blocking[0].Similarity, e.cfg.Duplicates.MinJustification)
			verr.Details = blocking
			return InquiryResult{Duplicates: report}, verr
		}
	}

	q := model.Inquiry{
		ID:          newID(),
		ClaimID:     in.ClaimID,
		ScopeID:     in.ScopeID,
		Category:    in.Category,
		Title:       in.Title,
		Description: in.Description,
		Embedding:   report.Embedding,
		Status:      model.InquiryActive,
		CreatedBy:   who,
		CreatedAt:   e.now(),
	}
	if err := e.store.CreateInquiry(ctx, q); err != nil {
		return InquiryResult{}, storeErr(op, "inquiry", q.ID, err)
	}
	return InquiryResult{Inquiry: q, Duplicates: report}, nil
}

// MergeInquiries folds source into target: positions and inquiry evidence move to the target and
// the source is marked merged. Both must be active and share a scope.
func (e *Engine) MergeInquiries(ctx context.Context, sourceID, targetID, justification string) (model.Inquiry, error) {
	const op = "engine.MergeInquiries"
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("source_id", sourceID),
		attribute.String("target_id", targetID),
	))
	defer span.End()

	if _, err := actor(ctx, op); err != nil {
		return model.Inquiry{}, err
	}
	if sourceID == "" || targetID == "" {
		return model.Inquiry{}, apperr.Validation(op, "source and target are required")
	}
	if sourceID == targetID {
		return model.Inquiry{}, apperr.Validation(op, "an inquiry cannot be merged into itself")
	}
	if err := dedupe.CheckJustification(op, justification, e.cfg.Duplicates.MinJustification); err != nil {
		return model.Inquiry{}, err
	}

	source, err := e.store.GetInquiry(ctx, sourceID)
	if err != nil {
		return model.Inquiry{}, storeErr(op, "inquiry", sourceID, err)
	}
	target, err := e.store.GetInquiry(ctx, targetID)
	if err != nil {
		return model.Inquiry{}, storeErr(op, "inquiry", targetID, err)
	}
	for _, q := range []model.Inquiry{source, target} {
		if q.Status != model.InquiryActive {
			return model.Inquiry{}, apperr.Validation(op, "inquiry %q is %s", q.ID, q.Status)
		}
	}
	if source.ScopeID != target.ScopeID {
		return model.Inquiry{}, apperr.Validation(op, "inquiries %q and %q belong to different scopes", sourceID, targetID)
	}

	if err := e.store.MergeInquiries(ctx, sourceID, targetID); err != nil {
		return model.Inquiry{}, storeErr(op, "inquiry", sourceID, err)
	}
	source.Status = model.InquiryMerged
	source.MergedInto = targetID
	e.logger.Info("inquiries merged", "source", sourceID, "target", targetID)
	return source, nil
}

// SubmitPosition records a stance on an active inquiry. The position starts pending evaluation.
// An EvidenceTypeWeight of zero means unweighted.
func (e *Engine) SubmitPosition(ctx context.Context, in PositionInput) (model.Position, error) {
	const op = "engine.SubmitPosition"
	who, err := actor(ctx, op)
	if err != nil {
		return model.Position{}, err
	}
	if err := e.check(op, in); err != nil {
		return model.Position{}, err
	}
	if in.ProposedChange != nil {
		if err := model.ValidateChange(in.ProposedChange); err != nil {
			return model.Position{}, apperr.Validation(op, "proposed change: %v", err)
		}
	}

	q, err := e.store.GetInquiry(ctx, in.InquiryID)
	if err != nil {
		return model.Position{}, storeErr(op, "inquiry", in.InquiryID, err)
	}
	if q.Status != model.InquiryActive {
		return model.Position{}, apperr.Validation(op, "inquiry %q is %s", q.ID, q.Status)
	}

	weight := in.EvidenceTypeWeight
	if weight == 0 {
		weight = 1
	}
	p := model.Position{
		ID:                 newID(),
		InquiryID:          q.ID,
		Stance:             in.Stance,
		Argument:           in.Argument,
		EvidenceTypeWeight: weight,
		Status:             model.PositionPending,
		ProposedChange:     in.ProposedChange,
		SubmittedBy:        who,
		CreatedAt:          e.now(),
	}
	if err := e.store.CreatePosition(ctx, p); err != nil {
		return model.Position{}, storeErr(op, "position", p.ID, err)
	}
	return p, nil
}

// ListPositions returns the positions of an inquiry in submission order
func (e *Engine) ListPositions(ctx context.Context, inquiryID string) ([]model.Position, error) {
	out, err := e.store.ListPositions(ctx, inquiryID)
	if err != nil {
		return nil, storeErr("engine.ListPositions", "inquiry", inquiryID, err)
	}
	return out, nil
}

// EvaluatePosition scores a pending position from its evidence and classifies it under its
// inquiry's category. A failed evaluation leaves the position in evaluation_failed until it is
// re-evaluated manually. Strong opposing positions carrying a change trigger an automatic amendment.
func (e *Engine) EvaluatePosition(ctx context.Context, positionID string) (model.Position, error) {
	const op = "engine.EvaluatePosition"
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attribute.String("position_id", positionID)))
	defer span.End()

	unlock := e.locks.Lock("position:" + positionID)
	p, q, err := e.evaluateLocked(ctx, op, positionID)
	unlock()
	if err != nil {
		return p, err
	}

	e.autoAmend(ctx, p, q)
	return p, nil
}

func (e *Engine) evaluateLocked(ctx context.Context, op, positionID string) (model.Position, model.Inquiry, error) {
	p, err := e.store.GetPosition(ctx, positionID)
	if err != nil {
		return model.Position{}, model.Inquiry{}, storeErr(op, "position", positionID, err)
	}
	if p.Status != model.PositionPending {
		return p, model.Inquiry{}, apperr.Conflict(op, "position %q is %s, not %s", p.ID, p.Status, model.PositionPending)
	}
	q, err := e.store.GetInquiry(ctx, p.InquiryID)
	if err != nil {
		return p, model.Inquiry{}, storeErr(op, "inquiry", p.InquiryID, err)
	}

	evidence, err := e.store.ListEvidence(ctx, model.TargetPosition, p.ID)
	if err != nil {
		return e.failPosition(ctx, op, p, q, model.PositionPending, fmt.Errorf("load evidence: %w", err))
	}

	now := e.now()
	result := e.scorer.Credibility(model.Claim{ID: p.ID, Level: model.LevelMutable}, evidence, 0, now)
	weighted := result.Score * p.EvidenceTypeWeight
	if math.IsNaN(weighted) {
		return e.failPosition(ctx, op, p, q, model.PositionPending, errors.New("score is not a number"))
	}

	p.Score = math.Min(math.Max(weighted, 0), 1)
	p.Status = model.PositionEvaluated
	p.EvaluatedAt = &now
	if err := e.store.TransitionPosition(ctx, p, model.PositionPending); err != nil {
		return p, q, storeErr(op, "position", p.ID, err)
	}

	tier := e.classifier.Classify(p.Score, q.Category)
	final := p
	final.Status = tier.PositionStatus()
	if err := e.store.TransitionPosition(ctx, final, model.PositionEvaluated); err != nil {
		return e.failPosition(ctx, op, p, q, model.PositionEvaluated, fmt.Errorf("classify: %w", err))
	}
	p = final
	positionsTotal.WithLabelValues(string(p.Status)).Inc()

	who, _ := actorOrSystem(ctx)
	e.publish(ctx, events.New(events.PositionClassified, p.ID, who, events.PositionPayload{
		PositionID: p.ID,
		InquiryID:  p.InquiryID,
		Status:     string(p.Status),
		Score:      p.Score,
	}))
	return p, q, nil
}

// failPosition moves a position to evaluation_failed and reports the cause as an evaluation error
func (e *Engine) failPosition(ctx context.Context, op string, p model.Position, q model.Inquiry, from model.PositionStatus, cause error) (model.Position, model.Inquiry, error) {
	now := e.now()
	p.Status = model.PositionFailed
	p.FailureReason = cause.Error()
	p.EvaluatedAt = &now
	if err := e.store.TransitionPosition(ctx, p, from); err != nil {
		e.logger.Error("record evaluation failure", "position", p.ID, "error", err)
	}
	positionsTotal.WithLabelValues(string(model.PositionFailed)).Inc()
	return p, q, apperr.Evaluation(op, cause)
}

// EvaluateInquiryPositions evaluates every pending position of an inquiry on a bounded pool.
// One position failing does not stop the others; the returned slice holds each position's final state.
func (e *Engine) EvaluateInquiryPositions(ctx context.Context, inquiryID string) ([]model.Position, error) {
	const op = "engine.EvaluateInquiryPositions"
	positions, err := e.store.ListPositions(ctx, inquiryID)
	if err != nil {
		return nil, storeErr(op, "inquiry", inquiryID, err)
	}

	out := make([]model.Position, len(positions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.cfg.Concurrency.Workers, 1))
	for i, p := range positions {
		if p.Status != model.PositionPending {
			out[i] = p
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			evaluated, err := e.EvaluatePosition(gctx, p.ID)
			if err != nil {
				e.logger.Warn("position evaluation failed", "position", p.ID, "error", err)
				if evaluated.ID == "" {
					evaluated = p
				}
			}
			out[i] = evaluated
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

// ClassifyPositions groups an inquiry's positions into tiers by score
func (e *Engine) ClassifyPositions(ctx context.Context, inquiryID string) (score.Buckets[model.Position], error) {
	const op = "engine.ClassifyPositions"
	q, err := e.store.GetInquiry(ctx, inquiryID)
	if err != nil {
		return score.Buckets[model.Position]{}, storeErr(op, "inquiry", inquiryID, err)
	}
	positions, err := e.store.ListPositions(ctx, inquiryID)
	if err != nil {
		return score.Buckets[model.Position]{}, storeErr(op, "inquiry", inquiryID, err)
	}
	return score.Partition(e.classifier, positions, func(p model.Position) float64 { return p.Score }, q.Category), nil
}

// ReevaluatePosition resets a position to pending and evaluates it again.
// It is the only way out of evaluation_failed.
func (e *Engine) ReevaluatePosition(ctx context.Context, positionID string) (model.Position, error) {
	const op = "engine.ReevaluatePosition"
	if _, err := actor(ctx, op); err != nil {
		return model.Position{}, err
	}

	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attribute.String("position_id", positionID)))
	defer span.End()

	// Reset and evaluation happen under one hold of the lock so a concurrent
	// evaluation cannot slip in between.
	unlock := e.locks.Lock("position:" + positionID)
	p, err := e.store.GetPosition(ctx, positionID)
	if err != nil {
		unlock()
		return model.Position{}, storeErr(op, "position", positionID, err)
	}
	from := p.Status
	if from != model.PositionPending {
		p.Status = model.PositionPending
		p.Score = 0
		p.FailureReason = ""
		p.EvaluatedAt = nil
		if err := e.store.TransitionPosition(ctx, p, from); err != nil {
			unlock()
			if errors.Is(err, store.ErrConflict) {
				return p, apperr.Conflict(op, "position %q changed during re-evaluation", positionID)
			}
			return p, storeErr(op, "position", positionID, err)
		}
	}
	p, q, err := e.evaluateLocked(ctx, op, positionID)
	unlock()
	if err != nil {
		return p, err
	}

	e.autoAmend(ctx, p, q)
	return p, nil
}

func categoryOrDefault(category string) string {
	if c := strings.ToLower(strings.TrimSpace(category)); c != "" {
		return c
	}
	return model.DefaultCategory
}
