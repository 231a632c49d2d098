package engine

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppiankov/veracity/internal/apperr"
	"github.com/ppiankov/veracity/internal/events"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/score"
	"github.com/ppiankov/veracity/internal/store"
)

// PromotionOutcome is the result of a promotion request. Event is nil when the graph was not eligible.
type PromotionOutcome struct {
	Eligibility model.PromotionEligibility `json:"eligibility"`
	Event       *model.PromotionEvent      `json:"event,omitempty"`
}

// Promoted reports whether the request moved the graph to level 0
func (o PromotionOutcome) Promoted() bool {
	return o.Event != nil
}

// DefineMethodologyStep adds or updates a step in a mutable graph's methodology
func (e *Engine) DefineMethodologyStep(ctx context.Context, in MethodologyStepInput) (model.MethodologyStep, error) {
	const op = "engine.DefineMethodologyStep"
	if _, err := actor(ctx, op); err != nil {
		return model.MethodologyStep{}, err
	}
	if err := e.check(op, in); err != nil {
		return model.MethodologyStep{}, err
	}
	g, err := e.store.GetGraph(ctx, in.GraphID)
	if err != nil {
		return model.MethodologyStep{}, storeErr(op, "graph", in.GraphID, err)
	}
	if g.IsImmutable() {
		return model.MethodologyStep{}, apperr.Validation(op, "graph %q is verified; its methodology is frozen", g.ID)
	}

	step := model.MethodologyStep{GraphID: in.GraphID, StepID: in.StepID, Title: in.Title, Required: in.Required}
	if err := e.store.DefineMethodologyStep(ctx, step); err != nil {
		return model.MethodologyStep{}, storeErr(op, "graph", in.GraphID, err)
	}
	return step, nil
}

// CompleteMethodologyStep marks a step completed by the acting user
func (e *Engine) CompleteMethodologyStep(ctx context.Context, graphID, stepID string) error {
	const op = "engine.CompleteMethodologyStep"
	who, err := actor(ctx, op)
	if err != nil {
		return err
	}
	g, err := e.store.GetGraph(ctx, graphID)
	if err != nil {
		return storeErr(op, "graph", graphID, err)
	}
	if g.IsImmutable() {
		return apperr.Validation(op, "graph %q is verified; its methodology is frozen", g.ID)
	}
	err = e.store.CompleteMethodologyStep(ctx, graphID, stepID, who, e.now())
	if errors.Is(err, store.ErrConflict) {
		return apperr.Conflict(op, "methodology step %q is already completed", stepID)
	}
	return storeErr(op, "methodology step", graphID+"/"+stepID, err)
}

// EvaluatePromotion computes a graph's promotion eligibility without changing anything
func (e *Engine) EvaluatePromotion(ctx context.Context, graphID string) (model.PromotionEligibility, error) {
	const op = "engine.EvaluatePromotion"
	if _, err := e.store.GetGraph(ctx, graphID); err != nil {
		return model.PromotionEligibility{}, storeErr(op, "graph", graphID, err)
	}

	in := score.PromotionInputs{GraphID: graphID}

	steps, err := e.store.ListMethodologySteps(ctx, graphID)
	if err != nil {
		return model.PromotionEligibility{}, storeErr(op, "graph", graphID, err)
	}
	for _, st := range steps {
		if !st.Required {
			continue
		}
		in.RequiredSteps++
		if st.Completed() {
			in.CompletedRequiredSteps++
		}
	}

	if in.Consensus, err = e.Tally(ctx, model.SubjectGraphPromotion, graphID); err != nil {
		return model.PromotionEligibility{}, err
	}

	evidence, err := e.store.ListGraphEvidence(ctx, graphID)
	if err != nil {
		return model.PromotionEligibility{}, storeErr(op, "graph", graphID, err)
	}
	in.EvidenceConfidences = make([]float64, len(evidence))
	for i, item := range evidence {
		in.EvidenceConfidences[i] = item.Confidence
	}

	if in.OpenChallenges, err = e.store.CountOpenGraphChallenges(ctx, graphID); err != nil {
		return model.PromotionEligibility{}, storeErr(op, "graph", graphID, err)
	}

	return score.EvaluatePromotion(in, e.cfg.Promotion.Threshold, e.now()), nil
}

// RequestPromotionEvaluation promotes a graph to level 0 when it is eligible.
// Ineligible graphs get their breakdown back and nothing changes. Concurrent requests for the
// same graph produce exactly one transition; the others receive a conflict error.
func (e *Engine) RequestPromotionEvaluation(ctx context.Context, graphID string) (PromotionOutcome, error) {
	const op = "engine.RequestPromotionEvaluation"
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attribute.String("graph_id", graphID)))
	defer span.End()

	who, err := actor(ctx, op)
	if err != nil {
		return PromotionOutcome{}, err
	}

	g, err := e.store.GetGraph(ctx, graphID)
	if err != nil {
		return PromotionOutcome{}, storeErr(op, "graph", graphID, err)
	}
	if g.IsImmutable() {
		return PromotionOutcome{}, apperr.Validation(op, "graph %q is already verified", graphID)
	}

	el, err := e.EvaluatePromotion(ctx, graphID)
	if err != nil {
		return PromotionOutcome{}, err
	}
	out := PromotionOutcome{Eligibility: el}
	span.SetAttributes(attribute.Float64("overall", el.Overall), attribute.Bool("eligible", el.IsEligible))

	if !el.IsEligible {
		promotionsTotal.WithLabelValues("ineligible").Inc()
		return out, nil
	}

	event := model.PromotionEvent{
		ID:          newID(),
		GraphID:     graphID,
		FromLevel:   model.LevelMutable,
		ToLevel:     model.LevelImmutable,
		RequestedBy: who,
		Eligibility: el,
		CreatedAt:   e.now(),
	}
	if err := e.store.PromoteGraph(ctx, event); err != nil {
		if errors.Is(err, store.ErrConflict) {
			promotionsTotal.WithLabelValues("conflict").Inc()
			return out, apperr.Conflict(op, "graph %q was promoted by a concurrent request", graphID)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "promote")
		return out, storeErr(op, "graph", graphID, err)
	}
	promotionsTotal.WithLabelValues("promoted").Inc()
	out.Event = &event

	e.refreshPinnedScores(ctx, graphID)

	e.publish(ctx, events.New(events.GraphPromoted, graphID, who, events.PromotionPayload{
		GraphID: graphID,
		EventID: event.ID,
		Overall: el.Overall,
	}))
	e.logger.Info("graph promoted", "graph", graphID, "by", who, "overall", el.Overall)
	return out, nil
}

// refreshPinnedScores overwrites cached scores of a promoted graph's claims with the pinned result.
// Each write takes the claim's lock, so a recalculation that was in flight when the promotion
// committed caches its score first and the pinned result lands last.
func (e *Engine) refreshPinnedScores(ctx context.Context, graphID string) {
	claims, err := e.store.ListGraphClaims(ctx, graphID)
	if err != nil {
		e.logger.Warn("refresh pinned scores", "graph", graphID, "error", err)
		return
	}
	now := e.now()
	for _, c := range claims {
		unlock := e.locks.Lock(c.ID)
		e.cacheScore(c.ID, e.scorer.Credibility(c, nil, 0, now))
		unlock()
	}
}
