package engine

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppiankov/veracity/internal/apperr"
	"github.com/ppiankov/veracity/internal/events"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/score"
	"github.com/ppiankov/veracity/internal/source"
	"github.com/ppiankov/veracity/internal/store"
	"github.com/ppiankov/veracity/internal/worker"
)

// SubmitResult is the outcome of an evidence submission. Credibility is set for claim targets.
type SubmitResult struct {
	Evidence    model.EvidenceItem       `json:"evidence"`
	Credibility *score.CredibilityResult `json:"credibility,omitempty"`
}

// SubmitEvidence appends an item to the ledger. For claim targets the claim's credibility is
// recomputed under the claim's lock before returning.
func (e *Engine) SubmitEvidence(ctx context.Context, in EvidenceInput) (SubmitResult, error) {
	const op = "engine.SubmitEvidence"
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("target_kind", string(in.TargetKind)),
		attribute.String("target_id", in.TargetID),
	))
	defer span.End()

	who, err := actor(ctx, op)
	if err != nil {
		return SubmitResult{}, err
	}
	if err := e.check(op, in); err != nil {
		return SubmitResult{}, err
	}

	item := model.EvidenceItem{
		ID:          newID(),
		TargetKind:  in.TargetKind,
		TargetID:    in.TargetID,
		Type:        in.Type,
		Weight:      in.Weight,
		Confidence:  in.Confidence,
		Source:      in.Source,
		Evaluation:  in.Evaluation,
		SubmittedBy: who,
		CreatedAt:   e.now(),
	}
	if item.Evaluation == nil && e.sources != nil && source.IsURL(item.Source) {
		check := e.sources.Check(ctx, item.Source)
		item.Evaluation = check
		span.SetAttributes(attribute.Bool("source_reachable", check.Reachable))
	}

	switch in.TargetKind {
	case model.TargetPosition:
		if _, err := e.store.GetPosition(ctx, in.TargetID); err != nil {
			return SubmitResult{}, storeErr(op, "position", in.TargetID, err)
		}
		if err := e.store.AppendEvidence(ctx, item); err != nil {
			return SubmitResult{}, storeErr(op, "position", in.TargetID, err)
		}
		return SubmitResult{Evidence: item}, nil
	case model.TargetInquiry:
		q, err := e.store.GetInquiry(ctx, in.TargetID)
		if err != nil {
			return SubmitResult{}, storeErr(op, "inquiry", in.TargetID, err)
		}
		if q.Status != model.InquiryActive {
			return SubmitResult{}, apperr.Validation(op, "inquiry %q is %s", q.ID, q.Status)
		}
		if err := e.store.AppendEvidence(ctx, item); err != nil {
			return SubmitResult{}, storeErr(op, "inquiry", in.TargetID, err)
		}
		return SubmitResult{Evidence: item}, nil
	}

	unlock := e.locks.Lock(in.TargetID)
	defer unlock()

	claim, err := e.store.GetClaim(ctx, in.TargetID)
	if err != nil {
		return SubmitResult{}, storeErr(op, "claim", in.TargetID, err)
	}
	if claim.IsImmutable() {
		return SubmitResult{}, apperr.Validation(op, "claim %q is verified and accepts no further evidence", claim.ID)
	}
	if err := e.store.AppendEvidence(ctx, item); err != nil {
		return SubmitResult{}, storeErr(op, "claim", in.TargetID, err)
	}

	result, err := e.recalculateLocked(ctx, in.TargetID, who)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recalculate")
		// The item is in the ledger; the next recalculation picks it up
		return SubmitResult{Evidence: item}, err
	}
	return SubmitResult{Evidence: item, Credibility: &result}, nil
}

// ListEvidence returns the ledger entries of a target
func (e *Engine) ListEvidence(ctx context.Context, kind model.TargetKind, targetID string) ([]model.EvidenceItem, error) {
	items, err := e.store.ListEvidence(ctx, kind, targetID)
	if err != nil {
		return nil, storeErr("engine.ListEvidence", string(kind), targetID, err)
	}
	return items, nil
}

// RecalculateClaim recomputes and persists a claim's credibility
func (e *Engine) RecalculateClaim(ctx context.Context, claimID string) (score.CredibilityResult, error) {
	ctx, span := tracer.Start(ctx, "engine.RecalculateClaim", trace.WithAttributes(attribute.String("claim_id", claimID)))
	defer span.End()

	unlock := e.locks.Lock(claimID)
	defer unlock()

	who, _ := actorOrSystem(ctx)
	return e.recalculateLocked(ctx, claimID, who)
}

// ClaimScore returns the cached credibility of a claim, recomputing it on a miss
func (e *Engine) ClaimScore(ctx context.Context, claimID string) (score.CredibilityResult, error) {
	if result, ok := e.cachedScore(claimID); ok {
		return result, nil
	}
	return e.RecalculateClaim(ctx, claimID)
}

// RecalculateMany recalculates claims on the worker pool; an empty list means every mutable claim
func (e *Engine) RecalculateMany(ctx context.Context, claimIDs []string) ([]*worker.RecalcResult, error) {
	if len(claimIDs) == 0 {
		ids, err := e.store.ListMutableClaimIDs(ctx)
		if err != nil {
			return nil, storeErr("engine.RecalculateMany", "claims", "", err)
		}
		claimIDs = ids
	}
	return worker.NewBatchProcessor(e, e.cfg.Concurrency.Workers).ProcessClaims(ctx, claimIDs), nil
}

// recalculateLocked recomputes a claim's score; the caller holds the claim's lock.
// The store is written before the cache.
func (e *Engine) recalculateLocked(ctx context.Context, claimID, who string) (score.CredibilityResult, error) {
	const op = "engine.RecalculateClaim"
	start := time.Now()

	claim, err := e.store.GetClaim(ctx, claimID)
	if err != nil {
		recalculationsTotal.WithLabelValues("error").Inc()
		return score.CredibilityResult{}, storeErr(op, "claim", claimID, err)
	}

	var (
		evidence []model.EvidenceItem
		open     int
	)
	if !claim.IsImmutable() {
		if evidence, err = e.store.ListEvidence(ctx, model.TargetClaim, claimID); err != nil {
			recalculationsTotal.WithLabelValues("error").Inc()
			return score.CredibilityResult{}, storeErr(op, "claim", claimID, err)
		}
		if open, err = e.store.CountOpenChallenges(ctx, claimID); err != nil {
			recalculationsTotal.WithLabelValues("error").Inc()
			return score.CredibilityResult{}, storeErr(op, "claim", claimID, err)
		}
	}

	now := e.now()
	result := e.scorer.Credibility(claim, evidence, open, now)

	if !claim.IsImmutable() {
		err := e.store.UpdateCredibility(ctx, claimID, result.Score, now)
		if errors.Is(err, store.ErrImmutable) {
			// Promoted between the read and the write: the pinned score stands
			claim.Level = model.LevelImmutable
			result = e.scorer.Credibility(claim, nil, 0, now)
		} else if err != nil {
			recalculationsTotal.WithLabelValues("error").Inc()
			return score.CredibilityResult{}, storeErr(op, "claim", claimID, err)
		}
	}
	e.cacheScore(claimID, result)

	recalculationsTotal.WithLabelValues("ok").Inc()
	recalculationDuration.Observe(time.Since(start).Seconds())

	if result.Score != claim.Credibility {
		e.publish(ctx, events.New(events.ScoreRecalculated, claimID, who, events.ScorePayload{
			ClaimID:    claimID,
			Score:      result.Score,
			Confidence: result.Confidence,
			Previous:   claim.Credibility,
		}))
	}
	return result, nil
}

// actorOrSystem returns the acting user, or "system" for background work
func actorOrSystem(ctx context.Context) (string, bool) {
	if id, ok := actorFrom(ctx); ok {
		return id, true
	}
	return "system", false
}
