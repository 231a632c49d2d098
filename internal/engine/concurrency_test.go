package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veracity/internal/embed"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/store"
)

// hookStore lets a test run code between a store write and the engine's next step
type hookStore struct {
	store.Store
	afterUpdate  func(claimID string)
	afterPromote func(graphID string)
}

func (h *hookStore) UpdateCredibility(ctx context.Context, claimID string, score float64, at time.Time) error {
	if err := h.Store.UpdateCredibility(ctx, claimID, score, at); err != nil {
		return err
	}
	if h.afterUpdate != nil {
		h.afterUpdate(claimID)
	}
	return nil
}

func (h *hookStore) PromoteGraph(ctx context.Context, event model.PromotionEvent) error {
	if err := h.Store.PromoteGraph(ctx, event); err != nil {
		return err
	}
	if h.afterPromote != nil {
		h.afterPromote(event.GraphID)
	}
	return nil
}

func TestClaimScore_PromotionDuringRecalculationPinsCache(t *testing.T) {
	var hooks *hookStore
	f := newFixtureWith(t, func(_ *model.Config, opts *Options) {
		hooks = &hookStore{Store: opts.Store}
		opts.Store = hooks
	})
	makeEligible(t, f)

	committed := make(chan struct{})
	promoted := make(chan error, 1)
	var once sync.Once
	hooks.afterPromote = func(string) { close(committed) }
	hooks.afterUpdate = func(claimID string) {
		if claimID != "c2" {
			return
		}
		once.Do(func() {
			// The promotion commits after this recalculation has written its score
			// but before it has cached it.
			go func() {
				_, err := f.eng.RequestPromotionEvaluation(as("alice"), "g1")
				promoted <- err
			}()
			<-committed
		})
	}

	_, err := f.eng.RecalculateClaim(context.Background(), "c2")
	require.NoError(t, err)
	require.NoError(t, <-promoted)

	claim, err := f.store.GetClaim(context.Background(), "c2")
	require.NoError(t, err)
	require.True(t, claim.IsImmutable())
	assert.Equal(t, 1.0, claim.Credibility)

	cached, err := f.eng.ClaimScore(context.Background(), "c2")
	require.NoError(t, err)
	assert.Equal(t, 1.0, cached.Score, "immutable claim must not serve a pre-promotion score")
}

func TestCastVote_ConcurrentDuplicatesKeepOneVote(t *testing.T) {
	f := newFixture(t)

	values := []float64{0.1, 0.3, 0.5, 0.7, 0.9, 1}
	var wg sync.WaitGroup
	for _, v := range values {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.eng.CastVote(as("dave"), VoteInput{SubjectType: model.SubjectGraphPromotion, SubjectID: "g1", Value: v})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	votes, err := f.store.ListVotes(context.Background(), model.SubjectGraphPromotion, "g1")
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, "dave", votes[0].VoterID)
	assert.Contains(t, values, votes[0].Value)
}

func TestApplyAmendment_RacingEvidenceLeavesFreshScore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.eng.ProposeAmendment(as("bob"), AmendmentInput{
		ClaimID: "c1", Change: model.TextChange{Field: model.FieldTitle, To: "Water boils at 100C at sea level"},
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := f.eng.ApplyAmendment(as("alice"), a.ID)
		assert.NoError(t, err)
	}()
	for i, typ := range []model.EvidenceType{model.EvidenceSupporting, model.EvidenceRefuting, model.EvidenceSupporting, model.EvidenceSupporting} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.eng.SubmitEvidence(as("carol"), EvidenceInput{
				TargetKind: model.TargetClaim, TargetID: "c1", Type: typ, Weight: 1, Confidence: 0.5 + float64(i)/10,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	claim, err := f.store.GetClaim(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Water boils at 100C at sea level", claim.Title)

	evidence, err := f.store.ListEvidence(ctx, model.TargetClaim, "c1")
	require.NoError(t, err)
	require.Len(t, evidence, 4)
	open, err := f.store.CountOpenChallenges(ctx, "c1")
	require.NoError(t, err)

	fresh := f.eng.scorer.Credibility(claim, evidence, open, t0)
	assert.InDelta(t, fresh.Score, claim.Credibility, 1e-9, "stored score must match a recomputation over every item")

	cached, err := f.eng.ClaimScore(ctx, "c1")
	require.NoError(t, err)
	assert.InDelta(t, fresh.Score, cached.Score, 1e-9)
}

func TestReevaluatePosition_ConcurrentRequestsAllSucceed(t *testing.T) {
	f := newFixture(t)
	q := f.inquiry(t, "", "Does water boil at 100C?")
	p := f.position(t, q.ID, model.StanceSupporting, nil)
	f.evidence(t, "alice", model.TargetPosition, p.ID, model.EvidenceSupporting, 1, 1)

	_, err := f.eng.EvaluatePosition(context.Background(), p.ID)
	require.NoError(t, err)

	const n = 6
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := f.eng.ReevaluatePosition(as("alice"), p.ID)
			if assert.NoError(t, err) {
				assert.Equal(t, model.PositionCredible, got.Status)
			}
		}()
	}
	wg.Wait()
}

// stalledEmbedder never answers before the caller gives up
type stalledEmbedder struct{}

func (stalledEmbedder) Name() string { return "stalled" }

func (stalledEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// failingEmbedder is an unavailable provider
type failingEmbedder struct{}

func (failingEmbedder) Name() string { return "failing" }

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("connection refused")
}

func TestCreateInquiry_EmbeddingOutageDegrades(t *testing.T) {
	for _, tc := range []struct {
		name     string
		embedder embed.Embedder
	}{
		{"timeout", stalledEmbedder{}},
		{"unavailable", failingEmbedder{}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixtureWith(t, func(cfg *model.Config, opts *Options) {
				cfg.Embedding.Timeout = 20 * time.Millisecond
				opts.Embedder = tc.embedder
			})

			// Identical inquiries, no justification: nothing can be compared, so nothing blocks.
			for i := 0; i < 2; i++ {
				res, err := f.eng.CreateInquiry(as("alice"), InquiryInput{
					ScopeID: "water", Title: "Does water boil at 100C?", Description: "At sea level pressure.",
				})
				require.NoError(t, err)
				assert.True(t, res.Duplicates.Degraded)
				assert.Contains(t, res.Duplicates.Reason, "dependency did not respond")
				assert.Empty(t, res.Duplicates.Matches)
				assert.Empty(t, res.Inquiry.Embedding)
				assert.Equal(t, model.InquiryActive, res.Inquiry.Status)
			}
		})
	}
}
