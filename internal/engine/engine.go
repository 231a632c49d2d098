// Package engine turns contributions (evidence, votes, challenges, positions) into trust
// signals and gates the irreversible transitions: promotion, amendment and curator admission.
//
// Identity is taken from the request context (see identity.WithActor); the engine never
// authenticates. Scores are recomputed from the store; the score cache is a read-through
// copy that a recomputation always overwrites.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ppiankov/veracity/internal/apperr"
	"github.com/ppiankov/veracity/internal/cache"
	"github.com/ppiankov/veracity/internal/dedupe"
	"github.com/ppiankov/veracity/internal/embed"
	"github.com/ppiankov/veracity/internal/events"
	"github.com/ppiankov/veracity/internal/identity"
	"github.com/ppiankov/veracity/internal/logging"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/score"
	"github.com/ppiankov/veracity/internal/store"
)

// Options carries the collaborators of an Engine. Store is required; the rest default
// to a hashing embedder, a no-op publisher, an in-memory score cache and the wall clock.
type Options struct {
	Store      store.Store
	Embedder   embed.Embedder
	Publisher  events.Publisher
	ScoreCache cache.Cache
	Sources    SourceVerifier
	Logger     *slog.Logger
	Clock      func() time.Time
}

// SourceVerifier checks the URL cited by an evidence item. Implemented by source.Checker.
type SourceVerifier interface {
	Check(ctx context.Context, url string) model.SourceCheck
}

// Engine is the trust and consensus engine
type Engine struct {
	store      store.Store
	scorer     *score.Scorer
	classifier *score.Classifier
	detector   *dedupe.Detector
	publisher  events.Publisher
	scores     cache.Cache
	sources    SourceVerifier
	cfg        model.Config
	locks      *keyedLocks
	validate   *validator.Validate
	logger     *slog.Logger
	now        func() time.Time
}

// New creates an engine from a validated configuration
func New(cfg model.Config, opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("engine: store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	classifier, err := score.NewClassifier(cfg.Categories)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.New("engine")
	}
	embedder := opts.Embedder
	if embedder == nil {
		embedder = embed.NewHashingEmbedder(cfg.Embedding.Dimensions)
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.Nop{}
	}
	scores := opts.ScoreCache
	if scores == nil {
		scores = cache.NewMemoryCache(cfg.Cache.ScoreTTL, cfg.Cache.CleanupInterval)
	}
	clock := opts.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	return &Engine{
		store:      opts.Store,
		scorer:     score.NewScorer(cfg.Scoring),
		classifier: classifier,
		detector:   dedupe.NewDetector(embedder, opts.Store, cfg.Duplicates, cfg.Embedding.Timeout, logger.With("component", "dedupe")),
		publisher:  publisher,
		scores:     scores,
		sources:    opts.Sources,
		cfg:        cfg,
		locks:      newKeyedLocks(),
		validate:   validator.New(),
		logger:     logger,
		now:        clock,
	}, nil
}

// Config returns the engine configuration
func (e *Engine) Config() model.Config {
	return e.cfg
}

func actorFrom(ctx context.Context) (string, bool) {
	return identity.ActorFrom(ctx)
}

// actor returns the acting user or a validation error for mutating operations
func actor(ctx context.Context, op string) (string, error) {
	id, ok := actorFrom(ctx)
	if !ok {
		return "", apperr.Validation(op, "an acting user is required")
	}
	return id, nil
}

// check validates an input struct and folds field errors into one validation error
func (e *Engine) check(op string, in any) error {
	err := e.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation(op, "%v", err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
		if fe.Param() != "" {
			fields[fe.Field()] += "=" + fe.Param()
		}
	}
	verr := apperr.Validation(op, "invalid %s", verrs[0].Field())
	verr.Details = fields
	return verr
}

// storeErr maps store sentinels onto the engine's error kinds
func storeErr(op, what, id string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound(op, what, id)
	case errors.Is(err, store.ErrConflict):
		return apperr.Conflict(op, "%s %q was changed concurrently", what, id)
	case errors.Is(err, store.ErrImmutable):
		return apperr.Validation(op, "%s %q is immutable", what, id)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func newID() string {
	return uuid.NewString()
}

// publish hands an event to the publisher; delivery failures are logged, never returned
func (e *Engine) publish(ctx context.Context, ev events.Event) {
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.logger.Warn("publish event", "type", ev.Type, "subject", ev.SubjectID, "error", err)
	}
}

// cacheScore writes a freshly computed result to the read-through cache
func (e *Engine) cacheScore(claimID string, result score.CredibilityResult) {
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := e.scores.Set(cache.ScoreKey(claimID), data, e.cfg.Cache.ScoreTTL); err != nil {
		e.logger.Debug("cache score", "claim", claimID, "error", err)
	}
}

func (e *Engine) cachedScore(claimID string) (score.CredibilityResult, bool) {
	data, ok := e.scores.Get(cache.ScoreKey(claimID))
	if !ok {
		return score.CredibilityResult{}, false
	}
	var result score.CredibilityResult
	if err := json.Unmarshal(data, &result); err != nil {
		_ = e.scores.Delete(cache.ScoreKey(claimID))
		return score.CredibilityResult{}, false
	}
	return result, true
}
