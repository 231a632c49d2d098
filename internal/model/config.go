package model

import (
	"errors"
	"fmt"
	"time"
)

// DefaultCategory is the classifier row used for unknown categories
const DefaultCategory = "default"

// Config holds the engine configuration
type Config struct {
	Store       StoreConfig                `yaml:"store" mapstructure:"store"`
	Cache       CacheConfig                `yaml:"cache" mapstructure:"cache"`
	Embedding   EmbeddingConfig            `yaml:"embedding" mapstructure:"embedding"`
	Events      EventsConfig               `yaml:"events" mapstructure:"events"`
	Scoring     ScoringConfig              `yaml:"scoring" mapstructure:"scoring"`
	Consensus   ConsensusConfig            `yaml:"consensus" mapstructure:"consensus"`
	Categories  map[string]CategoryCutoffs `yaml:"categories" mapstructure:"categories"`
	Promotion   PromotionConfig            `yaml:"promotion" mapstructure:"promotion"`
	Amendment   AmendmentConfig            `yaml:"amendment" mapstructure:"amendment"`
	Duplicates  DuplicateConfig            `yaml:"duplicates" mapstructure:"duplicates"`
	Curator     CuratorConfig              `yaml:"curator" mapstructure:"curator"`
	Sources     SourceConfig               `yaml:"sources" mapstructure:"sources"`
	Concurrency ConcurrencyConfig          `yaml:"concurrency" mapstructure:"concurrency"`
	Logging     LoggingConfig              `yaml:"logging" mapstructure:"logging"`
}

// StoreConfig selects the SQL driver ("sqlite" or "pgx") and its DSN
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// CacheConfig holds cache settings
type CacheConfig struct {
	ScoreTTL        time.Duration `yaml:"score_ttl" mapstructure:"score_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
	EmbeddingDir    string        `yaml:"embedding_dir" mapstructure:"embedding_dir"` // Empty keeps embeddings in memory only
	EmbeddingTTL    time.Duration `yaml:"embedding_ttl" mapstructure:"embedding_ttl"`
}

// EmbeddingConfig holds embedding provider settings
type EmbeddingConfig struct {
	Provider          string        `yaml:"provider" mapstructure:"provider"` // openai, ollama, hashing
	Model             string        `yaml:"model" mapstructure:"model"`
	APIKey            string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL           string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Dimensions        int           `yaml:"dimensions" mapstructure:"dimensions"` // hashing provider only
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
}

// EventsConfig holds event bus settings. An empty RedisURL disables publishing.
type EventsConfig struct {
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
	Channel  string `yaml:"channel" mapstructure:"channel"`
	Buffer   int    `yaml:"buffer" mapstructure:"buffer"`
}

// ScoringConfig holds the credibility and reputation constants
type ScoringConfig struct {
	NeutralScore        float64       `yaml:"neutral_score" mapstructure:"neutral_score"`
	ConfidencePerItem   float64       `yaml:"confidence_per_item" mapstructure:"confidence_per_item"`
	MaxConfidence       float64       `yaml:"max_confidence" mapstructure:"max_confidence"`
	ChallengePenalty    float64       `yaml:"challenge_penalty" mapstructure:"challenge_penalty"`
	MaxChallengePenalty float64       `yaml:"max_challenge_penalty" mapstructure:"max_challenge_penalty"`
	DecayHalfLife       time.Duration `yaml:"decay_half_life" mapstructure:"decay_half_life"` // 0 disables decay
	VerifiedEvidenceMin float64       `yaml:"verified_evidence_min" mapstructure:"verified_evidence_min"`
	RejectedEvidenceMax float64       `yaml:"rejected_evidence_max" mapstructure:"rejected_evidence_max"`
}

// ConsensusRule parameterizes the tally for one subject type
type ConsensusRule struct {
	MinVotes  int     `yaml:"min_votes" mapstructure:"min_votes"`
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
}

// ConsensusConfig holds the voter weight floor and per-subject rules
type ConsensusConfig struct {
	MinimumVoterWeight float64                  `yaml:"minimum_voter_weight" mapstructure:"minimum_voter_weight"`
	Rules              map[string]ConsensusRule `yaml:"rules" mapstructure:"rules"`
}

// Rule returns the rule for a subject type
func (c ConsensusConfig) Rule(t SubjectType) (ConsensusRule, bool) {
	r, ok := c.Rules[string(t)]
	return r, ok
}

// CategoryCutoffs are the lower bounds of the verified, credible and weak tiers
type CategoryCutoffs struct {
	VerifiedMin float64 `yaml:"verified_min" mapstructure:"verified_min"`
	CredibleMin float64 `yaml:"credible_min" mapstructure:"credible_min"`
	WeakMin     float64 `yaml:"weak_min" mapstructure:"weak_min"`
}

// Validate checks 0 <= weak <= credible <= verified <= 1
func (c CategoryCutoffs) Validate() error {
	if c.WeakMin < 0 || c.WeakMin > c.CredibleMin || c.CredibleMin > c.VerifiedMin || c.VerifiedMin > 1 {
		return fmt.Errorf("cutoffs must satisfy 0 <= weak (%.2f) <= credible (%.2f) <= verified (%.2f) <= 1",
			c.WeakMin, c.CredibleMin, c.VerifiedMin)
	}
	return nil
}

// PromotionConfig holds promotion gate settings
type PromotionConfig struct {
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
}

// AmendmentConfig holds amendment workflow settings
type AmendmentConfig struct {
	AutoApplyThreshold float64 `yaml:"auto_apply_threshold" mapstructure:"auto_apply_threshold"`
}

// DuplicateConfig holds duplicate detection settings
type DuplicateConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	MinJustification    int     `yaml:"min_justification" mapstructure:"min_justification"`
	MaxResults          int     `yaml:"max_results" mapstructure:"max_results"`
}

// CuratorConfig holds curator admission settings
type CuratorConfig struct {
	MinReputation float64 `yaml:"min_reputation" mapstructure:"min_reputation"`
}

// ConcurrencyConfig holds worker settings
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// LoggingConfig holds log settings
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // text or json
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "veracity.db",
		},
		Cache: CacheConfig{
			ScoreTTL:        10 * time.Minute,
			CleanupInterval: 20 * time.Minute,
			EmbeddingTTL:    7 * 24 * time.Hour,
		},
		Embedding: EmbeddingConfig{
			Provider:          "hashing",
			Model:             "text-embedding-3-small",
			Dimensions:        256,
			Timeout:           5 * time.Second,
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Events: EventsConfig{
			Channel: "veracity.events",
			Buffer:  256,
		},
		Scoring: ScoringConfig{
			NeutralScore:        0.5,
			ConfidencePerItem:   0.1,
			MaxConfidence:       0.95,
			ChallengePenalty:    0.1,
			MaxChallengePenalty: 0.5,
			DecayHalfLife:       365 * 24 * time.Hour,
			VerifiedEvidenceMin: 0.7,
			RejectedEvidenceMax: 0.3,
		},
		Consensus: ConsensusConfig{
			MinimumVoterWeight: 0.1,
			Rules: map[string]ConsensusRule{
				string(SubjectGraphPromotion):     {MinVotes: 3, Threshold: 0.7},
				string(SubjectChallenge):          {MinVotes: 3, Threshold: 0.6},
				string(SubjectCuratorApplication): {MinVotes: 5, Threshold: 0.7},
			},
		},
		Categories: map[string]CategoryCutoffs{
			DefaultCategory: {VerifiedMin: 0.9, CredibleMin: 0.7, WeakMin: 0.4},
			"scientific":    {VerifiedMin: 0.95, CredibleMin: 0.8, WeakMin: 0.5},
			"historical":    {VerifiedMin: 0.85, CredibleMin: 0.65, WeakMin: 0.35},
			"opinion":       {VerifiedMin: 0.8, CredibleMin: 0.6, WeakMin: 0.3},
		},
		Promotion: PromotionConfig{
			Threshold: 0.8,
		},
		Amendment: AmendmentConfig{
			AutoApplyThreshold: 0.85,
		},
		Duplicates: DuplicateConfig{
			SimilarityThreshold: 0.85,
			MinJustification:    100,
			MaxResults:          10,
		},
		Curator: CuratorConfig{
			MinReputation: 0.5,
		},
		Sources: defaultSourceConfig(),
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate rejects inconsistent configuration
func (c Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case "sqlite", "pgx":
	default:
		errs = append(errs, fmt.Errorf("store.driver: unsupported driver %q", c.Store.Driver))
	}

	unit := map[string]float64{
		"scoring.neutral_score":           c.Scoring.NeutralScore,
		"scoring.max_confidence":          c.Scoring.MaxConfidence,
		"scoring.max_challenge_penalty":   c.Scoring.MaxChallengePenalty,
		"scoring.verified_evidence_min":   c.Scoring.VerifiedEvidenceMin,
		"scoring.rejected_evidence_max":   c.Scoring.RejectedEvidenceMax,
		"consensus.minimum_voter_weight":  c.Consensus.MinimumVoterWeight,
		"promotion.threshold":             c.Promotion.Threshold,
		"amendment.auto_apply_threshold":  c.Amendment.AutoApplyThreshold,
		"duplicates.similarity_threshold": c.Duplicates.SimilarityThreshold,
		"curator.min_reputation":          c.Curator.MinReputation,
	}
	for name, v := range unit {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s: %.3f is outside [0,1]", name, v))
		}
	}
	if c.Scoring.ConfidencePerItem < 0 || c.Scoring.ChallengePenalty < 0 {
		errs = append(errs, errors.New("scoring: per-item increments must be non-negative"))
	}
	if c.Scoring.DecayHalfLife < 0 {
		errs = append(errs, errors.New("scoring.decay_half_life: must be >= 0"))
	}
	if c.Scoring.RejectedEvidenceMax > c.Scoring.VerifiedEvidenceMin {
		errs = append(errs, errors.New("scoring: rejected_evidence_max must not exceed verified_evidence_min"))
	}

	for _, t := range []SubjectType{SubjectGraphPromotion, SubjectChallenge, SubjectCuratorApplication} {
		rule, ok := c.Consensus.Rule(t)
		if !ok {
			errs = append(errs, fmt.Errorf("consensus.rules: missing rule for %s", t))
			continue
		}
		if rule.MinVotes < 1 || rule.Threshold < 0 || rule.Threshold > 1 {
			errs = append(errs, fmt.Errorf("consensus.rules.%s: min_votes must be >= 1 and threshold in [0,1]", t))
		}
	}

	if _, ok := c.Categories[DefaultCategory]; !ok {
		errs = append(errs, fmt.Errorf("categories: missing %q row", DefaultCategory))
	}
	for name, cut := range c.Categories {
		if err := cut.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("categories.%s: %w", name, err))
		}
	}

	if c.Duplicates.MinJustification < 0 || c.Duplicates.MaxResults < 1 {
		errs = append(errs, errors.New("duplicates: min_justification must be >= 0 and max_results >= 1"))
	}
	if c.Embedding.Timeout <= 0 {
		errs = append(errs, errors.New("embedding.timeout: must be positive"))
	}
	if c.Sources.Timeout <= 0 || c.Sources.Workers < 1 {
		errs = append(errs, errors.New("sources: timeout must be positive and workers >= 1"))
	}
	if c.Concurrency.Workers < 1 {
		errs = append(errs, errors.New("concurrency.workers: must be >= 1"))
	}

	return errors.Join(errs...)
}
