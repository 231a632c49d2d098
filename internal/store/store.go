// Package store persists the trust engine's state in SQLite or PostgreSQL.
//
// Every multi-row write runs in a single transaction, and every state transition
// is a conditional write: a transition that lost a race reports ErrConflict.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

var (
	// ErrNotFound wraps sql.ErrNoRows for lookups by id
	ErrNotFound = sql.ErrNoRows
	// ErrConflict reports a conditional write that matched no row
	ErrConflict = errors.New("conditional write matched no row")
	// ErrImmutable reports a write against a level-0 claim
	ErrImmutable = errors.New("claim is immutable")
)

// SubmittedEvidence is a claim-targeted evidence item joined with its claim's current state
type SubmittedEvidence struct {
	Item             model.EvidenceItem
	ClaimCredibility float64
	ClaimImmutable   bool
}

// Store is the persistence surface used by the engine
type Store interface {
	// Graphs and claims
	CreateGraph(ctx context.Context, g model.Graph) error
	GetGraph(ctx context.Context, id string) (model.Graph, error)
	CreateClaim(ctx context.Context, c model.Claim) error
	GetClaim(ctx context.Context, id string) (model.Claim, error)
	ListGraphClaims(ctx context.Context, graphID string) ([]model.Claim, error)
	ListMutableClaimIDs(ctx context.Context) ([]string, error)
	UpdateCredibility(ctx context.Context, claimID string, score float64, at time.Time) error

	// Evidence ledger
	AppendEvidence(ctx context.Context, e model.EvidenceItem) error
	ListEvidence(ctx context.Context, kind model.TargetKind, targetID string) ([]model.EvidenceItem, error)
	ListGraphEvidence(ctx context.Context, graphID string) ([]model.EvidenceItem, error)
	ListSubmittedEvidence(ctx context.Context, userID string) ([]SubmittedEvidence, error)

	// Challenges
	CreateChallenge(ctx context.Context, c model.Challenge) error
	GetChallenge(ctx context.Context, id string) (model.Challenge, error)
	CountOpenChallenges(ctx context.Context, claimID string) (int, error)
	CountOpenGraphChallenges(ctx context.Context, graphID string) (int, error)
	ResolveChallenge(ctx context.Context, id string, status model.ChallengeStatus, at time.Time) error

	// Consensus
	UpsertVote(ctx context.Context, v model.ConsensusVote) error
	ListVotes(ctx context.Context, subjectType model.SubjectType, subjectID string) ([]model.ConsensusVote, error)
	GetOutcome(ctx context.Context, subjectType model.SubjectType, subjectID string) (model.SubjectOutcome, error)
	ReputationCounters(ctx context.Context, userID string) (model.ReputationStats, error)

	// Curator applications
	CreateCuratorApplication(ctx context.Context, a model.CuratorApplication) error
	GetCuratorApplication(ctx context.Context, id string) (model.CuratorApplication, error)
	DecideCuratorApplication(ctx context.Context, id string, status model.ApplicationStatus, at time.Time) error

	// Methodology and promotion
	DefineMethodologyStep(ctx context.Context, step model.MethodologyStep) error
	CompleteMethodologyStep(ctx context.Context, graphID, stepID, userID string, at time.Time) error
	ListMethodologySteps(ctx context.Context, graphID string) ([]model.MethodologyStep, error)
	PromoteGraph(ctx context.Context, event model.PromotionEvent) error
	GetPromotionEvent(ctx context.Context, graphID string) (model.PromotionEvent, error)

	// Amendments
	CreateAmendment(ctx context.Context, a model.Amendment) error
	GetAmendment(ctx context.Context, id string) (model.Amendment, error)
	ListAmendments(ctx context.Context, claimID string) ([]model.Amendment, error)
	ApplyAmendment(ctx context.Context, amendmentID string, updated model.Claim, at time.Time) error
	RejectAmendment(ctx context.Context, id, reason string, at time.Time) error

	// Inquiries and positions
	CreateInquiry(ctx context.Context, q model.Inquiry) error
	GetInquiry(ctx context.Context, id string) (model.Inquiry, error)
	ListActiveInquiries(ctx context.Context, scopeID, category string) ([]model.Inquiry, error)
	MergeInquiries(ctx context.Context, sourceID, targetID string) error
	CreatePosition(ctx context.Context, p model.Position) error
	GetPosition(ctx context.Context, id string) (model.Position, error)
	ListPositions(ctx context.Context, inquiryID string) ([]model.Position, error)
	TransitionPosition(ctx context.Context, p model.Position, from model.PositionStatus) error

	Close() error
}

// SqlStore implements Store over database/sql
type SqlStore struct {
	db      *sql.DB
	dialect Dialect
}

var _ Store = (*SqlStore)(nil)

// DB exposes the underlying handle
func (s *SqlStore) DB() *sql.DB {
	return s.db
}

// Dialect reports the SQL dialect in use
func (s *SqlStore) Dialect() Dialect {
	return s.dialect
}

// Close closes the database
func (s *SqlStore) Close() error {
	return s.db.Close()
}

func nowUTC() time.Time { return time.Now().UTC() }
