package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

// UpsertVote records a vote; a second vote by the same voter on the same subject replaces the first
func (s *SqlStore) UpsertVote(ctx context.Context, v model.ConsensusVote) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO votes (subject_type, subject_id, voter_id, value, reputation, weight, cast_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (subject_type, subject_id, voter_id) DO UPDATE SET
			value = excluded.value,
			reputation = excluded.reputation,
			weight = excluded.weight,
			cast_at = excluded.cast_at`),
		string(v.SubjectType), v.SubjectID, v.VoterID, v.Value, v.Reputation, v.Weight, formatTime(v.CastAt))
	if err != nil {
		return fmt.Errorf("upsert vote on %s %s by %s: %w", v.SubjectType, v.SubjectID, v.VoterID, err)
	}
	return nil
}

// ListVotes returns the current votes on a subject
func (s *SqlStore) ListVotes(ctx context.Context, subjectType model.SubjectType, subjectID string) ([]model.ConsensusVote, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT subject_type, subject_id, voter_id, value, reputation, weight, cast_at
		FROM votes WHERE subject_type = ? AND subject_id = ?
		ORDER BY voter_id`), string(subjectType), subjectID)
	if err != nil {
		return nil, fmt.Errorf("list votes on %s %s: %w", subjectType, subjectID, err)
	}
	defer rows.Close()

	var out []model.ConsensusVote
	for rows.Next() {
		var (
			v      model.ConsensusVote
			st     string
			castAt string
		)
		if err := rows.Scan(&st, &v.SubjectID, &v.VoterID, &v.Value, &v.Reputation, &v.Weight, &castAt); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		v.SubjectType = model.SubjectType(st)
		if v.CastAt, err = parseTime(castAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetOutcome returns the decided outcome of a subject
func (s *SqlStore) GetOutcome(ctx context.Context, subjectType model.SubjectType, subjectID string) (model.SubjectOutcome, error) {
	var (
		o       model.SubjectOutcome
		decided string
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT outcome, decided_at FROM subject_outcomes
		WHERE subject_type = ? AND subject_id = ?`), string(subjectType), subjectID).Scan(&o.Outcome, &decided)
	if err != nil {
		return model.SubjectOutcome{}, fmt.Errorf("get outcome of %s %s: %w", subjectType, subjectID, err)
	}
	o.SubjectType = subjectType
	o.SubjectID = subjectID
	if o.DecidedAt, err = parseTime(decided); err != nil {
		return model.SubjectOutcome{}, err
	}
	return o, nil
}

func (s *SqlStore) recordOutcome(ctx context.Context, tx *sql.Tx, subjectType model.SubjectType, subjectID string, outcome float64, at time.Time) error {
	_, err := tx.ExecContext(ctx, s.rebind(`
		INSERT INTO subject_outcomes (subject_type, subject_id, outcome, decided_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (subject_type, subject_id) DO UPDATE SET
			outcome = excluded.outcome,
			decided_at = excluded.decided_at`),
		string(subjectType), subjectID, outcome, formatTime(at))
	if err != nil {
		return fmt.Errorf("record outcome of %s %s: %w", subjectType, subjectID, err)
	}
	return nil
}

// ReputationCounters fills the vote, methodology and challenge counters of a user's stats.
// Evidence counters are derived by the scorer from ListSubmittedEvidence.
func (s *SqlStore) ReputationCounters(ctx context.Context, userID string) (model.ReputationStats, error) {
	stats := model.ReputationStats{UserID: userID}

	var cast int64
	if err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM votes WHERE voter_id = ?`), userID).
		Scan(&cast); err != nil {
		return stats, fmt.Errorf("count votes of %s: %w", userID, err)
	}

	var decided, aligned int64
	if err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN (v.value >= 0.5 AND o.outcome >= 0.5)
		                           OR (v.value < 0.5 AND o.outcome < 0.5) THEN 1 ELSE 0 END), 0)
		FROM votes v
		JOIN subject_outcomes o ON o.subject_type = v.subject_type AND o.subject_id = v.subject_id
		WHERE v.voter_id = ?`), userID).Scan(&decided, &aligned); err != nil {
		return stats, fmt.Errorf("count decided votes of %s: %w", userID, err)
	}

	var completions int64
	if err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT COUNT(*) FROM methodology_steps WHERE completed_by = ?`), userID).Scan(&completions); err != nil {
		return stats, fmt.Errorf("count methodology completions of %s: %w", userID, err)
	}

	var raised, resolved int64
	if err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN status <> 'open' THEN 1 ELSE 0 END), 0)
		FROM challenges WHERE raised_by = ?`), userID).Scan(&raised, &resolved); err != nil {
		return stats, fmt.Errorf("count challenges of %s: %w", userID, err)
	}

	stats.VotesCast = int(cast)
	stats.VotesDecided = int(decided)
	stats.VotesAligned = int(aligned)
	stats.MethodologyCompletions = int(completions)
	stats.ChallengesRaised = int(raised)
	stats.ChallengesResolved = int(resolved)
	return stats, nil
}

// CreateChallenge opens a challenge against a claim
func (s *SqlStore) CreateChallenge(ctx context.Context, c model.Challenge) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO challenges (id, claim_id, raised_by, reason, status, created_at)
		VALUES (?, ?, ?, ?, 'open', ?)`),
		c.ID, c.ClaimID, c.RaisedBy, c.Reason, formatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert challenge %s: %w", c.ID, err)
	}
	return nil
}

// GetChallenge returns a challenge by id
func (s *SqlStore) GetChallenge(ctx context.Context, id string) (model.Challenge, error) {
	var (
		c          model.Challenge
		status     string
		createdAt  string
		resolvedAt sql.NullString
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, claim_id, raised_by, reason, status, created_at, resolved_at
		FROM challenges WHERE id = ?`), id).
		Scan(&c.ID, &c.ClaimID, &c.RaisedBy, &c.Reason, &status, &createdAt, &resolvedAt)
	if err != nil {
		return model.Challenge{}, fmt.Errorf("get challenge %s: %w", id, err)
	}
	c.Status = model.ChallengeStatus(status)
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Challenge{}, err
	}
	if c.ResolvedAt, err = parseTimePtr(resolvedAt); err != nil {
		return model.Challenge{}, err
	}
	return c, nil
}

// CountOpenChallenges counts the open challenges of a claim
func (s *SqlStore) CountOpenChallenges(ctx context.Context, claimID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT COUNT(*) FROM challenges WHERE claim_id = ? AND status = 'open'`), claimID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count open challenges of %s: %w", claimID, err)
	}
	return n, nil
}

// CountOpenGraphChallenges counts the open challenges across a graph's member claims
func (s *SqlStore) CountOpenGraphChallenges(ctx context.Context, graphID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT COUNT(*) FROM challenges ch
		JOIN claims c ON c.id = ch.claim_id
		WHERE c.graph_id = ? AND ch.status = 'open'`), graphID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count open challenges of graph %s: %w", graphID, err)
	}
	return n, nil
}

// ResolveChallenge closes an open challenge and records the subject outcome
// (upheld = 1, dismissed = 0) in the same transaction.
func (s *SqlStore) ResolveChallenge(ctx context.Context, id string, status model.ChallengeStatus, at time.Time) error {
	if status != model.ChallengeUpheld && status != model.ChallengeDismissed {
		return fmt.Errorf("resolve challenge %s: invalid status %q", id, status)
	}
	outcome := 0.0
	if status == model.ChallengeUpheld {
		outcome = 1
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(`
			UPDATE challenges SET status = ?, resolved_at = ?
			WHERE id = ? AND status = 'open'`), string(status), formatTime(at), id)
		if err != nil {
			return fmt.Errorf("resolve challenge %s: %w", id, err)
		}
		if err := expectOne(res, "resolve challenge "+id); err != nil {
			return err
		}
		return s.recordOutcome(ctx, tx, model.SubjectChallenge, id, outcome, at)
	})
}

// CreateCuratorApplication stores a pending application
func (s *SqlStore) CreateCuratorApplication(ctx context.Context, a model.CuratorApplication) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO curator_applications (id, user_id, statement, status, created_at)
		VALUES (?, ?, ?, 'pending', ?)`),
		a.ID, a.UserID, a.Statement, formatTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert curator application %s: %w", a.ID, err)
	}
	return nil
}

// GetCuratorApplication returns an application by id
func (s *SqlStore) GetCuratorApplication(ctx context.Context, id string) (model.CuratorApplication, error) {
	var (
		a         model.CuratorApplication
		status    string
		createdAt string
		decidedAt sql.NullString
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, user_id, statement, status, created_at, decided_at
		FROM curator_applications WHERE id = ?`), id).
		Scan(&a.ID, &a.UserID, &a.Statement, &status, &createdAt, &decidedAt)
	if err != nil {
		return model.CuratorApplication{}, fmt.Errorf("get curator application %s: %w", id, err)
	}
	a.Status = model.ApplicationStatus(status)
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.CuratorApplication{}, err
	}
	if a.DecidedAt, err = parseTimePtr(decidedAt); err != nil {
		return model.CuratorApplication{}, err
	}
	return a, nil
}

// DecideCuratorApplication moves a pending application to approved or rejected
// and records the subject outcome in the same transaction.
func (s *SqlStore) DecideCuratorApplication(ctx context.Context, id string, status model.ApplicationStatus, at time.Time) error {
	if status != model.ApplicationApproved && status != model.ApplicationRejected {
		return fmt.Errorf("decide curator application %s: invalid status %q", id, status)
	}
	outcome := 0.0
	if status == model.ApplicationApproved {
		outcome = 1
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(`
			UPDATE curator_applications SET status = ?, decided_at = ?
			WHERE id = ? AND status = 'pending'`), string(status), formatTime(at), id)
		if err != nil {
			return fmt.Errorf("decide curator application %s: %w", id, err)
		}
		if err := expectOne(res, "decide curator application "+id); err != nil {
			return err
		}
		return s.recordOutcome(ctx, tx, model.SubjectCuratorApplication, id, outcome, at)
	})
}
