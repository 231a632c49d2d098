package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ppiankov/veracity/internal/model"
)

const evidenceColumns = `id, target_kind, target_id, type, weight, confidence, source, evaluation, submitted_by, created_at`

// AppendEvidence adds an item to the ledger. Claim-targeted items are only written while the
// claim is at level 1; the check and the insert are one statement.
func (s *SqlStore) AppendEvidence(ctx context.Context, e model.EvidenceItem) error {
	eval, err := model.MarshalEvaluation(e.Evaluation)
	if err != nil {
		return err
	}
	args := []any{
		e.ID, string(e.TargetKind), e.TargetID, string(e.Type), e.Weight, e.Confidence,
		e.Source, nullBytes(eval), e.SubmittedBy, formatTime(e.CreatedAt),
	}

	if e.TargetKind != model.TargetClaim {
		_, err := s.db.ExecContext(ctx, s.rebind(`
			INSERT INTO evidence (`+evidenceColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`), args...)
		if err != nil {
			return fmt.Errorf("insert evidence %s: %w", e.ID, err)
		}
		return nil
	}

	res, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO evidence (`+evidenceColumns+`)
		SELECT CAST(? AS TEXT), CAST(? AS TEXT), CAST(? AS TEXT), CAST(? AS TEXT),
		       CAST(? AS DOUBLE PRECISION), CAST(? AS DOUBLE PRECISION), CAST(? AS TEXT),
		       CAST(? AS TEXT), CAST(? AS TEXT), CAST(? AS TEXT)
		WHERE EXISTS (SELECT 1 FROM claims WHERE id = ? AND level = 1)`), append(args, e.TargetID)...)
	if err != nil {
		return fmt.Errorf("insert evidence %s: %w", e.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert evidence %s: %w", e.ID, err)
	}
	if n == 0 {
		if _, err := s.GetClaim(ctx, e.TargetID); err != nil {
			return err
		}
		return fmt.Errorf("insert evidence %s: %w", e.ID, ErrImmutable)
	}
	return nil
}

// ListEvidence returns the items attached to one target ordered by creation
func (s *SqlStore) ListEvidence(ctx context.Context, kind model.TargetKind, targetID string) ([]model.EvidenceItem, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+evidenceColumns+` FROM evidence
		WHERE target_kind = ? AND target_id = ?
		ORDER BY created_at, id`), string(kind), targetID)
	if err != nil {
		return nil, fmt.Errorf("list evidence of %s %s: %w", kind, targetID, err)
	}
	defer rows.Close()
	return collectEvidence(rows)
}

// ListGraphEvidence returns every item attached to a member claim of the graph
func (s *SqlStore) ListGraphEvidence(ctx context.Context, graphID string) ([]model.EvidenceItem, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT e.id, e.target_kind, e.target_id, e.type, e.weight, e.confidence, e.source,
		       e.evaluation, e.submitted_by, e.created_at
		FROM evidence e
		JOIN claims c ON c.id = e.target_id
		WHERE e.target_kind = 'claim' AND c.graph_id = ?
		ORDER BY e.created_at, e.id`), graphID)
	if err != nil {
		return nil, fmt.Errorf("list evidence of graph %s: %w", graphID, err)
	}
	defer rows.Close()
	return collectEvidence(rows)
}

// ListSubmittedEvidence returns a user's claim evidence with each claim's current credibility
func (s *SqlStore) ListSubmittedEvidence(ctx context.Context, userID string) ([]SubmittedEvidence, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT e.id, e.target_kind, e.target_id, e.type, e.weight, e.confidence, e.source,
		       e.evaluation, e.submitted_by, e.created_at, c.credibility, c.level
		FROM evidence e
		JOIN claims c ON c.id = e.target_id
		WHERE e.target_kind = 'claim' AND e.submitted_by = ?
		ORDER BY e.created_at, e.id`), userID)
	if err != nil {
		return nil, fmt.Errorf("list evidence submitted by %s: %w", userID, err)
	}
	defer rows.Close()

	var out []SubmittedEvidence
	for rows.Next() {
		var (
			se    SubmittedEvidence
			level int
		)
		item, err := scanEvidence(rows, &se.ClaimCredibility, &level)
		if err != nil {
			return nil, err
		}
		se.Item = item
		se.ClaimImmutable = model.Level(level) == model.LevelImmutable
		out = append(out, se)
	}
	return out, rows.Err()
}

func collectEvidence(rows *sql.Rows) ([]model.EvidenceItem, error) {
	var out []model.EvidenceItem
	for rows.Next() {
		e, err := scanEvidence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// scanEvidence reads the evidence columns followed by any extra destinations
func scanEvidence(r rowScanner, extra ...any) (model.EvidenceItem, error) {
	var (
		e         model.EvidenceItem
		kind, typ string
		eval      sql.NullString
		createdAt string
	)
	dest := append([]any{&e.ID, &kind, &e.TargetID, &typ, &e.Weight, &e.Confidence, &e.Source,
		&eval, &e.SubmittedBy, &createdAt}, extra...)
	if err := r.Scan(dest...); err != nil {
		return model.EvidenceItem{}, fmt.Errorf("scan evidence: %w", err)
	}
	e.TargetKind = model.TargetKind(kind)
	e.Type = model.EvidenceType(typ)

	var err error
	if e.Evaluation, err = model.UnmarshalEvaluation([]byte(nullStr(eval))); err != nil {
		return model.EvidenceItem{}, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.EvidenceItem{}, err
	}
	return e, nil
}
