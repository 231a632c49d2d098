package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ppiankov/veracity/internal/model"
)

const inquiryColumns = `id, claim_id, scope_id, category, title, description, embedding, status,
	merged_into, created_by, created_at`

const positionColumns = `id, inquiry_id, stance, argument, evidence_type_weight, status, score,
	proposed_change, failure_reason, submitted_by, created_at, evaluated_at`

// CreateInquiry stores an active inquiry with its embedding (if any)
func (s *SqlStore) CreateInquiry(ctx context.Context, q model.Inquiry) error {
	var embedding sql.NullString
	if len(q.Embedding) > 0 {
		data, err := json.Marshal(q.Embedding)
		if err != nil {
			return fmt.Errorf("encode embedding: %w", err)
		}
		embedding = sql.NullString{String: string(data), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO inquiries (`+inquiryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'active', '', ?, ?)`),
		q.ID, q.ClaimID, q.ScopeID, q.Category, q.Title, q.Description, embedding,
		q.CreatedBy, formatTime(q.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert inquiry %s: %w", q.ID, err)
	}
	return nil
}

// GetInquiry returns an inquiry by id
func (s *SqlStore) GetInquiry(ctx context.Context, id string) (model.Inquiry, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+inquiryColumns+` FROM inquiries WHERE id = ?`), id)
	q, err := scanInquiry(row)
	if err != nil {
		return model.Inquiry{}, fmt.Errorf("get inquiry %s: %w", id, err)
	}
	return q, nil
}

// ListActiveInquiries returns the active inquiries of a scope and category that carry an embedding
func (s *SqlStore) ListActiveInquiries(ctx context.Context, scopeID, category string) ([]model.Inquiry, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+inquiryColumns+` FROM inquiries
		WHERE scope_id = ? AND category = ? AND status = 'active' AND embedding IS NOT NULL
		ORDER BY created_at, id`), scopeID, category)
	if err != nil {
		return nil, fmt.Errorf("list inquiries of %s/%s: %w", scopeID, category, err)
	}
	defer rows.Close()

	var out []model.Inquiry
	for rows.Next() {
		q, err := scanInquiry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// MergeInquiries moves the source's positions and inquiry evidence to the target and marks the
// source merged. Both must be active; the whole move is one transaction.
func (s *SqlStore) MergeInquiries(ctx context.Context, sourceID, targetID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var active int
		if err := tx.QueryRowContext(ctx, s.rebind(`
			SELECT COUNT(*) FROM inquiries WHERE id IN (?, ?) AND status = 'active'`), sourceID, targetID).
			Scan(&active); err != nil {
			return fmt.Errorf("check inquiries %s and %s: %w", sourceID, targetID, err)
		}
		if active != 2 {
			return fmt.Errorf("merge %s into %s: both inquiries must be active: %w", sourceID, targetID, ErrConflict)
		}

		if _, err := tx.ExecContext(ctx, s.rebind(`
			UPDATE positions SET inquiry_id = ? WHERE inquiry_id = ?`), targetID, sourceID); err != nil {
			return fmt.Errorf("move positions of %s: %w", sourceID, err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`
			UPDATE evidence SET target_id = ?
			WHERE target_kind = 'inquiry' AND target_id = ?`), targetID, sourceID); err != nil {
			return fmt.Errorf("move evidence of %s: %w", sourceID, err)
		}

		res, err := tx.ExecContext(ctx, s.rebind(`
			UPDATE inquiries SET status = 'merged', merged_into = ?
			WHERE id = ? AND status = 'active'`), targetID, sourceID)
		if err != nil {
			return fmt.Errorf("mark %s merged: %w", sourceID, err)
		}
		return expectOne(res, "mark "+sourceID+" merged")
	})
}

// CreatePosition stores a position pending evaluation
func (s *SqlStore) CreatePosition(ctx context.Context, p model.Position) error {
	change, err := model.MarshalChange(p.ProposedChange)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO positions (`+positionColumns+`)
		VALUES (?, ?, ?, ?, ?, 'pending_evaluation', 0, ?, '', ?, ?, NULL)`),
		p.ID, p.InquiryID, string(p.Stance), p.Argument, p.EvidenceTypeWeight, nullBytes(change),
		p.SubmittedBy, formatTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert position %s: %w", p.ID, err)
	}
	return nil
}

// GetPosition returns a position by id
func (s *SqlStore) GetPosition(ctx context.Context, id string) (model.Position, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+positionColumns+` FROM positions WHERE id = ?`), id)
	p, err := scanPosition(row)
	if err != nil {
		return model.Position{}, fmt.Errorf("get position %s: %w", id, err)
	}
	return p, nil
}

// ListPositions returns an inquiry's positions ordered by creation
func (s *SqlStore) ListPositions(ctx context.Context, inquiryID string) ([]model.Position, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+positionColumns+` FROM positions WHERE inquiry_id = ? ORDER BY created_at, id`), inquiryID)
	if err != nil {
		return nil, fmt.Errorf("list positions of %s: %w", inquiryID, err)
	}
	defer rows.Close()

	var out []model.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// TransitionPosition writes p's status, score, failure reason and evaluation time,
// provided the stored status is still from.
func (s *SqlStore) TransitionPosition(ctx context.Context, p model.Position, from model.PositionStatus) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE positions SET status = ?, score = ?, failure_reason = ?, evaluated_at = ?
		WHERE id = ? AND status = ?`),
		string(p.Status), p.Score, p.FailureReason, formatTimePtr(p.EvaluatedAt), p.ID, string(from))
	if err != nil {
		return fmt.Errorf("transition position %s: %w", p.ID, err)
	}
	return expectOne(res, fmt.Sprintf("transition position %s from %s", p.ID, from))
}

func scanInquiry(r rowScanner) (model.Inquiry, error) {
	var (
		q         model.Inquiry
		embedding sql.NullString
		status    string
		createdAt string
	)
	if err := r.Scan(&q.ID, &q.ClaimID, &q.ScopeID, &q.Category, &q.Title, &q.Description, &embedding,
		&status, &q.MergedInto, &q.CreatedBy, &createdAt); err != nil {
		return model.Inquiry{}, err
	}
	q.Status = model.InquiryStatus(status)
	if embedding.Valid && embedding.String != "" {
		if err := json.Unmarshal([]byte(embedding.String), &q.Embedding); err != nil {
			return model.Inquiry{}, fmt.Errorf("decode embedding of %s: %w", q.ID, err)
		}
	}
	var err error
	if q.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Inquiry{}, err
	}
	return q, nil
}

func scanPosition(r rowScanner) (model.Position, error) {
	var (
		p           model.Position
		stance      string
		status      string
		change      sql.NullString
		createdAt   string
		evaluatedAt sql.NullString
	)
	if err := r.Scan(&p.ID, &p.InquiryID, &stance, &p.Argument, &p.EvidenceTypeWeight, &status, &p.Score,
		&change, &p.FailureReason, &p.SubmittedBy, &createdAt, &evaluatedAt); err != nil {
		return model.Position{}, err
	}
	p.Stance = model.Stance(stance)
	p.Status = model.PositionStatus(status)

	var err error
	if p.ProposedChange, err = model.UnmarshalChange([]byte(nullStr(change))); err != nil {
		return model.Position{}, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Position{}, err
	}
	if p.EvaluatedAt, err = parseTimePtr(evaluatedAt); err != nil {
		return model.Position{}, err
	}
	return p, nil
}
