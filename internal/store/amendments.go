package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

const amendmentColumns = `id, claim_id, inquiry_id, position_id, change_payload, explanation, status,
	trigger_kind, rejection_reason, proposed_by, created_at, decided_at`

// CreateAmendment stores a proposed amendment
func (s *SqlStore) CreateAmendment(ctx context.Context, a model.Amendment) error {
	change, err := model.MarshalChange(a.Change)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO amendments (id, claim_id, inquiry_id, position_id, change_payload, explanation,
			status, trigger_kind, proposed_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 'proposed', ?, ?, ?)`),
		a.ID, a.ClaimID, a.InquiryID, a.PositionID, string(change), a.Explanation,
		string(a.Trigger), a.ProposedBy, formatTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert amendment %s: %w", a.ID, err)
	}
	return nil
}

// GetAmendment returns an amendment by id
func (s *SqlStore) GetAmendment(ctx context.Context, id string) (model.Amendment, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+amendmentColumns+` FROM amendments WHERE id = ?`), id)
	a, err := scanAmendment(row)
	if err != nil {
		return model.Amendment{}, fmt.Errorf("get amendment %s: %w", id, err)
	}
	return a, nil
}

// ListAmendments returns a claim's amendments ordered by creation
func (s *SqlStore) ListAmendments(ctx context.Context, claimID string) ([]model.Amendment, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+amendmentColumns+` FROM amendments WHERE claim_id = ? ORDER BY created_at, id`), claimID)
	if err != nil {
		return nil, fmt.Errorf("list amendments of %s: %w", claimID, err)
	}
	defer rows.Close()

	var out []model.Amendment
	for rows.Next() {
		a, err := scanAmendment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ApplyAmendment writes the amended claim and marks the amendment applied in one transaction.
// The claim write is conditional on updated.Version still being current and the claim being
// mutable; the amendment write is conditional on it still being proposed.
func (s *SqlStore) ApplyAmendment(ctx context.Context, amendmentID string, updated model.Claim, at time.Time) error {
	props, err := marshalProperties(updated.Properties)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(`
			UPDATE claims SET title = ?, description = ?, properties = ?, version = version + 1
			WHERE id = ? AND version = ? AND level = 1`),
			updated.Title, updated.Description, props, updated.ID, updated.Version)
		if err != nil {
			return fmt.Errorf("write amended claim %s: %w", updated.ID, err)
		}
		if err := expectOne(res, "write amended claim "+updated.ID); err != nil {
			return err
		}

		res, err = tx.ExecContext(ctx, s.rebind(`
			UPDATE amendments SET status = 'applied', decided_at = ?
			WHERE id = ? AND status = 'proposed'`), formatTime(at), amendmentID)
		if err != nil {
			return fmt.Errorf("mark amendment %s applied: %w", amendmentID, err)
		}
		return expectOne(res, "mark amendment "+amendmentID+" applied")
	})
}

// RejectAmendment closes a proposed amendment with a reason
func (s *SqlStore) RejectAmendment(ctx context.Context, id, reason string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE amendments SET status = 'rejected', rejection_reason = ?, decided_at = ?
		WHERE id = ? AND status = 'proposed'`), reason, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("reject amendment %s: %w", id, err)
	}
	return expectOne(res, "reject amendment "+id)
}

func scanAmendment(r rowScanner) (model.Amendment, error) {
	var (
		a               model.Amendment
		change          string
		status, trigger string
		createdAt       string
		decidedAt       sql.NullString
	)
	if err := r.Scan(&a.ID, &a.ClaimID, &a.InquiryID, &a.PositionID, &change, &a.Explanation, &status,
		&trigger, &a.RejectionReason, &a.ProposedBy, &createdAt, &decidedAt); err != nil {
		return model.Amendment{}, err
	}
	a.Status = model.AmendmentStatus(status)
	a.Trigger = model.AmendmentTrigger(trigger)

	var err error
	if a.Change, err = model.UnmarshalChange([]byte(change)); err != nil {
		return model.Amendment{}, err
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Amendment{}, err
	}
	if a.DecidedAt, err = parseTimePtr(decidedAt); err != nil {
		return model.Amendment{}, err
	}
	return a, nil
}
