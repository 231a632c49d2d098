package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

// DefineMethodologyStep adds a step to a graph's methodology or updates its title and required flag
func (s *SqlStore) DefineMethodologyStep(ctx context.Context, step model.MethodologyStep) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO methodology_steps (graph_id, step_id, title, required)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (graph_id, step_id) DO UPDATE SET
			title = excluded.title,
			required = excluded.required`),
		step.GraphID, step.StepID, step.Title, boolInt(step.Required))
	if err != nil {
		return fmt.Errorf("define methodology step %s/%s: %w", step.GraphID, step.StepID, err)
	}
	return nil
}

// CompleteMethodologyStep marks a step done. A step can only be completed once.
func (s *SqlStore) CompleteMethodologyStep(ctx context.Context, graphID, stepID, userID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE methodology_steps SET completed_by = ?, completed_at = ?
		WHERE graph_id = ? AND step_id = ? AND completed_at IS NULL`),
		userID, formatTime(at), graphID, stepID)
	if err != nil {
		return fmt.Errorf("complete methodology step %s/%s: %w", graphID, stepID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete methodology step %s/%s: %w", graphID, stepID, err)
	}
	if n == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx, s.rebind(`
			SELECT COUNT(*) FROM methodology_steps WHERE graph_id = ? AND step_id = ?`), graphID, stepID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("complete methodology step %s/%s: %w", graphID, stepID, err)
		}
		if exists == 0 {
			return fmt.Errorf("complete methodology step %s/%s: %w", graphID, stepID, ErrNotFound)
		}
		return fmt.Errorf("complete methodology step %s/%s: %w", graphID, stepID, ErrConflict)
	}
	return nil
}

// ListMethodologySteps returns a graph's steps ordered by id
func (s *SqlStore) ListMethodologySteps(ctx context.Context, graphID string) ([]model.MethodologyStep, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT graph_id, step_id, title, required, completed_by, completed_at
		FROM methodology_steps WHERE graph_id = ? ORDER BY step_id`), graphID)
	if err != nil {
		return nil, fmt.Errorf("list methodology steps of %s: %w", graphID, err)
	}
	defer rows.Close()

	var out []model.MethodologyStep
	for rows.Next() {
		var (
			st          model.MethodologyStep
			required    int
			completedBy sql.NullString
			completedAt sql.NullString
		)
		if err := rows.Scan(&st.GraphID, &st.StepID, &st.Title, &required, &completedBy, &completedAt); err != nil {
			return nil, fmt.Errorf("scan methodology step: %w", err)
		}
		st.Required = required != 0
		st.CompletedBy = nullStr(completedBy)
		if st.CompletedAt, err = parseTimePtr(completedAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// PromoteGraph moves a graph and its member claims to level 0 and appends the audit record.
// The level flip is a compare-and-set: callers that lose the race get ErrConflict and nothing is written.
func (s *SqlStore) PromoteGraph(ctx context.Context, event model.PromotionEvent) error {
	snapshot, err := json.Marshal(event.Eligibility)
	if err != nil {
		return fmt.Errorf("encode eligibility: %w", err)
	}
	at := formatTime(event.CreatedAt)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(`
			UPDATE graphs SET level = 0, version = version + 1
			WHERE id = ? AND level = 1`), event.GraphID)
		if err != nil {
			return fmt.Errorf("promote graph %s: %w", event.GraphID, err)
		}
		if err := expectOne(res, "promote graph "+event.GraphID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, s.rebind(`
			UPDATE claims SET level = 0, credibility = 1.0, recalculated_at = ?, version = version + 1
			WHERE graph_id = ?`), at, event.GraphID); err != nil {
			return fmt.Errorf("pin claims of graph %s: %w", event.GraphID, err)
		}

		if _, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO promotion_events (id, graph_id, from_level, to_level, requested_by, eligibility, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`),
			event.ID, event.GraphID, int(event.FromLevel), int(event.ToLevel), event.RequestedBy,
			string(snapshot), at); err != nil {
			return fmt.Errorf("append promotion event for %s: %w", event.GraphID, err)
		}

		return s.recordOutcome(ctx, tx, model.SubjectGraphPromotion, event.GraphID, 1, event.CreatedAt)
	})
}

// GetPromotionEvent returns the audit record of a promoted graph
func (s *SqlStore) GetPromotionEvent(ctx context.Context, graphID string) (model.PromotionEvent, error) {
	var (
		ev        model.PromotionEvent
		from, to  int
		snapshot  string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, graph_id, from_level, to_level, requested_by, eligibility, created_at
		FROM promotion_events WHERE graph_id = ?`), graphID).
		Scan(&ev.ID, &ev.GraphID, &from, &to, &ev.RequestedBy, &snapshot, &createdAt)
	if err != nil {
		return model.PromotionEvent{}, fmt.Errorf("get promotion event of %s: %w", graphID, err)
	}
	ev.FromLevel = model.Level(from)
	ev.ToLevel = model.Level(to)
	if err := json.Unmarshal([]byte(snapshot), &ev.Eligibility); err != nil {
		return model.PromotionEvent{}, fmt.Errorf("decode eligibility of %s: %w", graphID, err)
	}
	if ev.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.PromotionEvent{}, err
	}
	return ev, nil
}

// CountPromotionEvents counts audit records for a graph
func (s *SqlStore) CountPromotionEvents(ctx context.Context, graphID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM promotion_events WHERE graph_id = ?`), graphID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count promotion events of %s: %w", graphID, err)
	}
	return n, nil
}
