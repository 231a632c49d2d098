package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

const claimColumns = `id, graph_id, kind, title, description, properties, level, credibility,
	recalculated_at, version, created_by, created_at`

// CreateGraph inserts a graph. New graphs always start at level 1; only promotion lowers the level.
func (s *SqlStore) CreateGraph(ctx context.Context, g model.Graph) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO graphs (id, title, category, level, version, created_by, created_at)
		VALUES (?, ?, ?, 1, 1, ?, ?)`),
		g.ID, g.Title, g.Category, g.CreatedBy, formatTime(g.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert graph %s: %w", g.ID, err)
	}
	return nil
}

// GetGraph returns a graph by id
func (s *SqlStore) GetGraph(ctx context.Context, id string) (model.Graph, error) {
	var (
		g       model.Graph
		level   int
		created string
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, title, category, level, version, created_by, created_at
		FROM graphs WHERE id = ?`), id).
		Scan(&g.ID, &g.Title, &g.Category, &level, &g.Version, &g.CreatedBy, &created)
	if err != nil {
		return model.Graph{}, fmt.Errorf("get graph %s: %w", id, err)
	}
	g.Level = model.Level(level)
	if g.CreatedAt, err = parseTime(created); err != nil {
		return model.Graph{}, err
	}
	return g, nil
}

// CreateClaim inserts a level-1 claim
func (s *SqlStore) CreateClaim(ctx context.Context, c model.Claim) error {
	props, err := marshalProperties(c.Properties)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO claims (`+claimColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?, 1, ?, ?)`),
		c.ID, c.GraphID, string(c.Kind), c.Title, c.Description, props, c.Credibility,
		formatTimePtr(c.RecalculatedAt), c.CreatedBy, formatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert claim %s: %w", c.ID, err)
	}
	return nil
}

// GetClaim returns a claim by id
func (s *SqlStore) GetClaim(ctx context.Context, id string) (model.Claim, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+claimColumns+` FROM claims WHERE id = ?`), id)
	c, err := scanClaim(row)
	if err != nil {
		return model.Claim{}, fmt.Errorf("get claim %s: %w", id, err)
	}
	return c, nil
}

// ListGraphClaims returns the member claims of a graph ordered by creation
func (s *SqlStore) ListGraphClaims(ctx context.Context, graphID string) ([]model.Claim, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+claimColumns+` FROM claims WHERE graph_id = ? ORDER BY created_at, id`), graphID)
	if err != nil {
		return nil, fmt.Errorf("list claims of graph %s: %w", graphID, err)
	}
	defer rows.Close()

	var out []model.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListMutableClaimIDs returns the ids of every level-1 claim
func (s *SqlStore) ListMutableClaimIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM claims WHERE level = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list mutable claims: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan claim id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateCredibility persists a recomputed score. Immutable claims keep their pinned score
// and report ErrImmutable.
func (s *SqlStore) UpdateCredibility(ctx context.Context, claimID string, score float64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE claims SET credibility = ?, recalculated_at = ?
		WHERE id = ? AND level = 1`), score, formatTime(at), claimID)
	if err != nil {
		return fmt.Errorf("update credibility of %s: %w", claimID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update credibility of %s: %w", claimID, err)
	}
	if n == 0 {
		if _, err := s.GetClaim(ctx, claimID); err != nil {
			return err
		}
		return fmt.Errorf("update credibility of %s: %w", claimID, ErrImmutable)
	}
	return nil
}

func scanClaim(r rowScanner) (model.Claim, error) {
	var (
		c         model.Claim
		kind      string
		props     string
		level     int
		recalcAt  sql.NullString
		createdAt string
	)
	if err := r.Scan(&c.ID, &c.GraphID, &kind, &c.Title, &c.Description, &props, &level, &c.Credibility,
		&recalcAt, &c.Version, &c.CreatedBy, &createdAt); err != nil {
		return model.Claim{}, err
	}
	c.Kind = model.ClaimKind(kind)
	c.Level = model.Level(level)

	var err error
	if props != "" && props != "{}" {
		if err = json.Unmarshal([]byte(props), &c.Properties); err != nil {
			return model.Claim{}, fmt.Errorf("decode properties of %s: %w", c.ID, err)
		}
	}
	if c.RecalculatedAt, err = parseTimePtr(recalcAt); err != nil {
		return model.Claim{}, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Claim{}, err
	}
	return c, nil
}

func marshalProperties(props map[string]json.RawMessage) (string, error) {
	if len(props) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("encode properties: %w", err)
	}
	return string(data), nil
}
