package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"audiencier/internal/model"
)

const caseColumns = `id, reference, title, jurisdiction, chamber, status, decision_date, appeal_days, created_at, updated_at`

// CreateCase inserts c with a fresh ID. An empty status becomes OUVERTE.
func (s *Store) CreateCase(ctx context.Context, c model.Case) (model.Case, error) {
	var out model.Case
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = s.createCase(ctx, tx, c)
		return err
	})
	if err != nil {
		return model.Case{}, err
	}
	return out, nil
}

func (s *Store) createCase(ctx context.Context, tx *sql.Tx, c model.Case) (model.Case, error) {
	now := s.clock.Now().Truncate(time.Millisecond)
	c.ID = uuid.NewString()
	if c.Status == "" {
		c.Status = model.CaseOpen
	}
	c.CreatedAt = now.In(s.loc)
	c.UpdatedAt = c.CreatedAt

	var decision sql.NullInt64
	if c.DecisionDate != nil {
		decision = sql.NullInt64{Int64: c.DecisionDate.UnixMilli(), Valid: true}
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO cases (`+caseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Reference, c.Title, c.Jurisdiction, c.Chamber, string(c.Status),
		decision, c.AppealDays, now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return model.Case{}, fmt.Errorf("store: insert case: %w", translate(err))
	}
	if err := s.audit(ctx, tx, model.ActionCreate, model.EntityCase, c.ID, c.Reference); err != nil {
		return model.Case{}, err
	}
	return c, nil
}

func (s *Store) GetCase(ctx context.Context, id string) (model.Case, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = ?`, id)
	c, err := s.scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Case{}, ErrNotFound
	}
	return c, err
}

// ListCases returns every case ordered by reference.
func (s *Store) ListCases(ctx context.Context) ([]model.Case, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+caseColumns+` FROM cases ORDER BY reference`)
	if err != nil {
		return nil, fmt.Errorf("store: list cases: %w", err)
	}
	defer rows.Close()

	out := make([]model.Case, 0)
	for rows.Next() {
		c, err := s.scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) UpdateCaseStatus(ctx context.Context, id string, status model.CaseStatus) error {
	if !status.Valid() {
		return fmt.Errorf("store: invalid case status %q", status)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE cases SET status = ?, updated_at = ? WHERE id = ?`,
			string(status), s.clock.Now().UnixMilli(), id,
		)
		if err != nil {
			return fmt.Errorf("store: update case: %w", err)
		}
		if err := requireRow(res); err != nil {
			return err
		}
		return s.audit(ctx, tx, model.ActionUpdate, model.EntityCase, id, "status="+string(status))
	})
}

// DeleteCase removes the case with its parties and hearings.
func (s *Store) DeleteCase(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.deleteCaseTx(ctx, tx, id)
	})
}

func (s *Store) deleteCaseTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM cases WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete case: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return s.audit(ctx, tx, model.ActionDelete, model.EntityCase, id, "")
}

// DeleteCasesByReferencePrefix deletes every case whose reference starts
// with prefix and returns how many were removed.
func (s *Store) DeleteCasesByReferencePrefix(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, fmt.Errorf("store: refusing to delete with an empty prefix")
	}
	pattern := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix) + "%"

	n := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT id FROM cases WHERE reference LIKE ? ESCAPE '\'`, pattern)
		if err != nil {
			return fmt.Errorf("store: select cases: %w", err)
		}
		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, id := range ids {
			if err := s.deleteCaseTx(ctx, tx, id); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanCase(row rowScanner) (model.Case, error) {
	var (
		c                  model.Case
		status             string
		decision           sql.NullInt64
		created, updatedAt int64
	)
	if err := row.Scan(&c.ID, &c.Reference, &c.Title, &c.Jurisdiction, &c.Chamber, &status,
		&decision, &c.AppealDays, &created, &updatedAt); err != nil {
		return model.Case{}, err
	}
	c.Status = model.CaseStatus(status)
	if decision.Valid {
		d := s.fromMillis(decision.Int64)
		c.DecisionDate = &d
	}
	c.CreatedAt = s.fromMillis(created)
	c.UpdatedAt = s.fromMillis(updatedAt)
	return c, nil
}
