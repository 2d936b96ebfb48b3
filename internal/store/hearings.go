package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"audiencier/internal/model"
)

// CreateParty attaches a party to an existing case.
func (s *Store) CreateParty(ctx context.Context, p model.Party) (model.Party, error) {
	var out model.Party
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = s.createParty(ctx, tx, p)
		return err
	})
	if err != nil {
		return model.Party{}, err
	}
	return out, nil
}

func (s *Store) createParty(ctx context.Context, tx *sql.Tx, p model.Party) (model.Party, error) {
	p.ID = uuid.NewString()
	if err := caseExists(ctx, tx, p.CaseID); err != nil {
		return model.Party{}, err
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO parties (id, case_id, name, role, lawyer) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.CaseID, p.Name, string(p.Role), p.Lawyer,
	)
	if err != nil {
		return model.Party{}, fmt.Errorf("store: insert party: %w", translate(err))
	}
	if err := s.audit(ctx, tx, model.ActionCreate, model.EntityParty, p.ID, p.Name); err != nil {
		return model.Party{}, err
	}
	return p, nil
}

// ListParties returns the parties of one case, by role then insertion order.
func (s *Store) ListParties(ctx context.Context, caseID string) ([]model.Party, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, case_id, name, role, lawyer FROM parties WHERE case_id = ? ORDER BY role, rowid`, caseID)
	if err != nil {
		return nil, fmt.Errorf("store: list parties: %w", err)
	}
	defer rows.Close()
	return scanParties(rows)
}

// PartiesByCase returns every party grouped by case ID.
func (s *Store) PartiesByCase(ctx context.Context) (map[string][]model.Party, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, case_id, name, role, lawyer FROM parties ORDER BY case_id, role, rowid`)
	if err != nil {
		return nil, fmt.Errorf("store: list parties: %w", err)
	}
	defer rows.Close()

	parties, err := scanParties(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]model.Party)
	for _, p := range parties {
		out[p.CaseID] = append(out[p.CaseID], p)
	}
	return out, nil
}

func scanParties(rows *sql.Rows) ([]model.Party, error) {
	out := make([]model.Party, 0)
	for rows.Next() {
		var (
			p    model.Party
			role string
		)
		if err := rows.Scan(&p.ID, &p.CaseID, &p.Name, &role, &p.Lawyer); err != nil {
			return nil, err
		}
		p.Role = model.PartyRole(role)
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateHearing schedules a hearing for an existing case. An empty status
// becomes A_VENIR.
func (s *Store) CreateHearing(ctx context.Context, h model.Hearing) (model.Hearing, error) {
	var out model.Hearing
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = s.createHearing(ctx, tx, h)
		return err
	})
	if err != nil {
		return model.Hearing{}, err
	}
	return out, nil
}

func (s *Store) createHearing(ctx context.Context, tx *sql.Tx, h model.Hearing) (model.Hearing, error) {
	h.ID = uuid.NewString()
	if h.Status == "" {
		h.Status = model.StatusUpcoming
	}
	if !h.Status.Valid() {
		return model.Hearing{}, fmt.Errorf("store: invalid hearing status %q", h.Status)
	}
	h.Date = h.Date.Truncate(time.Millisecond)

	if err := caseExists(ctx, tx, h.CaseID); err != nil {
		return model.Hearing{}, err
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO hearings (id, case_id, date, room, status, notes) VALUES (?, ?, ?, ?, ?, ?)`,
		h.ID, h.CaseID, h.Date.UnixMilli(), h.Room, string(h.Status), h.Notes,
	)
	if err != nil {
		return model.Hearing{}, fmt.Errorf("store: insert hearing: %w", err)
	}
	if err := s.audit(ctx, tx, model.ActionCreate, model.EntityHearing, h.ID, h.Date.Format(time.RFC3339)); err != nil {
		return model.Hearing{}, err
	}
	return h, nil
}

func (s *Store) GetHearing(ctx context.Context, id string) (model.Hearing, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, case_id, date, room, status, notes FROM hearings WHERE id = ?`, id)
	h, err := s.scanHearing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Hearing{}, ErrNotFound
	}
	return h, err
}

// Range bounds a hearing listing. Zero bounds are open.
type Range struct {
	From time.Time
	To   time.Time
}

// ListHearings returns hearings with From <= date < To, ordered by date.
func (s *Store) ListHearings(ctx context.Context, r Range) ([]model.Hearing, error) {
	query := `SELECT id, case_id, date, room, status, notes FROM hearings WHERE 1 = 1`
	var args []any
	if !r.From.IsZero() {
		query += ` AND date >= ?`
		args = append(args, r.From.UnixMilli())
	}
	if !r.To.IsZero() {
		query += ` AND date < ?`
		args = append(args, r.To.UnixMilli())
	}
	query += ` ORDER BY date, rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list hearings: %w", err)
	}
	defer rows.Close()

	out := make([]model.Hearing, 0)
	for rows.Next() {
		h, err := s.scanHearing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *Store) UpdateHearingStatus(ctx context.Context, id string, status model.HearingStatus) error {
	if !status.Valid() {
		return fmt.Errorf("store: invalid hearing status %q", status)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE hearings SET status = ? WHERE id = ?`, string(status), id)
		if err != nil {
			return fmt.Errorf("store: update hearing: %w", err)
		}
		if err := requireRow(res); err != nil {
			return err
		}
		return s.audit(ctx, tx, model.ActionUpdate, model.EntityHearing, id, "status="+string(status))
	})
}

func (s *Store) DeleteHearing(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM hearings WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("store: delete hearing: %w", err)
		}
		if err := requireRow(res); err != nil {
			return err
		}
		return s.audit(ctx, tx, model.ActionDelete, model.EntityHearing, id, "")
	})
}

// SweepUnreported marks as NON_RENSEIGNEE every A_VENIR hearing dated
// before the start of now's day, and returns how many changed.
func (s *Store) SweepUnreported(ctx context.Context, now time.Time) (int, error) {
	y, m, d := now.Date()
	cutoff := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	n := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT id FROM hearings WHERE status = ? AND date < ?`,
			string(model.StatusUpcoming), cutoff.UnixMilli())
		if err != nil {
			return fmt.Errorf("store: select stale hearings: %w", err)
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
			if _, err := tx.ExecContext(ctx, `UPDATE hearings SET status = ? WHERE id = ?`,
				string(model.StatusUnreported), id); err != nil {
				return fmt.Errorf("store: sweep hearing: %w", err)
			}
			if err := s.audit(ctx, tx, model.ActionUpdate, model.EntityHearing, id, "status="+string(model.StatusUnreported)); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

func (s *Store) scanHearing(row rowScanner) (model.Hearing, error) {
	var (
		h      model.Hearing
		date   int64
		status string
	)
	if err := row.Scan(&h.ID, &h.CaseID, &date, &h.Room, &status, &h.Notes); err != nil {
		return model.Hearing{}, err
	}
	h.Date = s.fromMillis(date)
	h.Status = model.HearingStatus(status)
	return h, nil
}

func caseExists(ctx context.Context, tx *sql.Tx, id string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM cases WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
