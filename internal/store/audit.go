package store

import (
	"context"
	"fmt"
	"time"

	"audiencier/internal/model"
)

// ListAudit returns audit entries at or after since, newest first. A
// non-positive limit returns everything.
func (s *Store) ListAudit(ctx context.Context, since time.Time, limit int) ([]model.AuditEntry, error) {
	query := `SELECT id, at, actor, action, entity, entity_id, details FROM audit_log WHERE at >= ? ORDER BY at DESC, id DESC`
	args := []any{since.UnixMilli()}
	if since.IsZero() {
		args[0] = int64(0)
	}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list audit: %w", err)
	}
	defer rows.Close()

	out := make([]model.AuditEntry, 0)
	for rows.Next() {
		var (
			e              model.AuditEntry
			at             int64
			action, entity string
		)
		if err := rows.Scan(&e.ID, &at, &e.Actor, &action, &entity, &e.EntityID, &e.Details); err != nil {
			return nil, err
		}
		e.At = s.fromMillis(at)
		e.Action = model.AuditAction(action)
		e.Entity = model.AuditEntity(entity)
		out = append(out, e)
	}
	return out, rows.Err()
}
