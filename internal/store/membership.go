package store

import (
	"context"
	"database/sql"
	"fmt"
)

// member is one entity currently belonging to a scope, with the attribute the fallback
// order is derived from.
type member struct {
	ID        string
	CreatedAt int64
}

const openTask = `status = 'open' AND deleted_at_unixms IS NULL`

// members computes the derived membership of sc from live entity attributes.
// Nothing about membership is stored; rank rows are only consulted for order.
func (s *Store) members(ctx context.Context, q querier, sc Scope) ([]member, error) {
	var query string
	var args []any

	switch sc.Kind {
	case ScopeInbox:
		query = `SELECT id, created_at_unixms FROM tasks WHERE ` + openTask +
			` AND project_id IS NULL AND area_id IS NULL AND schedule_date IS NULL`
	case ScopeToday:
		query = `SELECT id, created_at_unixms FROM tasks WHERE ` + openTask +
			` AND schedule_date IS NOT NULL AND schedule_date <= ?`
		args = []any{s.today()}
	case ScopeUpcoming:
		query = `SELECT id, created_at_unixms FROM tasks WHERE ` + openTask +
			` AND schedule_date IS NOT NULL AND schedule_date > ?`
		args = []any{s.today()}
	case ScopeAnytime:
		query = `SELECT id, created_at_unixms FROM tasks WHERE ` + openTask +
			` AND schedule_date IS NULL AND (project_id IS NOT NULL OR area_id IS NOT NULL)`
	case ScopeProject:
		query = `SELECT id, created_at_unixms FROM tasks WHERE ` + openTask +
			` AND project_id = ? AND section_id IS NULL`
		args = []any{sc.Ref}
	case ScopeSection:
		query = `SELECT id, created_at_unixms FROM tasks WHERE ` + openTask + ` AND section_id = ?`
		args = []any{sc.Ref}
	case ScopeArea:
		query = `SELECT id, created_at_unixms FROM tasks WHERE ` + openTask +
			` AND area_id = ? AND project_id IS NULL`
		args = []any{sc.Ref}
	case ScopeAreas:
		query = `SELECT id, created_at_unixms FROM areas WHERE deleted_at_unixms IS NULL`
	case ScopeAreaProjects:
		if sc.Ref == "" {
			query = `SELECT id, created_at_unixms FROM projects WHERE status = 'open' AND deleted_at_unixms IS NULL AND area_id IS NULL`
		} else {
			query = `SELECT id, created_at_unixms FROM projects WHERE status = 'open' AND deleted_at_unixms IS NULL AND area_id = ?`
			args = []any{sc.Ref}
		}
	default:
		return nil, fmt.Errorf("unknown scope kind %q", sc.Kind)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []member
	for rows.Next() {
		var m member
		if err := rows.Scan(&m.ID, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// checkScopeTarget fails with NOT_FOUND when a container scope points at a missing or
// soft-deleted container.
func checkScopeTarget(ctx context.Context, q querier, sc Scope) error {
	var table, kind string
	switch sc.Kind {
	case ScopeProject:
		table, kind = "projects", "project"
	case ScopeSection:
		table, kind = "sections", "section"
	case ScopeArea:
		table, kind = "areas", "area"
	case ScopeAreaProjects:
		if sc.Ref == "" {
			return nil
		}
		table, kind = "areas", "area"
	default:
		return nil
	}
	ok, err := liveRowExists(ctx, q, table, sc.Ref)
	if err != nil {
		return err
	}
	if !ok {
		return NotFound(kind, sc.Ref)
	}
	return nil
}

func liveRowExists(ctx context.Context, q querier, table, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ? AND deleted_at_unixms IS NULL`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func memberIDs(ms []member) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.ID)
	}
	return out
}
