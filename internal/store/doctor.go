package store

import (
	"context"
	"fmt"
)

type DoctorIssueLevel string

const (
	DoctorIssueLevelError DoctorIssueLevel = "error"
	DoctorIssueLevelWarn  DoctorIssueLevel = "warn"
)

type DoctorIssue struct {
	Level    DoctorIssueLevel `json:"level"`
	Code     string           `json:"code"`
	Message  string           `json:"message"`
	ScopeID  string           `json:"scope_id,omitempty"`
	EntityID string           `json:"entity_id,omitempty"`
}

type DoctorReport struct {
	Issues []DoctorIssue `json:"issues"`
	// Pruned counts rank rows removed when the check ran with fixes enabled.
	Pruned int `json:"pruned,omitempty"`
}

func (r DoctorReport) HasErrors() bool {
	for _, it := range r.Issues {
		if it.Level == DoctorIssueLevelError {
			return true
		}
	}
	return false
}

const orphanRanksWhere = `NOT EXISTS (SELECT 1 FROM tasks t WHERE t.id = r.entity_id AND t.deleted_at_unixms IS NULL)
	AND NOT EXISTS (SELECT 1 FROM projects p WHERE p.id = r.entity_id AND p.deleted_at_unixms IS NULL)
	AND NOT EXISTS (SELECT 1 FROM areas a WHERE a.id = r.entity_id AND a.deleted_at_unixms IS NULL)`

type doctorCheck struct {
	level DoctorIssueLevel
	code  string
	query string
	msg   func(scopeID, entityID string) string
}

var doctorChecks = []doctorCheck{
	{
		level: DoctorIssueLevelWarn,
		code:  "rank_orphan",
		query: `SELECT r.scope_id, r.entity_id FROM ranks r WHERE ` + orphanRanksWhere + ` ORDER BY r.scope_id, r.entity_id`,
		msg: func(scope, id string) string {
			return fmt.Sprintf("rank row in %s points at missing or deleted %s", scope, id)
		},
	},
	{
		level: DoctorIssueLevelWarn,
		code:  "rank_shared",
		query: `SELECT scope_id, MIN(entity_id) FROM ranks GROUP BY scope_id, rank HAVING COUNT(*) > 1 ORDER BY scope_id`,
		msg: func(scope, id string) string {
			return fmt.Sprintf("several rows in %s share a rank (next read renumbers the scope)", scope)
		},
	},
	{
		level: DoctorIssueLevelError,
		code:  "section_orphan",
		query: `SELECT s.project_id, s.id FROM sections s
			WHERE s.deleted_at_unixms IS NULL
			AND NOT EXISTS (SELECT 1 FROM projects p WHERE p.id = s.project_id AND p.deleted_at_unixms IS NULL)
			ORDER BY s.id`,
		msg: func(projectID, id string) string {
			return fmt.Sprintf("section %s belongs to missing or deleted project %s", id, projectID)
		},
	},
	{
		level: DoctorIssueLevelError,
		code:  "task_section_mismatch",
		query: `SELECT COALESCE(t.project_id, ''), t.id FROM tasks t
			JOIN sections s ON s.id = t.section_id
			WHERE t.deleted_at_unixms IS NULL AND (t.project_id IS NULL OR s.project_id <> t.project_id)
			ORDER BY t.id`,
		msg: func(projectID, id string) string {
			return fmt.Sprintf("task %s is in a section outside its project %q", id, projectID)
		},
	},
	{
		level: DoctorIssueLevelWarn,
		code:  "project_area_missing",
		query: `SELECT p.area_id, p.id FROM projects p
			WHERE p.deleted_at_unixms IS NULL AND p.area_id IS NOT NULL
			AND NOT EXISTS (SELECT 1 FROM areas a WHERE a.id = p.area_id AND a.deleted_at_unixms IS NULL)
			ORDER BY p.id`,
		msg: func(areaID, id string) string {
			return fmt.Sprintf("project %s refers to missing or deleted area %s", id, areaID)
		},
	},
}

// Doctor checks ordering and containment consistency. With fix set, rank rows of
// missing or deleted entities are deleted after being reported.
func (s *Store) Doctor(ctx context.Context, fix bool) (DoctorReport, error) {
	report := DoctorReport{Issues: []DoctorIssue{}}
	for _, c := range doctorChecks {
		rows, err := s.db.QueryContext(ctx, c.query)
		if err != nil {
			return report, fmt.Errorf("doctor %s: %w", c.code, err)
		}
		for rows.Next() {
			var scope, id string
			if err := rows.Scan(&scope, &id); err != nil {
				rows.Close()
				return report, err
			}
			report.Issues = append(report.Issues, DoctorIssue{
				Level:    c.level,
				Code:     c.code,
				Message:  c.msg(scope, id),
				ScopeID:  scope,
				EntityID: id,
			})
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return report, err
		}
	}
	if !fix {
		return report, nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM ranks WHERE rowid IN (SELECT r.rowid FROM ranks r WHERE `+orphanRanksWhere+`)`)
	if err != nil {
		return report, fmt.Errorf("prune ranks: %w", err)
	}
	n, _ := res.RowsAffected()
	report.Pruned = int(n)
	return report, nil
}
