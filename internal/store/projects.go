package store

import (
	"context"
	"database/sql"
	"strings"

	"planner/internal/model"
	"planner/internal/statusutil"
)

type ProjectPatch struct {
	Title  *string
	Notes  *string
	Status *model.Status
}

const projectColumns = `id, title, notes, status, area_id, completed_at_unixms, created_at_unixms, updated_at_unixms, deleted_at_unixms`

func scanProject(row interface{ Scan(...any) error }) (model.Project, error) {
	var p model.Project
	var status string
	var areaID sql.NullString
	var completed, deleted sql.NullInt64
	var created, updated int64
	if err := row.Scan(&p.ID, &p.Title, &p.Notes, &status, &areaID, &completed, &created, &updated, &deleted); err != nil {
		return model.Project{}, err
	}
	p.Status = model.Status(status)
	p.AreaID = nullStr(areaID)
	p.CompletedAt = nullTime(completed)
	p.CreatedAt = fromUnixMs(created)
	p.UpdatedAt = fromUnixMs(updated)
	p.DeletedAt = nullTime(deleted)
	return p, nil
}

func getProject(ctx context.Context, q querier, id string) (model.Project, error) {
	p, err := scanProject(q.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ? AND deleted_at_unixms IS NULL`, id))
	if err == sql.ErrNoRows {
		return model.Project{}, NotFound("project", id)
	}
	return p, err
}

func (s *Store) CreateProject(ctx context.Context, title string, areaID *string) (model.Project, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Project{}, Validation("title is required", map[string]any{"field": "title"})
	}
	var out model.Project
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkScopeTarget(ctx, tx, AreaProjectsScope(areaID)); err != nil {
			return err
		}
		now := toUnixMs(s.now())
		id := newID("proj")
		if _, err := tx.ExecContext(ctx, `INSERT INTO projects(id, title, notes, status, area_id, created_at_unixms, updated_at_unixms)
			VALUES(?, ?, '', ?, ?, ?, ?)`, id, title, string(model.StatusOpen), strArg(areaID), now, now); err != nil {
			return err
		}
		var err error
		out, err = getProject(ctx, tx, id)
		return err
	})
	return out, err
}

func (s *Store) GetProject(ctx context.Context, id string) (model.Project, error) {
	return getProject(ctx, s.db, strings.TrimSpace(id))
}

func (s *Store) UpdateProject(ctx context.Context, id string, patch ProjectPatch) (model.Project, error) {
	id = strings.TrimSpace(id)
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return model.Project{}, Validation("title cannot be empty", map[string]any{"field": "title"})
	}
	var out model.Project
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		p, err := getProject(ctx, tx, id)
		if err != nil {
			return err
		}
		now := s.now()
		if patch.Title != nil {
			p.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Notes != nil {
			p.Notes = *patch.Notes
		}
		if patch.Status != nil && *patch.Status != p.Status {
			p.Status = *patch.Status
			if statusutil.IsEndState(p.Status) {
				ts := now.UTC()
				p.CompletedAt = &ts
			} else {
				p.CompletedAt = nil
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE projects SET title = ?, notes = ?, status = ?, area_id = ?, completed_at_unixms = ?, updated_at_unixms = ?
			WHERE id = ?`, p.Title, p.Notes, string(p.Status), strArg(p.AreaID), timeArg(p.CompletedAt), toUnixMs(now), p.ID); err != nil {
			return err
		}
		out, err = getProject(ctx, tx, p.ID)
		return err
	})
	return out, err
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getProject(ctx, tx, id); err != nil {
			return err
		}
		now := toUnixMs(s.now())
		_, err := tx.ExecContext(ctx, `UPDATE projects SET deleted_at_unixms = ?, updated_at_unixms = ? WHERE id = ?`, now, now, id)
		return err
	})
}
