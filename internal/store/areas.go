package store

import (
	"context"
	"database/sql"
	"strings"

	"planner/internal/model"
)

func scanArea(row interface{ Scan(...any) error }) (model.Area, error) {
	var a model.Area
	var created, updated int64
	var deleted sql.NullInt64
	if err := row.Scan(&a.ID, &a.Title, &created, &updated, &deleted); err != nil {
		return model.Area{}, err
	}
	a.CreatedAt = fromUnixMs(created)
	a.UpdatedAt = fromUnixMs(updated)
	a.DeletedAt = nullTime(deleted)
	return a, nil
}

func getArea(ctx context.Context, q querier, id string) (model.Area, error) {
	a, err := scanArea(q.QueryRowContext(ctx, `SELECT id, title, created_at_unixms, updated_at_unixms, deleted_at_unixms
		FROM areas WHERE id = ? AND deleted_at_unixms IS NULL`, id))
	if err == sql.ErrNoRows {
		return model.Area{}, NotFound("area", id)
	}
	return a, err
}

func (s *Store) CreateArea(ctx context.Context, title string) (model.Area, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Area{}, Validation("title is required", map[string]any{"field": "title"})
	}
	var out model.Area
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := toUnixMs(s.now())
		id := newID("area")
		if _, err := tx.ExecContext(ctx, `INSERT INTO areas(id, title, created_at_unixms, updated_at_unixms) VALUES(?, ?, ?, ?)`,
			id, title, now, now); err != nil {
			return err
		}
		var err error
		out, err = getArea(ctx, tx, id)
		return err
	})
	return out, err
}

func (s *Store) GetArea(ctx context.Context, id string) (model.Area, error) {
	return getArea(ctx, s.db, strings.TrimSpace(id))
}

func (s *Store) RenameArea(ctx context.Context, id, title string) (model.Area, error) {
	id = strings.TrimSpace(id)
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Area{}, Validation("title cannot be empty", map[string]any{"field": "title"})
	}
	var out model.Area
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getArea(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE areas SET title = ?, updated_at_unixms = ? WHERE id = ?`,
			title, toUnixMs(s.now()), id); err != nil {
			return err
		}
		var err error
		out, err = getArea(ctx, tx, id)
		return err
	})
	return out, err
}

// DeleteArea soft-deletes an area. Its projects and tasks fall back to ungrouped.
func (s *Store) DeleteArea(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getArea(ctx, tx, id); err != nil {
			return err
		}
		now := toUnixMs(s.now())
		if _, err := tx.ExecContext(ctx, `UPDATE areas SET deleted_at_unixms = ?, updated_at_unixms = ? WHERE id = ?`, now, now, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE projects SET area_id = NULL, updated_at_unixms = ? WHERE area_id = ?`, now, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE tasks SET area_id = NULL, updated_at_unixms = ? WHERE area_id = ?`, now, id)
		return err
	})
}

func getSection(ctx context.Context, q querier, id string) (model.Section, error) {
	var sec model.Section
	var created, updated int64
	var deleted sql.NullInt64
	err := q.QueryRowContext(ctx, `SELECT id, project_id, title, created_at_unixms, updated_at_unixms, deleted_at_unixms
		FROM sections WHERE id = ? AND deleted_at_unixms IS NULL`, id).
		Scan(&sec.ID, &sec.ProjectID, &sec.Title, &created, &updated, &deleted)
	if err == sql.ErrNoRows {
		return model.Section{}, NotFound("section", id)
	}
	if err != nil {
		return model.Section{}, err
	}
	sec.CreatedAt = fromUnixMs(created)
	sec.UpdatedAt = fromUnixMs(updated)
	sec.DeletedAt = nullTime(deleted)
	return sec, nil
}

func (s *Store) CreateSection(ctx context.Context, projectID, title string) (model.Section, error) {
	projectID = strings.TrimSpace(projectID)
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Section{}, Validation("title is required", map[string]any{"field": "title"})
	}
	var out model.Section
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getProject(ctx, tx, projectID); err != nil {
			return err
		}
		now := toUnixMs(s.now())
		id := newID("sec")
		if _, err := tx.ExecContext(ctx, `INSERT INTO sections(id, project_id, title, created_at_unixms, updated_at_unixms) VALUES(?, ?, ?, ?, ?)`,
			id, projectID, title, now, now); err != nil {
			return err
		}
		var err error
		out, err = getSection(ctx, tx, id)
		return err
	})
	return out, err
}

// DeleteSection soft-deletes a section; its tasks move to the project's unsectioned list.
func (s *Store) DeleteSection(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getSection(ctx, tx, id); err != nil {
			return err
		}
		now := toUnixMs(s.now())
		if _, err := tx.ExecContext(ctx, `UPDATE sections SET deleted_at_unixms = ?, updated_at_unixms = ? WHERE id = ?`, now, now, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE tasks SET section_id = NULL, updated_at_unixms = ? WHERE section_id = ?`, now, id)
		return err
	})
}

// Sidebar returns areas and their open projects, each group in manual order.
func (s *Store) Sidebar(ctx context.Context) (model.Sidebar, error) {
	out := model.Sidebar{Areas: []model.SidebarGroup{}, Ungrouped: []model.Project{}}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		areaIDs, err := s.orderedIDs(ctx, tx, AreasScope())
		if err != nil {
			return err
		}
		loadGroup := func(areaID *string) ([]model.Project, error) {
			ids, err := s.orderedIDs(ctx, tx, AreaProjectsScope(areaID))
			if err != nil {
				return nil, err
			}
			ps := make([]model.Project, 0, len(ids))
			for _, id := range ids {
				p, err := getProject(ctx, tx, id)
				if err != nil {
					return nil, err
				}
				ps = append(ps, p)
			}
			return ps, nil
		}
		for _, id := range areaIDs {
			a, err := getArea(ctx, tx, id)
			if err != nil {
				return err
			}
			ps, err := loadGroup(&a.ID)
			if err != nil {
				return err
			}
			out.Areas = append(out.Areas, model.SidebarGroup{Area: a, Projects: ps})
		}
		out.Ungrouped, err = loadGroup(nil)
		return err
	})
	return out, err
}
