package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"planner/internal/model"
	"planner/internal/statusutil"
)

// Nullable is a patch value for a nullable column. Set=false leaves the column alone;
// Set with a nil Value clears it.
type Nullable struct {
	Set   bool
	Value *string
}

func SetTo(v string) Nullable { return Nullable{Set: true, Value: &v} }

func Clear() Nullable { return Nullable{Set: true} }

type NewTask struct {
	Title        string
	Notes        string
	ProjectID    *string
	SectionID    *string
	AreaID       *string
	ScheduleDate *string
	Tags         []string
}

type TaskPatch struct {
	Title        *string
	Notes        *string
	Status       *model.Status
	ProjectID    Nullable
	SectionID    Nullable
	AreaID       Nullable
	ScheduleDate Nullable
	Tags         *[]string
}

func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Notes == nil && p.Status == nil &&
		!p.ProjectID.Set && !p.SectionID.Set && !p.AreaID.Set && !p.ScheduleDate.Set &&
		p.Tags == nil
}

const taskColumns = `id, title, notes, status, project_id, section_id, area_id, schedule_date, tags_json,
	completed_at_unixms, created_at_unixms, updated_at_unixms, deleted_at_unixms`

func scanTask(row interface{ Scan(...any) error }) (model.Task, error) {
	var t model.Task
	var status, tagsJSON string
	var projectID, sectionID, areaID, sched sql.NullString
	var completed, deleted sql.NullInt64
	var created, updated int64
	if err := row.Scan(&t.ID, &t.Title, &t.Notes, &status, &projectID, &sectionID, &areaID, &sched, &tagsJSON,
		&completed, &created, &updated, &deleted); err != nil {
		return model.Task{}, err
	}
	t.Status = model.Status(status)
	t.ProjectID = nullStr(projectID)
	t.SectionID = nullStr(sectionID)
	t.AreaID = nullStr(areaID)
	t.ScheduleDate = nullStr(sched)
	t.CompletedAt = nullTime(completed)
	t.CreatedAt = fromUnixMs(created)
	t.UpdatedAt = fromUnixMs(updated)
	t.DeletedAt = nullTime(deleted)
	t.Tags = []string{}
	if strings.TrimSpace(tagsJSON) != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &t.Tags); err != nil {
			return model.Task{}, err
		}
	}
	return t, nil
}

// getTask loads a live (not soft-deleted) task.
func getTask(ctx context.Context, q querier, id string) (model.Task, error) {
	t, err := scanTask(q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ? AND deleted_at_unixms IS NULL`, id))
	if err == sql.ErrNoRows {
		return model.Task{}, NotFound("task", id)
	}
	return t, err
}

func normalizeTags(tags []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func validateDate(field string, v *string) error {
	if v == nil {
		return nil
	}
	if _, err := time.Parse(dateLayout, *v); err != nil {
		return Validation(field+" must be YYYY-MM-DD", map[string]any{"field": field, "value": *v})
	}
	return nil
}

// validatePlacement checks the task's container references against live rows.
func validatePlacement(ctx context.Context, q querier, projectID, sectionID, areaID *string) error {
	if projectID != nil && areaID != nil {
		return Validation("a task belongs to either a project or an area, not both", map[string]any{
			"project_id": *projectID,
			"area_id":    *areaID,
		})
	}
	if projectID != nil {
		if err := checkScopeTarget(ctx, q, Scope{Kind: ScopeProject, Ref: *projectID}); err != nil {
			return err
		}
	}
	if areaID != nil {
		if err := checkScopeTarget(ctx, q, Scope{Kind: ScopeArea, Ref: *areaID}); err != nil {
			return err
		}
	}
	if sectionID != nil {
		sec, err := getSection(ctx, q, *sectionID)
		if err != nil {
			return err
		}
		if projectID == nil || sec.ProjectID != *projectID {
			return Validation("section does not belong to the task's project", map[string]any{
				"section_id": *sectionID,
				"project_id": areaLabel(projectID),
			})
		}
	}
	return nil
}

func (s *Store) CreateTask(ctx context.Context, in NewTask) (model.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return model.Task{}, Validation("title is required", map[string]any{"field": "title"})
	}
	if err := validateDate("schedule_date", in.ScheduleDate); err != nil {
		return model.Task{}, err
	}
	var out model.Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := validatePlacement(ctx, tx, in.ProjectID, in.SectionID, in.AreaID); err != nil {
			return err
		}
		now := toUnixMs(s.now())
		id := newID("task")
		tagsJSON, _ := json.Marshal(normalizeTags(in.Tags))
		if _, err := tx.ExecContext(ctx, `INSERT INTO tasks(id, title, notes, status, project_id, section_id, area_id, schedule_date, tags_json,
			created_at_unixms, updated_at_unixms) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, title, in.Notes, string(model.StatusOpen), strArg(in.ProjectID), strArg(in.SectionID), strArg(in.AreaID),
			strArg(in.ScheduleDate), string(tagsJSON), now, now); err != nil {
			return err
		}
		var err error
		out, err = getTask(ctx, tx, id)
		return err
	})
	return out, err
}

func (s *Store) GetTask(ctx context.Context, id string) (model.Task, error) {
	return getTask(ctx, s.db, strings.TrimSpace(id))
}

// UpdateTask applies patch field by field and returns the full updated task.
// Assigning a project clears the area; changing the project without naming a section
// clears the section.
func (s *Store) UpdateTask(ctx context.Context, id string, patch TaskPatch) (model.Task, error) {
	id = strings.TrimSpace(id)
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return model.Task{}, Validation("title cannot be empty", map[string]any{"field": "title"})
	}
	if patch.ScheduleDate.Set {
		if err := validateDate("schedule_date", patch.ScheduleDate.Value); err != nil {
			return model.Task{}, err
		}
	}

	var out model.Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		t, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}
		now := s.now()

		if patch.Title != nil {
			t.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Notes != nil {
			t.Notes = *patch.Notes
		}
		if patch.Status != nil && *patch.Status != t.Status {
			t.Status = *patch.Status
			if statusutil.IsEndState(t.Status) {
				ts := now.UTC()
				t.CompletedAt = &ts
			} else {
				t.CompletedAt = nil
			}
		}
		if patch.ProjectID.Set {
			if !model.SameStrPtr(t.ProjectID, patch.ProjectID.Value) && !patch.SectionID.Set {
				t.SectionID = nil
			}
			t.ProjectID = patch.ProjectID.Value
			if t.ProjectID != nil && !patch.AreaID.Set {
				t.AreaID = nil
			}
		}
		if patch.SectionID.Set {
			t.SectionID = patch.SectionID.Value
		}
		if patch.AreaID.Set {
			t.AreaID = patch.AreaID.Value
		}
		if patch.ScheduleDate.Set {
			t.ScheduleDate = patch.ScheduleDate.Value
		}
		if patch.Tags != nil {
			t.Tags = normalizeTags(*patch.Tags)
		}

		if err := validatePlacement(ctx, tx, t.ProjectID, t.SectionID, t.AreaID); err != nil {
			return err
		}

		tagsJSON, _ := json.Marshal(t.Tags)
		if _, err := tx.ExecContext(ctx, `UPDATE tasks SET title = ?, notes = ?, status = ?, project_id = ?, section_id = ?, area_id = ?,
			schedule_date = ?, tags_json = ?, completed_at_unixms = ?, updated_at_unixms = ? WHERE id = ?`,
			t.Title, t.Notes, string(t.Status), strArg(t.ProjectID), strArg(t.SectionID), strArg(t.AreaID),
			strArg(t.ScheduleDate), string(tagsJSON), timeArg(t.CompletedAt), toUnixMs(now), t.ID); err != nil {
			return err
		}
		out, err = getTask(ctx, tx, t.ID)
		return err
	})
	return out, err
}

// DeleteTask soft-deletes a task. Its rank rows stay behind as dead data.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getTask(ctx, tx, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE tasks SET deleted_at_unixms = ?, updated_at_unixms = ? WHERE id = ?`,
			toUnixMs(s.now()), toUnixMs(s.now()), id)
		return err
	})
}

// ListTasks returns the open tasks of a list in manual order.
func (s *Store) ListTasks(ctx context.Context, sc Scope) ([]model.Task, error) {
	if !sc.isTaskList() {
		return nil, Validation("not a task list: "+sc.ID(), map[string]any{"list_id": sc.ID()})
	}
	var out []model.Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ids, err := s.orderedIDs(ctx, tx, sc)
		if err != nil {
			return err
		}
		out = make([]model.Task, 0, len(ids))
		for _, id := range ids {
			t, err := getTask(ctx, tx, id)
			if err != nil {
				return err
			}
			out = append(out, t)
		}
		return nil
	})
	return out, err
}

// ReorderTasks is Reorder restricted to task lists.
func (s *Store) ReorderTasks(ctx context.Context, sc Scope, ordered []string) error {
	if !sc.isTaskList() {
		return Validation("not a task list: "+sc.ID(), map[string]any{"list_id": sc.ID()})
	}
	return s.Reorder(ctx, sc, ordered)
}
