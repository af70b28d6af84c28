package action

import (
	"strings"

	"planner/internal/model"
	"planner/internal/statusutil"
	"planner/internal/store"
)

type IDPayload struct {
	ID string `json:"id"`
}

func (p *IDPayload) Validate() error {
	p.ID = strings.TrimSpace(p.ID)
	return required("id", p.ID)
}

type TaskReorderBatch struct {
	ListID         string   `json:"list_id"`
	OrderedTaskIDs []string `json:"ordered_task_ids"`
}

func (p *TaskReorderBatch) Validate() error {
	if err := required("list_id", p.ListID); err != nil {
		return err
	}
	return requiredList("ordered_task_ids", p.OrderedTaskIDs)
}

type ReorderAreas struct {
	OrderedAreaIDs []string `json:"ordered_area_ids"`
}

func (p *ReorderAreas) Validate() error {
	return requiredList("ordered_area_ids", p.OrderedAreaIDs)
}

// ReorderProjects targets one sidebar group. area_id must be present; null names the
// ungrouped projects.
type ReorderProjects struct {
	AreaID            Optional[string] `json:"area_id"`
	OrderedProjectIDs []string         `json:"ordered_project_ids"`
}

func (p *ReorderProjects) Validate() error {
	if !p.AreaID.Set {
		return fieldError("area_id is required (use null for ungrouped)", "area_id")
	}
	if err := optionalID("area_id", p.AreaID); err != nil {
		return err
	}
	return requiredList("ordered_project_ids", p.OrderedProjectIDs)
}

type MoveProject struct {
	ProjectID            string           `json:"project_id"`
	FromAreaID           Optional[string] `json:"from_area_id"`
	ToAreaID             Optional[string] `json:"to_area_id"`
	FromOrderedProjectID []string         `json:"from_ordered_project_ids"`
	ToOrderedProjectID   []string         `json:"to_ordered_project_ids"`
}

func (p *MoveProject) Validate() error {
	if err := required("project_id", p.ProjectID); err != nil {
		return err
	}
	for _, f := range []struct {
		name string
		v    Optional[string]
	}{{"from_area_id", p.FromAreaID}, {"to_area_id", p.ToAreaID}} {
		if !f.v.Set {
			return fieldError(f.name+" is required (use null for ungrouped)", f.name)
		}
		if err := optionalID(f.name, f.v); err != nil {
			return err
		}
	}
	if p.FromOrderedProjectID == nil {
		return fieldError("from_ordered_project_ids is required", "from_ordered_project_ids")
	}
	return requiredList("to_ordered_project_ids", p.ToOrderedProjectID)
}

func (p MoveProject) input() store.MoveProjectInput {
	return store.MoveProjectInput{
		ProjectID:   strings.TrimSpace(p.ProjectID),
		FromAreaID:  trimPtr(p.FromAreaID.Ptr()),
		ToAreaID:    trimPtr(p.ToAreaID.Ptr()),
		FromOrdered: p.FromOrderedProjectID,
		ToOrdered:   p.ToOrderedProjectID,
	}
}

type TaskCreate struct {
	Title        string   `json:"title"`
	Notes        string   `json:"notes"`
	ProjectID    *string  `json:"project_id"`
	SectionID    *string  `json:"section_id"`
	AreaID       *string  `json:"area_id"`
	ScheduleDate *string  `json:"schedule_date"`
	Tags         []string `json:"tags"`
}

func (p *TaskCreate) Validate() error {
	if err := required("title", p.Title); err != nil {
		return err
	}
	for name, v := range map[string]*string{"project_id": p.ProjectID, "section_id": p.SectionID, "area_id": p.AreaID} {
		if err := idPtr(name, v); err != nil {
			return err
		}
	}
	return nil
}

func (p TaskCreate) newTask() store.NewTask {
	return store.NewTask{
		Title:        p.Title,
		Notes:        p.Notes,
		ProjectID:    trimPtr(p.ProjectID),
		SectionID:    trimPtr(p.SectionID),
		AreaID:       trimPtr(p.AreaID),
		ScheduleDate: trimPtr(p.ScheduleDate),
		Tags:         p.Tags,
	}
}

// TaskUpdate is a field patch: absent keys are left alone, null clears nullable fields.
type TaskUpdate struct {
	ID           string             `json:"id"`
	Title        Optional[string]   `json:"title"`
	Notes        Optional[string]   `json:"notes"`
	Status       Optional[string]   `json:"status"`
	ProjectID    Optional[string]   `json:"project_id"`
	SectionID    Optional[string]   `json:"section_id"`
	AreaID       Optional[string]   `json:"area_id"`
	ScheduleDate Optional[string]   `json:"schedule_date"`
	Tags         Optional[[]string] `json:"tags"`

	status model.Status
}

func (p *TaskUpdate) Validate() error {
	if err := required("id", p.ID); err != nil {
		return err
	}
	for name, o := range map[string]Optional[string]{"title": p.Title, "notes": p.Notes, "status": p.Status} {
		if o.Set && o.Null {
			return fieldError(name+" cannot be null", name)
		}
	}
	if p.Tags.Set && p.Tags.Null {
		return fieldError("tags cannot be null", "tags")
	}
	for name, o := range map[string]Optional[string]{"project_id": p.ProjectID, "section_id": p.SectionID, "area_id": p.AreaID} {
		if err := optionalID(name, o); err != nil {
			return err
		}
	}
	if p.Status.Set {
		st, err := statusutil.NormalizeStatus(p.Status.Value)
		if err != nil {
			return fieldError(err.Error(), "status")
		}
		p.status = st
	}
	return nil
}

func (p TaskUpdate) patch() store.TaskPatch {
	var out store.TaskPatch
	out.Title = p.Title.Ptr()
	out.Notes = p.Notes.Ptr()
	if p.Status.Set {
		st := p.status
		out.Status = &st
	}
	out.ProjectID = nullable(p.ProjectID)
	out.SectionID = nullable(p.SectionID)
	out.AreaID = nullable(p.AreaID)
	out.ScheduleDate = nullable(p.ScheduleDate)
	out.Tags = p.Tags.Ptr()
	return out
}

type ProjectCreate struct {
	Title  string  `json:"title"`
	AreaID *string `json:"area_id"`
}

func (p *ProjectCreate) Validate() error {
	if err := required("title", p.Title); err != nil {
		return err
	}
	return idPtr("area_id", p.AreaID)
}

type ProjectUpdate struct {
	ID     string           `json:"id"`
	Title  Optional[string] `json:"title"`
	Notes  Optional[string] `json:"notes"`
	Status Optional[string] `json:"status"`

	status model.Status
}

func (p *ProjectUpdate) Validate() error {
	if err := required("id", p.ID); err != nil {
		return err
	}
	for name, o := range map[string]Optional[string]{"title": p.Title, "notes": p.Notes, "status": p.Status} {
		if o.Set && o.Null {
			return fieldError(name+" cannot be null", name)
		}
	}
	if p.Status.Set {
		st, err := statusutil.NormalizeStatus(p.Status.Value)
		if err != nil {
			return fieldError(err.Error(), "status")
		}
		p.status = st
	}
	return nil
}

func (p ProjectUpdate) patch() store.ProjectPatch {
	out := store.ProjectPatch{Title: p.Title.Ptr(), Notes: p.Notes.Ptr()}
	if p.Status.Set {
		st := p.status
		out.Status = &st
	}
	return out
}

type AreaCreate struct {
	Title string `json:"title"`
}

func (p *AreaCreate) Validate() error { return required("title", p.Title) }

type AreaUpdate struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func (p *AreaUpdate) Validate() error {
	if err := required("id", p.ID); err != nil {
		return err
	}
	return required("title", p.Title)
}

type SectionCreate struct {
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
}

func (p *SectionCreate) Validate() error {
	if err := required("project_id", p.ProjectID); err != nil {
		return err
	}
	return required("title", p.Title)
}

type TaskList struct {
	ListID string `json:"list_id"`
}

func (p *TaskList) Validate() error { return required("list_id", p.ListID) }

func fieldError(msg, field string) error {
	return &Error{Code: CodeValidation, Message: msg, Details: map[string]any{"field": field}}
}

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return fieldError(field+" is required", field)
	}
	return nil
}

// requiredList rejects a missing array; an empty one is a valid ordering of an empty scope.
func requiredList(field string, v []string) error {
	if v == nil {
		return fieldError(field+" is required", field)
	}
	return nil
}

func optionalID(field string, o Optional[string]) error {
	if o.Set && !o.Null && strings.TrimSpace(o.Value) == "" {
		return fieldError(field+" must be an id or null", field)
	}
	return nil
}

// idPtr rejects a present but blank id; omit the key or send null instead.
func idPtr(field string, p *string) error {
	if p != nil && strings.TrimSpace(*p) == "" {
		return fieldError(field+" must be an id or null", field)
	}
	return nil
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

func nullable(o Optional[string]) store.Nullable {
	if !o.Set {
		return store.Nullable{}
	}
	return store.Nullable{Set: true, Value: trimPtr(o.Ptr())}
}
