package autosave

import (
	"slices"
	"sort"

	"planner/internal/model"
)

// Field names match the task.update payload keys.
type Field string

const (
	FieldTitle        Field = "title"
	FieldNotes        Field = "notes"
	FieldStatus       Field = "status"
	FieldProjectID    Field = "project_id"
	FieldSectionID    Field = "section_id"
	FieldAreaID       Field = "area_id"
	FieldScheduleDate Field = "schedule_date"
	FieldTags         Field = "tags"
)

type Class int

const (
	// Structural fields are discrete selections and save on the short debounce.
	Structural Class = iota
	// Text fields are keystroke-heavy and save on the long debounce.
	Text
)

func (f Field) Class() Class {
	switch f {
	case FieldTitle, FieldNotes:
		return Text
	}
	return Structural
}

// Fields is the editable slice of a task. It is both the draft and the last-confirmed
// snapshot of an editor session.
type Fields struct {
	Title        string
	Notes        string
	Status       model.Status
	ProjectID    *string
	SectionID    *string
	AreaID       *string
	ScheduleDate *string
	Tags         []string
}

func FieldsOf(t model.Task) Fields {
	return Fields{
		Title:        t.Title,
		Notes:        t.Notes,
		Status:       t.Status,
		ProjectID:    clonePtr(t.ProjectID),
		SectionID:    clonePtr(t.SectionID),
		AreaID:       clonePtr(t.AreaID),
		ScheduleDate: clonePtr(t.ScheduleDate),
		Tags:         slices.Clone(t.Tags),
	}
}

func (f Fields) clone() Fields {
	out := f
	out.ProjectID = clonePtr(f.ProjectID)
	out.SectionID = clonePtr(f.SectionID)
	out.AreaID = clonePtr(f.AreaID)
	out.ScheduleDate = clonePtr(f.ScheduleDate)
	out.Tags = slices.Clone(f.Tags)
	return out
}

// Patch holds changed fields only. Nullable fields carry a *string; nil clears.
type Patch map[Field]any

// Diff returns the fields of draft that differ from base.
func Diff(base, draft Fields) Patch {
	p := Patch{}
	if base.Title != draft.Title {
		p[FieldTitle] = draft.Title
	}
	if base.Notes != draft.Notes {
		p[FieldNotes] = draft.Notes
	}
	if base.Status != draft.Status {
		p[FieldStatus] = draft.Status
	}
	for _, f := range []struct {
		name        Field
		base, draft *string
	}{
		{FieldProjectID, base.ProjectID, draft.ProjectID},
		{FieldSectionID, base.SectionID, draft.SectionID},
		{FieldAreaID, base.AreaID, draft.AreaID},
		{FieldScheduleDate, base.ScheduleDate, draft.ScheduleDate},
	} {
		if !model.SameStrPtr(f.base, f.draft) {
			p[f.name] = clonePtr(f.draft)
		}
	}
	if !slices.Equal(base.Tags, draft.Tags) {
		p[FieldTags] = slices.Clone(draft.Tags)
	}
	return p
}

func (p Patch) Empty() bool { return len(p) == 0 }

// Fields lists the patched fields in stable order.
func (p Patch) Fields() []Field {
	out := make([]Field, 0, len(p))
	for f := range p {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Class is Structural when any patched field is structural.
func (p Patch) Class() Class {
	for f := range p {
		if f.Class() == Structural {
			return Structural
		}
	}
	return Text
}

// Apply returns base with the patch written over it.
func (p Patch) Apply(base Fields) Fields {
	out := base.clone()
	for f, v := range p {
		switch f {
		case FieldTitle:
			out.Title = v.(string)
		case FieldNotes:
			out.Notes = v.(string)
		case FieldStatus:
			out.Status = v.(model.Status)
		case FieldProjectID:
			out.ProjectID = clonePtr(v.(*string))
		case FieldSectionID:
			out.SectionID = clonePtr(v.(*string))
		case FieldAreaID:
			out.AreaID = clonePtr(v.(*string))
		case FieldScheduleDate:
			out.ScheduleDate = clonePtr(v.(*string))
		case FieldTags:
			out.Tags = slices.Clone(v.([]string))
		}
	}
	return out
}

// Payload renders the patch as a task.update request body.
func (p Patch) Payload(taskID string) map[string]any {
	out := map[string]any{"id": taskID}
	for f, v := range p {
		switch tv := v.(type) {
		case *string:
			if tv == nil {
				out[string(f)] = nil
			} else {
				out[string(f)] = *tv
			}
		case model.Status:
			out[string(f)] = string(tv)
		case []string:
			if tv == nil {
				tv = []string{}
			}
			out[string(f)] = tv
		default:
			out[string(f)] = v
		}
	}
	return out
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
