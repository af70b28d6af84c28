package store

import (
	"strings"
)

type ScopeKind string

const (
	// Task lists.
	ScopeInbox    ScopeKind = "inbox"
	ScopeToday    ScopeKind = "today"
	ScopeUpcoming ScopeKind = "upcoming"
	ScopeAnytime  ScopeKind = "anytime"
	ScopeProject  ScopeKind = "project"
	ScopeSection  ScopeKind = "section"
	ScopeArea     ScopeKind = "area"

	// Sidebar.
	ScopeAreas        ScopeKind = "areas"
	ScopeAreaProjects ScopeKind = "projects"
)

const ungroupedRef = "ungrouped"

// Scope identifies one ordering context. Ref is the owning entity id for container scopes
// (project, section, area, projects-of-area); it is empty for the fixed lists and for
// the ungrouped projects scope.
type Scope struct {
	Kind ScopeKind
	Ref  string
}

// ID is the stable key rank rows are stored under.
func (sc Scope) ID() string {
	switch sc.Kind {
	case ScopeProject, ScopeSection, ScopeArea:
		return string(sc.Kind) + ":" + sc.Ref
	case ScopeAreaProjects:
		if sc.Ref == "" {
			return string(sc.Kind) + ":" + ungroupedRef
		}
		return string(sc.Kind) + ":" + sc.Ref
	default:
		return string(sc.Kind)
	}
}

func (sc Scope) String() string { return sc.ID() }

// isTaskList reports whether members of the scope are tasks.
func (sc Scope) isTaskList() bool {
	switch sc.Kind {
	case ScopeInbox, ScopeToday, ScopeUpcoming, ScopeAnytime, ScopeProject, ScopeSection, ScopeArea:
		return true
	}
	return false
}

func AreasScope() Scope { return Scope{Kind: ScopeAreas} }

// AreaProjectsScope is the open projects under areaID, or the ungrouped projects when nil.
func AreaProjectsScope(areaID *string) Scope {
	if areaID == nil {
		return Scope{Kind: ScopeAreaProjects}
	}
	return Scope{Kind: ScopeAreaProjects, Ref: *areaID}
}

// ParseListID parses a task list identifier such as "today" or "project:<id>".
func ParseListID(listID string) (Scope, error) {
	raw := strings.TrimSpace(listID)
	if raw == "" {
		return Scope{}, Validation("list_id is required", map[string]any{"field": "list_id"})
	}
	switch ScopeKind(raw) {
	case ScopeInbox, ScopeToday, ScopeUpcoming, ScopeAnytime:
		return Scope{Kind: ScopeKind(raw)}, nil
	}
	kind, ref, ok := strings.Cut(raw, ":")
	ref = strings.TrimSpace(ref)
	if ok && ref != "" {
		switch ScopeKind(kind) {
		case ScopeProject, ScopeSection, ScopeArea:
			return Scope{Kind: ScopeKind(kind), Ref: ref}, nil
		}
	}
	return Scope{}, Validation("unknown list_id: "+raw, map[string]any{"field": "list_id", "value": raw})
}
