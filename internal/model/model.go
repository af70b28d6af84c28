package model

import "time"

type Status string

const (
	StatusOpen      Status = "open"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
)

type Area struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

type Project struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Notes       string     `json:"notes"`
	Status      Status     `json:"status"`
	AreaID      *string    `json:"area_id"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

type Section struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"project_id"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

type Task struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Notes     string  `json:"notes"`
	Status    Status  `json:"status"`
	ProjectID *string `json:"project_id"`
	SectionID *string `json:"section_id"`
	AreaID    *string `json:"area_id"`

	// ScheduleDate is a local calendar date (YYYY-MM-DD).
	ScheduleDate *string  `json:"schedule_date"`
	Tags         []string `json:"tags"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// RankEntry is one row of a scope's manual ordering.
type RankEntry struct {
	ScopeID  string    `json:"scope_id"`
	EntityID string    `json:"entity_id"`
	Rank     int64     `json:"rank"`
	Updated  time.Time `json:"updated_at"`
}

// SidebarGroup is one area with its ordered open projects.
type SidebarGroup struct {
	Area     Area      `json:"area"`
	Projects []Project `json:"projects"`
}

type Sidebar struct {
	Areas     []SidebarGroup `json:"areas"`
	Ungrouped []Project      `json:"ungrouped"`
}

func StrPtr(s string) *string { return &s }

// StrVal returns the pointed-to string, or "" for nil.
func StrVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func SameStrPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
