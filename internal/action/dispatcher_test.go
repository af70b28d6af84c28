package action

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"planner/internal/model"
	"planner/internal/perm"
	"planner/internal/store"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *store.Store, *test.Hook) {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "planner.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	d := NewPlanner(st, Options{Policy: perm.NewPolicy("ui"), Logger: logger})
	return d, st, hook
}

func call(t *testing.T, d *Dispatcher, action string, payload any) Response {
	t.Helper()
	var raw json.RawMessage
	switch p := payload.(type) {
	case nil:
	case string:
		raw = json.RawMessage(p)
	default:
		b, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		raw = b
	}
	return d.Dispatch(context.Background(), Request{ID: "req-1", Action: action, Payload: raw, Sender: "ui"})
}

func mustOK[T any](t *testing.T, resp Response) T {
	t.Helper()
	if !resp.OK {
		t.Fatalf("expected ok, got %+v", resp.Error)
	}
	var out T
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		t.Fatalf("decode data %s: %v", resp.Data, err)
	}
	return out
}

func wantCode(t *testing.T, resp Response, code string) {
	t.Helper()
	if resp.OK {
		t.Fatalf("expected %s, got ok: %s", code, resp.Data)
	}
	if resp.Error == nil || resp.Error.Code != code {
		t.Fatalf("expected %s, got %+v", code, resp.Error)
	}
}

func TestDispatch_UntrustedSenderIsForbidden(t *testing.T) {
	d, st, _ := newTestDispatcher(t)
	resp := d.Dispatch(context.Background(), Request{
		ID:      "x",
		Action:  "area.create",
		Payload: json.RawMessage(`{"title":"Home"}`),
		Sender:  "http://evil.example",
	})
	wantCode(t, resp, CodeForbidden)
	if resp.ID != "x" {
		t.Fatalf("expected id echoed, got %q", resp.ID)
	}
	sb, err := st.Sidebar(context.Background())
	if err != nil {
		t.Fatalf("sidebar: %v", err)
	}
	if len(sb.Areas) != 0 {
		t.Fatalf("expected no side effect, got %d areas", len(sb.Areas))
	}
}

func TestDispatch_UnknownAction(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	wantCode(t, call(t, d, "task.explode", nil), CodeUnknownAction)
}

func TestDispatch_PanicBecomesInternalError(t *testing.T) {
	logger, hook := test.NewNullLogger()
	d := NewDispatcher(Options{Policy: perm.NewPolicy("ui"), Logger: logger})
	d.Register("boom", func(context.Context, json.RawMessage) (any, error) {
		panic("kaboom")
	})
	resp := call(t, d, "boom", nil)
	wantCode(t, resp, CodeInternal)
	if !strings.Contains(resp.Error.Message, "kaboom") {
		t.Fatalf("expected panic value in message, got %q", resp.Error.Message)
	}
	var sawError bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			sawError = true
		}
	}
	if !sawError {
		t.Fatalf("expected panic to be logged at error level")
	}
}

func TestDispatch_PayloadValidation(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	cases := []struct {
		name    string
		action  string
		payload string
	}{
		{"unknown field", "area.create", `{"title":"Home","color":"red"}`},
		{"missing title", "area.create", `{}`},
		{"malformed json", "task.create", `{"title":`},
		{"missing list", "task.reorderBatch", `{"list_id":"today"}`},
		{"absent area_id", "sidebar.reorderProjects", `{"ordered_project_ids":[]}`},
		{"absent to_area_id", "sidebar.moveProject", `{"project_id":"p","from_area_id":null,"from_ordered_project_ids":[],"to_ordered_project_ids":["p"]}`},
		{"null title", "task.update", `{"id":"t","title":null}`},
		{"bad status", "task.update", `{"id":"t","status":"done-ish"}`},
		{"blank task area_id", "task.create", `{"title":"a","area_id":"  "}`},
		{"blank task project_id", "task.create", `{"title":"a","project_id":""}`},
		{"blank project area_id", "project.create", `{"title":"P","area_id":" "}`},
		{"blank update section_id", "task.update", `{"id":"t","section_id":""}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wantCode(t, call(t, d, tc.action, tc.payload), CodeValidation)
		})
	}
}

func TestDispatch_TaskReorderBatch(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	var ids []string
	for _, title := range []string{"A", "B", "C"} {
		task := mustOK[model.Task](t, call(t, d, "task.create", map[string]any{"title": title}))
		ids = append(ids, task.ID)
	}

	got := mustOK[Reordered](t, call(t, d, "task.reorderBatch", TaskReorderBatch{
		ListID:         "inbox",
		OrderedTaskIDs: []string{ids[2], ids[0], ids[1]},
	}))
	if !got.Reordered {
		t.Fatalf("expected reordered=true")
	}

	list := mustOK[struct {
		Tasks []model.Task `json:"tasks"`
	}](t, call(t, d, "task.list", TaskList{ListID: "inbox"}))
	var order []string
	for _, task := range list.Tasks {
		order = append(order, task.Title)
	}
	if strings.Join(order, ",") != "C,A,B" {
		t.Fatalf("unexpected order %v", order)
	}

	resp := call(t, d, "task.reorderBatch", TaskReorderBatch{ListID: "inbox", OrderedTaskIDs: []string{ids[0], ids[1]}})
	wantCode(t, resp, CodeInvalidOrder)
	if resp.Error.Details["missing"] == nil {
		t.Fatalf("expected missing ids in details, got %+v", resp.Error.Details)
	}
}

func TestDispatch_MoveProjectAcrossGroups(t *testing.T) {
	d, st, _ := newTestDispatcher(t)
	area := mustOK[model.Area](t, call(t, d, "area.create", AreaCreate{Title: "Work"}))
	p := mustOK[model.Project](t, call(t, d, "project.create", map[string]any{"title": "P"}))
	q := mustOK[model.Project](t, call(t, d, "project.create", map[string]any{"title": "Q"}))
	r := mustOK[model.Project](t, call(t, d, "project.create", map[string]any{"title": "R", "area_id": area.ID}))

	payload := `{"project_id":"` + p.ID + `","from_area_id":null,"to_area_id":"` + area.ID + `",` +
		`"from_ordered_project_ids":["` + q.ID + `"],"to_ordered_project_ids":["` + r.ID + `","` + p.ID + `"]}`
	moved := mustOK[Moved](t, call(t, d, "sidebar.moveProject", payload))
	if !moved.Moved {
		t.Fatalf("expected moved=true")
	}

	got, err := st.GetProject(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if model.StrVal(got.AreaID) != area.ID {
		t.Fatalf("expected area %s, got %v", area.ID, got.AreaID)
	}

	sb := mustOK[model.Sidebar](t, call(t, d, "sidebar.get", nil))
	if len(sb.Areas) != 1 || len(sb.Areas[0].Projects) != 2 {
		t.Fatalf("unexpected sidebar %+v", sb)
	}
	if sb.Areas[0].Projects[0].ID != r.ID || sb.Areas[0].Projects[1].ID != p.ID {
		t.Fatalf("unexpected area order")
	}
	if len(sb.Ungrouped) != 1 || sb.Ungrouped[0].ID != q.ID {
		t.Fatalf("unexpected ungrouped %+v", sb.Ungrouped)
	}

	// Replaying the same move is now stale.
	wantCode(t, call(t, d, "sidebar.moveProject", payload), CodeConflict)
}

func TestDispatch_TaskUpdatePatchSemantics(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	area := mustOK[model.Area](t, call(t, d, "area.create", AreaCreate{Title: "Home"}))
	proj := mustOK[model.Project](t, call(t, d, "project.create", map[string]any{"title": "Garden"}))
	task := mustOK[model.Task](t, call(t, d, "task.create", map[string]any{
		"title":         "Water plants",
		"area_id":       area.ID,
		"schedule_date": "2025-12-24",
	}))

	updated := mustOK[model.Task](t, call(t, d, "task.update", map[string]any{
		"id":            task.ID,
		"project_id":    proj.ID,
		"schedule_date": nil,
		"status":        "completed",
	}))
	if model.StrVal(updated.ProjectID) != proj.ID {
		t.Fatalf("expected project set, got %v", updated.ProjectID)
	}
	if updated.AreaID != nil {
		t.Fatalf("expected project assignment to clear area, got %v", *updated.AreaID)
	}
	if updated.ScheduleDate != nil {
		t.Fatalf("expected null to clear schedule_date")
	}
	if updated.Status != model.StatusCompleted || updated.CompletedAt == nil {
		t.Fatalf("expected completed with timestamp, got %s %v", updated.Status, updated.CompletedAt)
	}
	if updated.Title != "Water plants" {
		t.Fatalf("absent title must be unchanged, got %q", updated.Title)
	}

	wantCode(t, call(t, d, "task.update", map[string]any{"id": "task-missing", "notes": "x"}), CodeNotFound)
}
