package mcptools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus/hooks/test"

	"planner/internal/action"
	"planner/internal/model"
	"planner/internal/perm"
	"planner/internal/store"
	"planner/internal/worker"
)

func newTestTools(t *testing.T) (*Tools, worker.Caller) {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "planner.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	logger, _ := test.NewNullLogger()
	d := action.NewPlanner(st, action.Options{Policy: perm.NewPolicy(SenderMCP), Logger: logger})
	caller := worker.Local{Dispatcher: d, Sender: SenderMCP}
	return New(caller), caller
}

func makeReq(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(r *mcp.CallToolResult) string {
	if r == nil {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestDefinitions_RequiredArguments(t *testing.T) {
	tools, _ := newTestTools(t)
	byName := map[string]mcp.Tool{}
	for _, d := range tools.Definitions() {
		byName[d.Name] = d
	}
	move, ok := byName["planner_move_project"]
	if !ok {
		t.Fatalf("missing planner_move_project")
	}
	required := strings.Join(move.InputSchema.Required, ",")
	if !strings.Contains(required, "project_id") || !strings.Contains(required, "to_ordered_project_ids") {
		t.Fatalf("unexpected required args %q", required)
	}
	if _, ok := byName["planner_reorder_tasks"]; !ok {
		t.Fatalf("missing planner_reorder_tasks")
	}
}

func TestReorderTasks_ThroughTool(t *testing.T) {
	tools, caller := newTestTools(t)
	ctx := context.Background()
	var ids []string
	for _, title := range []string{"one", "two"} {
		task, err := worker.Decode[model.Task](caller.Call(ctx, "task.create", map[string]any{"title": title}))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, task.ID)
	}

	res, err := tools.Handle(ctx, makeReq("planner_reorder_tasks", map[string]any{
		"list_id":          "inbox",
		"ordered_task_ids": ids[1] + ", " + ids[0],
	}))
	if err != nil || res.IsError {
		t.Fatalf("reorder failed: %v %s", err, resultText(res))
	}

	res, err = tools.Handle(ctx, makeReq("planner_list_tasks", map[string]any{"list_id": "inbox"}))
	if err != nil || res.IsError {
		t.Fatalf("list failed: %v %s", err, resultText(res))
	}
	var list struct {
		Tasks []model.Task `json:"tasks"`
	}
	if err := json.Unmarshal([]byte(resultText(res)), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Tasks) != 2 || list.Tasks[0].Title != "two" {
		t.Fatalf("unexpected order %+v", list.Tasks)
	}
}

func TestMoveProject_StaleSourceSurfacesCode(t *testing.T) {
	tools, caller := newTestTools(t)
	ctx := context.Background()
	area, err := worker.Decode[model.Area](caller.Call(ctx, "area.create", map[string]any{"title": "Work"}))
	if err != nil {
		t.Fatalf("area: %v", err)
	}
	p, err := worker.Decode[model.Project](caller.Call(ctx, "project.create", map[string]any{"title": "P"}))
	if err != nil {
		t.Fatalf("project: %v", err)
	}

	res, err := tools.Handle(ctx, makeReq("planner_move_project", map[string]any{
		"project_id":             p.ID,
		"from_area_id":           area.ID,
		"to_area_id":             "",
		"to_ordered_project_ids": p.ID,
	}))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !res.IsError || !strings.HasPrefix(resultText(res), "CONFLICT") {
		t.Fatalf("expected CONFLICT, got %q", resultText(res))
	}
}

func TestUpdateTask_NoneClearsSchedule(t *testing.T) {
	tools, caller := newTestTools(t)
	ctx := context.Background()
	task, err := worker.Decode[model.Task](caller.Call(ctx, "task.create", map[string]any{
		"title":         "Dentist",
		"schedule_date": "2025-12-30",
	}))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	res, err := tools.Handle(ctx, makeReq("planner_update_task", map[string]any{
		"id":            task.ID,
		"schedule_date": "none",
	}))
	if err != nil || res.IsError {
		t.Fatalf("update failed: %v %s", err, resultText(res))
	}
	var got model.Task
	if err := json.Unmarshal([]byte(resultText(res)), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ScheduleDate != nil {
		t.Fatalf("expected schedule cleared, got %v", *got.ScheduleDate)
	}

	res, _ = tools.Handle(ctx, makeReq("planner_update_task", map[string]any{"id": task.ID}))
	if !res.IsError {
		t.Fatalf("expected error for empty update")
	}
}
