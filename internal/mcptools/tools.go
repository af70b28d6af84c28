// Package mcptools exposes planner actions as MCP tools.
//
// Every tool is a thin translation from flat tool arguments to one action envelope; the
// action boundary does all validation. Id lists are comma-separated strings.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"planner/internal/action"
	"planner/internal/worker"
)

// SenderMCP is the sender stamped on requests arriving through MCP.
const SenderMCP = "mcp"

// Version is reported to MCP clients.
var Version = "dev"

type tool struct {
	def    mcp.Tool
	action string
	build  func(args map[string]any) (map[string]any, error)
}

// Tools forwards MCP tool calls to the action boundary.
type Tools struct {
	caller worker.Caller
	tools  []tool
}

func New(caller worker.Caller) *Tools {
	return &Tools{caller: caller, tools: definitions()}
}

// NewServer builds an MCP server with every planner tool registered.
func NewServer(caller worker.Caller) *server.MCPServer {
	s := server.NewMCPServer(
		"planner",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions("Planner tasks, projects and areas. Lists are ordered manually: "+
			"reorder tools take the complete current membership of the list in the desired order."),
	)
	New(caller).Register(s)
	return s
}

func (t *Tools) Register(s *server.MCPServer) {
	for _, tl := range t.tools {
		s.AddTool(tl.def, t.handler(tl))
	}
}

func (t *Tools) Definitions() []mcp.Tool {
	out := make([]mcp.Tool, 0, len(t.tools))
	for _, tl := range t.tools {
		out = append(out, tl.def)
	}
	return out
}

// Handle runs the named tool directly.
func (t *Tools) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	for _, tl := range t.tools {
		if tl.def.Name == req.Params.Name {
			return t.handler(tl)(ctx, req)
		}
	}
	return mcp.NewToolResultError("unknown tool: " + req.Params.Name), nil
}

func (t *Tools) handler(tl tool) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		if args == nil {
			args = map[string]any{}
		}
		payload, err := tl.build(args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		data, err := t.caller.Call(ctx, tl.action, payload)
		if err != nil {
			ae := action.AsError(err)
			msg := ae.Code + ": " + ae.Message
			if len(ae.Details) > 0 {
				if b, jerr := json.Marshal(ae.Details); jerr == nil {
					msg += " " + string(b)
				}
			}
			return mcp.NewToolResultError(msg), nil
		}
		return mcp.NewToolResultText(prettyJSON(data)), nil
	}
}

func prettyJSON(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(b)
}

func definitions() []tool {
	return []tool{
		{
			def: mcp.NewTool("planner_list_tasks",
				mcp.WithDescription("List the open tasks of a list in manual order. "+
					"Lists: inbox, today, upcoming, anytime, project:<id>, section:<id>, area:<id>."),
				mcp.WithString("list_id", mcp.Required(), mcp.Description("List identifier")),
			),
			action: "task.list",
			build: func(a map[string]any) (map[string]any, error) {
				return map[string]any{"list_id": str(a, "list_id")}, nil
			},
		},
		{
			def:    mcp.NewTool("planner_sidebar", mcp.WithDescription("Areas with their projects, and ungrouped projects, in manual order.")),
			action: "sidebar.get",
			build:  func(map[string]any) (map[string]any, error) { return map[string]any{}, nil },
		},
		{
			def: mcp.NewTool("planner_reorder_tasks",
				mcp.WithDescription("Rewrite the order of a task list. The ids must be exactly the list's current tasks."),
				mcp.WithString("list_id", mcp.Required(), mcp.Description("List identifier")),
				mcp.WithString("ordered_task_ids", mcp.Required(), mcp.Description("Comma-separated task ids in the new order")),
			),
			action: "task.reorderBatch",
			build: func(a map[string]any) (map[string]any, error) {
				return map[string]any{
					"list_id":          str(a, "list_id"),
					"ordered_task_ids": ids(a, "ordered_task_ids"),
				}, nil
			},
		},
		{
			def: mcp.NewTool("planner_reorder_areas",
				mcp.WithDescription("Rewrite the order of all areas."),
				mcp.WithString("ordered_area_ids", mcp.Required(), mcp.Description("Comma-separated area ids in the new order")),
			),
			action: "sidebar.reorderAreas",
			build: func(a map[string]any) (map[string]any, error) {
				return map[string]any{"ordered_area_ids": ids(a, "ordered_area_ids")}, nil
			},
		},
		{
			def: mcp.NewTool("planner_reorder_projects",
				mcp.WithDescription("Rewrite the order of the open projects in one area, or of the ungrouped projects."),
				mcp.WithString("area_id", mcp.Description("Area id; omit or leave empty for ungrouped projects")),
				mcp.WithString("ordered_project_ids", mcp.Required(), mcp.Description("Comma-separated project ids in the new order")),
			),
			action: "sidebar.reorderProjects",
			build: func(a map[string]any) (map[string]any, error) {
				return map[string]any{
					"area_id":             nullable(a, "area_id"),
					"ordered_project_ids": ids(a, "ordered_project_ids"),
				}, nil
			},
		},
		{
			def: mcp.NewTool("planner_move_project",
				mcp.WithDescription("Move an open project to another area (or to ungrouped) and set the order of both groups. "+
					"from_area_id must be the project's current area."),
				mcp.WithString("project_id", mcp.Required(), mcp.Description("Project to move")),
				mcp.WithString("from_area_id", mcp.Description("Current area id; empty for ungrouped")),
				mcp.WithString("to_area_id", mcp.Description("Target area id; empty for ungrouped")),
				mcp.WithString("from_ordered_project_ids", mcp.Description("Comma-separated remaining source projects in order")),
				mcp.WithString("to_ordered_project_ids", mcp.Required(), mcp.Description("Comma-separated target projects in order, including the moved project")),
			),
			action: "sidebar.moveProject",
			build: func(a map[string]any) (map[string]any, error) {
				return map[string]any{
					"project_id":               str(a, "project_id"),
					"from_area_id":             nullable(a, "from_area_id"),
					"to_area_id":               nullable(a, "to_area_id"),
					"from_ordered_project_ids": ids(a, "from_ordered_project_ids"),
					"to_ordered_project_ids":   ids(a, "to_ordered_project_ids"),
				}, nil
			},
		},
		{
			def: mcp.NewTool("planner_create_task",
				mcp.WithDescription("Create a task. Without project or area it lands in the inbox."),
				mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
				mcp.WithString("notes", mcp.Description("Markdown notes")),
				mcp.WithString("project_id", mcp.Description("Project id")),
				mcp.WithString("area_id", mcp.Description("Area id (only without project)")),
				mcp.WithString("schedule_date", mcp.Description("YYYY-MM-DD")),
			),
			action: "task.create",
			build: func(a map[string]any) (map[string]any, error) {
				out := map[string]any{"title": str(a, "title")}
				for _, k := range []string{"notes", "project_id", "area_id", "schedule_date"} {
					if v := str(a, k); v != "" {
						out[k] = v
					}
				}
				return out, nil
			},
		},
		{
			def: mcp.NewTool("planner_update_task",
				mcp.WithDescription("Update task fields. Only the given fields change; pass \"none\" to clear schedule_date, project_id or area_id."),
				mcp.WithString("id", mcp.Required(), mcp.Description("Task id")),
				mcp.WithString("title", mcp.Description("New title")),
				mcp.WithString("notes", mcp.Description("New notes")),
				mcp.WithString("status", mcp.Description("open, completed or canceled"), mcp.Enum("open", "completed", "canceled")),
				mcp.WithString("schedule_date", mcp.Description("YYYY-MM-DD or none")),
				mcp.WithString("project_id", mcp.Description("Project id or none")),
				mcp.WithString("area_id", mcp.Description("Area id or none")),
			),
			action: "task.update",
			build: func(a map[string]any) (map[string]any, error) {
				out := map[string]any{"id": str(a, "id")}
				for _, k := range []string{"title", "notes", "status"} {
					if _, ok := a[k]; ok {
						out[k] = str(a, k)
					}
				}
				for _, k := range []string{"schedule_date", "project_id", "area_id"} {
					if _, ok := a[k]; !ok {
						continue
					}
					if v := str(a, k); v == "" || strings.EqualFold(v, "none") {
						out[k] = nil
					} else {
						out[k] = v
					}
				}
				if len(out) == 1 {
					return nil, fmt.Errorf("nothing to update")
				}
				return out, nil
			},
		},
	}
}

func str(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// nullable maps an empty argument to JSON null.
func nullable(args map[string]any, key string) any {
	if v := str(args, key); v != "" {
		return v
	}
	return nil
}

// ids splits a comma-separated list. Array arguments are accepted as well.
func ids(args map[string]any, key string) []string {
	out := []string{}
	switch v := args[key].(type) {
	case []any:
		for _, x := range v {
			if s := strings.TrimSpace(fmt.Sprint(x)); s != "" {
				out = append(out, s)
			}
		}
	default:
		for _, part := range strings.Split(str(args, key), ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
