package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"planner/internal/model"
	"planner/internal/worker"
)

func newCallCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "call <action> [json-payload]",
		Short: "Send one action to the worker and print its data",
		Example: strings.TrimSpace(`
  planner call task.reorderBatch '{"list_id":"inbox","ordered_task_ids":["task-b","task-a"]}'
  planner call sidebar.get
`),
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload json.RawMessage
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return writeErr(cmd, fmt.Errorf("payload is not valid JSON: %s", args[1]))
				}
				payload = json.RawMessage(args[1])
			}
			return withCaller(cmd, app, func(ctx context.Context, c worker.Caller) error {
				data, err := c.Call(ctx, args[0], payload)
				if err != nil {
					return writeErr(cmd, err)
				}
				if len(data) == 0 {
					data = json.RawMessage("null")
				}
				return writeOut(cmd, app, data)
			})
		},
	}
}

func newListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list <list-id>",
		Short: "Print the ordered open tasks of a list (inbox, today, upcoming, anytime, project:<id>, ...)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCaller(cmd, app, func(ctx context.Context, c worker.Caller) error {
				list, err := worker.Decode[taskList](c.Call(ctx, "task.list", map[string]any{"list_id": args[0]}))
				if err != nil {
					return writeErr(cmd, err)
				}
				return writeOut(cmd, app, list)
			})
		},
	}
}

func newSidebarCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sidebar",
		Short: "Print areas and their projects in sidebar order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCaller(cmd, app, func(ctx context.Context, c worker.Caller) error {
				sb, err := worker.Decode[sidebarView](c.Call(ctx, "sidebar.get", nil))
				if err != nil {
					return writeErr(cmd, err)
				}
				return writeOut(cmd, app, sb)
			})
		},
	}
}

func withCaller(cmd *cobra.Command, app *App, fn func(context.Context, worker.Caller) error) error {
	ctx := cmd.Context()
	c, release, err := app.caller(ctx, worker.SenderUI)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer func() {
		if err := release(); err != nil {
			app.log.WithError(err).Warn("release worker")
		}
	}()
	return fn(ctx, c)
}

type taskList struct {
	ListID string       `json:"list_id"`
	Tasks  []model.Task `json:"tasks"`
}

func (l taskList) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d)", l.ListID, len(l.Tasks))
	for _, t := range l.Tasks {
		b.WriteString("\n  " + taskLine(t))
	}
	return b.String()
}

func taskLine(t model.Task) string {
	line := t.ID + "  " + t.Title
	if t.ScheduleDate != nil {
		line += "  [" + *t.ScheduleDate + "]"
	}
	if len(t.Tags) > 0 {
		line += "  #" + strings.Join(t.Tags, " #")
	}
	return line
}

type sidebarView model.Sidebar

func (s sidebarView) Text() string {
	var b strings.Builder
	for _, g := range s.Areas {
		fmt.Fprintf(&b, "%s  %s\n", g.Area.ID, g.Area.Title)
		for _, p := range g.Projects {
			fmt.Fprintf(&b, "  %s  %s\n", p.ID, p.Title)
		}
	}
	if len(s.Ungrouped) > 0 {
		b.WriteString("(no area)\n")
		for _, p := range s.Ungrouped {
			fmt.Fprintf(&b, "  %s  %s\n", p.ID, p.Title)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
