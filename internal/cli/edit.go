package cli

import (
	"context"

	"github.com/spf13/cobra"

	"planner/internal/autosave"
	"planner/internal/model"
	"planner/internal/tui"
	"planner/internal/worker"
)

func newEditCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <task-id>",
		Short: "Open the interactive editor for a task (changes autosave)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCaller(cmd, app, func(ctx context.Context, c worker.Caller) error {
				task, err := worker.Decode[model.Task](c.Call(ctx, "task.get", map[string]any{"id": args[0]}))
				if err != nil {
					return writeErr(cmd, err)
				}
				err = tui.Run(ctx, tui.RunOptions{
					Saver: autosave.ActionSaver{Caller: c},
					Autosave: autosave.Options{
						TextDebounce:       app.cfg.Autosave.TextDebounce,
						StructuralDebounce: app.cfg.Autosave.StructuralDebounce,
						Logger:             app.log,
					},
					Task:   task,
					Input:  cmd.InOrStdin(),
					Output: cmd.OutOrStdout(),
				})
				if err != nil {
					return writeErr(cmd, err)
				}
				return nil
			})
		},
	}
}
