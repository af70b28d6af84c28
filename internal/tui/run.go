package tui

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"planner/internal/autosave"
	"planner/internal/model"
)

type RunOptions struct {
	Saver    autosave.Saver
	Autosave autosave.Options
	Task     model.Task
	Input    io.Reader
	Output   io.Writer
}

// Run edits one task until the user closes the editor. If the program stops without a
// successful close (e.g. ctx is canceled), a final flush is attempted and its failure is
// returned.
func Run(ctx context.Context, opts RunOptions) error {
	applyColorProfilePreference()
	applyThemePreference()

	events := make(chan struct{}, 1)
	aopts := opts.Autosave
	onChange := aopts.OnChange
	aopts.OnChange = func(st autosave.Status) {
		if onChange != nil {
			onChange(st)
		}
		select {
		case events <- struct{}{}:
		default:
		}
	}
	host := autosave.NewHost(opts.Saver, aopts)

	m, err := New(ctx, Options{Host: host, Task: opts.Task, Events: events})
	if err != nil {
		return err
	}
	progOpts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if opts.Input != nil {
		progOpts = append(progOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		progOpts = append(progOpts, tea.WithOutput(opts.Output))
	}
	final, runErr := tea.NewProgram(m, progOpts...).Run()
	if fm, ok := final.(Model); ok && fm.Closed() {
		return nil
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), defaultCloseTimeout)
	defer cancel()
	if err := host.Close(flushCtx); err != nil {
		return err
	}
	if runErr != nil && ctx.Err() == nil {
		return fmt.Errorf("editor: %w", runErr)
	}
	return nil
}
