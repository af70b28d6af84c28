package autosave

import (
	"context"

	"planner/internal/model"
	"planner/internal/worker"
)

// Saver persists one patch for one task and returns the stored task.
type Saver interface {
	Save(ctx context.Context, taskID string, p Patch) (model.Task, error)
}

// ActionSaver saves through the action boundary with task.update.
type ActionSaver struct {
	Caller worker.Caller
}

func (s ActionSaver) Save(ctx context.Context, taskID string, p Patch) (model.Task, error) {
	return worker.Decode[model.Task](s.Caller.Call(ctx, "task.update", p.Payload(taskID)))
}
