package action

import (
	"context"
	"strings"

	"planner/internal/model"
	"planner/internal/store"
)

type Reordered struct {
	Reordered bool `json:"reordered"`
}

type Moved struct {
	Moved bool `json:"moved"`
}

type Deleted struct {
	Deleted bool `json:"deleted"`
}

// Register wires every planner action onto d, backed by st.
func Register(d *Dispatcher, st *store.Store) {
	// Ordering.
	d.Register("task.reorderBatch", Handle(func(ctx context.Context, p TaskReorderBatch) (any, error) {
		sc, err := store.ParseListID(p.ListID)
		if err != nil {
			return nil, err
		}
		if err := st.ReorderTasks(ctx, sc, p.OrderedTaskIDs); err != nil {
			return nil, err
		}
		return Reordered{Reordered: true}, nil
	}))
	d.Register("sidebar.reorderAreas", Handle(func(ctx context.Context, p ReorderAreas) (any, error) {
		if err := st.Reorder(ctx, store.AreasScope(), p.OrderedAreaIDs); err != nil {
			return nil, err
		}
		return Reordered{Reordered: true}, nil
	}))
	d.Register("sidebar.reorderProjects", Handle(func(ctx context.Context, p ReorderProjects) (any, error) {
		sc := store.AreaProjectsScope(trimPtr(p.AreaID.Ptr()))
		if err := st.Reorder(ctx, sc, p.OrderedProjectIDs); err != nil {
			return nil, err
		}
		return Reordered{Reordered: true}, nil
	}))
	d.Register("sidebar.moveProject", Handle(func(ctx context.Context, p MoveProject) (any, error) {
		if err := st.MoveProject(ctx, p.input()); err != nil {
			return nil, err
		}
		return Moved{Moved: true}, nil
	}))
	d.Register("sidebar.get", Handle(func(ctx context.Context, _ struct{}) (any, error) {
		return st.Sidebar(ctx)
	}))

	// Tasks.
	d.Register("task.create", Handle(func(ctx context.Context, p TaskCreate) (any, error) {
		return st.CreateTask(ctx, p.newTask())
	}))
	d.Register("task.get", Handle(func(ctx context.Context, p IDPayload) (any, error) {
		return st.GetTask(ctx, p.ID)
	}))
	d.Register("task.update", Handle(func(ctx context.Context, p TaskUpdate) (any, error) {
		patch := p.patch()
		if patch.Empty() {
			return st.GetTask(ctx, p.ID)
		}
		return st.UpdateTask(ctx, p.ID, patch)
	}))
	d.Register("task.delete", Handle(func(ctx context.Context, p IDPayload) (any, error) {
		if err := st.DeleteTask(ctx, p.ID); err != nil {
			return nil, err
		}
		return Deleted{Deleted: true}, nil
	}))
	d.Register("task.list", Handle(func(ctx context.Context, p TaskList) (any, error) {
		sc, err := store.ParseListID(p.ListID)
		if err != nil {
			return nil, err
		}
		ts, err := st.ListTasks(ctx, sc)
		if err != nil {
			return nil, err
		}
		return struct {
			ListID string       `json:"list_id"`
			Tasks  []model.Task `json:"tasks"`
		}{sc.ID(), ts}, nil
	}))

	// Projects, areas, sections.
	d.Register("project.create", Handle(func(ctx context.Context, p ProjectCreate) (any, error) {
		return st.CreateProject(ctx, p.Title, trimPtr(p.AreaID))
	}))
	d.Register("project.get", Handle(func(ctx context.Context, p IDPayload) (any, error) {
		return st.GetProject(ctx, p.ID)
	}))
	d.Register("project.update", Handle(func(ctx context.Context, p ProjectUpdate) (any, error) {
		return st.UpdateProject(ctx, strings.TrimSpace(p.ID), p.patch())
	}))
	d.Register("project.delete", Handle(func(ctx context.Context, p IDPayload) (any, error) {
		if err := st.DeleteProject(ctx, p.ID); err != nil {
			return nil, err
		}
		return Deleted{Deleted: true}, nil
	}))
	d.Register("area.create", Handle(func(ctx context.Context, p AreaCreate) (any, error) {
		return st.CreateArea(ctx, p.Title)
	}))
	d.Register("area.update", Handle(func(ctx context.Context, p AreaUpdate) (any, error) {
		return st.RenameArea(ctx, p.ID, p.Title)
	}))
	d.Register("area.delete", Handle(func(ctx context.Context, p IDPayload) (any, error) {
		if err := st.DeleteArea(ctx, p.ID); err != nil {
			return nil, err
		}
		return Deleted{Deleted: true}, nil
	}))
	d.Register("section.create", Handle(func(ctx context.Context, p SectionCreate) (any, error) {
		return st.CreateSection(ctx, strings.TrimSpace(p.ProjectID), p.Title)
	}))
	d.Register("section.delete", Handle(func(ctx context.Context, p IDPayload) (any, error) {
		if err := st.DeleteSection(ctx, p.ID); err != nil {
			return nil, err
		}
		return Deleted{Deleted: true}, nil
	}))
}

// NewPlanner builds a dispatcher with every action registered.
func NewPlanner(st *store.Store, opts Options) *Dispatcher {
	d := NewDispatcher(opts)
	Register(d, st)
	return d
}
