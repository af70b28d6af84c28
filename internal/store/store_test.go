package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"planner/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "planner.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	base := time.Date(2025, 12, 20, 9, 0, 0, 0, time.UTC)
	var n int64
	s.Clock = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Millisecond)
	}
	return s
}

func mustTask(t *testing.T, s *Store, in NewTask) model.Task {
	t.Helper()
	task, err := s.CreateTask(context.Background(), in)
	if err != nil {
		t.Fatalf("create task %q: %v", in.Title, err)
	}
	return task
}

func mustProject(t *testing.T, s *Store, title string, areaID *string) model.Project {
	t.Helper()
	p, err := s.CreateProject(context.Background(), title, areaID)
	if err != nil {
		t.Fatalf("create project %q: %v", title, err)
	}
	return p
}

func mustArea(t *testing.T, s *Store, title string) model.Area {
	t.Helper()
	a, err := s.CreateArea(context.Background(), title)
	if err != nil {
		t.Fatalf("create area %q: %v", title, err)
	}
	return a
}

func rankMap(t *testing.T, s *Store, sc Scope) map[string]int64 {
	t.Helper()
	rows, err := s.Ranks(context.Background(), sc)
	if err != nil {
		t.Fatalf("ranks %s: %v", sc, err)
	}
	out := map[string]int64{}
	for _, r := range rows {
		out[r.EntityID] = r.Rank
	}
	return out
}

// snapshot captures every rank row and every project's area assignment.
func snapshot(t *testing.T, s *Store) string {
	t.Helper()
	ctx := context.Background()
	var lines []string

	rows, err := s.db.QueryContext(ctx, `SELECT scope_id, entity_id, rank, updated_at_unixms FROM ranks`)
	if err != nil {
		t.Fatalf("snapshot ranks: %v", err)
	}
	for rows.Next() {
		var scope, id string
		var rank, upd int64
		if err := rows.Scan(&scope, &id, &rank, &upd); err != nil {
			t.Fatalf("scan rank: %v", err)
		}
		lines = append(lines, fmt.Sprintf("rank %s %s %d %d", scope, id, rank, upd))
	}
	rows.Close()

	prow, err := s.db.QueryContext(ctx, `SELECT id, COALESCE(area_id, '<nil>'), updated_at_unixms FROM projects`)
	if err != nil {
		t.Fatalf("snapshot projects: %v", err)
	}
	for prow.Next() {
		var id, area string
		var upd int64
		if err := prow.Scan(&id, &area, &upd); err != nil {
			t.Fatalf("scan project: %v", err)
		}
		lines = append(lines, fmt.Sprintf("project %s %s %d", id, area, upd))
	}
	prow.Close()

	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

func titles(tasks []model.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Title)
	}
	return out
}

func TestReorder_TodayScenario(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	today := "2025-12-20"

	a := mustTask(t, s, NewTask{Title: "A", ScheduleDate: &today})
	b := mustTask(t, s, NewTask{Title: "B", ScheduleDate: &today})
	c := mustTask(t, s, NewTask{Title: "C", ScheduleDate: &today})

	sc := Scope{Kind: ScopeToday}
	if _, err := s.EnsureInitialized(ctx, sc); err != nil {
		t.Fatalf("init: %v", err)
	}
	got := rankMap(t, s, sc)
	if got[a.ID] != 1000 || got[b.ID] != 2000 || got[c.ID] != 3000 {
		t.Fatalf("expected initial ranks 1000/2000/3000; got %v", got)
	}

	if err := s.Reorder(ctx, sc, []string{c.ID, a.ID, b.ID}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	got = rankMap(t, s, sc)
	if got[c.ID] != 1000 || got[a.ID] != 2000 || got[b.ID] != 3000 {
		t.Fatalf("expected C=1000 A=2000 B=3000; got %v", got)
	}

	tasks, err := s.ListTasks(ctx, sc)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Join(titles(tasks), ",") != "C,A,B" {
		t.Fatalf("expected order C,A,B; got %v", titles(tasks))
	}
}

func TestReorder_RequiresExactPermutation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustTask(t, s, NewTask{Title: "A"})
	b := mustTask(t, s, NewTask{Title: "B"})
	c := mustTask(t, s, NewTask{Title: "C"})
	other := mustTask(t, s, NewTask{Title: "Other", ScheduleDate: model.StrPtr("2026-01-01")})

	sc := Scope{Kind: ScopeInbox}
	if _, err := s.OrderedIDs(ctx, sc); err != nil {
		t.Fatalf("init: %v", err)
	}
	before := snapshot(t, s)

	cases := []struct {
		name    string
		ordered []string
		detail  string
	}{
		{name: "missing", ordered: []string{a.ID, b.ID}, detail: "missing"},
		{name: "extra foreign", ordered: []string{a.ID, b.ID, c.ID, other.ID}, detail: "extra"},
		{name: "unknown", ordered: []string{a.ID, b.ID, c.ID, "task-nope"}, detail: "extra"},
		{name: "duplicate", ordered: []string{a.ID, b.ID, c.ID, a.ID}, detail: "duplicates"},
		{name: "duplicate replacing member", ordered: []string{a.ID, a.ID, b.ID}, detail: "duplicates"},
		{name: "empty", ordered: []string{}, detail: "missing"},
	}
	for _, tc := range cases {
		err := s.Reorder(ctx, sc, tc.ordered)
		if CodeOf(err) != CodeInvalidOrder {
			t.Fatalf("%s: expected INVALID_ORDER; got %v", tc.name, err)
		}
		de := err.(*Error)
		if xs, _ := de.Details[tc.detail].([]string); len(xs) == 0 {
			t.Fatalf("%s: expected %s details; got %v", tc.name, tc.detail, de.Details)
		}
		if after := snapshot(t, s); after != before {
			t.Fatalf("%s: ranks changed on rejected reorder\nbefore:\n%s\nafter:\n%s", tc.name, before, after)
		}
	}

	if err := s.Reorder(ctx, sc, []string{b.ID, c.ID, a.ID}); err != nil {
		t.Fatalf("valid permutation rejected: %v", err)
	}
}

func TestReorder_StaleViewRejectedAfterMembershipChange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustTask(t, s, NewTask{Title: "A"})
	b := mustTask(t, s, NewTask{Title: "B"})
	view, err := s.OrderedIDs(ctx, Scope{Kind: ScopeInbox})
	if err != nil {
		t.Fatalf("ordered: %v", err)
	}

	// A concurrent create makes the client's copy stale.
	mustTask(t, s, NewTask{Title: "C"})

	err = s.Reorder(ctx, Scope{Kind: ScopeInbox}, []string{view[1], view[0]})
	if CodeOf(err) != CodeInvalidOrder {
		t.Fatalf("expected INVALID_ORDER for stale view; got %v", err)
	}
	if err := s.DeleteTask(ctx, b.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ids, _ := s.OrderedIDs(ctx, Scope{Kind: ScopeInbox})
	if len(ids) != 2 || ids[0] != a.ID {
		t.Fatalf("unexpected inbox after delete: %v", ids)
	}
}

func TestEnsureInitialized_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustArea(t, s, "Work")
	mustArea(t, s, "Home")

	n, err := s.EnsureInitialized(ctx, AreasScope())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows written; got %d", n)
	}
	before := snapshot(t, s)

	for i := 0; i < 2; i++ {
		n, err = s.EnsureInitialized(ctx, AreasScope())
		if err != nil {
			t.Fatalf("re-init: %v", err)
		}
		if n != 0 {
			t.Fatalf("expected no writes on initialized scope; got %d", n)
		}
	}
	if after := snapshot(t, s); after != before {
		t.Fatalf("ranks changed on idempotent init\nbefore:\n%s\nafter:\n%s", before, after)
	}
}

func TestEnsureInitialized_PreservesExistingOrderAndAppendsNewMembers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustArea(t, s, "A")
	b := mustArea(t, s, "B")
	if err := s.Reorder(ctx, AreasScope(), []string{b.ID, a.ID}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	c := mustArea(t, s, "C")

	ids, err := s.OrderedIDs(ctx, AreasScope())
	if err != nil {
		t.Fatalf("ordered: %v", err)
	}
	want := []string{b.ID, a.ID, c.ID}
	if strings.Join(ids, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v; got %v", want, ids)
	}
	got := rankMap(t, s, AreasScope())
	if got[b.ID] != 1000 || got[a.ID] != 2000 || got[c.ID] != 3000 {
		t.Fatalf("expected ranks rewritten at 1000 spacing; got %v", got)
	}
}

func TestEnsureInitialized_ReconcilesReassignedProject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	x := mustArea(t, s, "X")
	p := mustProject(t, s, "P", nil)
	q := mustProject(t, s, "Q", &x.ID)
	if _, err := s.Sidebar(ctx); err != nil {
		t.Fatalf("sidebar: %v", err)
	}

	// Reassign outside the move transaction; the destination group has no rank for P.
	if _, err := s.db.ExecContext(ctx, `UPDATE projects SET area_id = ? WHERE id = ?`, x.ID, p.ID); err != nil {
		t.Fatalf("reassign project: %v", err)
	}
	sb, err := s.Sidebar(ctx)
	if err != nil {
		t.Fatalf("sidebar: %v", err)
	}
	if len(sb.Areas) != 1 || len(sb.Areas[0].Projects) != 2 {
		t.Fatalf("unexpected sidebar: %+v", sb)
	}
	if sb.Areas[0].Projects[0].ID != q.ID || sb.Areas[0].Projects[1].ID != p.ID {
		t.Fatalf("expected previously ranked Q before newcomer P; got %s,%s", sb.Areas[0].Projects[0].ID, sb.Areas[0].Projects[1].ID)
	}
	if len(sb.Ungrouped) != 0 {
		t.Fatalf("expected no ungrouped projects; got %d", len(sb.Ungrouped))
	}
}

func TestMoveProject_Scenario(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	x := mustArea(t, s, "X")
	p := mustProject(t, s, "P", nil)
	q := mustProject(t, s, "Q", nil)
	r := mustProject(t, s, "R", &x.ID)

	err := s.MoveProject(ctx, MoveProjectInput{
		ProjectID:   p.ID,
		FromAreaID:  nil,
		ToAreaID:    &x.ID,
		FromOrdered: []string{q.ID},
		ToOrdered:   []string{r.ID, p.ID},
	})
	if err != nil {
		t.Fatalf("move: %v", err)
	}

	moved, err := s.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if moved.AreaID == nil || *moved.AreaID != x.ID {
		t.Fatalf("expected P.area_id=%s; got %v", x.ID, moved.AreaID)
	}
	if got := rankMap(t, s, AreaProjectsScope(nil)); len(got) != 1 || got[q.ID] != 1000 {
		t.Fatalf("expected ungrouped ranks Q=1000; got %v", got)
	}
	if got := rankMap(t, s, AreaProjectsScope(&x.ID)); got[r.ID] != 1000 || got[p.ID] != 2000 {
		t.Fatalf("expected area X ranks R=1000 P=2000; got %v", got)
	}
}

func TestMoveProject_StaleSourceIsConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	x := mustArea(t, s, "X")
	y := mustArea(t, s, "Y")
	p := mustProject(t, s, "P", &y.ID)
	if _, err := s.Sidebar(ctx); err != nil {
		t.Fatalf("sidebar: %v", err)
	}
	before := snapshot(t, s)

	err := s.MoveProject(ctx, MoveProjectInput{
		ProjectID:   p.ID,
		FromAreaID:  nil,
		ToAreaID:    &x.ID,
		FromOrdered: []string{},
		ToOrdered:   []string{p.ID},
	})
	if CodeOf(err) != CodeConflict {
		t.Fatalf("expected CONFLICT; got %v", err)
	}
	if after := snapshot(t, s); after != before {
		t.Fatalf("state changed on conflict\nbefore:\n%s\nafter:\n%s", before, after)
	}
}

func TestMoveProject_FailuresWriteNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	x := mustArea(t, s, "X")
	p := mustProject(t, s, "P", nil)
	q := mustProject(t, s, "Q", nil)
	r := mustProject(t, s, "R", &x.ID)
	done := mustProject(t, s, "Done", nil)
	st := model.StatusCompleted
	if _, err := s.UpdateProject(ctx, done.ID, ProjectPatch{Status: &st}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := s.Sidebar(ctx); err != nil {
		t.Fatalf("sidebar: %v", err)
	}
	before := snapshot(t, s)

	cases := []struct {
		name string
		in   MoveProjectInput
		code Code
	}{
		{
			name: "same group",
			in:   MoveProjectInput{ProjectID: p.ID, FromOrdered: []string{q.ID}, ToOrdered: []string{q.ID, p.ID}},
			code: CodeInvalidMove,
		},
		{
			name: "missing project",
			in:   MoveProjectInput{ProjectID: "proj-nope", ToAreaID: &x.ID, FromOrdered: []string{}, ToOrdered: []string{r.ID}},
			code: CodeNotFound,
		},
		{
			name: "completed project",
			in:   MoveProjectInput{ProjectID: done.ID, ToAreaID: &x.ID, FromOrdered: []string{p.ID, q.ID}, ToOrdered: []string{r.ID, done.ID}},
			code: CodeInvalidMove,
		},
		{
			name: "unknown destination area",
			in:   MoveProjectInput{ProjectID: p.ID, ToAreaID: model.StrPtr("area-nope"), FromOrdered: []string{q.ID}, ToOrdered: []string{p.ID}},
			code: CodeNotFound,
		},
		{
			name: "source list still contains mover",
			in:   MoveProjectInput{ProjectID: p.ID, ToAreaID: &x.ID, FromOrdered: []string{q.ID, p.ID}, ToOrdered: []string{r.ID, p.ID}},
			code: CodeInvalidMove,
		},
		{
			name: "source list stale",
			in:   MoveProjectInput{ProjectID: p.ID, ToAreaID: &x.ID, FromOrdered: []string{}, ToOrdered: []string{r.ID, p.ID}},
			code: CodeInvalidOrder,
		},
		{
			name: "destination omits mover",
			in:   MoveProjectInput{ProjectID: p.ID, ToAreaID: &x.ID, FromOrdered: []string{q.ID}, ToOrdered: []string{r.ID}},
			code: CodeInvalidMove,
		},
		{
			name: "destination missing member",
			in:   MoveProjectInput{ProjectID: p.ID, ToAreaID: &x.ID, FromOrdered: []string{q.ID}, ToOrdered: []string{p.ID}},
			code: CodeInvalidOrder,
		},
		{
			name: "destination duplicate",
			in:   MoveProjectInput{ProjectID: p.ID, ToAreaID: &x.ID, FromOrdered: []string{q.ID}, ToOrdered: []string{r.ID, p.ID, r.ID}},
			code: CodeInvalidOrder,
		},
	}
	for _, tc := range cases {
		err := s.MoveProject(ctx, tc.in)
		if CodeOf(err) != tc.code {
			t.Fatalf("%s: expected %s; got %v", tc.name, tc.code, err)
		}
		if after := snapshot(t, s); after != before {
			t.Fatalf("%s: state changed on failed move\nbefore:\n%s\nafter:\n%s", tc.name, before, after)
		}
	}
}

func TestMoveProject_ReturnToSourceIsReRanked(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	x := mustArea(t, s, "X")
	p := mustProject(t, s, "P", nil)
	q := mustProject(t, s, "Q", nil)

	if err := s.MoveProject(ctx, MoveProjectInput{ProjectID: p.ID, ToAreaID: &x.ID, FromOrdered: []string{q.ID}, ToOrdered: []string{p.ID}}); err != nil {
		t.Fatalf("move out: %v", err)
	}
	// Return outside the move transaction: the lazy initializer must place P after Q
	// without a rank clash.
	if _, err := s.db.ExecContext(ctx, `UPDATE projects SET area_id = NULL WHERE id = ?`, p.ID); err != nil {
		t.Fatalf("reassign project: %v", err)
	}
	ids, err := s.OrderedIDs(ctx, AreaProjectsScope(nil))
	if err != nil {
		t.Fatalf("ordered: %v", err)
	}
	if strings.Join(ids, ",") != q.ID+","+p.ID {
		t.Fatalf("expected Q,P; got %v", ids)
	}
}

func TestUpdateTask_PatchSemantics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	x := mustArea(t, s, "X")
	p := mustProject(t, s, "P", nil)
	sec, err := s.CreateSection(ctx, p.ID, "Next")
	if err != nil {
		t.Fatalf("section: %v", err)
	}
	task := mustTask(t, s, NewTask{Title: "T", AreaID: &x.ID, Tags: []string{"a", " a ", "b"}})
	if strings.Join(task.Tags, ",") != "a,b" {
		t.Fatalf("expected normalized tags; got %v", task.Tags)
	}

	got, err := s.UpdateTask(ctx, task.ID, TaskPatch{ProjectID: SetTo(p.ID), SectionID: SetTo(sec.ID)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.AreaID != nil || model.StrVal(got.ProjectID) != p.ID || model.StrVal(got.SectionID) != sec.ID {
		t.Fatalf("unexpected placement: %+v", got)
	}

	got, err = s.UpdateTask(ctx, task.ID, TaskPatch{ProjectID: Clear()})
	if err != nil {
		t.Fatalf("clear project: %v", err)
	}
	if got.ProjectID != nil || got.SectionID != nil {
		t.Fatalf("clearing project should clear section: %+v", got)
	}

	if _, err := s.UpdateTask(ctx, task.ID, TaskPatch{SectionID: SetTo(sec.ID)}); CodeOf(err) != CodeValidation {
		t.Fatalf("expected VALIDATION_FAILED for section outside project; got %v", err)
	}
	if _, err := s.UpdateTask(ctx, task.ID, TaskPatch{ScheduleDate: SetTo("tomorrow")}); CodeOf(err) != CodeValidation {
		t.Fatalf("expected VALIDATION_FAILED for bad date; got %v", err)
	}
	if _, err := s.UpdateTask(ctx, "task-nope", TaskPatch{Title: model.StrPtr("x")}); CodeOf(err) != CodeNotFound {
		t.Fatalf("expected NOT_FOUND; got %v", err)
	}

	done := model.StatusCompleted
	got, err = s.UpdateTask(ctx, task.ID, TaskPatch{Status: &done})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.CompletedAt == nil {
		t.Fatalf("expected completed_at to be stamped")
	}
	ids, _ := s.OrderedIDs(ctx, Scope{Kind: ScopeInbox})
	if len(ids) != 0 {
		t.Fatalf("completed task should leave open lists; got %v", ids)
	}
}

func TestListTasks_UnknownContainerIsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ListTasks(context.Background(), Scope{Kind: ScopeProject, Ref: "proj-nope"})
	if CodeOf(err) != CodeNotFound {
		t.Fatalf("expected NOT_FOUND; got %v", err)
	}
}

func TestParseListID(t *testing.T) {
	cases := map[string]string{
		"today":         "today",
		" inbox ":       "inbox",
		"project:p1":    "project:p1",
		"section:s1":    "section:s1",
		"area:a1":       "area:a1",
		"upcoming":      "upcoming",
		"anytime":       "anytime",
		"projects:a1":   "",
		"project:":      "",
		"":              "",
		"somewhere:abc": "",
	}
	for in, want := range cases {
		sc, err := ParseListID(in)
		if want == "" {
			if CodeOf(err) != CodeValidation {
				t.Fatalf("ParseListID(%q): expected VALIDATION_FAILED; got %v", in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseListID(%q): %v", in, err)
		}
		if sc.ID() != want {
			t.Fatalf("ParseListID(%q).ID() = %q; want %q", in, sc.ID(), want)
		}
	}
}

func TestWithTx_SecondStoreOnSameFileWaitsForWriter(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "planner.sqlite")
	a, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open a: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	b, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open b: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })

	done := make(chan error, 1)
	err = a.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := loadRanks(ctx, tx, "inbox"); err != nil {
			return err
		}
		go func() {
			_, err := b.CreateArea(ctx, "Other process")
			done <- err
		}()
		time.Sleep(50 * time.Millisecond)
		return writeRanks(ctx, tx, "inbox", []string{"task-a"}, time.Now())
	})
	if err != nil {
		t.Fatalf("read-then-write transaction: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("concurrent writer: %v", err)
	}

	sb, err := a.Sidebar(ctx)
	if err != nil {
		t.Fatalf("sidebar: %v", err)
	}
	if len(sb.Areas) != 1 {
		t.Fatalf("expected the other store's area, got %+v", sb.Areas)
	}
}
