package domain

import (
	"errors"
	"testing"
)

func boardOf(cols map[ColumnID][]string) Board {
	var tasks []Task
	for col, ids := range cols {
		for i, id := range ids {
			tasks = append(tasks, Task{ID: id, Title: id, ColumnID: col, Position: i + 1})
		}
	}
	return GroupTasks(tasks)
}

func ids(list []Task) []string {
	out := make([]string, len(list))
	for i, t := range list {
		out[i] = t.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func assertDense(t *testing.T, b Board) {
	t.Helper()
	seen := map[string]ColumnID{}
	for col, list := range b {
		for i, task := range list {
			if task.Position != i+1 {
				t.Fatalf("column %s: task %s at index %d has position %d", col, task.ID, i, task.Position)
			}
			if task.ColumnID != col {
				t.Fatalf("task %s listed in %s but carries column %s", task.ID, col, task.ColumnID)
			}
			if prev, dup := seen[task.ID]; dup {
				t.Fatalf("task %s present in %s and %s", task.ID, prev, col)
			}
			seen[task.ID] = col
		}
	}
}

func TestApplyMoveReordersWithinColumn(t *testing.T) {
	b := boardOf(map[ColumnID][]string{ColumnBacklog: {"A", "B", "C"}})

	next, res, err := ApplyMove(b, "C", ColumnBacklog, 0)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if got := ids(next[ColumnBacklog]); !equalIDs(got, []string{"C", "A", "B"}) {
		t.Fatalf("unexpected order %v", got)
	}
	if !res.Changed() || res.FromIndex != 2 || res.Index != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	assertDense(t, next)
	if got := ids(b[ColumnBacklog]); !equalIDs(got, []string{"A", "B", "C"}) {
		t.Fatalf("input board was modified: %v", got)
	}
}

func TestApplyMoveAcrossColumns(t *testing.T) {
	b := boardOf(map[ColumnID][]string{ColumnBacklog: {"A", "B"}})

	next, res, err := ApplyMove(b, "A", ColumnCompleted, 0)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if got := ids(next[ColumnBacklog]); !equalIDs(got, []string{"B"}) || next[ColumnBacklog][0].Position != 1 {
		t.Fatalf("unexpected backlog %+v", next[ColumnBacklog])
	}
	if got := next[ColumnCompleted]; len(got) != 1 || got[0].ID != "A" || got[0].Position != 1 || got[0].ColumnID != ColumnCompleted {
		t.Fatalf("unexpected completed %+v", got)
	}
	if res.Task.ColumnID != ColumnCompleted || res.Task.Position != 1 {
		t.Fatalf("unexpected moved task %+v", res.Task)
	}
	if len(res.Affected()) != 2 {
		t.Fatalf("expected two affected columns, got %v", res.Affected())
	}
	assertDense(t, next)
}

func TestApplyMoveToOwnSlotKeepsSiblings(t *testing.T) {
	b := boardOf(map[ColumnID][]string{
		ColumnBacklog:  {"A", "B", "C", "D"},
		ColumnThisWeek: {"E", "F"},
	})
	for idx, id := range []string{"A", "B", "C", "D"} {
		next, res, err := ApplyMove(b, id, ColumnBacklog, idx)
		if err != nil {
			t.Fatalf("move %s: %v", id, err)
		}
		if res.Changed() {
			t.Fatalf("move %s to its own slot reported a change", id)
		}
		for col, list := range b {
			for i, task := range list {
				if next[col][i].ID != task.ID || next[col][i].Position != task.Position {
					t.Fatalf("move %s changed %s[%d]: %+v -> %+v", id, col, i, task, next[col][i])
				}
			}
		}
	}
}

func TestApplyMoveClampsIndex(t *testing.T) {
	tests := []struct {
		name  string
		index int
		want  []string
	}{
		{name: "negative", index: -5, want: []string{"X", "E", "F"}},
		{name: "past end", index: 99, want: []string{"E", "F", "X"}},
		{name: "append", index: AppendIndex, want: []string{"E", "F", "X"}},
		{name: "middle", index: 1, want: []string{"E", "X", "F"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := boardOf(map[ColumnID][]string{
				ColumnBacklog:  {"X"},
				ColumnThisWeek: {"E", "F"},
			})
			next, _, err := ApplyMove(b, "X", ColumnThisWeek, tt.index)
			if err != nil {
				t.Fatalf("move: %v", err)
			}
			if got := ids(next[ColumnThisWeek]); !equalIDs(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			assertDense(t, next)
		})
	}
}

func TestApplyMoveSameColumnUsesPostRemovalIndex(t *testing.T) {
	b := boardOf(map[ColumnID][]string{ColumnReview: {"A", "B", "C"}})

	next, _, err := ApplyMove(b, "A", ColumnReview, 2)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if got := ids(next[ColumnReview]); !equalIDs(got, []string{"B", "C", "A"}) {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestApplyMoveErrors(t *testing.T) {
	b := boardOf(map[ColumnID][]string{ColumnBacklog: {"A"}})

	if _, _, err := ApplyMove(b, "missing", ColumnBacklog, 0); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if _, _, err := ApplyMove(b, "A", ColumnID("archive"), 0); !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("expected ErrInvalidTarget, got %v", err)
	}
}

func TestApplyMoveSequenceStaysDense(t *testing.T) {
	b := boardOf(map[ColumnID][]string{
		ColumnBacklog:    {"A", "B", "C"},
		ColumnInProgress: {"D"},
	})
	steps := []struct {
		id    string
		col   ColumnID
		index int
	}{
		{"A", ColumnInProgress, 1},
		{"D", ColumnCompleted, 0},
		{"B", ColumnBacklog, 5},
		{"C", ColumnCompleted, 0},
		{"A", ColumnBacklog, 0},
		{"D", ColumnReview, 0},
	}
	for _, s := range steps {
		var err error
		b, _, err = ApplyMove(b, s.id, s.col, s.index)
		if err != nil {
			t.Fatalf("move %s: %v", s.id, err)
		}
		assertDense(t, b)
	}
	if b.Len() != 4 {
		t.Fatalf("expected 4 tasks, got %d", b.Len())
	}
}
