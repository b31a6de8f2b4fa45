package storage

import (
	"context"
	"errors"
	"testing"

	"prism-board/board"
	"prism-board/domain"
)

var _ board.Gateway = (*Memory)(nil)
var _ board.Gateway = (*SQLite)(nil)
var _ board.Gateway = (*Tables)(nil)
var _ board.Gateway = (*Cache)(nil)

func TestMemoryDrivesStore(t *testing.T) {
	mem := NewMemory(
		domain.Task{ID: "a", UserID: "user-1", Title: "a", ColumnID: domain.ColumnBacklog, Position: 1},
		domain.Task{ID: "b", UserID: "user-1", Title: "b", ColumnID: domain.ColumnBacklog, Position: 2},
		domain.Task{ID: "x", UserID: "user-2", Title: "x", ColumnID: domain.ColumnBacklog, Position: 1},
	)
	store := board.NewStore(mem)
	ctx := context.Background()
	if _, err := store.Load(ctx, "user-1"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := store.Move(ctx, "b", domain.ColumnInProgress, 0); err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, err := store.Create(ctx, domain.Draft{Title: "c"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	tasks, err := mem.ListTasks(ctx, "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	for _, task := range tasks {
		if task.ID == "b" && (task.ColumnID != domain.ColumnInProgress || task.Position != 1) {
			t.Fatalf("move not persisted: %+v", task)
		}
	}
	other, _ := mem.ListTasks(ctx, "user-2")
	if len(other) != 1 {
		t.Fatalf("scopes leaked: %d", len(other))
	}
}

func TestMemoryErrors(t *testing.T) {
	mem := NewMemory(domain.Task{ID: "a", UserID: "user-1", Title: "a"})
	ctx := context.Background()
	if _, err := mem.InsertTask(ctx, "user-1", domain.Task{ID: "a"}); err == nil {
		t.Fatalf("duplicate insert should fail")
	}
	if err := mem.PatchTask(ctx, "user-1", "ghost", domain.Patch{}); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if err := mem.DeleteTask(ctx, "user-1", "ghost"); err != nil {
		t.Fatalf("deleting a missing task should succeed: %v", err)
	}
}
