package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"prism-board/domain"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "board.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteRoundTrip(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()
	due := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	saved, err := s.InsertTask(ctx, "user-1", domain.Task{
		Title:              "Backtest breakout",
		ColumnID:           domain.ColumnThisWeek,
		Position:           1,
		Priority:           domain.PriorityHigh,
		DueDate:            &due,
		TaskType:           "backtest",
		IsRecurring:        true,
		RecurringFrequency: domain.FrequencyWeekly,
		Links:              domain.Links{PlaybookID: "pb-1"},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if saved.ID == "" || saved.CreatedAt.IsZero() {
		t.Fatalf("insert should assign id and creation time: %+v", saved)
	}
	if _, err := s.InsertTask(ctx, "user-2", domain.Task{Title: "other scope", ColumnID: domain.ColumnBacklog, Position: 1}); err != nil {
		t.Fatalf("insert other scope: %v", err)
	}

	tasks, err := s.ListTasks(ctx, "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected scope isolation, got %d tasks", len(tasks))
	}
	got := tasks[0]
	if got.ID != saved.ID || got.ColumnID != domain.ColumnThisWeek || got.Priority != domain.PriorityHigh ||
		!got.IsRecurring || got.RecurringFrequency != domain.FrequencyWeekly || got.Links.PlaybookID != "pb-1" {
		t.Fatalf("unexpected task %+v", got)
	}
	if got.DueDate == nil || !got.DueDate.Equal(due) {
		t.Fatalf("due date = %v", got.DueDate)
	}
}

func TestSQLitePatch(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()
	due := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	saved, err := s.InsertTask(ctx, "user-1", domain.Task{Title: "t", ColumnID: domain.ColumnBacklog, Position: 3, DueDate: &due})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	col := domain.ColumnCompleted
	pos := 1
	notes := "done"
	now := time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)
	if err := s.PatchTask(ctx, "user-1", saved.ID, domain.Patch{
		ColumnID:     &col,
		Position:     &pos,
		ResultNotes:  &notes,
		CompletedAt:  &now,
		ClearDueDate: true,
	}); err != nil {
		t.Fatalf("patch: %v", err)
	}

	tasks, err := s.ListTasks(ctx, "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := tasks[0]
	if got.ColumnID != domain.ColumnCompleted || got.Position != 1 || got.ResultNotes != "done" {
		t.Fatalf("patch not applied: %+v", got)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(now) {
		t.Fatalf("completedAt = %v", got.CompletedAt)
	}
	if got.DueDate != nil {
		t.Fatalf("due date should be cleared, got %v", got.DueDate)
	}

	if err := s.PatchTask(ctx, "user-2", saved.ID, domain.Patch{Position: &pos}); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("patch in other scope: expected ErrTaskNotFound, got %v", err)
	}
	if err := s.PatchTask(ctx, "user-1", saved.ID, domain.Patch{}); err != nil {
		t.Fatalf("empty patch: %v", err)
	}
}

func TestSQLiteDelete(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()
	saved, err := s.InsertTask(ctx, "user-1", domain.Task{Title: "t", ColumnID: domain.ColumnBacklog, Position: 1})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.DeleteTask(ctx, "user-1", saved.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	tasks, err := s.ListTasks(ctx, "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected empty board, got %d", len(tasks))
	}
}

func TestSQLiteMigratesOldSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE tasks (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	column_id TEXT NOT NULL DEFAULT 'backlog',
	position INTEGER NOT NULL DEFAULT 0,
	priority TEXT NOT NULL DEFAULT '',
	due_date TEXT DEFAULT NULL,
	task_type TEXT NOT NULL DEFAULT '',
	is_recurring INTEGER NOT NULL DEFAULT 0,
	recurring_frequency TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);`); err != nil {
		t.Fatalf("seed old schema: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO tasks (id, user_id, title, created_at) VALUES ('legacy', 'user-1', 'Old task', '2023-01-01T00:00:00Z');`); err != nil {
		t.Fatalf("seed legacy row: %v", err)
	}
	db.Close()

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open migrated: %v", err)
	}
	defer s.Close()
	tasks, err := s.ListTasks(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "legacy" || tasks[0].ResultNotes != "" || tasks[0].CompletedAt != nil {
		t.Fatalf("unexpected migrated tasks %+v", tasks)
	}
}

func TestSQLiteDSN(t *testing.T) {
	if got := sqliteDSN("file:memdb?mode=memory"); got != "file:memdb?mode=memory" {
		t.Fatalf("file DSN rewritten: %s", got)
	}
	got := sqliteDSN("/tmp/board.db")
	want := "file:///tmp/board.db?_pragma=busy_timeout%285000%29&mode=rwc"
	if got != want {
		t.Fatalf("dsn = %s, want %s", got, want)
	}
}
