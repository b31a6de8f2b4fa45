package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"

	"prism-board/domain"
)

// SQLite persists tasks in a local database file.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

func OpenSQLite(dbPath string) (*SQLite, error) {
	if dbPath == "" {
		return nil, errors.New("db path is empty")
	}
	if !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS tasks (
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
);`
	const index = `CREATE INDEX IF NOT EXISTS tasks_user_column ON tasks (user_id, column_id, position);`
	for _, stmt := range []string{ddl, index} {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return s.ensureTaskColumns()
}

// ensureTaskColumns adds columns introduced after the first schema version.
func (s *SQLite) ensureTaskColumns() error {
	required := map[string]string{
		"playbook_id":  "ALTER TABLE tasks ADD COLUMN playbook_id TEXT NOT NULL DEFAULT '';",
		"trade_id":     "ALTER TABLE tasks ADD COLUMN trade_id TEXT NOT NULL DEFAULT '';",
		"journal_id":   "ALTER TABLE tasks ADD COLUMN journal_id TEXT NOT NULL DEFAULT '';",
		"notebook_id":  "ALTER TABLE tasks ADD COLUMN notebook_id TEXT NOT NULL DEFAULT '';",
		"result_notes": "ALTER TABLE tasks ADD COLUMN result_notes TEXT NOT NULL DEFAULT '';",
		"completed_at": "ALTER TABLE tasks ADD COLUMN completed_at TEXT DEFAULT NULL;",
		"updated_at":   "ALTER TABLE tasks ADD COLUMN updated_at TEXT DEFAULT NULL;",
	}
	existing := map[string]struct{}{}
	rows, err := s.db.Query(`PRAGMA table_info(tasks);`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			rows.Close()
			return err
		}
		existing[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()
	for col, alter := range required {
		if _, ok := existing[col]; ok {
			continue
		}
		if _, err := s.db.Exec(alter); err != nil {
			return err
		}
	}
	return nil
}

const taskColumns = `id, user_id, title, description, column_id, position, priority, due_date, task_type,
	is_recurring, recurring_frequency, playbook_id, trade_id, journal_id, notebook_id, result_notes,
	completed_at, created_at, updated_at`

func (s *SQLite) ListTasks(ctx context.Context, scope string) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE user_id = ? ORDER BY column_id, position, created_at;`, scope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		var t domain.Task
		var col, priority, freq, createdStr string
		var recurring int
		var dueStr, completedStr, updatedStr sql.NullString
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &col, &t.Position, &priority, &dueStr,
			&t.TaskType, &recurring, &freq, &t.Links.PlaybookID, &t.Links.TradeID, &t.Links.JournalID,
			&t.Links.NotebookID, &t.ResultNotes, &completedStr, &createdStr, &updatedStr); err != nil {
			return nil, err
		}
		t.ColumnID = domain.ColumnID(col)
		t.Priority = domain.Priority(priority)
		t.RecurringFrequency = domain.Frequency(freq)
		t.IsRecurring = recurring == 1
		t.DueDate = parseNullTime(dueStr)
		t.CompletedAt = parseNullTime(completedStr)
		t.UpdatedAt = parseNullTime(updatedStr)
		if created := parseTimePtr(createdStr); created != nil {
			t.CreatedAt = *created
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *SQLite) InsertTask(ctx context.Context, scope string, t domain.Task) (domain.Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	t.UserID = scope
	_, err := s.db.ExecContext(ctx, `INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		t.ID, scope, t.Title, t.Description, string(t.ColumnID), t.Position, string(t.Priority), nullTime(t.DueDate),
		t.TaskType, boolInt(t.IsRecurring), string(t.RecurringFrequency), t.Links.PlaybookID, t.Links.TradeID,
		t.Links.JournalID, t.Links.NotebookID, t.ResultNotes, nullTime(t.CompletedAt), formatTime(t.CreatedAt),
		nullTime(t.UpdatedAt))
	if err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (s *SQLite) PatchTask(ctx context.Context, scope, id string, p domain.Patch) error {
	var sets []string
	var args []any
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if p.Title != nil {
		set("title", *p.Title)
	}
	if p.Description != nil {
		set("description", *p.Description)
	}
	if p.ColumnID != nil {
		set("column_id", string(*p.ColumnID))
	}
	if p.Position != nil {
		set("position", *p.Position)
	}
	if p.Priority != nil {
		set("priority", string(*p.Priority))
	}
	if p.ClearDueDate && p.DueDate == nil {
		set("due_date", nil)
	}
	if p.DueDate != nil {
		set("due_date", nullTime(p.DueDate))
	}
	if p.TaskType != nil {
		set("task_type", *p.TaskType)
	}
	if p.IsRecurring != nil {
		set("is_recurring", boolInt(*p.IsRecurring))
	}
	if p.RecurringFrequency != nil {
		set("recurring_frequency", string(*p.RecurringFrequency))
	}
	if p.Links != nil {
		set("playbook_id", p.Links.PlaybookID)
		set("trade_id", p.Links.TradeID)
		set("journal_id", p.Links.JournalID)
		set("notebook_id", p.Links.NotebookID)
	}
	if p.ResultNotes != nil {
		set("result_notes", *p.ResultNotes)
	}
	if p.CompletedAt != nil {
		set("completed_at", nullTime(p.CompletedAt))
	}
	if p.UpdatedAt != nil {
		set("updated_at", nullTime(p.UpdatedAt))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, scope, id)
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE user_id = ? AND id = ?;`, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("patch %s: %w", id, domain.ErrTaskNotFound)
	}
	return nil
}

func (s *SQLite) DeleteTask(ctx context.Context, scope, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE user_id = ? AND id = ?;`, scope, id)
	return err
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	return parseTimePtr(s.String)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	u := url.URL{
		Scheme: "file",
		Path:   path,
	}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Set("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String()
}
