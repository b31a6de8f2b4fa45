package board

import (
	"context"

	"prism-board/domain"
)

// Gateway abstracts durable task storage. Every call is scoped to one user board.
type Gateway interface {
	ListTasks(ctx context.Context, scope string) ([]domain.Task, error)
	// InsertTask stores a new task. Implementations may assign their own id and
	// timestamps; the returned task is authoritative.
	InsertTask(ctx context.Context, scope string, task domain.Task) (domain.Task, error)
	PatchTask(ctx context.Context, scope, id string, fields domain.Patch) error
	DeleteTask(ctx context.Context, scope, id string) error
}
