package drag

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"prism-board/board"
	"prism-board/domain"
)

var (
	ErrNotDragging         = errors.New("no drag in progress")
	ErrAlreadyDragging     = errors.New("drag already in progress")
	ErrNoPendingCompletion = errors.New("no completion pending")
)

// State is the phase of the drag gesture.
type State int

const (
	Idle State = iota
	Dragging
	AwaitingCompletion
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case AwaitingCompletion:
		return "awaiting_completion"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Outcome is how a gesture ended.
type Outcome int

const (
	None Outcome = iota
	Committed
	Cancelled
	CompletionRequested
	Dismissed
)

func (o Outcome) String() string {
	switch o {
	case None:
		return "none"
	case Committed:
		return "committed"
	case Cancelled:
		return "cancelled"
	case CompletionRequested:
		return "completion_requested"
	case Dismissed:
		return "dismissed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Store is the part of board.Store the controller drives.
type Store interface {
	Snapshot() domain.Board
	Task(id string) (domain.Task, bool)
	Preview(id string, col domain.ColumnID, index int) error
	Move(ctx context.Context, id string, col domain.ColumnID, index int) error
	Complete(ctx context.Context, id, resultNotes string) (board.Completion, error)
	Reload(ctx context.Context) (domain.Board, error)
}

// Controller turns pointer gestures into previews and committed moves. It is
// driven from a single UI loop and is not safe for concurrent use.
type Controller struct {
	store  Store
	filter domain.Filter
	logger *log.Logger

	state  State
	taskID string
	source domain.ColumnID
}

func NewController(store Store, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Controller{store: store, logger: logger}
}

// SetFilter makes target resolution see the same tasks as the presentation.
func (c *Controller) SetFilter(f domain.Filter) { c.filter = f }

func (c *Controller) Filter() domain.Filter { return c.filter }

func (c *Controller) State() State { return c.state }

// TaskID is the task being dragged or awaiting completion.
func (c *Controller) TaskID() string { return c.taskID }

// Source is the column the dragged task started in.
func (c *Controller) Source() domain.ColumnID { return c.source }

// Start picks up a task.
func (c *Controller) Start(taskID string) error {
	if c.state != Idle {
		return ErrAlreadyDragging
	}
	t, ok := c.store.Task(taskID)
	if !ok {
		return fmt.Errorf("start drag %s: %w", taskID, domain.ErrTaskNotFound)
	}
	c.state = Dragging
	c.taskID = taskID
	c.source = t.ColumnID
	c.logger.WithFields(log.Fields{"task_id": taskID, "column": t.ColumnID}).Debug("drag started")
	return nil
}

// Over previews the dragged task at the target. Targets that do not resolve
// are ignored.
func (c *Controller) Over(t Target) error {
	if c.state != Dragging {
		return ErrNotDragging
	}
	col, index, ok := resolve(c.store.Snapshot(), c.taskID, t, c.filter)
	if !ok {
		return nil
	}
	return c.store.Preview(c.taskID, col, index)
}

// End drops the task. A nil target cancels the gesture and leaves the preview
// in place. Dropping into the completed column from elsewhere opens the
// completion step instead of moving.
func (c *Controller) End(ctx context.Context, t *Target) (Outcome, error) {
	if c.state != Dragging {
		return None, ErrNotDragging
	}
	if t == nil {
		return c.Cancel(), nil
	}
	col, index, ok := resolve(c.store.Snapshot(), c.taskID, *t, c.filter)
	if !ok {
		return c.Cancel(), nil
	}
	if col == domain.ColumnCompleted && c.source != domain.ColumnCompleted {
		c.state = AwaitingCompletion
		c.logger.WithField("task_id", c.taskID).Debug("drag awaiting completion")
		return CompletionRequested, nil
	}

	id := c.taskID
	c.reset()
	return Committed, c.store.Move(ctx, id, col, index)
}

// ConfirmCompletion completes the pending task with the given notes.
func (c *Controller) ConfirmCompletion(ctx context.Context, resultNotes string) (board.Completion, error) {
	if c.state != AwaitingCompletion {
		return board.Completion{}, ErrNoPendingCompletion
	}
	id := c.taskID
	c.reset()
	return c.store.Complete(ctx, id, resultNotes)
}

// DismissCompletion abandons the pending completion. The preview is undone by
// reloading the board.
func (c *Controller) DismissCompletion(ctx context.Context) (Outcome, error) {
	if c.state != AwaitingCompletion {
		return None, ErrNoPendingCompletion
	}
	c.reset()
	if _, err := c.store.Reload(ctx); err != nil {
		return Dismissed, err
	}
	return Dismissed, nil
}

// Cancel abandons the gesture in any state.
func (c *Controller) Cancel() Outcome {
	if c.state == Idle {
		return None
	}
	c.logger.WithField("task_id", c.taskID).Debug("drag cancelled")
	c.reset()
	return Cancelled
}

func (c *Controller) reset() {
	c.state = Idle
	c.taskID = ""
	c.source = ""
}
