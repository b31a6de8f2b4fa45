package storage

import (
	"context"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"prism-board/domain"
)

const (
	EventTaskCreated = "task-created"
	EventTaskUpdated = "task-updated"
	EventTaskDeleted = "task-deleted"
)

// TaskEvent announces a durable task write on the events queue.
type TaskEvent struct {
	Type      string          `json:"Type"`
	UserID    string          `json:"UserId"`
	TaskID    string          `json:"TaskId"`
	ColumnID  domain.ColumnID `json:"ColumnId,omitempty"`
	Position  int             `json:"Position,omitempty"`
	Timestamp int64           `json:"EventTimestamp"`
}

// publishEvent enqueues ev. The write it describes already succeeded, so
// failures are logged and swallowed.
func (s *Tables) publishEvent(ctx context.Context, ev TaskEvent) {
	if s.events == nil {
		return
	}
	ev.Timestamp = s.now().UnixNano()
	data, err := sonic.ConfigStd.Marshal(ev)
	if err != nil {
		s.logger.WithError(err).Error("marshal task event")
		return
	}
	if _, err := s.events.EnqueueMessage(ctx, string(data), nil); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"event":   ev.Type,
			"user_id": ev.UserID,
			"task_id": ev.TaskID,
		}).Warn("enqueue task event")
	}
}
