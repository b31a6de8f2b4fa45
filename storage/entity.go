package storage

import (
	"time"

	"github.com/bytedance/sonic"

	"prism-board/domain"
)

const edmInt32 = "Edm.Int32"

// tableKeys addresses a table row.
type tableKeys struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

// taskEntity is a task row. PartitionKey is the board scope, RowKey the task id.
type taskEntity struct {
	tableKeys
	Title              string `json:"Title"`
	Description        string `json:"Description,omitempty"`
	ColumnID           string `json:"ColumnId"`
	Position           int    `json:"Position"`
	PositionType       string `json:"Position@odata.type,omitempty"`
	Priority           string `json:"Priority,omitempty"`
	DueDate            string `json:"DueDate,omitempty"`
	TaskType           string `json:"TaskType,omitempty"`
	IsRecurring        bool   `json:"IsRecurring"`
	RecurringFrequency string `json:"RecurringFrequency,omitempty"`
	PlaybookID         string `json:"PlaybookId,omitempty"`
	TradeID            string `json:"TradeId,omitempty"`
	JournalID          string `json:"JournalId,omitempty"`
	NotebookID         string `json:"NotebookId,omitempty"`
	ResultNotes        string `json:"ResultNotes,omitempty"`
	CompletedAt        string `json:"CompletedAt,omitempty"`
	CreatedAt          string `json:"CreatedAt"`
	UpdatedAt          string `json:"UpdatedAt,omitempty"`
}

// taskUpdate carries a merge update. Empty strings clear optional timestamps.
type taskUpdate struct {
	tableKeys
	Title              *string `json:"Title,omitempty"`
	Description        *string `json:"Description,omitempty"`
	ColumnID           *string `json:"ColumnId,omitempty"`
	Position           *int    `json:"Position,omitempty"`
	PositionType       *string `json:"Position@odata.type,omitempty"`
	Priority           *string `json:"Priority,omitempty"`
	DueDate            *string `json:"DueDate,omitempty"`
	TaskType           *string `json:"TaskType,omitempty"`
	IsRecurring        *bool   `json:"IsRecurring,omitempty"`
	RecurringFrequency *string `json:"RecurringFrequency,omitempty"`
	PlaybookID         *string `json:"PlaybookId,omitempty"`
	TradeID            *string `json:"TradeId,omitempty"`
	JournalID          *string `json:"JournalId,omitempty"`
	NotebookID         *string `json:"NotebookId,omitempty"`
	ResultNotes        *string `json:"ResultNotes,omitempty"`
	CompletedAt        *string `json:"CompletedAt,omitempty"`
	UpdatedAt          *string `json:"UpdatedAt,omitempty"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func parseTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &t
}

func newTaskEntity(scope string, t domain.Task) taskEntity {
	return taskEntity{
		tableKeys:          tableKeys{PartitionKey: scope, RowKey: t.ID},
		Title:              t.Title,
		Description:        t.Description,
		ColumnID:           string(t.ColumnID),
		Position:           t.Position,
		PositionType:       edmInt32,
		Priority:           string(t.Priority),
		DueDate:            formatTimePtr(t.DueDate),
		TaskType:           t.TaskType,
		IsRecurring:        t.IsRecurring,
		RecurringFrequency: string(t.RecurringFrequency),
		PlaybookID:         t.Links.PlaybookID,
		TradeID:            t.Links.TradeID,
		JournalID:          t.Links.JournalID,
		NotebookID:         t.Links.NotebookID,
		ResultNotes:        t.ResultNotes,
		CompletedAt:        formatTimePtr(t.CompletedAt),
		CreatedAt:          formatTime(t.CreatedAt),
		UpdatedAt:          formatTimePtr(t.UpdatedAt),
	}
}

func (e taskEntity) task() domain.Task {
	t := domain.Task{
		ID:                 e.RowKey,
		UserID:             e.PartitionKey,
		Title:              e.Title,
		Description:        e.Description,
		ColumnID:           domain.ColumnID(e.ColumnID),
		Position:           e.Position,
		Priority:           domain.Priority(e.Priority),
		DueDate:            parseTimePtr(e.DueDate),
		TaskType:           e.TaskType,
		IsRecurring:        e.IsRecurring,
		RecurringFrequency: domain.Frequency(e.RecurringFrequency),
		Links: domain.Links{
			PlaybookID: e.PlaybookID,
			TradeID:    e.TradeID,
			JournalID:  e.JournalID,
			NotebookID: e.NotebookID,
		},
		ResultNotes: e.ResultNotes,
		CompletedAt: parseTimePtr(e.CompletedAt),
		UpdatedAt:   parseTimePtr(e.UpdatedAt),
	}
	if created := parseTimePtr(e.CreatedAt); created != nil {
		t.CreatedAt = *created
	}
	return t
}

func decodeTaskEntity(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := sonic.ConfigStd.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	return ent.task(), nil
}

func strPtr[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func newTaskUpdate(scope, id string, p domain.Patch) taskUpdate {
	u := taskUpdate{
		tableKeys:          tableKeys{PartitionKey: scope, RowKey: id},
		Title:              p.Title,
		Description:        p.Description,
		ColumnID:           strPtr(p.ColumnID),
		Position:           p.Position,
		Priority:           strPtr(p.Priority),
		TaskType:           p.TaskType,
		IsRecurring:        p.IsRecurring,
		RecurringFrequency: strPtr(p.RecurringFrequency),
		ResultNotes:        p.ResultNotes,
	}
	if p.Position != nil {
		typ := edmInt32
		u.PositionType = &typ
	}
	if p.ClearDueDate {
		empty := ""
		u.DueDate = &empty
	}
	if p.DueDate != nil {
		due := formatTime(*p.DueDate)
		u.DueDate = &due
	}
	if p.Links != nil {
		u.PlaybookID = &p.Links.PlaybookID
		u.TradeID = &p.Links.TradeID
		u.JournalID = &p.Links.JournalID
		u.NotebookID = &p.Links.NotebookID
	}
	if p.CompletedAt != nil {
		c := formatTime(*p.CompletedAt)
		u.CompletedAt = &c
	}
	if p.UpdatedAt != nil {
		up := formatTime(*p.UpdatedAt)
		u.UpdatedAt = &up
	}
	return u
}
