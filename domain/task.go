package domain

import (
	"strings"
	"time"
)

// ColumnID identifies the workflow state a task occupies.
type ColumnID string

const (
	ColumnBacklog    ColumnID = "backlog"
	ColumnThisWeek   ColumnID = "this_week"
	ColumnInProgress ColumnID = "in_progress"
	ColumnReview     ColumnID = "review"
	ColumnCompleted  ColumnID = "completed"
)

// DefaultColumn receives drafts that do not name a column.
const DefaultColumn = ColumnBacklog

// Columns lists every column in display order.
var Columns = []ColumnID{ColumnBacklog, ColumnThisWeek, ColumnInProgress, ColumnReview, ColumnCompleted}

// Valid reports whether c is one of the board columns.
func (c ColumnID) Valid() bool {
	for _, col := range Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Label is the human readable column name.
func (c ColumnID) Label() string {
	switch c {
	case ColumnBacklog:
		return "Planned"
	case ColumnThisWeek:
		return "This Week"
	case ColumnInProgress:
		return "In Progress"
	case ColumnReview:
		return "On Hold"
	case ColumnCompleted:
		return "Completed"
	}
	return string(c)
}

// Priority is used for filtering and presentation only, never for ordering.
type Priority string

const (
	PriorityNone   Priority = ""
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityNone, PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Frequency controls where the recurrence of a completed task lands.
type Frequency string

const (
	FrequencyNone    Frequency = ""
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyNone, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// Links holds opaque references to records owned by other parts of the application.
type Links struct {
	PlaybookID string `json:"playbookId,omitempty"`
	TradeID    string `json:"tradeId,omitempty"`
	JournalID  string `json:"journalId,omitempty"`
	NotebookID string `json:"notebookId,omitempty"`
}

// Task represents a single board item.
type Task struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"userId,omitempty"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	ColumnID           ColumnID   `json:"columnId"`
	Position           int        `json:"position"`
	Priority           Priority   `json:"priority,omitempty"`
	DueDate            *time.Time `json:"dueDate,omitempty"`
	TaskType           string     `json:"taskType,omitempty"`
	IsRecurring        bool       `json:"isRecurring"`
	RecurringFrequency Frequency  `json:"recurringFrequency,omitempty"`
	Links              Links      `json:"links"`
	ResultNotes        string     `json:"resultNotes,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          *time.Time `json:"updatedAt,omitempty"`
}

// Draft carries the caller-supplied fields of a task being created.
type Draft struct {
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	ColumnID           ColumnID   `json:"columnId,omitempty"`
	Priority           Priority   `json:"priority,omitempty"`
	DueDate            *time.Time `json:"dueDate,omitempty"`
	TaskType           string     `json:"taskType,omitempty"`
	IsRecurring        bool       `json:"isRecurring,omitempty"`
	RecurringFrequency Frequency  `json:"recurringFrequency,omitempty"`
	Links              Links      `json:"links"`
}

// Validate rejects drafts that must never reach the board.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if d.ColumnID != "" && !d.ColumnID.Valid() {
		return &ValidationError{Field: "columnId", Reason: "unknown column " + string(d.ColumnID)}
	}
	if !d.Priority.Valid() {
		return &ValidationError{Field: "priority", Reason: "unknown priority " + string(d.Priority)}
	}
	if !d.RecurringFrequency.Valid() {
		return &ValidationError{Field: "recurringFrequency", Reason: "unknown frequency " + string(d.RecurringFrequency)}
	}
	return nil
}

// Patch carries optional task field updates. Nil fields are left unchanged.
type Patch struct {
	Title              *string    `json:"title,omitempty"`
	Description        *string    `json:"description,omitempty"`
	ColumnID           *ColumnID  `json:"columnId,omitempty"`
	Position           *int       `json:"position,omitempty"`
	Priority           *Priority  `json:"priority,omitempty"`
	DueDate            *time.Time `json:"dueDate,omitempty"`
	ClearDueDate       bool       `json:"clearDueDate,omitempty"`
	TaskType           *string    `json:"taskType,omitempty"`
	IsRecurring        *bool      `json:"isRecurring,omitempty"`
	RecurringFrequency *Frequency `json:"recurringFrequency,omitempty"`
	Links              *Links     `json:"links,omitempty"`
	ResultNotes        *string    `json:"resultNotes,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	UpdatedAt          *time.Time `json:"updatedAt,omitempty"`
}

// Validate rejects patches that would break a task.
func (p Patch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if p.ColumnID != nil && !p.ColumnID.Valid() {
		return &ValidationError{Field: "columnId", Reason: "unknown column " + string(*p.ColumnID)}
	}
	if p.Position != nil && *p.Position < 1 {
		return &ValidationError{Field: "position", Reason: "must be at least 1"}
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return &ValidationError{Field: "priority", Reason: "unknown priority " + string(*p.Priority)}
	}
	if p.RecurringFrequency != nil && !p.RecurringFrequency.Valid() {
		return &ValidationError{Field: "recurringFrequency", Reason: "unknown frequency " + string(*p.RecurringFrequency)}
	}
	return nil
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.ColumnID == nil && p.Position == nil &&
		p.Priority == nil && p.DueDate == nil && !p.ClearDueDate && p.TaskType == nil &&
		p.IsRecurring == nil && p.RecurringFrequency == nil && p.Links == nil &&
		p.ResultNotes == nil && p.CompletedAt == nil && p.UpdatedAt == nil
}

// Apply merges the patch into t and returns the result.
func (p Patch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.ColumnID != nil {
		t.ColumnID = *p.ColumnID
	}
	if p.Position != nil {
		t.Position = *p.Position
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.ClearDueDate {
		t.DueDate = nil
	}
	if p.DueDate != nil {
		d := *p.DueDate
		t.DueDate = &d
	}
	if p.TaskType != nil {
		t.TaskType = *p.TaskType
	}
	if p.IsRecurring != nil {
		t.IsRecurring = *p.IsRecurring
	}
	if p.RecurringFrequency != nil {
		t.RecurringFrequency = *p.RecurringFrequency
	}
	if p.Links != nil {
		t.Links = *p.Links
	}
	if p.ResultNotes != nil {
		t.ResultNotes = *p.ResultNotes
	}
	if p.CompletedAt != nil {
		c := *p.CompletedAt
		t.CompletedAt = &c
	}
	if p.UpdatedAt != nil {
		u := *p.UpdatedAt
		t.UpdatedAt = &u
	}
	return t
}

// NewTask builds the task a draft describes. Position and id are assigned by the caller.
func NewTask(d Draft, scope string, now time.Time) Task {
	col := d.ColumnID
	if col == "" {
		col = DefaultColumn
	}
	t := Task{
		UserID:             scope,
		Title:              strings.TrimSpace(d.Title),
		Description:        d.Description,
		ColumnID:           col,
		Priority:           d.Priority,
		TaskType:           d.TaskType,
		IsRecurring:        d.IsRecurring,
		RecurringFrequency: d.RecurringFrequency,
		Links:              d.Links,
		CreatedAt:          now,
	}
	if d.DueDate != nil {
		due := *d.DueDate
		t.DueDate = &due
	}
	return t
}

// Clone returns a deep copy of t.
func (t Task) Clone() Task {
	if t.DueDate != nil {
		d := *t.DueDate
		t.DueDate = &d
	}
	if t.CompletedAt != nil {
		c := *t.CompletedAt
		t.CompletedAt = &c
	}
	if t.UpdatedAt != nil {
		u := *t.UpdatedAt
		t.UpdatedAt = &u
	}
	return t
}

// Filter narrows the visible tasks of a column without changing their order.
type Filter struct {
	TaskType string   `json:"taskType,omitempty"`
	Priority Priority `json:"priority,omitempty"`
}

// Match reports whether t passes the filter. The zero Filter matches everything.
func (f Filter) Match(t Task) bool {
	if f.TaskType != "" && t.TaskType != f.TaskType {
		return false
	}
	if f.Priority != PriorityNone && t.Priority != f.Priority {
		return false
	}
	return true
}

// Active reports whether the filter hides anything.
func (f Filter) Active() bool {
	return f.TaskType != "" || f.Priority != PriorityNone
}
