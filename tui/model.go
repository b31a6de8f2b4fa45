package tui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"

	"prism-board/board"
	"prism-board/config"
	"prism-board/domain"
	"prism-board/drag"
)

type mode int

const (
	modeBoard mode = iota
	modeAdd
	modeComplete
	modeConfirmDelete
)

// Board is the store surface the terminal board needs.
type Board interface {
	drag.Store
	Scope() string
	Unsynced(id string) bool
	Create(ctx context.Context, d domain.Draft) (domain.Task, error)
	Delete(ctx context.Context, id string) error
	Subscribe(fn func(domain.Board)) func()
}

// boardChangedMsg reports that the store published a new board.
type boardChangedMsg struct{}

type Model struct {
	ctx     context.Context
	store   Board
	ctrl    *drag.Controller
	keys    config.Keymap
	logger  *log.Logger
	changes chan struct{}

	col        int
	row        int
	mode       mode
	input      textinput.Model
	status     string
	pendingDel string
	width      int
}

// New builds the terminal board model over a loaded store.
func New(ctx context.Context, store Board, keys config.Keymap, logger *log.Logger) Model {
	if logger == nil {
		logger = log.StandardLogger()
	}
	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 40

	return Model{
		ctx:     ctx,
		store:   store,
		ctrl:    drag.NewController(store, logger),
		keys:    keys,
		logger:  logger,
		changes: make(chan struct{}, 1),
		input:   ti,
		status:  fmt.Sprintf("Press '%s' to add, '%s' to grab a task, '%s' to quit.", keys.Add, keyLabel(keys.Grab), keys.Quit),
	}
}

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, store Board, keys config.Keymap, logger *log.Logger) error {
	m := New(ctx, store, keys, logger)
	unsubscribe := m.watch()
	defer unsubscribe()

	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

// watch forwards store publications to the program loop.
func (m Model) watch() func() {
	return m.store.Subscribe(func(domain.Board) {
		select {
		case m.changes <- struct{}{}:
		default:
		}
	})
}

func (m Model) waitForChange() tea.Cmd {
	ch := m.changes
	return func() tea.Msg {
		<-ch
		return boardChangedMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	return m.waitForChange()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case boardChangedMsg:
		m.clamp()
		return m, m.waitForChange()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-10, 10)
		return m, nil
	case tea.KeyMsg:
		switch m.mode {
		case modeAdd:
			return m.updateAddMode(msg)
		case modeComplete:
			return m.updateCompleteMode(msg)
		case modeConfirmDelete:
			return m.updateDeleteConfirm(msg.String())
		}
		if m.ctrl.State() == drag.Dragging {
			return m.updateDragMode(msg.String())
		}
		return m.updateBoardMode(msg.String())
	}
	return m, nil
}

func (m Model) column() domain.ColumnID {
	return domain.Columns[m.col]
}

func (m Model) visible(col domain.ColumnID) []domain.Task {
	return m.store.Snapshot().Visible(col, m.ctrl.Filter())
}

// selected returns the task under the cursor.
func (m Model) selected() (domain.Task, bool) {
	list := m.visible(m.column())
	if m.row < 0 || m.row >= len(list) {
		return domain.Task{}, false
	}
	return list[m.row], true
}

func (m *Model) clamp() {
	m.row = clampCursor(m.row, len(m.visible(m.column())))
}

// follow puts the cursor on the task with id.
func (m *Model) follow(id string) {
	for c, col := range domain.Columns {
		for i, t := range m.visible(col) {
			if t.ID == id {
				m.col, m.row = c, i
				return
			}
		}
	}
	m.clamp()
}

func (m Model) updateBoardMode(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "ctrl+c", m.keys.Quit:
		return m, tea.Quit
	case m.keys.Left, "left":
		if m.col > 0 {
			m.col--
			m.clamp()
		}
	case m.keys.Right, "right":
		if m.col < len(domain.Columns)-1 {
			m.col++
			m.clamp()
		}
	case m.keys.Up, "up":
		if m.row > 0 {
			m.row--
		}
	case m.keys.Down, "down":
		m.row = clampCursor(m.row+1, len(m.visible(m.column())))
	case m.keys.Add:
		m.mode = modeAdd
		m.input.SetValue("")
		m.input.Placeholder = "Task title"
		m.input.Focus()
		m.status = fmt.Sprintf("New task in %s: type a title and press Enter", m.column().Label())
	case m.keys.Grab:
		t, ok := m.selected()
		if !ok {
			m.status = "No task selected"
			return m, nil
		}
		if err := m.ctrl.Start(t.ID); err != nil {
			m.status = fmt.Sprintf("grab failed: %v", err)
			return m, nil
		}
		m.status = fmt.Sprintf("Moving \"%s\": arrows to move, %s to drop, %s to cancel", t.Title, m.keys.Drop, m.keys.Cancel)
	case m.keys.Complete:
		t, ok := m.selected()
		if !ok {
			m.status = "No task selected"
			return m, nil
		}
		if t.ColumnID == domain.ColumnCompleted {
			m.status = "Task is already completed"
			return m, nil
		}
		return m.requestCompletion(t)
	case m.keys.Delete:
		t, ok := m.selected()
		if !ok {
			m.status = "No task selected"
			return m, nil
		}
		m.mode = modeConfirmDelete
		m.pendingDel = t.ID
		m.status = fmt.Sprintf("Delete \"%s\"? y/n", t.Title)
	case m.keys.Reload:
		if _, err := m.store.Reload(m.ctx); err != nil {
			m.status = fmt.Sprintf("reload failed: %v", err)
			return m, nil
		}
		m.clamp()
		m.status = "Reloaded"
	case m.keys.FilterType:
		f := m.ctrl.Filter()
		f.TaskType = nextTaskType(m.store.Snapshot(), f.TaskType)
		m.ctrl.SetFilter(f)
		m.clamp()
		m.status = "Filter: " + describeFilter(f)
	case m.keys.FilterPriority:
		f := m.ctrl.Filter()
		f.Priority = nextPriority(f.Priority)
		m.ctrl.SetFilter(f)
		m.clamp()
		m.status = "Filter: " + describeFilter(f)
	}
	return m, nil
}

// requestCompletion drags the task onto the completed column, which opens
// the completion prompt.
func (m Model) requestCompletion(t domain.Task) (tea.Model, tea.Cmd) {
	if err := m.ctrl.Start(t.ID); err != nil {
		m.status = fmt.Sprintf("complete failed: %v", err)
		return m, nil
	}
	target := drag.OverColumn(domain.ColumnCompleted)
	if err := m.ctrl.Over(*target); err != nil {
		m.ctrl.Cancel()
		m.status = fmt.Sprintf("complete failed: %v", err)
		return m, nil
	}
	outcome, err := m.ctrl.End(m.ctx, target)
	return m.afterDrop(t.ID, outcome, err)
}

func (m Model) updateDragMode(key string) (tea.Model, tea.Cmd) {
	id := m.ctrl.TaskID()
	col, _, ok := m.store.Snapshot().Locate(id)
	if !ok {
		m.ctrl.Cancel()
		m.status = "Task disappeared"
		return m, nil
	}
	c := columnIndex(col)
	list := m.visible(col)
	vi := indexOf(list, id)

	var target *drag.Target
	switch key {
	case "ctrl+c":
		m.ctrl.Cancel()
		return m, tea.Quit
	case m.keys.Up, "up":
		if vi > 0 {
			target = drag.OverTask(list[vi-1].ID, false)
		}
	case m.keys.Down, "down":
		if vi >= 0 && vi < len(list)-1 {
			target = drag.OverTask(list[vi+1].ID, true)
		}
	case m.keys.Left, "left", m.keys.Right, "right":
		next := c - 1
		if key == m.keys.Right || key == "right" {
			next = c + 1
		}
		if next < 0 || next >= len(domain.Columns) {
			return m, nil
		}
		target = m.targetIn(domain.Columns[next], id, max(vi, 0))
	case m.keys.Drop, "enter":
		outcome, err := m.ctrl.End(m.ctx, drag.OverTask(id, false))
		return m.afterDrop(id, outcome, err)
	case m.keys.Cancel, "esc":
		outcome, _ := m.ctrl.End(m.ctx, nil)
		return m.afterDrop(id, outcome, nil)
	default:
		return m, nil
	}
	if target == nil {
		return m, nil
	}
	if err := m.ctrl.Over(*target); err != nil {
		m.status = fmt.Sprintf("move failed: %v", err)
		return m, nil
	}
	m.follow(id)
	return m, nil
}

// targetIn aims at row in col, or at the end of col when it has fewer rows.
func (m Model) targetIn(col domain.ColumnID, dragged string, row int) *drag.Target {
	list := m.visible(col)
	rest := make([]domain.Task, 0, len(list))
	for _, t := range list {
		if t.ID != dragged {
			rest = append(rest, t)
		}
	}
	if row < len(rest) {
		return drag.OverTask(rest[row].ID, false)
	}
	return drag.OverColumn(col)
}

func (m Model) afterDrop(id string, outcome drag.Outcome, err error) (tea.Model, tea.Cmd) {
	switch outcome {
	case drag.CompletionRequested:
		t, _ := m.store.Task(id)
		m.mode = modeComplete
		m.input.SetValue(t.ResultNotes)
		m.input.Placeholder = "Result notes (optional)"
		m.input.Focus()
		m.follow(id)
		m.status = fmt.Sprintf("Complete \"%s\": enter notes and press Enter, Esc to dismiss", t.Title)
		return m, nil
	case drag.Cancelled:
		m.clamp()
		m.status = fmt.Sprintf("Move cancelled; press %s to reload", m.keys.Reload)
		return m, nil
	case drag.Committed:
		if err != nil {
			m.clamp()
			m.status = persistMessage("move", err)
			return m, nil
		}
		m.follow(id)
		m.status = "Moved"
		return m, nil
	}
	if err != nil {
		m.status = err.Error()
	}
	return m, nil
}

func (m Model) updateAddMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case m.keys.Cancel, "esc":
		m.mode = modeBoard
		m.input.SetValue("")
		m.input.Blur()
		m.status = "Cancelled"
		return m, nil
	case "enter":
		title := strings.TrimSpace(m.input.Value())
		if title == "" {
			m.status = "Title cannot be empty"
			return m, nil
		}
		t, err := m.store.Create(m.ctx, domain.Draft{Title: title, ColumnID: m.column()})
		m.mode = modeBoard
		m.input.SetValue("")
		m.input.Blur()
		if err != nil {
			m.status = persistMessage("create", err)
			if t.ID != "" {
				m.follow(t.ID)
			}
			return m, nil
		}
		m.follow(t.ID)
		m.status = "Added task"
		return m, nil
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m Model) updateCompleteMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case m.keys.Cancel, "esc":
		m.mode = modeBoard
		m.input.Blur()
		if _, err := m.ctrl.DismissCompletion(m.ctx); err != nil {
			m.status = fmt.Sprintf("reload failed: %v", err)
			return m, nil
		}
		m.clamp()
		m.status = "Completion dismissed"
		return m, nil
	case "enter":
		notes := strings.TrimSpace(m.input.Value())
		m.mode = modeBoard
		m.input.SetValue("")
		m.input.Blur()
		done, err := m.ctrl.ConfirmCompletion(m.ctx, notes)
		if err != nil && done.Task.ID == "" {
			m.clamp()
			m.status = persistMessage("complete", err)
			return m, nil
		}
		m.follow(done.Task.ID)
		switch {
		case err != nil:
			m.status = fmt.Sprintf("Completed; next occurrence failed: %v", err)
		case done.Next != nil:
			m.status = fmt.Sprintf("Completed; next occurrence added to %s", done.Next.ColumnID.Label())
		default:
			m.status = "Completed"
		}
		return m, nil
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m Model) updateDeleteConfirm(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "n", "N", "esc":
		m.mode = modeBoard
		m.pendingDel = ""
		m.status = "Delete cancelled"
	case "y", "Y":
		id := m.pendingDel
		m.mode = modeBoard
		m.pendingDel = ""
		if err := m.store.Delete(m.ctx, id); err != nil {
			m.clamp()
			m.status = persistMessage("delete", err)
			return m, nil
		}
		m.clamp()
		m.status = "Deleted task"
	}
	return m, nil
}

func persistMessage(op string, err error) string {
	var perr *domain.PersistenceError
	if errors.As(err, &perr) && perr.Reloaded {
		return fmt.Sprintf("%s not saved (%v); board reloaded", op, perr.Err)
	}
	return fmt.Sprintf("%s failed: %v", op, err)
}

func nextTaskType(b domain.Board, current string) string {
	seen := map[string]struct{}{}
	for _, t := range b.Tasks() {
		if t.TaskType != "" {
			seen[t.TaskType] = struct{}{}
		}
	}
	if current != "" {
		seen[current] = struct{}{}
	}
	types := make([]string, 0, len(seen))
	for tt := range seen {
		types = append(types, tt)
	}
	sort.Strings(types)
	cycle := append([]string{""}, types...)
	for i, tt := range cycle {
		if tt == current {
			return cycle[(i+1)%len(cycle)]
		}
	}
	return ""
}

func nextPriority(p domain.Priority) domain.Priority {
	cycle := []domain.Priority{domain.PriorityNone, domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh}
	for i, c := range cycle {
		if c == p {
			return cycle[(i+1)%len(cycle)]
		}
	}
	return domain.PriorityNone
}

func describeFilter(f domain.Filter) string {
	if !f.Active() {
		return "all tasks"
	}
	parts := make([]string, 0, 2)
	if f.TaskType != "" {
		parts = append(parts, "type="+f.TaskType)
	}
	if f.Priority != domain.PriorityNone {
		parts = append(parts, "priority="+string(f.Priority))
	}
	return strings.Join(parts, " ")
}

func columnIndex(col domain.ColumnID) int {
	for i, c := range domain.Columns {
		if c == col {
			return i
		}
	}
	return 0
}

func indexOf(list []domain.Task, id string) int {
	for i, t := range list {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func clampCursor(cur, n int) int {
	if n <= 0 || cur < 0 {
		return 0
	}
	if cur >= n {
		return n - 1
	}
	return cur
}

func keyLabel(k string) string {
	if k == " " {
		return "space"
	}
	return k
}

var _ Board = (*board.Store)(nil)
