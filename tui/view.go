package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"prism-board/config"
	"prism-board/domain"
	"prism-board/drag"
)

const minColumnWidth = 18

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	columnStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	focusedStyle  = columnStyle.BorderForeground(lipgloss.Color("63"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	cursorStyle   = lipgloss.NewStyle().Reverse(true)
	draggingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	mutedStyle    = lipgloss.NewStyle().Faint(true)
	modalStyle    = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).Padding(0, 1)
)

func (m Model) View() string {
	var b strings.Builder

	header := "Prism board"
	if scope := m.store.Scope(); scope != "" {
		header += " • " + scope
	}
	if f := m.ctrl.Filter(); f.Active() {
		header += " • " + describeFilter(f)
	}
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")
	b.WriteString(m.renderColumns())
	b.WriteString("\n")

	switch m.mode {
	case modeAdd:
		b.WriteString(modalStyle.Render("New task\n" + m.input.View()))
		b.WriteString("\n")
	case modeComplete:
		b.WriteString(modalStyle.Render("Result notes\n" + m.input.View()))
		b.WriteString("\n")
	}

	b.WriteString(m.status)
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(renderHelp(m.keys)))
	return b.String()
}

func (m Model) columnWidth() int {
	if m.width <= 0 {
		return minColumnWidth
	}
	w := m.width/len(domain.Columns) - 4
	if w < minColumnWidth {
		return minColumnWidth
	}
	return w
}

func (m Model) renderColumns() string {
	snap := m.store.Snapshot()
	width := m.columnWidth()
	dragging := ""
	if m.ctrl.State() != drag.Idle {
		dragging = m.ctrl.TaskID()
	}

	cols := make([]string, 0, len(domain.Columns))
	for i, col := range domain.Columns {
		tasks := snap.Visible(col, m.ctrl.Filter())
		var cb strings.Builder
		cb.WriteString(headerStyle.Render(fmt.Sprintf("%s (%d)", col.Label(), len(tasks))))
		cb.WriteString("\n")
		if len(tasks) == 0 {
			cb.WriteString(mutedStyle.Render("empty"))
		}
		for j, t := range tasks {
			line := truncate(m.renderTask(t), width)
			switch {
			case t.ID == dragging:
				line = draggingStyle.Render(line)
			case i == m.col && j == m.row && m.mode == modeBoard:
				line = cursorStyle.Render(line)
			}
			cb.WriteString(line)
			if j < len(tasks)-1 {
				cb.WriteString("\n")
			}
		}
		style := columnStyle
		if i == m.col {
			style = focusedStyle
		}
		cols = append(cols, style.Width(width).Render(cb.String()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func (m Model) renderTask(t domain.Task) string {
	var b strings.Builder
	b.WriteString(t.Title)
	if t.Priority != domain.PriorityNone {
		b.WriteString(" !" + string(t.Priority)[:1])
	}
	if t.IsRecurring {
		b.WriteString(" ↻")
	}
	if t.DueDate != nil {
		b.WriteString(" " + t.DueDate.Format("01-02"))
	}
	if m.store.Unsynced(t.ID) {
		b.WriteString(" *")
	}
	return b.String()
}

func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > width {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}

func renderHelp(k config.Keymap) string {
	return fmt.Sprintf("%s/%s/%s/%s move • %s grab • %s drop • %s cancel • %s add • %s complete • %s delete • %s reload • %s/%s filter • %s quit",
		k.Left, k.Down, k.Up, k.Right, keyLabel(k.Grab), k.Drop, k.Cancel, k.Add, k.Complete, k.Delete, k.Reload, k.FilterType, k.FilterPriority, k.Quit)
}
