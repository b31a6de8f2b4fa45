package domain

import (
	"sort"
)

// Board maps every column to its tasks ordered by ascending position.
type Board map[ColumnID][]Task

// GroupTasks builds a board from an unordered task list. Each column is sorted by
// position (ties fall back to creation time, then id) and renumbered densely from 1.
func GroupTasks(tasks []Task) Board {
	b := make(Board, len(Columns))
	for _, t := range tasks {
		col := t.ColumnID
		if col == "" {
			col = DefaultColumn
			t.ColumnID = col
		}
		b[col] = append(b[col], t.Clone())
	}
	for col, list := range b {
		sortByPosition(list)
		b[col] = Renumber(list)
	}
	return b
}

func sortByPosition(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, c := tasks[i], tasks[j]
		if a.Position != c.Position {
			return a.Position < c.Position
		}
		if !a.CreatedAt.Equal(c.CreatedAt) {
			return a.CreatedAt.Before(c.CreatedAt)
		}
		return a.ID < c.ID
	})
}

// Renumber rewrites positions as dense 1-based ranks, in place.
func Renumber(tasks []Task) []Task {
	for i := range tasks {
		tasks[i].Position = i + 1
	}
	return tasks
}

// ColumnIDs returns the known columns in display order followed by any unknown
// columns present on the board, sorted by name.
func (b Board) ColumnIDs() []ColumnID {
	ids := make([]ColumnID, 0, len(Columns))
	ids = append(ids, Columns...)
	var extra []ColumnID
	for col := range b {
		if !col.Valid() {
			extra = append(extra, col)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(ids, extra...)
}

// Column returns the ordered tasks of col.
func (b Board) Column(col ColumnID) []Task {
	return b[col]
}

// Clone returns a deep copy of the board with every known column present.
func (b Board) Clone() Board {
	out := make(Board, len(b)+len(Columns))
	for _, col := range Columns {
		out[col] = []Task{}
	}
	for col, list := range b {
		cp := make([]Task, len(list))
		for i, t := range list {
			cp[i] = t.Clone()
		}
		out[col] = cp
	}
	return out
}

// Locate returns the column and index holding id.
func (b Board) Locate(id string) (ColumnID, int, bool) {
	for col, list := range b {
		for i := range list {
			if list[i].ID == id {
				return col, i, true
			}
		}
	}
	return "", -1, false
}

// Task returns the task with the given id.
func (b Board) Task(id string) (Task, bool) {
	col, idx, ok := b.Locate(id)
	if !ok {
		return Task{}, false
	}
	return b[col][idx], true
}

// NextPosition is one past the highest position in col, or 1 for an empty column.
func (b Board) NextPosition(col ColumnID) int {
	maxPos := 0
	for _, t := range b[col] {
		if t.Position > maxPos {
			maxPos = t.Position
		}
	}
	return maxPos + 1
}

// Len counts every task on the board.
func (b Board) Len() int {
	n := 0
	for _, list := range b {
		n += len(list)
	}
	return n
}

// Tasks flattens the board in display order.
func (b Board) Tasks() []Task {
	out := make([]Task, 0, b.Len())
	for _, col := range b.ColumnIDs() {
		out = append(out, b[col]...)
	}
	return out
}

// Visible returns the tasks of col that pass f.
func (b Board) Visible(col ColumnID, f Filter) []Task {
	list := b[col]
	if !f.Active() {
		return list
	}
	out := make([]Task, 0, len(list))
	for _, t := range list {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// with returns a shallow copy of b where the listed columns are replaced. The
// receiver is never modified, so unchanged columns may share backing arrays.
func (b Board) with(cols map[ColumnID][]Task) Board {
	out := make(Board, len(b)+len(cols))
	for col, list := range b {
		out[col] = list
	}
	for col, list := range cols {
		out[col] = list
	}
	return out
}

// Append adds t at the end of its column. The caller assigns the position.
func (b Board) Append(t Task) Board {
	list := append(append([]Task(nil), b[t.ColumnID]...), t)
	return b.with(map[ColumnID][]Task{t.ColumnID: list})
}

// Replace swaps the task stored under id for t, keeping its slot. The column of t
// must match the slot's column.
func (b Board) Replace(id string, t Task) (Board, bool) {
	col, idx, ok := b.Locate(id)
	if !ok {
		return b, false
	}
	list := append([]Task(nil), b[col]...)
	t.ColumnID = col
	t.Position = list[idx].Position
	list[idx] = t
	return b.with(map[ColumnID][]Task{col: list}), true
}

// Remove drops id from the board and renumbers its column.
func (b Board) Remove(id string) (Board, Task, bool) {
	col, idx, ok := b.Locate(id)
	if !ok {
		return b, Task{}, false
	}
	src := b[col]
	removed := src[idx]
	list := make([]Task, 0, len(src)-1)
	list = append(list, src[:idx]...)
	list = append(list, src[idx+1:]...)
	return b.with(map[ColumnID][]Task{col: Renumber(list)}), removed, true
}
