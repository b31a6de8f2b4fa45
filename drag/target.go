package drag

import "prism-board/domain"

// Rect is the vertical extent of a rendered task card.
type Rect struct {
	Top    float64
	Height float64
}

// Target is what the pointer is over. A non-empty TaskID means a task card;
// otherwise Column names the column container.
type Target struct {
	Column   domain.ColumnID
	TaskID   string
	PointerY float64
	Bounds   Rect
}

// OverColumn targets the empty area of a column.
func OverColumn(col domain.ColumnID) *Target {
	return &Target{Column: col}
}

// OverTask targets a task card. lowerHalf places the pointer below its midpoint.
func OverTask(id string, lowerHalf bool) *Target {
	t := &Target{TaskID: id, Bounds: Rect{Top: 0, Height: 2}}
	if lowerHalf {
		t.PointerY = 1.5
	} else {
		t.PointerY = 0.5
	}
	return t
}

func (t Target) lowerHalf() bool {
	return t.PointerY > t.Bounds.Top+t.Bounds.Height/2
}

// resolve maps a target to a column and an index into that column with the
// dragged task removed.
func resolve(b domain.Board, dragged string, t Target, f domain.Filter) (domain.ColumnID, int, bool) {
	if t.TaskID != "" {
		col, idx, ok := b.Locate(t.TaskID)
		if !ok {
			return "", 0, false
		}
		if t.TaskID == dragged {
			return col, idx, true
		}
		list := without(b[col], dragged)
		for i, task := range list {
			if task.ID == t.TaskID {
				idx = i
				break
			}
		}
		if t.lowerHalf() {
			idx++
		}
		return col, idx, true
	}

	if !t.Column.Valid() {
		return "", 0, false
	}
	list := without(b[t.Column], dragged)
	if !f.Active() {
		return t.Column, len(list), true
	}
	index := len(list)
	for i := len(list) - 1; i >= 0; i-- {
		if f.Match(list[i]) {
			index = i + 1
			break
		}
	}
	return t.Column, index, true
}

func without(list []domain.Task, id string) []domain.Task {
	out := make([]domain.Task, 0, len(list))
	for _, t := range list {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}
