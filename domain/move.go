package domain

import "fmt"

// MoveResult describes what ApplyMove did.
type MoveResult struct {
	Task      Task
	From      ColumnID
	FromIndex int
	To        ColumnID
	Index     int
}

// Changed reports whether the task ended up somewhere else.
func (r MoveResult) Changed() bool {
	return r.From != r.To || r.FromIndex != r.Index
}

// Affected lists the columns whose positions were rewritten.
func (r MoveResult) Affected() []ColumnID {
	if r.From == r.To {
		return []ColumnID{r.To}
	}
	return []ColumnID{r.From, r.To}
}

// ApplyMove removes id from its column and inserts it into col at index. The index
// addresses the target list after removal when source and target are the same
// column, and the current target list otherwise; it is clamped to [0, len].
// Both affected columns are renumbered densely. b is not modified.
func ApplyMove(b Board, id string, col ColumnID, index int) (Board, MoveResult, error) {
	if !col.Valid() {
		return b, MoveResult{}, fmt.Errorf("%w: column %q", ErrInvalidTarget, col)
	}
	from, fromIdx, ok := b.Locate(id)
	if !ok {
		return b, MoveResult{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	src := b[from]
	task := src[fromIdx]
	source := make([]Task, 0, len(src))
	source = append(source, src[:fromIdx]...)
	source = append(source, src[fromIdx+1:]...)

	var target []Task
	if from == col {
		target = source
	} else {
		target = append([]Task(nil), b[col]...)
	}

	if index < 0 {
		index = 0
	}
	if index > len(target) {
		index = len(target)
	}

	task.ColumnID = col
	target = append(target, Task{})
	copy(target[index+1:], target[index:])
	target[index] = task

	changed := map[ColumnID][]Task{col: Renumber(target)}
	if from != col {
		changed[from] = Renumber(source)
	}
	next := b.with(changed)

	res := MoveResult{
		Task:      next[col][index],
		From:      from,
		FromIndex: fromIdx,
		To:        col,
		Index:     index,
	}
	return next, res, nil
}

// AppendIndex is an index that ApplyMove clamps to the end of any column.
const AppendIndex = int(^uint(0) >> 1)
