// Package boardstate is the client-side model of a user's board: an
// immutable snapshot, the drag-and-drop engine that rearranges it, and the
// reconciler that pushes the resulting moves to the API.
package boardstate

import "kanban/internal/models"

// Task is a card as held in client memory.
type Task struct {
	ID          int64
	Description string
	ColumnID    int64
	Version     int64
}

// Column holds its tasks in display order.
type Column struct {
	ID    int64
	Name  string
	Tasks []Task
}

// Board is a snapshot value. Every method returns a new Board and leaves the
// receiver untouched, so older snapshots stay valid for replay and rollback.
type Board struct {
	ID      int64
	Name    string
	Columns []Column
}

// FromView builds a snapshot in server order.
func FromView(v models.BoardView) Board {
	b := Board{ID: v.ID, Name: v.Name, Columns: make([]Column, 0, len(v.Columns))}
	for _, cv := range v.Columns {
		col := Column{ID: cv.ID, Name: cv.Name, Tasks: make([]Task, 0, len(cv.Tasks))}
		for _, tv := range cv.Tasks {
			col.Tasks = append(col.Tasks, Task{ID: tv.ID, Description: tv.Description, ColumnID: cv.ID, Version: tv.Version})
		}
		b.Columns = append(b.Columns, col)
	}
	return b
}

func (b Board) clone() Board {
	out := Board{ID: b.ID, Name: b.Name, Columns: make([]Column, len(b.Columns))}
	for i, c := range b.Columns {
		out.Columns[i] = Column{ID: c.ID, Name: c.Name, Tasks: append([]Task(nil), c.Tasks...)}
	}
	return out
}

// ColumnIndex returns the position of a column, or -1.
func (b Board) ColumnIndex(columnID int64) int {
	for i, c := range b.Columns {
		if c.ID == columnID {
			return i
		}
	}
	return -1
}

// FindColumn returns a column by id.
func (b Board) FindColumn(columnID int64) (Column, bool) {
	if i := b.ColumnIndex(columnID); i >= 0 {
		return b.Columns[i], true
	}
	return Column{}, false
}

// locate returns the column and task indexes of a task.
func (b Board) locate(taskID int64) (int, int, bool) {
	for ci, c := range b.Columns {
		for ti, t := range c.Tasks {
			if t.ID == taskID {
				return ci, ti, true
			}
		}
	}
	return -1, -1, false
}

// FindTask returns a task and its index within its column.
func (b Board) FindTask(taskID int64) (Task, int, bool) {
	ci, ti, ok := b.locate(taskID)
	if !ok {
		return Task{}, -1, false
	}
	return b.Columns[ci].Tasks[ti], ti, true
}

// TaskIDs lists the task ids of a column in order. Mostly useful in tests and logs.
func (b Board) TaskIDs(columnID int64) []int64 {
	col, ok := b.FindColumn(columnID)
	if !ok {
		return nil
	}
	ids := make([]int64, 0, len(col.Tasks))
	for _, t := range col.Tasks {
		ids = append(ids, t.ID)
	}
	return ids
}

// ColumnIDs lists the column ids in display order.
func (b Board) ColumnIDs() []int64 {
	ids := make([]int64, 0, len(b.Columns))
	for _, c := range b.Columns {
		ids = append(ids, c.ID)
	}
	return ids
}

// AddColumn appends a column.
func (b Board) AddColumn(c Column) Board {
	out := b.clone()
	c.Tasks = append([]Task(nil), c.Tasks...)
	out.Columns = append(out.Columns, c)
	return out
}

// RenameColumn changes a column name; unknown ids leave the board unchanged.
func (b Board) RenameColumn(columnID int64, name string) Board {
	out := b.clone()
	if i := out.ColumnIndex(columnID); i >= 0 {
		out.Columns[i].Name = name
	}
	return out
}

// RemoveColumn drops a column together with its tasks.
func (b Board) RemoveColumn(columnID int64) Board {
	out := b.clone()
	if i := out.ColumnIndex(columnID); i >= 0 {
		out.Columns = append(out.Columns[:i], out.Columns[i+1:]...)
	}
	return out
}

// MoveColumn moves the column at from to index to, shifting the ones in between.
func (b Board) MoveColumn(from, to int) Board {
	out := b.clone()
	out.Columns = arrayMove(out.Columns, from, to)
	return out
}

// AddTask appends a task to the end of its column.
func (b Board) AddTask(t Task) Board {
	out := b.clone()
	if i := out.ColumnIndex(t.ColumnID); i >= 0 {
		out.Columns[i].Tasks = append(out.Columns[i].Tasks, t)
	}
	return out
}

// RemoveTask drops a task wherever it is.
func (b Board) RemoveTask(taskID int64) Board {
	out := b.clone()
	if ci, ti, ok := out.locate(taskID); ok {
		tasks := out.Columns[ci].Tasks
		out.Columns[ci].Tasks = append(tasks[:ti], tasks[ti+1:]...)
	}
	return out
}

// UpdateTask replaces the stored fields of a task in place, keeping its position.
func (b Board) UpdateTask(t Task) Board {
	out := b.clone()
	if ci, ti, ok := out.locate(t.ID); ok {
		t.ColumnID = out.Columns[ci].ID
		out.Columns[ci].Tasks[ti] = t
	}
	return out
}

// UpdateTaskDescription edits the text of a card.
func (b Board) UpdateTaskDescription(taskID int64, description string) Board {
	out := b.clone()
	if ci, ti, ok := out.locate(taskID); ok {
		out.Columns[ci].Tasks[ti].Description = description
	}
	return out
}

// PlaceTask moves a task into columnID at index, clamped to the column
// bounds, and updates its ColumnID.
func (b Board) PlaceTask(taskID, columnID int64, index int) Board {
	ci, ti, ok := b.locate(taskID)
	dst := b.ColumnIndex(columnID)
	if !ok || dst < 0 {
		return b.clone()
	}

	out := b.clone()
	task := out.Columns[ci].Tasks[ti]
	task.ColumnID = columnID
	out.Columns[ci].Tasks = append(out.Columns[ci].Tasks[:ti], out.Columns[ci].Tasks[ti+1:]...)

	tasks := out.Columns[dst].Tasks
	index = max(0, min(index, len(tasks)))
	tasks = append(tasks, Task{})
	copy(tasks[index+1:], tasks[index:])
	tasks[index] = task
	out.Columns[dst].Tasks = tasks
	return out
}

// arrayMove moves the element at from to to within a copy of s.
func arrayMove[T any](s []T, from, to int) []T {
	out := append([]T(nil), s...)
	if from < 0 || from >= len(out) || to < 0 || to >= len(out) || from == to {
		return out
	}
	item := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]T{item}, out[to:]...)...)
	return out
}
