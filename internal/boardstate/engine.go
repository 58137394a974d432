package boardstate

import "fmt"

// Kind tags what is being dragged or hovered.
type Kind int

const (
	KindNone Kind = iota
	KindColumn
	KindTask
)

func (k Kind) String() string {
	switch k {
	case KindColumn:
		return "column"
	case KindTask:
		return "task"
	default:
		return "none"
	}
}

// Target is the element under the pointer. The zero value means "nothing".
type Target struct {
	Kind Kind
	ID   int64
}

// OverTask and OverColumn build drop targets.
func OverTask(id int64) Target   { return Target{Kind: KindTask, ID: id} }
func OverColumn(id int64) Target { return Target{Kind: KindColumn, ID: id} }

// Subject is the element captured at drag start, with where it came from.
type Subject struct {
	Kind         Kind
	ID           int64
	OriginColumn int64
	OriginIndex  int
}

// Move is a task membership change that has to be persisted.
type Move struct {
	TaskID     int64
	ColumnID   int64
	FromColumn int64
	FromIndex  int
}

// Outcome describes what a finished gesture changed.
type Outcome struct {
	// Move is set when a task ended in a different column than it started in.
	Move *Move
	// Reordered is set when only session-local order changed.
	Reordered bool
}

// Engine tracks one drag gesture at a time: Idle, then Dragging after
// DragStart, back to Idle after DragEnd or Cancel. Boards passed in are
// never modified.
type Engine struct {
	dragging bool
	subject  Subject
}

// Dragging reports the active subject, if any.
func (e *Engine) Dragging() (Subject, bool) {
	return e.subject, e.dragging
}

// DragStart captures the subject and its origin position.
func (e *Engine) DragStart(b Board, kind Kind, id int64) error {
	if e.dragging {
		return fmt.Errorf("drag already in progress for %s %d", e.subject.Kind, e.subject.ID)
	}

	s := Subject{Kind: kind, ID: id}
	switch kind {
	case KindTask:
		t, idx, ok := b.FindTask(id)
		if !ok {
			return fmt.Errorf("task %d not on board", id)
		}
		s.OriginColumn, s.OriginIndex = t.ColumnID, idx
	case KindColumn:
		idx := b.ColumnIndex(id)
		if idx < 0 {
			return fmt.Errorf("column %d not on board", id)
		}
		s.OriginColumn, s.OriginIndex = id, idx
	default:
		return fmt.Errorf("cannot drag %s", kind)
	}

	e.subject = s
	e.dragging = true
	return nil
}

// DragOver gives live feedback while a task is dragged: hovering a task in
// another column moves the subject right before it, hovering a foreign
// column appends the subject to it. Columns are only rearranged on DragEnd.
func (e *Engine) DragOver(b Board, over Target) Board {
	if !e.dragging || e.subject.Kind != KindTask || e.isSelf(over) {
		return b
	}
	return placeTask(b, e.subject.ID, over, false)
}

// DragEnd resolves the gesture and returns the engine to Idle.
func (e *Engine) DragEnd(b Board, over Target) (Board, Outcome) {
	if !e.dragging {
		return b, Outcome{}
	}
	subject := e.subject
	e.dragging = false
	e.subject = Subject{}

	if over.Kind == KindNone || (over.Kind == subject.Kind && over.ID == subject.ID) {
		return b, Outcome{}
	}

	switch subject.Kind {
	case KindColumn:
		return endColumnDrag(b, subject, over)
	case KindTask:
		return endTaskDrag(b, subject, over)
	}
	return b, Outcome{}
}

// Cancel abandons the gesture. The caller keeps or restores its own
// snapshot from before DragStart.
func (e *Engine) Cancel() (Subject, bool) {
	s, ok := e.subject, e.dragging
	e.dragging = false
	e.subject = Subject{}
	return s, ok
}

func (e *Engine) isSelf(over Target) bool {
	return over.Kind == KindNone || (over.Kind == e.subject.Kind && over.ID == e.subject.ID)
}

func endColumnDrag(b Board, subject Subject, over Target) (Board, Outcome) {
	targetColumn := over.ID
	if over.Kind == KindTask {
		t, _, ok := b.FindTask(over.ID)
		if !ok {
			return b, Outcome{}
		}
		targetColumn = t.ColumnID
	}

	from, to := b.ColumnIndex(subject.ID), b.ColumnIndex(targetColumn)
	if from < 0 || to < 0 || from == to {
		return b, Outcome{}
	}
	return b.MoveColumn(from, to), Outcome{Reordered: true}
}

func endTaskDrag(b Board, subject Subject, over Target) (Board, Outcome) {
	next := placeTask(b, subject.ID, over, true)

	t, idx, ok := next.FindTask(subject.ID)
	if !ok {
		return next, Outcome{}
	}
	if t.ColumnID != subject.OriginColumn {
		return next, Outcome{Move: &Move{
			TaskID:     subject.ID,
			ColumnID:   t.ColumnID,
			FromColumn: subject.OriginColumn,
			FromIndex:  subject.OriginIndex,
		}}
	}
	return next, Outcome{Reordered: idx != subject.OriginIndex}
}

// placeTask applies the drop policy: onto a task means immediately before
// it, onto a column means at the end. While hovering (final == false) the
// subject's own column is ignored as a target to avoid jitter.
func placeTask(b Board, taskID int64, over Target, final bool) Board {
	subject, subjectIdx, ok := b.FindTask(taskID)
	if !ok {
		return b
	}

	switch over.Kind {
	case KindTask:
		target, targetIdx, ok := b.FindTask(over.ID)
		if !ok {
			return b
		}
		if target.ColumnID == subject.ColumnID && subjectIdx < targetIdx {
			// removing the subject shifts the target one slot left
			targetIdx--
		}
		if target.ColumnID == subject.ColumnID && subjectIdx == targetIdx {
			return b
		}
		return b.PlaceTask(taskID, target.ColumnID, targetIdx)
	case KindColumn:
		col, ok := b.FindColumn(over.ID)
		if !ok {
			return b
		}
		if col.ID == subject.ColumnID {
			if !final || subjectIdx == len(col.Tasks)-1 {
				return b
			}
		}
		return b.PlaceTask(taskID, col.ID, len(col.Tasks))
	}
	return b
}
